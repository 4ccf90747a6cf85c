// Package oauth1 signs requests with OAuth 1.0a HMAC-SHA1 as used by the
// Twitter/X API.
package oauth1

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	SignatureMethod = "HMAC-SHA1"
	Version         = "1.0"
)

const nonceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Signer holds the application credentials. Now and Nonce may be replaced to
// produce deterministic signatures.
type Signer struct {
	ConsumerKey    string
	ConsumerSecret string
	Now            func() time.Time
	Nonce          func() (string, error)
}

func NewSigner(consumerKey, consumerSecret string) *Signer {
	return &Signer{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		Now:            time.Now,
		Nonce: func() (string, error) {
			return gonanoid.Generate(nonceAlphabet, 32)
		},
	}
}

// Token is the user half of the credentials. Secret is empty while requesting
// a request token.
type Token struct {
	Token  string
	Secret string
}

// AuthorizationHeader builds the "OAuth ..." header value for one request.
// extra carries call specific oauth_* parameters such as oauth_callback or
// oauth_verifier; query parameters of rawURL and form body parameters are
// signed but not placed in the header.
func (s *Signer) AuthorizationHeader(method, rawURL string, token Token, extra, form map[string]string) (string, error) {
	nonce, err := s.Nonce()
	if err != nil {
		return "", err
	}

	oauthParams := map[string]string{
		"oauth_consumer_key":     s.ConsumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": SignatureMethod,
		"oauth_timestamp":        strconv.FormatInt(s.Now().Unix(), 10),
		"oauth_version":          Version,
	}
	if token.Token != "" {
		oauthParams["oauth_token"] = token.Token
	}
	for k, v := range extra {
		oauthParams[k] = v
	}

	baseURL, signed, err := splitURL(rawURL)
	if err != nil {
		return "", err
	}
	for k, v := range oauthParams {
		signed = append(signed, Param{k, v})
	}
	for k, v := range form {
		signed = append(signed, Param{k, v})
	}

	base := SignatureBaseString(method, baseURL, signed)
	oauthParams["oauth_signature"] = Sign(base, SigningKey(s.ConsumerSecret, token.Secret))

	return headerValue(oauthParams), nil
}

type Param struct {
	Key   string
	Value string
}

func splitURL(rawURL string) (string, []Param, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, err
	}

	var params []Param
	for k, values := range u.Query() {
		for _, v := range values {
			params = append(params, Param{k, v})
		}
	}

	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), params, nil
}

// SignatureBaseString returns METHOD&enc(url)&enc(sorted k=v pairs).
func SignatureBaseString(method, baseURL string, params []Param) string {
	encoded := make([]string, 0, len(params))
	for _, p := range params {
		encoded = append(encoded, PercentEncode(p.Key)+"="+PercentEncode(p.Value))
	}
	sort.Strings(encoded)

	return strings.ToUpper(method) + "&" + PercentEncode(baseURL) + "&" + PercentEncode(strings.Join(encoded, "&"))
}

// Params converts a map into the parameter list SignatureBaseString expects.
func Params(m map[string]string) []Param {
	params := make([]Param, 0, len(m))
	for k, v := range m {
		params = append(params, Param{k, v})
	}
	return params
}

func SigningKey(consumerSecret, tokenSecret string) string {
	return PercentEncode(consumerSecret) + "&" + PercentEncode(tokenSecret)
}

// Sign returns base64(HMAC-SHA1(key, base)).
func Sign(base, key string) string {
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func headerValue(oauthParams map[string]string) string {
	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, PercentEncode(k)+`="`+PercentEncode(oauthParams[k])+`"`)
	}
	return "OAuth " + strings.Join(parts, ", ")
}

// PercentEncode encodes s per RFC 3986: everything except ALPHA, DIGIT and
// "-._~" is escaped with upper case hex.
func PercentEncode(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
