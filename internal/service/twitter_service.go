package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/pkg/oauth1"
	"github.com/tidwall/gjson"
)

const TwitterAuthURL = "https://api.twitter.com"

type twitterConnector struct {
	signer      *oauth1.Signer
	authURL     string
	apiURL      string
	callbackURL string
	client      *http.Client
}

// NewTwitterConnector runs the three legged OAuth 1.0a flow. authURL hosts
// the /oauth endpoints, apiURL the v2 API.
func NewTwitterConnector(signer *oauth1.Signer, authURL, apiURL, callbackURL string, client *http.Client) Connector {
	if client == nil {
		client = http.DefaultClient
	}
	return &twitterConnector{
		signer:      signer,
		authURL:     strings.TrimRight(authURL, "/"),
		apiURL:      strings.TrimRight(apiURL, "/"),
		callbackURL: callbackURL,
		client:      client,
	}
}

func (tw *twitterConnector) Platform() models.Platform {
	return models.PlatformTwitter
}

func (tw *twitterConnector) Begin(ctx context.Context, state *models.OAuthState, params url.Values) (string, error) {
	callback := tw.callbackURL + "?flow=" + url.QueryEscape(state.FlowToken)

	values, err := tw.signedPost(ctx, "/oauth/request_token", oauth1.Token{}, map[string]string{
		"oauth_callback": callback,
	})
	if err != nil {
		return "", fmt.Errorf("twitter request token: %w", err)
	}
	if values.Get("oauth_callback_confirmed") != "true" || values.Get("oauth_token") == "" {
		return "", fmt.Errorf("twitter request token: callback not confirmed")
	}

	state.Token = values.Get("oauth_token")
	state.TokenSecret = values.Get("oauth_token_secret")

	return tw.authURL + "/oauth/authorize?oauth_token=" + url.QueryEscape(state.Token), nil
}

func (tw *twitterConnector) Complete(ctx context.Context, state *models.OAuthState, query url.Values) (*Connection, error) {
	if query.Get("oauth_token") != state.Token {
		return nil, fmt.Errorf("%w: request token mismatch", ErrFlowExpired)
	}
	verifier := query.Get("oauth_verifier")
	if verifier == "" {
		return nil, fmt.Errorf("%w: missing oauth_verifier", ErrInvalidRequest)
	}

	values, err := tw.signedPost(ctx, "/oauth/access_token",
		oauth1.Token{Token: state.Token, Secret: state.TokenSecret},
		map[string]string{"oauth_verifier": verifier})
	if err != nil {
		return nil, fmt.Errorf("twitter access token: %w", err)
	}

	token := oauth1.Token{Token: values.Get("oauth_token"), Secret: values.Get("oauth_token_secret")}
	if token.Token == "" || token.Secret == "" {
		return nil, fmt.Errorf("twitter access token: empty credentials")
	}

	accountID := values.Get("user_id")
	username := values.Get("screen_name")

	me, err := tw.currentUser(ctx, token)
	if err != nil {
		slog.Warn("twitter users/me failed, using screen_name", "error", err)
	} else {
		if id := me.Get("data.id").String(); id != "" {
			accountID = id
		}
		if name := me.Get("data.username").String(); name != "" {
			username = name
		}
	}

	return &Connection{
		Account: &models.SocialAccount{
			AccountID:       accountID,
			AccountUsername: username,
			Metadata:        models.AccountMetadata{},
		},
		AccessToken: token.Token,
		Secret:      token.Secret,
	}, nil
}

// signedPost calls an OAuth endpoint and parses its form encoded reply.
func (tw *twitterConnector) signedPost(ctx context.Context, path string, token oauth1.Token, extra map[string]string) (url.Values, error) {
	endpoint := tw.authURL + path

	header, err := tw.signer.AuthorizationHeader(http.MethodPost, endpoint, token, extra, nil)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", header)

	resp, err := tw.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return url.ParseQuery(string(body))
}

func (tw *twitterConnector) currentUser(ctx context.Context, token oauth1.Token) (gjson.Result, error) {
	endpoint := tw.apiURL + "/2/users/me"

	header, err := tw.signer.AuthorizationHeader(http.MethodGet, endpoint, token, nil, nil)
	if err != nil {
		return gjson.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Authorization", header)

	resp, err := tw.client.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	return gjson.ParseBytes(body), nil
}
