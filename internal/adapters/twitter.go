package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/pkg/oauth1"
	"github.com/tidwall/gjson"
)

const TwitterAPIURL = "https://api.x.com"

type twitterPublisher struct {
	baseURL string
	signer  *oauth1.Signer
	client  *http.Client
}

// NewTwitterPublisher posts with the v2 API. The message is sent as is; fitting
// it into 280 characters is up to the caller.
func NewTwitterPublisher(baseURL string, signer *oauth1.Signer, client *http.Client) Publisher {
	if baseURL == "" {
		baseURL = TwitterAPIURL
	}
	return &twitterPublisher{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
		client:  newHTTPClient(client),
	}
}

func (tw *twitterPublisher) Platform() models.Platform {
	return models.PlatformTwitter
}

func (tw *twitterPublisher) Publish(ctx context.Context, creds models.Credentials, msg Message) (string, error) {
	endpoint := tw.baseURL + "/2/tweets"

	body, err := json.Marshal(map[string]string{"text": msg.Text})
	if err != nil {
		return "", networkError(models.PlatformTwitter, err)
	}

	// JSON bodies are not part of the signature base string
	auth, err := tw.signer.AuthorizationHeader(http.MethodPost, endpoint,
		oauth1.Token{Token: creds.AccessToken, Secret: creds.Secret}, nil, nil)
	if err != nil {
		return "", networkError(models.PlatformTwitter, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", networkError(models.PlatformTwitter, err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := tw.client.Do(req)
	if err != nil {
		return "", networkError(models.PlatformTwitter, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", networkError(models.PlatformTwitter, err)
	}

	result := gjson.ParseBytes(respBody)
	if resp.StatusCode >= http.StatusBadRequest {
		return "", twitterError(resp.StatusCode, result)
	}

	return result.Get("data.id").String(), nil
}

func twitterError(status int, body gjson.Result) *PlatformError {
	message := body.Get("detail").String()
	if message == "" {
		message = body.Get("errors.0.message").String()
	}
	if message == "" {
		message = body.Get("title").String()
	}
	if message == "" {
		message = http.StatusText(status)
	}

	pe := &PlatformError{Platform: models.PlatformTwitter, Code: status, Message: message}
	switch status {
	case http.StatusUnauthorized:
		pe.Message = "Twitter authentication failed"
		pe.Tip = "Reconnect your Twitter account."
	case http.StatusForbidden:
		pe.Tip = "Check the app has read and write permissions."
	case http.StatusTooManyRequests:
		pe.Message = "Rate limit exceeded"
		pe.Tip = "Try again later."
	}
	return pe
}
