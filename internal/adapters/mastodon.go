package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/pkg/utils"
	"github.com/mattn/go-mastodon"
)

type mastodonPublisher struct {
	client *http.Client
}

// NewMastodonPublisher posts statuses to whichever instance the account
// lives on.
func NewMastodonPublisher(client *http.Client) Publisher {
	return &mastodonPublisher{client: newHTTPClient(client)}
}

func (m *mastodonPublisher) Platform() models.Platform {
	return models.PlatformMastodon
}

// Publish expects the instance URL as the vault secret, falling back to the
// account metadata.
func (m *mastodonPublisher) Publish(ctx context.Context, creds models.Credentials, msg Message) (string, error) {
	instance := InstanceURL(creds.Secret)
	if instance == "" {
		instance = InstanceURL(creds.Metadata[models.MetadataInstanceURL])
	}
	if instance == "" {
		return "", &PlatformError{
			Platform: models.PlatformMastodon,
			Message:  "Mastodon instance URL is missing",
			Tip:      "Reconnect your Mastodon account.",
		}
	}

	c := NewMastodonClient(instance, creds.AccessToken, m.client)

	toot := &mastodon.Toot{
		Status: utils.SmartTruncate(msg.Text, models.CharacterLimits[models.PlatformMastodon]),
	}

	if msg.HasImage() {
		mediaID, err := m.uploadImage(ctx, c, msg.ImageURL)
		if err != nil {
			return "", err
		}
		toot.MediaIDs = []mastodon.ID{mediaID}
	}

	status, err := c.PostStatus(ctx, toot)
	if err != nil {
		return "", mastodonError(err)
	}
	return string(status.ID), nil
}

func (m *mastodonPublisher) uploadImage(ctx context.Context, c *mastodon.Client, imageURL string) (mastodon.ID, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", networkError(models.PlatformMastodon, err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", networkError(models.PlatformMastodon, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &PlatformError{
			Platform: models.PlatformMastodon,
			Code:     resp.StatusCode,
			Message:  fmt.Sprintf("could not fetch image: %s", resp.Status),
		}
	}

	attachment, err := c.UploadMediaFromReader(ctx, resp.Body)
	if err != nil {
		return "", mastodonError(err)
	}
	return attachment.ID, nil
}

// NewMastodonClient returns a go-mastodon client bound to one instance.
func NewMastodonClient(instance, accessToken string, httpClient *http.Client) *mastodon.Client {
	c := mastodon.NewClient(&mastodon.Config{
		Server:      instance,
		AccessToken: accessToken,
	})
	if httpClient != nil {
		c.Client = *httpClient
	}
	return c
}

// InstanceURL normalizes user input like "mastodon.social" into
// "https://mastodon.social".
func InstanceURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}

func mastodonError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return networkError(models.PlatformMastodon, err)
	}

	pe := &PlatformError{Platform: models.PlatformMastodon, Message: err.Error(), Err: err}

	var apiErr *mastodon.APIError
	if !errors.As(err, &apiErr) {
		return pe
	}

	pe.Code = apiErr.StatusCode
	if apiErr.Message != "" {
		pe.Message = apiErr.Message
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		pe.Message = "Mastodon rejected the access token"
		pe.Tip = "Reconnect your Mastodon account."
	case http.StatusTooManyRequests:
		pe.Tip = "Try again later."
	}
	return pe
}
