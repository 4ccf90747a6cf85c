package adapters

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/pkg/utils"
)

const (
	InstagramGraphURL = "https://graph.instagram.com"

	containerPollAttempts = 10
	containerPollInterval = 2 * time.Second
)

type instagramPublisher struct {
	graph        *graphClient
	pollInterval time.Duration
}

// NewInstagramPublisher publishes through the container, poll, publish
// sequence. A zero pollInterval uses the default of two seconds.
func NewInstagramPublisher(baseURL, version string, client *http.Client, pollInterval time.Duration) Publisher {
	if baseURL == "" {
		baseURL = InstagramGraphURL
	}
	if pollInterval <= 0 {
		pollInterval = containerPollInterval
	}
	return &instagramPublisher{
		graph: &graphClient{
			platform: models.PlatformInstagram,
			baseURL:  baseURL,
			version:  version,
			client:   newHTTPClient(client),
		},
		pollInterval: pollInterval,
	}
}

func (ig *instagramPublisher) Platform() models.Platform {
	return models.PlatformInstagram
}

func (ig *instagramPublisher) Publish(ctx context.Context, creds models.Credentials, msg Message) (string, error) {
	if !msg.HasImage() {
		return "", &PlatformError{
			Platform: models.PlatformInstagram,
			Message:  "Instagram requires an image",
			Tip:      "Attach an image to the post.",
		}
	}

	containerID, err := ig.createContainer(ctx, creds, msg)
	if err != nil {
		return "", err
	}

	if err := ig.waitForContainer(ctx, creds.AccessToken, containerID); err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("creation_id", containerID)
	form.Set("access_token", creds.AccessToken)

	res, err := ig.graph.post(ctx, creds.AccountID+"/media_publish", form)
	if err != nil {
		return "", err
	}
	return res.Get("id").String(), nil
}

func (ig *instagramPublisher) createContainer(ctx context.Context, creds models.Credentials, msg Message) (string, error) {
	form := url.Values{}
	form.Set("image_url", msg.ImageURL)
	form.Set("caption", utils.SmartTruncate(msg.Text, models.CharacterLimits[models.PlatformInstagram]))
	form.Set("access_token", creds.AccessToken)

	res, err := ig.graph.post(ctx, creds.AccountID+"/media", form)
	if err != nil {
		return "", err
	}

	id := res.Get("id").String()
	if id == "" {
		return "", &PlatformError{Platform: models.PlatformInstagram, Message: "No media container id returned"}
	}
	return id, nil
}

// waitForContainer polls the container until it is FINISHED. Running out of
// attempts is a terminal failure.
func (ig *instagramPublisher) waitForContainer(ctx context.Context, accessToken, containerID string) error {
	query := url.Values{}
	query.Set("fields", "status_code")
	query.Set("access_token", accessToken)

	ticker := time.NewTicker(ig.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < containerPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return networkError(models.PlatformInstagram, ctx.Err())
		case <-ticker.C:
		}

		res, err := ig.graph.get(ctx, containerID, query)
		if err != nil {
			return err
		}

		switch res.Get("status_code").String() {
		case "FINISHED":
			return nil
		case "ERROR", "EXPIRED":
			return &PlatformError{
				Platform: models.PlatformInstagram,
				Message:  "Media processing failed",
				Tip:      "Check that the image is a public JPEG or PNG.",
			}
		}
	}

	return &PlatformError{Platform: models.PlatformInstagram, Message: "Media processing timeout"}
}
