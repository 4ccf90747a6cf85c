package adapters

import (
	"context"
	"net/http"
	"net/url"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/pkg/utils"
)

const FacebookGraphURL = "https://graph.facebook.com"

type facebookPublisher struct {
	graph *graphClient
}

func NewFacebookPublisher(baseURL, version string, client *http.Client) Publisher {
	if baseURL == "" {
		baseURL = FacebookGraphURL
	}
	return &facebookPublisher{graph: &graphClient{
		platform: models.PlatformFacebook,
		baseURL:  baseURL,
		version:  version,
		client:   newHTTPClient(client),
	}}
}

func (f *facebookPublisher) Platform() models.Platform {
	return models.PlatformFacebook
}

// Publish posts to the page feed, or to the page photos when an image is
// attached. creds.AccessToken is the page access token.
func (f *facebookPublisher) Publish(ctx context.Context, creds models.Credentials, msg Message) (string, error) {
	pageID := creds.Metadata[models.MetadataPageID]
	if pageID == "" {
		pageID = creds.AccountID
	}

	text := utils.SmartTruncate(msg.Text, models.CharacterLimits[models.PlatformFacebook])

	form := url.Values{}
	form.Set("message", text)
	form.Set("access_token", creds.AccessToken)

	path := pageID + "/feed"
	if msg.HasImage() {
		path = pageID + "/photos"
		form.Set("url", msg.ImageURL)
		form.Set("published", "true")
	}

	res, err := f.graph.post(ctx, path, form)
	if err != nil {
		return "", err
	}

	// photos answer with both the photo id and the feed post id
	if postID := res.Get("post_id").String(); postID != "" {
		return postID, nil
	}
	return res.Get("id").String(), nil
}
