package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/maheshrc27/postpilot/internal/adapters"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

var facebookScopes = []string{"pages_show_list", "pages_manage_posts", "pages_read_engagement"}

type facebookConnector struct {
	oauth    *oauth2.Config
	graphURL string
	version  string
	client   *http.Client
}

// NewFacebookConnector runs the server side code flow and connects one page.
// An empty endpoint means facebook.Endpoint.
func NewFacebookConnector(appID, appSecret, callbackURL string, endpoint oauth2.Endpoint, graphURL, version string, client *http.Client) Connector {
	if endpoint.TokenURL == "" {
		endpoint = facebook.Endpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &facebookConnector{
		oauth: &oauth2.Config{
			ClientID:     appID,
			ClientSecret: appSecret,
			RedirectURL:  callbackURL,
			Scopes:       facebookScopes,
			Endpoint:     endpoint,
		},
		graphURL: graphURL,
		version:  version,
		client:   client,
	}
}

func (f *facebookConnector) Platform() models.Platform {
	return models.PlatformFacebook
}

func (f *facebookConnector) Begin(ctx context.Context, state *models.OAuthState, params url.Values) (string, error) {
	state.PageID = params.Get("page_id")
	return f.oauth.AuthCodeURL(state.FlowToken), nil
}

func (f *facebookConnector) Complete(ctx context.Context, state *models.OAuthState, query url.Values) (*Connection, error) {
	code := query.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrInvalidRequest)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)
	token, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("facebook token exchange: %w", err)
	}

	// page tokens listed with a long lived user token do not expire
	longLived, err := adapters.GraphGet(ctx, f.client, models.PlatformFacebook, f.graphURL, f.version, "oauth/access_token", url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {f.oauth.ClientID},
		"client_secret":     {f.oauth.ClientSecret},
		"fb_exchange_token": {token.AccessToken},
	})
	if err != nil {
		return nil, fmt.Errorf("facebook long-lived token exchange: %w", err)
	}
	userToken := longLived.Get("access_token").String()
	if userToken == "" {
		return nil, fmt.Errorf("facebook long-lived token exchange: empty access token")
	}

	pages, err := adapters.GraphGet(ctx, f.client, models.PlatformFacebook, f.graphURL, f.version, "me/accounts", url.Values{
		"fields":       {"id,name,access_token"},
		"access_token": {userToken},
	})
	if err != nil {
		return nil, fmt.Errorf("facebook list pages: %w", err)
	}

	page, ok := pickPage(pages.Get("data"), state.PageID)
	if !ok {
		if state.PageID != "" {
			return nil, fmt.Errorf("%w: page %s is not managed by this account", ErrInvalidRequest, state.PageID)
		}
		return nil, fmt.Errorf("%w: no Facebook pages found for this account", ErrInvalidRequest)
	}

	pageID := page.Get("id").String()
	pageName := page.Get("name").String()

	return &Connection{
		Account: &models.SocialAccount{
			AccountID:       pageID,
			AccountUsername: pageName,
			Metadata: models.AccountMetadata{
				models.MetadataPageID:   pageID,
				models.MetadataPageName: pageName,
			},
		},
		AccessToken: page.Get("access_token").String(),
	}, nil
}

// pickPage returns the requested page, or the first one when none was asked for.
func pickPage(pages gjson.Result, pageID string) (gjson.Result, bool) {
	var found gjson.Result
	pages.ForEach(func(_, page gjson.Result) bool {
		if pageID == "" || page.Get("id").String() == pageID {
			found = page
			return false
		}
		return true
	})
	return found, found.Exists()
}
