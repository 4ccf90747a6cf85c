package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/maheshrc27/postpilot/internal/adapters"
	"github.com/maheshrc27/postpilot/internal/models"
	"golang.org/x/oauth2"
)

const instagramScopes = "instagram_business_basic,instagram_business_content_publish"

// InstagramEndpoint is the Instagram business login code flow.
var InstagramEndpoint = oauth2.Endpoint{
	AuthURL:   "https://www.instagram.com/oauth/authorize",
	TokenURL:  "https://api.instagram.com/oauth/access_token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// InstagramService connects Instagram business accounts and keeps their
// long lived tokens fresh.
type InstagramService interface {
	Connector
	RefreshToken(ctx context.Context, accessToken string) (string, time.Time, error)
}

type instagramService struct {
	oauth    *oauth2.Config
	graphURL string
	version  string
	client   *http.Client
	now      func() time.Time
}

func NewInstagramService(clientID, clientSecret, callbackURL string, endpoint oauth2.Endpoint, graphURL, version string, client *http.Client) InstagramService {
	if endpoint.TokenURL == "" {
		endpoint = InstagramEndpoint
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &instagramService{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{instagramScopes},
			Endpoint:     endpoint,
		},
		graphURL: graphURL,
		version:  version,
		client:   client,
		now:      time.Now,
	}
}

func (ig *instagramService) Platform() models.Platform {
	return models.PlatformInstagram
}

func (ig *instagramService) Begin(ctx context.Context, state *models.OAuthState, params url.Values) (string, error) {
	return ig.oauth.AuthCodeURL(state.FlowToken), nil
}

func (ig *instagramService) Complete(ctx context.Context, state *models.OAuthState, query url.Values) (*Connection, error) {
	code := query.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrInvalidRequest)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, ig.client)
	shortLived, err := ig.oauth.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to get short-lived token: %w", err)
	}

	longLived, err := adapters.GraphGet(ctx, ig.client, models.PlatformInstagram, ig.graphURL, "", "access_token", url.Values{
		"grant_type":    {"ig_exchange_token"},
		"client_secret": {ig.oauth.ClientSecret},
		"access_token":  {shortLived.AccessToken},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get long-lived token: %w", err)
	}
	accessToken := longLived.Get("access_token").String()
	expiresAt := ig.now().Add(time.Duration(longLived.Get("expires_in").Int()) * time.Second)

	me, err := adapters.GraphGet(ctx, ig.client, models.PlatformInstagram, ig.graphURL, ig.version, "me", url.Values{
		"fields":       {"user_id,username"},
		"access_token": {accessToken},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get instagram user info: %w", err)
	}

	// user_id is the professional account id the content publishing API wants
	accountID := me.Get("user_id").String()
	if accountID == "" {
		accountID = me.Get("id").String()
	}

	return &Connection{
		Account: &models.SocialAccount{
			AccountID:       accountID,
			AccountUsername: me.Get("username").String(),
			Metadata:        models.AccountMetadata{},
		},
		AccessToken: accessToken,
		ExpiresAt:   &expiresAt,
	}, nil
}

func (ig *instagramService) RefreshToken(ctx context.Context, accessToken string) (string, time.Time, error) {
	result, err := adapters.GraphGet(ctx, ig.client, models.PlatformInstagram, ig.graphURL, "", "refresh_access_token", url.Values{
		"grant_type":   {"ig_refresh_token"},
		"access_token": {accessToken},
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("refresh instagram token: %w", err)
	}

	refreshed := result.Get("access_token").String()
	if refreshed == "" {
		return "", time.Time{}, fmt.Errorf("refresh instagram token: empty access token")
	}
	return refreshed, ig.now().Add(time.Duration(result.Get("expires_in").Int()) * time.Second), nil
}
