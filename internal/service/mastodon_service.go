package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/maheshrc27/postpilot/internal/adapters"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/mattn/go-mastodon"
)

const mastodonScopes = "read:accounts write:statuses write:media"

type mastodonConnector struct {
	appName     string
	website     string
	callbackURL string
	client      *http.Client
}

// NewMastodonConnector registers an app on the user's instance for every flow,
// since client credentials are per instance.
func NewMastodonConnector(appName, website, callbackURL string, client *http.Client) Connector {
	if client == nil {
		client = http.DefaultClient
	}
	return &mastodonConnector{
		appName:     appName,
		website:     website,
		callbackURL: callbackURL,
		client:      client,
	}
}

func (m *mastodonConnector) Platform() models.Platform {
	return models.PlatformMastodon
}

func (m *mastodonConnector) Begin(ctx context.Context, state *models.OAuthState, params url.Values) (string, error) {
	instance := adapters.InstanceURL(params.Get("instance"))
	if instance == "" {
		return "", fmt.Errorf("%w: instance is required", ErrInvalidRequest)
	}

	app, err := mastodon.RegisterApp(ctx, &mastodon.AppConfig{
		Client:       *m.client,
		Server:       instance,
		ClientName:   m.appName,
		RedirectURIs: m.callbackURL,
		Scopes:       mastodonScopes,
		Website:      m.website,
	})
	if err != nil {
		return "", fmt.Errorf("register app on %s: %w", instance, err)
	}

	authURL, err := url.Parse(app.AuthURI)
	if err != nil || app.AuthURI == "" {
		return "", fmt.Errorf("register app on %s: no authorization url", instance)
	}
	q := authURL.Query()
	q.Set("state", state.FlowToken)
	authURL.RawQuery = q.Encode()

	state.InstanceURL = instance
	state.ClientID = app.ClientID
	state.ClientSecret = app.ClientSecret

	return authURL.String(), nil
}

func (m *mastodonConnector) Complete(ctx context.Context, state *models.OAuthState, query url.Values) (*Connection, error) {
	code := query.Get("code")
	if code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrInvalidRequest)
	}

	c := mastodon.NewClient(&mastodon.Config{
		Server:       state.InstanceURL,
		ClientID:     state.ClientID,
		ClientSecret: state.ClientSecret,
	})
	c.Client = *m.client

	if err := c.AuthenticateToken(ctx, code, m.callbackURL); err != nil {
		return nil, fmt.Errorf("mastodon token exchange: %w", err)
	}

	account, err := c.GetAccountCurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("mastodon verify credentials: %w", err)
	}

	host := state.InstanceURL
	if u, err := url.Parse(state.InstanceURL); err == nil && u.Host != "" {
		host = u.Host
	}
	username := account.Acct
	if !strings.Contains(username, "@") {
		username = "@" + username + "@" + host
	}

	return &Connection{
		Account: &models.SocialAccount{
			AccountID:       string(account.ID),
			AccountUsername: username,
			Metadata:        models.AccountMetadata{models.MetadataInstanceURL: state.InstanceURL},
		},
		AccessToken: c.Config.AccessToken,
		Secret:      state.InstanceURL,
	}, nil
}
