package models

import "time"

// OAuthState is the server side half of an in-flight connection flow, keyed
// by a random single-use flow token.
type OAuthState struct {
	FlowToken    string    `db:"flow_token"`
	UserID       string    `db:"user_id"`
	Platform     string    `db:"platform"`
	Token        string    `db:"token"`
	TokenSecret  string    `db:"token_secret"`
	InstanceURL  string    `db:"instance_url"`
	ClientID     string    `db:"client_id"`
	ClientSecret string    `db:"client_secret"`
	PageID       string    `db:"page_id"`
	ExpiresAt    time.Time `db:"expires_at"`
	CreatedAt    time.Time `db:"created_at"`
}

func (s *OAuthState) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
