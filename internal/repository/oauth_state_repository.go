package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
)

type OAuthStateRepository interface {
	Create(ctx context.Context, state *models.OAuthState) error
	Take(ctx context.Context, flowToken string) (*models.OAuthState, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type oauthStateRepository struct {
	db *sql.DB
}

func NewOAuthStateRepository(db *sql.DB) OAuthStateRepository {
	return &oauthStateRepository{db: db}
}

func (r *oauthStateRepository) Create(ctx context.Context, state *models.OAuthState) error {
	query := `
		INSERT INTO oauth_states (flow_token, user_id, platform, token, token_secret, instance_url,
			client_id, client_secret, page_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		state.FlowToken,
		state.UserID,
		state.Platform,
		state.Token,
		state.TokenSecret,
		state.InstanceURL,
		state.ClientID,
		state.ClientSecret,
		state.PageID,
		state.ExpiresAt,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Take deletes and returns the flow in one statement, so a flow token can be
// redeemed once. It returns nil when the token is unknown.
func (r *oauthStateRepository) Take(ctx context.Context, flowToken string) (*models.OAuthState, error) {
	query := `
		DELETE FROM oauth_states WHERE flow_token = $1
		RETURNING flow_token, user_id, platform, token, token_secret, instance_url,
			client_id, client_secret, page_id, expires_at, created_at
	`

	var s models.OAuthState
	err := r.db.QueryRowContext(ctx, query, flowToken).Scan(
		&s.FlowToken, &s.UserID, &s.Platform, &s.Token, &s.TokenSecret, &s.InstanceURL,
		&s.ClientID, &s.ClientSecret, &s.PageID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &s, nil
}

func (r *oauthStateRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at <= $1`, now)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return result.RowsAffected()
}
