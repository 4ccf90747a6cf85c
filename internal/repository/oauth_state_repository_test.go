package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var oauthStateColumns = []string{"flow_token", "user_id", "platform", "token", "token_secret",
	"instance_url", "client_id", "client_secret", "page_id", "expires_at", "created_at"}

func TestOAuthStateCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOAuthStateRepository(db)

	expires := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO oauth_states").
		WithArgs("flow-1", "user-1", "mastodon", "", "", "https://mastodon.social",
			"client-id", "client-secret", "", expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.OAuthState{
		FlowToken:    "flow-1",
		UserID:       "user-1",
		Platform:     "mastodon",
		InstanceURL:  "https://mastodon.social",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		ExpiresAt:    expires,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOAuthStateTake(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOAuthStateRepository(db)

	expires := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)
	mock.ExpectQuery("DELETE FROM oauth_states WHERE flow_token = \\$1\\s+RETURNING").
		WithArgs("flow-1").
		WillReturnRows(sqlmock.NewRows(oauthStateColumns).AddRow(
			"flow-1", "user-1", "twitter", "req-token", "req-secret", "", "", "", "",
			expires, expires.Add(-10*time.Minute)))

	state, err := repo.Take(context.Background(), "flow-1")

	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "user-1", state.UserID)
	assert.Equal(t, "twitter", state.Platform)
	assert.Equal(t, "req-secret", state.TokenSecret)
	assert.Equal(t, expires, state.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOAuthStateTakeUnknown(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOAuthStateRepository(db)

	mock.ExpectQuery("DELETE FROM oauth_states").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(oauthStateColumns))

	state, err := repo.Take(context.Background(), "missing")

	assert.NoError(t, err)
	assert.Nil(t, state)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOAuthStateDeleteExpired(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOAuthStateRepository(db)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM oauth_states WHERE expires_at <= \\$1").WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
