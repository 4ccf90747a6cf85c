package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
)

// VaultRepository stores the encrypted credentials of social accounts. There
// is at most one entry per account; Connect on SocialAccountRepository writes
// new entries.
type VaultRepository interface {
	GetBySocialAccountID(ctx context.Context, socialAccountID int64) (*models.VaultEntry, error)
	UpdateToken(ctx context.Context, socialAccountID int64, accessToken string, expiresAt *time.Time) error
}

type vaultRepository struct {
	db *sql.DB
}

func NewVaultRepository(db *sql.DB) VaultRepository {
	return &vaultRepository{db: db}
}

func (r *vaultRepository) GetBySocialAccountID(ctx context.Context, socialAccountID int64) (*models.VaultEntry, error) {
	query := `SELECT id, social_account_id, access_token, secret, expires_at, created_at, updated_at
		FROM credential_vault WHERE social_account_id = $1`

	var v models.VaultEntry
	err := r.db.QueryRowContext(ctx, query, socialAccountID).Scan(
		&v.ID, &v.SocialAccountID, &v.AccessToken, &v.Secret, &v.ExpiresAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &v, nil
}

func (r *vaultRepository) UpdateToken(ctx context.Context, socialAccountID int64, accessToken string, expiresAt *time.Time) error {
	query := `
		UPDATE credential_vault
		SET access_token = $1,
			expires_at = COALESCE($2, expires_at),
			updated_at = CURRENT_TIMESTAMP
		WHERE social_account_id = $3
	`
	result, err := r.db.ExecContext(ctx, query, accessToken, expiresAt, socialAccountID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		slog.Info("no rows affected; vault entry may not exist")
		return errors.New("no rows affected; vault entry may not exist")
	}
	return nil
}
