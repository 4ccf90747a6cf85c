package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
)

type SocialAccountRepository interface {
	Connect(ctx context.Context, sa *models.SocialAccount, vault *models.VaultEntry) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	GetActiveByPlatform(ctx context.Context, userID string, platform models.Platform) (*models.SocialAccount, error)
	ListActiveByUserID(ctx context.Context, userID string) ([]*models.SocialAccount, error)
	ListExpiring(ctx context.Context, platform models.Platform, before time.Time) ([]*models.ExpiringCredential, error)
	CheckByUserID(ctx context.Context, accountID int64, userID string) (bool, error)
	Deactivate(ctx context.Context, id int64) error
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

const socialAccountColumns = `id, user_id, platform, account_id, account_username, is_active, metadata, created_at, updated_at`

func scanSocialAccount(row rowScanner) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	err := row.Scan(&sa.ID, &sa.UserID, &sa.Platform, &sa.AccountID, &sa.AccountUsername,
		&sa.IsActive, &sa.Metadata, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

// Connect replaces the user's account for sa.Platform in one transaction:
// earlier accounts are deactivated and their vault entries dropped before
// the new account and its vault entry are written.
func (r *socialAccountRepository) Connect(ctx context.Context, sa *models.SocialAccount, vault *models.VaultEntry) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	defer tx.Rollback()

	deleteVaultQuery := `
		DELETE FROM credential_vault
		WHERE social_account_id IN (
			SELECT id FROM social_accounts WHERE user_id = $1 AND platform = $2
		)
	`
	if _, err := tx.ExecContext(ctx, deleteVaultQuery, sa.UserID, sa.Platform); err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	deactivateQuery := `
		UPDATE social_accounts
		SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $1 AND platform = $2 AND is_active
	`
	if _, err := tx.ExecContext(ctx, deactivateQuery, sa.UserID, sa.Platform); err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	insertAccountQuery := `
		INSERT INTO social_accounts (user_id, platform, account_id, account_username, is_active, metadata)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		RETURNING id
	`
	var id int64
	err = tx.QueryRowContext(ctx, insertAccountQuery,
		sa.UserID,
		sa.Platform,
		sa.AccountID,
		sa.AccountUsername,
		sa.Metadata,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	insertVaultQuery := `
		INSERT INTO credential_vault (social_account_id, access_token, secret, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.ExecContext(ctx, insertVaultQuery, id, vault.AccessToken, vault.Secret, vault.ExpiresAt); err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	sa.ID = id
	sa.IsActive = true
	vault.SocialAccountID = id
	return id, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE id = $1`

	sa, err := scanSocialAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return sa, nil
}

func (r *socialAccountRepository) GetActiveByPlatform(ctx context.Context, userID string, platform models.Platform) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts
		WHERE user_id = $1 AND platform = $2 AND is_active
		ORDER BY created_at DESC
		LIMIT 1`

	sa, err := scanSocialAccount(r.db.QueryRowContext(ctx, query, userID, platform.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return sa, nil
}

func (r *socialAccountRepository) ListActiveByUserID(ctx context.Context, userID string) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts
		WHERE user_id = $1 AND is_active
		ORDER BY platform`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := scanSocialAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, sa)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return accounts, nil
}

// ListExpiring returns active accounts of platform whose token expires before
// the given time.
func (r *socialAccountRepository) ListExpiring(ctx context.Context, platform models.Platform, before time.Time) ([]*models.ExpiringCredential, error) {
	query := `SELECT
			sa.id, sa.user_id, sa.platform, sa.account_id, sa.account_username, sa.is_active,
			sa.metadata, sa.created_at, sa.updated_at,
			cv.id, cv.social_account_id, cv.access_token, cv.secret, cv.expires_at
		FROM social_accounts sa
		JOIN credential_vault cv ON cv.social_account_id = sa.id
		WHERE sa.platform = $1 AND sa.is_active AND cv.expires_at IS NOT NULL AND cv.expires_at < $2`

	rows, err := r.db.QueryContext(ctx, query, platform.String(), before)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var creds []*models.ExpiringCredential
	for rows.Next() {
		var c models.ExpiringCredential
		err := rows.Scan(
			&c.Account.ID, &c.Account.UserID, &c.Account.Platform, &c.Account.AccountID,
			&c.Account.AccountUsername, &c.Account.IsActive, &c.Account.Metadata,
			&c.Account.CreatedAt, &c.Account.UpdatedAt,
			&c.Vault.ID, &c.Vault.SocialAccountID, &c.Vault.AccessToken, &c.Vault.Secret, &c.Vault.ExpiresAt,
		)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		creds = append(creds, &c)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return creds, nil
}

func (r *socialAccountRepository) CheckByUserID(ctx context.Context, accountID int64, userID string) (bool, error) {
	query := "SELECT 1 FROM social_accounts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, accountID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

// Deactivate soft-deletes the account and drops its vault entry.
func (r *socialAccountRepository) Deactivate(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM credential_vault WHERE social_account_id = $1`, id); err != nil {
		slog.Info(err.Error())
		return err
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE social_accounts SET is_active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
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
		slog.Info("no rows affected; account may not exist")
		return errors.New("no rows affected; account may not exist")
	}

	if err := tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
