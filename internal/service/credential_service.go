package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/pkg/utils"
)

// CredentialService is the vault front: it encrypts secrets on the way in and
// resolves decrypted credentials for a publish.
type CredentialService interface {
	Resolve(ctx context.Context, userID string, platform models.Platform) (*models.SocialAccount, models.Credentials, error)
	Connect(ctx context.Context, sa *models.SocialAccount, accessToken, secret string, expiresAt *time.Time) (int64, error)
	UpdateToken(ctx context.Context, socialAccountID int64, accessToken string, expiresAt *time.Time) error
	Decrypt(value string) (string, error)
}

type credentialService struct {
	secretKey []byte
	sa        repository.SocialAccountRepository
	vr        repository.VaultRepository
}

func NewCredentialService(secretKey string, sa repository.SocialAccountRepository, vr repository.VaultRepository) CredentialService {
	return &credentialService{
		secretKey: []byte(secretKey),
		sa:        sa,
		vr:        vr,
	}
}

func (s *credentialService) Resolve(ctx context.Context, userID string, platform models.Platform) (*models.SocialAccount, models.Credentials, error) {
	account, err := s.sa.GetActiveByPlatform(ctx, userID, platform)
	if err != nil {
		return nil, models.Credentials{}, fmt.Errorf("lookup %s account: %w", platform, err)
	}
	if account == nil {
		return nil, models.Credentials{}, &CredentialError{
			Platform: platform,
			Message:  fmt.Sprintf("No active %s account connected", platform),
		}
	}

	entry, err := s.vr.GetBySocialAccountID(ctx, account.ID)
	if err != nil {
		return account, models.Credentials{}, fmt.Errorf("lookup %s credentials: %w", platform, err)
	}
	if entry == nil {
		return account, models.Credentials{}, &CredentialError{
			Platform: platform,
			Message:  fmt.Sprintf("Credentials for %s are missing", platform),
		}
	}

	accessToken, err := s.Decrypt(entry.AccessToken)
	if err != nil {
		slog.Info(err.Error())
		return account, models.Credentials{}, &CredentialError{Platform: platform, Message: "Stored credentials are unreadable", Err: err}
	}
	secret, err := s.Decrypt(entry.Secret)
	if err != nil {
		slog.Info(err.Error())
		return account, models.Credentials{}, &CredentialError{Platform: platform, Message: "Stored credentials are unreadable", Err: err}
	}

	return account, models.Credentials{
		AccountID:   account.AccountID,
		AccessToken: accessToken,
		Secret:      secret,
		Metadata:    account.Metadata,
	}, nil
}

func (s *credentialService) Connect(ctx context.Context, sa *models.SocialAccount, accessToken, secret string, expiresAt *time.Time) (int64, error) {
	encryptedToken, err := utils.Encrypt([]byte(accessToken), s.secretKey)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	encryptedSecret, err := utils.Encrypt([]byte(secret), s.secretKey)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	id, err := s.sa.Connect(ctx, sa, &models.VaultEntry{
		AccessToken: encryptedToken,
		Secret:      encryptedSecret,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return 0, fmt.Errorf("store %s account: %w", sa.Platform, err)
	}

	slog.Info("social account connected", "user_id", sa.UserID, "platform", sa.Platform, "account_id", id)
	return id, nil
}

func (s *credentialService) UpdateToken(ctx context.Context, socialAccountID int64, accessToken string, expiresAt *time.Time) error {
	encryptedToken, err := utils.Encrypt([]byte(accessToken), s.secretKey)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return s.vr.UpdateToken(ctx, socialAccountID, encryptedToken, expiresAt)
}

func (s *credentialService) Decrypt(value string) (string, error) {
	return utils.Decrypt(value, s.secretKey)
}
