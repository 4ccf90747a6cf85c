package job

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/service"
)

const refreshWindow = 30 * time.Minute

type TokenRefreshJob struct {
	sr     repository.SocialAccountRepository
	states repository.OAuthStateRepository
	creds  service.CredentialService
	ig     service.InstagramService
	now    func() time.Time
}

func NewTokenRefreshJob(
	sr repository.SocialAccountRepository,
	states repository.OAuthStateRepository,
	creds service.CredentialService,
	ig service.InstagramService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr:     sr,
		states: states,
		creds:  creds,
		ig:     ig,
		now:    time.Now,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	if _, err := c.Refresh(context.Background()); err != nil {
		slog.Error("token refresh failed", "error", err.Error())
	}
}

// Refresh renews Instagram tokens expiring soon and purges stale connection
// flows. It returns the number of refreshed accounts.
func (c *TokenRefreshJob) Refresh(ctx context.Context) (int, error) {
	now := c.now()

	accounts, err := c.sr.ListExpiring(ctx, models.PlatformInstagram, now.Add(refreshWindow))
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	var (
		wg        sync.WaitGroup
		refreshed atomic.Int64
	)

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.ExpiringCredential) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.refreshInstagram(ctx, acc); err != nil {
				slog.Info("Unable to refresh tokens for Instagram", "account_id", acc.Account.ID, "error", err.Error())
				return
			}
			refreshed.Add(1)
		}(acc)
	}
	wg.Wait()

	purged, err := c.states.DeleteExpired(ctx, now)
	if err != nil {
		slog.Info(err.Error())
		return int(refreshed.Load()), err
	}
	if purged > 0 {
		slog.Info("expired connection flows purged", "count", purged)
	}

	return int(refreshed.Load()), nil
}

func (c *TokenRefreshJob) refreshInstagram(ctx context.Context, acc *models.ExpiringCredential) error {
	current, err := c.creds.Decrypt(acc.Vault.AccessToken)
	if err != nil {
		return err
	}

	token, expiresAt, err := c.ig.RefreshToken(ctx, current)
	if err != nil {
		return err
	}

	return c.creds.UpdateToken(ctx, acc.Account.ID, token, &expiresAt)
}
