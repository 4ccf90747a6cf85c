package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/maheshrc27/postpilot/internal/adapters"
	"github.com/maheshrc27/postpilot/internal/cache"
	"github.com/maheshrc27/postpilot/internal/metrics"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/pkg/utils"
)

const (
	publishLockTTL   = 5 * time.Minute
	maxStateWrites   = 5
	noAccountsReason = "No active social accounts found"
)

// PublishService runs posts through the platform adapters and keeps the post
// status folded from the per-platform results.
type PublishService interface {
	// PublishPost is the user triggered path. An empty platforms list falls
	// back to the post's recorded targets.
	PublishPost(ctx context.Context, userID string, postID int64, platforms []string) (*models.Post, error)
	// PublishDue is the scheduled path used by the sweep and the queue. It
	// ignores posts that are no longer scheduled.
	PublishDue(ctx context.Context, postID int64) (*models.Post, error)
}

type publishService struct {
	pr       repository.PostRepository
	sa       repository.SocialAccountRepository
	pa       repository.PublishAttemptRepository
	creds    CredentialService
	registry *adapters.Registry
	locker   cache.Locker
	now      func() time.Time
}

func NewPublishService(
	pr repository.PostRepository,
	sa repository.SocialAccountRepository,
	pa repository.PublishAttemptRepository,
	creds CredentialService,
	registry *adapters.Registry,
	locker cache.Locker) PublishService {
	return &publishService{
		pr:       pr,
		sa:       sa,
		pa:       pa,
		creds:    creds,
		registry: registry,
		locker:   locker,
		now:      time.Now,
	}
}

func (s *publishService) PublishPost(ctx context.Context, userID string, postID int64, platforms []string) (*models.Post, error) {
	owned, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, ErrPostNotFound
	}

	requested := models.ParsePlatforms(platforms)
	if len(platforms) > 0 && len(requested) != len(dedupe(platforms)) {
		return nil, ErrUnsupportedPlatform
	}

	release, err := s.lock(ctx, postID)
	if err != nil {
		return nil, err
	}
	defer release()

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}

	targets, err := s.resolveTargets(ctx, post, requested)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, post, targets)
}

func (s *publishService) PublishDue(ctx context.Context, postID int64) (*models.Post, error) {
	release, err := s.lock(ctx, postID)
	if err != nil {
		return nil, err
	}
	defer release()

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	if post.Status != models.PostStatusScheduled {
		slog.Info("post is no longer scheduled", "post_id", post.ID, "status", post.Status)
		return post, nil
	}

	targets, err := s.resolveTargets(ctx, post, nil)
	if errors.Is(err, ErrNoActiveAccounts) {
		return s.failWithoutAccounts(ctx, post)
	}
	if err != nil {
		return nil, err
	}

	return s.run(ctx, post, targets)
}

func (s *publishService) lock(ctx context.Context, postID int64) (func(), error) {
	release, ok, err := s.locker.Acquire(ctx, "publish:post:"+strconv.FormatInt(postID, 10), publishLockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPublishInProgress
	}
	return release, nil
}

// resolveTargets picks the requested platforms, else the recorded ones, else
// every platform the owner has an active account on. It fails when none of
// the chosen platforms has an active account.
func (s *publishService) resolveTargets(ctx context.Context, post *models.Post, requested []models.Platform) ([]models.Platform, error) {
	accounts, err := s.sa.ListActiveByUserID(ctx, post.UserID)
	if err != nil {
		return nil, err
	}

	active := make(map[models.Platform]bool, len(accounts))
	var activeOrdered []models.Platform
	for _, acc := range accounts {
		p, err := models.ParsePlatform(acc.Platform)
		if err != nil || active[p] {
			continue
		}
		active[p] = true
		activeOrdered = append(activeOrdered, p)
	}

	targets := requested
	if len(targets) == 0 {
		targets = post.Targets()
	}
	if len(targets) == 0 {
		targets = activeOrdered
	}

	for _, p := range targets {
		if active[p] {
			return targets, nil
		}
	}
	return nil, ErrNoActiveAccounts
}

// run publishes to every target not yet successful, in order. A failure on
// one platform never stops the others.
func (s *publishService) run(ctx context.Context, post *models.Post, targets []models.Platform) (*models.Post, error) {
	results := make(map[models.Platform]models.PlatformResult, len(targets))

	for _, platform := range targets {
		if post.PlatformResults.Succeeded(platform) {
			continue
		}
		results[platform] = s.publishOne(ctx, post, platform)
	}

	return s.persist(ctx, post, targets, results)
}

func (s *publishService) publishOne(ctx context.Context, post *models.Post, platform models.Platform) models.PlatformResult {
	started := s.now()
	attempt := &models.PublishAttempt{
		PostID:      post.ID,
		UserID:      post.UserID,
		Platform:    platform.String(),
		AttemptedAt: started,
	}

	remoteID, err := s.publishTo(ctx, post, platform, attempt)

	attemptedAt := started.UTC()
	result := models.PlatformResult{AttemptedAt: &attemptedAt}
	if err != nil {
		result.Status = models.ResultStatusFailed
		result.Error = err.Error()
		attempt.Status = models.ResultStatusFailed
		attempt.ErrorMessage = err.Error()
		slog.Warn("publish failed", "post_id", post.ID, "platform", platform, "error", err.Error())
	} else {
		publishedAt := s.now().UTC()
		result.Status = models.ResultStatusSuccess
		result.PostID = remoteID
		result.PublishedAt = &publishedAt
		attempt.Status = models.ResultStatusSuccess
		attempt.RemoteID = remoteID
		slog.Info("published", "post_id", post.ID, "platform", platform, "remote_id", remoteID)
	}

	metrics.ObservePublish(platform.String(), result.Status, started)
	if _, err := s.pa.Create(ctx, attempt); err != nil {
		slog.Error("could not record publish attempt", "post_id", post.ID, "platform", platform, "error", err.Error())
	}
	return result
}

func (s *publishService) publishTo(ctx context.Context, post *models.Post, platform models.Platform, attempt *models.PublishAttempt) (string, error) {
	publisher, ok := s.registry.Get(platform)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}

	account, creds, err := s.creds.Resolve(ctx, post.UserID, platform)
	if account != nil {
		attempt.SocialAccountID = &account.ID
	}
	if err != nil {
		return "", err
	}

	msg := adapters.Message{Text: post.Message(), ImageURL: post.MediaURL}
	if platform == models.PlatformTwitter {
		// the Twitter adapter sends text as is
		msg.Text = utils.SmartTruncate(msg.Text, models.CharacterLimits[models.PlatformTwitter])
	}

	return publisher.Publish(ctx, creds, msg)
}

// persist writes the run's results with a compare-and-swap on the post
// version. On conflict the row is re-read and the results merged again.
func (s *publishService) persist(ctx context.Context, post *models.Post, targets []models.Platform, results map[models.Platform]models.PlatformResult) (*models.Post, error) {
	for attempt := 0; attempt < maxStateWrites; attempt++ {
		s.apply(post, targets, results)

		ok, err := s.pr.UpdatePublishState(ctx, post)
		if err != nil {
			return nil, fmt.Errorf("save publish state: %w", err)
		}
		if ok {
			slog.Info("post state saved", "post_id", post.ID, "status", post.Status, "version", post.Version)
			return post, nil
		}

		slog.Warn("post changed while publishing, merging", "post_id", post.ID, "attempt", attempt+1)
		fresh, err := s.pr.GetByID(ctx, post.ID)
		if err != nil {
			return nil, err
		}
		if fresh == nil {
			return nil, ErrPostNotFound
		}
		post = fresh
	}
	return nil, fmt.Errorf("save publish state: post %d kept changing", post.ID)
}

// apply merges results into post and refolds its status. A recorded success
// is never replaced by a failure.
func (s *publishService) apply(post *models.Post, targets []models.Platform, results map[models.Platform]models.PlatformResult) {
	if post.PlatformResults == nil {
		post.PlatformResults = models.PlatformResults{}
	}

	for _, platform := range targets {
		r, ok := results[platform]
		if !ok {
			continue
		}
		if r.Status != models.ResultStatusSuccess && post.PlatformResults.Succeeded(platform) {
			continue
		}
		post.PlatformResults.Record(platform, r)
		if r.Status == models.ResultStatusSuccess {
			post.MergePublished(platform)
		}
	}

	post.TargetPlatforms = models.PlatformNames(targets)
	post.Status = models.FoldStatus(targets, post.PlatformResults)

	switch post.Status {
	case models.PostStatusPublished:
		if post.PostedAt == nil {
			now := s.now().UTC()
			post.PostedAt = &now
		}
		post.ErrorMessage = nil
	case models.PostStatusPartiallyPublished:
		post.ErrorMessage = nil
	case models.PostStatusFailed:
		summary := failureSummary(targets, post.PlatformResults)
		post.ErrorMessage = &summary
	}
}

func (s *publishService) failWithoutAccounts(ctx context.Context, post *models.Post) (*models.Post, error) {
	for attempt := 0; attempt < maxStateWrites; attempt++ {
		reason := noAccountsReason
		post.Status = models.PostStatusFailed
		post.ErrorMessage = &reason

		ok, err := s.pr.UpdatePublishState(ctx, post)
		if err != nil {
			return nil, err
		}
		if ok {
			slog.Warn("scheduled post has no active accounts", "post_id", post.ID, "user_id", post.UserID)
			return post, nil
		}

		fresh, err := s.pr.GetByID(ctx, post.ID)
		if err != nil {
			return nil, err
		}
		if fresh == nil {
			return nil, ErrPostNotFound
		}
		if fresh.Status != models.PostStatusScheduled {
			return fresh, nil
		}
		post = fresh
	}
	return nil, fmt.Errorf("save publish state: post %d kept changing", post.ID)
}

// failureSummary lists "platform: error" for every failed target.
func failureSummary(targets []models.Platform, results models.PlatformResults) string {
	var parts []string
	for _, p := range targets {
		r, ok := results.Get(p)
		if !ok || r.Status != models.ResultStatusFailed {
			continue
		}
		parts = append(parts, p.String()+": "+r.Error)
	}
	return strings.Join(parts, "; ")
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if key == "x" {
			key = "twitter"
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
