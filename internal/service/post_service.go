package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/transfer"
	"github.com/maheshrc27/postpilot/pkg/utils"
)

type PostService interface {
	// CreatePost stores a draft, or a scheduled post when a date is given.
	// The returned delay is how long until a scheduled post is due.
	CreatePost(ctx context.Context, userID string, pc *transfer.PostCreation) (*models.Post, time.Duration, error)
	List(ctx context.Context, userID string) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID int64, userID string) (*models.Post, error)
	Remove(ctx context.Context, userID string, postID int64) error
	Attempts(ctx context.Context, userID string, postID int64) ([]*models.PublishAttempt, error)
	PreviewCaption(caption string, hashtags []string) map[string]transfer.CaptionPreview
}

type postService struct {
	pr  repository.PostRepository
	pa  repository.PublishAttemptRepository
	now func() time.Time
}

func NewPostService(pr repository.PostRepository, pa repository.PublishAttemptRepository) PostService {
	return &postService{
		pr:  pr,
		pa:  pa,
		now: time.Now,
	}
}

func (s *postService) CreatePost(ctx context.Context, userID string, pc *transfer.PostCreation) (*models.Post, time.Duration, error) {
	if pc == nil {
		err := fmt.Errorf("%w: post creation data is nil", ErrInvalidPost)
		slog.Info(err.Error())
		return nil, 0, err
	}
	if strings.TrimSpace(pc.Caption) == "" {
		err := fmt.Errorf("%w: caption cannot be empty", ErrInvalidPost)
		slog.Info(err.Error())
		return nil, 0, err
	}

	targets := models.ParsePlatforms(pc.Platforms)
	if len(targets) != len(dedupe(pc.Platforms)) {
		err := fmt.Errorf("%w: %s", ErrUnsupportedPlatform, strings.Join(pc.Platforms, ", "))
		slog.Info(err.Error())
		return nil, 0, err
	}
	for _, p := range targets {
		if p == models.PlatformInstagram && pc.MediaURL == "" {
			err := fmt.Errorf("%w: Instagram requires an image", ErrInvalidPost)
			slog.Info(err.Error())
			return nil, 0, err
		}
	}

	timezone := pc.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	scheduledAt, err := scheduleInstant(pc.ScheduledDate, pc.ScheduledTime, timezone)
	if err != nil {
		slog.Info(err.Error())
		return nil, 0, err
	}

	post := &models.Post{
		UserID:          userID,
		Caption:         strings.TrimSpace(pc.Caption),
		Hashtags:        normalizeHashtags(pc.Hashtags),
		MediaURL:        pc.MediaURL,
		Timezone:        timezone,
		Status:          models.PostStatusDraft,
		TargetPlatforms: models.PlatformNames(targets),
		PlatformResults: models.PlatformResults{},
	}

	var delay time.Duration
	if scheduledAt != nil {
		now := s.now()
		if !scheduledAt.After(now) {
			err := fmt.Errorf("%w: scheduled time must be in the future", ErrInvalidPost)
			slog.Info(err.Error())
			return nil, 0, err
		}
		utc := scheduledAt.UTC()
		post.ScheduledAt = &utc
		post.Status = models.PostStatusScheduled
		delay = scheduledAt.Sub(now)
	}

	id, err := s.pr.Create(ctx, nil, post)
	if err != nil {
		return nil, 0, fmt.Errorf("error creating post: %w", err)
	}
	post.ID = id

	slog.Info("post created", "post_id", id, "user_id", userID, "status", post.Status)
	return post, delay, nil
}

// scheduleInstant resolves a wall clock date and time in timezone to an
// instant. No date means no schedule.
// normalizeHashtags drops blank tags and never returns nil.
func normalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func scheduleInstant(date, clock, timezone string) (*time.Time, error) {
	if date == "" {
		if clock != "" {
			return nil, fmt.Errorf("%w: scheduled_time needs a scheduled_date", ErrInvalidPost)
		}
		return nil, nil
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidPost, timezone)
	}

	if clock == "" {
		clock = "00:00"
	}

	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 15:04:05"} {
		t, err := time.ParseInLocation(layout, date+" "+clock, loc)
		if err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: invalid scheduled date or time", ErrInvalidPost)
}

func (s *postService) PostInfo(ctx context.Context, postID int64, userID string) (*models.Post, error) {
	if err := s.checkOwner(ctx, postID, userID); err != nil {
		return nil, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post info: %w", err)
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *postService) List(ctx context.Context, userID string) ([]*models.Post, error) {
	posts, err := s.pr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

func (s *postService) Remove(ctx context.Context, userID string, postID int64) error {
	if err := s.checkOwner(ctx, postID, userID); err != nil {
		return err
	}

	if err := s.pr.Remove(ctx, postID); err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}
	return nil
}

func (s *postService) Attempts(ctx context.Context, userID string, postID int64) ([]*models.PublishAttempt, error) {
	if err := s.checkOwner(ctx, postID, userID); err != nil {
		return nil, err
	}

	attempts, err := s.pa.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error listing publish attempts: %w", err)
	}
	if attempts == nil {
		attempts = []*models.PublishAttempt{}
	}
	return attempts, nil
}

func (s *postService) checkOwner(ctx context.Context, postID int64, userID string) error {
	if postID == 0 {
		slog.Info("post id is not valid")
		return ErrPostNotFound
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		slog.Info("post doesn't exist", "post_id", postID, "user_id", userID)
		return ErrPostNotFound
	}
	return nil
}

// PreviewCaption shows how the composed message fits each platform's limit.
func (s *postService) PreviewCaption(caption string, hashtags []string) map[string]transfer.CaptionPreview {
	message := models.ComposeMessage(caption, hashtags)
	length := utf8.RuneCountInString(message)

	previews := make(map[string]transfer.CaptionPreview, len(models.Platforms))
	for _, p := range models.Platforms {
		limit := models.CharacterLimits[p]
		text := utils.SmartTruncate(message, limit)
		previews[p.String()] = transfer.CaptionPreview{
			Limit:     limit,
			Length:    length,
			Text:      text,
			Truncated: text != message,
		}
	}
	return previews
}
