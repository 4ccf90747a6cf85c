package service

import (
	"context"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPostService(now time.Time) (*postService, *fakePostRepo, *fakeAttemptRepo) {
	posts := newFakePostRepo()
	attempts := &fakeAttemptRepo{}
	svc := NewPostService(posts, attempts).(*postService)
	svc.now = func() time.Time { return now }
	return svc, posts, attempts
}

func TestCreatePostDraft(t *testing.T) {
	svc, posts, _ := newTestPostService(time.Now())

	post, delay, err := svc.CreatePost(context.Background(), "user-1", &transfer.PostCreation{
		Caption:   "  hello  ",
		Hashtags:  []string{"go"},
		Platforms: []string{"X", "telegram", "twitter"},
	})

	require.NoError(t, err)
	assert.Equal(t, models.PostStatusDraft, post.Status)
	assert.Zero(t, delay)
	assert.Nil(t, post.ScheduledAt)
	assert.Equal(t, "hello", post.Caption)
	assert.Equal(t, []string{"twitter", "telegram"}, post.TargetPlatforms)
	assert.Equal(t, "UTC", post.Timezone)
	assert.NotNil(t, posts.get(post.ID))
}

func TestCreatePostWithoutHashtags(t *testing.T) {
	svc, _, _ := newTestPostService(time.Now())

	post, _, err := svc.CreatePost(context.Background(), "user-1", &transfer.PostCreation{
		Caption:   "hello",
		Platforms: []string{"telegram"},
	})
	require.NoError(t, err)
	require.NotNil(t, post.Hashtags)
	assert.Empty(t, post.Hashtags)

	post, _, err = svc.CreatePost(context.Background(), "user-1", &transfer.PostCreation{
		Caption:   "hello",
		Hashtags:  []string{" go ", "", "  "},
		Platforms: []string{"telegram"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, post.Hashtags)
}

func TestCreatePostScheduledInTimezone(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _, _ := newTestPostService(now)

	post, delay, err := svc.CreatePost(context.Background(), "user-1", &transfer.PostCreation{
		Caption:       "midnight launch",
		Platforms:     []string{"mastodon"},
		ScheduledDate: "2026-03-02",
		ScheduledTime: "00:00",
		Timezone:      "Europe/Berlin",
	})

	require.NoError(t, err)
	assert.Equal(t, models.PostStatusScheduled, post.Status)
	require.NotNil(t, post.ScheduledAt)
	// midnight in Berlin is 23:00 UTC the day before
	assert.Equal(t, time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC), *post.ScheduledAt)
	assert.Equal(t, 11*time.Hour, delay)
}

func TestCreatePostValidation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		pc   *transfer.PostCreation
		err  error
	}{
		{name: "nil", pc: nil, err: ErrInvalidPost},
		{name: "empty caption", pc: &transfer.PostCreation{Caption: "  "}, err: ErrInvalidPost},
		{name: "unknown platform", pc: &transfer.PostCreation{Caption: "c", Platforms: []string{"myspace"}}, err: ErrUnsupportedPlatform},
		{name: "instagram without image", pc: &transfer.PostCreation{Caption: "c", Platforms: []string{"instagram"}}, err: ErrInvalidPost},
		{name: "bad timezone", pc: &transfer.PostCreation{Caption: "c", ScheduledDate: "2026-03-02", Timezone: "Mars/Olympus"}, err: ErrInvalidPost},
		{name: "bad date", pc: &transfer.PostCreation{Caption: "c", ScheduledDate: "02/03/2026"}, err: ErrInvalidPost},
		{name: "time without date", pc: &transfer.PostCreation{Caption: "c", ScheduledTime: "10:00"}, err: ErrInvalidPost},
		{name: "in the past", pc: &transfer.PostCreation{Caption: "c", ScheduledDate: "2026-02-28", ScheduledTime: "10:00"}, err: ErrInvalidPost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestPostService(now)
			_, _, err := svc.CreatePost(context.Background(), "user-1", tt.pc)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPostOwnership(t *testing.T) {
	svc, posts, attempts := newTestPostService(time.Now())
	posts.posts[5] = &models.Post{ID: 5, UserID: "user-1", PlatformResults: models.PlatformResults{}}
	attempts.attempts = append(attempts.attempts, &models.PublishAttempt{PostID: 5, Platform: "telegram"})

	_, err := svc.PostInfo(context.Background(), 5, "user-2")
	assert.ErrorIs(t, err, ErrPostNotFound)

	list, err := svc.Attempts(context.Background(), "user-1", 5)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, svc.Remove(context.Background(), "user-2", 5), ErrPostNotFound)
	require.NoError(t, svc.Remove(context.Background(), "user-1", 5))

	_, err = svc.PostInfo(context.Background(), 5, "user-1")
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestPreviewCaption(t *testing.T) {
	svc, _, _ := newTestPostService(time.Now())

	caption := strings.Repeat("Short sentence here. ", 20)
	previews := svc.PreviewCaption(caption, []string{"launch"})

	require.Len(t, previews, len(models.Platforms))

	tw := previews["twitter"]
	assert.Equal(t, 280, tw.Limit)
	assert.True(t, tw.Truncated)
	assert.LessOrEqual(t, len([]rune(tw.Text)), 280)

	fb := previews["facebook"]
	assert.False(t, fb.Truncated)
	assert.True(t, strings.HasSuffix(fb.Text, "#launch"))
	assert.Equal(t, fb.Length, len([]rune(fb.Text)))
}
