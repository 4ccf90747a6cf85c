package job

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/postpilot/internal/metrics"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/service"
)

const (
	sweepBatchSize   = 100
	sweepConcurrency = 10
)

// SweepJob publishes scheduled posts whose time has passed.
type SweepJob struct {
	pr  repository.PostRepository
	ps  service.PublishService
	now func() time.Time
}

func NewSweepJob(pr repository.PostRepository, ps service.PublishService) *SweepJob {
	return &SweepJob{
		pr:  pr,
		ps:  ps,
		now: time.Now,
	}
}

// Run is the cron entry point.
func (j *SweepJob) Run() {
	if _, err := j.Sweep(context.Background()); err != nil {
		slog.Error("sweep failed", "error", err.Error())
	}
}

// Sweep runs one pass and returns how many due posts it picked up. Posts are
// published concurrently; the platforms of a single post are not.
func (j *SweepJob) Sweep(ctx context.Context) (int, error) {
	posts, err := j.pr.ListDue(ctx, j.now().UTC(), sweepBatchSize)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	if len(posts) == 0 {
		return 0, nil
	}

	slog.Info("sweep found due posts", "count", len(posts))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, sweepConcurrency)

	for _, post := range posts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(postID int64) {
			defer wg.Done()
			defer func() { <-semaphore }()

			updated, err := j.ps.PublishDue(ctx, postID)
			switch {
			case errors.Is(err, service.ErrPublishInProgress):
				slog.Info("post is already being published", "post_id", postID)
				metrics.SweepPosts.WithLabelValues("in_progress").Inc()
			case err != nil:
				slog.Error("sweep publish failed", "post_id", postID, "error", err.Error())
				metrics.SweepPosts.WithLabelValues("error").Inc()
			default:
				metrics.SweepPosts.WithLabelValues(updated.Status).Inc()
			}
		}(post.ID)
	}

	wg.Wait()
	return len(posts), nil
}
