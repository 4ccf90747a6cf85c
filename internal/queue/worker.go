package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postpilot/internal/service"
)

// HandlePublishPostTask runs the scheduled publish path for one post. A post
// that another worker or the sweep is publishing is left to them.
func (j *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	post, err := j.ps.PublishDue(ctx, payload.PostID)
	switch {
	case errors.Is(err, service.ErrPublishInProgress):
		slog.Info("post is already being published", "post_id", payload.PostID)
		return nil
	case errors.Is(err, service.ErrPostNotFound):
		slog.Info("scheduled post no longer exists", "post_id", payload.PostID)
		return nil
	case err != nil:
		return err
	}

	slog.Info("scheduled post handled", "post_id", post.ID, "status", post.Status)
	return nil
}
