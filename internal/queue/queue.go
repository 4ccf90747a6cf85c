package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
)

// Enqueuer is the part of asynq.Client used to schedule posts.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueuePost schedules a publish of the post after delay. The task id is
// derived from the post, so scheduling the same post twice is rejected by
// asynq instead of publishing twice.
func EnqueuePost(client Enqueuer, payload PublishPostPayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, taskPayload)

	_, err = client.Enqueue(task,
		asynq.ProcessIn(delay),
		asynq.TaskID("post:"+strconv.FormatInt(payload.PostID, 10)),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return fmt.Errorf("enqueue post %d: %w", payload.PostID, err)
	}

	slog.Info("task scheduled", "post_id", payload.PostID, "delay", delay.String())
	return nil
}
