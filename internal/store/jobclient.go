package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"triage/internal/models"
	"triage/internal/requestctx"
	"triage/internal/tasks"
)

// JobOptions controls how classification tasks are enqueued.
type JobOptions struct {
	Queue     string
	MaxRetry  int
	Timeout   time.Duration
	Retention time.Duration
}

// AsynqJobClient is a concrete JobClient backed by Redis through asynq.
type AsynqJobClient struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	opts      JobOptions
}

// NewAsynqJobClient connects to Redis with the given options.
func NewAsynqJobClient(redis asynq.RedisClientOpt, opts JobOptions) *AsynqJobClient {
	if opts.Queue == "" {
		opts.Queue = "default"
	}
	return &AsynqJobClient{
		client:    asynq.NewClient(redis),
		inspector: asynq.NewInspector(redis),
		opts:      opts,
	}
}

func (jc *AsynqJobClient) Close() error {
	var errs []error
	if err := jc.client.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := jc.inspector.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Ping checks that Redis is reachable.
func (jc *AsynqJobClient) Ping() error {
	_, err := jc.inspector.Queues()
	if err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}
	return nil
}

// EnqueueClassification enqueues msg for the worker. The request id in ctx
// travels with the task.
func (jc *AsynqJobClient) EnqueueClassification(ctx context.Context, msg models.CustomerMessage) (*asynq.TaskInfo, error) {
	opts := []asynq.Option{asynq.Queue(jc.opts.Queue)}
	if jc.opts.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(jc.opts.MaxRetry))
	}
	if jc.opts.Timeout > 0 {
		opts = append(opts, asynq.Timeout(jc.opts.Timeout))
	}
	if jc.opts.Retention > 0 {
		opts = append(opts, asynq.Retention(jc.opts.Retention))
	}

	task, err := tasks.NewClassifyTask(tasks.ClassifyPayload{
		RequestID: requestctx.RequestID(ctx),
		Message:   msg,
	}, opts...)
	if err != nil {
		return nil, err
	}

	info, err := jc.client.EnqueueContext(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("enqueue %s task: %w", task.Type(), err)
	}
	log.Debugf("Enqueued task type '%s' id=%s queue=%s", task.Type(), info.ID, info.Queue)
	return info, nil
}

// GetJob looks up a task in the configured queue.
func (jc *AsynqJobClient) GetJob(ctx context.Context, id string) (*asynq.TaskInfo, error) {
	info, err := jc.inspector.GetTaskInfo(jc.opts.Queue, id)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return info, nil
}

// JobStatus maps an asynq task state to the state reported by the API.
func JobStatus(info *asynq.TaskInfo) string {
	switch info.State {
	case asynq.TaskStateActive:
		return models.JobStatusActive
	case asynq.TaskStateRetry:
		return models.JobStatusRetrying
	case asynq.TaskStateCompleted:
		return models.JobStatusCompleted
	case asynq.TaskStateArchived:
		return models.JobStatusFailed
	}
	return models.JobStatusPending
}

var _ JobClient = (*AsynqJobClient)(nil)
