package store

import (
	"context"

	"github.com/hibiken/asynq"

	"triage/internal/models"
)

// --- Job Client ---

// JobClient enqueues and inspects async classification jobs.
type JobClient interface {
	EnqueueClassification(ctx context.Context, msg models.CustomerMessage) (*asynq.TaskInfo, error)
	GetJob(ctx context.Context, id string) (*asynq.TaskInfo, error)
	Ping() error
	Close() error
}

// --- Usage Store ---

// UsageStore persists AI usage records. Message content is never stored.
type UsageStore interface {
	RecordUsage(ctx context.Context, log *models.AIUsageLog) error
	ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error)
	GetUsageSummary(ctx context.Context) (models.UsageSummary, error)
	Ping(ctx context.Context) error
	Close() error
}
