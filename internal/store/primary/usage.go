package primary

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"triage/internal/models"
)

// RecordUsage inserts a new AI usage log entry.
func (s *StoreImpl) RecordUsage(ctx context.Context, entry *models.AIUsageLog) error {
	query := `
		INSERT INTO ai_usage_logs (
			created_at, provider_name, operation, model_name,
			input_tokens, output_tokens, cost, request_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRowContext(ctx, query,
		entry.CreatedAt,
		entry.ProviderName,
		entry.Operation,
		entry.ModelName,
		entry.InputTokens,
		entry.OutputTokens,
		entry.Cost,
		entry.RequestID,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert ai_usage_log: %w", err)
	}
	return nil
}

// ListUsage returns AI usage logs, newest first.
func (s *StoreImpl) ListUsage(ctx context.Context, limit, offset int) ([]*models.AIUsageLog, error) {
	query := `
		SELECT id, created_at, provider_name, operation, model_name,
		       input_tokens, output_tokens, cost, request_id
		FROM ai_usage_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query ai_usage_logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.AIUsageLog
	for rows.Next() {
		var entry models.AIUsageLog
		var requestID sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.CreatedAt,
			&entry.ProviderName,
			&entry.Operation,
			&entry.ModelName,
			&entry.InputTokens,
			&entry.OutputTokens,
			&entry.Cost,
			&requestID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ai_usage_log: %w", err)
		}
		if requestID.Valid {
			entry.RequestID = &requestID.String
		}
		logs = append(logs, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ai_usage_logs: %w", err)
	}
	return logs, nil
}

// GetUsageSummary returns call count, total cost and token usage.
func (s *StoreImpl) GetUsageSummary(ctx context.Context) (models.UsageSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(cost), 0),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0)
		FROM ai_usage_logs
	`
	var summary models.UsageSummary
	err := s.db.QueryRowContext(ctx, query).Scan(
		&summary.Calls,
		&summary.TotalCost,
		&summary.TotalInputTokens,
		&summary.TotalOutputTokens,
	)
	if err != nil {
		return models.UsageSummary{}, fmt.Errorf("failed to summarize ai_usage_logs: %w", err)
	}
	return summary, nil
}
