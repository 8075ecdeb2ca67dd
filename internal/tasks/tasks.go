package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"triage/internal/models"
)

// Defines constants for task types used in Asynq.
const (
	// TypeClassifyMessage classifies one customer message asynchronously.
	TypeClassifyMessage = "message:classify"
)

// ClassifyPayload is the task payload for TypeClassifyMessage.
type ClassifyPayload struct {
	RequestID string                 `json:"request_id,omitempty"`
	Message   models.CustomerMessage `json:"message"`
}

// NewClassifyTask builds a classification task.
func NewClassifyTask(p ClassifyPayload, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode classify payload: %w", err)
	}
	return asynq.NewTask(TypeClassifyMessage, data, opts...), nil
}

// ParseClassifyPayload decodes the payload of a classification task.
func ParseClassifyPayload(t *asynq.Task) (ClassifyPayload, error) {
	var p ClassifyPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return ClassifyPayload{}, fmt.Errorf("decode classify payload: %w", err)
	}
	return p, nil
}
