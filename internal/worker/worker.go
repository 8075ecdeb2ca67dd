package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"triage/internal/models"
	"triage/internal/requestctx"
	"triage/internal/tasks"
)

// MessageProcessor is the part of the message service the worker needs.
type MessageProcessor interface {
	Process(ctx context.Context, msg models.CustomerMessage) (*models.ProcessedMessage, error)
}

// ClassifyHandler processes TypeClassifyMessage tasks.
type ClassifyHandler struct {
	messages MessageProcessor
}

func NewClassifyHandler(messages MessageProcessor) *ClassifyHandler {
	return &ClassifyHandler{messages: messages}
}

// RegisterHandlers registers every task handler on mux.
func RegisterHandlers(mux *asynq.ServeMux, messages MessageProcessor) {
	log.Infof("Registering %s handler", tasks.TypeClassifyMessage)
	mux.Handle(tasks.TypeClassifyMessage, NewClassifyHandler(messages))
}

// ProcessTask classifies the message and stores the ProcessedMessage JSON
// as the task result. Validation failures are not retried.
func (h *ClassifyHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := tasks.ParseClassifyPayload(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	result, err := h.Handle(ctx, payload)
	if err != nil {
		return err
	}

	if rw := t.ResultWriter(); rw != nil {
		if _, err := rw.Write(result); err != nil {
			return fmt.Errorf("write task result: %w", err)
		}
	}
	return nil
}

// Handle runs one classification and returns the encoded result.
func (h *ClassifyHandler) Handle(ctx context.Context, payload tasks.ClassifyPayload) ([]byte, error) {
	if payload.RequestID != "" {
		ctx = requestctx.WithRequestID(ctx, payload.RequestID)
	}
	logger := log.WithFields(log.Fields{
		"request_id":  payload.RequestID,
		"customer_id": payload.Message.CustomerID,
	})

	processed, err := h.messages.Process(ctx, payload.Message)
	if err != nil {
		if errors.Is(err, models.ErrInputValidation) || errors.Is(err, models.ErrOutputValidation) {
			logger.Warnf("Classification task rejected, not retrying: %v", err)
			return nil, fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		logger.Errorf("Classification task failed: %v", err)
		return nil, err
	}

	data, err := json.Marshal(processed)
	if err != nil {
		return nil, fmt.Errorf("encode processed message: %w", err)
	}
	logger.Infof("Classification task completed: %s", processed.MessageType)
	return data, nil
}
