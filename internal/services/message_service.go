package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"triage/internal/events"
	"triage/internal/inputprocessor"
	"triage/internal/models"
	"triage/internal/requestctx"
	"triage/internal/schema"
	"triage/internal/util"
	"triage/pkg/classifier"
)

// MessageServiceDeps holds the collaborators of a MessageService.
type MessageServiceDeps struct {
	Classifier        classifier.MessageClassifier
	Processor         inputprocessor.Processor // defaults to inputprocessor.New()
	Publisher         events.Publisher         // defaults to events.NoopPublisher
	Timeout           time.Duration            // per-request classification timeout, 0 disables
	MaxReplySentences int                      // 0 disables the cap
}

// MessageService runs one customer message through normalisation,
// classification and event publishing. It holds no per-request state.
type MessageService struct {
	classifier   classifier.MessageClassifier
	processor    inputprocessor.Processor
	publisher    events.Publisher
	timeout      time.Duration
	maxSentences int
	now          func() time.Time
}

func NewMessageService(deps MessageServiceDeps) (*MessageService, error) {
	if deps.Classifier == nil {
		return nil, errors.New("message service requires a classifier")
	}
	if deps.Processor == nil {
		deps.Processor = inputprocessor.New()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	return &MessageService{
		classifier:   deps.Classifier,
		processor:    deps.Processor,
		publisher:    deps.Publisher,
		timeout:      deps.Timeout,
		maxSentences: deps.MaxReplySentences,
		now:          time.Now,
	}, nil
}

// ClassifierName reports which classifier backs the service.
func (s *MessageService) ClassifierName() string {
	return s.classifier.Name()
}

// Prepare normalises msg and checks its required fields.
func (s *MessageService) Prepare(msg models.CustomerMessage) (models.CustomerMessage, error) {
	normalized, err := s.processor.Normalize(msg)
	if err != nil {
		return models.CustomerMessage{}, err
	}
	if err := classifier.ValidateMessage(normalized); err != nil {
		return models.CustomerMessage{}, err
	}
	return normalized, nil
}

// Process classifies msg and returns the response for the caller.
func (s *MessageService) Process(ctx context.Context, msg models.CustomerMessage) (*models.ProcessedMessage, error) {
	prepared, err := s.Prepare(msg)
	if err != nil {
		return nil, err
	}

	logger := log.WithFields(log.Fields{
		"request_id":  requestctx.RequestID(ctx),
		"customer_id": prepared.CustomerID,
	})
	logger.Infof("Processing message from customer %s", prepared.CustomerID)

	classifyCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		classifyCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.classifier.Classify(classifyCtx, prepared)
	if err != nil {
		return nil, fmt.Errorf("classify message: %w", err)
	}

	violations, err := schema.ValidateData(result.Data)
	if err != nil {
		return nil, fmt.Errorf("validate response data: %w", err)
	}
	if len(violations) > 0 {
		return nil, &models.OutputValidationError{Stage: "response", Violations: violations}
	}

	result.Reply = util.CapSentences(result.Reply, s.maxSentences)
	if result.Reply == "" {
		return nil, &models.OutputValidationError{Stage: "response", Violations: []string{"customer_response is empty"}}
	}

	s.publish(ctx, prepared, result)

	logger.WithField("message_type", result.MessageType).Infof("Message processed with confidence %.2f", result.ConfidenceScore)
	return result.Processed(), nil
}

// publish emits a ClassifiedEvent. Failures are logged, never returned.
func (s *MessageService) publish(ctx context.Context, msg models.CustomerMessage, c classifier.Classification) {
	event := models.ClassifiedEvent{
		EventID:         uuid.New(),
		RequestID:       requestctx.RequestID(ctx),
		CustomerID:      msg.CustomerID,
		Product:         msg.Product,
		MessageType:     c.MessageType,
		ConfidenceScore: c.ConfidenceScore,
		ReferenceID:     c.Data.ReferenceID(),
		OccurredAt:      s.now().UTC(),
	}
	if err := s.publisher.PublishClassified(ctx, event); err != nil {
		log.WithFields(log.Fields{
			"request_id": event.RequestID,
			"event_id":   event.EventID,
		}).Warnf("Failed to publish classified event: %v", err)
	}
}
