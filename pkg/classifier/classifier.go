package classifier

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"triage/internal/models"
)

// Classification is the full outcome for one customer message.
type Classification struct {
	models.ClassificationResult
	Data  models.ResponseData
	Reply string
	// Reasoning is the model's explanation in staged mode, empty otherwise.
	Reasoning string
}

// Processed converts c to the response body returned to callers.
func (c Classification) Processed() *models.ProcessedMessage {
	return &models.ProcessedMessage{
		MessageType:      c.MessageType,
		ConfidenceScore:  c.ConfidenceScore,
		ResponseData:     c.Data,
		CustomerResponse: c.Reply,
	}
}

// MessageClassifier classifies customer messages
type MessageClassifier interface {
	Classify(ctx context.Context, msg models.CustomerMessage) (Classification, error)
	Name() string
}

// ReplyGenerator writes the plain-text reply for an already classified
// message.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, msg models.CustomerMessage, c Classification) (string, error)
}

// ValidateMessage checks that every field of msg is present and non-blank.
func ValidateMessage(msg models.CustomerMessage) error {
	var missing []string
	if strings.TrimSpace(msg.CustomerID) == "" {
		missing = append(missing, "customer_id")
	}
	if strings.TrimSpace(msg.Message) == "" {
		missing = append(missing, "message")
	}
	if strings.TrimSpace(msg.Product) == "" {
		missing = append(missing, "product")
	}
	if len(missing) > 0 {
		return &models.ValidationError{Fields: missing, Reason: "must not be empty"}
	}
	return nil
}

// NewReferenceID returns prefix followed by four random digits, e.g. BUG-4821.
func NewReferenceID(prefix string) string {
	return fmt.Sprintf("%s%d", prefix, 1000+rand.IntN(9000))
}
