package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"triage/internal/llm"
	"triage/internal/models"
	"triage/internal/requestctx"
	"triage/internal/schema"
)

// Mode selects how many model calls a classification takes.
type Mode string

const (
	// ModeSingle asks for type, payload and reply in one call.
	ModeSingle Mode = "single"
	// ModeStaged classifies first, then extracts the payload, then
	// generates the reply.
	ModeStaged Mode = "staged"
)

// Options configures an LLMClassifier.
type Options struct {
	Mode        Mode
	Model       string
	Temperature float32
	MaxTokens   int
	Prompts     Prompts
	// Replies generates the customer reply in staged mode.
	Replies ReplyGenerator
	// NewID generates reference ids; defaults to NewReferenceID.
	NewID func(prefix string) string
}

// LLMClassifier implements MessageClassifier on top of a completion service.
type LLMClassifier struct {
	completions llm.CompletionService
	opts        Options
}

// NewLLMClassifier creates a classifier. Staged mode requires a reply
// generator.
func NewLLMClassifier(completions llm.CompletionService, opts Options) (*LLMClassifier, error) {
	if completions == nil {
		return nil, errors.New("classifier requires a completion service")
	}
	if opts.Mode == "" {
		opts.Mode = ModeSingle
	}
	if opts.Mode != ModeSingle && opts.Mode != ModeStaged {
		return nil, fmt.Errorf("unknown classifier mode %q", opts.Mode)
	}
	if opts.Mode == ModeStaged && opts.Replies == nil {
		return nil, errors.New("staged classifier requires a reply generator")
	}
	if opts.NewID == nil {
		opts.NewID = NewReferenceID
	}
	opts.Prompts = opts.Prompts.withDefaults()
	return &LLMClassifier{completions: completions, opts: opts}, nil
}

func (c *LLMClassifier) Name() string {
	return fmt.Sprintf("llm/%s (%s)", c.completions.Name(), c.opts.Mode)
}

func (c *LLMClassifier) Classify(ctx context.Context, msg models.CustomerMessage) (Classification, error) {
	if err := ValidateMessage(msg); err != nil {
		return Classification{}, err
	}

	vars := promptVars{
		Product:   msg.Product,
		Message:   msg.Message,
		BugID:     c.opts.NewID(models.BugTicketPrefix),
		FeatureID: c.opts.NewID(models.FeatureRequestPrefix),
	}
	logger := log.WithFields(log.Fields{
		"request_id":  requestctx.RequestID(ctx),
		"customer_id": msg.CustomerID,
		"mode":        c.opts.Mode,
	})

	var (
		result Classification
		err    error
	)
	if c.opts.Mode == ModeStaged {
		result, err = c.classifyStaged(ctx, msg, vars)
	} else {
		result, err = c.classifySingle(ctx, vars)
	}
	if err != nil {
		logger.WithError(err).Warn("Message classification failed")
		return Classification{}, err
	}

	logger.WithFields(log.Fields{
		"message_type": result.MessageType,
		"confidence":   result.ConfidenceScore,
	}).Info("Message classified")
	return result, nil
}

func (c *LLMClassifier) classifySingle(ctx context.Context, vars promptVars) (Classification, error) {
	content, err := c.complete(ctx, models.OperationClassification, render(c.opts.Prompts.Single, vars), userPrompt(vars))
	if err != nil {
		return Classification{}, err
	}

	var parsed struct {
		MessageType      models.MessageType `json:"message_type"`
		ConfidenceScore  *float64           `json:"confidence_score"`
		ResponseData     json.RawMessage    `json:"response_data"`
		CustomerResponse string             `json:"customer_response"`
	}
	const stage = "classification"
	if err := decodeObject(content, &parsed); err != nil {
		return Classification{}, &models.OutputValidationError{Stage: stage, Violations: []string{err.Error()}}
	}

	violations := checkResult(parsed.MessageType, parsed.ConfidenceScore)
	if strings.TrimSpace(parsed.CustomerResponse) == "" {
		violations = append(violations, "customer_response is empty")
	}
	if len(parsed.ResponseData) == 0 || bytes.Equal(parsed.ResponseData, []byte("null")) {
		violations = append(violations, "response_data is missing")
	}
	if len(violations) > 0 {
		return Classification{}, &models.OutputValidationError{Stage: stage, Violations: violations}
	}

	data, err := repairAndDecode(parsed.MessageType, parsed.ResponseData, vars, stage)
	if err != nil {
		return Classification{}, err
	}

	return Classification{
		ClassificationResult: models.ClassificationResult{
			MessageType:     parsed.MessageType,
			ConfidenceScore: *parsed.ConfidenceScore,
		},
		Data:  data,
		Reply: strings.TrimSpace(parsed.CustomerResponse),
	}, nil
}

func (c *LLMClassifier) classifyStaged(ctx context.Context, msg models.CustomerMessage, vars promptVars) (Classification, error) {
	content, err := c.complete(ctx, models.OperationClassification, render(c.opts.Prompts.Classify, vars), userPrompt(vars))
	if err != nil {
		return Classification{}, err
	}

	var parsed struct {
		MessageType     models.MessageType `json:"message_type"`
		ConfidenceScore *float64           `json:"confidence_score"`
		Reasoning       string             `json:"reasoning"`
	}
	if err := decodeObject(content, &parsed); err != nil {
		return Classification{}, &models.OutputValidationError{Stage: "classification", Violations: []string{err.Error()}}
	}
	if violations := checkResult(parsed.MessageType, parsed.ConfidenceScore); len(violations) > 0 {
		return Classification{}, &models.OutputValidationError{Stage: "classification", Violations: violations}
	}

	extracted, err := c.complete(ctx, models.OperationExtraction, render(c.opts.Prompts.extraction(parsed.MessageType), vars), userPrompt(vars))
	if err != nil {
		return Classification{}, err
	}
	raw, err := extractJSON(extracted)
	if err != nil {
		return Classification{}, &models.OutputValidationError{Stage: "extraction", Violations: []string{err.Error()}}
	}
	data, err := repairAndDecode(parsed.MessageType, raw, vars, "extraction")
	if err != nil {
		return Classification{}, err
	}

	result := Classification{
		ClassificationResult: models.ClassificationResult{
			MessageType:     parsed.MessageType,
			ConfidenceScore: *parsed.ConfidenceScore,
		},
		Data:      data,
		Reasoning: parsed.Reasoning,
	}

	reply, err := c.opts.Replies.GenerateReply(ctx, msg, result)
	if err != nil {
		return Classification{}, fmt.Errorf("generate reply: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return Classification{}, &models.OutputValidationError{Stage: "reply", Violations: []string{"customer_response is empty"}}
	}
	result.Reply = strings.TrimSpace(reply)
	return result, nil
}

func (c *LLMClassifier) complete(ctx context.Context, operation, system, user string) (string, error) {
	out, err := c.completions.Complete(ctx, llm.CompletionRequest{
		Operation:   operation,
		Messages:    llm.SystemUser(system, user),
		Model:       c.opts.Model,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		var extErr *models.ExternalServiceError
		if errors.As(err, &extErr) {
			return "", err
		}
		return "", &models.ExternalServiceError{Provider: c.completions.Name(), Attempts: 1, Err: err}
	}
	return out.Content, nil
}

func checkResult(t models.MessageType, confidence *float64) []string {
	var violations []string
	if !t.Valid() {
		violations = append(violations, fmt.Sprintf("message_type %q is not one of bug_report, feature_request, general_inquiry", t))
	}
	switch {
	case confidence == nil:
		violations = append(violations, "confidence_score is missing")
	case *confidence < 0 || *confidence > 1:
		violations = append(violations, fmt.Sprintf("confidence_score %v is outside [0,1]", *confidence))
	}
	return violations
}

// repairAndDecode fixes the server-owned fields of raw, validates it
// against the schema for t and decodes it into the typed payload.
func repairAndDecode(t models.MessageType, raw json.RawMessage, vars promptVars, stage string) (models.ResponseData, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &models.OutputValidationError{Stage: stage, Violations: []string{fmt.Sprintf("response_data is not valid JSON: %v", err)}}
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &models.OutputValidationError{Stage: stage, Violations: []string{"response_data is not an object"}}
	}

	switch t {
	case models.MessageTypeBugReport:
		if ticket, ok := obj["ticket"].(map[string]any); ok {
			repairID(ticket, models.BugTicketIDPattern, vars.BugID)
		}
	case models.MessageTypeFeatureRequest:
		if req, ok := obj["product_requirement"].(map[string]any); ok {
			repairID(req, models.FeatureRequestIDPattern, vars.FeatureID)
			req["status"] = models.StatusUnderReview
		}
	}

	violations, err := schema.Validate(t, obj)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", t, err)
	}
	if len(violations) > 0 {
		return nil, &models.OutputValidationError{Stage: stage, Violations: violations}
	}

	repaired, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	data, err := models.DecodeResponseData(t, repaired)
	if err != nil {
		return nil, &models.OutputValidationError{Stage: stage, Violations: []string{err.Error()}}
	}
	return data, nil
}

// repairID replaces an id that does not match pattern with the generated one.
func repairID(obj map[string]any, pattern *regexp.Regexp, generated string) {
	id, _ := obj["id"].(string)
	if !pattern.MatchString(id) {
		obj["id"] = generated
	}
}

// decodeObject parses a model response into v.
func decodeObject(content string, v any) error {
	raw, err := extractJSON(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse model response as JSON: %w", err)
	}
	return nil
}

// extractJSON returns the JSON object in content, tolerating a markdown
// code fence around it.
func extractJSON(content string) (json.RawMessage, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") || !json.Valid([]byte(s)) {
		preview := s
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return nil, fmt.Errorf("model response is not a JSON object: %q", preview)
	}
	return json.RawMessage(s), nil
}

var _ MessageClassifier = (*LLMClassifier)(nil)
