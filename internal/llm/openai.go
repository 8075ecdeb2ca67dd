package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"triage/internal/costtracker"
	"triage/internal/requestctx"
)

// ChatCompletionCreator is the subset of *openai.Client used here.
type ChatCompletionCreator interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIProvider implements CompletionService using the OpenAI API.
type OpenAIProvider struct {
	client      ChatCompletionCreator
	model       string
	costTracker costtracker.CostTracker
}

// NewOpenAIProvider creates a provider. baseURL may point at any
// OpenAI-compatible endpoint; empty uses the public API.
func NewOpenAIProvider(apiKey, baseURL, model string, tracker costtracker.CostTracker) *OpenAIProvider {
	if apiKey == "" {
		log.Warn("OpenAI API key not provided. OpenAI provider will be disabled.")
		return &OpenAIProvider{client: nil, model: model, costTracker: tracker}
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	log.Infof("OpenAI provider initialized with model %s", model)
	return NewOpenAIProviderWithClient(openai.NewClientWithConfig(cfg), model, tracker)
}

// NewOpenAIProviderWithClient wires an existing client, e.g. a test double.
func NewOpenAIProviderWithClient(client ChatCompletionCreator, model string, tracker costtracker.CostTracker) *OpenAIProvider {
	if tracker == nil {
		tracker = costtracker.New()
	}
	return &OpenAIProvider{client: client, model: model, costTracker: tracker}
}

func (p *OpenAIProvider) Name() string      { return "openai" }
func (p *OpenAIProvider) ModelName() string { return p.model }

func (p *OpenAIProvider) Status() ProviderStatus {
	if p.client == nil {
		return ProviderStatusDisabled
	}
	return ProviderStatusActive
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	if p.client == nil {
		return Completion{}, fmt.Errorf("openai: %w", ErrProviderDisabled)
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, m := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return Completion{}, fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("openai: %w", ErrEmptyCompletion)
	}

	out := Completion{
		Content:      strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:        model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	p.recordUsage(ctx, req.Operation, out)
	return out, nil
}

func (p *OpenAIProvider) recordUsage(ctx context.Context, operation string, c Completion) {
	if c.InputTokens+c.OutputTokens == 0 {
		return
	}
	event := costtracker.CostEvent{
		Operation:    operation,
		Provider:     p.Name(),
		Model:        c.Model,
		InputTokens:  c.InputTokens,
		OutputTokens: c.OutputTokens,
		RequestID:    requestctx.RequestID(ctx),
	}
	if err := p.costTracker.RecordCost(ctx, event); err != nil {
		log.Errorf("Failed to record AI usage log for %s: %v", operation, err)
	}
}

var _ CompletionService = (*OpenAIProvider)(nil)
