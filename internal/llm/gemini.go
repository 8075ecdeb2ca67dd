package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"triage/internal/costtracker"
	"triage/internal/requestctx"
)

// GeminiProvider implements CompletionService using the Google Gemini API.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	costTracker costtracker.CostTracker
}

// NewGeminiProvider creates a Gemini completion provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string, tracker costtracker.CostTracker) (*GeminiProvider, error) {
	if tracker == nil {
		tracker = costtracker.New()
	}
	if apiKey == "" {
		log.Warn("Gemini API key not provided. Gemini provider will be disabled.")
		return &GeminiProvider{client: nil, model: model, costTracker: tracker}, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	log.Infof("Gemini provider initialized with model %s", model)
	return &GeminiProvider{client: client, model: model, costTracker: tracker}, nil
}

func (p *GeminiProvider) Name() string      { return "gemini" }
func (p *GeminiProvider) ModelName() string { return p.model }

func (p *GeminiProvider) Status() ProviderStatus {
	if p.client == nil {
		return ProviderStatusDisabled
	}
	return ProviderStatusActive
}

func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	if p.client == nil {
		return Completion{}, fmt.Errorf("gemini: %w", ErrProviderDisabled)
	}

	modelName := req.Model
	if modelName == "" {
		modelName = p.model
	}
	model := p.client.GenerativeModel(modelName)
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	system, history, last, err := geminiContents(req.Messages)
	if err != nil {
		return Completion{}, err
	}
	model.SystemInstruction = system

	session := model.StartChat()
	session.History = history
	resp, err := session.SendMessage(ctx, last.Parts...)
	if err != nil {
		return Completion{}, fmt.Errorf("gemini generate content failed: %w", err)
	}
	text, err := geminiText(resp)
	if err != nil {
		return Completion{}, err
	}

	out := Completion{
		Content: text,
		Model:   modelName,
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	if out.InputTokens+out.OutputTokens > 0 {
		event := costtracker.CostEvent{
			Operation:    req.Operation,
			Provider:     p.Name(),
			Model:        modelName,
			InputTokens:  out.InputTokens,
			OutputTokens: out.OutputTokens,
			RequestID:    requestctx.RequestID(ctx),
		}
		if err := p.costTracker.RecordCost(ctx, event); err != nil {
			log.Errorf("Failed to record AI usage log for %s: %v", req.Operation, err)
		}
	}
	return out, nil
}

// geminiContents maps chat messages onto Gemini contents. System messages
// become the system instruction and the remaining turns are split into
// chat history and the message to send.
func geminiContents(messages []ChatMessage) (system *genai.Content, history []*genai.Content, last *genai.Content, err error) {
	var parts []genai.Part
	var turns []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case ChatMessageRoleSystem:
			parts = append(parts, genai.Text(m.Content))
		case ChatMessageRoleAssistant:
			turns = append(turns, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			turns = append(turns, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	if len(turns) == 0 {
		return nil, nil, nil, fmt.Errorf("gemini: completion request has no user message")
	}
	if len(parts) > 0 {
		system = &genai.Content{Parts: parts}
	}
	return system, turns[:len(turns)-1], turns[len(turns)-1], nil
}

// geminiText joins the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

var _ CompletionService = (*GeminiProvider)(nil)
