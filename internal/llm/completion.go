package llm

import (
	"context"
	"errors"
)

// ProviderStatus reports whether a provider can serve requests.
type ProviderStatus int

const (
	ProviderStatusUnknown  ProviderStatus = iota // Default zero value
	ProviderStatusActive                         // Provider is operational
	ProviderStatusInactive                       // Provider is temporarily unavailable (e.g., network, rate limit)
	ProviderStatusDisabled                       // Provider is not configured or explicitly disabled
)

func (s ProviderStatus) String() string {
	switch s {
	case ProviderStatusActive:
		return "active"
	case ProviderStatusInactive:
		return "inactive"
	case ProviderStatusDisabled:
		return "disabled"
	}
	return "unknown"
}

// ChatMessageRole defines the role of the message sender (system, user, assistant).
type ChatMessageRole string

const (
	ChatMessageRoleSystem    ChatMessageRole = "system"
	ChatMessageRoleUser      ChatMessageRole = "user"
	ChatMessageRoleAssistant ChatMessageRole = "assistant" // "model" for Gemini
)

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    ChatMessageRole
	Content string
}

// CompletionRequest is a provider-neutral chat completion call.
type CompletionRequest struct {
	// Operation labels the call in the usage ledger.
	Operation   string
	Messages    []ChatMessage
	Model       string // overrides the provider default when set
	Temperature float32
	MaxTokens   int
	// JSON asks the provider to return a single JSON object.
	JSON bool
}

// Completion is the text returned by a provider plus token usage.
type Completion struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// CompletionService generates chat completions against an external model.
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
	Status() ProviderStatus
	Name() string      // Provider name (e.g., "openai", "gemini")
	ModelName() string // Default model used
}

var (
	ErrProviderDisabled = errors.New("provider is not initialized (missing API key)")
	ErrEmptyCompletion  = errors.New("provider returned no completion choices")
)

// SystemUser is a shortcut for the common two-message prompt.
func SystemUser(system, user string) []ChatMessage {
	return []ChatMessage{
		{Role: ChatMessageRoleSystem, Content: system},
		{Role: ChatMessageRoleUser, Content: user},
	}
}
