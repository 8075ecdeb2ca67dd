package costtracker

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"triage/internal/config"
	"triage/internal/models"
	"triage/internal/store"
)

// CostEvent represents a single AI usage event.
type CostEvent struct {
	Operation    string // classification, extraction, reply
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	RequestID    string
}

// CostTracker provides methods to record and report costs.
type CostTracker interface {
	RecordCost(ctx context.Context, event CostEvent) error
	Summary(ctx context.Context) (models.UsageSummary, error)
}

// New returns a tracker that discards events. Used when no ledger database
// is configured.
func New() CostTracker {
	return &noopCostTracker{}
}

type noopCostTracker struct{}

func (n *noopCostTracker) RecordCost(ctx context.Context, event CostEvent) error { return nil }
func (n *noopCostTracker) Summary(ctx context.Context) (models.UsageSummary, error) {
	return models.UsageSummary{}, nil
}

// Ledger prices usage events and writes them to a UsageStore.
type Ledger struct {
	store   store.UsageStore
	pricing map[string]map[string]config.PricingInfo
	now     func() time.Time
}

// NewLedger creates a ledger. pricing is keyed by provider then model.
func NewLedger(s store.UsageStore, pricing map[string]map[string]config.PricingInfo) *Ledger {
	return &Ledger{store: s, pricing: pricing, now: time.Now}
}

// Cost returns the USD cost of event, and false when no pricing is
// configured for its provider/model.
func (l *Ledger) Cost(event CostEvent) (float64, bool) {
	price, ok := l.pricing[event.Provider][event.Model]
	if !ok {
		return 0, false
	}
	return float64(event.InputTokens)*price.InputPerToken + float64(event.OutputTokens)*price.OutputPerToken, true
}

func (l *Ledger) RecordCost(ctx context.Context, event CostEvent) error {
	cost, ok := l.Cost(event)
	if !ok {
		log.Warnf("Pricing info not found for %s model '%s'. Recording %s usage with zero cost.", event.Provider, event.Model, event.Operation)
	}
	entry := &models.AIUsageLog{
		CreatedAt:    l.now().UTC(),
		ProviderName: event.Provider,
		Operation:    event.Operation,
		ModelName:    event.Model,
		InputTokens:  event.InputTokens,
		OutputTokens: event.OutputTokens,
		Cost:         cost,
	}
	if event.RequestID != "" {
		rid := event.RequestID
		entry.RequestID = &rid
	}
	if err := l.store.RecordUsage(ctx, entry); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	log.Debugf("Recorded AI usage: Provider=%s, Operation=%s, Model=%s, InputTokens=%d, OutputTokens=%d, Cost=%.8f",
		entry.ProviderName, entry.Operation, entry.ModelName, entry.InputTokens, entry.OutputTokens, entry.Cost)
	return nil
}

func (l *Ledger) Summary(ctx context.Context) (models.UsageSummary, error) {
	summary, err := l.store.GetUsageSummary(ctx)
	if err != nil {
		return models.UsageSummary{}, fmt.Errorf("usage summary: %w", err)
	}
	return summary, nil
}

var (
	_ CostTracker = (*Ledger)(nil)
	_ CostTracker = (*noopCostTracker)(nil)
)
