package services

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"triage/internal/llm"
	"triage/internal/models"
	"triage/pkg/classifier"
)

// TemplateReplyGenerator writes fixed replies built from the structured
// payload. It never fails.
type TemplateReplyGenerator struct{}

func NewTemplateReplyGenerator() *TemplateReplyGenerator {
	return &TemplateReplyGenerator{}
}

func (g *TemplateReplyGenerator) GenerateReply(ctx context.Context, msg models.CustomerMessage, c classifier.Classification) (string, error) {
	return templateReply(msg.Product, c.Data), nil
}

func templateReply(product string, data models.ResponseData) string {
	switch d := data.(type) {
	case models.BugReportData:
		return fmt.Sprintf("Thank you for reporting this issue with %s. We've created ticket %s with %s priority and our team is investigating. We'll update you once we have more information.",
			product, d.Ticket.ID, d.Ticket.Priority)
	case models.FeatureRequestData:
		return fmt.Sprintf("Thank you for your suggestion about %s! We've logged it as %s and our product team will review it. We appreciate your feedback as it helps us improve %s.",
			d.ProductRequirement.Title, d.ProductRequirement.ID, product)
	case models.GeneralInquiryData:
		var sb strings.Builder
		fmt.Fprintf(&sb, "Thank you for your inquiry about %s.", product)
		resources := d.SuggestedResources
		if len(resources) > 2 {
			resources = resources[:2]
		}
		if len(resources) > 0 {
			links := make([]string, 0, len(resources))
			for _, r := range resources {
				links = append(links, fmt.Sprintf("%s at %s", r.Title, r.URL))
			}
			fmt.Fprintf(&sb, " For more information, check out %s.", strings.Join(links, " and "))
		}
		if d.RequiresHumanReview {
			sb.WriteString(" A support specialist will review your message and get back to you soon.")
		}
		return sb.String()
	}
	return fmt.Sprintf("Thank you for contacting us about %s. Our team will review your message and get back to you soon.", product)
}

// ReplyPrompts are the system prompts for each message type.
type ReplyPrompts struct {
	Bug     string
	Feature string
	Inquiry string
}

// DefaultReplyPrompts returns the built-in reply prompts.
func DefaultReplyPrompts() ReplyPrompts {
	return ReplyPrompts{
		Bug: "You are a helpful and empathetic customer support specialist. Acknowledge the customer's issue, " +
			"thank them for reporting it, tell them a ticket has been created (include the ID) and set expectations " +
			"about next steps. Keep your response under 4 sentences. Reply with plain text only.",
		Feature: "You are a helpful and appreciative product specialist. Thank the customer for their suggestion, " +
			"acknowledge the feature they requested, tell them it has been logged (include the ID) and explain that " +
			"the product team will review it. Keep your response under 4 sentences. Reply with plain text only.",
		Inquiry: "You are a knowledgeable and helpful customer support specialist. Acknowledge the inquiry, answer " +
			"directly when possible and point the customer to the relevant resources. Keep your response under 4 " +
			"sentences. Reply with plain text only.",
	}
}

// LLMReplyGeneratorConfig configures an LLMReplyGenerator.
type LLMReplyGeneratorConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Prompts     ReplyPrompts
}

// LLMReplyGenerator asks a completion service for a reply and falls back to
// the template reply when the call fails.
type LLMReplyGenerator struct {
	completions llm.CompletionService
	cfg         LLMReplyGeneratorConfig
	fallback    *TemplateReplyGenerator
}

func NewLLMReplyGenerator(completions llm.CompletionService, cfg LLMReplyGeneratorConfig) *LLMReplyGenerator {
	d := DefaultReplyPrompts()
	if cfg.Prompts.Bug == "" {
		cfg.Prompts.Bug = d.Bug
	}
	if cfg.Prompts.Feature == "" {
		cfg.Prompts.Feature = d.Feature
	}
	if cfg.Prompts.Inquiry == "" {
		cfg.Prompts.Inquiry = d.Inquiry
	}
	return &LLMReplyGenerator{completions: completions, cfg: cfg, fallback: NewTemplateReplyGenerator()}
}

func (g *LLMReplyGenerator) GenerateReply(ctx context.Context, msg models.CustomerMessage, c classifier.Classification) (string, error) {
	system, details := g.prompt(c.Data)
	user := fmt.Sprintf("Product: %s\nCustomer message: %q\n\n%s", msg.Product, msg.Message, details)

	out, err := g.completions.Complete(ctx, llm.CompletionRequest{
		Operation:   models.OperationReply,
		Messages:    llm.SystemUser(system, user),
		Model:       g.cfg.Model,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err == nil && strings.TrimSpace(out.Content) != "" {
		return strings.TrimSpace(out.Content), nil
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("reply generation aborted: %w", ctx.Err())
	}
	if err != nil {
		log.Warnf("Reply generation failed, using template reply: %v", err)
	} else {
		log.Warn("Reply generation returned empty text, using template reply")
	}
	return g.fallback.GenerateReply(ctx, msg, c)
}

func (g *LLMReplyGenerator) prompt(data models.ResponseData) (system, details string) {
	switch d := data.(type) {
	case models.BugReportData:
		return g.cfg.Prompts.Bug, fmt.Sprintf("Ticket details:\nID: %s\nTitle: %s\nSeverity: %s\nPriority: %s",
			d.Ticket.ID, d.Ticket.Title, d.Ticket.Severity, d.Ticket.Priority)
	case models.FeatureRequestData:
		r := d.ProductRequirement
		return g.cfg.Prompts.Feature, fmt.Sprintf("Feature details:\nID: %s\nTitle: %s\nStatus: %s\nBusiness value: %s",
			r.ID, r.Title, r.Status, r.BusinessValue)
	case models.GeneralInquiryData:
		var sb strings.Builder
		fmt.Fprintf(&sb, "Inquiry details:\nCategory: %s\n", d.InquiryCategory)
		if d.RequiresHumanReview {
			sb.WriteString("A support specialist will reach out to the customer.\n")
		}
		sb.WriteString("Suggested resources:\n")
		for _, r := range d.SuggestedResources {
			fmt.Fprintf(&sb, "- %s: %s\n", r.Title, r.URL)
		}
		return g.cfg.Prompts.Inquiry, strings.TrimSpace(sb.String())
	}
	return g.cfg.Prompts.Inquiry, ""
}

var (
	_ classifier.ReplyGenerator = (*TemplateReplyGenerator)(nil)
	_ classifier.ReplyGenerator = (*LLMReplyGenerator)(nil)
)
