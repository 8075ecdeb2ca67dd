package classifier

import (
	"fmt"
	"strings"

	"triage/internal/models"
)

// Placeholders substituted into prompt templates.
const (
	PlaceholderProduct   = "{{PRODUCT}}"
	PlaceholderMessage   = "{{MESSAGE}}"
	PlaceholderBugID     = "{{BUG_ID}}"
	PlaceholderFeatureID = "{{FEATURE_ID}}"
)

// Prompts are system prompt templates for each classification step.
type Prompts struct {
	Single         string
	Classify       string
	ExtractBug     string
	ExtractFeature string
	ExtractInquiry string
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() Prompts {
	return Prompts{
		Single:         defaultSinglePrompt,
		Classify:       defaultClassifyPrompt,
		ExtractBug:     defaultExtractBugPrompt,
		ExtractFeature: defaultExtractFeaturePrompt,
		ExtractInquiry: defaultExtractInquiryPrompt,
	}
}

// withDefaults fills empty templates from DefaultPrompts.
func (p Prompts) withDefaults() Prompts {
	d := DefaultPrompts()
	if p.Single == "" {
		p.Single = d.Single
	}
	if p.Classify == "" {
		p.Classify = d.Classify
	}
	if p.ExtractBug == "" {
		p.ExtractBug = d.ExtractBug
	}
	if p.ExtractFeature == "" {
		p.ExtractFeature = d.ExtractFeature
	}
	if p.ExtractInquiry == "" {
		p.ExtractInquiry = d.ExtractInquiry
	}
	return p
}

func (p Prompts) extraction(t models.MessageType) string {
	switch t {
	case models.MessageTypeBugReport:
		return p.ExtractBug
	case models.MessageTypeFeatureRequest:
		return p.ExtractFeature
	}
	return p.ExtractInquiry
}

// promptVars holds the per-request placeholder values.
type promptVars struct {
	Product   string
	Message   string
	BugID     string
	FeatureID string
}

// render substitutes placeholders in tmpl.
func render(tmpl string, v promptVars) string {
	return strings.NewReplacer(
		PlaceholderProduct, v.Product,
		PlaceholderMessage, v.Message,
		PlaceholderBugID, v.BugID,
		PlaceholderFeatureID, v.FeatureID,
	).Replace(tmpl)
}

func userPrompt(v promptVars) string {
	return fmt.Sprintf("Product: %s\nCustomer message: %s", v.Product, v.Message)
}

const defaultSinglePrompt = `You analyze customer support messages for {{PRODUCT}}.

Classify the customer message as exactly one of:
- bug_report: the user reports a problem with existing functionality
- feature_request: the user suggests new functionality or an improvement
- general_inquiry: the user asks about usage, billing, their account or anything else

Return a single JSON object with exactly these keys:
{
  "message_type": "bug_report" | "feature_request" | "general_inquiry",
  "confidence_score": number between 0.0 and 1.0,
  "response_data": object, shape depends on message_type (see below),
  "customer_response": short, friendly reply to the customer (at most 4 sentences)
}

response_data for bug_report:
{"ticket": {
  "id": "{{BUG_ID}}",
  "title": clear, concise issue title,
  "severity": "Low" | "Medium" | "High" | "Critical",
  "affected_component": component name,
  "reproduction_steps": [step, ...] (at least one),
  "priority": "Low" | "Medium" | "High",
  "assigned_team": team name
}}

response_data for feature_request:
{"product_requirement": {
  "id": "{{FEATURE_ID}}",
  "title": clear, concise feature title,
  "description": detailed description,
  "user_story": "As a user, I want ... so that ...",
  "business_value": value with rationale,
  "complexity_estimate": "Low" | "Medium" | "High",
  "affected_components": [component, ...] (at least one),
  "status": "Under Review"
}}

response_data for general_inquiry:
{
  "inquiry_category": "Account Management" | "Billing" | "Usage Question" | "Other",
  "requires_human_review": true | false,
  "suggested_resources": [{"title": resource name, "url": resource URL}, ...]
}

Use exactly the ids given above. Use the exact field names and enum values shown.
Return only the JSON object.`

const defaultClassifyPrompt = `You classify customer support messages for {{PRODUCT}} into one of three categories:
- bug_report: the message reports a problem or malfunction
- feature_request: the message suggests a new feature or an improvement
- general_inquiry: a question about the product, billing, the account or other general information

Return a single JSON object:
{
  "message_type": "bug_report" | "feature_request" | "general_inquiry",
  "confidence_score": number between 0.0 and 1.0,
  "reasoning": one sentence explaining the classification
}`

const defaultExtractBugPrompt = `You extract bug report details from customer messages about {{PRODUCT}}.
Return a single JSON object in exactly this shape:
{"ticket": {
  "id": "{{BUG_ID}}",
  "title": short, clear title describing the issue,
  "severity": "Low" | "Medium" | "High" | "Critical",
  "affected_component": which part of the product is affected,
  "reproduction_steps": [step, ...] (at least one),
  "priority": "Low" | "Medium" | "High",
  "assigned_team": which team should handle this
}}
Do not add any other fields.`

const defaultExtractFeaturePrompt = `You extract feature request details from customer messages about {{PRODUCT}}.
Return a single JSON object in exactly this shape:
{"product_requirement": {
  "id": "{{FEATURE_ID}}",
  "title": short, clear feature title,
  "description": detailed description of the feature,
  "user_story": "As a user, I want ... so that ...",
  "business_value": High/Medium/Low with rationale,
  "complexity_estimate": "Low" | "Medium" | "High",
  "affected_components": [component, ...] (at least one),
  "status": "Under Review"
}}
Do not add any other fields.`

const defaultExtractInquiryPrompt = `You categorize general customer inquiries about {{PRODUCT}} and suggest helpful resources.
Return a single JSON object in exactly this shape:
{
  "inquiry_category": "Account Management" | "Billing" | "Usage Question" | "Other",
  "requires_human_review": true | false,
  "suggested_resources": [{"title": resource name, "url": resource URL}, ...]
}
Do not add any other fields.`
