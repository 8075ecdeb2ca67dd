package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// MessageType is the category assigned to a customer message.
type MessageType string

const (
	MessageTypeBugReport      MessageType = "bug_report"
	MessageTypeFeatureRequest MessageType = "feature_request"
	MessageTypeGeneralInquiry MessageType = "general_inquiry"
)

// MessageTypes lists every supported category in prompt order.
var MessageTypes = []MessageType{
	MessageTypeBugReport,
	MessageTypeFeatureRequest,
	MessageTypeGeneralInquiry,
}

// Valid reports whether t is one of the supported categories.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeBugReport, MessageTypeFeatureRequest, MessageTypeGeneralInquiry:
		return true
	}
	return false
}

// CustomerMessage is the inbound request. It is never persisted.
type CustomerMessage struct {
	CustomerID string `json:"customer_id" binding:"required"`
	Message    string `json:"message" binding:"required"`
	Product    string `json:"product" binding:"required"`
}

// ClassificationResult is the category decision for one message.
type ClassificationResult struct {
	MessageType     MessageType `json:"message_type"`
	ConfidenceScore float64     `json:"confidence_score"`
}

// Allowed values for the enumerated payload fields.
var (
	Severities           = []string{"Low", "Medium", "High", "Critical"}
	Priorities           = []string{"Low", "Medium", "High"}
	Complexities         = []string{"Low", "Medium", "High"}
	InquiryCategories    = []string{"Account Management", "Billing", "Usage Question", "Other"}
	StatusUnderReview    = "Under Review"
	BugTicketPrefix      = "BUG-"
	FeatureRequestPrefix = "FR-"
)

// Reference id formats. The output schemas use the same patterns.
var (
	BugTicketIDPattern      = regexp.MustCompile(`^BUG-[0-9]+$`)
	FeatureRequestIDPattern = regexp.MustCompile(`^FR-[0-9]+$`)
)

type BugTicket struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Severity          string   `json:"severity"`
	AffectedComponent string   `json:"affected_component"`
	ReproductionSteps []string `json:"reproduction_steps"`
	Priority          string   `json:"priority"`
	AssignedTeam      string   `json:"assigned_team"`
}

type ProductRequirement struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	UserStory          string   `json:"user_story"`
	BusinessValue      string   `json:"business_value"`
	ComplexityEstimate string   `json:"complexity_estimate"`
	AffectedComponents []string `json:"affected_components"`
	Status             string   `json:"status"`
}

type SuggestedResource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ResponseData is the arm-specific structured payload. Exactly one
// implementation exists per MessageType.
type ResponseData interface {
	MessageType() MessageType
	// ReferenceID is the ticket or requirement id, empty for inquiries.
	ReferenceID() string
}

type BugReportData struct {
	Ticket BugTicket `json:"ticket"`
}

func (BugReportData) MessageType() MessageType { return MessageTypeBugReport }
func (d BugReportData) ReferenceID() string    { return d.Ticket.ID }

type FeatureRequestData struct {
	ProductRequirement ProductRequirement `json:"product_requirement"`
}

func (FeatureRequestData) MessageType() MessageType { return MessageTypeFeatureRequest }
func (d FeatureRequestData) ReferenceID() string    { return d.ProductRequirement.ID }

type GeneralInquiryData struct {
	InquiryCategory     string              `json:"inquiry_category"`
	RequiresHumanReview bool                `json:"requires_human_review"`
	SuggestedResources  []SuggestedResource `json:"suggested_resources"`
}

func (GeneralInquiryData) MessageType() MessageType { return MessageTypeGeneralInquiry }
func (GeneralInquiryData) ReferenceID() string      { return "" }

// DecodeResponseData decodes raw JSON into the typed payload for t.
// Unknown keys are dropped.
func DecodeResponseData(t MessageType, raw []byte) (ResponseData, error) {
	switch t {
	case MessageTypeBugReport:
		var d BugReportData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case MessageTypeFeatureRequest:
		var d FeatureRequestData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	case MessageTypeGeneralInquiry:
		var d GeneralInquiryData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, fmt.Errorf("unknown message type %q", t)
}

// ProcessedMessage is the response returned to the caller.
type ProcessedMessage struct {
	MessageType      MessageType  `json:"message_type"`
	ConfidenceScore  float64      `json:"confidence_score"`
	ResponseData     ResponseData `json:"response_data"`
	CustomerResponse string       `json:"customer_response"`
}

// UnmarshalJSON restores the typed ResponseData, e.g. when reading a
// stored async task result.
func (p *ProcessedMessage) UnmarshalJSON(b []byte) error {
	var raw struct {
		MessageType      MessageType     `json:"message_type"`
		ConfidenceScore  float64         `json:"confidence_score"`
		ResponseData     json.RawMessage `json:"response_data"`
		CustomerResponse string          `json:"customer_response"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := DecodeResponseData(raw.MessageType, raw.ResponseData)
	if err != nil {
		return err
	}
	p.MessageType = raw.MessageType
	p.ConfidenceScore = raw.ConfidenceScore
	p.ResponseData = data
	p.CustomerResponse = raw.CustomerResponse
	return nil
}

// AIUsageLog represents a record of AI API usage for cost tracking.
type AIUsageLog struct {
	ID           int64     `db:"id" json:"id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	ProviderName string    `db:"provider_name" json:"provider_name"`
	Operation    string    `db:"operation" json:"operation"` // classification, extraction, reply
	ModelName    string    `db:"model_name" json:"model_name"`
	InputTokens  int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens int       `db:"output_tokens" json:"output_tokens"`
	Cost         float64   `db:"cost" json:"cost"`
	RequestID    *string   `db:"request_id" json:"request_id,omitempty"` // nullable
}

// UsageSummary aggregates the usage ledger.
type UsageSummary struct {
	Calls             int64   `json:"calls"`
	TotalCost         float64 `json:"total_cost_usd"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
}

// ClassifiedEvent is published downstream after a message was classified.
type ClassifiedEvent struct {
	EventID         uuid.UUID   `json:"event_id"`
	RequestID       string      `json:"request_id,omitempty"`
	CustomerID      string      `json:"customer_id"`
	Product         string      `json:"product"`
	MessageType     MessageType `json:"message_type"`
	ConfidenceScore float64     `json:"confidence_score"`
	ReferenceID     string      `json:"reference_id,omitempty"`
	OccurredAt      time.Time   `json:"occurred_at"`
}
