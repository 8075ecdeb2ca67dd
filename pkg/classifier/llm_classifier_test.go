package classifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage/internal/llm"
	"triage/internal/models"
	"triage/internal/schema"
)

const (
	loginMessage        = "I can't log in to the web portal. When I enter my password and click login, the button just spins and nothing happens."
	notificationMessage = "It would be really useful if the app could send me a notification 15 minutes before a scheduled workout instead of just 5 minutes before."
	billingMessage      = "Hello, I just signed up yesterday. Can you tell me how billing works and if there's a way to switch between monthly and annual plans?"
	testProduct         = "1440 Mobile App"
)

// --- Fake completion service ---
type fakeCompletions struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	requests  []llm.CompletionRequest
}

func (f *fakeCompletions) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return llm.Completion{}, err
		}
	}
	if len(f.responses) == 0 {
		return llm.Completion{}, errors.New("no scripted response")
	}
	out := f.responses[0]
	f.responses = f.responses[1:]
	return llm.Completion{Content: out, Model: "fake-model"}, nil
}

func (f *fakeCompletions) Status() llm.ProviderStatus { return llm.ProviderStatusActive }
func (f *fakeCompletions) Name() string               { return "fake" }
func (f *fakeCompletions) ModelName() string          { return "fake-model" }

// --- End fake completion service ---

type stubReplies struct {
	reply string
	err   error
	calls int
}

func (s *stubReplies) GenerateReply(ctx context.Context, msg models.CustomerMessage, c Classification) (string, error) {
	s.calls++
	return s.reply, s.err
}

func fixedIDs(prefix string) string {
	if prefix == models.BugTicketPrefix {
		return "BUG-4821"
	}
	return "FR-7310"
}

func message(text string) models.CustomerMessage {
	return models.CustomerMessage{CustomerID: "cust-42", Message: text, Product: testProduct}
}

const bugResponse = `{
  "message_type": "bug_report",
  "confidence_score": 0.93,
  "response_data": {"ticket": {
    "id": "BUG-4821",
    "title": "Login button spins indefinitely",
    "severity": "High",
    "affected_component": "Authentication System",
    "reproduction_steps": ["Open the web portal", "Enter password", "Click login"],
    "priority": "High",
    "assigned_team": "Authentication Team"
  }},
  "customer_response": "Thanks for reporting this. We've created ticket BUG-4821 and our team is investigating."
}`

const featureResponse = "```json\n" + `{
  "message_type": "feature_request",
  "confidence_score": 0.9,
  "response_data": {"product_requirement": {
    "id": "7310",
    "title": "Configurable workout reminder",
    "description": "Send workout reminders 15 minutes before instead of 5",
    "user_story": "As a user, I want earlier reminders so that I have time to prepare",
    "business_value": "Medium - improves engagement",
    "complexity_estimate": "Low",
    "affected_components": ["Notification System", "Scheduler"],
    "status": "Planned",
    "extra": "dropped"
  }},
  "customer_response": "Thanks for the suggestion! We've logged it as FR-7310."
}` + "\n```"

func newSingle(t *testing.T, fake *fakeCompletions) *LLMClassifier {
	t.Helper()
	c, err := NewLLMClassifier(fake, Options{Temperature: 0.2, MaxTokens: 1024, NewID: fixedIDs})
	require.NoError(t, err)
	return c
}

func TestLLMClassifier_Single_BugReport(t *testing.T) {
	fake := &fakeCompletions{responses: []string{bugResponse}}
	c := newSingle(t, fake)

	result, err := c.Classify(context.Background(), message(loginMessage))
	require.NoError(t, err)

	assert.Equal(t, models.MessageTypeBugReport, result.MessageType)
	assert.InDelta(t, 0.93, result.ConfidenceScore, 1e-9)
	bug, ok := result.Data.(models.BugReportData)
	require.True(t, ok, "expected bug report payload, got %T", result.Data)
	assert.Equal(t, "BUG-4821", bug.Ticket.ID)
	assert.NotEmpty(t, result.Reply)

	violations, err := schema.ValidateData(result.Data)
	require.NoError(t, err)
	assert.Empty(t, violations)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.True(t, req.JSON)
	assert.Equal(t, models.OperationClassification, req.Operation)
	assert.Contains(t, req.Messages[0].Content, "BUG-4821", "pre-generated ids are embedded in the prompt")
	assert.Contains(t, req.Messages[0].Content, "FR-7310")
	assert.Contains(t, req.Messages[1].Content, loginMessage)
}

func TestLLMClassifier_Single_FeatureRequestRepairsServerFields(t *testing.T) {
	for _, id := range []string{"7310", "FR-", "FR-abc", "FR-12a", "BUG-55"} {
		t.Run(id, func(t *testing.T) {
			content := strings.Replace(featureResponse, `"id": "7310"`, `"id": "`+id+`"`, 1)
			fake := &fakeCompletions{responses: []string{content}}
			c := newSingle(t, fake)

			result, err := c.Classify(context.Background(), message(notificationMessage))
			require.NoError(t, err)

			assert.Equal(t, models.MessageTypeFeatureRequest, result.MessageType)
			fr, ok := result.Data.(models.FeatureRequestData)
			require.True(t, ok)
			assert.Equal(t, "FR-7310", fr.ProductRequirement.ID, "malformed id is replaced by the generated id")
			assert.Equal(t, models.StatusUnderReview, fr.ProductRequirement.Status)

			violations, err := schema.ValidateData(result.Data)
			require.NoError(t, err)
			assert.Empty(t, violations)
		})
	}
}

func TestLLMClassifier_Single_BugReportRepairsMalformedID(t *testing.T) {
	testCases := []struct {
		id     string
		expect string
	}{
		{"BUG-", "BUG-4821"},
		{"BUG-XXXX", "BUG-4821"},
		{"BUG-12a", "BUG-4821"},
		{"bug-1234", "BUG-4821"},
		{"", "BUG-4821"},
		{"BUG-77", "BUG-77"},
	}

	for _, tc := range testCases {
		t.Run(tc.id, func(t *testing.T) {
			content := strings.Replace(bugResponse, `"id": "BUG-4821"`, `"id": "`+tc.id+`"`, 1)
			c := newSingle(t, &fakeCompletions{responses: []string{content}})

			result, err := c.Classify(context.Background(), message(loginMessage))
			require.NoError(t, err)
			bug, ok := result.Data.(models.BugReportData)
			require.True(t, ok)
			assert.Equal(t, tc.expect, bug.Ticket.ID)

			violations, err := schema.ValidateData(result.Data)
			require.NoError(t, err)
			assert.Empty(t, violations)
		})
	}
}

func TestLLMClassifier_EmptyMessageMakesNoCall(t *testing.T) {
	fake := &fakeCompletions{responses: []string{bugResponse}}
	c := newSingle(t, fake)

	for _, text := range []string{"", "   \n\t"} {
		_, err := c.Classify(context.Background(), message(text))
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrInputValidation)

		var ve *models.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []string{"message"}, ve.Fields)
	}
	assert.Empty(t, fake.requests, "no external call may be made for invalid input")
}

func TestLLMClassifier_Single_InvalidOutput(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		expect  string
	}{
		{"not json", "Sure! This looks like a bug report.", "not a JSON object"},
		{"unknown type", `{"message_type": "complaint", "confidence_score": 0.5, "response_data": {}, "customer_response": "ok"}`, "message_type"},
		{"confidence out of range", strings.Replace(bugResponse, "0.93", "1.7", 1), "confidence_score"},
		{"missing confidence", `{"message_type": "general_inquiry", "response_data": {"inquiry_category": "Other", "requires_human_review": true, "suggested_resources": []}, "customer_response": "ok"}`, "confidence_score is missing"},
		{"bad enum", strings.Replace(bugResponse, `"severity": "High"`, `"severity": "Urgent"`, 1), "/ticket/severity"},
		{"missing payload field", strings.Replace(bugResponse, `"assigned_team": "Authentication Team"`, `"owner": "x"`, 1), "assigned_team"},
		{"empty reply", strings.Replace(bugResponse, `"Thanks for reporting this. We've created ticket BUG-4821 and our team is investigating."`, `"  "`, 1), "customer_response"},
		{"missing response_data", `{"message_type": "bug_report", "confidence_score": 0.9, "customer_response": "ok"}`, "response_data is missing"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := newSingle(t, &fakeCompletions{responses: []string{tc.content}})

			result, err := c.Classify(context.Background(), message(loginMessage))
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrOutputValidation)
			assert.Contains(t, err.Error(), tc.expect)
			assert.Nil(t, result.Data, "invalid output must never be returned")
		})
	}
}

func TestLLMClassifier_RetriesThenExternalServiceError(t *testing.T) {
	unavailable := &openai.APIError{HTTPStatusCode: 503, Message: "The server is overloaded"}
	fake := &fakeCompletions{errs: []error{unavailable, unavailable, unavailable}}
	retrying := llm.NewRetryingService(fake, &llm.ExponentialJitter{MaxAttempts: 3})

	c, err := NewLLMClassifier(retrying, Options{NewID: fixedIDs})
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), message(loginMessage))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrExternalService)
	assert.Len(t, fake.requests, 3)

	var extErr *models.ExternalServiceError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, 3, extErr.Attempts)
}

func TestLLMClassifier_TransientFailureThenSuccess(t *testing.T) {
	fake := &fakeCompletions{
		errs:      []error{errors.New("429 Too Many Requests")},
		responses: []string{bugResponse},
	}
	retrying := llm.NewRetryingService(fake, &llm.ExponentialJitter{MaxAttempts: 3})
	c, err := NewLLMClassifier(retrying, Options{NewID: fixedIDs})
	require.NoError(t, err)

	result, err := c.Classify(context.Background(), message(loginMessage))
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeBugReport, result.MessageType)
	assert.Len(t, fake.requests, 2)
}

func TestLLMClassifier_UnwrappedProviderErrorIsExternal(t *testing.T) {
	fake := &fakeCompletions{errs: []error{errors.New("connection refused")}}
	c := newSingle(t, fake)

	_, err := c.Classify(context.Background(), message(loginMessage))
	assert.ErrorIs(t, err, models.ErrExternalService)
}

func TestLLMClassifier_Staged(t *testing.T) {
	fake := &fakeCompletions{responses: []string{
		`{"message_type": "general_inquiry", "confidence_score": 0.88, "reasoning": "Question about billing"}`,
		`{"inquiry_category": "Billing", "requires_human_review": false,
		  "suggested_resources": [{"title": "Billing FAQ", "url": "https://example.com/billing-faq"}]}`,
	}}
	replies := &stubReplies{reply: "Thanks for your question about billing."}
	c, err := NewLLMClassifier(fake, Options{Mode: ModeStaged, Replies: replies, NewID: fixedIDs})
	require.NoError(t, err)

	result, err := c.Classify(context.Background(), message(billingMessage))
	require.NoError(t, err)

	assert.Equal(t, models.MessageTypeGeneralInquiry, result.MessageType)
	assert.Equal(t, "Question about billing", result.Reasoning)
	inquiry, ok := result.Data.(models.GeneralInquiryData)
	require.True(t, ok)
	assert.Equal(t, "Billing", inquiry.InquiryCategory)
	assert.Equal(t, "Thanks for your question about billing.", result.Reply)
	assert.Equal(t, 1, replies.calls)

	require.Len(t, fake.requests, 2)
	assert.Equal(t, models.OperationClassification, fake.requests[0].Operation)
	assert.Equal(t, models.OperationExtraction, fake.requests[1].Operation)
	assert.Contains(t, fake.requests[1].Messages[0].Content, "inquiry_category")
}

func TestLLMClassifier_StagedRepairsMalformedID(t *testing.T) {
	fake := &fakeCompletions{responses: []string{
		`{"message_type": "bug_report", "confidence_score": 0.8, "reasoning": "broken login"}`,
		`{"ticket": {"id": "BUG-XXXX", "title": "Login button spins", "severity": "High",
		  "affected_component": "Authentication System", "reproduction_steps": ["Click login"],
		  "priority": "High", "assigned_team": "Authentication Team"}}`,
	}}
	replies := &stubReplies{reply: "We've created ticket BUG-4821."}
	c, err := NewLLMClassifier(fake, Options{Mode: ModeStaged, Replies: replies, NewID: fixedIDs})
	require.NoError(t, err)

	result, err := c.Classify(context.Background(), message(loginMessage))
	require.NoError(t, err)
	bug, ok := result.Data.(models.BugReportData)
	require.True(t, ok)
	assert.Equal(t, "BUG-4821", bug.Ticket.ID)
	assert.Equal(t, 1, replies.calls)
}

func TestLLMClassifier_StagedExtractionInvalid(t *testing.T) {
	fake := &fakeCompletions{responses: []string{
		`{"message_type": "bug_report", "confidence_score": 0.8, "reasoning": "broken login"}`,
		`{"ticket": {"id": "BUG-1", "title": "Login"}}`,
	}}
	replies := &stubReplies{reply: "unused"}
	c, err := NewLLMClassifier(fake, Options{Mode: ModeStaged, Replies: replies, NewID: fixedIDs})
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), message(loginMessage))
	require.Error(t, err)
	var ove *models.OutputValidationError
	require.ErrorAs(t, err, &ove)
	assert.Equal(t, "extraction", ove.Stage)
	assert.Zero(t, replies.calls)
}

func TestLLMClassifier_PromptOverride(t *testing.T) {
	fake := &fakeCompletions{responses: []string{bugResponse}}
	c, err := NewLLMClassifier(fake, Options{
		NewID:   fixedIDs,
		Prompts: Prompts{Single: "Product={{PRODUCT}} bug={{BUG_ID}} msg={{MESSAGE}}"},
	})
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), message(loginMessage))
	require.NoError(t, err)
	assert.Equal(t, "Product=1440 Mobile App bug=BUG-4821 msg="+loginMessage, fake.requests[0].Messages[0].Content)
}

func TestNewLLMClassifier_Errors(t *testing.T) {
	_, err := NewLLMClassifier(nil, Options{})
	assert.Error(t, err)

	_, err = NewLLMClassifier(&fakeCompletions{}, Options{Mode: "parallel"})
	assert.Error(t, err)

	_, err = NewLLMClassifier(&fakeCompletions{}, Options{Mode: ModeStaged})
	assert.Error(t, err, "staged mode needs a reply generator")
}

func TestNewReferenceID(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := NewReferenceID(models.BugTicketPrefix)
		assert.Regexp(t, `^BUG-[1-9][0-9]{3}$`, id)
	}
}
