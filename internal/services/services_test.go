package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"triage/internal/llm"
	"triage/internal/models"
	"triage/internal/requestctx"
	"triage/pkg/classifier"
)

const testProduct = "1440 Mobile App"

// --- Mocks ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishClassified(ctx context.Context, event models.ClassifiedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) Close() error { return nil }

type stubClassifier struct {
	result classifier.Classification
	err    error
	calls  int
	ctx    context.Context
}

func (s *stubClassifier) Classify(ctx context.Context, msg models.CustomerMessage) (classifier.Classification, error) {
	s.calls++
	s.ctx = ctx
	if err := classifier.ValidateMessage(msg); err != nil {
		return classifier.Classification{}, err
	}
	return s.result, s.err
}

func (s *stubClassifier) Name() string { return "stub" }

type scriptedCompletions struct {
	content string
	err     error
	reqs    []llm.CompletionRequest
}

func (s *scriptedCompletions) Complete(ctx context.Context, req llm.CompletionRequest) (llm.Completion, error) {
	s.reqs = append(s.reqs, req)
	return llm.Completion{Content: s.content}, s.err
}

func (s *scriptedCompletions) Status() llm.ProviderStatus { return llm.ProviderStatusActive }
func (s *scriptedCompletions) Name() string               { return "scripted" }
func (s *scriptedCompletions) ModelName() string          { return "scripted-model" }

// --- End Mocks ---

func bugClassification() classifier.Classification {
	return classifier.Classification{
		ClassificationResult: models.ClassificationResult{MessageType: models.MessageTypeBugReport, ConfidenceScore: 0.9},
		Data: models.BugReportData{Ticket: models.BugTicket{
			ID:                "BUG-4821",
			Title:             "Login button spins",
			Severity:          "High",
			AffectedComponent: "Authentication System",
			ReproductionSteps: []string{"Enter password", "Click login"},
			Priority:          "High",
			AssignedTeam:      "Authentication Team",
		}},
		Reply: "Sorry about that. We created a ticket for you. Our team is on it. We will update you. Thanks for your patience. Have a nice day.",
	}
}

func validMessage() models.CustomerMessage {
	return models.CustomerMessage{CustomerID: "cust-42", Message: "I can't log in.", Product: testProduct}
}

func TestMessageService_Process(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishClassified", mock.Anything, mock.MatchedBy(func(e models.ClassifiedEvent) bool {
		return e.CustomerID == "cust-42" && e.ReferenceID == "BUG-4821" && e.RequestID == "req-7" &&
			e.MessageType == models.MessageTypeBugReport
	})).Return(nil).Once()

	stub := &stubClassifier{result: bugClassification()}
	svc, err := NewMessageService(MessageServiceDeps{Classifier: stub, Publisher: pub, Timeout: time.Minute, MaxReplySentences: 4})
	require.NoError(t, err)

	ctx := requestctx.WithRequestID(context.Background(), "req-7")
	out, err := svc.Process(ctx, validMessage())
	require.NoError(t, err)

	assert.Equal(t, models.MessageTypeBugReport, out.MessageType)
	assert.InDelta(t, 0.9, out.ConfidenceScore, 1e-9)
	assert.Equal(t, "Sorry about that. We created a ticket for you. Our team is on it. We will update you.", out.CustomerResponse)
	_, hasDeadline := stub.ctx.Deadline()
	assert.True(t, hasDeadline, "classification runs under the request timeout")
	pub.AssertExpectations(t)
}

func TestMessageService_InvalidInputSkipsClassifier(t *testing.T) {
	pub := new(mockPublisher)
	stub := &stubClassifier{result: bugClassification()}
	svc, err := NewMessageService(MessageServiceDeps{Classifier: stub, Publisher: pub})
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), models.CustomerMessage{CustomerID: "c", Message: "<p>  </p>", Product: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInputValidation)
	assert.Zero(t, stub.calls)
	pub.AssertNotCalled(t, "PublishClassified", mock.Anything, mock.Anything)
}

func TestMessageService_ClassifierErrorIsReturned(t *testing.T) {
	extErr := &models.ExternalServiceError{Provider: "openai", Attempts: 3, Err: errors.New("503")}
	pub := new(mockPublisher)
	svc, err := NewMessageService(MessageServiceDeps{Classifier: &stubClassifier{err: extErr}, Publisher: pub})
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), validMessage())
	assert.ErrorIs(t, err, models.ErrExternalService)
	pub.AssertNotCalled(t, "PublishClassified", mock.Anything, mock.Anything)
}

func TestMessageService_RejectsNonConformingPayload(t *testing.T) {
	bad := bugClassification()
	ticket := bad.Data.(models.BugReportData)
	ticket.Ticket.ReproductionSteps = nil
	bad.Data = ticket

	svc, err := NewMessageService(MessageServiceDeps{Classifier: &stubClassifier{result: bad}})
	require.NoError(t, err)

	out, err := svc.Process(context.Background(), validMessage())
	assert.Nil(t, out)
	assert.ErrorIs(t, err, models.ErrOutputValidation)
}

func TestMessageService_PublishFailureDoesNotFailRequest(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishClassified", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()

	svc, err := NewMessageService(MessageServiceDeps{Classifier: &stubClassifier{result: bugClassification()}, Publisher: pub})
	require.NoError(t, err)

	out, err := svc.Process(context.Background(), validMessage())
	require.NoError(t, err)
	assert.NotNil(t, out)
	pub.AssertExpectations(t)
}

func TestTemplateReplyGenerator(t *testing.T) {
	g := NewTemplateReplyGenerator()
	msg := validMessage()

	reply, err := g.GenerateReply(context.Background(), msg, bugClassification())
	require.NoError(t, err)
	assert.Equal(t, "Thank you for reporting this issue with 1440 Mobile App. We've created ticket BUG-4821 with High priority and our team is investigating. We'll update you once we have more information.", reply)

	feature := classifier.Classification{Data: models.FeatureRequestData{ProductRequirement: models.ProductRequirement{ID: "FR-7310", Title: "Earlier reminders"}}}
	reply, err = g.GenerateReply(context.Background(), msg, feature)
	require.NoError(t, err)
	assert.Equal(t, "Thank you for your suggestion about Earlier reminders! We've logged it as FR-7310 and our product team will review it. We appreciate your feedback as it helps us improve 1440 Mobile App.", reply)

	inquiry := classifier.Classification{Data: models.GeneralInquiryData{
		InquiryCategory: "Billing",
		SuggestedResources: []models.SuggestedResource{
			{Title: "Billing FAQ", URL: "https://example.com/billing-faq"},
			{Title: "Plan Comparison", URL: "https://example.com/plans"},
			{Title: "Help Center", URL: "https://example.com/help"},
		},
	}}
	reply, err = g.GenerateReply(context.Background(), msg, inquiry)
	require.NoError(t, err)
	assert.Equal(t, "Thank you for your inquiry about 1440 Mobile App. For more information, check out Billing FAQ at https://example.com/billing-faq and Plan Comparison at https://example.com/plans.", reply)
}

func TestLLMReplyGenerator(t *testing.T) {
	completions := &scriptedCompletions{content: "  We're on it!  "}
	g := NewLLMReplyGenerator(completions, LLMReplyGeneratorConfig{Temperature: 0.7, MaxTokens: 200})

	reply, err := g.GenerateReply(context.Background(), validMessage(), bugClassification())
	require.NoError(t, err)
	assert.Equal(t, "We're on it!", reply)

	require.Len(t, completions.reqs, 1)
	req := completions.reqs[0]
	assert.Equal(t, models.OperationReply, req.Operation)
	assert.False(t, req.JSON)
	assert.Equal(t, 200, req.MaxTokens)
	assert.Contains(t, req.Messages[1].Content, "ID: BUG-4821")
}

func TestLLMReplyGenerator_FallsBackToTemplate(t *testing.T) {
	completions := &scriptedCompletions{err: &models.ExternalServiceError{Provider: "scripted", Attempts: 3, Err: errors.New("503")}}
	g := NewLLMReplyGenerator(completions, LLMReplyGeneratorConfig{})

	reply, err := g.GenerateReply(context.Background(), validMessage(), bugClassification())
	require.NoError(t, err)
	assert.Contains(t, reply, "We've created ticket BUG-4821")
}

func TestLLMReplyGenerator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewLLMReplyGenerator(&scriptedCompletions{err: context.Canceled}, LLMReplyGeneratorConfig{})

	_, err := g.GenerateReply(ctx, validMessage(), bugClassification())
	assert.ErrorIs(t, err, context.Canceled)
}
