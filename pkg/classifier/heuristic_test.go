package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage/internal/models"
	"triage/internal/schema"
)

func newHeuristic(t *testing.T) *HeuristicClassifier {
	t.Helper()
	h, err := NewHeuristicClassifier(&stubReplies{reply: "Thank you for reaching out."}, "https://example.com")
	require.NoError(t, err)
	return h
}

func TestHeuristicClassifier_LiteralCases(t *testing.T) {
	testCases := []struct {
		name     string
		message  string
		wantType models.MessageType
	}{
		{"login button spins", loginMessage, models.MessageTypeBugReport},
		{"notification timing", notificationMessage, models.MessageTypeFeatureRequest},
		{"billing question", billingMessage, models.MessageTypeGeneralInquiry},
	}

	h := newHeuristic(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := h.Classify(context.Background(), message(tc.message))
			require.NoError(t, err)

			assert.Equal(t, tc.wantType, result.MessageType)
			assert.GreaterOrEqual(t, result.ConfidenceScore, 0.0)
			assert.LessOrEqual(t, result.ConfidenceScore, 1.0)
			require.NotNil(t, result.Data)
			assert.Equal(t, tc.wantType, result.Data.MessageType())
			assert.NotEmpty(t, result.Reply)

			violations, err := schema.ValidateData(result.Data)
			require.NoError(t, err)
			assert.Empty(t, violations)
		})
	}
}

func TestHeuristicClassifier_BugDetails(t *testing.T) {
	result, err := newHeuristic(t).Classify(context.Background(), message(loginMessage))
	require.NoError(t, err)

	bug := result.Data.(models.BugReportData).Ticket
	assert.Regexp(t, `^BUG-\d{4}$`, bug.ID)
	assert.Equal(t, "Authentication System", bug.AffectedComponent)
	assert.Equal(t, "Authentication Team", bug.AssignedTeam)
	assert.Equal(t, "High", bug.Severity)
	assert.Equal(t, "High", bug.Priority)
	assert.Equal(t, "I can't log in to the web portal", bug.Title)
	assert.Len(t, bug.ReproductionSteps, 2)
}

func TestHeuristicClassifier_FeatureDetails(t *testing.T) {
	result, err := newHeuristic(t).Classify(context.Background(), message(notificationMessage))
	require.NoError(t, err)

	fr := result.Data.(models.FeatureRequestData).ProductRequirement
	assert.Regexp(t, `^FR-\d{4}$`, fr.ID)
	assert.Equal(t, models.StatusUnderReview, fr.Status)
	assert.Equal(t, []string{"Notification System"}, fr.AffectedComponents)
}

func TestHeuristicClassifier_BillingInquiry(t *testing.T) {
	result, err := newHeuristic(t).Classify(context.Background(), message(billingMessage))
	require.NoError(t, err)

	inquiry := result.Data.(models.GeneralInquiryData)
	assert.Equal(t, "Billing", inquiry.InquiryCategory)
	assert.False(t, inquiry.RequiresHumanReview)
	assert.Equal(t, []models.SuggestedResource{
		{Title: "Billing FAQ", URL: "https://example.com/billing-faq"},
		{Title: "Plan Comparison", URL: "https://example.com/plans"},
	}, inquiry.SuggestedResources)
}

func TestHeuristicClassifier_NoSignal(t *testing.T) {
	result, err := newHeuristic(t).Classify(context.Background(), message("Greetings from Lisbon"))
	require.NoError(t, err)

	assert.Equal(t, models.MessageTypeGeneralInquiry, result.MessageType)
	assert.InDelta(t, 0.3, result.ConfidenceScore, 1e-9)
	inquiry := result.Data.(models.GeneralInquiryData)
	assert.Equal(t, "Other", inquiry.InquiryCategory)
	assert.True(t, inquiry.RequiresHumanReview)
}

func TestHeuristicClassifier_InvalidInput(t *testing.T) {
	replies := &stubReplies{reply: "unused"}
	h, err := NewHeuristicClassifier(replies, "https://example.com")
	require.NoError(t, err)

	_, err = h.Classify(context.Background(), models.CustomerMessage{Message: "help"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInputValidation)
	assert.Zero(t, replies.calls)
}
