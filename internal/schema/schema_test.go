package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage/internal/models"
)

func validBug() models.BugReportData {
	return models.BugReportData{Ticket: models.BugTicket{
		ID:                "BUG-4821",
		Title:             "Login button spins indefinitely",
		Severity:          "High",
		AffectedComponent: "Authentication System",
		ReproductionSteps: []string{"Open the web portal", "Enter password", "Click login"},
		Priority:          "High",
		AssignedTeam:      "Identity Team",
	}}
}

func TestValidateData_Conforming(t *testing.T) {
	testCases := []models.ResponseData{
		validBug(),
		models.FeatureRequestData{ProductRequirement: models.ProductRequirement{
			ID:                 "FR-1234",
			Title:              "Configurable workout reminder",
			Description:        "Allow reminders 15 minutes before a workout",
			UserStory:          "As a user I want earlier reminders so that I can prepare",
			BusinessValue:      "Better engagement",
			ComplexityEstimate: "Low",
			AffectedComponents: []string{"Notification System"},
			Status:             models.StatusUnderReview,
		}},
		models.GeneralInquiryData{
			InquiryCategory:     "Billing",
			RequiresHumanReview: false,
			SuggestedResources:  []models.SuggestedResource{{Title: "Billing FAQ", URL: "https://example.com/billing-faq"}},
		},
	}

	for _, d := range testCases {
		t.Run(string(d.MessageType()), func(t *testing.T) {
			v, err := ValidateData(d)
			require.NoError(t, err)
			assert.Empty(t, v)
		})
	}
}

func TestValidateData_Violations(t *testing.T) {
	bug := validBug()
	bug.Ticket.Severity = "Urgent"
	bug.Ticket.ReproductionSteps = nil
	bug.Ticket.ID = "4821"

	v, err := ValidateData(bug)
	require.NoError(t, err)
	assert.Len(t, v, 3, "every violation should be reported: %v", v)
	for _, msg := range v {
		assert.Contains(t, msg, "/ticket/")
	}
}

func TestValidateJSON_MissingFields(t *testing.T) {
	v, err := ValidateJSON(models.MessageTypeGeneralInquiry, []byte(`{"inquiry_category": "Billing"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, v)

	v, err = ValidateJSON(models.MessageTypeFeatureRequest, []byte(`not json`))
	require.NoError(t, err)
	require.Len(t, v, 1)
	assert.Contains(t, v[0], "not valid JSON")
}

func TestValidateJSON_StatusMustBeUnderReview(t *testing.T) {
	raw := `{"product_requirement": {"id": "FR-1", "title": "t", "description": "d", "user_story": "u",
		"business_value": "b", "complexity_estimate": "Low", "affected_components": ["x"], "status": "Approved"}}`

	v, err := ValidateJSON(models.MessageTypeFeatureRequest, []byte(raw))
	require.NoError(t, err)
	require.Len(t, v, 1)
	assert.Contains(t, v[0], "/product_requirement/status")
}

func TestValidate_UnknownType(t *testing.T) {
	_, err := Validate(models.MessageType("complaint"), map[string]any{})
	assert.Error(t, err)

	_, err = Raw(models.MessageType("complaint"))
	assert.Error(t, err)
}

func TestRaw(t *testing.T) {
	raw, err := Raw(models.MessageTypeBugReport)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "reproduction_steps")
}

func TestIDPatternsMatchModels(t *testing.T) {
	testCases := []struct {
		messageType models.MessageType
		object      string
		pattern     string
	}{
		{models.MessageTypeBugReport, "ticket", models.BugTicketIDPattern.String()},
		{models.MessageTypeFeatureRequest, "product_requirement", models.FeatureRequestIDPattern.String()},
	}

	for _, tc := range testCases {
		t.Run(string(tc.messageType), func(t *testing.T) {
			raw, err := Raw(tc.messageType)
			require.NoError(t, err)

			var doc struct {
				Properties map[string]struct {
					Properties map[string]struct {
						Pattern string `json:"pattern"`
					} `json:"properties"`
				} `json:"properties"`
			}
			require.NoError(t, json.Unmarshal(raw, &doc))
			assert.Equal(t, tc.pattern, doc.Properties[tc.object].Properties["id"].Pattern)
		})
	}
}
