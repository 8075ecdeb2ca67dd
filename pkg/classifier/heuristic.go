package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"triage/internal/models"
	"triage/internal/requestctx"
	"triage/internal/util"
)

// HeuristicClassifier classifies messages by keyword matching. It makes no
// network calls and is meant for local development and tests.
type HeuristicClassifier struct {
	replies          ReplyGenerator
	resourcesBaseURL string
	newID            func(prefix string) string
}

// NewHeuristicClassifier creates a keyword classifier. Replies are
// produced by replies, typically a template generator.
func NewHeuristicClassifier(replies ReplyGenerator, resourcesBaseURL string) (*HeuristicClassifier, error) {
	if replies == nil {
		return nil, errors.New("heuristic classifier requires a reply generator")
	}
	return &HeuristicClassifier{replies: replies, resourcesBaseURL: resourcesBaseURL, newID: NewReferenceID}, nil
}

func (h *HeuristicClassifier) Name() string { return "heuristic" }

type keywordSet []*regexp.Regexp

func keywords(words ...string) keywordSet {
	set := make(keywordSet, 0, len(words))
	for _, w := range words {
		expr := regexp.QuoteMeta(w)
		if w[0] >= 'a' && w[0] <= 'z' {
			expr = `\b` + expr
		}
		set = append(set, regexp.MustCompile(expr))
	}
	return set
}

func (k keywordSet) hits(text string) int {
	n := 0
	for _, re := range k {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

var (
	bugKeywords = keywords("can't", "cannot", "unable to", "error", "crash", "broken", "not working",
		"nothing happens", "spins", "bug", "fails", "failed", "stuck", "freez", "doesn't work")
	featureKeywords = keywords("would be", "useful", "instead of", "feature", "please add", "wish",
		"suggest", "option to", "ability to", "it would", "could you add")
	inquiryKeywords = keywords("how", "?", "billing", "plan", "account", "price", "pricing", "what", "can you tell")

	severityCritical = keywords("crash", "data loss", "lost my data", "security", "all users", "charged twice")
	severityHigh     = keywords("can't", "cannot", "unable to", "log in", "login", "payment", "nothing happens")

	billingKeywords = keywords("billing", "bill", "invoice", "price", "pricing", "plan", "refund", "payment", "subscription", "charge")
	accountKeywords = keywords("account", "password", "sign up", "signed up", "email", "profile", "username")
	usageKeywords   = keywords("how do", "how to", "how can", "use", "setting", "feature", "export", "sync")
)

var components = []struct {
	match keywordSet
	name  string
	team  string
}{
	{keywords("log in", "login", "password", "sign in", "authenticat"), "Authentication System", "Authentication Team"},
	{keywords("notification", "remind", "alert"), "Notification System", "Notifications Team"},
	{keywords("schedul", "calendar", "workout"), "Scheduler", "Scheduling Team"},
	{keywords("billing", "payment", "invoice", "subscription", "charge"), "Billing", "Billing Team"},
	{keywords("sync", "export", "import", "backup"), "Data Sync", "Platform Team"},
	{keywords("slow", "performance", "lag"), "Performance", "Platform Team"},
}

func componentFor(text string) (component, team string) {
	for _, c := range components {
		if c.match.hits(text) > 0 {
			return c.name, c.team
		}
	}
	return "General", "Product Support Team"
}

func (h *HeuristicClassifier) Classify(ctx context.Context, msg models.CustomerMessage) (Classification, error) {
	if err := ValidateMessage(msg); err != nil {
		return Classification{}, err
	}
	text := strings.ToLower(msg.Message)

	scores := []struct {
		t    models.MessageType
		hits int
	}{
		{models.MessageTypeBugReport, bugKeywords.hits(text)},
		{models.MessageTypeFeatureRequest, featureKeywords.hits(text)},
		{models.MessageTypeGeneralInquiry, inquiryKeywords.hits(text)},
	}
	best, second := 0, -1
	for i := 1; i < len(scores); i++ {
		if scores[i].hits > scores[best].hits {
			second, best = best, i
		} else if second < 0 || scores[i].hits > scores[second].hits {
			second = i
		}
	}

	result := Classification{}
	if scores[best].hits == 0 {
		result.MessageType = models.MessageTypeGeneralInquiry
		result.ConfidenceScore = 0.3
	} else {
		result.MessageType = scores[best].t
		margin := float64(scores[best].hits - scores[second].hits)
		result.ConfidenceScore = math.Min(0.95, 0.5+0.15*margin)
	}

	switch result.MessageType {
	case models.MessageTypeBugReport:
		result.Data = h.bugReport(msg, text)
	case models.MessageTypeFeatureRequest:
		result.Data = h.featureRequest(msg, text)
	default:
		result.Data = h.generalInquiry(msg, text, result.ConfidenceScore)
	}

	reply, err := h.replies.GenerateReply(ctx, msg, result)
	if err != nil {
		return Classification{}, fmt.Errorf("generate reply: %w", err)
	}
	result.Reply = reply

	log.WithFields(log.Fields{
		"request_id":   requestctx.RequestID(ctx),
		"customer_id":  msg.CustomerID,
		"message_type": result.MessageType,
		"confidence":   result.ConfidenceScore,
	}).Info("Message classified")
	return result, nil
}

func (h *HeuristicClassifier) bugReport(msg models.CustomerMessage, text string) models.BugReportData {
	severity := "Medium"
	switch {
	case severityCritical.hits(text) > 0:
		severity = "Critical"
	case severityHigh.hits(text) > 0:
		severity = "High"
	}
	priority := "Medium"
	if severity == "High" || severity == "Critical" {
		priority = "High"
	}

	steps := util.SplitSentences(msg.Message)
	if len(steps) > 5 {
		steps = steps[:5]
	}
	if len(steps) == 0 {
		steps = []string{msg.Message}
	}

	component, team := componentFor(text)
	return models.BugReportData{Ticket: models.BugTicket{
		ID:                h.newID(models.BugTicketPrefix),
		Title:             summarize(msg.Message),
		Severity:          severity,
		AffectedComponent: component,
		ReproductionSteps: steps,
		Priority:          priority,
		AssignedTeam:      team,
	}}
}

func (h *HeuristicClassifier) featureRequest(msg models.CustomerMessage, text string) models.FeatureRequestData {
	component, _ := componentFor(text)
	complexity := "Medium"
	if len(msg.Message) < 80 {
		complexity = "Low"
	}
	title := component + " enhancement"
	if component == "General" {
		title = summarize(msg.Message)
	}
	return models.FeatureRequestData{ProductRequirement: models.ProductRequirement{
		ID:                 h.newID(models.FeatureRequestPrefix),
		Title:              title,
		Description:        msg.Message,
		UserStory:          fmt.Sprintf("As a user of %s, I want the improvement described in this request so that the product fits how I use it", msg.Product),
		BusinessValue:      fmt.Sprintf("Medium - Requested directly by a %s customer", msg.Product),
		ComplexityEstimate: complexity,
		AffectedComponents: []string{component},
		Status:             models.StatusUnderReview,
	}}
}

func (h *HeuristicClassifier) generalInquiry(msg models.CustomerMessage, text string, confidence float64) models.GeneralInquiryData {
	category := "Other"
	switch {
	case billingKeywords.hits(text) > 0:
		category = "Billing"
	case accountKeywords.hits(text) > 0:
		category = "Account Management"
	case usageKeywords.hits(text) > 0:
		category = "Usage Question"
	}
	return models.GeneralInquiryData{
		InquiryCategory:     category,
		RequiresHumanReview: category == "Other" || confidence < 0.6,
		SuggestedResources:  SuggestedResources(h.resourcesBaseURL, msg.Product, category),
	}
}

// summarize returns the first sentence of text, shortened to a title.
func summarize(text string) string {
	title := text
	if sents := util.SplitSentences(text); len(sents) > 0 {
		title = sents[0]
	}
	title = strings.TrimRight(title, ".!? ")
	if r := []rune(title); len(r) > 80 {
		title = strings.TrimSpace(string(r[:77])) + "..."
	}
	return title
}

var _ MessageClassifier = (*HeuristicClassifier)(nil)
