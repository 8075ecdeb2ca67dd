package classifier

import (
	"strings"

	"triage/internal/models"
)

// SuggestedResources returns the self-service links for an inquiry
// category, rooted at baseURL.
func SuggestedResources(baseURL, product, category string) []models.SuggestedResource {
	base := strings.TrimRight(baseURL, "/")
	link := func(title, path string) models.SuggestedResource {
		return models.SuggestedResource{Title: title, URL: base + path}
	}

	switch category {
	case "Billing":
		return []models.SuggestedResource{link("Billing FAQ", "/billing-faq"), link("Plan Comparison", "/plans")}
	case "Account Management":
		return []models.SuggestedResource{link("Account Settings Guide", "/help/account"), link("Help Center", "/help")}
	case "Usage Question":
		return []models.SuggestedResource{link(product+" Documentation", "/docs"), link("Help Center", "/help")}
	}
	return []models.SuggestedResource{link("Help Center", "/help"), link("Contact Support", "/support")}
}
