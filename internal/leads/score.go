package leads

import "leadscout/internal/domain"

const (
	maxScore           = 100
	websiteBonus       = 5
	contactBonus       = 5
	corroborationBonus = 5
)

var methodWeight = map[domain.Confidence]float64{
	domain.ConfidenceSubdomain: 40,
	domain.ConfidenceLink:      25,
	domain.ConfidenceKeyword:   10,
}

// Score is a pure function of the lead's confirmed indicators, evidence,
// website and contact details. An indicator reported by two or more sources
// earns a corroboration bonus.
func Score(lead domain.CompanyLead) float64 {
	var score float64
	for name, ok := range lead.TargetIndicators {
		if !ok {
			continue
		}
		ev, found := lead.IndicatorEvidence[name]
		if !found {
			continue
		}
		score += methodWeight[ev.Method.Confidence()]
		if len(ev.Sources) >= 2 {
			score += corroborationBonus
		}
	}
	if lead.Website != nil && *lead.Website != "" {
		score += websiteBonus
	}
	if lead.Contact.Email != "" || lead.Contact.Phone != "" {
		score += contactBonus
	}
	return min(score, maxScore)
}
