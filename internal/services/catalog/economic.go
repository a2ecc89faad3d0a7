package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const maxLossPercent = 100

type ImpactEntry struct {
	DiseaseID      string `json:"disease_id"`
	Disease        string `json:"disease"`
	Crop           string `json:"crop"`
	Severity       string `json:"severity"`
	EconomicImpact string `json:"economic_impact"`
	// MaxLossPercent is nil when the impact text carries no percentage.
	MaxLossPercent *int `json:"max_loss_percent,omitempty"`
}

type ImpactAnalysis struct {
	AnalyzedDiseases          int           `json:"analyzed_diseases"`
	HighSeverityDiseases      int           `json:"high_severity_diseases"`
	DiseaseImpacts            []ImpactEntry `json:"disease_impacts"`
	UnknownDiseases           []string      `json:"unknown_diseases"`
	RiskAssessment            string        `json:"risk_assessment"`
	ManagementPriority        string        `json:"management_priority"`
	EstimatedMaxLossPercent   int           `json:"estimated_max_loss_percent"`
	EstimatedMaxLossPotential string        `json:"estimated_max_loss_potential"`
}

// EconomicImpact aggregates the impact notes of the given diseases. The loss
// total is approximate: it sums the upper bound of the first percentage in
// each note and caps the result at 100.
func (c *Catalog) EconomicImpact(diseaseIDs []string) (ImpactAnalysis, error) {
	if len(diseaseIDs) == 0 {
		return ImpactAnalysis{}, ErrNoDiseases
	}

	a := ImpactAnalysis{
		DiseaseImpacts:  []ImpactEntry{},
		UnknownDiseases: []string{},
	}
	total := 0
	for _, id := range diseaseIDs {
		r, err := c.Get(id)
		if err != nil {
			a.UnknownDiseases = append(a.UnknownDiseases, id)
			continue
		}

		impact := r.EconomicImpact
		if impact == "" {
			impact = "Impact not quantified"
		}
		entry := ImpactEntry{
			DiseaseID:      r.ID,
			Disease:        r.Name,
			Crop:           r.Crop,
			Severity:       r.Severity,
			EconomicImpact: impact,
		}
		if pct, ok := parseLossPercent(impact); ok {
			entry.MaxLossPercent = &pct
			total += pct
		}
		if r.Severity == SeverityHigh {
			a.HighSeverityDiseases++
		}
		a.DiseaseImpacts = append(a.DiseaseImpacts, entry)
	}

	a.AnalyzedDiseases = len(a.DiseaseImpacts)
	switch {
	case a.HighSeverityDiseases > 2:
		a.RiskAssessment = "High"
		a.ManagementPriority = "Immediate action required"
	case a.HighSeverityDiseases > 0:
		a.RiskAssessment = "Medium"
		a.ManagementPriority = "Regular monitoring needed"
	default:
		a.RiskAssessment = "Low"
		a.ManagementPriority = "Regular monitoring needed"
	}
	a.EstimatedMaxLossPercent = min(total, maxLossPercent)
	a.EstimatedMaxLossPotential = fmt.Sprintf("Up to %d%% if left untreated", a.EstimatedMaxLossPercent)
	return a, nil
}

// parseLossPercent takes the first whitespace-separated token containing a
// percent sign and returns the largest integer in it, so "10-85%" gives 85.
func parseLossPercent(text string) (int, bool) {
	for _, tok := range strings.Fields(text) {
		if !strings.Contains(tok, "%") {
			continue
		}
		best, found := 0, false
		for _, digits := range strings.FieldsFunc(tok, func(r rune) bool { return !unicode.IsDigit(r) }) {
			n, err := strconv.Atoi(digits)
			if err != nil {
				continue
			}
			if !found || n > best {
				best, found = n, true
			}
		}
		return best, found
	}
	return 0, false
}
