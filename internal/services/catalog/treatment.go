package catalog

import "fmt"

type TreatmentPlan struct {
	DiseaseID             string   `json:"disease_id"`
	Disease               string   `json:"disease"`
	SeverityAssessed      string   `json:"severity_assessed"`
	OrganicPreference     bool     `json:"organic_preference"`
	ImmediateActions      []string `json:"immediate_actions"`
	PriorityTreatments    []string `json:"priority_treatments"`
	AlternativeTreatments []string `json:"alternative_treatments"`
	ChemicalTreatments    []string `json:"chemical_treatments"`
	OrganicTreatments     []string `json:"organic_treatments"`
	CulturalPractices     []string `json:"cultural_practices"`
	PreventionFuture      []string `json:"prevention_future"`
}

var immediateActions = map[string][]string{
	SeverityHigh: {
		"Isolate affected plants immediately",
		"Apply emergency treatment within 24 hours",
		"Monitor spread to adjacent plants",
		"Consider destroying severely infected plants",
	},
	SeverityMedium: {
		"Begin treatment within 48 hours",
		"Monitor disease progression",
		"Improve environmental conditions",
		"Remove infected plant parts",
	},
	SeverityLow: {
		"Monitor closely for disease progression",
		"Implement preventive measures",
		"Maintain good plant hygiene",
		"Consider preventive treatments",
	},
}

// TreatmentRecommendations builds a treatment plan for the assessed severity
// (empty means medium). The organic preference only swaps which treatment
// list is the priority and which is the alternative.
func (c *Catalog) TreatmentRecommendations(diseaseID, severity string, organic bool) (TreatmentPlan, error) {
	if severity == "" {
		severity = SeverityMedium
	}
	if !validSeverity(severity) {
		return TreatmentPlan{}, fmt.Errorf("%w: %q", ErrInvalidSeverity, severity)
	}

	r, err := c.Get(diseaseID)
	if err != nil {
		return TreatmentPlan{}, err
	}

	plan := TreatmentPlan{
		DiseaseID:          r.ID,
		Disease:            r.Name,
		SeverityAssessed:   severity,
		OrganicPreference:  organic,
		ImmediateActions:   immediateActions[severity],
		ChemicalTreatments: nonNil(r.Treatment.Chemical),
		OrganicTreatments:  nonNil(r.Treatment.Organic),
		CulturalPractices:  nonNil(r.Treatment.Cultural),
		PreventionFuture:   nonNil(r.Prevention),
	}
	if organic {
		plan.PriorityTreatments, plan.AlternativeTreatments = plan.OrganicTreatments, plan.ChemicalTreatments
	} else {
		plan.PriorityTreatments, plan.AlternativeTreatments = plan.ChemicalTreatments, plan.OrganicTreatments
	}
	return plan, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
