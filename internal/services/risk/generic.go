package risk

import (
	"fmt"

	"github.com/shuv1824/kisan/internal/types"
)

const genericConfidence = 0.6

// genericRisks is the fallback for crops without condition models. Each of
// humidity, rainfall and temperature contributes at most one factor.
func genericRisks(crop string, current types.WeatherObservation) []types.RiskAssessment {
	var factors []string

	switch {
	case current.Humidity > 85:
		factors = append(factors, "Very high humidity favors fungal diseases")
	case current.Humidity > 70:
		factors = append(factors, "High humidity increases disease risk")
	}

	switch {
	case current.Rainfall > 10:
		factors = append(factors, "Heavy rainfall creates disease-favorable conditions")
	case current.Rainfall > 2:
		factors = append(factors, "Rainfall may increase disease pressure")
	}

	if inRange(current.Temperature, 20, 30) {
		factors = append(factors, "Temperature suitable for most plant diseases")
	}

	var (
		level     types.RiskLevel
		daysUntil int
		action    string
	)
	switch {
	case len(factors) >= 3:
		level, daysUntil = types.RiskHigh, 3
		action = fmt.Sprintf("Monitor %s closely for disease symptoms. Apply preventive fungicide spray. Ensure good drainage.", crop)
	case len(factors) == 2:
		level, daysUntil = types.RiskMedium, 7
		action = fmt.Sprintf("Regular monitoring of %s recommended. Maintain proper sanitation. Be ready with protective measures.", crop)
	case len(factors) == 1:
		level, daysUntil = types.RiskLow, 10
		action = fmt.Sprintf("Continue routine monitoring of %s. Follow standard disease prevention practices.", crop)
	default:
		return []types.RiskAssessment{}
	}

	return []types.RiskAssessment{{
		Disease:               crop + "_general_disease_risk",
		RiskLevel:             level,
		DaysUntilExpected:     daysUntil,
		PreventiveAction:      action,
		Confidence:            genericConfidence,
		EnvironmentalTriggers: factors,
	}}
}
