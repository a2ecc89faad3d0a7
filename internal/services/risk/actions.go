package risk

import (
	"strings"

	"github.com/shuv1824/kisan/internal/types"
)

// PreventionSource supplies catalog prevention measures for a disease id.
// The catalog service satisfies it.
type PreventionSource interface {
	PreventionMeasures(diseaseID string) ([]string, bool)
}

const catalogMeasureLimit = 3

// preventiveAction resolves the advice text for an assessment: the model's
// own text first, then catalog prevention measures, then a level template.
func (e *Engine) preventiveAction(diseaseID string, model ConditionModel, level types.RiskLevel) string {
	if model.PreventiveAction != "" {
		return model.PreventiveAction
	}

	if e.prevention != nil {
		if measures, ok := e.prevention.PreventionMeasures(diseaseID); ok && len(measures) > 0 {
			if len(measures) > catalogMeasureLimit {
				measures = measures[:catalogMeasureLimit]
			}
			return strings.Join(measures, ". ") + "."
		}
	}

	switch level {
	case types.RiskHigh:
		return "Apply appropriate fungicide/bactericide spray immediately. Monitor crop closely for symptoms."
	case types.RiskMedium:
		return "Prepare preventive spray solution. Monitor weather conditions. Ensure proper sanitation."
	default:
		return "Continue regular monitoring. Maintain good agricultural practices. Be prepared for preventive measures."
	}
}
