package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/shuv1824/kisan/internal/types"
)

// Scoring weights and level cut-offs. The current-condition weights sum to
// 0.8 rather than 1.0; they are kept as-is for compatibility with existing
// advisories and are tunables, not calibrated values.
const (
	temperatureWeight = 0.3
	humidityWeight    = 0.3
	rainfallWeight    = 0.2

	highThreshold   = 0.7
	mediumThreshold = 0.4
	lowThreshold    = 0.2

	confidenceBoost = 0.1

	// favorablePredicates is how many of the three predicates a forecast day
	// must satisfy to count as favorable.
	favorablePredicates = 2
)

var errNonFiniteInput = errors.New("non-finite weather value")

// Score is the outcome of scoring one disease.
type Score struct {
	Level         types.RiskLevel
	Confidence    float64
	DaysUntil     int
	Triggers      []string
	FavorableDays int
	Overall       float64
}

// placeholderScore stands in for a disease whose assessment failed.
func placeholderScore() Score {
	return Score{
		Level:      types.RiskLow,
		Confidence: 0.3,
		DaysUntil:  7,
		Triggers:   []string{"Assessment error"},
	}
}

// ScoreDisease scores one condition model against the current snapshot and
// the first horizon days of the forecast. It is a pure function of its
// arguments.
func ScoreDisease(model ConditionModel, current types.WeatherObservation, forecast []types.ForecastDay, horizon int) (Score, error) {
	if err := model.Validate(); err != nil {
		return Score{}, err
	}
	if horizon < 1 {
		return Score{}, fmt.Errorf("%w: %d", ErrInvalidHorizon, horizon)
	}
	if !finite(current.Temperature, current.Humidity, current.Rainfall) {
		return Score{}, errNonFiniteInput
	}

	lo, hi := model.TemperatureRange[0], model.TemperatureRange[1]

	instant := 0.0
	triggers := make([]string, 0, 3)
	if inRange(current.Temperature, lo, hi) {
		instant += temperatureWeight
		triggers = append(triggers, fmt.Sprintf("Temperature in optimal range (%s-%s°C)", num(lo), num(hi)))
	}
	if current.Humidity >= model.HumidityMin {
		instant += humidityWeight
		triggers = append(triggers, fmt.Sprintf("High humidity (≥%s%%)", num(model.HumidityMin)))
	}
	if current.Rainfall >= model.RainfallMin {
		instant += rainfallWeight
		triggers = append(triggers, fmt.Sprintf("Sufficient rainfall (≥%smm)", num(model.RainfallMin)))
	}

	days := forecast
	if len(days) > horizon {
		days = days[:horizon]
	}

	favorable := 0
	daysUntil := horizon + 1
	for i, day := range days {
		temp := valueOr(day.TempAvg, current.Temperature)
		humidity := valueOr(day.HumidityAvg, current.Humidity)
		rainfall := valueOr(day.Rainfall, current.Rainfall)
		if !finite(temp, humidity, rainfall) {
			return Score{}, fmt.Errorf("forecast day %d: %w", i+1, errNonFiniteInput)
		}

		met := 0
		if inRange(temp, lo, hi) {
			met++
		}
		if humidity >= model.HumidityMin {
			met++
		}
		if rainfall >= model.RainfallMin {
			met++
		}

		if met >= favorablePredicates {
			favorable++
			if daysUntil > horizon && i < model.CriticalDays {
				daysUntil = i + 1
			}
		}
	}

	forecastRisk := math.Min(1.0, float64(favorable)/float64(model.CriticalDays))
	overall := (instant + forecastRisk) / 2

	return Score{
		Level:         levelFor(overall),
		Confidence:    clamp01(overall + confidenceBoost),
		DaysUntil:     min(daysUntil, horizon),
		Triggers:      triggers,
		FavorableDays: favorable,
		Overall:       overall,
	}, nil
}

func levelFor(overall float64) types.RiskLevel {
	switch {
	case overall >= highThreshold:
		return types.RiskHigh
	case overall >= mediumThreshold:
		return types.RiskMedium
	case overall >= lowThreshold:
		return types.RiskLow
	default:
		return types.RiskNegligible
	}
}

func inRange(v, lo, hi float64) bool {
	return lo <= v && v <= hi
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// num prints whole thresholds without a decimal point.
func num(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int(v))
	}
	return fmt.Sprintf("%g", v)
}
