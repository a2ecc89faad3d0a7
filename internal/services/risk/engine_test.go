package risk

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuv1824/kisan/internal/types"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	conditions, err := DefaultConditions()
	require.NoError(t, err)

	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRandSource(func() rand.Source { return rand.NewPCG(7, 11) }),
		WithClock(func() time.Time { return time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC) }),
	}
	return NewEngine(conditions, append(base, opts...)...)
}

func findRisk(risks []types.RiskAssessment, disease string) (types.RiskAssessment, bool) {
	for _, r := range risks {
		if r.Disease == disease {
			return r, true
		}
	}
	return types.RiskAssessment{}, false
}

func TestDefaultConditions(t *testing.T) {
	conditions, err := DefaultConditions()
	require.NoError(t, err)

	assert.Equal(t, []string{"cotton", "onion", "rice", "sugarcane", "tomato", "wheat"}, conditions.Crops())
	assert.Equal(t, 16, conditions.ModelCount())

	for _, crop := range conditions.Crops() {
		for _, model := range conditions.ForCrop(crop) {
			assert.NoError(t, model.Validate(), "%s/%s", crop, model.Name)
		}
	}
}

func TestPredict_RiceBlastHighWithExplicitForecast(t *testing.T) {
	e := newTestEngine(t)
	current := types.WeatherObservation{Temperature: 25, Humidity: 90, Rainfall: 15}

	result, err := e.Predict(Request{
		Crop:        "Rice",
		District:    "pune",
		Current:     current,
		HorizonDays: 7,
		Forecast:    repeatDay(day(25, 90, 15), 7),
	})
	require.NoError(t, err)
	assert.False(t, result.SyntheticForecast)

	blast, ok := findRisk(result.Risks, "rice_blast")
	require.True(t, ok)
	assert.Equal(t, types.RiskHigh, blast.RiskLevel)
	assert.Equal(t, 1, blast.DaysUntilExpected)
	assert.Contains(t, blast.PreventiveAction, "Tricyclazole")
	assert.Len(t, blast.EnvironmentalTriggers, 3)
}

func TestPredict_RiceBlastWithSyntheticForecast(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Predict(Request{
		Crop:        "rice",
		District:    "pune",
		Current:     types.WeatherObservation{Temperature: 25, Humidity: 90, Rainfall: 15},
		HorizonDays: 7,
	})
	require.NoError(t, err)
	assert.True(t, result.SyntheticForecast)

	// Current conditions alone put overall risk at 0.4 or more.
	blast, ok := findRisk(result.Risks, "rice_blast")
	require.True(t, ok)
	assert.GreaterOrEqual(t, blast.RiskLevel.Rank(), types.RiskMedium.Rank())
}

func TestPredict_UnknownCropUsesGenericHeuristic(t *testing.T) {
	e := newTestEngine(t)

	result, err := e.Predict(Request{
		Crop:    "unknown_crop",
		Current: types.WeatherObservation{Temperature: 22, Humidity: 50, Rainfall: 0},
	})
	require.NoError(t, err)
	require.Len(t, result.Risks, 1)

	risk := result.Risks[0]
	assert.Equal(t, "unknown_crop_general_disease_risk", risk.Disease)
	assert.Equal(t, types.RiskLow, risk.RiskLevel)
	assert.Equal(t, 10, risk.DaysUntilExpected)
	assert.InDelta(t, 0.6, risk.Confidence, 1e-9)
}

func TestGenericRisks(t *testing.T) {
	tests := []struct {
		name    string
		current types.WeatherObservation
		level   types.RiskLevel
		days    int
	}{
		{"no factors", types.WeatherObservation{Temperature: 10, Humidity: 40}, "", 0},
		{"humidity thresholds do not double count", types.WeatherObservation{Temperature: 10, Humidity: 90}, types.RiskLow, 10},
		{"rainfall thresholds do not double count", types.WeatherObservation{Temperature: 10, Humidity: 90, Rainfall: 12}, types.RiskMedium, 7},
		{"all three", types.WeatherObservation{Temperature: 25, Humidity: 90, Rainfall: 12}, types.RiskHigh, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			risks := genericRisks("millet", tt.current)
			if tt.level == "" {
				assert.Empty(t, risks)
				return
			}
			require.Len(t, risks, 1)
			assert.Equal(t, tt.level, risks[0].RiskLevel)
			assert.Equal(t, tt.days, risks[0].DaysUntilExpected)
			assert.Contains(t, risks[0].PreventiveAction, "millet")
		})
	}
}

func TestPredict_HorizonValidation(t *testing.T) {
	e := newTestEngine(t)
	current := types.WeatherObservation{Temperature: 25, Humidity: 90, Rainfall: 15}

	for _, horizon := range []int{-1, 31, 100} {
		_, err := e.Predict(Request{Crop: "rice", Current: current, HorizonDays: horizon})
		assert.ErrorIs(t, err, ErrInvalidHorizon, "horizon %d", horizon)
	}

	result, err := e.Predict(Request{Crop: "rice", Current: current})
	require.NoError(t, err)
	assert.Equal(t, DefaultHorizonDays, result.HorizonDays)

	e = newTestEngine(t, WithDefaultHorizon(5))
	result, err = e.Predict(Request{Crop: "rice", Current: current})
	require.NoError(t, err)
	assert.Equal(t, 5, result.HorizonDays)
}

func TestPredict_RankingInvariant(t *testing.T) {
	e := newTestEngine(t)

	for _, crop := range e.SupportedCrops() {
		result, err := e.Predict(Request{
			Crop:        crop,
			Current:     types.WeatherObservation{Temperature: 27, Humidity: 88, Rainfall: 12},
			HorizonDays: 14,
		})
		require.NoError(t, err)

		for i := 1; i < len(result.Risks); i++ {
			a, b := result.Risks[i-1], result.Risks[i]
			require.GreaterOrEqual(t, a.RiskLevel.Rank(), b.RiskLevel.Rank(), crop)
			if a.RiskLevel == b.RiskLevel {
				require.LessOrEqual(t, a.DaysUntilExpected, b.DaysUntilExpected, crop)
			}
			require.NotEqual(t, types.RiskNegligible, b.RiskLevel)
		}
	}
}

func TestRankRisks(t *testing.T) {
	risks := []types.RiskAssessment{
		{Disease: "low_soon", RiskLevel: types.RiskLow, DaysUntilExpected: 1},
		{Disease: "high_late", RiskLevel: types.RiskHigh, DaysUntilExpected: 9},
		{Disease: "medium_soon", RiskLevel: types.RiskMedium, DaysUntilExpected: 1},
		{Disease: "high_soon", RiskLevel: types.RiskHigh, DaysUntilExpected: 2},
	}

	RankRisks(risks)

	got := make([]string, len(risks))
	for i, r := range risks {
		got[i] = r.Disease
	}
	assert.Equal(t, []string{"high_soon", "high_late", "medium_soon", "low_soon"}, got)
}

func TestPredict_ScoringFailureIsIsolated(t *testing.T) {
	conditions, err := ParseConditions([]byte(`
rice:
  broken:
    temperature_range: [20, 30]
    humidity_min: 85
    rainfall_min: 10
    critical_days: 0
  blast:
    temperature_range: [20, 30]
    humidity_min: 85
    rainfall_min: 10
    critical_days: 7
`))
	require.NoError(t, err)

	e := NewEngine(conditions, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	result, err := e.Predict(Request{
		Crop:        "rice",
		Current:     types.WeatherObservation{Temperature: 25, Humidity: 90, Rainfall: 15},
		HorizonDays: 7,
		Forecast:    repeatDay(day(25, 90, 15), 7),
	})
	require.NoError(t, err)
	require.Len(t, result.Risks, 2)

	broken, ok := findRisk(result.Risks, "rice_broken")
	require.True(t, ok)
	assert.Equal(t, types.RiskLow, broken.RiskLevel)
	assert.Equal(t, 7, broken.DaysUntilExpected)
	assert.InDelta(t, 0.3, broken.Confidence, 1e-9)
	assert.Equal(t, []string{"Assessment error"}, broken.EnvironmentalTriggers)

	blast, ok := findRisk(result.Risks, "rice_blast")
	require.True(t, ok)
	assert.Equal(t, types.RiskHigh, blast.RiskLevel)
}

type stubPrevention map[string][]string

func (s stubPrevention) PreventionMeasures(id string) ([]string, bool) {
	m, ok := s[id]
	return m, ok
}

func TestPredict_PreventiveActionFallsBackToCatalog(t *testing.T) {
	conditions, err := ParseConditions([]byte(`
maize:
  leaf_blight:
    temperature_range: [18, 27]
    humidity_min: 80
    rainfall_min: 5
    critical_days: 5
  rust:
    temperature_range: [18, 27]
    humidity_min: 80
    rainfall_min: 5
    critical_days: 5
`))
	require.NoError(t, err)

	e := NewEngine(conditions,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithPreventionSource(stubPrevention{
			"maize_leaf_blight": {"Use resistant hybrids", "Rotate crops", "Bury residue", "Balanced nitrogen"},
		}),
	)

	result, err := e.Predict(Request{
		Crop:        "maize",
		Current:     types.WeatherObservation{Temperature: 22, Humidity: 85, Rainfall: 8},
		HorizonDays: 5,
		Forecast:    repeatDay(day(22, 85, 8), 5),
	})
	require.NoError(t, err)

	blight, ok := findRisk(result.Risks, "maize_leaf_blight")
	require.True(t, ok)
	assert.Equal(t, "Use resistant hybrids. Rotate crops. Bury residue.", blight.PreventiveAction)

	rust, ok := findRisk(result.Risks, "maize_rust")
	require.True(t, ok)
	assert.Contains(t, rust.PreventiveAction, "immediately")
}

func TestSynthesizeForecast(t *testing.T) {
	current := types.WeatherObservation{Temperature: 25, Humidity: 93, Rainfall: 0}
	start := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	a := SynthesizeForecast(current, 30, start, rand.NewPCG(1, 2))
	b := SynthesizeForecast(current, 30, start, rand.NewPCG(1, 2))
	require.Len(t, a, 30)
	assert.Equal(t, a, b, "same seed, same forecast")

	assert.Equal(t, "2026-10-19", a[0].Date)
	for _, d := range a {
		require.NotNil(t, d.TempAvg)
		require.NotNil(t, d.HumidityAvg)
		require.NotNil(t, d.Rainfall)
		assert.GreaterOrEqual(t, *d.HumidityAvg, 30.0)
		assert.LessOrEqual(t, *d.HumidityAvg, 95.0)
		assert.GreaterOrEqual(t, *d.Rainfall, 0.0)
	}
}
