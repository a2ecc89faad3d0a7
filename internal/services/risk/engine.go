package risk

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/shuv1824/kisan/internal/types"
)

const (
	DefaultHorizonDays = 14
	MinHorizonDays     = 1
	MaxHorizonDays     = 30
)

var ErrInvalidHorizon = errors.New("forecast horizon must be between 1 and 30 days")

// Request is one weather-risk question.
type Request struct {
	Crop     string
	District string
	Current  types.WeatherObservation
	// HorizonDays of 0 selects the engine default.
	HorizonDays int
	// Forecast, when non-empty, is always preferred over a synthetic one.
	Forecast []types.ForecastDay
}

// Result is the ranked outcome of a request.
type Result struct {
	HorizonDays       int
	SyntheticForecast bool
	Risks             []types.RiskAssessment
}

// Option configures an Engine.
type Option func(*Engine)

// WithPreventionSource lets the engine fall back to catalog prevention text.
func WithPreventionSource(src PreventionSource) Option {
	return func(e *Engine) { e.prevention = src }
}

// WithRandSource fixes the randomness behind synthetic forecasts.
func WithRandSource(newSource func() rand.Source) Option {
	return func(e *Engine) { e.newSource = newSource }
}

func WithDefaultHorizon(days int) Option {
	return func(e *Engine) {
		if days >= MinHorizonDays && days <= MaxHorizonDays {
			e.defaultHorizon = days
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// Engine ranks disease risks for a crop. It holds only read-only tables and
// is safe for concurrent use.
type Engine struct {
	conditions     *Conditions
	prevention     PreventionSource
	newSource      func() rand.Source
	defaultHorizon int
	now            func() time.Time
	logger         *slog.Logger
}

func NewEngine(conditions *Conditions, opts ...Option) *Engine {
	e := &Engine{
		conditions: conditions,
		newSource: func() rand.Source {
			return rand.NewPCG(rand.Uint64(), rand.Uint64())
		},
		defaultHorizon: DefaultHorizonDays,
		now:            time.Now,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Predict returns the non-negligible risks for req, highest level and
// soonest onset first.
func (e *Engine) Predict(req Request) (Result, error) {
	horizon := req.HorizonDays
	if horizon == 0 {
		horizon = e.defaultHorizon
	}
	if horizon < MinHorizonDays || horizon > MaxHorizonDays {
		return Result{}, fmt.Errorf("%w: got %d", ErrInvalidHorizon, horizon)
	}

	crop := normalizeCrop(req.Crop)
	models := e.conditions.ForCrop(crop)
	if len(models) == 0 {
		e.logger.Warn("no disease models for crop, using generic heuristic", "crop", crop, "district", req.District)
		return Result{HorizonDays: horizon, Risks: genericRisks(crop, req.Current)}, nil
	}

	forecast := req.Forecast
	synthetic := len(forecast) == 0
	if synthetic {
		forecast = SynthesizeForecast(req.Current, horizon, e.now(), e.newSource())
	}

	risks := make([]types.RiskAssessment, 0, len(models))
	for _, model := range models {
		diseaseID := crop + "_" + model.Name

		score, err := ScoreDisease(model, req.Current, forecast, horizon)
		if err != nil {
			e.logger.Error("disease assessment failed", "disease", diseaseID, "error", err)
			score = placeholderScore()
		}
		if score.Level == types.RiskNegligible {
			continue
		}

		risks = append(risks, types.RiskAssessment{
			Disease:               diseaseID,
			RiskLevel:             score.Level,
			DaysUntilExpected:     score.DaysUntil,
			PreventiveAction:      e.preventiveAction(diseaseID, model, score.Level),
			Confidence:            clamp01(score.Confidence),
			EnvironmentalTriggers: score.Triggers,
		})
	}

	RankRisks(risks)

	e.logger.Debug("disease risks assessed",
		"crop", crop,
		"district", req.District,
		"risks", len(risks),
		"synthetic_forecast", synthetic,
	)

	return Result{HorizonDays: horizon, SyntheticForecast: synthetic, Risks: risks}, nil
}

// RankRisks orders risks by level (high first), then by fewer days until
// onset.
func RankRisks(risks []types.RiskAssessment) {
	sort.SliceStable(risks, func(i, j int) bool {
		ri, rj := risks[i].RiskLevel.Rank(), risks[j].RiskLevel.Rank()
		if ri != rj {
			return ri > rj
		}
		return risks[i].DaysUntilExpected < risks[j].DaysUntilExpected
	})
}

func (e *Engine) SupportedCrops() []string {
	return e.conditions.Crops()
}

func (e *Engine) ModelCount() int {
	return e.conditions.ModelCount()
}

// HasCrop reports whether crop has dedicated condition models.
func (e *Engine) HasCrop(crop string) bool {
	return len(e.conditions.ForCrop(strings.TrimSpace(crop))) > 0
}
