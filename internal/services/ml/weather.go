package ml

import (
	"errors"
	"fmt"

	"github.com/shuv1824/kisan/internal/types"
)

var ErrClassifierUnavailable = errors.New("classifier not loaded")

// Defaults for weather fields a caller leaves out.
const (
	defaultTemperature   = 25.0
	defaultHumidity      = 60.0
	defaultRainfall      = 0.0
	defaultWindSpeed     = 10.0
	defaultSunshineHours = 6.0

	topRiskCount = 3
)

// WeatherDiseaseLabels is the class vocabulary shared by both classifiers.
var WeatherDiseaseLabels = []string{"blast", "rust", "blight", "wilt", "powdery_mildew", "bacterial_spot"}

// WeatherClassifier maps a weather snapshot to a probable disease class.
type WeatherClassifier struct {
	Scaler *Scaler     `json:"scaler"`
	Model  *GaussianNB `json:"model"`
}

// weatherFeatures builds the nine engineered features: the five raw values,
// temperature², humidity², temperature×humidity and rainfall×humidity.
func weatherFeatures(temperature, humidity, rainfall, wind, sunshine float64) []float64 {
	return []float64{
		temperature, humidity, rainfall, wind, sunshine,
		temperature * temperature,
		humidity * humidity,
		temperature * humidity,
		rainfall * humidity,
	}
}

func inputFeatures(in types.WeatherInput) []float64 {
	return weatherFeatures(
		orDefault(in.Temperature, defaultTemperature),
		orDefault(in.Humidity, defaultHumidity),
		orDefault(in.Rainfall, defaultRainfall),
		orDefault(in.WindSpeed, defaultWindSpeed),
		orDefault(in.SunshineHours, defaultSunshineHours),
	)
}

// Predict classifies a weather snapshot. A nil classifier reports
// ErrClassifierUnavailable.
func (c *WeatherClassifier) Predict(in types.WeatherInput, cropType string) (types.WeatherPrediction, error) {
	if c == nil || c.Model == nil || c.Scaler == nil {
		return types.WeatherPrediction{}, ErrClassifierUnavailable
	}
	if cropType == "" {
		cropType = "general"
	}

	probs, err := c.Model.PredictProba(c.Scaler.Transform(inputFeatures(in)))
	if err != nil {
		return types.WeatherPrediction{}, fmt.Errorf("weather classifier: %w", err)
	}

	ranked := c.Model.ranked(probs)
	all := make(map[string]float64, len(ranked))
	for _, r := range ranked {
		all[r.class] = r.p
	}
	top := make([]types.ClassProbability, 0, topRiskCount)
	for _, r := range ranked[:min(topRiskCount, len(ranked))] {
		top = append(top, types.ClassProbability{Disease: r.class, Probability: r.p})
	}

	return types.WeatherPrediction{
		Status:           "success",
		PredictedDisease: ranked[0].class,
		Confidence:       ranked[0].p,
		AllProbabilities: all,
		TopRisks:         top,
		CropType:         cropType,
	}, nil
}

func orDefault(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
