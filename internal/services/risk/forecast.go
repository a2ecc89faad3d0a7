package risk

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/shuv1824/kisan/internal/types"
)

const (
	forecastTempSigma     = 2.0
	forecastHumiditySigma = 5.0
	forecastHumidityMin   = 30.0
	forecastHumidityMax   = 95.0
	forecastRainChance    = 0.3
	forecastRainRate      = 1.0
)

// SynthesizeForecast perturbs the current snapshot into a daily forecast for
// callers that supplied none. Output depends on src; pass a seeded source for
// reproducible results.
func SynthesizeForecast(current types.WeatherObservation, days int, start time.Time, src rand.Source) []types.ForecastDay {
	tempNoise := distuv.Normal{Mu: 0, Sigma: forecastTempSigma, Src: src}
	humidityNoise := distuv.Normal{Mu: 0, Sigma: forecastHumiditySigma, Src: src}
	rainy := distuv.Bernoulli{P: forecastRainChance, Src: src}
	rainAmount := distuv.Exponential{Rate: forecastRainRate, Src: src}

	forecast := make([]types.ForecastDay, 0, days)
	for i := range days {
		temp := current.Temperature + tempNoise.Rand()
		humidity := math.Max(forecastHumidityMin, math.Min(forecastHumidityMax, current.Humidity+humidityNoise.Rand()))
		rainfall := 0.0
		if rainy.Rand() == 1 {
			rainfall = rainAmount.Rand()
		}

		forecast = append(forecast, types.ForecastDay{
			Date:        start.AddDate(0, 0, i+1).Format(time.DateOnly),
			TempAvg:     &temp,
			HumidityAvg: &humidity,
			Rainfall:    &rainfall,
		})
	}
	return forecast
}
