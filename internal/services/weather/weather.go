package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shuv1824/kisan/internal/types"
)

const (
	DefaultBaseURL = "https://api.open-meteo.com"

	// open-meteo serves at most 16 forecast days, today included.
	MaxForecastDays = 15
)

var ErrProviderUnavailable = errors.New("weather provider unavailable")

// Provider returns current conditions and a daily forecast for a district.
type Provider interface {
	Fetch(ctx context.Context, d types.District, days int) (types.WeatherReport, error)
}

type OpenMeteo struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

func NewOpenMeteo(baseURL string, timeout time.Duration, logger *slog.Logger) *OpenMeteo {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenMeteo{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Fetch requests today's conditions and the next days of daily means.
// Today's daily row is dropped so the forecast starts tomorrow.
func (o *OpenMeteo) Fetch(ctx context.Context, d types.District, days int) (types.WeatherReport, error) {
	days = max(1, min(days, MaxForecastDays))

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", d.Lat))
	q.Set("longitude", fmt.Sprintf("%.4f", d.Long))
	q.Set("current", "temperature_2m,relative_humidity_2m,precipitation,wind_speed_10m")
	q.Set("daily", "temperature_2m_mean,relative_humidity_2m_mean,precipitation_sum,sunshine_duration")
	q.Set("forecast_days", fmt.Sprint(days+1))
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return types.WeatherReport{}, err
	}

	start := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return types.WeatherReport{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.WeatherReport{}, fmt.Errorf("%w: weather API returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var data types.OpenMeteoForecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return types.WeatherReport{}, fmt.Errorf("%w: decode forecast: %v", ErrProviderUnavailable, err)
	}

	o.logger.Debug("fetched forecast",
		"district", d.Name,
		"days", days,
		"duration", time.Since(start),
	)
	return toReport(d, data, days), nil
}

func toReport(d types.District, data types.OpenMeteoForecastResponse, days int) types.WeatherReport {
	wind := data.Current.WindSpeed10m
	current := types.WeatherObservation{
		Temperature: data.Current.Temperature2m,
		Humidity:    data.Current.Humidity2m,
		Rainfall:    data.Current.Precipitation,
		WindSpeed:   &wind,
	}
	if s := at(data.Daily.SunshineDuration, 0); s != nil {
		hours := *s / 3600
		current.SunshineHours = &hours
	}

	forecast := make([]types.ForecastDay, 0, days)
	for i := 1; i < len(data.Daily.Time) && len(forecast) < days; i++ {
		forecast = append(forecast, types.ForecastDay{
			Date:        data.Daily.Time[i],
			TempAvg:     at(data.Daily.Temperature2mMean, i),
			HumidityAvg: at(data.Daily.Humidity2mMean, i),
			Rainfall:    at(data.Daily.PrecipitationSum, i),
		})
	}

	return types.WeatherReport{
		District:  d.Name,
		Current:   current,
		Forecast:  forecast,
		FetchedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}
