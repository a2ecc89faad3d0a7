package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/shuv1824/kisan/internal/history"
	"github.com/shuv1824/kisan/internal/metrics"
	"github.com/shuv1824/kisan/internal/services/catalog"
	"github.com/shuv1824/kisan/internal/services/ml"
	"github.com/shuv1824/kisan/internal/services/risk"
	"github.com/shuv1824/kisan/internal/services/weather"
	"github.com/shuv1824/kisan/internal/types"
	"github.com/shuv1824/kisan/internal/utils/geodata"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []history.Entry
	err     error
	// release, when set, holds Record until it is closed.
	release chan struct{}
}

func (f *fakeRecorder) Record(_ context.Context, e *history.Entry) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeRecorder) Recent(_ context.Context, crop string, limit int) ([]history.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []history.Entry{}
	for _, e := range f.entries {
		if crop == "" || e.Crop == crop {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeWeather struct {
	report types.WeatherReport
	err    error
	calls  int
}

func (f *fakeWeather) Report(_ context.Context, d types.District) (types.WeatherReport, error) {
	f.calls++
	if f.err != nil {
		return types.WeatherReport{}, f.err
	}
	r := f.report
	r.District = d.Name
	return r, nil
}

var (
	modelsOnce sync.Once
	testModels ml.Models
	modelsErr  error
)

func trainedModels(t *testing.T) ml.Models {
	t.Helper()
	modelsOnce.Do(func() {
		testModels, modelsErr = ml.Train(ml.TrainOptions{Seed: 3, WeatherSamples: 400, ImagesPerClass: 6, ImageSize: 32})
	})
	require.NoError(t, modelsErr)
	return testModels
}

type fixture struct {
	router   *mux.Router
	handler  *Handler
	recorder *fakeRecorder
	metrics  *metrics.Metrics
}

// recorded waits for background history writes and returns them.
func (f fixture) recorded() []history.Entry {
	f.handler.Wait()
	f.recorder.mu.Lock()
	defer f.recorder.mu.Unlock()
	return append([]history.Entry(nil), f.recorder.entries...)
}

func newFixture(t *testing.T, mutate func(*Deps)) fixture {
	t.Helper()

	conditions, err := risk.DefaultConditions()
	require.NoError(t, err)
	cat, err := catalog.Default()
	require.NoError(t, err)

	engine := risk.NewEngine(conditions,
		risk.WithPreventionSource(cat),
		risk.WithLogger(quietLogger()),
		risk.WithRandSource(func() rand.Source { return rand.NewPCG(1, 2) }),
		risk.WithClock(func() time.Time { return time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC) }),
	)

	rec := &fakeRecorder{}
	m := metrics.New()
	deps := Deps{
		Engine:  engine,
		Catalog: cat,
		History: rec,
		Metrics: m,
		Logger:  quietLogger(),
	}
	if mutate != nil {
		mutate(&deps)
	}

	r := mux.NewRouter()
	h := New(deps)
	h.Register(r)
	return fixture{router: r, handler: h, recorder: rec, metrics: m}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    int      `json:"code"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error"`
}

func (f fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func ptr[T any](v T) *T { return &v }

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)

	rec, _ := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec, env := f.do(t, http.MethodGet, "/api/v1/disease/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var h serviceHealth
	require.NoError(t, json.Unmarshal(env.Data, &h))
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "not_loaded", h.WeatherModel)
	assert.Equal(t, "not_loaded", h.ImageModel)
	assert.Equal(t, 16, h.RiskModels)
	assert.Equal(t, 7, h.Diseases)
	assert.False(t, h.LiveWeather)
}

func TestPredictWeather(t *testing.T) {
	f := newFixture(t, nil)

	forecast := make([]types.ForecastDay, 7)
	for i := range forecast {
		forecast[i] = types.ForecastDay{TempAvg: ptr(25.0), HumidityAvg: ptr(90.0), Rainfall: ptr(15.0)}
	}
	rec, env := f.do(t, http.MethodPost, "/api/v1/disease/predict/weather", types.WeatherRiskRequest{
		Crop:                "rice",
		District:            "Thanjavur",
		CurrentWeather:      &types.WeatherInput{Temperature: ptr(25.0), Humidity: ptr(90.0), Rainfall: ptr(15.0)},
		ForecastHorizonDays: ptr(7),
		Forecast:            forecast,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp types.WeatherRiskResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, 7, resp.ForecastHorizonDays)
	assert.Equal(t, ForecastSourceRequest, resp.ForecastSource)
	assert.Equal(t, RiskModelCrop, resp.RiskModel)
	require.NotEmpty(t, resp.Risks)
	assert.Equal(t, types.RiskHigh, resp.Risks[0].RiskLevel)

	for i := 1; i < len(resp.Risks); i++ {
		prev, cur := resp.Risks[i-1], resp.Risks[i]
		assert.GreaterOrEqual(t, prev.RiskLevel.Rank(), cur.RiskLevel.Rank())
	}

	entries := f.recorded()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, history.KindWeatherRisk, entry.Kind)
	assert.Equal(t, resp.Risks[0].Disease, entry.TopDisease)
	assert.Equal(t, "high", entry.TopLevel)

	assert.Greater(t, testutil.ToFloat64(f.metrics.Assessments.WithLabelValues("rice", "high")), 0.0)
}

func TestPredictWeatherDefaultsAndSyntheticForecast(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodPost, "/api/v1/disease/predict/weather", map[string]any{
		"crop":     "wheat",
		"district": "Ludhiana",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp types.WeatherRiskResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, risk.DefaultHorizonDays, resp.ForecastHorizonDays)
	assert.Equal(t, ForecastSourceSynthetic, resp.ForecastSource)
}

func TestPredictWeatherValidation(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name string
		body any
		want string
	}{
		{"malformed json", "{", "invalid request body"},
		{"missing crop", map[string]any{"district": "Pune"}, "crop is required"},
		{"horizon too large", map[string]any{"crop": "rice", "district": "Pune", "forecast_horizon_days": 45}, "forecast horizon"},
		{"horizon zero", map[string]any{"crop": "rice", "district": "Pune", "forecast_horizon_days": 0}, "forecast horizon"},
		{"humidity out of range", map[string]any{"crop": "rice", "district": "Pune", "current_weather": map[string]any{"humidity": 140}}, "current_weather.humidity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := f.do(t, http.MethodPost, "/api/v1/disease/predict/weather", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Contains(t, env.Error.Message+strings.Join(env.Error.Details, ";"), tt.want)
		})
	}
}

const districtsJSON = `{"districts": [{"id": "tn-thanjavur", "state": "Tamil Nadu", "name": "Thanjavur", "lat": "10.7870", "long": "79.1378"}]}`

func TestPredictWeatherUsesLiveWeather(t *testing.T) {
	registry, err := geodata.Parse(strings.NewReader(districtsJSON))
	require.NoError(t, err)

	live := &fakeWeather{report: types.WeatherReport{
		Current:  types.WeatherObservation{Temperature: 25, Humidity: 92, Rainfall: 12},
		Forecast: []types.ForecastDay{{TempAvg: ptr(25.0), HumidityAvg: ptr(92.0), Rainfall: ptr(12.0)}},
	}}
	f := newFixture(t, func(d *Deps) {
		d.Districts = registry
		d.Weather = live
	})

	rec, env := f.do(t, http.MethodPost, "/api/v1/disease/predict/weather", map[string]any{
		"crop": "rice", "district": "thanjavur", "forecast_horizon_days": 5,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, live.calls)

	var resp types.WeatherRiskResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, ForecastSourceProvider, resp.ForecastSource)

	rec, _ = f.do(t, http.MethodPost, "/api/v1/disease/predict/weather", map[string]any{
		"crop": "rice", "district": "Atlantis",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictWeatherProviderFailureFallsBack(t *testing.T) {
	registry, err := geodata.Parse(strings.NewReader(districtsJSON))
	require.NoError(t, err)

	f := newFixture(t, func(d *Deps) {
		d.Districts = registry
		d.Weather = &fakeWeather{err: fmt.Errorf("%w: status 500", weather.ErrProviderUnavailable)}
	})

	rec, env := f.do(t, http.MethodPost, "/api/v1/disease/predict/weather", map[string]any{
		"crop": "rice", "district": "Thanjavur",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.WeatherRiskResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, ForecastSourceSynthetic, resp.ForecastSource)
}

func TestPredictWeatherML(t *testing.T) {
	body := map[string]any{
		"weather":   map[string]any{"temperature": 22, "humidity": 92, "rainfall": 14},
		"crop_type": "rice",
	}

	t.Run("unavailable", func(t *testing.T) {
		f := newFixture(t, nil)
		rec, env := f.do(t, http.MethodPost, "/api/v1/disease/predict/weather-ml", body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.NotNil(t, env.Error)
		assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.Predictions.WithLabelValues("weather", "error")), 0)
	})

	t.Run("trained", func(t *testing.T) {
		models := trainedModels(t)
		f := newFixture(t, func(d *Deps) { d.WeatherML = models.Weather })

		rec, env := f.do(t, http.MethodPost, "/api/v1/disease/predict/weather-ml", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var pred types.WeatherPrediction
		require.NoError(t, json.Unmarshal(env.Data, &pred))
		assert.Equal(t, "rice", pred.CropType)
		assert.Len(t, pred.TopRisks, 3)
		assert.Equal(t, pred.TopRisks[0].Disease, pred.PredictedDisease)
		entries := f.recorded()
		require.Len(t, entries, 1)
		assert.Equal(t, history.KindWeatherML, entries[0].Kind)
	})
}

func leafPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := color.RGBA{R: 40, G: 140, B: 40, A: 255}
			if (x/8+y/8)%3 == 0 {
				c = color.RGBA{R: 120, G: 70, B: 20, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAnalyzeImage(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(leafPNG(t))

	t.Run("unavailable", func(t *testing.T) {
		f := newFixture(t, nil)
		rec, _ := f.do(t, http.MethodPost, "/api/v1/disease/analyze/image", map[string]any{"image_data": encoded})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	models := trainedModels(t)
	f := newFixture(t, func(d *Deps) { d.Images = ml.NewImageAnalyzer(models.Image, quietLogger()) })

	tests := []struct {
		name   string
		data   string
		status int
	}{
		{"plain base64", encoded, http.StatusOK},
		{"data url", "data:image/png;base64," + encoded, http.StatusOK},
		{"bad base64", "***", http.StatusBadRequest},
		{"not an image", base64.StdEncoding.EncodeToString([]byte("hello")), http.StatusBadRequest},
		{"missing", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := f.do(t, http.MethodPost, "/api/v1/disease/analyze/image", map[string]any{
				"image_data": tt.data, "crop_type": "tomato",
			})
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			var a types.ImageAnalysis
			require.NoError(t, json.Unmarshal(env.Data, &a))
			assert.Equal(t, "tomato", a.CropType)
			assert.Equal(t, "64x64", a.ImageQuality.Resolution)
			assert.GreaterOrEqual(t, a.Confidence, 0.0)
			assert.LessOrEqual(t, a.Confidence, 1.0)
			assert.NotEmpty(t, a.Recommendations)
		})
	}
}

func multipartBody(t *testing.T, contentType string, data []byte, crop string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="leaf.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("crop_type", crop))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadImage(t *testing.T) {
	models := trainedModels(t)
	f := newFixture(t, func(d *Deps) { d.Images = ml.NewImageAnalyzer(models.Image, quietLogger()) })

	tests := []struct {
		name        string
		contentType string
		status      int
	}{
		{"png upload", "image/png", http.StatusOK},
		{"wrong content type", "text/plain", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.contentType, leafPNG(t), "rice")
			req := httptest.NewRequest(http.MethodPost, "/api/v1/disease/upload/image", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestImageRateLimit(t *testing.T) {
	models := trainedModels(t)
	f := newFixture(t, func(d *Deps) {
		d.Images = ml.NewImageAnalyzer(models.Image, quietLogger())
		d.ImageLimiter = rate.NewLimiter(rate.Every(time.Hour), 1)
	})
	body := map[string]any{"image_data": base64.StdEncoding.EncodeToString(leafPNG(t))}

	rec, _ := f.do(t, http.MethodPost, "/api/v1/disease/analyze/image", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := f.do(t, http.MethodPost, "/api/v1/disease/analyze/image", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestCatalogRoutes(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"disease info", http.MethodGet, "/api/v1/disease/info/rice_blast", nil, http.StatusOK},
		{"disease info with spaces", http.MethodGet, "/api/v1/disease/info/Rice%20Blast", nil, http.StatusOK},
		{"unknown disease", http.MethodGet, "/api/v1/disease/info/nope", nil, http.StatusNotFound},
		{"crop diseases", http.MethodGet, "/api/v1/disease/crop/rice/diseases", nil, http.StatusOK},
		{"unknown crop diseases", http.MethodGet, "/api/v1/disease/crop/banana/diseases", nil, http.StatusNotFound},
		{"symptom search", http.MethodPost, "/api/v1/disease/search/symptoms", map[string]any{"symptoms": []string{"lesions"}}, http.StatusOK},
		{"symptom search empty", http.MethodPost, "/api/v1/disease/search/symptoms", map[string]any{"symptoms": []string{}}, http.StatusBadRequest},
		{"treatment", http.MethodPost, "/api/v1/disease/treatment", map[string]any{"disease_id": "tomato_blight", "severity": "high", "organic_preference": true}, http.StatusOK},
		{"treatment bad severity", http.MethodPost, "/api/v1/disease/treatment", map[string]any{"disease_id": "tomato_blight", "severity": "extreme"}, http.StatusBadRequest},
		{"treatment unknown disease", http.MethodPost, "/api/v1/disease/treatment", map[string]any{"disease_id": "nope"}, http.StatusNotFound},
		{"prevention", http.MethodGet, "/api/v1/disease/prevention/rice", nil, http.StatusOK},
		{"prevention unknown crop", http.MethodGet, "/api/v1/disease/prevention/banana", nil, http.StatusNotFound},
		{"calendar", http.MethodGet, "/api/v1/disease/calendar/wheat?region=punjab", nil, http.StatusOK},
		{"economic impact", http.MethodPost, "/api/v1/disease/economic-impact", map[string]any{"disease_ids": []string{"rice_blast", "wheat_rust"}}, http.StatusOK},
		{"economic impact empty", http.MethodPost, "/api/v1/disease/economic-impact", map[string]any{"disease_ids": []string{}}, http.StatusBadRequest},
		{"supported crops", http.MethodGet, "/api/v1/disease/supported-crops", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestTreatmentOrganicPreference(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodPost, "/api/v1/disease/treatment", map[string]any{
		"disease_id": "tomato_blight", "organic_preference": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var plan catalog.TreatmentPlan
	require.NoError(t, json.Unmarshal(env.Data, &plan))
	assert.Equal(t, "medium", plan.SeverityAssessed)
	assert.Equal(t, plan.OrganicTreatments, plan.PriorityTreatments)
}

func TestRecentHistory(t *testing.T) {
	f := newFixture(t, nil)
	f.recorder.entries = []history.Entry{
		{Kind: history.KindWeatherRisk, Crop: "rice", TopDisease: "rice_blast"},
		{Kind: history.KindImage, Crop: "tomato"},
	}

	rec, env := f.do(t, http.MethodGet, "/api/v1/disease/history?crop=Rice&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page historyPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, "rice", page.Crop)
	require.Equal(t, 1, page.Count)
	assert.Equal(t, "rice_blast", page.Entries[0].TopDisease)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/disease/history?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t, nil)
	f.recorder.err = errors.New("db down")

	rec, _ := f.do(t, http.MethodPost, "/api/v1/disease/predict/weather", map[string]any{
		"crop": "tomato", "district": "Nashik",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.recorded())
}

func TestPredictWeatherReportsGenericModel(t *testing.T) {
	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodPost, "/api/v1/disease/predict/weather", map[string]any{
		"crop":            "unknown_crop",
		"district":        "Pune",
		"current_weather": map[string]any{"temperature": 22, "humidity": 50, "rainfall": 0},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp types.WeatherRiskResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, RiskModelGeneric, resp.RiskModel)
	require.Len(t, resp.Risks, 1)
	assert.Equal(t, types.RiskLow, resp.Risks[0].RiskLevel)
}

func TestHistoryWriteDoesNotBlockResponse(t *testing.T) {
	f := newFixture(t, nil)
	f.recorder.release = make(chan struct{})

	rec, _ := f.do(t, http.MethodPost, "/api/v1/disease/predict/weather", map[string]any{
		"crop": "rice", "district": "Thanjavur",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	close(f.recorder.release)
	entries := f.recorded()
	require.Len(t, entries, 1)
	assert.Equal(t, "rice", entries[0].Crop)
}

func TestRequestMetricsUseRouteTemplate(t *testing.T) {
	f := newFixture(t, nil)

	f.do(t, http.MethodGet, "/api/v1/disease/info/rice_blast", nil)
	f.do(t, http.MethodGet, "/api/v1/disease/info/wheat_rust", nil)

	count := testutil.CollectAndCount(f.metrics.RequestDuration)
	assert.Equal(t, 1, count)
}
