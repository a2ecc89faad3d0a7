package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/shuv1824/kisan/internal/history"
	"github.com/shuv1824/kisan/internal/response"
	"github.com/shuv1824/kisan/internal/services/ml"
	"github.com/shuv1824/kisan/internal/services/risk"
	"github.com/shuv1824/kisan/internal/types"
)

const (
	ForecastSourceRequest   = "request"
	ForecastSourceProvider  = "open-meteo"
	ForecastSourceSynthetic = "synthetic"

	RiskModelCrop    = "crop"
	RiskModelGeneric = "generic"
)

// PredictWeather ranks rule-based disease risks for a crop. Without
// current_weather the district's live weather is used when available,
// otherwise defaults with a synthetic forecast.
func (h *Handler) PredictWeather(w http.ResponseWriter, r *http.Request) {
	var req types.WeatherRiskRequest
	if !h.decode(w, r, &req) {
		return
	}

	var horizon int
	if req.ForecastHorizonDays != nil {
		horizon = *req.ForecastHorizonDays
		if horizon < risk.MinHorizonDays || horizon > risk.MaxHorizonDays {
			h.writeError(w, fmt.Errorf("%w: got %d", risk.ErrInvalidHorizon, horizon))
			return
		}
	}

	start := time.Now()

	current, forecast, source, err := h.resolveWeather(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.Engine.Predict(risk.Request{
		Crop:        req.Crop,
		District:    req.District,
		Current:     current,
		HorizonDays: horizon,
		Forecast:    forecast,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if result.SyntheticForecast {
		source = ForecastSourceSynthetic
	}
	model := RiskModelGeneric
	if h.Engine.HasCrop(req.Crop) {
		model = RiskModelCrop
	}

	h.Metrics.ObserveAssessments(req.Crop, result.Risks)
	h.record(r.Context(), riskEntry(req, result.Risks))

	w.Header().Set("X-Response-Time", time.Since(start).String())

	response.JSON(w, http.StatusOK, types.WeatherRiskResponse{
		Crop:                req.Crop,
		District:            req.District,
		ForecastHorizonDays: result.HorizonDays,
		ForecastSource:      source,
		RiskModel:           model,
		Risks:               result.Risks,
		GeneratedAt:         time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) resolveWeather(ctx context.Context, req types.WeatherRiskRequest) (types.WeatherObservation, []types.ForecastDay, string, error) {
	source := ForecastSourceRequest
	if req.CurrentWeather != nil || h.Weather == nil || h.Districts == nil {
		var in types.WeatherInput
		if req.CurrentWeather != nil {
			in = *req.CurrentWeather
		}
		return in.Observation(), req.Forecast, source, nil
	}

	district, err := h.Districts.Lookup(req.District)
	if err != nil {
		return types.WeatherObservation{}, nil, "", err
	}

	report, err := h.Weather.Report(ctx, district)
	if err != nil {
		h.Logger.Warn("live weather unavailable, using defaults",
			"district", district.Name,
			"error", err,
		)
		return types.WeatherInput{}.Observation(), req.Forecast, source, nil
	}

	forecast := req.Forecast
	if len(forecast) == 0 {
		forecast, source = report.Forecast, ForecastSourceProvider
	}
	return report.Current, forecast, source, nil
}

func riskEntry(req types.WeatherRiskRequest, risks []types.RiskAssessment) *history.Entry {
	e := &history.Entry{
		Kind:     history.KindWeatherRisk,
		Crop:     req.Crop,
		District: req.District,
		Diseases: make([]string, 0, len(risks)),
	}
	for _, r := range risks {
		e.Diseases = append(e.Diseases, r.Disease)
	}
	if len(risks) > 0 {
		e.TopDisease = risks[0].Disease
		e.TopLevel = string(risks[0].RiskLevel)
		e.Confidence = risks[0].Confidence
	}
	return e
}

// PredictWeatherML runs the statistical weather classifier.
func (h *Handler) PredictWeatherML(w http.ResponseWriter, r *http.Request) {
	var req types.WeatherMLRequest
	if !h.decode(w, r, &req) {
		return
	}

	pred, err := h.WeatherML.Predict(req.Weather, req.CropType)
	h.Metrics.ObservePrediction("weather", err)
	if err != nil {
		h.writeError(w, err)
		return
	}

	diseases := make([]string, 0, len(pred.TopRisks))
	for _, t := range pred.TopRisks {
		diseases = append(diseases, t.Disease)
	}
	h.record(r.Context(), &history.Entry{
		Kind:       history.KindWeatherML,
		Crop:       pred.CropType,
		TopDisease: pred.PredictedDisease,
		Confidence: pred.Confidence,
		Diseases:   diseases,
	})

	response.JSON(w, http.StatusOK, pred)
}

// AnalyzeImage classifies a base64 encoded image, optionally given as a
// data URL.
func (h *Handler) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	if !h.Images.Available() {
		h.writeError(w, ml.ErrClassifierUnavailable)
		return
	}

	var req types.ImageAnalysisRequest
	if !h.decode(w, r, &req) {
		return
	}

	data, err := decodeBase64(req.ImageData)
	if err != nil {
		h.writeError(w, err)
		return
	}
	img, err := decodeImage(data)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.analyze(w, r, img, req.CropType)
}

// UploadImage classifies a multipart "file" upload with an optional
// crop_type form field.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if !h.Images.Available() {
		h.writeError(w, ml.ErrClassifierUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		response.ErrorJSON(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.ErrorJSON(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		response.ErrorJSON(w, http.StatusBadRequest, "file must be an image")
		return
	}

	img, _, err := image.Decode(file)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: %v", ml.ErrInvalidImage, err))
		return
	}
	h.analyze(w, r, img, r.FormValue("crop_type"))
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request, img image.Image, crop string) {
	start := time.Now()

	analysis, err := h.Images.Analyze(img, crop)
	h.Metrics.ObservePrediction("image", err)
	if err != nil {
		h.writeError(w, err)
		return
	}

	e := &history.Entry{
		Kind:       history.KindImage,
		Crop:       analysis.CropType,
		Confidence: analysis.Confidence,
		Diseases:   make([]string, 0, len(analysis.Diseases)),
	}
	for _, d := range analysis.Diseases {
		e.Diseases = append(e.Diseases, d.Disease)
	}
	if len(analysis.Diseases) > 0 {
		e.TopDisease = analysis.Diseases[0].Disease
	}
	h.record(r.Context(), e)

	w.Header().Set("X-Response-Time", time.Since(start).String())
	response.JSON(w, http.StatusOK, analysis)
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			s = s[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64: %v", ml.ErrInvalidImage, err)
	}
	return data, nil
}

// decodeImage accepts JPEG, PNG, GIF, WebP and BMP.
func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ml.ErrInvalidImage, err)
	}
	return img, nil
}
