package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/shuv1824/kisan/internal/history"
	"github.com/shuv1824/kisan/internal/metrics"
	"github.com/shuv1824/kisan/internal/response"
	"github.com/shuv1824/kisan/internal/services/catalog"
	"github.com/shuv1824/kisan/internal/services/ml"
	"github.com/shuv1824/kisan/internal/services/risk"
	"github.com/shuv1824/kisan/internal/types"
	"github.com/shuv1824/kisan/internal/utils/geodata"
)

const (
	maxJSONBytes          = 1 << 20
	defaultMaxUploadBytes = 10 << 20
	historyTimeout        = 2 * time.Second
)

// WeatherSource supplies live weather for a district.
type WeatherSource interface {
	Report(ctx context.Context, d types.District) (types.WeatherReport, error)
}

// Deps are the services behind the API. WeatherML, Images, Districts and
// Weather may be nil; History defaults to history.Nop.
type Deps struct {
	Engine    *risk.Engine
	Catalog   *catalog.Catalog
	WeatherML *ml.WeatherClassifier
	Images    *ml.ImageAnalyzer
	Districts *geodata.Registry
	Weather   WeatherSource
	History   history.Recorder
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	MaxUploadBytes int64
	// ImageLimiter throttles the image endpoints. Nil disables it.
	ImageLimiter *rate.Limiter
}

type Handler struct {
	Deps
	validate *validator.Validate
	pending  sync.WaitGroup
}

func New(d Deps) *Handler {
	if d.History == nil {
		d.History = history.Nop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = defaultMaxUploadBytes
	}
	if d.Images == nil {
		d.Images = ml.NewImageAnalyzer(nil, d.Logger)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{Deps: d, validate: v}
}

// Register mounts every route on r.
func (h *Handler) Register(r *mux.Router) {
	r.Use(h.instrument)

	r.HandleFunc("/health", Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1/disease").Subrouter()

	api.HandleFunc("/predict/weather", h.PredictWeather).Methods(http.MethodPost)
	api.HandleFunc("/predict/weather-ml", h.PredictWeatherML).Methods(http.MethodPost)
	api.Handle("/analyze/image", h.limit(http.HandlerFunc(h.AnalyzeImage))).Methods(http.MethodPost)
	api.Handle("/upload/image", h.limit(http.HandlerFunc(h.UploadImage))).Methods(http.MethodPost)

	api.HandleFunc("/info/{disease_id}", h.DiseaseInfo).Methods(http.MethodGet)
	api.HandleFunc("/crop/{crop}/diseases", h.CropDiseases).Methods(http.MethodGet)
	api.HandleFunc("/search/symptoms", h.SearchSymptoms).Methods(http.MethodPost)
	api.HandleFunc("/treatment", h.Treatment).Methods(http.MethodPost)
	api.HandleFunc("/prevention/{crop}", h.Prevention).Methods(http.MethodGet)
	api.HandleFunc("/calendar/{crop}", h.Calendar).Methods(http.MethodGet)
	api.HandleFunc("/economic-impact", h.EconomicImpact).Methods(http.MethodPost)
	api.HandleFunc("/supported-crops", h.SupportedCrops).Methods(http.MethodGet)

	api.HandleFunc("/health", h.ServiceHealth).Methods(http.MethodGet)
	api.HandleFunc("/history", h.RecentHistory).Methods(http.MethodGet)
}

// Health returns a simple health check response
func Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

type serviceHealth struct {
	Status       string   `json:"status"`
	WeatherModel string   `json:"weather_model"`
	ImageModel   string   `json:"image_model"`
	RiskModels   int      `json:"risk_models"`
	RiskCrops    []string `json:"risk_crops"`
	Diseases     int      `json:"catalog_diseases"`
	Districts    int      `json:"districts"`
	LiveWeather  bool     `json:"live_weather"`
}

// ServiceHealth reports which classifiers and tables are loaded. It is
// "degraded" while a classifier is missing.
func (h *Handler) ServiceHealth(w http.ResponseWriter, r *http.Request) {
	weatherStatus, imageStatus := ml.Models{Weather: h.WeatherML}.Status()
	if h.Images.Available() {
		imageStatus = "healthy"
	}

	resp := serviceHealth{
		Status:       "healthy",
		WeatherModel: weatherStatus,
		ImageModel:   imageStatus,
		RiskModels:   h.Engine.ModelCount(),
		RiskCrops:    h.Engine.SupportedCrops(),
		Diseases:     h.Catalog.Stats().TotalDiseases,
		LiveWeather:  h.Weather != nil && h.Districts != nil,
	}
	if h.Districts != nil {
		resp.Districts = h.Districts.Len()
	}
	if weatherStatus != "healthy" || imageStatus != "healthy" {
		resp.Status = "degraded"
	}
	response.JSON(w, http.StatusOK, resp)
}

// decode reads a JSON body into dst and validates it. On failure the error
// response has already been written.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes))
	if err := dec.Decode(dst); err != nil {
		response.ErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return h.check(w, dst)
}

func (h *Handler) check(w http.ResponseWriter, v any) bool {
	err := h.validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		response.ErrorJSON(w, http.StatusBadRequest, err.Error())
		return false
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldMessage(fe))
	}
	response.ValidationError(w, "validation failed", details)
	return false
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// writeError maps service errors to status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, risk.ErrInvalidHorizon),
		errors.Is(err, catalog.ErrInvalidSeverity),
		errors.Is(err, catalog.ErrNoDiseases),
		errors.Is(err, ml.ErrInvalidImage),
		errors.Is(err, geodata.ErrUnknownDistrict):
		response.ErrorJSON(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrDiseaseNotFound),
		errors.Is(err, catalog.ErrCropNotFound):
		response.ErrorJSON(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ml.ErrClassifierUnavailable):
		response.ErrorJSON(w, http.StatusServiceUnavailable, "model not available")
	default:
		h.Logger.Error("request failed", "error", err)
		response.ErrorJSON(w, http.StatusInternalServerError, "internal server error")
	}
}

// record stores e in the background without delaying or failing the
// request.
func (h *Handler) record(ctx context.Context, e *history.Entry) {
	ctx = context.WithoutCancel(ctx)
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, historyTimeout)
		defer cancel()
		if err := h.History.Record(ctx, e); err != nil {
			h.Logger.Warn("failed to record prediction", "kind", e.Kind, "crop", e.Crop, "error", err)
		}
	}()
}

// Wait blocks until queued history writes have finished.
func (h *Handler) Wait() {
	h.pending.Wait()
}
