// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shuv1824/kisan/internal/types"
)

const Namespace = "kisan"

type Metrics struct {
	registry *prometheus.Registry

	RequestDuration *prometheus.HistogramVec
	Assessments     *prometheus.CounterVec
	Predictions     *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	ModelsLoaded    *prometheus.GaugeVec
}

// New registers every collector, plus Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
			[]string{"route", "method", "status"},
		),
		Assessments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "risk",
				Name:      "assessments_total",
				Help:      "Disease risk assessments returned, by crop and level",
			},
			[]string{"crop", "level"},
		),
		Predictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "ml",
				Name:      "predictions_total",
				Help:      "Classifier predictions by classifier and outcome",
			},
			[]string{"classifier", "outcome"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "weather",
				Name:      "cache_lookups_total",
				Help:      "Weather cache lookups by result",
			},
			[]string{"result"},
		),
		ModelsLoaded: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "ml",
				Name:      "model_loaded",
				Help:      "1 when the classifier is loaded",
			},
			[]string{"classifier"},
		),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// The Observe methods are safe on a nil *Metrics.

func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) ObserveAssessments(crop string, risks []types.RiskAssessment) {
	if m == nil {
		return
	}
	for _, r := range risks {
		m.Assessments.WithLabelValues(crop, string(r.RiskLevel)).Inc()
	}
}

func (m *Metrics) ObservePrediction(classifier string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.Predictions.WithLabelValues(classifier, outcome).Inc()
}

func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) SetModelLoaded(classifier string, loaded bool) {
	if m == nil {
		return
	}
	v := 0.0
	if loaded {
		v = 1
	}
	m.ModelsLoaded.WithLabelValues(classifier).Set(v)
}
