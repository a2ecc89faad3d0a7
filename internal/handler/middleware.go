package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/shuv1824/kisan/internal/response"
)

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument tags the response with a request id and records latency by
// route template.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		h.Metrics.ObserveRequest(route, r.Method, rec.status, time.Since(start))
	})
}

// limit rejects requests beyond the image rate with 429.
func (h *Handler) limit(next http.Handler) http.Handler {
	if h.ImageLimiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.ImageLimiter.Allow() {
			w.Header().Set("Retry-After", "1")
			response.ErrorJSON(w, http.StatusTooManyRequests, "too many image requests, retry shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}
