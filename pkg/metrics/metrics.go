// Package metrics exposes the application's prometheus collectors.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pennypilot_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pennypilot_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pennypilot_llm_requests_total",
		Help: "LLM API calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pennypilot_llm_request_duration_seconds",
		Help:    "LLM API call latency.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"operation"})

	ImportRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pennypilot_import_rows_total",
		Help: "Statement rows processed by outcome.",
	}, []string{"source", "outcome"})

	EmbeddingsBackfilledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pennypilot_embeddings_backfilled_total",
		Help: "Transactions that received an embedding.",
	})

	RecommendationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pennypilot_recommendation_runs_total",
		Help: "Recommendation agent runs by outcome.",
	}, []string{"outcome"})
)

// Handler serves the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve runs the metrics endpoint on its own port.
func Serve(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency per route pattern.
func Middleware(routePattern func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := routePattern(r)
			HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
