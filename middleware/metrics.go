package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks request latency by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transfermap_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "path", "status"},
	)

	// ActionsTotal counts add/remove actions by outcome.
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfermap_actions_total",
			Help: "Total number of store actions by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// StoreSize tracks the number of transfer requests currently held.
	StoreSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transfermap_store_size",
			Help: "Current number of transfer requests in the store",
		},
	)

	// LookupFailuresTotal counts city names missing from the place dataset.
	LookupFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transfermap_lookup_failures_total",
			Help: "Total number of city lookups that found no place",
		},
	)
)

// unmatchedRoute labels requests no route matched, keeping 404s out of the path label.
const unmatchedRoute = "unmatched"

// Prometheus records request metrics labelled by the matched chi route.
func Prometheus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		HTTPRequestDuration.WithLabelValues(
			r.Method,
			path,
			strconv.Itoa(status),
		).Observe(time.Since(start).Seconds())
	})
}
