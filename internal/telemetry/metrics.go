package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// Decisions counts gate decisions by outcome kind and reason.
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splitgate_decisions_total",
			Help: "Gate decisions by outcome and reason",
		},
		[]string{"outcome", "reason"},
	)
	// Exemptions counts exempt requests by the first matching predicate.
	Exemptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "splitgate_exemptions_total",
			Help: "Exempt requests by matching predicate",
		},
		[]string{"predicate"},
	)
	MalformedMarkers = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "splitgate_malformed_markers_total",
		Help: "Assignment markers that could not be parsed and were treated as unset",
	})
	SplitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "splitgate_split_ratio_percent",
		Help: "Configured share of eligible visitors sent to the variant",
	})

	initOnce sync.Once
)

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpReqs, httpDur, Decisions, Exemptions, MalformedMarkers, SplitRatio)
	})
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		// chi fills the route pattern while routing, so read it afterwards
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		httpReqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
