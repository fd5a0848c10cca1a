package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	tokenValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_validations_total",
			Help: "Credential validations by token kind and outcome.",
		},
		[]string{"kind", "result"},
	)

	authDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_decisions_total",
			Help: "Authorization decisions rendered by the engine.",
		},
		[]string{"decision"},
	)

	revocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_revocations_total",
			Help: "Revocation markers written, by scope.",
		},
		[]string{"scope"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the service reports ready.",
	})
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		tokenValidations,
		authDecisions,
		revocations,
		ready,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady flips the readiness gauge.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// ObserveTokenValidation counts one credential validation outcome.
func ObserveTokenValidation(kind, result string) {
	tokenValidations.WithLabelValues(kind, result).Inc()
}

// ObserveDecision counts one authorization decision.
func ObserveDecision(allowed bool) {
	if allowed {
		authDecisions.WithLabelValues("allow").Inc()
		return
	}
	authDecisions.WithLabelValues("deny").Inc()
}

// ObserveRevocation counts one marker write.
func ObserveRevocation(scope string) {
	revocations.WithLabelValues(scope).Inc()
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
