package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "token_qrng_build_info",
			Help: "Build information of the token QRNG engine",
		},
		[]string{"version", "commit", "date"},
	)

	InstructionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_qrng_instructions_total",
			Help: "Total number of processed program instructions",
		},
		[]string{"tag", "status"},
	)

	InstructionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "token_qrng_instruction_duration_seconds",
			Help:    "Duration of program instruction processing in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
		},
		[]string{"tag"},
	)

	PaymentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "token_qrng_payments_base_units_total",
			Help: "Total token base units transferred to the treasury",
		},
	)

	EntropyWordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "token_qrng_entropy_words_total",
			Help: "Total number of entropy words generated",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_qrng_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "token_qrng_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "token_qrng_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Middleware returns a chi middleware that records HTTP metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Use the route pattern if available, otherwise use the path
		path := chi.RouteContext(r.Context()).RoutePattern()
		if path == "" {
			path = r.URL.Path
		}

		status := strconv.Itoa(ww.Status())
		duration := time.Since(start).Seconds()

		HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// RecordInstruction records metrics for one processed instruction.
func RecordInstruction(tag string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	InstructionsTotal.WithLabelValues(tag, status).Inc()
	InstructionDuration.WithLabelValues(tag).Observe(duration.Seconds())
}

// RecordGeneration records a successful generation: one entropy word and
// its payment.
func RecordGeneration(priceBaseUnits uint64) {
	EntropyWordsTotal.Inc()
	PaymentsTotal.Add(float64(priceBaseUnits))
}
