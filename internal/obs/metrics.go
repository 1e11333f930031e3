package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bloodnet.org/internal/ids"
)

var (
	initOnce sync.Once

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

	stockUnits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodnet_stock_units_total",
			Help: "Blood units moved through the inventory ledger.",
		},
		[]string{"direction", "group"},
	)

	requestTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodnet_request_transitions_total",
			Help: "Blood request state transitions.",
		},
		[]string{"to"},
	)

	slotTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodnet_slot_transitions_total",
			Help: "Donation slot state transitions.",
		},
		[]string{"to"},
	)

	engineErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bloodnet_engine_errors_total",
			Help: "Business-rule failures returned by the engine.",
		},
		[]string{"code"},
	)
)

// Init registers every collector with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			stockUnits, requestTransitions, slotTransitions, engineErrors,
			buildInfo,
		)
	})
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StockMoved counts units credited (delta > 0) or debited (delta < 0).
func StockMoved(group string, delta int64) {
	dir := "in"
	if delta < 0 {
		dir, delta = "out", -delta
	}
	stockUnits.WithLabelValues(dir, group).Add(float64(delta))
}

func RequestTransition(to string) { requestTransitions.WithLabelValues(to).Inc() }

func SlotTransition(to string) { slotTransitions.WithLabelValues(to).Inc() }

func EngineError(code string) { engineErrors.WithLabelValues(code).Inc() }

// Instrument records in-flight, count and latency for every request.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// CanonicalPath collapses identifiers and blood groups so metric label
// cardinality stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		switch {
		case ids.Valid(part):
			parts[i] = ":id"
		case i > 0 && (parts[i-1] == "compatibility" || parts[i-1] == "compatible"):
			parts[i] = ":group"
		}
	}
	return "/" + strings.Join(parts, "/")
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
