package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// The default registerer already carries the Go and process collectors.
var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status class.",
		},
		[]string{"route", "method", "status"},
	)
	httpLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			// 5ms to ~10s; checkout submits wait on the order service.
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"route", "method"},
	)
	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Requests currently being served.",
		},
	)

	checkoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "checkouts_total",
			Help:      "Checkout transitions by outcome.",
		},
		[]string{"outcome"},
	)
	stockViolationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "stock_violations_total",
			Help:      "Cart lines rejected by pre-submit stock validation.",
		},
	)
	stockPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "stock_polls_total",
			Help:      "Background stock polls by result.",
		},
		[]string{"result"},
	)
	liveCarts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storefront",
			Name:      "live_carts",
			Help:      "Cart sessions currently held in memory.",
		},
	)
)

// RecordCheckout counts one checkout transition: started, redirected, success,
// cancelled, failed or abandoned.
func RecordCheckout(outcome string) {
	checkoutsTotal.WithLabelValues(outcome).Inc()
}

func RecordStockViolations(n int) {
	stockViolationsTotal.Add(float64(n))
}

func RecordStockPoll(result string) {
	stockPollsTotal.WithLabelValues(result).Inc()
}

func SetLiveCarts(n int) {
	liveCarts.Set(float64(n))
}

type codeRecorder struct {
	http.ResponseWriter
	code int
}

func (c *codeRecorder) WriteHeader(code int) {
	c.code = code
	c.ResponseWriter.WriteHeader(code)
}

// Middleware counts and times requests. Labels use the matched route pattern
// and the status class (2xx, 4xx, ...) to keep cardinality bounded.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		rec := &codeRecorder{ResponseWriter: w, code: http.StatusOK}
		timer := time.Now()

		next.ServeHTTP(rec, r)

		route := routePattern(r)
		httpLatency.WithLabelValues(route, r.Method).Observe(time.Since(timer).Seconds())
		httpRequests.WithLabelValues(route, r.Method, statusClass(rec.code)).Inc()
	})
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}

// routePattern prefers the mux pattern that matched; unmatched requests share one label.
func routePattern(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}

	if _, path, ok := strings.Cut(r.Pattern, " "); ok {
		return path
	}

	return r.Pattern
}

func Handler() http.Handler {
	return promhttp.Handler()
}
