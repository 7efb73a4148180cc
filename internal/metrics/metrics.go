package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kolo"

// Daily saving outcomes.
const (
	OutcomeSuccess           = "success"
	OutcomeAlreadyProcessed  = "already_processed"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeError             = "error"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	dailySavings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "savings",
			Name:      "daily_total",
			Help:      "Daily saving attempts by outcome.",
		},
		[]string{"outcome"},
	)

	savedAmount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "savings",
			Name:      "daily_amount_total",
			Help:      "Sum of successfully saved daily amounts.",
		},
	)

	batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "savings",
			Name:      "batch_duration_seconds",
			Help:      "Duration of daily savings batch runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	batchLastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "savings",
			Name:      "batch_last_run_timestamp_seconds",
			Help:      "Unix time the last daily savings batch finished.",
		},
	)

	otpEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "otp",
			Name:      "events_total",
			Help:      "OTP issuance and verification events by result.",
		},
		[]string{"event", "result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		dailySavings,
		savedAmount,
		batchDuration,
		batchLastRun,
		otpEvents,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RequestStarted tracks an in-flight request; call the returned func when it finishes.
func RequestStarted() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}

// ObserveRequest records one finished HTTP request. route is the matched route pattern.
func ObserveRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	method = strings.ToUpper(method)
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordDailySaving counts one daily saving attempt; amount is added on success.
func RecordDailySaving(outcome string, amount float64) {
	dailySavings.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess && amount > 0 {
		savedAmount.Add(amount)
	}
}

// ObserveBatch records a finished batch run.
func ObserveBatch(duration time.Duration, finished time.Time) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	batchDuration.Observe(duration.Seconds())
	batchLastRun.Set(float64(finished.Unix()))
}

// RecordOTP counts an OTP event ("issue" or "verify") with its result.
func RecordOTP(event, result string) {
	otpEvents.WithLabelValues(event, result).Inc()
}
