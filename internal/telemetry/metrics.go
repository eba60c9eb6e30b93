package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for rule_evaluations_total.
const (
	OutcomeTrue  = "true"
	OutcomeFalse = "false"
	OutcomeError = "error"
)

// Status labels for rules_parsed_total.
const (
	ParseOK    = "ok"
	ParseError = "error"
)

// Metrics holds the service collectors. Build it once with NewMetrics and
// share it; a nil *Metrics is valid and records nothing.
type Metrics struct {
	httpReqs    *prometheus.CounterVec
	httpDur     *prometheus.HistogramVec
	parsed      *prometheus.CounterVec
	evaluations *prometheus.CounterVec
	combines    *prometheus.CounterVec
	webhooks    *prometheus.CounterVec
	stored      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpReqs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDur: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		parsed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rules_parsed_total",
				Help: "Rule texts parsed, by result",
			},
			[]string{"status"},
		),
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rule_evaluations_total",
				Help: "Rule evaluations, by outcome",
			},
			[]string{"outcome"},
		),
		combines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rule_combines_total",
				Help: "Rule combinations, by strategy",
			},
			[]string{"strategy"},
		),
		webhooks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_deliveries_total",
				Help: "Webhook deliveries, by final status",
			},
			[]string{"status"},
		),
		stored: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rules_stored",
			Help: "Number of rules currently stored",
		}),
	}
	reg.MustRegister(m.httpReqs, m.httpDur, m.parsed, m.evaluations, m.combines, m.webhooks, m.stored)
	return m
}

// ObserveParse counts one parse attempt.
func (m *Metrics) ObserveParse(err error) {
	if m == nil {
		return
	}
	status := ParseOK
	if err != nil {
		status = ParseError
	}
	m.parsed.WithLabelValues(status).Inc()
}

// ObserveEvaluation counts one evaluation.
func (m *Metrics) ObserveEvaluation(result bool, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeFalse
	switch {
	case err != nil:
		outcome = OutcomeError
	case result:
		outcome = OutcomeTrue
	}
	m.evaluations.WithLabelValues(outcome).Inc()
}

// ObserveCombine counts one successful combination.
func (m *Metrics) ObserveCombine(strategy string) {
	if m == nil {
		return
	}
	m.combines.WithLabelValues(strategy).Inc()
}

// ObserveWebhookDelivery counts one delivery after its last attempt.
func (m *Metrics) ObserveWebhookDelivery(success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	m.webhooks.WithLabelValues(status).Inc()
}

// SetStored records the current number of stored rules.
func (m *Metrics) SetStored(n int) {
	if m == nil {
		return
	}
	m.stored.Set(float64(n))
}

// Middleware records request counts and latency keyed by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		// the pattern is only complete once routing has finished
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		m.httpReqs.WithLabelValues(route, r.Method, strconv.Itoa(ww.status)).Inc()
		m.httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
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

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
