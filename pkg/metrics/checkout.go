package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout orchestration outcomes.
type CheckoutMetrics struct {
	attempts     *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	reconcile    *prometheus.CounterVec
	degraded     prometheus.Counter
	upstreamTime *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Checkout submissions by payment method.",
	}, []string{"method"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_outcomes_total",
		Help: "Checkout terminal outcomes by method and result.",
	}, []string{"method", "result"})
	reconcile := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_reconciliations_total",
		Help: "Success-route reconciliation runs by result.",
	}, []string{"result"})
	degraded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_degraded_sessions_total",
		Help: "Payment sessions minted in direct-creation degraded mode.",
	})
	upstreamTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "commerce_request_duration_seconds",
		Help:    "Duration of upstream commerce API calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(attempts, outcomes, reconcile, degraded, upstreamTime)
	return &CheckoutMetrics{
		attempts:     attempts,
		outcomes:     outcomes,
		reconcile:    reconcile,
		degraded:     degraded,
		upstreamTime: upstreamTime,
	}
}

// IncAttempt counts a checkout submission for the method.
func (c *CheckoutMetrics) IncAttempt(method string) {
	if c == nil || c.attempts == nil {
		return
	}
	c.attempts.WithLabelValues(normalizeLabel(method)).Inc()
}

// IncOutcome counts a terminal checkout result (succeeded/cancelled/failed).
func (c *CheckoutMetrics) IncOutcome(method, result string) {
	if c == nil || c.outcomes == nil {
		return
	}
	c.outcomes.WithLabelValues(normalizeLabel(method), normalizeLabel(result)).Inc()
}

// IncReconcile counts a reconciliation run by result.
func (c *CheckoutMetrics) IncReconcile(result string) {
	if c == nil || c.reconcile == nil {
		return
	}
	c.reconcile.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncDegraded counts a direct-creation session.
func (c *CheckoutMetrics) IncDegraded() {
	if c == nil || c.degraded == nil {
		return
	}
	c.degraded.Inc()
}

// ObserveUpstream records the duration of one commerce API call.
func (c *CheckoutMetrics) ObserveUpstream(operation string, duration time.Duration) {
	if c == nil || c.upstreamTime == nil {
		return
	}
	c.upstreamTime.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
