// Package metrics exposes the payment core's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the counters the handlers and the reconciler record.
type Metrics struct {
	SessionsCreated  *prometheus.CounterVec
	SessionFailures  *prometheus.CounterVec
	WebhookEvents    *prometheus.CounterVec
	RedirectEvents   *prometheus.CounterVec
	WalletHandshakes *prometheus.CounterVec
	StatusPolls      prometheus.Counter
	Reconciliations  *prometheus.CounterVec
}

// New registers the collectors on reg and returns them. Pass
// prometheus.DefaultRegisterer in production; tests pass a fresh
// registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_sessions_created_total",
			Help: "Payment sessions successfully created, by gateway.",
		}, []string{"gateway"}),
		SessionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_session_failures_total",
			Help: "Session creation failures, by gateway.",
		}, []string{"gateway"}),
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Hosted-webhook callbacks, by outcome (accepted, rejected, error).",
		}, []string{"outcome"}),
		RedirectEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_redirect_notifications_total",
			Help: "Hosted-redirect notifications, by outcome.",
		}, []string{"outcome"}),
		WalletHandshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_handshake_calls_total",
			Help: "Wallet approve/complete calls, by phase and outcome.",
		}, []string{"phase", "outcome"}),
		StatusPolls: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_status_polls_total",
			Help: "Status poll requests served.",
		}),
		Reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_reconciliations_total",
			Help: "Reconciliation runs, by outcome.",
		}, []string{"outcome"}),
	}
}
