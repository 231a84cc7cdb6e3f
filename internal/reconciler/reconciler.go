// Package reconciler drives the bounded polling loop that converges an
// order with the provider's settlement outcome when the push channels
// are slow or lost. Each poll tick is just another trigger into the
// same state machine the webhook path uses, so the two can race safely.
package reconciler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway"
	"github.com/221008874/Louable-EGYPT-sub000/internal/order"
	"github.com/221008874/Louable-EGYPT-sub000/internal/settle"
	"github.com/221008874/Louable-EGYPT-sub000/internal/statuscache"
)

const (
	// DefaultInterval between poll attempts.
	DefaultInterval = 3 * time.Second
	// DefaultMaxAttempts before giving up and flagging manual review.
	DefaultMaxAttempts = 10
)

// Outcome is the result of one reconciliation run.
type Outcome string

const (
	// OutcomeSettled means a cached settlement was observed and applied.
	OutcomeSettled Outcome = "settled"
	// OutcomeExhausted means the attempt budget ran out; the order is
	// flagged pending_manual_review. Not an error: the caller surfaces
	// "payment is being processed".
	OutcomeExhausted Outcome = "exhausted"
	// OutcomeTerminal means the order reached a terminal state through
	// another channel while we were polling.
	OutcomeTerminal Outcome = "terminal"
	// OutcomeCancelled means the polling context was cancelled.
	OutcomeCancelled Outcome = "cancelled"
)

// Reconciler polls the status cache on a fixed budget.
type Reconciler struct {
	cache       statuscache.Cache
	orders      order.Store
	recorder    *settle.Recorder
	interval    time.Duration
	maxAttempts int
	log         *zap.Logger
}

// New creates a Reconciler. Non-positive interval or maxAttempts fall
// back to the defaults.
func New(cache statuscache.Cache, orders order.Store, recorder *settle.Recorder, interval time.Duration, maxAttempts int, log *zap.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		cache:       cache,
		orders:      orders,
		recorder:    recorder,
		interval:    interval,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// Run polls until a settlement is observed, the order turns terminal by
// another path, the context is cancelled, or the attempt budget is
// exhausted. Exactly maxAttempts cache reads are made in the exhaustion
// case, one per interval.
func (r *Reconciler) Run(ctx context.Context, orderID, sessionID string) Outcome {
	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return OutcomeCancelled
		case <-timer.C:
		}

		o, err := r.orders.Get(ctx, orderID)
		if err != nil {
			r.log.Error("reconciler lost its order", zap.String("order_id", orderID), zap.Error(err))
			return OutcomeCancelled
		}
		if o.Status.Terminal() || o.Status == order.StatusPaid {
			// Settled through a push channel; stop promptly.
			return OutcomeTerminal
		}
		if !o.SessionExpiresAt.IsZero() && time.Now().After(o.SessionExpiresAt) {
			if _, _, err := r.orders.Apply(ctx, orderID, order.EventSessionExpired, nil); err == nil {
				r.log.Info("session expired during reconciliation",
					zap.String("order_id", orderID), zap.String("session_id", sessionID))
				return OutcomeTerminal
			}
		}

		if entry, ok := r.cache.Get(sessionID); ok {
			if _, err := r.recorder.Record(ctx, gateway.Result{
				SessionID:     entry.SessionID,
				TransactionID: entry.TransactionID,
				Succeeded:     entry.Succeeded,
				AmountMinor:   entry.AmountMinor,
				Currency:      entry.Currency,
				FailureReason: entry.FailureReason,
			}); err != nil {
				r.log.Error("reconciler failed to record settlement",
					zap.String("order_id", orderID), zap.Error(err))
			}
			r.log.Info("reconciler observed settlement",
				zap.String("order_id", orderID),
				zap.String("session_id", sessionID),
				zap.Int("attempt", attempt),
				zap.Bool("succeeded", entry.Succeeded),
			)
			return OutcomeSettled
		}

		timer.Reset(r.interval)
	}

	// Budget exhausted: a defined pending outcome, not an error.
	if _, _, err := r.orders.Apply(ctx, orderID, order.EventReviewRequired, nil); err != nil {
		r.log.Warn("could not flag order for manual review",
			zap.String("order_id", orderID), zap.Error(err))
	} else {
		r.log.Info("reconciliation exhausted, order flagged for manual review",
			zap.String("order_id", orderID),
			zap.String("session_id", sessionID),
			zap.Int("attempts", r.maxAttempts),
		)
	}
	return OutcomeExhausted
}
