// Package settle records a verified settlement outcome: it writes the
// status cache entry, drives the order state machine, and applies the
// review policy that decides whether a paid order auto-confirms. Every
// notification channel (webhook, redirect, wallet completion, poll)
// funnels through Recorder.Record, which is what makes the channels
// idempotent with respect to each other.
package settle

import (
	"context"

	"go.uber.org/zap"

	"github.com/221008874/Louable-EGYPT-sub000/internal/errs"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway"
	"github.com/221008874/Louable-EGYPT-sub000/internal/order"
	"github.com/221008874/Louable-EGYPT-sub000/internal/policy"
	"github.com/221008874/Louable-EGYPT-sub000/internal/statuscache"
)

// Recorder applies settlement outcomes to the cache and the order, and
// runs the review policy on success.
type Recorder struct {
	cache    statuscache.Cache
	orders   order.Store
	reviewer *policy.Reviewer
	log      *zap.Logger
}

// NewRecorder creates a Recorder. reviewer may be nil, in which case
// every paid order auto-confirms.
func NewRecorder(cache statuscache.Cache, orders order.Store, reviewer *policy.Reviewer, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{cache: cache, orders: orders, reviewer: reviewer, log: log}
}

// Record resolves the order owning res.SessionID, caches the outcome
// and advances the order. Events referencing a session no order owns
// are rejected with NotFound. A settlement signal arriving after the
// order already settled is acknowledged without mutation.
func (r *Recorder) Record(ctx context.Context, res gateway.Result) (*order.Order, error) {
	o, err := r.orders.GetBySession(ctx, res.SessionID)
	if err != nil {
		return nil, err
	}
	// Channels that do not echo the amount back fall back to the order.
	if res.AmountMinor == 0 {
		res.AmountMinor = o.AmountMinor
	}
	if res.Currency == "" {
		res.Currency = o.Currency
	}

	r.cache.Put(statuscache.Entry{
		SessionID:     res.SessionID,
		Succeeded:     res.Succeeded,
		TransactionID: res.TransactionID,
		AmountMinor:   res.AmountMinor,
		Currency:      res.Currency,
		FailureReason: res.FailureReason,
	})

	ev := order.EventPaymentSucceeded
	if !res.Succeeded {
		ev = order.EventPaymentFailed
	}
	updated, changed, err := r.orders.Apply(ctx, o.OrderID, ev, func(upd *order.Order) {
		upd.TransactionID = res.TransactionID
		upd.FailureReason = res.FailureReason
	})
	if err != nil {
		if updated == nil {
			updated = o
		}
		if kind, ok := errs.KindOf(err); ok && kind == errs.KindStateConflict {
			r.log.Info("settlement signal after terminal state",
				zap.String("order_id", o.OrderID),
				zap.String("session_id", res.SessionID),
				zap.String("status", string(updated.Status)),
			)
			return updated, nil
		}
		return nil, err
	}

	if res.Succeeded && updated.Status == order.StatusPaid {
		updated = r.maybeConfirm(ctx, updated)
	}

	r.log.Info("settlement recorded",
		zap.String("order_id", updated.OrderID),
		zap.String("session_id", res.SessionID),
		zap.Bool("succeeded", res.Succeeded),
		zap.Bool("changed", changed),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
}

// maybeConfirm runs the review policy and applies paid -> confirmed
// unless a rule holds the order. Policy evaluation errors leave the
// order in paid; confirmation can be done manually.
func (r *Recorder) maybeConfirm(ctx context.Context, o *order.Order) *order.Order {
	if r.reviewer != nil {
		decision, err := r.reviewer.Evaluate(map[string]any{
			"amount_minor":   o.AmountMinor,
			"currency":       o.Currency,
			"gateway":        string(o.Gateway),
			"payment_method": string(o.PaymentMethod),
		})
		if err != nil {
			r.log.Error("review policy evaluation failed, holding order in paid",
				zap.String("order_id", o.OrderID), zap.Error(err))
			return o
		}
		if decision.RequireReview {
			r.log.Info("order held for manual review",
				zap.String("order_id", o.OrderID),
				zap.String("rule", decision.MatchedRule),
			)
			return o
		}
	}
	updated, _, err := r.orders.Apply(ctx, o.OrderID, order.EventPaymentConfirmed, nil)
	if err != nil {
		r.log.Warn("auto-confirm rejected", zap.String("order_id", o.OrderID), zap.Error(err))
		return o
	}
	return updated
}

// Poll is the non-blocking cache read behind the status endpoint.
func (r *Recorder) Poll(sessionID string) (statuscache.Entry, bool) {
	return r.cache.Get(sessionID)
}
