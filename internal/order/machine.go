package order

import (
	"time"

	"go.uber.org/zap"

	"github.com/221008874/Louable-EGYPT-sub000/internal/errs"
)

// Event is a request to advance an Order along one allowed edge.
type Event string

const (
	// EventSessionOpened moves created -> awaiting_payment once a gateway
	// session (or a cash placement) exists.
	EventSessionOpened Event = "session_opened"
	// EventPaymentSucceeded moves awaiting_payment -> paid. Idempotent:
	// re-applying it to a paid or confirmed order is a no-op, which is
	// what lets the webhook path and the poll path race safely.
	EventPaymentSucceeded Event = "payment_succeeded"
	// EventPaymentConfirmed moves paid -> confirmed.
	EventPaymentConfirmed Event = "payment_confirmed"
	// EventPaymentFailed moves a pre-settlement order to failed.
	EventPaymentFailed Event = "payment_failed"
	// EventCancelled moves a pre-settlement order to cancelled.
	EventCancelled Event = "cancelled"
	// EventSessionExpired moves awaiting_payment -> expired.
	EventSessionExpired Event = "session_expired"
	// EventReviewRequired moves awaiting_payment into the
	// pending_manual_review sub-state after poll exhaustion.
	EventReviewRequired Event = "review_required"
)

// target maps each event to the status it drives toward.
var target = map[Event]Status{
	EventSessionOpened:    StatusAwaitingPayment,
	EventPaymentSucceeded: StatusPaid,
	EventPaymentConfirmed: StatusConfirmed,
	EventPaymentFailed:    StatusFailed,
	EventCancelled:        StatusCancelled,
	EventSessionExpired:   StatusExpired,
	EventReviewRequired:   StatusPendingManualReview,
}

// allowed lists the permitted source statuses per event. Any
// (event, source) pair not listed here is a conflict.
var allowed = map[Event][]Status{
	EventSessionOpened:    {StatusCreated},
	EventPaymentSucceeded: {StatusAwaitingPayment, StatusPendingManualReview},
	EventPaymentConfirmed: {StatusPaid},
	EventPaymentFailed:    {StatusCreated, StatusAwaitingPayment, StatusPendingManualReview},
	EventCancelled:        {StatusCreated, StatusAwaitingPayment, StatusPendingManualReview},
	EventSessionExpired:   {StatusAwaitingPayment, StatusPendingManualReview},
	EventReviewRequired:   {StatusAwaitingPayment},
}

// Machine is the authoritative transition function. It is stateless;
// callers own persistence and locking.
type Machine struct {
	log *zap.Logger
}

// NewMachine creates a Machine. The logger records rejected transitions
// as inconsistencies; it must not be nil.
func NewMachine(log *zap.Logger) *Machine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{log: log}
}

// Apply advances o along ev. It returns true when the order changed,
// false for an idempotent re-application, and a StateConflict error for
// a forbidden edge. PaidAt is written exactly once, on the transition
// into paid; EventPaymentSucceeded observed on an already paid or
// confirmed order leaves PaidAt untouched.
func (m *Machine) Apply(o *Order, ev Event, now time.Time) (bool, error) {
	tgt, ok := target[ev]
	if !ok {
		return false, errs.Validationf("unknown order event %q", ev)
	}

	if o.Status == tgt {
		return false, nil
	}
	// A success signal for an order that already settled and confirmed
	// is the duplicate-delivery case, not a violation.
	if ev == EventPaymentSucceeded && o.Status == StatusConfirmed {
		return false, nil
	}

	for _, src := range allowed[ev] {
		if o.Status == src {
			o.Status = tgt
			if tgt == StatusPaid && o.PaidAt == nil {
				t := now
				o.PaidAt = &t
			}
			return true, nil
		}
	}

	m.log.Warn("rejected order transition",
		zap.String("order_id", o.OrderID),
		zap.String("from", string(o.Status)),
		zap.String("event", string(ev)),
		zap.String("target", string(tgt)),
	)
	return false, errs.StateConflict("transition from " + string(o.Status) + " via " + string(ev) + " is not allowed")
}
