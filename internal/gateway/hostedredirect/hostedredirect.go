// Package hostedredirect integrates the hosted-checkout provider that
// settles through a signed browser return plus a server-side
// notification POST. Session creation is entirely local: the checkout
// URL is composed and signed without a provider round-trip.
package hostedredirect

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/221008874/Louable-EGYPT-sub000/internal/errs"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway"
	"github.com/221008874/Louable-EGYPT-sub000/internal/order"
	"github.com/221008874/Louable-EGYPT-sub000/internal/settle"
	"github.com/221008874/Louable-EGYPT-sub000/internal/signature"
	"github.com/221008874/Louable-EGYPT-sub000/internal/statuscache"
)

// StatusSuccess is the paymentStatus value the provider sends for a
// settled payment; anything else is a failure.
const StatusSuccess = "SUCCESS"

// Config holds the merchant identity and signing secret.
type Config struct {
	CheckoutBaseURL string
	MerchantID      string
	Secret          string
	ReturnURL       string
	CancelURL       string
}

// Adapter implements gateway.Adapter for the hosted-redirect provider.
type Adapter struct {
	cfg      Config
	recorder *settle.Recorder
	log      *zap.Logger
}

// New creates the adapter.
func New(cfg Config, recorder *settle.Recorder, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{cfg: cfg, recorder: recorder, log: log}
}

func (a *Adapter) Name() order.Gateway { return order.GatewayHostedRedirect }

// CreateSession composes the static signed checkout URL. The provider
// performs no server-to-server call at creation time; the order id
// doubles as the session id. Loss of the browser return leaves the
// order in awaiting_payment with no automatic reconciliation path for
// this provider; the server-side notification POST is the only other
// settlement signal.
func (a *Adapter) CreateSession(_ context.Context, req gateway.CreateSessionRequest) (gateway.Session, error) {
	if req.OrderID == "" {
		return gateway.Session{}, errs.Validation("order id is required")
	}
	// The provider contract wants a fixed-precision 2-decimal amount.
	amount := fmt.Sprintf("%d.%02d", req.AmountMinor/100, req.AmountMinor%100)
	sig := signature.RedirectSignature(req.OrderID, amount, a.cfg.Secret)

	q := url.Values{}
	q.Set("merchantId", a.cfg.MerchantID)
	q.Set("orderId", req.OrderID)
	q.Set("amount", amount)
	q.Set("currency", req.Currency)
	q.Set("returnUrl", a.cfg.ReturnURL)
	q.Set("cancelUrl", a.cfg.CancelURL)
	q.Set("signature", sig)

	return gateway.Session{
		SessionID:   req.OrderID,
		RedirectURL: a.cfg.CheckoutBaseURL + "/checkout?" + q.Encode(),
	}, nil
}

// Notification is the provider's server-side settlement POST; the
// browser return carries the same fields in the query string.
type Notification struct {
	OrderID       string `json:"orderId" binding:"required"`
	PaymentStatus string `json:"paymentStatus" binding:"required"`
	TransactionID string `json:"transactionId"`
	Amount        string `json:"amount"`
	Signature     string `json:"signature" binding:"required"`
	FailureReason string `json:"failureReason,omitempty"`
}

// HandleReturn verifies the notification signature over
// orderId + paymentStatus + secret and records the outcome. On
// mismatch nothing is mutated.
func (a *Adapter) HandleReturn(ctx context.Context, n Notification) (gateway.Result, error) {
	if !signature.VerifyRedirect(n.OrderID, n.PaymentStatus, n.Signature, a.cfg.Secret) {
		a.log.Warn("redirect signature mismatch", zap.String("order_id", n.OrderID))
		return gateway.Result{}, errs.Authentication("invalid signature")
	}

	res := gateway.Result{
		SessionID:     n.OrderID,
		TransactionID: n.TransactionID,
		Succeeded:     n.PaymentStatus == StatusSuccess,
		FailureReason: n.FailureReason,
	}
	updated, err := a.recorder.Record(ctx, res)
	if err != nil {
		return gateway.Result{}, err
	}
	res.AmountMinor = updated.AmountMinor
	res.Currency = updated.Currency
	return res, nil
}

// PollStatus is a pure cache read.
func (a *Adapter) PollStatus(sessionID string) (statuscache.Entry, error) {
	e, ok := a.recorder.Poll(sessionID)
	if !ok {
		return statuscache.Entry{}, errs.NotFound("no settlement observed for session " + sessionID)
	}
	return e, nil
}
