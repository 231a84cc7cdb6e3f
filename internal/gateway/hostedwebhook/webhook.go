package hostedwebhook

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/221008874/Louable-EGYPT-sub000/internal/errs"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway"
	"github.com/221008874/Louable-EGYPT-sub000/internal/signature"
	"github.com/221008874/Louable-EGYPT-sub000/internal/statuscache"
)

// WebhookEvent is the provider's transaction event envelope. The shape
// is validated at the boundary; unrecognized envelopes are rejected
// before any field is read.
type WebhookEvent struct {
	Type string             `json:"type"`
	Obj  WebhookTransaction `json:"obj"`
}

// WebhookTransaction is the transaction object inside the envelope.
// Every field below participates in the HMAC canonical string.
type WebhookTransaction struct {
	ID                   int64  `json:"id"`
	AmountCents          int64  `json:"amount_cents"`
	CreatedAt            string `json:"created_at"`
	Currency             string `json:"currency"`
	ErrorOccured         bool   `json:"error_occured"`
	HasParentTransaction bool   `json:"has_parent_transaction"`
	IntegrationID        int64  `json:"integration_id"`
	Is3DSecure           bool   `json:"is_3d_secure"`
	IsAuth               bool   `json:"is_auth"`
	IsCapture            bool   `json:"is_capture"`
	IsRefunded           bool   `json:"is_refunded"`
	IsStandalonePayment  bool   `json:"is_standalone_payment"`
	IsVoided             bool   `json:"is_voided"`
	Order                struct {
		ID              int64  `json:"id"`
		MerchantOrderID string `json:"merchant_order_id"`
	} `json:"order"`
	Owner      int64 `json:"owner"`
	Pending    bool  `json:"pending"`
	SourceData struct {
		PAN     string `json:"pan"`
		SubType string `json:"sub_type"`
		Type    string `json:"type"`
	} `json:"source_data"`
	Success bool `json:"success"`
	Data    struct {
		Message string `json:"message"`
	} `json:"data"`
}

func (t WebhookTransaction) hmacFields() signature.WebhookFields {
	return signature.WebhookFields{
		AmountCents:          t.AmountCents,
		CreatedAt:            t.CreatedAt,
		Currency:             t.Currency,
		ErrorOccured:         t.ErrorOccured,
		HasParentTransaction: t.HasParentTransaction,
		TransactionID:        t.ID,
		IntegrationID:        t.IntegrationID,
		Is3DSecure:           t.Is3DSecure,
		IsAuth:               t.IsAuth,
		IsCapture:            t.IsCapture,
		IsRefunded:           t.IsRefunded,
		IsStandalonePayment:  t.IsStandalonePayment,
		IsVoided:             t.IsVoided,
		ProviderOrderID:      t.Order.ID,
		Owner:                t.Owner,
		Pending:              t.Pending,
		SourcePAN:            t.SourceData.PAN,
		SourceSubType:        t.SourceData.SubType,
		SourceType:           t.SourceData.Type,
		Success:              t.Success,
	}
}

// HandleWebhook verifies the event HMAC and hands the outcome to the
// settlement recorder. On verification failure nothing is mutated.
// Redelivery of the same event resolves to the state machine's
// idempotent no-op inside the recorder.
func (a *Adapter) HandleWebhook(ctx context.Context, ev WebhookEvent, suppliedHMAC string) (gateway.Result, error) {
	tx := ev.Obj
	if !signature.VerifyWebhook(tx.hmacFields(), suppliedHMAC, a.cfg.HMACSecret) {
		a.log.Warn("webhook HMAC mismatch",
			zap.Int64("provider_order_id", tx.Order.ID),
			zap.String("merchant_order_id", tx.Order.MerchantOrderID),
		)
		return gateway.Result{}, errs.Authentication("Invalid HMAC")
	}

	res := gateway.Result{
		SessionID:     strconv.FormatInt(tx.Order.ID, 10),
		TransactionID: strconv.FormatInt(tx.ID, 10),
		Succeeded:     tx.Success && !tx.Pending && !tx.ErrorOccured,
		AmountMinor:   tx.AmountCents,
		Currency:      tx.Currency,
	}
	if !res.Succeeded {
		res.FailureReason = tx.Data.Message
	}

	if _, err := a.recorder.Record(ctx, res); err != nil {
		return gateway.Result{}, err
	}
	return res, nil
}

// PollStatus is a pure cache read used by the reconciler and the status
// endpoint. It never blocks waiting for a result.
func (a *Adapter) PollStatus(sessionID string) (statuscache.Entry, error) {
	e, ok := a.recorder.Poll(sessionID)
	if !ok {
		return statuscache.Entry{}, errs.NotFound("no settlement observed for session " + sessionID)
	}
	return e, nil
}
