// Package wallet integrates the wallet provider whose payments are
// initiated by the client SDK and finalized by a two-phase server
// handshake: approve, then complete. Trust rests on TLS plus the
// bearer credential, not on a payload signature; the provider is the
// source of truth for duplicate suppression, so resubmitting either
// call for the same payment id is safe.
package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/221008874/Louable-EGYPT-sub000/internal/errs"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway/breaker"
	"github.com/221008874/Louable-EGYPT-sub000/internal/order"
	"github.com/221008874/Louable-EGYPT-sub000/internal/settle"
)

const (
	providerName = "wallet_handshake"

	// sandboxKeyPrefix marks a sandbox credential. The environment is
	// derived from the credential itself, never from a separate flag, so
	// code and credential cannot disagree.
	sandboxKeyPrefix = "sandbox_"

	// sessionTTL bounds how long an approved wallet payment stays
	// completable before the order can expire.
	sessionTTL = time.Hour
)

// Config holds the bearer credential and the per-environment API hosts.
type Config struct {
	APIKey            string
	ProductionBaseURL string
	SandboxBaseURL    string
}

// Sandbox reports whether the credential selects the sandbox
// environment.
func (c Config) Sandbox() bool {
	return strings.HasPrefix(c.APIKey, sandboxKeyPrefix)
}

// baseURL picks the host matching the credential's environment.
func (c Config) baseURL() string {
	if c.Sandbox() {
		return c.SandboxBaseURL
	}
	return c.ProductionBaseURL
}

// Payment is the provider's payment resource as returned by the
// approve and complete endpoints.
type Payment struct {
	Identifier string `json:"identifier"`
	UserUID    string `json:"user_uid"`
	Amount     int64  `json:"amount"`
	Metadata   struct {
		OrderID string `json:"order_id"`
	} `json:"metadata"`
	Status struct {
		DeveloperApproved  bool `json:"developer_approved"`
		TransactionVerified bool `json:"transaction_verified"`
		DeveloperCompleted bool `json:"developer_completed"`
		Cancelled          bool `json:"cancelled"`
	} `json:"status"`
	Transaction struct {
		TxID     string `json:"txid"`
		Verified bool   `json:"verified"`
	} `json:"transaction"`
}

// Adapter drives the approve/complete handshake.
type Adapter struct {
	cfg      Config
	client   *resty.Client
	orders   order.Store
	recorder *settle.Recorder
	breaker  *breaker.Breaker
	log      *zap.Logger
}

// New creates the adapter. orders and recorder must not be nil.
func New(cfg Config, orders order.Store, recorder *settle.Recorder, brk *breaker.Breaker, log *zap.Logger) *Adapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{
		cfg:      cfg,
		client:   resty.New().SetBaseURL(cfg.baseURL()).SetTimeout(15 * time.Second),
		orders:   orders,
		recorder: recorder,
		breaker:  brk,
		log:      log,
	}
}

func (a *Adapter) Name() order.Gateway { return order.GatewayWalletHandshake }

// Approve authorizes the client-initiated payment at the provider and
// binds the payment id to the order named in the payment metadata. A
// single blocking round-trip with no internal retry; transient failures
// surface to the caller, and resubmitting is safe.
func (a *Adapter) Approve(ctx context.Context, paymentID string) (Payment, error) {
	tracer := otel.Tracer("gateway.wallet")
	ctx, span := tracer.Start(ctx, "Wallet.Approve")
	defer span.End()

	if paymentID == "" {
		return Payment{}, errs.Validation("payment id is required")
	}
	if a.breaker != nil && !a.breaker.Allow(providerName) {
		return Payment{}, errs.GatewayUnavailable("wallet provider circuit open", "", nil)
	}

	var p Payment
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Key "+a.cfg.APIKey).
		SetResult(&p).
		Post("/payments/" + paymentID + "/approve")
	if err := a.checkResponse(resp, err, "approve"); err != nil {
		return Payment{}, err
	}

	if p.Metadata.OrderID == "" {
		return Payment{}, errs.Validation("approved payment carries no order reference")
	}
	o, err := a.orders.Get(ctx, p.Metadata.OrderID)
	if err != nil {
		return Payment{}, err
	}
	// Binding the payment id as the order's session happens before any
	// completion referencing it can be accepted. Re-approval of the
	// same payment re-binds the same pair and is harmless.
	if o.GatewaySessionID != "" && o.GatewaySessionID != paymentID {
		return Payment{}, errs.StateConflict("order " + o.OrderID + " is bound to a different wallet payment")
	}
	if err := a.orders.AttachSession(ctx, o.OrderID, paymentID, time.Now().Add(sessionTTL)); err != nil {
		return Payment{}, err
	}
	// Approval opens the payment window; for a re-approval the order is
	// already awaiting payment and this is a no-op.
	if _, _, err := a.orders.Apply(ctx, o.OrderID, order.EventSessionOpened, nil); err != nil {
		return Payment{}, err
	}
	a.log.Info("wallet payment approved",
		zap.String("payment_id", paymentID),
		zap.String("order_id", o.OrderID),
		zap.Bool("sandbox", a.cfg.Sandbox()),
	)
	return p, nil
}

// Complete finalizes the payment with the client-supplied transaction
// reference and settles the order. On provider failure the error body
// is surfaced verbatim and the order is left retryable from approved.
func (a *Adapter) Complete(ctx context.Context, paymentID, txid string) (Payment, error) {
	tracer := otel.Tracer("gateway.wallet")
	ctx, span := tracer.Start(ctx, "Wallet.Complete")
	defer span.End()

	if paymentID == "" || txid == "" {
		return Payment{}, errs.Validation("payment id and transaction id are required")
	}
	if a.breaker != nil && !a.breaker.Allow(providerName) {
		return Payment{}, errs.GatewayUnavailable("wallet provider circuit open", "", nil)
	}

	var p Payment
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Key "+a.cfg.APIKey).
		SetBody(map[string]string{"txid": txid}).
		SetResult(&p).
		Post("/payments/" + paymentID + "/complete")
	if err := a.checkResponse(resp, err, "complete"); err != nil {
		return Payment{}, err
	}

	if _, err := a.recorder.Record(ctx, gateway.Result{
		SessionID:     paymentID,
		TransactionID: txid,
		Succeeded:     true,
	}); err != nil {
		return Payment{}, err
	}
	a.log.Info("wallet payment completed",
		zap.String("payment_id", paymentID),
		zap.String("txid", txid),
	)
	return p, nil
}

func (a *Adapter) checkResponse(resp *resty.Response, err error, phase string) error {
	if err != nil {
		if a.breaker != nil {
			a.breaker.RecordFailure(providerName)
		}
		return errs.GatewayUnavailable("wallet provider "+phase+" request failed", "", err)
	}
	if resp.IsError() {
		if a.breaker != nil {
			a.breaker.RecordFailure(providerName)
		}
		a.log.Error("wallet provider rejected handshake call",
			zap.String("phase", phase),
			zap.Int("status", resp.StatusCode()),
		)
		e := errs.GatewayUnavailable(
			fmt.Sprintf("wallet provider %s returned HTTP %d", phase, resp.StatusCode()),
			string(resp.Body()), nil)
		e.UpstreamStatus = resp.StatusCode()
		return e
	}
	if a.breaker != nil {
		a.breaker.RecordSuccess(providerName)
	}
	return nil
}
