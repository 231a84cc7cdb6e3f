// Package order holds the Order model, the status state machine and the
// store abstraction. All status mutations, whether triggered by a
// webhook, a redirect notification, a wallet completion or a poll tick,
// funnel through Machine.Apply so the allowed-edge invariant is enforced
// in exactly one place.
package order

import (
	"time"
)

// Status is the lifecycle state of an Order.
type Status string

const (
	StatusCreated         Status = "created"
	StatusAwaitingPayment Status = "awaiting_payment"
	// StatusPendingManualReview is a sub-state of awaiting_payment the
	// reconciler enters after exhausting its poll budget. Settlement
	// signals arriving later still apply normally.
	StatusPendingManualReview Status = "pending_manual_review"
	StatusPaid                Status = "paid"
	StatusConfirmed           Status = "confirmed"
	StatusFailed              Status = "failed"
	StatusCancelled           Status = "cancelled"
	StatusExpired             Status = "expired"
)

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusConfirmed, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// PaymentMethod selects how the customer pays.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCard           PaymentMethod = "card"
	PaymentWallet         PaymentMethod = "wallet"
)

// Gateway names the provider integration handling an order, or
// GatewayNone for cash orders.
type Gateway string

const (
	GatewayNone            Gateway = "none"
	GatewayHostedWebhook   Gateway = "hosted_webhook"
	GatewayHostedRedirect  Gateway = "hosted_redirect"
	GatewayWalletHandshake Gateway = "wallet_handshake"
)

// Order is the unit of reconciliation. AmountMinor is in minor currency
// units (e.g. piasters); Amount and Currency are immutable once a
// gateway session exists.
type Order struct {
	OrderID          string        `json:"orderId"`
	AmountMinor      int64         `json:"amountMinor"`
	Currency         string        `json:"currency"`
	PaymentMethod    PaymentMethod `json:"paymentMethod"`
	Gateway          Gateway       `json:"gateway"`
	GatewaySessionID string        `json:"gatewaySessionId,omitempty"`
	SessionExpiresAt time.Time     `json:"sessionExpiresAt,omitempty"`
	Status           Status        `json:"status"`
	TransactionID    string        `json:"transactionId,omitempty"`
	FailureReason    string        `json:"failureReason,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	PaidAt           *time.Time    `json:"paidAt,omitempty"`
}
