// Package gateway defines the types shared by the provider adapters:
// the session-creation contract, the normalized settlement result, and
// the adapter registry the HTTP layer dispatches on.
package gateway

import (
	"context"
	"time"

	"github.com/221008874/Louable-EGYPT-sub000/internal/errs"
	"github.com/221008874/Louable-EGYPT-sub000/internal/order"
)

// BillingData is the customer detail block hosted providers require at
// session creation.
type BillingData struct {
	FirstName   string `json:"firstName" binding:"required"`
	LastName    string `json:"lastName" binding:"required"`
	Email       string `json:"email" binding:"required"`
	PhoneNumber string `json:"phoneNumber" binding:"required"`
	Street      string `json:"street"`
	Building    string `json:"building"`
	Floor       string `json:"floor"`
	Apartment   string `json:"apartment"`
	City        string `json:"city"`
	Country     string `json:"country"`
	PostalCode  string `json:"postalCode"`
}

// LineItem is one cart line forwarded to providers that itemize.
type LineItem struct {
	Name        string `json:"name"`
	AmountMinor int64  `json:"amountMinor"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description,omitempty"`
}

// CreateSessionRequest carries everything an adapter needs to open a
// payment session at its provider.
type CreateSessionRequest struct {
	OrderID     string
	AmountMinor int64
	Currency    string
	Billing     BillingData
	Items       []LineItem
}

// Session is the provider-scoped handle for one payment attempt.
type Session struct {
	SessionID   string    `json:"sessionId"`
	RedirectURL string    `json:"redirectUrl"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

// Result is the normalized settlement outcome an adapter extracts from
// a verified provider callback.
type Result struct {
	SessionID     string
	TransactionID string
	Succeeded     bool
	AmountMinor   int64
	Currency      string
	FailureReason string
}

// Adapter is implemented by every provider integration that can open a
// hosted session. The wallet handshake is client-initiated and has no
// session creation; it is wired separately.
type Adapter interface {
	Name() order.Gateway
	CreateSession(ctx context.Context, req CreateSessionRequest) (Session, error)
}

// Registry dispatches session creation by gateway name.
type Registry struct {
	adapters map[order.Gateway]Adapter
}

// NewRegistry builds a Registry over the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[order.Gateway]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Adapter returns the adapter registered for g.
func (r *Registry) Adapter(g order.Gateway) (Adapter, error) {
	a, ok := r.adapters[g]
	if !ok {
		return nil, errs.Validationf("no session adapter for gateway %q", g)
	}
	return a, nil
}
