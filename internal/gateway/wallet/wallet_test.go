package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/221008874/Louable-EGYPT-sub000/internal/errs"
	"github.com/221008874/Louable-EGYPT-sub000/internal/order"
	"github.com/221008874/Louable-EGYPT-sub000/internal/settle"
	"github.com/221008874/Louable-EGYPT-sub000/internal/statuscache"
)

func TestConfigEnvironmentFromCredential(t *testing.T) {
	prod := Config{APIKey: "live_abc", ProductionBaseURL: "https://api.example.com", SandboxBaseURL: "https://sandbox.example.com"}
	assert.False(t, prod.Sandbox())
	assert.Equal(t, "https://api.example.com", prod.baseURL())

	sand := Config{APIKey: "sandbox_abc", ProductionBaseURL: "https://api.example.com", SandboxBaseURL: "https://sandbox.example.com"}
	assert.True(t, sand.Sandbox())
	assert.Equal(t, "https://sandbox.example.com", sand.baseURL())
}

func testFixture(t *testing.T, baseURL string) (*Adapter, *order.MemoryStore, *statuscache.MemoryCache) {
	t.Helper()
	orders := order.NewMemoryStore(order.NewMachine(zap.NewNop()))
	cache := statuscache.NewMemoryCache(time.Hour)
	recorder := settle.NewRecorder(cache, orders, nil, zap.NewNop())
	a := New(Config{
		// The sandbox prefix routes the client at the fake server.
		APIKey:            "sandbox_key-1",
		ProductionBaseURL: "http://unreachable.invalid",
		SandboxBaseURL:    baseURL,
	}, orders, recorder, nil, zap.NewNop())
	return a, orders, cache
}

func seedOrder(t *testing.T, orders *order.MemoryStore, id string) {
	t.Helper()
	require.NoError(t, orders.Create(context.Background(), &order.Order{
		OrderID: id, AmountMinor: 5000, Currency: "EGP",
		PaymentMethod: order.PaymentWallet,
		Gateway:       order.GatewayWalletHandshake,
		Status:        order.StatusCreated,
	}))
}

func walletFake(t *testing.T, orderID string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	payment := func(id string, completed bool, txid string) Payment {
		var p Payment
		p.Identifier = id
		p.Amount = 5000
		p.Metadata.OrderID = orderID
		p.Status.DeveloperApproved = true
		p.Status.DeveloperCompleted = completed
		p.Transaction.TxID = txid
		return p
	}
	mux.HandleFunc("/payments/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Key sandbox_key-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/payments/pay-1/approve":
			json.NewEncoder(w).Encode(payment("pay-1", false, ""))
		case r.URL.Path == "/payments/pay-1/complete":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			json.NewEncoder(w).Encode(payment("pay-1", true, body["txid"]))
		default:
			http.Error(w, fmt.Sprintf(`{"error":"payment %s not found"}`, r.URL.Path), http.StatusNotFound)
		}
	})
	return httptest.NewServer(mux)
}

func TestApproveBindsPaymentToOrder(t *testing.T) {
	server := walletFake(t, "order_3")
	defer server.Close()
	a, orders, _ := testFixture(t, server.URL)
	seedOrder(t, orders, "order_3")

	p, err := a.Approve(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", p.Identifier)
	assert.Equal(t, "order_3", p.Metadata.OrderID)

	o, err := orders.Get(context.Background(), "order_3")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", o.GatewaySessionID)
	assert.Equal(t, order.StatusAwaitingPayment, o.Status)

	// Re-approval of the same payment re-binds the same pair.
	_, err = a.Approve(context.Background(), "pay-1")
	assert.NoError(t, err)
}

func TestApproveRejectsSecondPayment(t *testing.T) {
	server := walletFake(t, "order_3")
	defer server.Close()
	a, orders, _ := testFixture(t, server.URL)
	seedOrder(t, orders, "order_3")

	require.NoError(t, orders.AttachSession(context.Background(), "order_3", "pay-other", time.Now().Add(time.Hour)))

	_, err := a.Approve(context.Background(), "pay-1")
	assert.ErrorIs(t, err, errs.StateConflict(""))
}

func TestApproveUnknownOrder(t *testing.T) {
	server := walletFake(t, "ghost")
	defer server.Close()
	a, _, _ := testFixture(t, server.URL)

	_, err := a.Approve(context.Background(), "pay-1")
	assert.ErrorIs(t, err, errs.NotFound(""))
}

func TestApproveProviderErrorMirrored(t *testing.T) {
	server := walletFake(t, "order_3")
	defer server.Close()
	a, _, _ := testFixture(t, server.URL)

	_, err := a.Approve(context.Background(), "pay-unknown")
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.KindGatewayUnavailable, e.Kind)
	assert.Equal(t, http.StatusNotFound, e.UpstreamStatus)
	assert.Contains(t, e.Detail, "not found")
}

func TestApproveValidation(t *testing.T) {
	a, _, _ := testFixture(t, "http://unused")
	_, err := a.Approve(context.Background(), "")
	assert.ErrorIs(t, err, errs.Validation(""))
}

func TestCompleteSettlesOrder(t *testing.T) {
	server := walletFake(t, "order_3")
	defer server.Close()
	a, orders, cache := testFixture(t, server.URL)
	seedOrder(t, orders, "order_3")

	_, err := a.Approve(context.Background(), "pay-1")
	require.NoError(t, err)

	p, err := a.Complete(context.Background(), "pay-1", "tx-900")
	require.NoError(t, err)
	assert.Equal(t, "tx-900", p.Transaction.TxID)

	o, err := orders.Get(context.Background(), "order_3")
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, o.Status)
	assert.Equal(t, "tx-900", o.TransactionID)
	require.NotNil(t, o.PaidAt)

	entry, ok := cache.Get("pay-1")
	require.True(t, ok)
	assert.True(t, entry.Succeeded)
	assert.Equal(t, int64(5000), entry.AmountMinor, "amount backfilled from the order")
}

func TestCompleteWithoutApprove(t *testing.T) {
	server := walletFake(t, "order_3")
	defer server.Close()
	a, orders, _ := testFixture(t, server.URL)
	seedOrder(t, orders, "order_3")

	// No approve call bound the payment, so the session is unknown.
	_, err := a.Complete(context.Background(), "pay-1", "tx-900")
	assert.ErrorIs(t, err, errs.NotFound(""))
}

func TestCompleteValidation(t *testing.T) {
	a, _, _ := testFixture(t, "http://unused")
	_, err := a.Complete(context.Background(), "pay-1", "")
	assert.ErrorIs(t, err, errs.Validation(""))
	_, err = a.Complete(context.Background(), "", "tx")
	assert.ErrorIs(t, err, errs.Validation(""))
}

func TestCompleteIsIdempotent(t *testing.T) {
	server := walletFake(t, "order_3")
	defer server.Close()
	a, orders, _ := testFixture(t, server.URL)
	seedOrder(t, orders, "order_3")

	_, err := a.Approve(context.Background(), "pay-1")
	require.NoError(t, err)
	_, err = a.Complete(context.Background(), "pay-1", "tx-900")
	require.NoError(t, err)
	first, _ := orders.Get(context.Background(), "order_3")

	_, err = a.Complete(context.Background(), "pay-1", "tx-900")
	require.NoError(t, err)
	second, _ := orders.Get(context.Background(), "order_3")

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, *first.PaidAt, *second.PaidAt)
}
