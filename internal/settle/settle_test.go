package settle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/221008874/Louable-EGYPT-sub000/internal/errs"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway"
	"github.com/221008874/Louable-EGYPT-sub000/internal/order"
	"github.com/221008874/Louable-EGYPT-sub000/internal/policy"
	"github.com/221008874/Louable-EGYPT-sub000/internal/statuscache"
)

func fixture(t *testing.T, reviewer *policy.Reviewer) (*Recorder, order.Store, *statuscache.MemoryCache) {
	t.Helper()
	orders := order.NewMemoryStore(order.NewMachine(zap.NewNop()))
	cache := statuscache.NewMemoryCache(time.Hour)
	ctx := context.Background()

	require.NoError(t, orders.Create(ctx, &order.Order{
		OrderID:       "order_1",
		AmountMinor:   10000,
		Currency:      "EGP",
		PaymentMethod: order.PaymentCard,
		Gateway:       order.GatewayHostedWebhook,
		Status:        order.StatusCreated,
	}))
	require.NoError(t, orders.AttachSession(ctx, "order_1", "sess_1", time.Now().Add(time.Hour)))
	_, _, err := orders.Apply(ctx, "order_1", order.EventSessionOpened, nil)
	require.NoError(t, err)

	return NewRecorder(cache, orders, reviewer, zap.NewNop()), orders, cache
}

func TestRecorder_SuccessAutoConfirms(t *testing.T) {
	r, orders, cache := fixture(t, nil)
	ctx := context.Background()

	o, err := r.Record(ctx, gateway.Result{SessionID: "sess_1", TransactionID: "tx_9", Succeeded: true})
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, o.Status)
	require.NotNil(t, o.PaidAt)

	stored, err := orders.Get(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, stored.Status)
	assert.Equal(t, "tx_9", stored.TransactionID)

	entry, ok := cache.Get("sess_1")
	require.True(t, ok)
	assert.True(t, entry.Succeeded)
	assert.Equal(t, int64(10000), entry.AmountMinor, "amount backfilled from the order")
	assert.Equal(t, "EGP", entry.Currency)
}

func TestRecorder_ReviewRuleHoldsInPaid(t *testing.T) {
	reviewer, err := policy.NewReviewer([]policy.RuleConfig{
		{Name: "HoldAll", Expression: "amount_minor > 0"},
	})
	require.NoError(t, err)
	r, orders, _ := fixture(t, reviewer)

	o, err := r.Record(context.Background(), gateway.Result{SessionID: "sess_1", Succeeded: true})
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, o.Status)

	stored, err := orders.Get(context.Background(), "order_1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, stored.Status)
}

func TestRecorder_FailureMarksFailed(t *testing.T) {
	r, orders, cache := fixture(t, nil)

	o, err := r.Record(context.Background(), gateway.Result{
		SessionID: "sess_1", Succeeded: false, FailureReason: "declined",
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatusFailed, o.Status)
	assert.Nil(t, o.PaidAt)

	stored, _ := orders.Get(context.Background(), "order_1")
	assert.Equal(t, "declined", stored.FailureReason)

	entry, ok := cache.Get("sess_1")
	require.True(t, ok)
	assert.False(t, entry.Succeeded)
}

func TestRecorder_UnknownSessionRejected(t *testing.T) {
	r, _, cache := fixture(t, nil)

	_, err := r.Record(context.Background(), gateway.Result{SessionID: "ghost", Succeeded: true})
	assert.ErrorIs(t, err, errs.NotFound(""))
	_, ok := cache.Get("ghost")
	assert.False(t, ok, "nothing cached for rejected events")
}

func TestRecorder_DuplicateDeliveryIsIdempotent(t *testing.T) {
	r, orders, _ := fixture(t, nil)
	ctx := context.Background()

	first, err := r.Record(ctx, gateway.Result{SessionID: "sess_1", TransactionID: "tx_1", Succeeded: true})
	require.NoError(t, err)
	require.NotNil(t, first.PaidAt)

	// Redelivery after the order confirmed: acknowledged, unchanged.
	second, err := r.Record(ctx, gateway.Result{SessionID: "sess_1", TransactionID: "tx_1", Succeeded: true})
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, second.Status)
	assert.Equal(t, *first.PaidAt, *second.PaidAt)

	stored, _ := orders.Get(ctx, "order_1")
	assert.Equal(t, "tx_1", stored.TransactionID)
}

func TestRecorder_LateFailureAfterSettlementIsAcknowledged(t *testing.T) {
	r, orders, _ := fixture(t, nil)
	ctx := context.Background()

	_, err := r.Record(ctx, gateway.Result{SessionID: "sess_1", Succeeded: true})
	require.NoError(t, err)

	// An out-of-order failure signal must not regress the order.
	o, err := r.Record(ctx, gateway.Result{SessionID: "sess_1", Succeeded: false})
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, o.Status)

	stored, _ := orders.Get(ctx, "order_1")
	assert.Equal(t, order.StatusConfirmed, stored.Status)
}
