package reconciler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/221008874/Louable-EGYPT-sub000/internal/order"
	"github.com/221008874/Louable-EGYPT-sub000/internal/settle"
	"github.com/221008874/Louable-EGYPT-sub000/internal/statuscache"
)

// countingCache counts reads so the attempt budget can be asserted
// exactly.
type countingCache struct {
	inner *statuscache.MemoryCache
	reads atomic.Int64
}

func (c *countingCache) Put(e statuscache.Entry) { c.inner.Put(e) }

func (c *countingCache) Get(sessionID string) (statuscache.Entry, bool) {
	c.reads.Add(1)
	return c.inner.Get(sessionID)
}

func fixture(t *testing.T) (*countingCache, *order.MemoryStore, *settle.Recorder) {
	t.Helper()
	orders := order.NewMemoryStore(order.NewMachine(zap.NewNop()))
	cache := &countingCache{inner: statuscache.NewMemoryCache(time.Hour)}
	ctx := context.Background()

	require.NoError(t, orders.Create(ctx, &order.Order{
		OrderID:     "order_1",
		AmountMinor: 10000,
		Currency:    "EGP",
		Gateway:     order.GatewayHostedWebhook,
		Status:      order.StatusCreated,
	}))
	require.NoError(t, orders.AttachSession(ctx, "order_1", "sess_1", time.Now().Add(time.Hour)))
	_, _, err := orders.Apply(ctx, "order_1", order.EventSessionOpened, nil)
	require.NoError(t, err)

	recorder := settle.NewRecorder(cache, orders, nil, zap.NewNop())
	return cache, orders, recorder
}

func TestRun_ObservesEarlySuccess(t *testing.T) {
	cache, orders, recorder := fixture(t)
	cache.Put(statuscache.Entry{SessionID: "sess_1", Succeeded: true, TransactionID: "tx_1"})

	r := New(cache, orders, recorder, 5*time.Millisecond, 10, zap.NewNop())
	outcome := r.Run(context.Background(), "order_1", "sess_1")

	assert.Equal(t, OutcomeSettled, outcome)
	o, err := orders.Get(context.Background(), "order_1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, o.Status)
	require.NotNil(t, o.PaidAt)
	assert.EqualValues(t, 1, cache.reads.Load(), "first attempt should observe the entry")
}

func TestRun_ExhaustsAfterExactBudget(t *testing.T) {
	cache, orders, recorder := fixture(t)

	r := New(cache, orders, recorder, 2*time.Millisecond, 10, zap.NewNop())
	outcome := r.Run(context.Background(), "order_1", "sess_1")

	assert.Equal(t, OutcomeExhausted, outcome)
	assert.EqualValues(t, 10, cache.reads.Load(), "exactly maxAttempts reads, no more, no fewer")

	o, err := orders.Get(context.Background(), "order_1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPendingManualReview, o.Status)
}

func TestRun_LateSuccessBeforeExhaustion(t *testing.T) {
	cache, orders, recorder := fixture(t)

	r := New(cache, orders, recorder, 5*time.Millisecond, 10, zap.NewNop())
	go func() {
		time.Sleep(12 * time.Millisecond)
		cache.Put(statuscache.Entry{SessionID: "sess_1", Succeeded: true, TransactionID: "tx_late"})
	}()
	outcome := r.Run(context.Background(), "order_1", "sess_1")

	assert.Equal(t, OutcomeSettled, outcome)
	assert.Less(t, cache.reads.Load(), int64(10))
	o, _ := orders.Get(context.Background(), "order_1")
	assert.Equal(t, order.StatusConfirmed, o.Status)
}

func TestRun_StopsWhenOrderSettlesElsewhere(t *testing.T) {
	cache, orders, recorder := fixture(t)

	// The webhook path settles the order while we poll.
	_, _, err := orders.Apply(context.Background(), "order_1", order.EventPaymentSucceeded, nil)
	require.NoError(t, err)

	r := New(cache, orders, recorder, 2*time.Millisecond, 10, zap.NewNop())
	outcome := r.Run(context.Background(), "order_1", "sess_1")

	assert.Equal(t, OutcomeTerminal, outcome)
	assert.EqualValues(t, 0, cache.reads.Load(), "no cache read once the order settled")
}

func TestRun_CancellationStopsPromptly(t *testing.T) {
	cache, orders, recorder := fixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	r := New(cache, orders, recorder, time.Hour, 10, zap.NewNop())

	done := make(chan Outcome, 1)
	go func() { done <- r.Run(ctx, "order_1", "sess_1") }()
	cancel()

	select {
	case outcome := <-done:
		assert.Equal(t, OutcomeCancelled, outcome)
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop on cancellation")
	}
}

func TestRun_ExpiredSessionExpiresOrder(t *testing.T) {
	cache, orders, recorder := fixture(t)
	require.NoError(t, orders.AttachSession(context.Background(), "order_1", "sess_1", time.Now().Add(-time.Minute)))

	r := New(cache, orders, recorder, 2*time.Millisecond, 10, zap.NewNop())
	outcome := r.Run(context.Background(), "order_1", "sess_1")

	assert.Equal(t, OutcomeTerminal, outcome)
	o, _ := orders.Get(context.Background(), "order_1")
	assert.Equal(t, order.StatusExpired, o.Status)
}

func TestNew_Defaults(t *testing.T) {
	r := New(nil, nil, nil, 0, 0, nil)
	assert.Equal(t, DefaultInterval, r.interval)
	assert.Equal(t, DefaultMaxAttempts, r.maxAttempts)
}
