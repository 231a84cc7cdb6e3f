package order

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/221008874/Louable-EGYPT-sub000/internal/errs"
)

// Store is the durable home of Order records. Deployments back it with
// the document database; the in-memory implementation below exists for
// single-process use and tests. Apply must be atomic with respect to
// the status read that guards it.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
	// GetBySession resolves the order owning a gateway session id.
	// Events referencing a session no order owns are rejected with
	// NotFound, never attached to a fresh order.
	GetBySession(ctx context.Context, sessionID string) (*Order, error)
	// AttachSession records the provider-assigned session id on an
	// order. It must happen before any callback referencing the session
	// can be accepted.
	AttachSession(ctx context.Context, orderID, sessionID string, expiresAt time.Time) error
	// Apply runs the state machine against the current persisted status
	// under the store's write lock (check-then-set), persists the
	// result, and returns the updated order plus whether it changed.
	Apply(ctx context.Context, orderID string, ev Event, update func(*Order)) (*Order, bool, error)
}

// MemoryStore is a mutex-guarded in-memory Store.
type MemoryStore struct {
	mu        sync.RWMutex
	orders    map[string]*Order
	bySession map[string]string
	machine   *Machine
	now       func() time.Time
}

// NewMemoryStore creates an empty MemoryStore driving transitions
// through the given machine.
func NewMemoryStore(machine *Machine) *MemoryStore {
	if machine == nil {
		machine = NewMachine(zap.NewNop())
	}
	return &MemoryStore{
		orders:    make(map[string]*Order),
		bySession: make(map[string]string),
		machine:   machine,
		now:       time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, o *Order) error {
	if o.OrderID == "" {
		return errs.Validation("order id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[o.OrderID]; exists {
		return errs.StateConflict("order " + o.OrderID + " already exists")
	}
	cp := *o
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	s.orders[o.OrderID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, orderID string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, errs.NotFound("order " + orderID + " not found")
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) GetBySession(_ context.Context, sessionID string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	orderID, ok := s.bySession[sessionID]
	if !ok {
		return nil, errs.NotFound("no order for session " + sessionID)
	}
	cp := *s.orders[orderID]
	return &cp, nil
}

func (s *MemoryStore) AttachSession(_ context.Context, orderID, sessionID string, expiresAt time.Time) error {
	if sessionID == "" {
		return errs.Validation("session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return errs.NotFound("order " + orderID + " not found")
	}
	o.GatewaySessionID = sessionID
	o.SessionExpiresAt = expiresAt
	s.bySession[sessionID] = orderID
	return nil
}

// Apply holds the write lock across the read-transition-write sequence
// so two racing settlement signals serialize; the second application of
// the same edge becomes the machine's idempotent no-op. The optional
// update callback runs only when the transition changed the order,
// before persisting.
func (s *MemoryStore) Apply(_ context.Context, orderID string, ev Event, update func(*Order)) (*Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, false, errs.NotFound("order " + orderID + " not found")
	}
	changed, err := s.machine.Apply(o, ev, s.now())
	if err != nil {
		cp := *o
		return &cp, false, err
	}
	if changed && update != nil {
		update(o)
	}
	cp := *o
	return &cp, changed, nil
}
