// Package breaker tracks provider endpoint health so session creation
// and handshake calls fail fast while an upstream is down, instead of
// burning a blocking round-trip per checkout attempt. There is no
// retry; a tripped breaker simply surfaces GatewayUnavailable sooner.
package breaker

import (
	"sync"
	"time"
)

// State of one provider's circuit.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

const (
	defaultFailureThreshold = 5
	defaultOpenFor          = 30 * time.Second
	defaultProbeSuccesses   = 2
)

type endpointState struct {
	state     State
	failures  int
	successes int
	openUntil time.Time
}

// Breaker is an in-memory circuit breaker keyed by provider name.
type Breaker struct {
	mu               sync.Mutex
	endpoints        map[string]*endpointState
	failureThreshold int
	openFor          time.Duration
	probeSuccesses   int
	now              func() time.Time
}

// New creates a Breaker with default thresholds.
func New() *Breaker {
	return &Breaker{
		endpoints:        make(map[string]*endpointState),
		failureThreshold: defaultFailureThreshold,
		openFor:          defaultOpenFor,
		probeSuccesses:   defaultProbeSuccesses,
		now:              time.Now,
	}
}

func (b *Breaker) state(provider string) *endpointState {
	es, ok := b.endpoints[provider]
	if !ok {
		es = &endpointState{state: Closed}
		b.endpoints[provider] = es
	}
	return es
}

// Allow reports whether a call to provider may proceed. An open circuit
// whose timeout elapsed transitions to half-open and lets probes
// through.
func (b *Breaker) Allow(provider string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	es := b.state(provider)
	switch es.state {
	case Open:
		if b.now().After(es.openUntil) {
			es.state = HalfOpen
			es.successes = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess notes a successful provider round-trip.
func (b *Breaker) RecordSuccess(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	es := b.state(provider)
	switch es.state {
	case Closed:
		es.failures = 0
	case HalfOpen:
		es.successes++
		if es.successes >= b.probeSuccesses {
			es.state = Closed
			es.failures = 0
			es.successes = 0
		}
	}
}

// RecordFailure notes a failed provider round-trip, opening the circuit
// once the threshold is reached. A failure during half-open re-opens
// immediately.
func (b *Breaker) RecordFailure(provider string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	es := b.state(provider)
	switch es.state {
	case Closed:
		es.failures++
		if es.failures >= b.failureThreshold {
			es.state = Open
			es.openUntil = b.now().Add(b.openFor)
		}
	case HalfOpen:
		es.state = Open
		es.openUntil = b.now().Add(b.openFor)
		es.failures = 0
		es.successes = 0
	}
}

// CurrentState returns provider's circuit state without transitioning
// it. For tests and metrics.
func (b *Breaker) CurrentState(provider string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	es, ok := b.endpoints[provider]
	if !ok {
		return Closed
	}
	return es.state
}
