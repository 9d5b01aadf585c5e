package backoff

import (
	"sync"
	"time"

	"github.com/clusterrpc/clusterrpc/cluster"
	"github.com/clusterrpc/clusterrpc/internal/rpclog"
)

var log = rpclog.Get("backoff")

type cbState int

const (
	cbClosed cbState = iota
	cbOpen
	cbHalfOpen
)

// CircuitBreakerSettings configures the per-node circuit breaker.
type CircuitBreakerSettings struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker from Closed to Open.
	FailureThreshold int
	// CooldownPeriod is how long the breaker stays Open before moving to
	// HalfOpen and allowing trial traffic.
	CooldownPeriod time.Duration
	// TrialRequests is the number of consecutive successes required in
	// HalfOpen before the breaker closes again.
	TrialRequests int
}

// DefaultCircuitBreakerSettings returns conservative production defaults.
func DefaultCircuitBreakerSettings() CircuitBreakerSettings {
	return CircuitBreakerSettings{
		FailureThreshold: 5,
		CooldownPeriod:   10 * time.Second,
		TrialRequests:    2,
	}
}

type nodeBreaker struct {
	mu                sync.Mutex
	state             cbState
	failureCount      int
	trialSuccessCount int
	openSince         time.Time
}

// CircuitBreaker is the default Strategy implementation: three-state
// (Closed/Open/HalfOpen) per-node breaker with consecutive-failure
// tripping and a cooldown-then-trial recovery path.
type CircuitBreaker struct {
	settings CircuitBreakerSettings

	mu       sync.Mutex
	breakers map[uint64]*nodeBreaker
}

// NewCircuitBreaker creates a CircuitBreaker with the given settings.
func NewCircuitBreaker(settings CircuitBreakerSettings) *CircuitBreaker {
	return &CircuitBreaker{
		settings: settings,
		breakers: make(map[uint64]*nodeBreaker),
	}
}

func (cb *CircuitBreaker) breakerFor(id uint64) *nodeBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	b, ok := cb.breakers[id]
	if !ok {
		b = &nodeBreaker{}
		cb.breakers[id] = b
	}
	return b
}

func (cb *CircuitBreaker) NotifyFailure(node cluster.Node) {
	b := cb.breakerFor(node.ID)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	switch b.state {
	case cbClosed:
		if b.failureCount >= cb.settings.FailureThreshold {
			b.state = cbOpen
			b.openSince = time.Now()
			log.Warningf("circuit breaker tripped open for %s after %d failures", node, b.failureCount)
		}
	case cbHalfOpen:
		b.state = cbOpen
		b.openSince = time.Now()
		b.trialSuccessCount = 0
		log.Warningf("circuit breaker re-opened for %s during trial", node)
	}
}

func (cb *CircuitBreaker) NotifySuccess(node cluster.Node) {
	b := cb.breakerFor(node.ID)
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case cbClosed:
		b.failureCount = 0
	case cbHalfOpen:
		b.trialSuccessCount++
		if b.trialSuccessCount >= cb.settings.TrialRequests {
			b.state = cbClosed
			b.failureCount = 0
			b.trialSuccessCount = 0
		}
	}
}

func (cb *CircuitBreaker) Available(node cluster.Node) bool {
	b := cb.breakerFor(node.ID)
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == cbOpen && time.Since(b.openSince) >= cb.settings.CooldownPeriod {
		b.state = cbHalfOpen
		b.trialSuccessCount = 0
	}
	return b.state != cbOpen
}
