package record

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/clusterrpc/clusterrpc/cluster"
)

// Message is anything that can be turned into wire bytes. Request keeps
// the message around and defers the call to Encode until the payload is
// actually needed (checkoutChannel/checkinChannel may drop a waiter
// before ever writing it, in which case encoding it would have been
// wasted work).
type Message interface {
	Encode() ([]byte, error)
}

// Completion is invoked exactly once per Request, with either the
// deserialized response bytes or the terminal error for this attempt.
type Completion func(resp []byte, err error)

// Request is the record that flows from the network client through the
// channel pool to the wire and back. Two Requests are never equal by
// value identity across retries: each retry attempt builds a fresh
// Request with the same payload, a new CorrelationID and RetryAttempt+1.
type Request struct {
	message Message

	// Node is the destination selected by the load balancer for this
	// attempt. Immutable for the lifetime of the Request.
	Node cluster.Node

	// CorrelationID uniquely identifies this attempt among all in-flight
	// requests in the process. It is never reused, including across
	// retries of "the same" logical request.
	CorrelationID uuid.UUID

	// CreatedAt is the wall-clock time this Request was constructed.
	CreatedAt time.Time

	// RetryAttempt is 0 on first issuance, incremented on every retry.
	RetryAttempt int

	// ExpectResponse is false for fire-and-forget (sendMessage) records.
	// Such records have no Completion and are never registered for
	// response correlation.
	ExpectResponse bool

	onComplete Completion
	fired      atomic.Bool

	payload    []byte
	payloadErr error
	encoded    atomic.Bool
}

// New builds a Request expecting a response, wrapping onComplete so it
// fires at most once regardless of how many code paths attempt to
// complete it (write failure, response arrival, stale sweep, shutdown).
func New(msg Message, node cluster.Node, onComplete Completion) *Request {
	return &Request{
		message:        msg,
		Node:           node,
		CorrelationID:  uuid.New(),
		CreatedAt:      time.Now(),
		ExpectResponse: onComplete != nil,
		onComplete:     onComplete,
	}
}

// NewFireAndForget builds a write-only Request with no completion and no
// response expectation - the first-class "sendMessage" subtype.
func NewFireAndForget(msg Message, node cluster.Node) *Request {
	return New(msg, node, nil)
}

// Retry builds the next attempt: same payload and node-selection inputs,
// a fresh correlation id, RetryAttempt+1, and a callback that itself
// feeds back into the trampoline (the caller supplies the wrapped
// callback; this constructor only bumps the bookkeeping fields).
func (r *Request) Retry(node cluster.Node, onComplete Completion) *Request {
	return &Request{
		message:        r.message,
		Node:           node,
		CorrelationID:  uuid.New(),
		CreatedAt:      time.Now(),
		RetryAttempt:   r.RetryAttempt + 1,
		ExpectResponse: r.ExpectResponse,
		onComplete:     onComplete,
		// payload is intentionally not copied: a retry to a different
		// node re-encodes lazily, same as a first attempt. If encoding
		// is expensive and idempotent callers may cache on Message
		// itself.
	}
}

// Payload materializes the wire bytes for this Request's message and
// caches them, so calls after the first encoded result reuse it. Callers
// that race on the very first call (checkinChannel's drain loop and a
// racing stale-sweep could both touch the same waiter) may each encode.
func (r *Request) Payload() ([]byte, error) {
	if r.encoded.Load() {
		return r.payload, r.payloadErr
	}
	// Benign race: worst case two callers both encode; the result is
	// identical and idempotent, so no mutex is needed here.
	b, err := r.message.Encode()
	r.payload, r.payloadErr = b, err
	r.encoded.Store(true)
	return r.payload, r.payloadErr
}

// Complete invokes the completion continuation exactly once. Subsequent
// calls are no-ops. Requests with ExpectResponse == false silently
// discard the outcome (there is nothing to tell).
func (r *Request) Complete(resp []byte, err error) {
	if r.onComplete == nil {
		return
	}
	if !r.fired.CompareAndSwap(false, true) {
		return
	}
	r.onComplete(resp, err)
}
