package rpcerrors

import (
	"errors"
	"fmt"

	"github.com/clusterrpc/clusterrpc/record"
)

// Kind is the closed taxonomy of error kinds from spec §7.
type Kind int

const (
	_ Kind = iota
	KindClusterDisconnected
	KindInvalidCluster
	KindNoNodesAvailable
	KindPoolClosed
	KindConnectTimeout
	KindConnectError
	KindWriteError
	KindWriteTimeout
	KindStaleRequest
	KindQueueFull
	KindDeserializationError
	KindNullArgument
)

func (k Kind) String() string {
	switch k {
	case KindClusterDisconnected:
		return "ClusterDisconnected"
	case KindInvalidCluster:
		return "InvalidCluster"
	case KindNoNodesAvailable:
		return "NoNodesAvailable"
	case KindPoolClosed:
		return "PoolClosed"
	case KindConnectTimeout:
		return "ConnectTimeout"
	case KindConnectError:
		return "ConnectError"
	case KindWriteError:
		return "WriteError"
	case KindWriteTimeout:
		return "WriteTimeout"
	case KindStaleRequest:
		return "StaleRequest"
	case KindQueueFull:
		return "QueueFull"
	case KindDeserializationError:
		return "DeserializationError"
	case KindNullArgument:
		return "NullArgument"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carried across every layer of the
// client. When Request is non-nil, the error exposes the RequestAccess
// capability the retry trampoline needs: the failing record's node and
// retry attempt counter.
type Error struct {
	Kind    Kind
	Cause   error
	Request *record.Request
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error with no attached request (membership/load-balancer
// layer failures - there is no single failing request record yet).
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// WithRequest attaches the failing request record, giving the error the
// RequestAccess capability consumed by the retry trampoline.
func WithRequest(kind Kind, cause error, req *record.Request) *Error {
	return &Error{Kind: kind, Cause: cause, Request: req}
}

// HasRequestAccess reports whether err exposes a failing request record,
// and returns it. Mirrors the source's RequestAccess capability trait as
// a plain type assertion plus a nil check - no marker interface needed
// since Error is the only error type this package produces.
func HasRequestAccess(err error) (*record.Request, bool) {
	var e *Error
	if errors.As(err, &e) && e.Request != nil {
		return e.Request, true
	}
	return nil, false
}

// KindOf extracts the Kind from err, or 0 if err is not one of ours.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
