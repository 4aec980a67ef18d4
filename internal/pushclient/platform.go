package pushclient

import (
	"context"
	"errors"
	"fmt"
)

// State is the position of the subscription lifecycle state machine.
type State int

const (
	StateUnregistered State = iota
	StateWorkerInstalling
	StateWorkerActive
	StateSubscribed
	StateRegistered
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateWorkerInstalling:
		return "worker installing"
	case StateWorkerActive:
		return "worker active"
	case StateSubscribed:
		return "subscribed"
	case StateRegistered:
		return "registered"
	}
	return "unknown"
}

// ErrorKind classifies platform failures into user-facing categories. None
// of these should be silently retried without user action.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindPermissionDenied
	KindUnsupported
	KindInvalidState
	KindAborted
	KindTimeout
)

// Message returns the human-readable message for the kind.
func (k ErrorKind) Message() string {
	switch k {
	case KindPermissionDenied:
		return "Notification permission was denied. Enable notifications in your browser settings and try again."
	case KindUnsupported:
		return "Push notifications are not supported on this device."
	case KindInvalidState:
		return "The notification worker is in an invalid state. Reload the page and try again."
	case KindAborted:
		return "The subscription request was aborted before it completed."
	case KindTimeout:
		return "Timed out waiting for the push service. Check your connection and try again."
	}
	return "Could not enable notifications."
}

// PlatformError carries the classification of a failed platform operation.
type PlatformError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *PlatformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Op, e.Kind.Message(), e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind.Message())
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// Classify maps an error from a platform call to its ErrorKind. Deadline
// expiry maps to the timeout kind so a stuck worker installation surfaces
// as a bounded timeout rather than an opaque context error.
func Classify(err error) ErrorKind {
	var perr *PlatformError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// Subscription is the material produced by a platform subscribe call and
// exchanged with the server during registration.
type Subscription struct {
	Endpoint string
	P256DH   string
	Auth     string
}

// Worker represents an installed background worker registration.
type Worker interface {
	// WaitActive blocks until the worker is active or the context expires.
	WaitActive(ctx context.Context) error
	// Subscription returns the worker's current push subscription, or nil
	// when none exists.
	Subscription(ctx context.Context) (*Subscription, error)
	// Subscribe negotiates a new subscription with the platform push
	// service using the server's public key.
	Subscribe(ctx context.Context, applicationServerKey []byte) (*Subscription, error)
	// Unsubscribe tears down the given subscription.
	Unsubscribe(ctx context.Context, sub *Subscription) error
}

// Platform abstracts the push machinery of the hosting environment.
// Implementations report failures as *PlatformError where a kind is known.
type Platform interface {
	RegisterWorker(ctx context.Context) (Worker, error)
}
