// Package apperrors defines the closed set of failure kinds surfaced by the
// processing and forwarding services.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// InvalidConfig: bad user configuration, nothing was changed.
	InvalidConfig Kind = iota + 1
	// DeliveryFailed: a forwarding channel failed (network error or non-2xx).
	DeliveryFailed
	// StorageFailed: the configuration/record store could not be read or written.
	StorageFailed
)

func (k Kind) String() string {
	switch k {
	case InvalidConfig:
		return "invalid_config"
	case DeliveryFailed:
		return "delivery_failed"
	case StorageFailed:
		return "storage_failed"
	default:
		return "unknown"
	}
}

// Error carries a Kind, the failing operation and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Invalid(op, format string, args ...any) error {
	return &Error{Kind: InvalidConfig, Op: op, Err: fmt.Errorf(format, args...)}
}

func Delivery(op string, err error) error {
	return &Error{Kind: DeliveryFailed, Op: op, Err: err}
}

func Storage(op string, err error) error {
	return &Error{Kind: StorageFailed, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
