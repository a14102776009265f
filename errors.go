package namedpipe

import (
	"errors"
	"fmt"
)

// Kind classifies endpoint errors.
type Kind int

const (
	// KindRole means the operation does not apply to the endpoint's role.
	KindRole Kind = iota + 1
	// KindState means the endpoint is in the wrong lifecycle state.
	KindState
	// KindConnection means an OS primitive failed.
	KindConnection
	// KindName means the logical name cannot be mapped into the namespace.
	KindName
)

func (k Kind) String() string {
	switch k {
	case KindRole:
		return "role"
	case KindState:
		return "state"
	case KindConnection:
		return "connection"
	case KindName:
		return "name"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinel causes carried by *Error.
var (
	ErrInvalidRole = errors.New("invalid role for operation")
	ErrAlreadyOpen = errors.New("already open")
	ErrNotOpen     = errors.New("not open")
	ErrClosed      = errors.New("endpoint closed")
	ErrInvalidName = errors.New("invalid name")
)

// Error is returned by every Endpoint operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return "namedpipe: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func roleError(op string) error {
	return &Error{Kind: KindRole, Op: op, Err: ErrInvalidRole}
}

func stateError(op string, cause error) error {
	return &Error{Kind: KindState, Op: op, Err: cause}
}

func connError(op string, cause error) error {
	return &Error{Kind: KindConnection, Op: op, Err: cause}
}
