package pipetest

import (
	"errors"
	"testing"

	"github.com/LukasParke/namedpipe"
	"github.com/LukasParke/namedpipe/transport"
)

// AssertState asserts the endpoint's lifecycle state, and that its handle is
// valid exactly when it is open.
func AssertState(t testing.TB, ep *namedpipe.Endpoint, want namedpipe.State) {
	t.Helper()
	if got := ep.State(); got != want {
		t.Errorf("state = %v, want %v", got, want)
	}
	valid := ep.Handle() != transport.InvalidHandle
	if valid != (want == namedpipe.StateOpen) {
		t.Errorf("handle valid = %v in state %v", valid, want)
	}
}

// AssertKind asserts that err is a *namedpipe.Error of the given kind.
func AssertKind(t testing.TB, err error, kind namedpipe.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	var e *namedpipe.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *namedpipe.Error, got %T: %v", err, err)
	}
	if e.Kind != kind {
		t.Errorf("error kind = %v, want %v (%v)", e.Kind, kind, err)
	}
}

// AssertIs asserts errors.Is(err, target).
func AssertIs(t testing.TB, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("error %v is not %v", err, target)
	}
}
