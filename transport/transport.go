// Package transport isolates the OS primitives behind namedpipe endpoints.
// Unix targets use AF_UNIX stream sockets, Windows uses named pipes, and an
// in-memory driver serves tests. Every driver works on raw handles; the
// endpoint state machine lives one level up.
package transport

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"
)

// Handle is an opaque OS descriptor (a file descriptor on unix, a HANDLE on
// Windows, a counter in the memory driver).
type Handle uintptr

// InvalidHandle marks the absence of a handle. It matches -1 on unix and
// INVALID_HANDLE_VALUE on Windows.
const InvalidHandle = ^Handle(0)

// Valid reports whether h refers to an OS resource.
func (h Handle) Valid() bool { return h != InvalidHandle }

// Side tells a driver which kind of handle it is releasing.
type Side int

const (
	// SideListener is a server's listening handle.
	SideListener Side = iota
	// SideAccepted is a connection produced by Accept.
	SideAccepted
	// SideDialed is a connection produced by Dial.
	SideDialed
)

func (s Side) String() string {
	switch s {
	case SideListener:
		return "listener"
	case SideAccepted:
		return "accepted"
	case SideDialed:
		return "dialed"
	default:
		return "unknown"
	}
}

// Accepted is the outcome of a successful accept. Conn is the connected
// handle handed to the caller; Listener is the handle the server keeps
// listening on. On unix both differ and Listener is the original handle; with
// named pipes the original handle becomes Conn and Listener is a fresh
// instance.
type Accepted struct {
	Conn     Handle
	Listener Handle
}

// Driver is the narrow boundary around the platform primitives.
type Driver interface {
	// Listen creates a listening resource bound to path.
	Listen(path string) (Handle, error)
	// Accept blocks until a peer connects to the listening handle l.
	Accept(l Handle, path string) (Accepted, error)
	// AcceptTimeout is Accept bounded by timeout. It reports false with a
	// nil error when no peer connected in time.
	AcceptTimeout(l Handle, path string, timeout time.Duration) (Accepted, bool, error)
	// Dial connects to the listener at path.
	Dial(ctx context.Context, path string) (Handle, error)
	// Close releases h. Listener handles also give up path.
	Close(h Handle, side Side, path string) error
}

// ErrNotFound is reported when no listener exists at a path.
var ErrNotFound = errors.New("no listener at path")

// ErrBadHandle is reported for handles a driver does not know.
var ErrBadHandle = errors.New("bad handle")

// OpError records the OS step that failed, the way net.OpError does.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	if e.Path == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error { return e.Err }

func opError(op, path string, err error) error {
	return &OpError{Op: op, Path: path, Err: err}
}

// PathFor maps a logical name into the namespace root.
func PathFor(namespace, name string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if strings.HasSuffix(namespace, string(os.PathSeparator)) {
		return namespace + name
	}
	return namespace + string(os.PathSeparator) + name
}

// millis rounds a wait up to whole milliseconds for the readiness waits.
// Zero and negative waits poll once.
func millis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > 1<<31-1 {
		return 1<<31 - 1
	}
	return int(ms)
}
