package namedpipe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LukasParke/namedpipe/transport"
)

// Role selects which side of the rendezvous an endpoint plays.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Origin distinguishes endpoints the caller opened from those produced by Accept.
type Origin int

const (
	OriginOwned Origin = iota
	OriginAccepted
)

func (o Origin) String() string {
	switch o {
	case OriginOwned:
		return "owned"
	case OriginAccepted:
		return "accepted"
	default:
		return fmt.Sprintf("Origin(%d)", int(o))
	}
}

// State is an endpoint's lifecycle position. Endpoints only move forward:
// Unopened, Open, Closed.
type State int

const (
	StateUnopened State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Endpoint is one end of a local IPC channel: a unix domain stream socket or
// a Windows named pipe. A server Endpoint listens and produces connected
// Endpoints through Accept; a client Endpoint connects to a listening server.
//
// An Endpoint is not safe for concurrent use.
type Endpoint struct {
	id     string
	role   Role
	origin Origin
	state  State
	path   string

	namespace string
	driver    transport.Driver
	logger    *slog.Logger

	res     *resource
	cleanup runtime.Cleanup
}

// resource owns the OS handle. It is allocated apart from the Endpoint so
// that a cleanup attached to the Endpoint can release it.
type resource struct {
	driver transport.Driver
	handle transport.Handle
	side   transport.Side
	path   string
}

func (r *resource) release() error {
	if !r.handle.Valid() {
		return nil
	}
	h := r.handle
	r.handle = transport.InvalidHandle
	return r.driver.Close(h, r.side, r.path)
}

// New creates an unopened endpoint for the logical name. No OS resource is
// acquired until Listen or Connect.
func New(name string, role Role, opts ...Option) (*Endpoint, error) {
	if err := validateName(name); err != nil {
		return nil, &Error{Kind: KindName, Op: "new", Err: err}
	}
	if role != RoleServer && role != RoleClient {
		return nil, roleError("new")
	}

	e := &Endpoint{
		id:     uuid.NewString(),
		role:   role,
		origin: OriginOwned,
		state:  StateUnopened,
		driver: transport.Default(),
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}
	for _, o := range opts {
		o(e)
	}
	e.path = transport.PathFor(e.namespace, name)

	side := transport.SideDialed
	if role == RoleServer {
		side = transport.SideListener
	}
	e.res = &resource{
		driver: e.driver,
		handle: transport.InvalidHandle,
		side:   side,
		path:   e.path,
	}
	return e, nil
}

// NewServer is New(name, RoleServer, opts...).
func NewServer(name string, opts ...Option) (*Endpoint, error) {
	return New(name, RoleServer, opts...)
}

// NewClient is New(name, RoleClient, opts...).
func NewClient(name string, opts ...Option) (*Endpoint, error) {
	return New(name, RoleClient, opts...)
}

func newAccepted(h transport.Handle, srv *Endpoint) *Endpoint {
	e := &Endpoint{
		id:     uuid.NewString(),
		role:   RoleClient,
		origin: OriginAccepted,
		driver: srv.driver,
		logger: srv.logger,
		res: &resource{
			driver: srv.driver,
			handle: transport.InvalidHandle,
			side:   transport.SideAccepted,
		},
	}
	e.open(h)
	return e
}

func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a separator", ErrInvalidName, name)
	}
	return nil
}

// open records h and arms the cleanup that releases it if the Endpoint is
// dropped while open.
func (e *Endpoint) open(h transport.Handle) {
	e.res.handle = h
	e.state = StateOpen
	e.cleanup = runtime.AddCleanup(e, func(r *resource) { _ = r.release() }, e.res)
}

func (e *Endpoint) require(op string, want State) error {
	if e.state == want {
		return nil
	}
	switch e.state {
	case StateClosed:
		return stateError(op, ErrClosed)
	case StateOpen:
		return stateError(op, ErrAlreadyOpen)
	default:
		return stateError(op, ErrNotOpen)
	}
}

// Listen binds a server endpoint to its path and starts listening.
// On failure the endpoint stays unopened and Listen may be retried.
func (e *Endpoint) Listen() error {
	const op = "listen"
	if e.role != RoleServer {
		return roleError(op)
	}
	if err := e.require(op, StateUnopened); err != nil {
		return err
	}
	h, err := e.driver.Listen(e.path)
	if err != nil {
		return connError(op, err)
	}
	e.open(h)
	e.logger.Debug("endpoint listening", "id", e.id, "path", e.path)
	return nil
}

func (e *Endpoint) checkAccept(op string) error {
	if e.role != RoleServer {
		return roleError(op)
	}
	return e.require(op, StateOpen)
}

// Accept blocks until a client connects and returns the connected endpoint.
// The caller owns the returned endpoint and must Close it.
func (e *Endpoint) Accept() (*Endpoint, error) {
	const op = "accept"
	if err := e.checkAccept(op); err != nil {
		return nil, err
	}
	a, err := e.driver.Accept(e.res.handle, e.path)
	if err != nil {
		return nil, connError(op, err)
	}
	return e.accepted(a), nil
}

// AcceptTimeout is Accept bounded by timeout. When no client connects in
// time it returns a nil endpoint, false, and a nil error. A zero or negative
// timeout checks for a pending client without waiting.
func (e *Endpoint) AcceptTimeout(timeout time.Duration) (*Endpoint, bool, error) {
	const op = "accept"
	if err := e.checkAccept(op); err != nil {
		return nil, false, err
	}
	a, ok, err := e.driver.AcceptTimeout(e.res.handle, e.path, timeout)
	if err != nil {
		return nil, false, connError(op, err)
	}
	if !ok {
		return nil, false, nil
	}
	return e.accepted(a), true, nil
}

func (e *Endpoint) accepted(a transport.Accepted) *Endpoint {
	e.res.handle = a.Listener
	conn := newAccepted(a.Conn, e)
	e.logger.Debug("endpoint accepted", "id", e.id, "path", e.path, "conn", conn.id)
	return conn
}

// Connect connects a client endpoint to its server. On Windows it waits for
// a busy pipe to become available until ctx is done; on unix a missing or
// refusing listener fails immediately. On failure the endpoint stays
// unopened.
func (e *Endpoint) Connect(ctx context.Context) error {
	const op = "connect"
	if e.role != RoleClient {
		return roleError(op)
	}
	if err := e.require(op, StateUnopened); err != nil {
		return err
	}
	h, err := e.driver.Dial(ctx, e.path)
	if err != nil {
		return connError(op, err)
	}
	e.open(h)
	e.logger.Debug("endpoint connected", "id", e.id, "path", e.path)
	return nil
}

// Close releases the endpoint's handle. A server also gives up its path.
// Closing a closed endpoint is a no-op; closing an unopened one is an error.
func (e *Endpoint) Close() error {
	const op = "close"
	switch e.state {
	case StateClosed:
		return nil
	case StateUnopened:
		return stateError(op, ErrNotOpen)
	}

	e.cleanup.Stop()
	err := e.res.release()
	e.state = StateClosed
	e.logger.Debug("endpoint closed", "id", e.id, "role", e.role, "origin", e.origin)
	if err != nil {
		return connError(op, err)
	}
	return nil
}

// ID returns the endpoint's random identifier.
func (e *Endpoint) ID() string { return e.id }

func (e *Endpoint) Role() Role { return e.role }

func (e *Endpoint) Origin() Origin { return e.origin }

func (e *Endpoint) State() State { return e.state }

// Path returns the namespace path. Accepted endpoints have none.
func (e *Endpoint) Path() string { return e.path }

// Handle returns the OS handle, or transport.InvalidHandle unless open.
// Reading and writing through it is up to the caller.
//
// An Endpoint that becomes unreachable while open releases its handle, as
// with os.File.Fd. Keep the Endpoint reachable while the handle is in use,
// or call runtime.KeepAlive(e) after the last use.
func (e *Endpoint) Handle() transport.Handle { return e.res.handle }

func (e *Endpoint) String() string {
	if e.path == "" {
		return fmt.Sprintf("%s %s endpoint %s (%s)", e.origin, e.role, e.id, e.state)
	}
	return fmt.Sprintf("%s endpoint %s (%s)", e.role, e.path, e.state)
}
