package transport

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrListenerClosed is returned to a pending Accept whose listener was closed.
var ErrListenerClosed = errors.New("listener closed")

// ErrAddrInUse is reported when a path already has a live listener.
var ErrAddrInUse = errors.New("address already in use")

// ErrBacklogFull is reported when a listener has too many pending peers.
var ErrBacklogFull = errors.New("backlog full")

const memoryBacklog = 16

// Memory is an in-process Driver for tests. Paths live in a private
// namespace, handles are counters, and nothing touches the OS.
type Memory struct {
	inPlace bool

	mu        sync.Mutex
	next      Handle
	listeners map[string]*memListener
	handles   map[Handle]Side
}

type memListener struct {
	handle  Handle
	pending chan Handle
	done    chan struct{}
}

// MemoryOption configures a Memory driver.
type MemoryOption func(*Memory)

// InPlace makes Accept behave like a pipe instance: the listening handle
// becomes the connection and a fresh listening handle replaces it.
func InPlace() MemoryOption {
	return func(m *Memory) { m.inPlace = true }
}

// NewMemory creates an empty in-memory namespace.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		next:      1,
		listeners: make(map[string]*memListener),
		handles:   make(map[Handle]Side),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// OpenHandles returns the number of handles not yet closed.
func (m *Memory) OpenHandles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

// Listening reports whether path has a live listener.
func (m *Memory) Listening(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.listeners[path]
	return ok
}

func (m *Memory) alloc(side Side) Handle {
	h := m.next
	m.next++
	m.handles[h] = side
	return h
}

func (m *Memory) Listen(path string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listeners[path]; ok {
		return InvalidHandle, opError("bind", path, ErrAddrInUse)
	}
	h := m.alloc(SideListener)
	m.listeners[path] = &memListener{
		handle:  h,
		pending: make(chan Handle, memoryBacklog),
		done:    make(chan struct{}),
	}
	return h, nil
}

func (m *Memory) listener(l Handle, path string) (*memListener, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ln, ok := m.listeners[path]
	if !ok || ln.handle != l {
		return nil, opError("accept", path, ErrBadHandle)
	}
	return ln, nil
}

func (m *Memory) Accept(l Handle, path string) (Accepted, error) {
	ln, err := m.listener(l, path)
	if err != nil {
		return Accepted{}, err
	}
	select {
	case peer := <-ln.pending:
		return m.accepted(ln, peer), nil
	case <-ln.done:
		return Accepted{}, opError("accept", path, ErrListenerClosed)
	}
}

func (m *Memory) AcceptTimeout(l Handle, path string, timeout time.Duration) (Accepted, bool, error) {
	ln, err := m.listener(l, path)
	if err != nil {
		return Accepted{}, false, err
	}

	select {
	case peer := <-ln.pending:
		return m.accepted(ln, peer), true, nil
	default:
	}
	if timeout <= 0 {
		return Accepted{}, false, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case peer := <-ln.pending:
		return m.accepted(ln, peer), true, nil
	case <-ln.done:
		return Accepted{}, false, opError("accept", path, ErrListenerClosed)
	case <-timer.C:
		return Accepted{}, false, nil
	}
}

// accepted turns the server half of a dialed pair into a connection handle.
func (m *Memory) accepted(ln *memListener, peer Handle) Accepted {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.inPlace {
		return Accepted{Conn: peer, Listener: ln.handle}
	}
	// The peer half is folded into the old listening handle.
	delete(m.handles, peer)
	conn := ln.handle
	m.handles[conn] = SideAccepted
	ln.handle = m.alloc(SideListener)
	return Accepted{Conn: conn, Listener: ln.handle}
}

func (m *Memory) Dial(ctx context.Context, path string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return InvalidHandle, opError("connect", path, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ln, ok := m.listeners[path]
	if !ok {
		return InvalidHandle, opError("connect", path, ErrNotFound)
	}
	peer := m.alloc(SideAccepted)
	select {
	case ln.pending <- peer:
	default:
		delete(m.handles, peer)
		return InvalidHandle, opError("connect", path, ErrBacklogFull)
	}
	return m.alloc(SideDialed), nil
}

func (m *Memory) Close(h Handle, side Side, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.handles[h]; !ok {
		return opError("close", path, ErrBadHandle)
	}
	delete(m.handles, h)
	if side != SideListener {
		return nil
	}
	if ln, ok := m.listeners[path]; ok && ln.handle == h {
		delete(m.listeners, path)
		close(ln.done)
		// Peers that were never accepted are released with the listener.
		for {
			select {
			case peer := <-ln.pending:
				delete(m.handles, peer)
			default:
				return nil
			}
		}
	}
	return nil
}
