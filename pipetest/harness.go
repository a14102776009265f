// Package pipetest provides testing utilities for namedpipe endpoints: unique
// rendezvous names, server/client pairs over the in-memory driver, and
// assertions on endpoint state and error kinds.
package pipetest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/LukasParke/namedpipe"
	"github.com/LukasParke/namedpipe/transport"
)

// Pair is a listening server, a connected client, and the server's side of
// the connection.
type Pair struct {
	Driver *transport.Memory
	Server *namedpipe.Endpoint
	Client *namedpipe.Endpoint
	Conn   *namedpipe.Endpoint
}

// Quiet returns a logger that discards everything.
func Quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Listen creates a server endpoint for name, listens, and closes it when the
// test ends.
func Listen(t testing.TB, name string, opts ...namedpipe.Option) *namedpipe.Endpoint {
	t.Helper()
	opts = append([]namedpipe.Option{namedpipe.WithLogger(Quiet())}, opts...)
	srv, err := namedpipe.NewServer(name, opts...)
	if err != nil {
		t.Fatalf("NewServer(%q): %v", name, err)
	}
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen(%q): %v", name, err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

// Connect creates a client endpoint for name, connects, and closes it when
// the test ends.
func Connect(t testing.TB, name string, opts ...namedpipe.Option) *namedpipe.Endpoint {
	t.Helper()
	opts = append([]namedpipe.Option{namedpipe.WithLogger(Quiet())}, opts...)
	c, err := namedpipe.NewClient(name, opts...)
	if err != nil {
		t.Fatalf("NewClient(%q): %v", name, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect(%q): %v", name, err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// NewMemoryPair wires a server and client over a fresh memory driver and
// accepts the connection. Everything is closed when the test ends.
func NewMemoryPair(t testing.TB, memOpts ...transport.MemoryOption) *Pair {
	t.Helper()
	drv := transport.NewMemory(memOpts...)
	name := UniqueName(t)

	srv := Listen(t, name, namedpipe.WithDriver(drv))
	client := Connect(t, name, namedpipe.WithDriver(drv))

	conn, ok, err := srv.AcceptTimeout(time.Second)
	if err != nil {
		t.Fatalf("AcceptTimeout: %v", err)
	}
	if !ok {
		t.Fatal("AcceptTimeout: no connection")
	}
	t.Cleanup(func() { conn.Close() })

	return &Pair{Driver: drv, Server: srv, Client: client, Conn: conn}
}
