package pipetest_test

import (
	"testing"

	"github.com/LukasParke/namedpipe"
	"github.com/LukasParke/namedpipe/pipetest"
	"github.com/LukasParke/namedpipe/transport"
)

func TestNewMemoryPair(t *testing.T) {
	p := pipetest.NewMemoryPair(t)
	pipetest.AssertState(t, p.Server, namedpipe.StateOpen)
	pipetest.AssertState(t, p.Client, namedpipe.StateOpen)
	pipetest.AssertState(t, p.Conn, namedpipe.StateOpen)
	if p.Conn.Origin() != namedpipe.OriginAccepted {
		t.Errorf("conn origin = %v", p.Conn.Origin())
	}
	if n := p.Driver.OpenHandles(); n != 3 {
		t.Errorf("open handles = %d, want 3", n)
	}
}

func TestNewMemoryPairInPlace(t *testing.T) {
	p := pipetest.NewMemoryPair(t, transport.InPlace())
	if p.Conn.Handle() == p.Server.Handle() {
		t.Error("server and connection share a handle")
	}
}

func TestUniqueName(t *testing.T) {
	a, b := pipetest.UniqueName(t), pipetest.UniqueName(t)
	if a == b {
		t.Errorf("names collide: %s", a)
	}
	if _, err := namedpipe.NewServer(a); err != nil {
		t.Errorf("UniqueName produced an invalid name %q: %v", a, err)
	}
}
