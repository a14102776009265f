package namedpipe_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/LukasParke/namedpipe"
	"github.com/LukasParke/namedpipe/pipetest"
	"github.com/LukasParke/namedpipe/transport"
)

func memServer(t *testing.T, drv transport.Driver, name string) *namedpipe.Endpoint {
	t.Helper()
	srv, err := namedpipe.NewServer(name, namedpipe.WithDriver(drv), namedpipe.WithLogger(pipetest.Quiet()))
	if err != nil {
		t.Fatal(err)
	}
	return srv
}

func memClient(t *testing.T, drv transport.Driver, name string) *namedpipe.Endpoint {
	t.Helper()
	c, err := namedpipe.NewClient(name, namedpipe.WithDriver(drv), namedpipe.WithLogger(pipetest.Quiet()))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewRejectsInvalidNames(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "../etc", "a\x00b"} {
		_, err := namedpipe.NewServer(name)
		pipetest.AssertKind(t, err, namedpipe.KindName)
		pipetest.AssertIs(t, err, namedpipe.ErrInvalidName)
	}
}

func TestNewBuildsPath(t *testing.T) {
	sep := string(os.PathSeparator)

	ep, err := namedpipe.NewClient("hello", namedpipe.WithNamespace("ns"+sep))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := ep.Path(), "ns"+sep+"hello"; got != want {
		t.Errorf("path = %q, want %q", got, want)
	}

	ep, err = namedpipe.NewClient("hello", namedpipe.WithNamespace("ns"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := ep.Path(), "ns"+sep+"hello"; got != want {
		t.Errorf("path = %q, want %q", got, want)
	}

	ep, err = namedpipe.NewServer("hello")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := ep.Path(), transport.DefaultNamespace+"hello"; got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
	if ep.Role() != namedpipe.RoleServer || ep.Origin() != namedpipe.OriginOwned {
		t.Errorf("got %v/%v, want server/owned", ep.Role(), ep.Origin())
	}
	pipetest.AssertState(t, ep, namedpipe.StateUnopened)
	if ep.ID() == "" {
		t.Error("empty ID")
	}
}

func TestNewRejectsUnknownRole(t *testing.T) {
	_, err := namedpipe.New("hello", namedpipe.Role(7))
	pipetest.AssertKind(t, err, namedpipe.KindRole)
}

func TestRoleErrors(t *testing.T) {
	drv := transport.NewMemory()
	name := pipetest.UniqueName(t)
	srv := memServer(t, drv, name)
	client := memClient(t, drv, name)

	pipetest.AssertKind(t, client.Listen(), namedpipe.KindRole)
	pipetest.AssertKind(t, srv.Connect(context.Background()), namedpipe.KindRole)

	_, err := client.Accept()
	pipetest.AssertKind(t, err, namedpipe.KindRole)
	_, _, err = client.AcceptTimeout(0)
	pipetest.AssertKind(t, err, namedpipe.KindRole)

	pipetest.AssertState(t, srv, namedpipe.StateUnopened)
	pipetest.AssertState(t, client, namedpipe.StateUnopened)
}

func TestListenTwiceFails(t *testing.T) {
	drv := transport.NewMemory()
	srv := memServer(t, drv, pipetest.UniqueName(t))
	if err := srv.Listen(); err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	h := srv.Handle()
	err := srv.Listen()
	pipetest.AssertKind(t, err, namedpipe.KindState)
	pipetest.AssertIs(t, err, namedpipe.ErrAlreadyOpen)
	if srv.Handle() != h {
		t.Error("failed Listen replaced the handle")
	}
	if n := drv.OpenHandles(); n != 1 {
		t.Errorf("open handles = %d, want 1", n)
	}
}

func TestAcceptBeforeListen(t *testing.T) {
	srv := memServer(t, transport.NewMemory(), pipetest.UniqueName(t))
	_, err := srv.Accept()
	pipetest.AssertKind(t, err, namedpipe.KindState)
	pipetest.AssertIs(t, err, namedpipe.ErrNotOpen)

	_, _, err = srv.AcceptTimeout(time.Millisecond)
	pipetest.AssertIs(t, err, namedpipe.ErrNotOpen)
}

func TestListenConnectAccept(t *testing.T) {
	drv := transport.NewMemory()
	name := pipetest.UniqueName(t)
	srv := memServer(t, drv, name)
	client := memClient(t, drv, name)

	if err := srv.Listen(); err != nil {
		t.Fatal(err)
	}
	if err := client.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	pipetest.AssertState(t, srv, namedpipe.StateOpen)
	pipetest.AssertState(t, client, namedpipe.StateOpen)

	conn, err := srv.Accept()
	if err != nil {
		t.Fatal(err)
	}
	pipetest.AssertState(t, conn, namedpipe.StateOpen)
	if conn.Origin() != namedpipe.OriginAccepted || conn.Role() != namedpipe.RoleClient {
		t.Errorf("accepted endpoint is %v/%v", conn.Origin(), conn.Role())
	}
	if conn.Path() != "" {
		t.Errorf("accepted endpoint path = %q, want empty", conn.Path())
	}
	if conn.Handle() == srv.Handle() {
		t.Error("server handle is also the connected handle")
	}

	for _, ep := range []*namedpipe.Endpoint{conn, client, srv} {
		if err := ep.Close(); err != nil {
			t.Errorf("closing %v: %v", ep, err)
		}
		pipetest.AssertState(t, ep, namedpipe.StateClosed)
	}
	if n := drv.OpenHandles(); n != 0 {
		t.Errorf("open handles = %d after close", n)
	}
}

func TestAcceptTimeoutWithoutPeer(t *testing.T) {
	drv := transport.NewMemory()
	srv := memServer(t, drv, pipetest.UniqueName(t))
	if err := srv.Listen(); err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	conn, ok, err := srv.AcceptTimeout(0)
	if err != nil || ok || conn != nil {
		t.Fatalf("AcceptTimeout(0) = %v, %v, %v; want nil, false, nil", conn, ok, err)
	}

	start := time.Now()
	conn, ok, err = srv.AcceptTimeout(50 * time.Millisecond)
	elapsed := time.Since(start)
	if err != nil || ok || conn != nil {
		t.Fatalf("AcceptTimeout(50ms) = %v, %v, %v; want nil, false, nil", conn, ok, err)
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("returned after %v, before the timeout", elapsed)
	}
	pipetest.AssertState(t, srv, namedpipe.StateOpen)
}

func TestAcceptTimeoutWithPendingPeer(t *testing.T) {
	drv := transport.NewMemory()
	name := pipetest.UniqueName(t)
	srv := memServer(t, drv, name)
	if err := srv.Listen(); err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	client := memClient(t, drv, name)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	conn, ok, err := srv.AcceptTimeout(0)
	if err != nil || !ok {
		t.Fatalf("AcceptTimeout(0) = %v, %v; want a connection", ok, err)
	}
	defer conn.Close()
	pipetest.AssertState(t, conn, namedpipe.StateOpen)
}

func TestAcceptInPlaceRelistens(t *testing.T) {
	drv := transport.NewMemory(transport.InPlace())
	name := pipetest.UniqueName(t)
	srv := memServer(t, drv, name)
	if err := srv.Listen(); err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	for i := 0; i < 3; i++ {
		listening := srv.Handle()

		client := memClient(t, drv, name)
		if err := client.Connect(context.Background()); err != nil {
			t.Fatal(err)
		}
		conn, err := srv.Accept()
		if err != nil {
			t.Fatal(err)
		}
		if conn.Handle() != listening {
			t.Errorf("round %d: connection handle %v, want former listening handle %v", i, conn.Handle(), listening)
		}
		if srv.Handle() == listening || !srv.Handle().Valid() {
			t.Errorf("round %d: server did not move to a fresh listening handle", i)
		}
		conn.Close()
		client.Close()
	}
	if n := drv.OpenHandles(); n != 1 {
		t.Errorf("open handles = %d, want only the listener", n)
	}
}

func TestCloseTwiceIsNoop(t *testing.T) {
	drv := transport.NewMemory()
	srv := memServer(t, drv, pipetest.UniqueName(t))
	if err := srv.Listen(); err != nil {
		t.Fatal(err)
	}
	if err := srv.Close(); err != nil {
		t.Fatal(err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	pipetest.AssertState(t, srv, namedpipe.StateClosed)
}

func TestCloseUnopened(t *testing.T) {
	srv := memServer(t, transport.NewMemory(), pipetest.UniqueName(t))
	err := srv.Close()
	pipetest.AssertKind(t, err, namedpipe.KindState)
	pipetest.AssertIs(t, err, namedpipe.ErrNotOpen)
	pipetest.AssertState(t, srv, namedpipe.StateUnopened)
}

func TestNoReopenAfterClose(t *testing.T) {
	drv := transport.NewMemory()
	name := pipetest.UniqueName(t)
	srv := memServer(t, drv, name)
	if err := srv.Listen(); err != nil {
		t.Fatal(err)
	}
	srv.Close()

	err := srv.Listen()
	pipetest.AssertKind(t, err, namedpipe.KindState)
	pipetest.AssertIs(t, err, namedpipe.ErrClosed)
	_, err = srv.Accept()
	pipetest.AssertIs(t, err, namedpipe.ErrClosed)

	client := memClient(t, drv, name)
	other := memServer(t, drv, name)
	if err := other.Listen(); err != nil {
		t.Fatal(err)
	}
	defer other.Close()
	if err := client.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	client.Close()
	err = client.Connect(context.Background())
	pipetest.AssertIs(t, err, namedpipe.ErrClosed)
	pipetest.AssertState(t, client, namedpipe.StateClosed)
}

func TestConnectOnAcceptedEndpoint(t *testing.T) {
	p := pipetest.NewMemoryPair(t)
	err := p.Conn.Connect(context.Background())
	pipetest.AssertKind(t, err, namedpipe.KindState)
	pipetest.AssertIs(t, err, namedpipe.ErrAlreadyOpen)
	_, err = p.Conn.Accept()
	pipetest.AssertKind(t, err, namedpipe.KindRole)
}

func TestFailedListenCanBeRetried(t *testing.T) {
	drv := transport.NewMemory()
	name := pipetest.UniqueName(t)
	first := memServer(t, drv, name)
	if err := first.Listen(); err != nil {
		t.Fatal(err)
	}

	second := memServer(t, drv, name)
	err := second.Listen()
	pipetest.AssertKind(t, err, namedpipe.KindConnection)
	pipetest.AssertIs(t, err, transport.ErrAddrInUse)
	pipetest.AssertState(t, second, namedpipe.StateUnopened)

	var opErr *transport.OpError
	if !errors.As(err, &opErr) || opErr.Op != "bind" {
		t.Errorf("cause = %v, want a bind OpError", err)
	}

	first.Close()
	if err := second.Listen(); err != nil {
		t.Fatalf("retry: %v", err)
	}
	second.Close()
}

func TestConnectWithoutListener(t *testing.T) {
	drv := transport.NewMemory()
	client := memClient(t, drv, pipetest.UniqueName(t))
	err := client.Connect(context.Background())
	pipetest.AssertKind(t, err, namedpipe.KindConnection)
	pipetest.AssertIs(t, err, transport.ErrNotFound)
	pipetest.AssertState(t, client, namedpipe.StateUnopened)
	if n := drv.OpenHandles(); n != 0 {
		t.Errorf("open handles = %d after failed connect", n)
	}
}

func TestConnectCancelled(t *testing.T) {
	drv := transport.NewMemory()
	name := pipetest.UniqueName(t)
	srv := memServer(t, drv, name)
	if err := srv.Listen(); err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := memClient(t, drv, name)
	err := client.Connect(ctx)
	pipetest.AssertKind(t, err, namedpipe.KindConnection)
	pipetest.AssertIs(t, err, context.Canceled)
	pipetest.AssertState(t, client, namedpipe.StateUnopened)
}

func TestDroppedEndpointReleasesHandle(t *testing.T) {
	drv := transport.NewMemory()
	name := pipetest.UniqueName(t)

	func() {
		srv := memServer(t, drv, name)
		if err := srv.Listen(); err != nil {
			t.Fatal(err)
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for drv.OpenHandles() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("dropped endpoint still holds its handle")
		}
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}

	srv := memServer(t, drv, name)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen after drop: %v", err)
	}
	srv.Close()
}

func TestErrorString(t *testing.T) {
	srv := memServer(t, transport.NewMemory(), pipetest.UniqueName(t))
	err := srv.Close()
	if got, want := err.Error(), "namedpipe: close: not open"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if namedpipe.IsKind(err, namedpipe.KindRole) {
		t.Error("IsKind matched the wrong kind")
	}
	if !namedpipe.IsKind(err, namedpipe.KindState) {
		t.Error("IsKind did not match")
	}
}
