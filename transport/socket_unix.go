//go:build unix

package transport

import (
	"context"
	"errors"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultNamespace is the directory unix endpoints rendezvous in.
const DefaultNamespace = "/tmp/"

// Default returns the AF_UNIX stream socket driver.
func Default() Driver { return socketDriver{} }

type socketDriver struct{}

func (socketDriver) Listen(path string) (Handle, error) {
	fd, err := socket()
	if err != nil {
		return InvalidHandle, opError("socket", path, err)
	}

	// A server that exited without closing leaves its socket file behind.
	_ = unix.Unlink(path)

	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return InvalidHandle, opError("bind", path, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		unix.Unlink(path)
		return InvalidHandle, opError("listen", path, err)
	}
	// Accept only runs after poll reports readiness, so a peer that
	// disconnects in between must not leave accept blocked.
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		unix.Unlink(path)
		return InvalidHandle, opError("setnonblock", path, err)
	}
	return Handle(fd), nil
}

func (d socketDriver) Accept(l Handle, path string) (Accepted, error) {
	a, _, err := d.accept(l, path, 0, true)
	return a, err
}

func (d socketDriver) AcceptTimeout(l Handle, path string, timeout time.Duration) (Accepted, bool, error) {
	return d.accept(l, path, timeout, false)
}

func (socketDriver) accept(l Handle, path string, timeout time.Duration, forever bool) (Accepted, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		wait := -1
		if !forever {
			wait = millis(time.Until(deadline))
		}

		ready, err := waitReadable(int(l), wait)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return Accepted{}, false, opError("poll", path, err)
		}
		if !ready {
			return Accepted{}, false, nil
		}

		fd, err := acceptConn(int(l))
		switch {
		case err == nil:
			return Accepted{Conn: Handle(fd), Listener: l}, true, nil
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.ECONNABORTED), errors.Is(err, unix.EINTR):
			// The pending peer went away between poll and accept.
			continue
		default:
			return Accepted{}, false, opError("accept", path, err)
		}
	}
}

func (socketDriver) Dial(ctx context.Context, path string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return InvalidHandle, opError("connect", path, err)
	}
	fd, err := socket()
	if err != nil {
		return InvalidHandle, opError("socket", path, err)
	}
	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		if errors.Is(err, unix.ENOENT) {
			err = ErrNotFound
		}
		return InvalidHandle, opError("connect", path, err)
	}
	return Handle(fd), nil
}

func (socketDriver) Close(h Handle, side Side, path string) error {
	if side == SideListener && path != "" {
		_ = unix.Unlink(path)
	}
	if err := unix.Close(int(h)); err != nil {
		return opError("close", path, err)
	}
	return nil
}

func socket() (int, error) {
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	unix.CloseOnExec(fd)
	return fd, nil
}

func acceptConn(l int) (int, error) {
	syscall.ForkLock.RLock()
	fd, _, err := unix.Accept(l)
	if err == nil {
		unix.CloseOnExec(fd)
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return -1, err
	}
	// BSD-derived kernels copy O_NONBLOCK from the listener.
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// waitReadable blocks in poll(2) until fd has a pending connection or ms
// elapses. A negative ms waits forever.
func waitReadable(fd int, ms int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, ms)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if fds[0].Revents&unix.POLLNVAL != 0 {
		return false, unix.EBADF
	}
	return true, nil
}
