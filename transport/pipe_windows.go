//go:build windows

package transport

import (
	"context"
	"errors"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// DefaultNamespace is the reserved pipe namespace.
const DefaultNamespace = `\\.\pipe\`

const pipeBufferSize = 1024

const nmpwaitWaitForever = 0xffffffff

var (
	modkernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procWaitNamedPipeW      = modkernel32.NewProc("WaitNamedPipeW")
	procDisconnectNamedPipe = modkernel32.NewProc("DisconnectNamedPipe")
)

func waitNamedPipe(name *uint16, timeout uint32) error {
	r1, _, err := procWaitNamedPipeW.Call(uintptr(unsafe.Pointer(name)), uintptr(timeout))
	if r1 == 0 {
		return err
	}
	return nil
}

func disconnectNamedPipe(h windows.Handle) error {
	r1, _, err := procDisconnectNamedPipe.Call(uintptr(h))
	if r1 == 0 {
		return err
	}
	return nil
}

// Default returns the named pipe driver.
func Default() Driver { return pipeDriver{} }

type pipeDriver struct{}

func (pipeDriver) Listen(path string) (Handle, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return InvalidHandle, opError("createnamedpipe", path, err)
	}
	h, err := windows.CreateNamedPipe(
		name,
		windows.PIPE_ACCESS_DUPLEX|windows.FILE_FLAG_OVERLAPPED,
		windows.PIPE_TYPE_BYTE|windows.PIPE_READMODE_BYTE|windows.PIPE_WAIT,
		windows.PIPE_UNLIMITED_INSTANCES,
		pipeBufferSize,
		pipeBufferSize,
		0,
		nil,
	)
	if err != nil {
		return InvalidHandle, opError("createnamedpipe", path, err)
	}
	return Handle(h), nil
}

func (d pipeDriver) Accept(l Handle, path string) (Accepted, error) {
	a, _, err := d.accept(l, path, 0, true)
	return a, err
}

func (d pipeDriver) AcceptTimeout(l Handle, path string, timeout time.Duration) (Accepted, bool, error) {
	return d.accept(l, path, timeout, false)
}

// accept waits for a client on the pipe instance l. A connected instance
// cannot listen again, so a fresh instance is created before l is handed out
// as the connection.
func (d pipeDriver) accept(l Handle, path string, timeout time.Duration, forever bool) (Accepted, bool, error) {
	h := windows.Handle(l)
	connected, err := connectPipe(h, timeout, forever)
	if err != nil {
		return Accepted{}, false, opError("connectnamedpipe", path, err)
	}
	if !connected {
		return Accepted{}, false, nil
	}

	next, err := d.Listen(path)
	if err != nil {
		// Drop the client so l is a listening instance again.
		_ = disconnectNamedPipe(h)
		return Accepted{}, false, err
	}
	return Accepted{Conn: l, Listener: next}, true, nil
}

func connectPipe(h windows.Handle, timeout time.Duration, forever bool) (bool, error) {
	ev, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return false, err
	}
	defer windows.CloseHandle(ev)

	ov := &windows.Overlapped{HEvent: ev}
	err = windows.ConnectNamedPipe(h, ov)
	switch {
	case err == nil, errors.Is(err, windows.ERROR_PIPE_CONNECTED):
		return true, nil
	case !errors.Is(err, windows.ERROR_IO_PENDING):
		return false, err
	}

	wait := uint32(windows.INFINITE)
	if !forever {
		wait = uint32(millis(timeout))
	}
	var n uint32
	status, err := windows.WaitForSingleObject(ev, wait)
	if err == nil && status == windows.WAIT_OBJECT_0 {
		if err := windows.GetOverlappedResult(h, ov, &n, false); err != nil {
			return false, err
		}
		return true, nil
	}

	// Timed out or the wait failed. The kernel still owns ov until the
	// pending connect is cancelled and drained.
	_ = windows.CancelIoEx(h, ov)
	drainErr := windows.GetOverlappedResult(h, ov, &n, true)
	switch {
	case err != nil:
		return false, err
	case drainErr == nil:
		// A client arrived while cancelling.
		return true, nil
	case errors.Is(drainErr, windows.ERROR_OPERATION_ABORTED):
		return false, nil
	default:
		return false, drainErr
	}
}

func (pipeDriver) Dial(ctx context.Context, path string) (Handle, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return InvalidHandle, opError("createfile", path, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return InvalidHandle, opError("waitnamedpipe", path, err)
		}
		wait := uint32(nmpwaitWaitForever)
		if deadline, ok := ctx.Deadline(); ok {
			wait = uint32(max(millis(time.Until(deadline)), 1))
		}
		// CreateFile reports the real failure; the wait only paces retries.
		_ = waitNamedPipe(name, wait)

		h, err := windows.CreateFile(
			name,
			windows.GENERIC_READ|windows.GENERIC_WRITE,
			0,
			nil,
			windows.OPEN_EXISTING,
			0,
			0,
		)
		if errors.Is(err, windows.ERROR_PIPE_BUSY) {
			continue
		}
		if err != nil {
			if errors.Is(err, windows.ERROR_FILE_NOT_FOUND) {
				err = ErrNotFound
			}
			return InvalidHandle, opError("createfile", path, err)
		}

		mode := uint32(windows.PIPE_READMODE_BYTE)
		if err := windows.SetNamedPipeHandleState(h, &mode, nil, nil); err != nil {
			windows.CloseHandle(h)
			return InvalidHandle, opError("setnamedpipehandlestate", path, err)
		}
		return Handle(h), nil
	}
}

func (pipeDriver) Close(h Handle, side Side, path string) error {
	wh := windows.Handle(h)
	if side != SideDialed {
		_ = disconnectNamedPipe(wh)
	}
	if err := windows.CloseHandle(wh); err != nil {
		return opError("closehandle", path, err)
	}
	return nil
}
