//go:build windows

package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/windows"
)

const (
	pipeAccessDuplex    = 0x00000003
	fileFlagOverlapped  = 0x40000000
	pipeTypeByte        = 0x00000000
	pipeReadmodeByte    = 0x00000000
	pipeWait            = 0x00000000
	pipeUnlimitedInst   = 255
	pipeDefaultBufSize  = 65536
	errPipeBusy         = 231
	errPipeConnected    = 535
)

func pipePath(name string) string {
	return `\\.\pipe\` + name
}

// pipeConn wraps a Windows named-pipe handle as a Conn.
type pipeConn struct {
	h  windows.Handle
	mu sync.Mutex
}

func (p *pipeConn) Read(b []byte) (int, error) {
	var n uint32
	err := windows.ReadFile(p.h, b, &n, nil)
	if err != nil {
		return int(n), fmt.Errorf("transport: pipe read: %w", err)
	}
	return int(n), nil
}

func (p *pipeConn) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n uint32
	err := windows.WriteFile(p.h, b, &n, nil)
	if err != nil {
		return int(n), fmt.Errorf("transport: pipe write: %w", err)
	}
	return int(n), nil
}

func (p *pipeConn) Close() error {
	return windows.CloseHandle(p.h)
}

func dialPipe(ctx context.Context, name string) (Conn, error) {
	path, err := windows.UTF16PtrFromString(pipePath(name))
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		h, err := windows.CreateFile(path,
			windows.GENERIC_READ|windows.GENERIC_WRITE,
			0, nil, windows.OPEN_EXISTING, 0, 0)
		if err == nil {
			return &pipeConn{h: h}, nil
		}
		if err != windows.Errno(errPipeBusy) || time.Now().After(deadline) {
			return nil, fmt.Errorf("transport: dial pipe %q: %w", name, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

type namedPipeListener struct {
	name   string
	closed chan struct{}
}

func listenPipe(name string) (Listener, error) {
	return &namedPipeListener{name: name, closed: make(chan struct{})}, nil
}

func (l *namedPipeListener) Accept(ctx context.Context) (Conn, error) {
	path, err := windows.UTF16PtrFromString(pipePath(l.name))
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateNamedPipe(path,
		pipeAccessDuplex,
		pipeTypeByte|pipeReadmodeByte|pipeWait,
		pipeUnlimitedInst,
		pipeDefaultBufSize,
		pipeDefaultBufSize,
		0, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: create pipe %q: %w", l.name, err)
	}

	type result struct {
		err error
	}
	ch := make(chan result, 1)
	go func() {
		err := windows.ConnectNamedPipe(h, nil)
		if err == windows.Errno(errPipeConnected) {
			err = nil
		}
		ch <- result{err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			windows.CloseHandle(h)
			return nil, fmt.Errorf("transport: accept pipe %q: %w", l.name, r.err)
		}
		return &pipeConn{h: h}, nil
	case <-ctx.Done():
		windows.CloseHandle(h)
		return nil, ctx.Err()
	case <-l.closed:
		windows.CloseHandle(h)
		return nil, fmt.Errorf("transport: listener closed")
	}
}

func (l *namedPipeListener) Close() error {
	close(l.closed)
	return nil
}

func (l *namedPipeListener) Addr() string { return pipePath(l.name) }
