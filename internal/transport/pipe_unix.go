//go:build !windows

package transport

import (
	"context"
	"fmt"
	"net"
	"os"
)

func dialPipe(ctx context.Context, path string) (Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("transport: dial pipe %q: %w", path, err)
	}
	return c, nil
}

type pipeListener struct {
	ln   net.Listener
	path string
}

func listenPipe(path string) (Listener, error) {
	os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("transport: listen pipe %q: %w", path, err)
	}
	return &pipeListener{ln: ln, path: path}, nil
}

func (l *pipeListener) Accept(ctx context.Context) (Conn, error) {
	type result struct {
		c   net.Conn
		err error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := l.ln.Accept()
		ch <- result{c, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return r.c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *pipeListener) Close() error {
	err := l.ln.Close()
	os.Remove(l.path)
	return err
}

func (l *pipeListener) Addr() string { return l.path }
