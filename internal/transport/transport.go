// Package transport presents WebSocket and platform-pipe connections as a
// uniform bidirectional byte stream to the session host and client, so the
// framed protocol package never has to know which transport carries it.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Conn is the byte stream surface the protocol layer reads and writes.
// Implementations must support concurrent Read and Write from separate
// goroutines (the protocol layer pumps reads and writes independently).
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// Listener accepts incoming Conns. Accept blocks until a connection arrives,
// the listener is closed, or ctx is cancelled.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Close() error
	Addr() string
}

// Dial opens a Conn to uri, which must have scheme ws://, wss://, or pipe://.
func Dial(ctx context.Context, uri string) (Conn, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("transport: parse %q: %w", uri, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		return dialWebSocket(ctx, uri)
	case "pipe":
		name := u.Host
		if name == "" {
			name = u.Path
		}
		return dialPipe(ctx, name)
	default:
		return nil, fmt.Errorf("transport: unsupported scheme %q", u.Scheme)
	}
}

// Listen starts a Listener for uri. For ws:// and wss:// the host:port is
// the bind address; for pipe:// the host or path segment names the
// platform pipe (a filesystem path on Unix, a pipe name on Windows).
func Listen(uri string) (Listener, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("transport: parse %q: %w", uri, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		return listenWebSocket(u.Host)
	case "pipe":
		name := u.Host
		if name == "" {
			name = u.Path
		}
		return listenPipe(name)
	default:
		return nil, fmt.Errorf("transport: unsupported scheme %q", u.Scheme)
	}
}
