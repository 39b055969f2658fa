package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

func dialWebSocket(ctx context.Context, uri string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %q: %w", uri, err)
	}
	conn.SetReadLimit(protocolReadLimit)
	return websocket.NetConn(context.Background(), conn, websocket.MessageBinary), nil
}

// protocolReadLimit is generous relative to MaxPayloadLen in internal/protocol;
// the websocket layer's own framing is not the place frames are size-checked.
const protocolReadLimit = 16 * 1024 * 1024

type wsListener struct {
	ln      net.Listener
	srv     *http.Server
	conns   chan Conn
	closeCh chan struct{}
}

func listenWebSocket(addr string) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %q: %w", addr, err)
	}
	l := &wsListener{
		ln:      ln,
		conns:   make(chan Conn),
		closeCh: make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", l.handle)
	l.srv = &http.Server{Handler: mux}
	go l.srv.Serve(ln)
	return l, nil
}

func (l *wsListener) handle(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	c.SetReadLimit(protocolReadLimit)
	nc := websocket.NetConn(r.Context(), c, websocket.MessageBinary)
	select {
	case l.conns <- nc:
	case <-l.closeCh:
		nc.Close()
	}
}

func (l *wsListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case c, ok := <-l.conns:
		if !ok {
			return nil, fmt.Errorf("transport: listener closed")
		}
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closeCh:
		return nil, fmt.Errorf("transport: listener closed")
	}
}

func (l *wsListener) Close() error {
	close(l.closeCh)
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return l.srv.Shutdown(shutCtx)
}

func (l *wsListener) Addr() string { return l.ln.Addr().String() }
