// Package client implements the session client (§4.H): the mirror image of
// internal/host's protocol, for programs that want to create, list, and
// attach to sessions held by a remote host.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ehrlich-b/termalive/internal/protocol"
	"github.com/ehrlich-b/termalive/internal/transport"
)

// ErrAlreadyAttached is returned by Attach when the client already holds an
// attachment; only one is permitted per client, matching the host's
// per-connection attachment limit.
var ErrAlreadyAttached = errors.New("client: already attached, detach first")

// ErrClosed is returned by any call made after the client's connection has
// gone away.
var ErrClosed = errors.New("client: connection closed")

type reply struct {
	t       protocol.MessageType
	payload []byte
	err     error
}

// Client holds one connection to a session host and a single background
// goroutine that owns the connection's read side for the connection's whole
// lifetime, dispatching frames to whichever request is waiting or to the
// live Attachment. This mirrors the read-loop/dispatch shape of a
// long-lived reconnecting client, minus the reconnect logic — a dropped
// connection here is reported to the caller rather than retried silently.
type Client struct {
	conn transport.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	pending  chan reply // non-nil while a request/response call is in flight
	attt     *Attachment
	closed   bool
}

// Connect dials uri (ws://, wss://, or pipe://) and performs the Hello
// handshake.
func Connect(ctx context.Context, uri string) (*Client, error) {
	conn, err := transport.Dial(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}
	c, err := newClient(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// newClient wraps an already-established connection, performing the Hello
// handshake before returning. Split out from Connect so tests can drive a
// Client over an in-memory connection without a real transport.Dial.
func newClient(conn transport.Conn) (*Client, error) {
	c := &Client{conn: conn}
	go c.readLoop()
	if err := c.hello(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) hello() error {
	t, payload, err := c.roundTrip(protocol.TypeHello, protocol.EncodeHello(protocol.ProtocolVersion))
	if err != nil {
		return fmt.Errorf("client: hello: %w", err)
	}
	if t != protocol.TypeHello {
		return fmt.Errorf("client: expected Hello reply, got type %d", t)
	}
	if _, err := protocol.DecodeHello(payload); err != nil {
		return fmt.Errorf("client: decode hello reply: %w", err)
	}
	return nil
}

// readLoop is the connection's sole reader. Output and SessionExited frames
// are routed to the live attachment, if any; everything else is routed to
// whichever request/response call is currently waiting on c.pending.
func (c *Client) readLoop() {
	for {
		t, payload, err := protocol.ReadFrame(c.conn)
		if err != nil {
			c.shutdown(err)
			return
		}
		switch t {
		case protocol.TypeOutput:
			c.mu.Lock()
			a := c.attt
			c.mu.Unlock()
			if a != nil {
				a.deliverOutput(protocol.DecodeOutput(payload))
			}
		case protocol.TypeSessionExited:
			c.mu.Lock()
			a := c.attt
			c.mu.Unlock()
			if a != nil {
				a.deliverExit(payload)
			}
		default:
			c.mu.Lock()
			ch := c.pending
			c.mu.Unlock()
			if ch != nil {
				ch <- reply{t: t, payload: payload}
			}
		}
	}
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	c.closed = true
	ch := c.pending
	a := c.attt
	c.mu.Unlock()
	if ch != nil {
		ch <- reply{err: err}
	}
	if a != nil {
		a.deliverClosed(err)
	}
}

// roundTrip sends one frame and waits for the next non-output frame the
// read loop sees. Request/response calls (ListSessions, CreateSession,
// Attach; KillSession writes its frame without waiting) never overlap by contract of the caller holding
// Client for sequential use, same as the host's one-attachment-per-client
// assumption on the other side of the wire.
func (c *Client) roundTrip(t protocol.MessageType, payload []byte) (protocol.MessageType, []byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, nil, ErrClosed
	}
	ch := make(chan reply, 1)
	c.pending = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.pending == ch {
			c.pending = nil
		}
		c.mu.Unlock()
	}()

	if err := c.writeFrame(t, payload); err != nil {
		return 0, nil, err
	}
	r := <-ch
	if r.err != nil {
		return 0, nil, r.err
	}
	return r.t, r.payload, nil
}

func (c *Client) writeFrame(t protocol.MessageType, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteFrame(c.conn, t, payload)
}

// ListSessions requests the host's current session registry.
func (c *Client) ListSessions() ([]protocol.SessionInfo, error) {
	t, payload, err := c.roundTrip(protocol.TypeListSessions, nil)
	if err != nil {
		return nil, err
	}
	if t != protocol.TypeSessionList {
		return nil, unexpectedReply(t, payload)
	}
	return protocol.DecodeSessionList(payload)
}

// CreateSession asks the host to spawn a new session. Leave req.ID empty to
// let the host assign one.
func (c *Client) CreateSession(req protocol.CreateSessionRequest) (protocol.SessionInfo, error) {
	t, payload, err := c.roundTrip(protocol.TypeCreateSession, protocol.EncodeCreateSession(req))
	if err != nil {
		return protocol.SessionInfo{}, err
	}
	if t != protocol.TypeSessionCreated {
		return protocol.SessionInfo{}, unexpectedReply(t, payload)
	}
	return protocol.DecodeSessionCreated(payload)
}

// KillSession asks the host to terminate a session by id. The wire protocol
// has no success acknowledgment for this message (unlike ListSessions or
// CreateSession) — the host only replies with Error on failure, and a
// well-behaved caller observes the kill indirectly via Exited on any live
// Attachment to that session. KillSession itself returns as soon as the
// request is written.
func (c *Client) KillSession(id string, force bool) error {
	return c.writeFrame(protocol.TypeKillSession, protocol.EncodeKillSession(id, force))
}

// Attach binds the client's one allowed attachment to a session.
func (c *Client) Attach(id string) (*Attachment, error) {
	c.mu.Lock()
	if c.attt != nil {
		c.mu.Unlock()
		return nil, ErrAlreadyAttached
	}
	c.mu.Unlock()

	t, payload, err := c.roundTrip(protocol.TypeAttach, protocol.EncodeAttach(id))
	if err != nil {
		return nil, err
	}
	if t != protocol.TypeAttached {
		return nil, unexpectedReply(t, payload)
	}
	attached, err := protocol.DecodeAttached(payload)
	if err != nil {
		return nil, err
	}

	a := &Attachment{
		client:   c,
		session:  attached.Session,
		output:   make(chan []byte, 64),
		exited:   make(chan int32, 1),
		snapshot: attached.Output,
	}
	c.mu.Lock()
	c.attt = a
	c.mu.Unlock()
	return a, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func unexpectedReply(t protocol.MessageType, payload []byte) error {
	if t == protocol.TypeError {
		return fmt.Errorf("client: host error: %s", protocol.DecodeError(payload))
	}
	return fmt.Errorf("client: unexpected reply type %d", t)
}

// Attachment is a live binding to one session's input and output. Only one
// Attachment may be open per Client at a time.
type Attachment struct {
	client  *Client
	session protocol.SessionInfo

	output   chan []byte
	exited   chan int32
	snapshot []byte

	closeOnce sync.Once
}

// Session reports the attached session's metadata as of the Attach call.
func (a *Attachment) Session() protocol.SessionInfo { return a.session }

// Snapshot returns the raw output bytes the host sent at attach time (the
// session's ring buffer contents), so a renderer can replay recent output
// before the first Output arrives.
func (a *Attachment) Snapshot() []byte { return a.snapshot }

// Output is fed bytes from the session's pump as they arrive. It is closed
// when the session exits, the attachment is detached, or the connection
// drops.
func (a *Attachment) Output() <-chan []byte { return a.output }

// Exited reports the session's exit code once the session ends while
// attached. Unbuffered receivers should read this only after Output closes.
func (a *Attachment) Exited() <-chan int32 { return a.exited }

func (a *Attachment) deliverOutput(data []byte) {
	select {
	case a.output <- data:
	default:
		// Caller isn't keeping up; drop this chunk rather than block the
		// shared read loop. Unlike the host, which disconnects a laggard
		// subscriber, this loses bytes from the middle of the stream.
	}
}

func (a *Attachment) deliverExit(payload []byte) {
	_, exitCode, err := protocol.DecodeSessionExited(payload)
	if err != nil {
		exitCode = protocol.NoExitCode
	}
	a.closeOnce.Do(func() {
		a.exited <- exitCode
		close(a.output)
		a.client.clearAttachment(a)
	})
}

func (a *Attachment) deliverClosed(error) {
	a.closeOnce.Do(func() {
		close(a.output)
		a.client.clearAttachment(a)
	})
}

func (c *Client) clearAttachment(a *Attachment) {
	c.mu.Lock()
	if c.attt == a {
		c.attt = nil
	}
	c.mu.Unlock()
}

// SendInput writes bytes to the session.
func (a *Attachment) SendInput(data []byte) error {
	return a.client.writeFrame(protocol.TypeInput, protocol.EncodeInput(data))
}

// Resize changes the session's terminal dimensions.
func (a *Attachment) Resize(cols, rows uint16) error {
	return a.client.writeFrame(protocol.TypeResize, protocol.EncodeResize(cols, rows))
}

// Detach ends the attachment without killing the session. The client is
// free to Attach again afterward.
func (a *Attachment) Detach() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.client.writeFrame(protocol.TypeDetach, nil)
		close(a.output)
		a.client.clearAttachment(a)
	})
	return err
}
