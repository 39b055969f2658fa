package host

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ehrlich-b/termalive/internal/config"
	"github.com/ehrlich-b/termalive/internal/protocol"
)

func newTestHost(t *testing.T, maxSessions int) *Host {
	t.Helper()
	cfg := config.Defaults()
	cfg.MaxSessions = maxSessions
	return New(cfg)
}

func TestCreateSessionRejectsDuplicateID(t *testing.T) {
	h := newTestHost(t, 10)
	if _, err := h.CreateSession("dup", "/bin/cat", "", nil, nil, 80, 24, 0); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	defer h.KillSession("dup", true)

	if _, err := h.CreateSession("dup", "/bin/cat", "", nil, nil, 80, 24, 0); err != ErrAlreadyExists {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestCreateSessionEnforcesCapacity(t *testing.T) {
	h := newTestHost(t, 1)
	if _, err := h.CreateSession("a", "/bin/cat", "", nil, nil, 80, 24, 0); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	defer h.KillSession("a", true)

	if _, err := h.CreateSession("b", "/bin/cat", "", nil, nil, 80, 24, 0); err != ErrAtCapacity {
		t.Errorf("err = %v, want ErrAtCapacity", err)
	}
}

func TestKillSessionRemovesFromRegistry(t *testing.T) {
	h := newTestHost(t, 10)
	if _, err := h.CreateSession("k", "/bin/cat", "", nil, nil, 80, 24, 0); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := h.KillSession("k", true); err != nil {
		t.Fatalf("KillSession: %v", err)
	}
	if _, err := h.GetSession("k"); err != ErrNotFound {
		t.Errorf("GetSession after kill = %v, want ErrNotFound", err)
	}
	if err := h.KillSession("missing", true); err != ErrNotFound {
		t.Errorf("KillSession(missing) = %v, want ErrNotFound", err)
	}
}

// testClient drives one side of a net.Pipe as a protocol client.
type testClient struct {
	conn net.Conn
}

func (c *testClient) hello(t *testing.T) {
	t.Helper()
	if err := protocol.WriteFrame(c.conn, protocol.TypeHello, protocol.EncodeHello(protocol.ProtocolVersion)); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	ty, payload, err := protocol.ReadFrame(c.conn)
	if err != nil {
		t.Fatalf("read hello reply: %v", err)
	}
	if ty != protocol.TypeHello {
		t.Fatalf("reply type = %d, want Hello", ty)
	}
	if _, err := protocol.DecodeHello(payload); err != nil {
		t.Fatalf("decode hello: %v", err)
	}
}

func TestServeClientFullLifecycle(t *testing.T) {
	h := newTestHost(t, 10)
	serverConn, clientConn := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		h.serveClient(ctx, serverConn)
		close(done)
	}()

	c := &testClient{conn: clientConn}
	c.hello(t)

	// ListSessions on an empty registry.
	if err := protocol.WriteFrame(c.conn, protocol.TypeListSessions, nil); err != nil {
		t.Fatalf("write ListSessions: %v", err)
	}
	ty, payload, err := protocol.ReadFrame(c.conn)
	if err != nil || ty != protocol.TypeSessionList {
		t.Fatalf("ListSessions reply: ty=%d err=%v", ty, err)
	}
	list, err := protocol.DecodeSessionList(payload)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty session list, got %v (err=%v)", list, err)
	}

	// CreateSession.
	req := protocol.CreateSessionRequest{
		ID: "sess-x", Command: "/bin/cat", CWD: "/", Columns: 80, Rows: 24,
	}
	if err := protocol.WriteFrame(c.conn, protocol.TypeCreateSession, protocol.EncodeCreateSession(req)); err != nil {
		t.Fatalf("write CreateSession: %v", err)
	}
	ty, payload, err = protocol.ReadFrame(c.conn)
	if err != nil || ty != protocol.TypeSessionCreated {
		t.Fatalf("CreateSession reply: ty=%d err=%v", ty, err)
	}
	created, err := protocol.DecodeSessionCreated(payload)
	if err != nil || created.ID != "sess-x" {
		t.Fatalf("created = %+v, err=%v", created, err)
	}

	// Attach.
	if err := protocol.WriteFrame(c.conn, protocol.TypeAttach, protocol.EncodeAttach("sess-x")); err != nil {
		t.Fatalf("write Attach: %v", err)
	}
	ty, payload, err = protocol.ReadFrame(c.conn)
	if err != nil || ty != protocol.TypeAttached {
		t.Fatalf("Attach reply: ty=%d err=%v", ty, err)
	}
	if _, err := protocol.DecodeAttached(payload); err != nil {
		t.Fatalf("decode Attached: %v", err)
	}

	// Input "hi\n" to /bin/cat, expect an Output frame echoing it back.
	if err := protocol.WriteFrame(c.conn, protocol.TypeInput, protocol.EncodeInput([]byte("hi\n"))); err != nil {
		t.Fatalf("write Input: %v", err)
	}
	clientConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	ty, payload, err = protocol.ReadFrame(c.conn)
	if err != nil {
		t.Fatalf("read Output: %v", err)
	}
	if ty != protocol.TypeOutput {
		t.Fatalf("reply type = %d, want Output", ty)
	}
	if len(payload) == 0 {
		t.Errorf("expected non-empty echoed output")
	}

	// Detach, then KillSession.
	if err := protocol.WriteFrame(c.conn, protocol.TypeDetach, nil); err != nil {
		t.Fatalf("write Detach: %v", err)
	}
	if err := protocol.WriteFrame(c.conn, protocol.TypeKillSession, protocol.EncodeKillSession("sess-x", true)); err != nil {
		t.Fatalf("write KillSession: %v", err)
	}

	clientConn.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serveClient did not return after connection close")
	}
}
