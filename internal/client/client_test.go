package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ehrlich-b/termalive/internal/config"
	"github.com/ehrlich-b/termalive/internal/host"
	"github.com/ehrlich-b/termalive/internal/protocol"
	"github.com/ehrlich-b/termalive/internal/transport"
)

func netPipe() (transport.Conn, transport.Conn) {
	a, b := net.Pipe()
	return a, b
}

// pipeClient spins up a host serving one net.Pipe connection and returns a
// Client wired to the other end, exercising the full stack without a real
// transport.Dial or network listener.
func pipeClient(t *testing.T) (*host.Host, *Client) {
	t.Helper()
	cfg := config.Defaults()
	h := host.New(cfg)

	serverConn, clientConn := netPipe()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.ServeConn(ctx, serverConn)

	c, err := newClient(clientConn)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return h, c
}

func TestListSessionsEmpty(t *testing.T) {
	_, c := pipeClient(t)
	list, err := c.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("got %d sessions, want 0", len(list))
	}
}

func TestCreateAttachInputOutput(t *testing.T) {
	_, c := pipeClient(t)

	created, err := c.CreateSession(protocol.CreateSessionRequest{
		ID: "s1", Command: "/bin/cat", CWD: "/", Columns: 80, Rows: 24,
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if created.ID != "s1" {
		t.Fatalf("created.ID = %q, want s1", created.ID)
	}

	att, err := c.Attach("s1")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if att.Session().ID != "s1" {
		t.Errorf("att.Session().ID = %q, want s1", att.Session().ID)
	}

	if _, err := c.Attach("s1"); err != ErrAlreadyAttached {
		t.Errorf("second Attach err = %v, want ErrAlreadyAttached", err)
	}

	if err := att.SendInput([]byte("hi\n")); err != nil {
		t.Fatalf("SendInput: %v", err)
	}

	select {
	case data, ok := <-att.Output():
		if !ok {
			t.Fatal("output channel closed before any data")
		}
		if len(data) == 0 {
			t.Error("expected non-empty echoed output")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echoed output")
	}

	if err := att.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}

	if _, err := c.Attach("s1"); err != nil {
		t.Fatalf("re-Attach after Detach: %v", err)
	}
}

func TestKillSessionEndsAttachment(t *testing.T) {
	_, c := pipeClient(t)

	if _, err := c.CreateSession(protocol.CreateSessionRequest{
		ID: "s2", Command: "/bin/cat", CWD: "/", Columns: 80, Rows: 24,
	}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	att, err := c.Attach("s2")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	if err := c.KillSession("s2", true); err != nil {
		t.Fatalf("KillSession: %v", err)
	}

	select {
	case code := <-att.Exited():
		_ = code
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Exited after KillSession")
	}
}
