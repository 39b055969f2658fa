package session

import (
	"testing"
	"time"
)

func newTestSession(t *testing.T) (*Session, *fakePty) {
	t.Helper()
	p := newFakePty()
	s := newWithPty("sess-1", "/bin/sh", "/tmp", p, 10, 4, 64, 0)
	return s, p
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition never became true")
}

func TestPumpFeedsScreenAndRing(t *testing.T) {
	s, p := newTestSession(t)
	p.Feed([]byte("hello"))
	waitFor(t, func() bool { return s.Screen().GetRowText(0) == "hello" })

	snap, _, ch := s.Subscribe()
	if string(snap) != "hello" {
		t.Errorf("snapshot = %q, want %q", snap, "hello")
	}
	_ = ch
}

func TestSubscribeSnapshotThenStream(t *testing.T) {
	s, p := newTestSession(t)
	p.Feed([]byte("AAAA"))
	waitFor(t, func() bool { return s.Screen().GetRowText(0) == "AAAA" })

	snap, _, ch := s.Subscribe()
	if string(snap) != "AAAA" {
		t.Fatalf("snapshot = %q, want %q", snap, "AAAA")
	}

	p.Feed([]byte("BBBB"))
	select {
	case data := <-ch:
		if string(data) != "BBBB" {
			t.Errorf("stream data = %q, want %q", data, "BBBB")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscriber stream data")
	}
}

func TestUnsubscribeClosesStream(t *testing.T) {
	s, _ := newTestSession(t)
	_, id, ch := s.Subscribe()
	s.Unsubscribe(id)
	select {
	case _, ok := <-ch:
		if ok {
			t.Errorf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
}

func TestLaggardSubscriberIsDisconnected(t *testing.T) {
	s, p := newTestSession(t)
	_, id, ch := s.Subscribe()

	for i := 0; i < subscriberQueueSize+10; i++ {
		p.Feed([]byte{byte(i)})
	}

	waitFor(t, func() bool {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		_, ok := s.subs[id]
		return !ok
	})

	// The channel must have been closed, not left open and stalled.
	drained := false
	for range ch {
		drained = true
	}
	_ = drained
}

func TestSendInputWritesToPtyAndTouches(t *testing.T) {
	s, p := newTestSession(t)
	before := s.IdleFor()
	time.Sleep(5 * time.Millisecond)
	if err := s.SendInput([]byte("ls\n")); err != nil {
		t.Fatalf("SendInput: %v", err)
	}
	p.mu.Lock()
	got := len(p.written)
	p.mu.Unlock()
	if got != 1 {
		t.Fatalf("written frames = %d, want 1", got)
	}
	if s.IdleFor() >= before {
		t.Errorf("IdleFor did not reset after SendInput")
	}
}

func TestResizeRecreatesScreen(t *testing.T) {
	s, p := newTestSession(t)
	p.Feed([]byte("xyz"))
	waitFor(t, func() bool { return s.Screen().GetRowText(0) == "xyz" })

	if err := s.Resize(20, 8); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if w, h := s.Screen().Width(), s.Screen().Height(); w != 20 || h != 8 {
		t.Errorf("dims after resize = (%d,%d), want (20,8)", w, h)
	}
	if got := s.Screen().GetRowText(0); got != "" {
		t.Errorf("row 0 after resize = %q, want empty (contents cleared)", got)
	}
	cols, rows := s.Dimensions()
	if cols != 20 || rows != 8 {
		t.Errorf("Dimensions = (%d,%d), want (20,8)", cols, rows)
	}
}

func TestKillTransitionsToExitedOnZeroCode(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.Kill(true); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	waitFor(t, func() bool { return s.State() == StateExited })
}

func TestNonZeroExitIsFailed(t *testing.T) {
	s, p := newTestSession(t)
	p.ExitWith(1)
	waitFor(t, func() bool { return s.State() == StateFailed })
	if s.ExitCode() != 1 {
		t.Errorf("exit code = %d, want 1", s.ExitCode())
	}
}

func TestFinishClosesSubscribers(t *testing.T) {
	s, p := newTestSession(t)
	_, _, ch := s.Subscribe()
	p.ExitWith(0)
	select {
	case _, ok := <-ch:
		if ok {
			t.Errorf("expected subscriber channel closed on session exit")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel was never closed")
	}
}
