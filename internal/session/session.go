// Package session binds a PTY to a screen buffer and a ring buffer, and
// fans the PTY's output out to any number of attached subscribers.
package session

import (
	"sync"
	"time"

	"github.com/ehrlich-b/termalive/internal/ptyio"
	"github.com/ehrlich-b/termalive/internal/ring"
	"github.com/ehrlich-b/termalive/internal/screen"
	"github.com/ehrlich-b/termalive/internal/vtparser"
)

// State is a position in the session lifecycle.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateExiting
	StateExited
	StateFailed
)

func (st State) String() string {
	switch st {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateExiting:
		return "exiting"
	case StateExited:
		return "exited"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const readBufSize = 4096

// subscriberQueueSize backs every Subscribe call's channel; a slow
// subscriber that can't keep up is disconnected rather than allowed to
// stall the pump or silently lose interior bytes (see broadcast).
const subscriberQueueSize = 256

type subscriber struct {
	ch chan []byte
}

// Session owns one PTY-backed child process plus the screen/ring state
// derived from its output, and the set of clients currently attached.
type Session struct {
	ID      string
	Command string
	CWD     string

	pty    ptyio.PTY
	screen *screen.Screen
	ring   *ring.Buffer
	parser *vtparser.Parser

	idleTimeout time.Duration

	createdAt time.Time

	mu           sync.Mutex
	state        State
	cols, rows   int
	lastActivity time.Time
	exitCode     int

	subMu     sync.Mutex
	subs      map[int]*subscriber
	nextSubID int
}

// New spawns opts.Command under a pseudo-terminal and starts the read pump.
// On spawn failure the returned error wraps a *ptyio.PtyCreateError.
func New(id string, opts ptyio.Options, ringSize int, idleTimeout time.Duration) (*Session, error) {
	p, err := ptyio.Create(opts)
	if err != nil {
		return nil, err
	}
	return newWithPty(id, opts.Command, opts.WorkingDirectory, p, opts.Columns, opts.Rows, ringSize, idleTimeout), nil
}

// newWithPty builds a Session around an already-spawned PTY and starts its
// pump. Tests use this to inject a fake PTY in place of a real child process.
func newWithPty(id, command, cwd string, p ptyio.PTY, cols, rows, ringSize int, idleTimeout time.Duration) *Session {
	s := &Session{
		ID:          id,
		Command:     command,
		CWD:         cwd,
		idleTimeout: idleTimeout,
		cols:        cols,
		rows:        rows,
		subs:        make(map[int]*subscriber),
		createdAt:   time.Now(),
	}
	s.pty = p
	s.screen = screen.New(cols, rows)
	s.ring = ring.New(ringSize)
	s.parser = vtparser.New(s.screen)
	s.screen.SetWriteBack(func(b []byte) { s.pty.Write(b) })

	s.mu.Lock()
	s.state = StateRunning
	s.lastActivity = time.Now()
	s.mu.Unlock()

	go s.pump()
	return s
}

// pump is the session's unique read task: PTY bytes feed the parser (screen
// state), the ring buffer, and every subscriber, in that order, per read.
func (s *Session) pump() {
	buf := make([]byte, readBufSize)
	for {
		n, err := s.pty.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			s.parser.Feed(data)
			s.ring.Write(data)
			s.touch()
			s.broadcast(data)
		}
		if n == 0 || err != nil {
			s.finish()
			return
		}
	}
}

func (s *Session) finish() {
	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateExiting
	}
	s.mu.Unlock()

	code, _ := s.pty.WaitForExit()
	s.pty.Close()

	s.mu.Lock()
	s.exitCode = code
	if code != 0 {
		s.state = StateFailed
	} else {
		s.state = StateExited
	}
	s.mu.Unlock()

	s.closeAllSubscribers()
}

// broadcast appends data to the ring buffer and delivers it to every
// subscriber's queue, both under subMu. A subscriber whose queue is full is
// disconnected rather than stalled or silently truncated mid-stream: its
// channel is closed and it is dropped from the map.
func (s *Session) broadcast(data []byte) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.ring.Write(data)
	for id, sub := range s.subs {
		select {
		case sub.ch <- data:
		default:
			close(sub.ch)
			delete(s.subs, id)
		}
	}
}

// Subscribe atomically pairs a ring snapshot with registration: each chunk's
// ring write and broadcast happen together under subMu, so every chunk is
// either in the snapshot or in the stream, never both and never neither.
func (s *Session) Subscribe() (snapshot []byte, id int, stream <-chan []byte) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	snap := s.ring.Snapshot()
	id = s.nextSubID
	s.nextSubID++
	c := make(chan []byte, subscriberQueueSize)
	s.subs[id] = &subscriber{ch: c}
	return snap, id, c
}

// Unsubscribe closes the subscriber's stream promptly.
func (s *Session) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if sub, ok := s.subs[id]; ok {
		close(sub.ch)
		delete(s.subs, id)
	}
}

func (s *Session) closeAllSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, sub := range s.subs {
		close(sub.ch)
		delete(s.subs, id)
	}
}

// SendInput forwards bytes to the child and marks the session active.
func (s *Session) SendInput(data []byte) error {
	s.touch()
	return s.pty.Write(data)
}

// Resize propagates to the PTY and re-creates the screen buffer at the new
// dimensions; contents are cleared (callers needing reflow use the ring).
func (s *Session) Resize(cols, rows int) error {
	if err := s.pty.Resize(cols, rows); err != nil {
		return err
	}
	s.screen.Resize(cols, rows)
	s.mu.Lock()
	s.cols, s.rows = cols, rows
	s.mu.Unlock()
	s.touch()
	return nil
}

// Kill requests termination; force selects SIGKILL/TerminateProcess over a
// graceful signal. The pump's own EOF detection drives the final state
// transition once the child actually exits.
func (s *Session) Kill(force bool) error {
	s.mu.Lock()
	if s.state == StateExited || s.state == StateFailed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateExiting
	s.mu.Unlock()
	return s.pty.Kill(force)
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ExitCode reports the child's exit code; only meaningful once State is
// Exited or Failed.
func (s *Session) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// Dimensions reports the session's current column/row count.
func (s *Session) Dimensions() (cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

// IdleFor reports how long the session has gone without input or output.
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// IdleTimeout reports the configured idle threshold, or zero if unset.
func (s *Session) IdleTimeout() time.Duration {
	return s.idleTimeout
}

// Screen exposes the read-only cell grid contract for renderers.
func (s *Session) Screen() *screen.Screen { return s.screen }

// CreatedAt reports when the session was spawned.
func (s *Session) CreatedAt() time.Time { return s.createdAt }
