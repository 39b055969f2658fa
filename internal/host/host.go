// Package host implements the session host (§4.G): a concurrent registry of
// sessions served to clients over the framed protocol, carried by WebSocket
// and platform-pipe transports.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehrlich-b/termalive/internal/config"
	"github.com/ehrlich-b/termalive/internal/logger"
	"github.com/ehrlich-b/termalive/internal/protocol"
	"github.com/ehrlich-b/termalive/internal/ptyio"
	"github.com/ehrlich-b/termalive/internal/session"
	"github.com/ehrlich-b/termalive/internal/transport"
)

var (
	ErrNotFound      = errors.New("host: session not found")
	ErrAlreadyExists = errors.New("host: session id already in use")
	ErrAtCapacity    = errors.New("host: max_sessions reached")
)

// Host owns the session registry and the listeners that accept clients.
type Host struct {
	cfg config.HostConfig

	mu       sync.RWMutex
	sessions map[string]*session.Session

	tasksMu sync.Mutex
	tasks   map[uint64]context.CancelFunc
	nextTask uint64
	clientsWg sync.WaitGroup

	wsListener   transport.Listener
	pipeListener transport.Listener
}

// New builds a Host from cfg. Listeners are not started until Run.
func New(cfg config.HostConfig) *Host {
	return &Host{
		cfg:      cfg,
		sessions: make(map[string]*session.Session),
		tasks:    make(map[uint64]context.CancelFunc),
	}
}

// Run starts the configured listeners and the idle sweep, and blocks until
// ctx is cancelled. On return after cancellation, all listeners are closed
// and all sessions have been killed and dropped. If a listener fails to
// start, Run closes any listener it already opened and returns the error.
func (h *Host) Run(ctx context.Context) error {
	log := logger.For("host")

	var listeners []transport.Listener
	if h.cfg.WebSocketAddr != "" {
		ln, err := transport.Listen("ws://" + h.cfg.WebSocketAddr)
		if err != nil {
			return fmt.Errorf("host: websocket listen: %w", err)
		}
		h.wsListener = ln
		listeners = append(listeners, ln)
		log.Info("websocket listener started", "addr", ln.Addr())
	}
	if h.cfg.PipePath != "" {
		ln, err := transport.Listen("pipe://" + h.cfg.PipePath)
		if err != nil {
			for _, open := range listeners {
				open.Close()
			}
			return fmt.Errorf("host: pipe listen: %w", err)
		}
		h.pipeListener = ln
		listeners = append(listeners, ln)
		log.Info("pipe listener started", "path", ln.Addr())
	}

	var wg sync.WaitGroup
	for _, ln := range listeners {
		wg.Add(1)
		go func(ln transport.Listener) {
			defer wg.Done()
			h.acceptLoop(ctx, ln)
		}(ln)
	}

	sweepInterval := h.cfg.IdleSweepInterval
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.idleSweep(ctx, sweepInterval)
	}()

	<-ctx.Done()
	log.Info("shutting down")
	for _, ln := range listeners {
		ln.Close()
	}
	h.cancelAllTasks()
	wg.Wait()
	h.clientsWg.Wait()

	h.mu.Lock()
	sessions := make([]*session.Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[string]*session.Session)
	h.mu.Unlock()
	for _, s := range sessions {
		s.Kill(true)
	}
	return nil
}

// ServeConn runs the client protocol over a single already-accepted
// connection until it closes or ctx is cancelled. Exported so embedders
// (and tests) can drive a connection directly without going through a
// transport.Listener.
func (h *Host) ServeConn(ctx context.Context, conn transport.Conn) {
	h.serveClient(ctx, conn)
}

func (h *Host) acceptLoop(ctx context.Context, ln transport.Listener) {
	log := logger.For("host")
	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("accept failed", "error", err)
			continue
		}
		taskID, taskCtx := h.registerTask(ctx)
		h.clientsWg.Add(1)
		go func() {
			defer h.clientsWg.Done()
			defer h.completeTask(taskID)
			defer conn.Close()
			// serveClient's read loop blocks in protocol.ReadFrame, which does
			// not itself observe taskCtx; closing conn on cancellation is what
			// actually unblocks it during shutdown.
			go func() {
				<-taskCtx.Done()
				conn.Close()
			}()
			h.serveClient(taskCtx, conn)
		}()
	}
}

func (h *Host) registerTask(parent context.Context) (uint64, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	h.tasksMu.Lock()
	defer h.tasksMu.Unlock()
	h.nextTask++
	id := h.nextTask
	h.tasks[id] = cancel
	return id, ctx
}

// completeTask removes a finished client task's handle from the registry.
// Skipping this step is the known defect this package must not reproduce:
// client tasks would accumulate for the life of the process.
func (h *Host) completeTask(id uint64) {
	h.tasksMu.Lock()
	defer h.tasksMu.Unlock()
	if cancel, ok := h.tasks[id]; ok {
		cancel()
		delete(h.tasks, id)
	}
}

func (h *Host) cancelAllTasks() {
	h.tasksMu.Lock()
	defer h.tasksMu.Unlock()
	for _, cancel := range h.tasks {
		cancel()
	}
}

func (h *Host) idleSweep(ctx context.Context, interval time.Duration) {
	log := logger.For("host")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweepOnce(log)
		}
	}
}

func (h *Host) sweepOnce(log *slog.Logger) {
	h.mu.RLock()
	var expired []*session.Session
	for _, s := range h.sessions {
		timeout := s.IdleTimeout()
		if timeout > 0 && s.IdleFor() > timeout {
			expired = append(expired, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range expired {
		log.Info("idle sweep killing session", "id", s.ID)
		s.Kill(true)
		h.mu.Lock()
		delete(h.sessions, s.ID)
		h.mu.Unlock()
	}
}

// CreateSession validates id uniqueness and the max_sessions limit, spawns
// a new session, and registers it.
func (h *Host) CreateSession(id, command, cwd string, args, env []string, cols, rows int, idleTimeout time.Duration) (*session.Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	h.mu.Lock()
	if _, exists := h.sessions[id]; exists {
		h.mu.Unlock()
		return nil, ErrAlreadyExists
	}
	if len(h.sessions) >= h.maxSessions() {
		h.mu.Unlock()
		return nil, ErrAtCapacity
	}
	h.mu.Unlock()

	bufSize := h.cfg.DefaultBufferSize
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	s, err := session.New(id, ptyio.Options{
		Command:          command,
		Arguments:        args,
		WorkingDirectory: cwd,
		Environment:      env,
		Columns:          cols,
		Rows:             rows,
	}, bufSize, idleTimeout)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.sessions[id] = s
	h.mu.Unlock()
	return s, nil
}

func (h *Host) maxSessions() int {
	if h.cfg.MaxSessions <= 0 {
		return 100
	}
	return h.cfg.MaxSessions
}

// GetSession looks up a session by id.
func (h *Host) GetSession(id string) (*session.Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// ListSessions returns a snapshot of every registered session.
func (h *Host) ListSessions() []*session.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*session.Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

// KillSession kills and removes a session from the registry.
func (h *Host) KillSession(id string, force bool) error {
	h.mu.Lock()
	s, ok := h.sessions[id]
	if ok {
		delete(h.sessions, id)
	}
	h.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return s.Kill(force)
}

func sessionInfo(s *session.Session) protocol.SessionInfo {
	cols, rows := s.Dimensions()
	return protocol.SessionInfo{
		ID:               s.ID,
		Command:          s.Command,
		WorkingDirectory: s.CWD,
		State:            wireState(s.State()),
		CreatedMs:        s.CreatedAt().UnixMilli(),
		ExitCode:         exitCodeOrSentinel(s),
		Columns:          uint16(cols),
		Rows:             uint16(rows),
	}
}

func exitCodeOrSentinel(s *session.Session) int32 {
	switch s.State() {
	case session.StateExited, session.StateFailed:
		return int32(s.ExitCode())
	default:
		return protocol.NoExitCode
	}
}

func wireState(st session.State) protocol.SessionState {
	switch st {
	case session.StateStarting:
		return protocol.SessionStarting
	case session.StateRunning:
		return protocol.SessionRunning
	case session.StateExiting:
		return protocol.SessionExiting
	case session.StateExited:
		return protocol.SessionExited
	case session.StateFailed:
		return protocol.SessionFailed
	default:
		return protocol.SessionFailed
	}
}
