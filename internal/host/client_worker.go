package host

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/ehrlich-b/termalive/internal/logger"
	"github.com/ehrlich-b/termalive/internal/protocol"
	"github.com/ehrlich-b/termalive/internal/session"
	"github.com/ehrlich-b/termalive/internal/transport"
)

// serveClient runs one client's full lifetime: Hello handshake, then a
// read-dispatch loop. Recovers from a panic in the loop so one misbehaving
// client cannot take down the host.
func (h *Host) serveClient(ctx context.Context, conn transport.Conn) {
	log := logger.For("host.client")
	defer func() {
		if r := recover(); r != nil {
			log.Error("client worker panic recovered", "panic", r)
		}
	}()

	if err := h.handshake(conn); err != nil {
		log.Warn("handshake failed", "error", err)
		return
	}

	w := &clientWorker{host: h, conn: conn, log: log}
	defer w.detach()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		t, payload, err := protocol.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("read frame failed", "error", err)
			}
			return
		}
		if err := w.dispatch(ctx, t, payload); err != nil {
			log.Warn("dispatch failed", "type", t, "error", err)
			return
		}
	}
}

func (h *Host) handshake(conn transport.Conn) error {
	t, payload, err := protocol.ReadFrame(conn)
	if err != nil {
		return err
	}
	if t != protocol.TypeHello {
		return errors.New("host: expected Hello as first frame")
	}
	if _, err := protocol.DecodeHello(payload); err != nil {
		return err
	}
	return protocol.WriteFrame(conn, protocol.TypeHello, protocol.EncodeHello(protocol.ProtocolVersion))
}

// clientWorker tracks the one attachment a single client connection may
// hold at a time.
type clientWorker struct {
	host *Host
	conn transport.Conn
	log  interface {
		Warn(string, ...any)
		Info(string, ...any)
		Debug(string, ...any)
	}

	writeMu sync.Mutex

	attachedID    string
	attachedSubID int
	forwarderStop context.CancelFunc
}

// writeFrame serializes frame writes: the read-dispatch loop and the
// attachment's forwarder goroutine both write to conn, and WriteFrame's
// header-then-payload writes must not interleave between them.
func (w *clientWorker) writeFrame(t protocol.MessageType, payload []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return protocol.WriteFrame(w.conn, t, payload)
}

func (w *clientWorker) dispatch(ctx context.Context, t protocol.MessageType, payload []byte) error {
	switch t {
	case protocol.TypeListSessions:
		return w.handleListSessions()
	case protocol.TypeCreateSession:
		return w.handleCreateSession(payload)
	case protocol.TypeAttach:
		return w.handleAttach(ctx, payload)
	case protocol.TypeDetach:
		w.detach()
		return nil
	case protocol.TypeInput:
		return w.handleInput(payload)
	case protocol.TypeResize:
		return w.handleResize(payload)
	case protocol.TypeKillSession:
		return w.handleKillSession(payload)
	default:
		return w.writeFrame(protocol.TypeError, protocol.EncodeError("unknown message type"))
	}
}

func (w *clientWorker) handleListSessions() error {
	sessions := w.host.ListSessions()
	infos := make([]protocol.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, sessionInfo(s))
	}
	return w.writeFrame(protocol.TypeSessionList, protocol.EncodeSessionList(infos))
}

func (w *clientWorker) handleCreateSession(payload []byte) error {
	req, err := protocol.DecodeCreateSession(payload)
	if err != nil {
		return err
	}
	env := make([]string, 0, len(req.Environment))
	for _, kv := range req.Environment {
		env = append(env, kv[0]+"="+kv[1])
	}
	s, err := w.host.CreateSession(req.ID, req.Command, req.CWD, req.Arguments, env, int(req.Columns), int(req.Rows), 0)
	if err != nil {
		return w.writeFrame(protocol.TypeError, protocol.EncodeError(err.Error()))
	}
	return w.writeFrame(protocol.TypeSessionCreated, protocol.EncodeSessionCreated(sessionInfo(s)))
}

func (w *clientWorker) handleAttach(ctx context.Context, payload []byte) error {
	id := protocol.DecodeAttach(payload)
	s, err := w.host.GetSession(id)
	if err != nil {
		return w.writeFrame(protocol.TypeError, protocol.EncodeError(err.Error()))
	}

	w.detach()

	snapshot, subID, stream := s.Subscribe()
	if err := w.writeFrame(protocol.TypeAttached, protocol.EncodeAttached(sessionInfo(s), snapshot)); err != nil {
		s.Unsubscribe(subID)
		return err
	}
	w.attachedID = id
	w.attachedSubID = subID
	w.log.Info("client attached", "session", id)

	fwCtx, cancel := context.WithCancel(ctx)
	w.forwarderStop = cancel
	go w.forward(fwCtx, s, subID, stream)
	return nil
}

// forward drains a subscriber stream and emits Output frames until the
// stream ends (session exit) or the attachment is cancelled (Detach, or a
// new Attach replacing this one).
func (w *clientWorker) forward(ctx context.Context, s *session.Session, subID int, stream <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-stream:
			if !ok {
				w.writeFrame(protocol.TypeSessionExited, protocol.EncodeSessionExited(s.ID, int32(s.ExitCode())))
				return
			}
			if err := w.writeFrame(protocol.TypeOutput, protocol.EncodeOutput(data)); err != nil {
				s.Unsubscribe(subID)
				return
			}
		}
	}
}

func (w *clientWorker) handleInput(payload []byte) error {
	if w.attachedID == "" {
		return nil
	}
	s, err := w.host.GetSession(w.attachedID)
	if err != nil {
		return nil
	}
	return s.SendInput(protocol.DecodeInput(payload))
}

func (w *clientWorker) handleResize(payload []byte) error {
	if w.attachedID == "" {
		return nil
	}
	cols, rows, err := protocol.DecodeResize(payload)
	if err != nil {
		return err
	}
	s, err := w.host.GetSession(w.attachedID)
	if err != nil {
		return nil
	}
	return s.Resize(int(cols), int(rows))
}

func (w *clientWorker) handleKillSession(payload []byte) error {
	id, force, err := protocol.DecodeKillSession(payload)
	if err != nil {
		return err
	}
	if err := w.host.KillSession(id, force); err != nil {
		return w.writeFrame(protocol.TypeError, protocol.EncodeError(err.Error()))
	}
	return nil
}

// detach cancels any active forwarder and drops the subscription, leaving
// the worker ready for a fresh Attach.
func (w *clientWorker) detach() {
	if w.forwarderStop != nil {
		w.forwarderStop()
		w.forwarderStop = nil
	}
	if w.attachedID != "" {
		if s, err := w.host.GetSession(w.attachedID); err == nil {
			s.Unsubscribe(w.attachedSubID)
		}
		w.log.Debug("client detached", "session", w.attachedID)
		w.attachedID = ""
	}
}
