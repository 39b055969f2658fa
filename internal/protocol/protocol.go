// Package protocol implements the length-prefixed, typed binary wire format
// exchanged between a session host and its clients.
package protocol

import "errors"

// MessageType identifies a frame's payload layout.
type MessageType byte

const (
	TypeHello         MessageType = 0
	TypeListSessions  MessageType = 1
	TypeSessionList   MessageType = 2
	TypeCreateSession MessageType = 3
	TypeSessionCreated MessageType = 4
	TypeAttach        MessageType = 5
	TypeAttached      MessageType = 6
	TypeDetach        MessageType = 7
	TypeInput         MessageType = 8
	TypeOutput        MessageType = 9
	TypeResize        MessageType = 10
	TypeKillSession   MessageType = 11
	TypeSessionExited MessageType = 12
	TypeError         MessageType = 255
)

// MaxPayloadLen is the largest payload a frame may carry; anything longer
// is a protocol error and the connection must be terminated.
const MaxPayloadLen = 10 * 1024 * 1024

// ProtocolVersion is this implementation's Hello version byte.
const ProtocolVersion = 1

// NoExitCode is the wire sentinel for an absent exit code.
const NoExitCode = -1

var (
	ErrProtocol      = errors.New("protocol error")
	ErrPayloadTooLarge = errors.New("protocol: payload exceeds maximum frame length")
	ErrIncompatibleVersion = errors.New("protocol: incompatible Hello version")
)

// SessionState mirrors session.State's ordinal encoding on the wire.
type SessionState uint8

const (
	SessionStarting SessionState = iota
	SessionRunning
	SessionExiting
	SessionExited
	SessionFailed
)

// SessionInfo is the Session wire record: (id, command, working_directory,
// state, created_ms, exit_code, columns, rows).
type SessionInfo struct {
	ID               string
	Command          string
	WorkingDirectory string
	State            SessionState
	CreatedMs        int64
	ExitCode         int32
	Columns          uint16
	Rows             uint16
}
