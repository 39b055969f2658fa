package protocol

import (
	"encoding/binary"
	"fmt"
)

func encodeSessionInfo(buf []byte, s SessionInfo) []byte {
	buf = appendVLQString(buf, s.ID)
	buf = appendVLQString(buf, s.Command)
	buf = appendVLQString(buf, s.WorkingDirectory)
	buf = append(buf, byte(s.State))
	var created [8]byte
	binary.BigEndian.PutUint64(created[:], uint64(s.CreatedMs))
	buf = append(buf, created[:]...)
	var exit [4]byte
	binary.BigEndian.PutUint32(exit[:], uint32(s.ExitCode))
	buf = append(buf, exit[:]...)
	var dims [4]byte
	binary.BigEndian.PutUint16(dims[0:2], s.Columns)
	binary.BigEndian.PutUint16(dims[2:4], s.Rows)
	buf = append(buf, dims[:]...)
	return buf
}

func decodeSessionInfo(buf []byte, offset int) (SessionInfo, int, error) {
	var s SessionInfo
	var err error
	s.ID, offset, err = readVLQString(buf, offset)
	if err != nil {
		return s, 0, err
	}
	s.Command, offset, err = readVLQString(buf, offset)
	if err != nil {
		return s, 0, err
	}
	s.WorkingDirectory, offset, err = readVLQString(buf, offset)
	if err != nil {
		return s, 0, err
	}
	if offset+1+8+4+2+2 > len(buf) {
		return s, 0, fmt.Errorf("%w: truncated session record", ErrProtocol)
	}
	s.State = SessionState(buf[offset])
	offset++
	s.CreatedMs = int64(binary.BigEndian.Uint64(buf[offset : offset+8]))
	offset += 8
	s.ExitCode = int32(binary.BigEndian.Uint32(buf[offset : offset+4]))
	offset += 4
	s.Columns = binary.BigEndian.Uint16(buf[offset : offset+2])
	offset += 2
	s.Rows = binary.BigEndian.Uint16(buf[offset : offset+2])
	offset += 2
	return s, offset, nil
}

// EncodeHello builds a Hello payload: a single protocol version byte.
func EncodeHello(version uint8) []byte { return []byte{version} }

// DecodeHello reads the protocol version byte.
func DecodeHello(payload []byte) (uint8, error) {
	if len(payload) != 1 {
		return 0, fmt.Errorf("%w: Hello payload must be 1 byte", ErrProtocol)
	}
	return payload[0], nil
}

// EncodeSessionList builds a SessionList payload.
func EncodeSessionList(sessions []SessionInfo) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, uint16(len(sessions)))
	for _, s := range sessions {
		buf = encodeSessionInfo(buf, s)
	}
	return buf
}

// DecodeSessionList parses a SessionList payload.
func DecodeSessionList(payload []byte) ([]SessionInfo, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("%w: truncated SessionList", ErrProtocol)
	}
	count := binary.BigEndian.Uint16(payload[0:2])
	offset := 2
	out := make([]SessionInfo, 0, count)
	for i := 0; i < int(count); i++ {
		s, next, err := decodeSessionInfo(payload, offset)
		if err != nil {
			return nil, err
		}
		offset = next
		out = append(out, s)
	}
	return out, nil
}

// CreateSessionRequest is CreateSession's decoded payload.
type CreateSessionRequest struct {
	ID          string
	Command     string
	CWD         string
	Columns     uint16
	Rows        uint16
	Arguments   []string
	Environment [][2]string
}

// EncodeCreateSession builds a CreateSession payload.
func EncodeCreateSession(req CreateSessionRequest) []byte {
	buf := appendVLQString(nil, req.ID)
	buf = appendVLQString(buf, req.Command)
	buf = appendVLQString(buf, req.CWD)
	var dims [4]byte
	binary.BigEndian.PutUint16(dims[0:2], req.Columns)
	binary.BigEndian.PutUint16(dims[2:4], req.Rows)
	buf = append(buf, dims[:]...)

	var argc [2]byte
	binary.BigEndian.PutUint16(argc[:], uint16(len(req.Arguments)))
	buf = append(buf, argc[:]...)
	for _, a := range req.Arguments {
		buf = appendVLQString(buf, a)
	}

	var envc [2]byte
	binary.BigEndian.PutUint16(envc[:], uint16(len(req.Environment)))
	buf = append(buf, envc[:]...)
	for _, kv := range req.Environment {
		buf = appendVLQString(buf, kv[0])
		buf = appendVLQString(buf, kv[1])
	}
	return buf
}

// DecodeCreateSession parses a CreateSession payload.
func DecodeCreateSession(payload []byte) (CreateSessionRequest, error) {
	var req CreateSessionRequest
	var err error
	offset := 0
	req.ID, offset, err = readVLQString(payload, offset)
	if err != nil {
		return req, err
	}
	req.Command, offset, err = readVLQString(payload, offset)
	if err != nil {
		return req, err
	}
	req.CWD, offset, err = readVLQString(payload, offset)
	if err != nil {
		return req, err
	}
	if offset+4 > len(payload) {
		return req, fmt.Errorf("%w: truncated CreateSession dimensions", ErrProtocol)
	}
	req.Columns = binary.BigEndian.Uint16(payload[offset : offset+2])
	req.Rows = binary.BigEndian.Uint16(payload[offset+2 : offset+4])
	offset += 4

	if offset+2 > len(payload) {
		return req, fmt.Errorf("%w: truncated CreateSession argc", ErrProtocol)
	}
	argc := binary.BigEndian.Uint16(payload[offset : offset+2])
	offset += 2
	for i := 0; i < int(argc); i++ {
		var a string
		a, offset, err = readVLQString(payload, offset)
		if err != nil {
			return req, err
		}
		req.Arguments = append(req.Arguments, a)
	}

	if offset+2 > len(payload) {
		return req, fmt.Errorf("%w: truncated CreateSession envc", ErrProtocol)
	}
	envc := binary.BigEndian.Uint16(payload[offset : offset+2])
	offset += 2
	for i := 0; i < int(envc); i++ {
		var k, v string
		k, offset, err = readVLQString(payload, offset)
		if err != nil {
			return req, err
		}
		v, offset, err = readVLQString(payload, offset)
		if err != nil {
			return req, err
		}
		req.Environment = append(req.Environment, [2]string{k, v})
	}
	return req, nil
}

// EncodeSessionCreated / DecodeSessionCreated carry a bare SessionInfo.
func EncodeSessionCreated(s SessionInfo) []byte { return encodeSessionInfo(nil, s) }

func DecodeSessionCreated(payload []byte) (SessionInfo, error) {
	s, _, err := decodeSessionInfo(payload, 0)
	return s, err
}

// EncodeAttach / DecodeAttach carry a bare session id, UTF-8, unframed
// (no length prefix — the frame length is the string length).
func EncodeAttach(id string) []byte { return []byte(id) }

func DecodeAttach(payload []byte) string { return string(payload) }

// EncodeAttached builds an Attached payload: Session record, i32 output
// length, then that many raw output bytes.
func EncodeAttached(s SessionInfo, output []byte) []byte {
	buf := encodeSessionInfo(nil, s)
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(output)))
	buf = append(buf, l[:]...)
	buf = append(buf, output...)
	return buf
}

// AttachedMessage is Attached's decoded payload.
type AttachedMessage struct {
	Session SessionInfo
	Output  []byte
}

func DecodeAttached(payload []byte) (AttachedMessage, error) {
	var msg AttachedMessage
	s, offset, err := decodeSessionInfo(payload, 0)
	if err != nil {
		return msg, err
	}
	if offset+4 > len(payload) {
		return msg, fmt.Errorf("%w: truncated Attached output_len", ErrProtocol)
	}
	outLen := binary.BigEndian.Uint32(payload[offset : offset+4])
	offset += 4
	if offset+int(outLen) > len(payload) {
		return msg, fmt.Errorf("%w: Attached output_len exceeds payload", ErrProtocol)
	}
	msg.Session = s
	msg.Output = payload[offset : offset+int(outLen)]
	return msg, nil
}

// EncodeInput / DecodeOutput are raw pass-through payloads.
func EncodeInput(data []byte) []byte  { return data }
func DecodeInput(payload []byte) []byte { return payload }
func EncodeOutput(data []byte) []byte { return data }
func DecodeOutput(payload []byte) []byte { return payload }

// EncodeResize / DecodeResize: u16 cols, u16 rows, big-endian.
func EncodeResize(cols, rows uint16) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], cols)
	binary.BigEndian.PutUint16(buf[2:4], rows)
	return buf
}

func DecodeResize(payload []byte) (cols, rows uint16, err error) {
	if len(payload) != 4 {
		return 0, 0, fmt.Errorf("%w: Resize payload must be 4 bytes", ErrProtocol)
	}
	return binary.BigEndian.Uint16(payload[0:2]), binary.BigEndian.Uint16(payload[2:4]), nil
}

// EncodeKillSession / DecodeKillSession: id(str), force(u8 bool).
func EncodeKillSession(id string, force bool) []byte {
	buf := appendVLQString(nil, id)
	if force {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func DecodeKillSession(payload []byte) (id string, force bool, err error) {
	id, offset, err := readVLQString(payload, 0)
	if err != nil {
		return "", false, err
	}
	if offset >= len(payload) {
		return "", false, fmt.Errorf("%w: truncated KillSession force flag", ErrProtocol)
	}
	return id, payload[offset] != 0, nil
}

// EncodeSessionExited / DecodeSessionExited: id(str), i32 exit_code.
func EncodeSessionExited(id string, exitCode int32) []byte {
	buf := appendVLQString(nil, id)
	var ec [4]byte
	binary.BigEndian.PutUint32(ec[:], uint32(exitCode))
	return append(buf, ec[:]...)
}

func DecodeSessionExited(payload []byte) (id string, exitCode int32, err error) {
	id, offset, err := readVLQString(payload, 0)
	if err != nil {
		return "", 0, err
	}
	if offset+4 > len(payload) {
		return "", 0, fmt.Errorf("%w: truncated SessionExited exit_code", ErrProtocol)
	}
	return id, int32(binary.BigEndian.Uint32(payload[offset : offset+4])), nil
}

// EncodeError / DecodeError: a bare UTF-8 message.
func EncodeError(message string) []byte  { return []byte(message) }
func DecodeError(payload []byte) string  { return string(payload) }
