package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteFrame writes a big-endian u32 length, a u8 type, then payload.
func WriteFrame(w io.Writer, t MessageType, payload []byte) error {
	if len(payload) > MaxPayloadLen {
		return ErrPayloadTooLarge
	}
	header := make([]byte, 5)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(payload)))
	header[4] = byte(t)
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one frame, fully retrying short reads.
func ReadFrame(r io.Reader) (MessageType, []byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	length := binary.BigEndian.Uint32(header[0:4])
	if length > MaxPayloadLen {
		return 0, nil, fmt.Errorf("%w: frame length %d exceeds %d", ErrProtocol, length, MaxPayloadLen)
	}
	t := MessageType(header[4])
	if length == 0 {
		return t, nil, nil
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return t, payload, nil
}
