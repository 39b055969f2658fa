package protocol

import (
	"encoding/binary"
	"fmt"
)

// appendVLQString appends s length-prefixed with a 7-bit VLQ (stdlib
// varint encoding), followed by its raw UTF-8 bytes.
func appendVLQString(buf []byte, s string) []byte {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
	buf = append(buf, lenBuf[:n]...)
	buf = append(buf, s...)
	return buf
}

// readVLQString reads a VLQ-prefixed string starting at buf[offset],
// returning the string and the offset just past it.
func readVLQString(buf []byte, offset int) (string, int, error) {
	length, n := binary.Uvarint(buf[offset:])
	if n <= 0 {
		return "", 0, fmt.Errorf("%w: malformed string length prefix", ErrProtocol)
	}
	offset += n
	end := offset + int(length)
	if end < offset || end > len(buf) {
		return "", 0, fmt.Errorf("%w: string length %d exceeds remaining payload", ErrProtocol, length)
	}
	return string(buf[offset:end]), end, nil
}
