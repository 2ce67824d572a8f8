// Package wire implements the host's frame header: a fixed magic prefix
// followed by a big-endian length, prepended to every outbound buffer
// before it reaches the transport.
package wire

import (
	"encoding/binary"
	"fmt"
)

// HeaderLen is the size of the magic+length prefix.
const HeaderLen = 8

// magic is the four-byte token identifying a framed buffer.
var magic = [4]byte{0x22, 0x40, 0x08, 0x91}

// Seal writes the magic token and payload length into the first
// HeaderLen bytes of buf. buf must already have HeaderLen bytes of
// space reserved at its start; only those bytes are modified.
func Seal(buf []byte) error {
	if len(buf) < HeaderLen {
		return fmt.Errorf("wire: buffer too short to seal: %d bytes", len(buf))
	}
	copy(buf[:4], magic[:])
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(buf)-HeaderLen))
	return nil
}

// SealPayload returns a new buffer with the header prepended to payload.
func SealPayload(payload []byte) []byte {
	buf := make([]byte, HeaderLen+len(payload))
	copy(buf[HeaderLen:], payload)
	Seal(buf) //nolint:errcheck // buf is always long enough by construction
	return buf
}

// Unseal validates the header at the start of header and returns the
// payload length it declares.
func Unseal(header []byte) (payloadLen uint32, err error) {
	if len(header) < HeaderLen {
		return 0, fmt.Errorf("wire: short header: %d bytes", len(header))
	}
	if header[0] != magic[0] || header[1] != magic[1] || header[2] != magic[2] || header[3] != magic[3] {
		return 0, fmt.Errorf("wire: magic token mismatch: got %x, want %x", header[:4], magic)
	}
	return binary.BigEndian.Uint32(header[4:8]), nil
}
