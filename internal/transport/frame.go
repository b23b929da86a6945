package transport

import (
	"fmt"
	"io"
)

// MaxFrameSize is the largest payload a single frame may carry: a 3-byte
// little-endian length prefix tops out at 16 MiB - 1 (§6.1).
const MaxFrameSize = 1<<24 - 1

// ReadFrame reads one length-prefixed frame: a 3-byte little-endian unsigned
// length followed by that many payload bytes. Both the handshake and all
// subsequent traffic use this framing; there is no magic byte and no
// version field.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [3]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := uint32(lenBuf[0]) | uint32(lenBuf[1])<<8 | uint32(lenBuf[2])<<16

	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// WriteFrame writes payload as one length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("transport: frame of %d bytes exceeds max %d", len(payload), MaxFrameSize)
	}

	var lenBuf [3]byte
	n := uint32(len(payload))
	lenBuf[0] = byte(n)
	lenBuf[1] = byte(n >> 8)
	lenBuf[2] = byte(n >> 16)

	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.Write(payload)
	return err
}
