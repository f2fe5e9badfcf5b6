package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultMaxFrame bounds a length-prefixed frame. A peer announcing a
// larger payload is treated as a protocol violation, not an allocation
// request.
const DefaultMaxFrame = 16 << 20

// LengthPrefixed frames payloads as a 4-byte big-endian length followed by
// the payload bytes.
type LengthPrefixed struct {
	rwc      io.ReadWriteCloser
	maxFrame uint32
}

func NewLengthPrefixed(rwc io.ReadWriteCloser, maxFrame uint32) *LengthPrefixed {
	if maxFrame == 0 {
		maxFrame = DefaultMaxFrame
	}
	return &LengthPrefixed{rwc: rwc, maxFrame: maxFrame}
}

func (lp *LengthPrefixed) WriteFrame(payload []byte) error {
	if uint64(len(payload)) > uint64(lp.maxFrame) {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	// Header and payload go out in a single Write so a concurrent-safe
	// caller never interleaves half frames.
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)
	_, err := lp.rwc.Write(buf)
	return err
}

func (lp *LengthPrefixed) ReadFrame() ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(lp.rwc, header[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > lp.maxFrame {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(lp.rwc, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (lp *LengthPrefixed) Close() error {
	return lp.rwc.Close()
}
