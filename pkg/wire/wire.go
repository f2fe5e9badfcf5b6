// Package wire carries the byte-level conventions of a servhub connection:
// how message boundaries are drawn on a duplex channel (framing) and how a
// message becomes bytes (codec). The two concerns are independent; a
// descriptor picks one of each and the connection layer composes them.
package wire

import "errors"

var (
	ErrFrameTooLarge   = errors.New("wire: frame exceeds the size limit")
	ErrMalformedHeader = errors.New("wire: malformed frame header")
)

// Codec turns messages into payload bytes and back.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error

	// ContentType names the encoding for header-delimited framing.
	ContentType() string

	// Binary reports whether payloads are a binary encoding, which rules
	// out text-oriented framings.
	Binary() bool
}

// FrameConn exchanges delimited payloads over a duplex byte channel. It
// owns the channel: Close releases it.
//
// WriteFrame and ReadFrame are individually not safe for concurrent use;
// callers serialize writes and reads separately (see servhub.Connection).
type FrameConn interface {
	WriteFrame(payload []byte) error
	ReadFrame() ([]byte, error)
	Close() error
}
