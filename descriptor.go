package servhub

import (
	"fmt"
	"io"

	"github.com/amarant/servhub/pkg/wire"
)

// Formatter selects how messages become payload bytes.
type Formatter uint8

const (
	// FormatterJSON is the text encoding; valid with every framing.
	FormatterJSON Formatter = iota
	// FormatterCBOR is the compact binary encoding; requires a
	// binary-clean framing.
	FormatterCBOR
)

func (f Formatter) String() string {
	switch f {
	case FormatterJSON:
		return "json"
	case FormatterCBOR:
		return "cbor"
	default:
		return "unknown"
	}
}

func (f Formatter) codec() wire.Codec {
	switch f {
	case FormatterCBOR:
		return wire.CBORCodec{}
	default:
		return wire.JSONCodec{}
	}
}

// Framing selects the message-boundary convention on the wire.
type Framing uint8

const (
	// FramingLengthPrefixed is a 4-byte big-endian length header followed
	// by the payload.
	FramingLengthPrefixed Framing = iota
	// FramingHeaderDelimited is HTTP-like: textual headers terminated by a
	// blank line, Content-Length giving the body size. Text-oriented.
	FramingHeaderDelimited
)

func (fr Framing) String() string {
	switch fr {
	case FramingLengthPrefixed:
		return "length-prefixed"
	case FramingHeaderDelimited:
		return "header-delimited"
	default:
		return "unknown"
	}
}

// Descriptor is an immutable recipe for connecting to a service: which
// formatter and framing the connection speaks. Deriving a variant goes
// through WithFormatter/WithFraming so differing client and server
// preferences can be reconciled without mutating a shared value.
//
// Two descriptors are interchangeable for caching purposes iff moniker,
// formatter and framing are all equal (see Equal and Key).
type Descriptor struct {
	Moniker   Moniker
	Formatter Formatter
	Framing   Framing
}

// NewDescriptor builds the default recipe for a moniker: JSON payloads in
// header-delimited frames.
func NewDescriptor(m Moniker) Descriptor {
	return Descriptor{
		Moniker:   m,
		Formatter: FormatterJSON,
		Framing:   FramingHeaderDelimited,
	}
}

// WithFormatter returns a copy speaking the given formatter.
func (d Descriptor) WithFormatter(f Formatter) Descriptor {
	d.Formatter = f
	return d
}

// WithFraming returns a copy using the given framing.
func (d Descriptor) WithFraming(fr Framing) Descriptor {
	d.Framing = fr
	return d
}

func (d Descriptor) Equal(o Descriptor) bool {
	return d.Moniker.Equal(o.Moniker) &&
		d.Formatter == o.Formatter &&
		d.Framing == o.Framing
}

// Key returns a canonical cache key; equal descriptors share a key.
func (d Descriptor) Key() string {
	return d.Moniker.Key() + "#" + d.Formatter.String() + "#" + d.Framing.String()
}

// Validate checks that the formatter/framing pair is supported: binary
// payloads cannot ride a text-oriented framing.
func (d Descriptor) Validate() error {
	if d.Formatter.codec().Binary() && d.Framing == FramingHeaderDelimited {
		return fmt.Errorf("%w: %s over %s (%q)",
			ErrUnsupportedCombination, d.Formatter, d.Framing, d.Moniker)
	}
	return nil
}

// ConstructConnection binds the descriptor's formatter and framing to a raw
// duplex byte channel. The combination is validated before any byte is
// exchanged; on failure the channel is left untouched and still owned by
// the caller.
func (d Descriptor) ConstructConnection(channel io.ReadWriteCloser) (*Connection, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	codec := d.Formatter.codec()
	var frame wire.FrameConn
	switch d.Framing {
	case FramingHeaderDelimited:
		frame = wire.NewHeaderDelimited(channel, codec.ContentType(), 0)
	default:
		frame = wire.NewLengthPrefixed(channel, 0)
	}
	return newConnection(d, codec, frame), nil
}
