package servhub

import (
	"sync"

	"github.com/amarant/servhub/pkg/wire"
)

// Connection is a protocol-level connection over a duplex byte channel:
// messages in, messages out, framed and encoded per the descriptor that
// built it. It owns the underlying channel exclusively; Close releases it
// and is safe to call more than once.
//
// Send and Recv are each serialized internally, so one writer and one
// reader may run concurrently.
type Connection struct {
	desc  Descriptor
	codec wire.Codec
	frame wire.FrameConn

	sendLk sync.Mutex
	recvLk sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func newConnection(desc Descriptor, codec wire.Codec, frame wire.FrameConn) *Connection {
	return &Connection{
		desc:  desc,
		codec: codec,
		frame: frame,
	}
}

func (c *Connection) Descriptor() Descriptor {
	return c.desc
}

// Send encodes msg and writes it as one frame.
func (c *Connection) Send(msg any) error {
	payload, err := c.codec.Marshal(msg)
	if err != nil {
		return err
	}
	c.sendLk.Lock()
	defer c.sendLk.Unlock()
	return c.frame.WriteFrame(payload)
}

// Recv reads one frame and decodes it into msg.
func (c *Connection) Recv(msg any) error {
	c.recvLk.Lock()
	payload, err := c.frame.ReadFrame()
	c.recvLk.Unlock()
	if err != nil {
		return err
	}
	return c.codec.Unmarshal(payload, msg)
}

// Close releases the underlying channel. Double-close is a no-op returning
// the first close's result.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.frame.Close()
	})
	return c.closeErr
}
