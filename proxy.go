package servhub

import (
	"io"
	"sync"
)

// Proxy is a caller-owned handle on a resolved service: either a live
// protocol connection to an out-of-process provider, or an in-process
// instance. Ownership is exclusive; a proxy is never shared between two
// owners, and only the owner closes it. Close on every exit path,
// cancellation and error paths included.
type Proxy struct {
	moniker  Moniker
	conn     *Connection
	instance any
	opts     ActivationOptions
	broker   *Broker

	closeOnce sync.Once
	closeErr  error
}

func (p *Proxy) Moniker() Moniker {
	return p.moniker
}

// Connection returns the protocol connection behind a remote-provided
// service, nil for in-process ones.
func (p *Proxy) Connection() *Connection {
	return p.conn
}

// Instance returns the in-process service instance, nil for remote ones.
func (p *Proxy) Instance() any {
	return p.instance
}

// ActivationOptions returns the options the service was activated with,
// transport hints included.
func (p *Proxy) ActivationOptions() ActivationOptions {
	return p.opts
}

// Close releases the channel (or the instance, when it is an io.Closer).
// Double-close is a no-op returning the first result.
func (p *Proxy) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.release()
		if p.broker != nil {
			p.broker.drop(p)
		}
	})
	return p.closeErr
}

func (p *Proxy) release() error {
	if p.conn != nil {
		return p.conn.Close()
	}
	if closer, ok := p.instance.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
