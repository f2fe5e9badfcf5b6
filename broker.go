package servhub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-metrics"
)

// Broker matches service requests to providers and turns a successful
// match into an owned Proxy. It is safe for any number of concurrent
// callers; registrations and proffers may happen at any time and are never
// observed half-applied by a concurrent resolution.
type Broker struct {
	cfg       config
	logger    *slog.Logger
	msink     metrics.MetricSink
	reg       *registry
	connector *RetryingConnector

	lk       sync.Mutex
	shutdown bool
	proxies  map[*Proxy]struct{}
}

// Create builds an isolated broker. Most processes use a single broker for
// their lifetime but tests (and nested scopes) construct their own; see
// Default for the process-wide instance.
func Create(opts ...Option) (*Broker, error) {
	b := &Broker{
		proxies: make(map[*Proxy]struct{}),
	}

	for _, opt := range opts {
		if err := opt(&b.cfg); err != nil {
			return nil, fmt.Errorf("broker: invalid options: %w", err)
		}
	}

	if b.cfg.logHandler != nil {
		b.logger = slog.New(b.cfg.logHandler)
	} else {
		b.logger = slog.Default()
	}
	if b.cfg.msink == nil {
		b.cfg.msink = metrics.Default()
	}
	b.msink = b.cfg.msink

	dialer := b.cfg.dialer
	if dialer == nil {
		dialer = &PipeDialer{Dir: b.cfg.channelDir}
	}

	connector, err := NewConnector(ConnectorConfig{
		Dialer:        dialer,
		Strategy:      b.cfg.connStrategy,
		RetryInterval: b.cfg.retryInterval,
		MaxRetries:    b.cfg.maxRetries,
		NotFoundLimit: b.cfg.notFoundLimit,
		LogHandler:    b.cfg.logHandler,
		MetricSink:    b.cfg.msink,
		MetricLabels:  b.cfg.metricLabels,
	})
	if err != nil {
		return nil, err
	}
	b.connector = connector
	b.reg = newRegistry(b.logger)
	return b, nil
}

var (
	defaultBroker     *Broker
	defaultBrokerOnce sync.Once
)

// Default returns the process-wide broker, created on first use with
// default options. There is no implicit re-initialization; code that needs
// isolation (tests in particular) calls Create instead.
func Default() *Broker {
	defaultBrokerOnce.Do(func() {
		b, err := Create()
		if err != nil {
			panic("servhub: default broker: " + err.Error())
		}
		defaultBroker = b
	})
	return defaultBroker
}

// Register declares a service name and its audience gate before any
// provider is known. Registering the same name again with a conflicting
// registration fails with ErrDuplicateRegistration; an identical one is a
// no-op.
func (b *Broker) Register(name string, reg ServiceRegistration) error {
	return b.reg.register(name, reg, false)
}

// ForceRegister replaces a name's registration unconditionally. This is
// the explicit override path; Register never overrides.
func (b *Broker) ForceRegister(name string, reg ServiceRegistration) error {
	return b.reg.register(name, reg, true)
}

// ProfferFactory offers an in-process provider for the descriptor's
// moniker. A nil-version moniker proffers the catch-all. Proffering the
// same (name, version) again replaces the earlier provider
// (last-proffer-wins).
func (b *Broker) ProfferFactory(desc Descriptor, factory ServiceFactory) error {
	if factory == nil {
		return errors.New("broker: factory is required")
	}
	return b.reg.proffer(&offer{descriptor: desc, factory: factory})
}

// ProfferChannel offers an out-of-process provider listening on the named
// channel. An empty channelName derives the deterministic default from the
// moniker. The descriptor's formatter/framing pair is validated here so a
// bad combination fails at proffer time, not on first use.
func (b *Broker) ProfferChannel(desc Descriptor, channelName string) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	if channelName == "" {
		channelName = ChannelName(desc.Moniker, "")
	}
	return b.reg.proffer(&offer{descriptor: desc, channel: channelName})
}

// Unproffer withdraws a provider; Unregister drops a name entirely.
func (b *Broker) Unproffer(m Moniker) bool {
	return b.reg.unproffer(m)
}

func (b *Broker) Unregister(name string) bool {
	return b.reg.unregister(name)
}

// ListVersions returns the proffered versions of a name ascending, the
// version-agnostic catch-all (nil) first, from one consistent snapshot.
func (b *Broker) ListVersions(name string) []*Version {
	return b.reg.listVersions(name)
}

// ScanServices lists, in order, the names under the prefix that currently
// have a provider.
func (b *Broker) ScanServices(prefix string) []string {
	return b.reg.scan(prefix)
}

// RequestProxy resolves the moniker for the caller and returns an owned
// proxy on success. Failures carry the moniker and the failing step;
// cancellation surfaces as ctx.Err() no matter which step it interrupted.
func (b *Broker) RequestProxy(ctx context.Context, m Moniker, caller Caller, opts ActivationOptions) (*Proxy, error) {
	b.lk.Lock()
	closed := b.shutdown
	b.lk.Unlock()
	if closed {
		return nil, ErrBrokerClosed
	}

	of, err := b.reg.resolve(m, caller)
	if err != nil {
		return nil, b.fail(ctx, m, "resolve", err)
	}
	b.msink.IncrCounterWithLabels(
		MetricResolveCount,
		1.0,
		append(b.cfg.metricLabels, LabelService.M(m.Name)),
	)

	if m.Version != nil {
		opts = opts.WithActivationArgument(ArgRequestedVersion, m.Version.String())
	}
	if b.cfg.auth != nil {
		opts = opts.withCredentials(b.cfg.auth.Credentials())
	}

	if of.remote() {
		// Transport hints merge under the never-overwrite rule, so a
		// caller-supplied channel hint survives.
		opts = opts.WithActivationArgument(ArgChannelName, of.channel)

		channel, err := b.connector.Connect(ctx, of.channel)
		if err != nil {
			return nil, b.fail(ctx, m, "connect", err)
		}

		conn, err := of.descriptor.ConstructConnection(channel)
		if err != nil {
			// The channel was acquired but the descriptor refused it; it
			// must not leak on this path.
			channel.Close()
			return nil, b.fail(ctx, m, "bind", err)
		}
		return b.adopt(&Proxy{moniker: m, conn: conn, opts: opts, broker: b})
	}

	instance, err := of.factory(ctx, b, opts)
	if err != nil {
		return nil, b.fail(ctx, m, "activate", err)
	}
	return b.adopt(&Proxy{moniker: m, instance: instance, opts: opts, broker: b})
}

// fail wraps a step failure with enough context to diagnose it. A pending
// cancellation wins over whatever the step reported, so callers never log
// a cancelled request as a fault.
func (b *Broker) fail(ctx context.Context, m Moniker, step string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		err = cerr
	}
	b.msink.IncrCounterWithLabels(
		MetricResolveErrorCount,
		1.0,
		append(b.cfg.metricLabels, LabelService.M(m.Name), LabelStep.M(step)),
	)
	return fmt.Errorf("request %q: %s: %w", m, step, err)
}

func (b *Broker) adopt(p *Proxy) (*Proxy, error) {
	b.lk.Lock()
	if b.shutdown {
		b.lk.Unlock()
		p.release()
		return nil, ErrBrokerClosed
	}
	b.proxies[p] = struct{}{}
	b.lk.Unlock()

	b.msink.IncrCounterWithLabels(
		MetricProxyOpenCount,
		1.0,
		append(b.cfg.metricLabels, LabelService.M(p.moniker.Name)),
	)
	return p, nil
}

func (b *Broker) drop(p *Proxy) {
	b.lk.Lock()
	delete(b.proxies, p)
	b.lk.Unlock()

	b.msink.IncrCounterWithLabels(
		MetricProxyCloseCount,
		1.0,
		append(b.cfg.metricLabels, LabelService.M(p.moniker.Name)),
	)
}

// Shutdown stops accepting requests and closes every proxy the broker
// still tracks. Idempotent.
func (b *Broker) Shutdown() error {
	b.lk.Lock()
	if b.shutdown {
		b.lk.Unlock()
		return nil
	}
	b.shutdown = true
	remaining := make([]*Proxy, 0, len(b.proxies))
	for p := range b.proxies {
		remaining = append(remaining, p)
	}
	b.lk.Unlock()

	start := time.Now()
	b.logger.Info("shutting down...", "open_proxies", len(remaining))
	for _, p := range remaining {
		p.Close()
	}
	b.logger.Info("shutdown: completed", LabelDuration.L(time.Since(start)))
	return nil
}
