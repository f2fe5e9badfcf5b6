package servhub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-metrics"
)

// ConnectionHandler serves one inbound connection. The context is cancelled
// when the host closes; the handler owns conn and must Close it.
type ConnectionHandler func(ctx context.Context, conn *Connection)

// ChannelListener binds the hosting side of a named channel.
type ChannelListener interface {
	ListenChannel(name string) (net.Listener, error)
}

// HostConfig configures a ServiceHost. The zero value listens on Unix
// sockets under os.TempDir() and logs through slog.Default().
type HostConfig struct {
	Listener     ChannelListener
	LogHandler   slog.Handler
	MetricSink   metrics.MetricSink
	MetricLabels []metrics.Label
}

// ServiceHost is the party a RetryingConnector dials: it binds the derived
// channel name, accepts raw channels, frames each one per the service's
// descriptor and hands the resulting connection to the handler.
type ServiceHost struct {
	desc     Descriptor
	handler  ConnectionHandler
	listener ChannelListener
	logger   *slog.Logger
	msink    metrics.MetricSink
	mLabels  []metrics.Label

	lk          sync.Mutex
	ln          net.Listener
	channelName string
	closed      bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewServiceHost(desc Descriptor, handler ConnectionHandler, cfg *HostConfig) (*ServiceHost, error) {
	if handler == nil {
		return nil, errors.New("host: handler is required")
	}
	// A bad formatter/framing pair must fail here, not on the first accept.
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &HostConfig{}
	}

	h := &ServiceHost{
		desc:     desc,
		handler:  handler,
		listener: cfg.Listener,
		mLabels:  append(cfg.MetricLabels, LabelService.M(desc.Moniker.Name)),
	}
	if h.listener == nil {
		h.listener = &PipeListener{}
	}
	if cfg.LogHandler != nil {
		h.logger = slog.New(cfg.LogHandler)
	} else {
		h.logger = slog.Default()
	}
	if cfg.MetricSink != nil {
		h.msink = cfg.MetricSink
	} else {
		h.msink = metrics.Default()
	}
	return h, nil
}

// Listen binds the channel and starts accepting. An empty channelName
// derives one from the moniker plus a fresh disambiguator; the returned
// name is what clients proffer or dial.
func (h *ServiceHost) Listen(channelName string) (string, error) {
	if channelName == "" {
		channelName = ChannelName(h.desc.Moniker, uuid.NewString()[:8])
	}

	h.lk.Lock()
	defer h.lk.Unlock()
	if h.closed {
		return "", ErrHostClosed
	}
	if h.ln != nil {
		return "", fmt.Errorf("host: already listening on %q", h.channelName)
	}

	ln, err := h.listener.ListenChannel(channelName)
	if err != nil {
		return "", fmt.Errorf("host: channel %q: %w", channelName, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.ln = ln
	h.channelName = channelName
	h.cancel = cancel

	h.wg.Add(1)
	go h.acceptLoop(ctx, ln)

	h.logger.Info("service host listening",
		LabelService.L(h.desc.Moniker.String()),
		LabelChannel.L(channelName),
	)
	return channelName, nil
}

func (h *ServiceHost) ChannelName() string {
	h.lk.Lock()
	defer h.lk.Unlock()
	return h.channelName
}

func (h *ServiceHost) acceptLoop(ctx context.Context, ln net.Listener) {
	defer h.wg.Done()
	for {
		raw, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			h.msink.IncrCounterWithLabels(MetricHostAcceptErrCount, 1.0, h.mLabels)
			h.logger.Warn("accept failed", LabelError.L(err))
			continue
		}

		conn, err := h.desc.ConstructConnection(raw)
		if err != nil {
			raw.Close()
			continue
		}

		h.msink.IncrCounterWithLabels(MetricHostAcceptCount, 1.0, h.mLabels)
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.handler(ctx, conn)
		}()
	}
}

// Close stops accepting, cancels in-flight handler contexts and waits for
// them to return. Idempotent.
func (h *ServiceHost) Close() error {
	h.lk.Lock()
	if h.closed {
		h.lk.Unlock()
		return nil
	}
	h.closed = true
	ln := h.ln
	cancel := h.cancel
	h.lk.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	if cancel != nil {
		cancel()
	}
	h.wg.Wait()
	return err
}
