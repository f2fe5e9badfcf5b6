package servhub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hashicorp/go-metrics"
)

// ConnectStrategy selects how the connector behaves when the channel is not
// immediately available.
type ConnectStrategy uint8

const (
	// SpinWait keeps attempting with a short wait in between. Appropriate
	// when the remote endpoint exists or is about to: a freshly-spawned
	// host whose channel will shortly appear.
	SpinWait ConnectStrategy = iota
	// NoWait probes exactly once and reports the outcome. Appropriate when
	// existence is uncertain and the caller does not want to burn cycles
	// waiting for something that may never appear.
	NoWait
)

func (s ConnectStrategy) String() string {
	if s == NoWait {
		return "no-wait"
	}
	return "spin-wait"
}

const (
	DefaultRetryInterval = 20 * time.Millisecond
	// DefaultNotFoundLimit caps retries on "channel does not exist yet"
	// separately from the general cap: a missing endpoint is expected only
	// briefly around host startup, unlike general contention.
	DefaultNotFoundLimit = 3
)

// ChannelDialer binds a named local duplex channel. Implementations
// classify their failures: ErrChannelNotFound and ErrConnectTimeout (via
// errors.Is) are retryable, anything else is terminal.
type ChannelDialer interface {
	DialChannel(ctx context.Context, name string) (io.ReadWriteCloser, error)
}

// ConnectorConfig configures a RetryingConnector.
type ConnectorConfig struct {
	// Dialer binds the channel. Required.
	Dialer ChannelDialer

	Strategy ConnectStrategy

	// RetryInterval is the fixed wait between attempts (default 20ms).
	RetryInterval time.Duration

	// MaxRetries caps retries after the first attempt; 0 retries
	// indefinitely (until ctx is cancelled).
	MaxRetries int

	// NotFoundLimit caps not-found retries (default 3).
	NotFoundLimit int

	LogHandler   slog.Handler
	MetricSink   metrics.MetricSink
	MetricLabels []metrics.Label
}

// RetryingConnector establishes a named local channel with bounded retry
// against transient failure. An attempt cycle runs
// Connecting -> {Connected, Retrying, Failed, Cancelled}; Retrying waits
// the configured interval and loops back, and cancellation is honored both
// mid-attempt and mid-wait.
type RetryingConnector struct {
	cfg    ConnectorConfig
	logger *slog.Logger
	msink  metrics.MetricSink
}

func NewConnector(cfg ConnectorConfig) (*RetryingConnector, error) {
	if cfg.Dialer == nil {
		return nil, errors.New("connector: Dialer is required")
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.NotFoundLimit == 0 {
		cfg.NotFoundLimit = DefaultNotFoundLimit
	}

	c := &RetryingConnector{cfg: cfg}
	if cfg.LogHandler != nil {
		c.logger = slog.New(cfg.LogHandler)
	} else {
		c.logger = slog.Default()
	}
	if cfg.MetricSink != nil {
		c.msink = cfg.MetricSink
	} else {
		c.msink = metrics.Default()
	}
	return c, nil
}

// Connect binds the named channel. The returned channel is owned by the
// caller. Outcomes:
//
//   - a live channel on success;
//   - ctx.Err() whenever cancellation was requested, even if a transport
//     error occurred in the same attempt;
//   - the last transport error once the retry policy is exhausted, or
//     immediately for non-retryable errors, wrapped with the channel name
//     and still matchable with errors.Is.
func (c *RetryingConnector) Connect(ctx context.Context, name string) (io.ReadWriteCloser, error) {
	mLabels := append(c.cfg.MetricLabels, LabelChannel.M(name))

	var retries, notFound int
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c.msink.IncrCounterWithLabels(MetricConnectAttemptCount, 1.0, mLabels)
		channel, err := c.cfg.Dialer.DialChannel(ctx, name)
		if err == nil {
			c.msink.IncrCounterWithLabels(MetricConnectEstCount, 1.0, mLabels)
			return channel, nil
		}

		// Cancellation requested while the attempt was in flight takes
		// precedence over whatever the transport reported.
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}

		retryable := false
		switch {
		case errors.Is(err, ErrChannelNotFound):
			notFound++
			retryable = notFound <= c.cfg.NotFoundLimit
		case errors.Is(err, ErrConnectTimeout):
			retryable = true
		}
		if retryable && c.cfg.Strategy != NoWait {
			retries++
			if c.cfg.MaxRetries > 0 && retries > c.cfg.MaxRetries {
				retryable = false
			}
		} else {
			retryable = false
		}

		if !retryable {
			c.msink.IncrCounterWithLabels(
				MetricConnectErrorCount,
				1.0,
				append(mLabels, LabelError.M("terminal")),
			)
			return nil, fmt.Errorf("connector: channel %q: %w", name, err)
		}

		c.logger.Debug("channel bind failed, retrying",
			LabelChannel.L(name),
			LabelError.L(err),
			"retries", retries,
		)
		c.msink.IncrCounterWithLabels(MetricConnectRetryCount, 1.0, mLabels)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.RetryInterval):
		}
	}
}
