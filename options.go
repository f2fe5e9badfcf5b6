package servhub

import (
	"log/slog"
	"time"

	"github.com/hashicorp/go-metrics"
)

type config struct {
	logHandler   slog.Handler
	msink        metrics.MetricSink
	metricLabels []metrics.Label

	dialer     ChannelDialer
	channelDir string

	connStrategy  ConnectStrategy
	retryInterval time.Duration
	maxRetries    int
	notFoundLimit int

	auth *AuthorizationState
}

// Option to pass to `Create`.
type Option func(*config) error

// WithLog specifies which `slog.Handler` to use.
func WithLog(handler slog.Handler) Option {
	return func(c *config) error {
		c.logHandler = handler
		return nil
	}
}

// WithMetricSink allows you to choose how to collect the metrics emitted by
// the broker, its connector and its hosts.
func WithMetricSink(ms metrics.MetricSink) Option {
	return func(c *config) error {
		if ms == nil {
			ms = &metrics.BlackholeSink{}
		}
		c.msink = ms
		return nil
	}
}

// WithMetricLabels adds static labels to all metrics produced by the broker.
func WithMetricLabels(labels []metrics.Label) Option {
	return func(c *config) error {
		c.metricLabels = labels
		return nil
	}
}

// WithChannelDir sets the directory where channel sockets live. Ignored
// when WithDialer installs a custom dialer.
func WithChannelDir(dir string) Option {
	return func(c *config) error {
		c.channelDir = dir
		return nil
	}
}

// WithDialer replaces the transport used to bind named channels.
func WithDialer(d ChannelDialer) Option {
	return func(c *config) error {
		c.dialer = d
		return nil
	}
}

// WithConnectStrategy selects the connector's behavior towards channels
// that are not immediately available.
func WithConnectStrategy(s ConnectStrategy) Option {
	return func(c *config) error {
		c.connStrategy = s
		return nil
	}
}

// WithRetryInterval sets the fixed wait between connect attempts.
func WithRetryInterval(interval time.Duration) Option {
	return func(c *config) error {
		if interval == 0 {
			interval = DefaultRetryInterval
		}
		c.retryInterval = interval
		return nil
	}
}

// WithMaxRetries caps connect retries; 0 retries until cancelled.
func WithMaxRetries(max int) Option {
	return func(c *config) error {
		c.maxRetries = max
		return nil
	}
}

// WithNotFoundLimit caps retries against a channel that does not exist yet.
func WithNotFoundLimit(limit int) Option {
	return func(c *config) error {
		if limit == 0 {
			limit = DefaultNotFoundLimit
		}
		c.notFoundLimit = limit
		return nil
	}
}

// WithAuthorization attaches shared authorization state; its credentials
// fill in requests that carry none of their own.
func WithAuthorization(auth *AuthorizationState) Option {
	return func(c *config) error {
		c.auth = auth
		return nil
	}
}
