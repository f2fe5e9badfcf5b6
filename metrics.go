package servhub

import (
	"log/slog"

	"github.com/hashicorp/go-metrics"
)

var (
	MetricResolveCount        = []string{"servhub", "resolve", "count"}
	MetricResolveErrorCount   = []string{"servhub", "resolve", "error", "count"}
	MetricConnectAttemptCount = []string{"servhub", "connector", "attempt", "count"}
	MetricConnectRetryCount   = []string{"servhub", "connector", "retry", "count"}
	MetricConnectErrorCount   = []string{"servhub", "connector", "error", "count"}
	MetricConnectEstCount     = []string{"servhub", "connector", "established", "count"}
	MetricProxyOpenCount      = []string{"servhub", "proxy", "open", "count"}
	MetricProxyCloseCount     = []string{"servhub", "proxy", "close", "count"}
	MetricHostAcceptCount     = []string{"servhub", "host", "accept", "count"}
	MetricHostAcceptErrCount  = []string{"servhub", "host", "accept", "error", "count"}
)

type TelemetryLabel string

var (
	LabelError    TelemetryLabel = "error"
	LabelService  TelemetryLabel = "service"
	LabelVersion  TelemetryLabel = "version"
	LabelChannel  TelemetryLabel = "channel"
	LabelStep     TelemetryLabel = "step"
	LabelAudience TelemetryLabel = "audience"
	LabelDuration TelemetryLabel = "duration"
)

func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

func (lab TelemetryLabel) L(val any) slog.Attr {
	return slog.Attr{
		Key:   string(lab),
		Value: slog.AnyValue(val),
	}
}
