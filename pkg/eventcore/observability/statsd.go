package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// StatsdClient is the subset of the DogStatsD client the recorder uses.
// *statsd.Client satisfies it.
type StatsdClient interface {
	Incr(name string, tags []string, rate float64) error
	Timing(name string, value time.Duration, tags []string, rate float64) error
}

var _ StatsdClient = (*statsd.Client)(nil)

// StatsdMetrics implements MetricsRecorder by pushing to DogStatsD.
// Submission errors are ignored; statsd is fire-and-forget.
type StatsdMetrics struct {
	client   StatsdClient
	baseTags []string
}

// Compile-time interface check.
var _ MetricsRecorder = (*StatsdMetrics)(nil)

// NewStatsdRecorder wraps an existing client.
func NewStatsdRecorder(client StatsdClient, baseTags ...string) *StatsdMetrics {
	return &StatsdMetrics{client: client, baseTags: baseTags}
}

// DialStatsd creates a DogStatsD client for addr (e.g. "127.0.0.1:8125")
// with the "eventcore." namespace and wraps it in a recorder. Callers own
// the returned client and must Close it.
func DialStatsd(addr string, baseTags ...string) (*StatsdMetrics, *statsd.Client, error) {
	client, err := statsd.New(addr, statsd.WithNamespace("eventcore."))
	if err != nil {
		return nil, nil, fmt.Errorf("create statsd client: %w", err)
	}
	return NewStatsdRecorder(client, baseTags...), client, nil
}

func (m *StatsdMetrics) tags(extra ...string) []string {
	out := make([]string, 0, len(m.baseTags)+len(extra))
	out = append(out, m.baseTags...)
	return append(out, extra...)
}

// RecordDelivery records a subscriber notification.
func (m *StatsdMetrics) RecordDelivery(_ context.Context, eventType string, duration time.Duration, err error) {
	tags := m.tags("event_type:" + eventType)
	_ = m.client.Incr("delivery.count", tags, 1)
	_ = m.client.Timing("delivery.latency", duration, tags, 1)
	if err != nil {
		_ = m.client.Incr("delivery.errors", tags, 1)
	}
}

// RecordEmit records an emission.
func (m *StatsdMetrics) RecordEmit(_ context.Context, eventType, adapter string, duration time.Duration, err error) {
	tags := m.tags("event_type:"+eventType, "adapter:"+adapter)
	_ = m.client.Incr("emit.count", tags, 1)
	_ = m.client.Timing("emit.latency", duration, tags, 1)
	if err != nil {
		_ = m.client.Incr("emit.errors", tags, 1)
	}
}

// RecordDropped records a rejected async event.
func (m *StatsdMetrics) RecordDropped(_ context.Context, eventType, reason string) {
	_ = m.client.Incr("async.dropped", m.tags("event_type:"+eventType, "reason:"+reason), 1)
}
