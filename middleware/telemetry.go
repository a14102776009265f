package middleware

import (
	"context"
	"sync/atomic"
	"time"
)

// Metrics counts handled sessions.
type Metrics struct {
	Count   atomic.Int64
	Errors  atomic.Int64
	Active  atomic.Int64
	TotalNs atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Snapshot returns a point-in-time copy of the counters.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Count:     m.Count.Load(),
		Errors:    m.Errors.Load(),
		Active:    m.Active.Load(),
		TotalTime: time.Duration(m.TotalNs.Load()),
	}
}

// Snapshot is a point-in-time copy of Metrics.
type Snapshot struct {
	Count     int64
	Errors    int64
	Active    int64
	TotalTime time.Duration
}

// Telemetry returns middleware that collects session count and latency metrics.
func Telemetry(metrics *Metrics) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, s Session) error {
			metrics.Active.Add(1)
			start := time.Now()
			err := next(ctx, s)
			elapsed := time.Since(start)
			metrics.Active.Add(-1)

			metrics.Count.Add(1)
			metrics.TotalNs.Add(int64(elapsed))
			if err != nil {
				metrics.Errors.Add(1)
			}

			return err
		}
	}
}
