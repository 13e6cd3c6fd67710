package startable

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordLoad is called after each table open.
	// format is the requested format ("" for detection), duration is the
	// time taken, err is nil if successful.
	RecordLoad(format string, duration time.Duration, err error)

	// RecordRows is called after an operation that reads a whole table.
	// op names the operation, rows is the number of rows read.
	RecordRows(op string, rows int64, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLoad(string, time.Duration, error)  {}
func (NoopMetricsCollector) RecordRows(string, int64, time.Duration) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	LoadCount      atomic.Int64
	LoadErrors     atomic.Int64
	LoadTotalNanos atomic.Int64
	ScanCount      atomic.Int64
	RowCount       atomic.Int64
	ScanTotalNanos atomic.Int64
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(_ string, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordRows implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRows(_ string, rows int64, duration time.Duration) {
	b.ScanCount.Add(1)
	b.RowCount.Add(rows)
	b.ScanTotalNanos.Add(duration.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		LoadCount:    b.LoadCount.Load(),
		LoadErrors:   b.LoadErrors.Load(),
		LoadAvgNanos: avg(b.LoadTotalNanos.Load(), b.LoadCount.Load()),
		ScanCount:    b.ScanCount.Load(),
		RowCount:     b.RowCount.Load(),
		ScanAvgNanos: avg(b.ScanTotalNanos.Load(), b.ScanCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	LoadCount    int64
	LoadErrors   int64
	LoadAvgNanos int64
	ScanCount    int64
	RowCount     int64
	ScanAvgNanos int64
}
