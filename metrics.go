package slabgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    insertCounter   prometheus.Counter
//	    insertHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordInsert(duration time.Duration, err error) {
//	    p.insertCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordInsert is called after each insert operation.
	// duration is the total time taken, err is nil if successful.
	RecordInsert(duration time.Duration, err error)

	// RecordBatchInsert is called after each batch insert operation.
	// count is the number of items attempted, failed is the number that failed,
	// duration is the total time taken.
	RecordBatchInsert(count, failed int, duration time.Duration)

	// RecordUpdate is called after each update operation.
	RecordUpdate(duration time.Duration, err error)

	// RecordErase is called after each erase operation.
	RecordErase(duration time.Duration, err error)

	// RecordLookup is called after each Get operation.
	RecordLookup(duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot save.
	RecordSnapshot(duration time.Duration, err error)

	// RecordReplay is called after WAL recovery.
	// entries is the number of log entries replayed.
	RecordReplay(entries int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)         {}
func (NoopMetricsCollector) RecordBatchInsert(int, int, time.Duration) {}
func (NoopMetricsCollector) RecordUpdate(time.Duration, error)         {}
func (NoopMetricsCollector) RecordErase(time.Duration, error)          {}
func (NoopMetricsCollector) RecordLookup(time.Duration, error)         {}
func (NoopMetricsCollector) RecordSnapshot(time.Duration, error)       {}
func (NoopMetricsCollector) RecordReplay(int, time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount       atomic.Int64
	InsertErrors      atomic.Int64
	InsertTotalNanos  atomic.Int64
	BatchInsertCount  atomic.Int64
	BatchInsertItems  atomic.Int64
	BatchInsertFailed atomic.Int64
	UpdateCount       atomic.Int64
	UpdateErrors      atomic.Int64
	EraseCount        atomic.Int64
	EraseErrors       atomic.Int64
	LookupCount       atomic.Int64
	LookupErrors      atomic.Int64
	LookupTotalNanos  atomic.Int64
	SnapshotCount     atomic.Int64
	SnapshotErrors    atomic.Int64
	ReplayCount       atomic.Int64
	ReplayEntries     atomic.Int64
	ReplayErrors      atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordBatchInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatchInsert(count, failed int, duration time.Duration) {
	b.BatchInsertCount.Add(1)
	b.BatchInsertItems.Add(int64(count))
	b.BatchInsertFailed.Add(int64(failed))
}

// RecordUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpdate(duration time.Duration, err error) {
	b.UpdateCount.Add(1)
	if err != nil {
		b.UpdateErrors.Add(1)
	}
}

// RecordErase implements MetricsCollector.
func (b *BasicMetricsCollector) RecordErase(duration time.Duration, err error) {
	b.EraseCount.Add(1)
	if err != nil {
		b.EraseErrors.Add(1)
	}
}

// RecordLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLookup(duration time.Duration, err error) {
	b.LookupCount.Add(1)
	b.LookupTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LookupErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// RecordReplay implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReplay(entries int, duration time.Duration, err error) {
	b.ReplayCount.Add(1)
	b.ReplayEntries.Add(int64(entries))
	if err != nil {
		b.ReplayErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:       b.InsertCount.Load(),
		InsertErrors:      b.InsertErrors.Load(),
		InsertAvgNanos:    b.getAvgInsertNanos(),
		BatchInsertCount:  b.BatchInsertCount.Load(),
		BatchInsertItems:  b.BatchInsertItems.Load(),
		BatchInsertFailed: b.BatchInsertFailed.Load(),
		UpdateCount:       b.UpdateCount.Load(),
		UpdateErrors:      b.UpdateErrors.Load(),
		EraseCount:        b.EraseCount.Load(),
		EraseErrors:       b.EraseErrors.Load(),
		LookupCount:       b.LookupCount.Load(),
		LookupErrors:      b.LookupErrors.Load(),
		LookupAvgNanos:    b.getAvgLookupNanos(),
		SnapshotCount:     b.SnapshotCount.Load(),
		SnapshotErrors:    b.SnapshotErrors.Load(),
		ReplayCount:       b.ReplayCount.Load(),
		ReplayEntries:     b.ReplayEntries.Load(),
		ReplayErrors:      b.ReplayErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgInsertNanos() int64 {
	count := b.InsertCount.Load()
	if count == 0 {
		return 0
	}
	return b.InsertTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgLookupNanos() int64 {
	count := b.LookupCount.Load()
	if count == 0 {
		return 0
	}
	return b.LookupTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount       int64
	InsertErrors      int64
	InsertAvgNanos    int64
	BatchInsertCount  int64
	BatchInsertItems  int64
	BatchInsertFailed int64
	UpdateCount       int64
	UpdateErrors      int64
	EraseCount        int64
	EraseErrors       int64
	LookupCount       int64
	LookupErrors      int64
	LookupAvgNanos    int64
	SnapshotCount     int64
	SnapshotErrors    int64
	ReplayCount       int64
	ReplayEntries     int64
	ReplayErrors      int64
}
