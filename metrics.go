package repairfs

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordSalvage is called after each salvage run. copied and bad are
	// page counts, duration is the total time taken, err is nil on success.
	RecordSalvage(copied, bad uint64, duration time.Duration, err error)

	// RecordVerify is called after each verification scan.
	RecordVerify(pages, bad uint64, duration time.Duration, err error)

	// RecordArchive is called after each archive upload.
	// bytes is the uncompressed entry size.
	RecordArchive(bytes int64, duration time.Duration, err error)

	// RecordRestore is called after each restore.
	RecordRestore(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSalvage(uint64, uint64, time.Duration, error) {}
func (NoopMetricsCollector) RecordVerify(uint64, uint64, time.Duration, error)  {}
func (NoopMetricsCollector) RecordArchive(int64, time.Duration, error)          {}
func (NoopMetricsCollector) RecordRestore(int64, time.Duration, error)          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	SalvageCount       atomic.Int64
	SalvageErrors      atomic.Int64
	SalvagePagesCopied atomic.Int64
	SalvagePagesBad    atomic.Int64
	SalvageTotalNanos  atomic.Int64
	VerifyCount        atomic.Int64
	VerifyErrors       atomic.Int64
	VerifyPagesBad     atomic.Int64
	ArchiveCount       atomic.Int64
	ArchiveErrors      atomic.Int64
	ArchiveBytes       atomic.Int64
	RestoreCount       atomic.Int64
	RestoreErrors      atomic.Int64
	RestoreBytes       atomic.Int64
}

// RecordSalvage implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSalvage(copied, bad uint64, duration time.Duration, err error) {
	b.SalvageCount.Add(1)
	b.SalvagePagesCopied.Add(int64(copied))
	b.SalvagePagesBad.Add(int64(bad))
	b.SalvageTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SalvageErrors.Add(1)
	}
}

// RecordVerify implements MetricsCollector.
func (b *BasicMetricsCollector) RecordVerify(pages, bad uint64, duration time.Duration, err error) {
	b.VerifyCount.Add(1)
	b.VerifyPagesBad.Add(int64(bad))
	if err != nil {
		b.VerifyErrors.Add(1)
	}
}

// RecordArchive implements MetricsCollector.
func (b *BasicMetricsCollector) RecordArchive(bytes int64, duration time.Duration, err error) {
	b.ArchiveCount.Add(1)
	b.ArchiveBytes.Add(bytes)
	if err != nil {
		b.ArchiveErrors.Add(1)
	}
}

// RecordRestore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRestore(bytes int64, duration time.Duration, err error) {
	b.RestoreCount.Add(1)
	b.RestoreBytes.Add(bytes)
	if err != nil {
		b.RestoreErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		SalvageCount:       b.SalvageCount.Load(),
		SalvageErrors:      b.SalvageErrors.Load(),
		SalvagePagesCopied: b.SalvagePagesCopied.Load(),
		SalvagePagesBad:    b.SalvagePagesBad.Load(),
		SalvageAvgNanos:    b.getAvgSalvageNanos(),
		VerifyCount:        b.VerifyCount.Load(),
		VerifyErrors:       b.VerifyErrors.Load(),
		VerifyPagesBad:     b.VerifyPagesBad.Load(),
		ArchiveCount:       b.ArchiveCount.Load(),
		ArchiveErrors:      b.ArchiveErrors.Load(),
		ArchiveBytes:       b.ArchiveBytes.Load(),
		RestoreCount:       b.RestoreCount.Load(),
		RestoreErrors:      b.RestoreErrors.Load(),
		RestoreBytes:       b.RestoreBytes.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgSalvageNanos() int64 {
	count := b.SalvageCount.Load()
	if count == 0 {
		return 0
	}
	return b.SalvageTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	SalvageCount       int64
	SalvageErrors      int64
	SalvagePagesCopied int64
	SalvagePagesBad    int64
	SalvageAvgNanos    int64
	VerifyCount        int64
	VerifyErrors       int64
	VerifyPagesBad     int64
	ArchiveCount       int64
	ArchiveErrors      int64
	ArchiveBytes       int64
	RestoreCount       int64
	RestoreErrors      int64
	RestoreBytes       int64
}
