// Package resource provides throttling for repair I/O: a cap on concurrent
// scan workers, a byte-per-second I/O budget and accounting for salvage
// buffers. A nil *Controller disables all limits, so callers never need to
// branch on whether throttling is configured.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds repair resource limits.
type Config struct {
	// ScanWorkers is the maximum number of concurrent page-scan or copy
	// workers. If 0, defaults to 1.
	ScanWorkers int64

	// IOLimitBytesPerSec caps the combined read/write throughput of
	// background repair tasks. If 0, unlimited.
	IOLimitBytesPerSec int64

	// BufferLimitBytes is the hard limit for salvage buffer memory.
	// If 0, usage is tracked but not limited.
	BufferLimitBytes int64
}

// Controller enforces the limits in Config.
type Controller struct {
	cfg Config

	workerSem *semaphore.Weighted

	ioLimiter *rate.Limiter

	bufSem  *semaphore.Weighted // nil if unlimited
	bufUsed atomic.Int64
}

// NewController creates a controller for the given limits.
func NewController(cfg Config) *Controller {
	if cfg.ScanWorkers <= 0 {
		cfg.ScanWorkers = 1
	}

	c := &Controller{
		cfg:       cfg,
		workerSem: semaphore.NewWeighted(cfg.ScanWorkers),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	if cfg.BufferLimitBytes > 0 {
		c.bufSem = semaphore.NewWeighted(cfg.BufferLimitBytes)
	}

	return c
}

// ScanWorkers returns the configured worker cap, or 0 for a nil controller.
func (c *Controller) ScanWorkers() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.ScanWorkers
}

// AcquireWorker reserves a scan worker slot, blocking while all slots are
// busy or until ctx is canceled.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.workerSem.Acquire(ctx, 1)
}

// TryAcquireWorker reserves a scan worker slot without blocking.
func (c *Controller) TryAcquireWorker() bool {
	if c == nil {
		return true
	}
	return c.workerSem.TryAcquire(1)
}

// ReleaseWorker returns a scan worker slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.workerSem.Release(1)
}

// AcquireIO waits until the I/O budget allows transferring n bytes. Requests
// larger than the limiter's burst are charged in burst-sized installments,
// since WaitN rejects any n above the burst outright.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil || n <= 0 {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := c.ioLimiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// AcquireBuffer reserves n bytes of salvage buffer memory, blocking while
// the configured limit is exhausted.
func (c *Controller) AcquireBuffer(ctx context.Context, n int64) error {
	if c == nil || n <= 0 {
		return nil
	}
	if c.bufSem != nil {
		if err := c.bufSem.Acquire(ctx, n); err != nil {
			return err
		}
	}
	c.bufUsed.Add(n)
	return nil
}

// ReleaseBuffer releases previously reserved buffer memory.
func (c *Controller) ReleaseBuffer(n int64) {
	if c == nil || n <= 0 {
		return
	}
	if c.bufSem != nil {
		c.bufSem.Release(n)
	}
	c.bufUsed.Add(-n)
}

// BufferUsage returns the currently reserved buffer bytes.
func (c *Controller) BufferUsage() int64 {
	if c == nil {
		return 0
	}
	return c.bufUsed.Load()
}
