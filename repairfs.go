package repairfs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/repairfs/archive"
	"github.com/hupe1980/repairfs/handle"
	"github.com/hupe1980/repairfs/notify"
	"github.com/hupe1980/repairfs/verify"
)

// SalvageReport describes the outcome of a salvage run.
type SalvageReport struct {
	Source      string
	Destination string
	Size        int64
	PageSize    int

	// PagesCopied is the number of pages transferred intact.
	PagesCopied uint64

	// BadPages holds the page numbers that could not be read from the
	// source. The corresponding ranges in the destination are zero-filled.
	BadPages *roaring.Bitmap

	// Archive is set when WithArchive was configured.
	Archive *archive.Entry

	Duration time.Duration
}

// Complete reports whether every source page was readable.
func (r *SalvageReport) Complete() bool {
	return r.BadPages.IsEmpty()
}

// Salvage copies the readable pages of srcPath into a fresh file at
// dstPath. Unreadable pages are skipped and recorded; their ranges in the
// destination stay zero-filled so page offsets remain valid. The
// destination is truncated first and closed explicitly when the copy
// completes.
//
// Pages are copied concurrently; positioned reads and writes are
// offset-explicit, so workers never interfere with each other.
func Salvage(ctx context.Context, srcPath, dstPath string, optFns ...Option) (*SalvageReport, error) {
	opts := applyOptions(optFns)
	start := time.Now()

	report, err := salvage(ctx, srcPath, dstPath, opts)
	duration := time.Since(start)

	var copied, bad uint64
	if report != nil {
		report.Duration = duration
		copied, bad = report.PagesCopied, report.BadPages.GetCardinality()
	}
	opts.metricsCollector.RecordSalvage(copied, bad, duration, err)
	opts.logger.LogSalvage(ctx, srcPath, dstPath, copied, bad, err)
	if err != nil {
		return nil, err
	}
	return report, nil
}

// newHandle is swapped in tests to inject syscall faults.
var newHandle = handle.New

func salvage(ctx context.Context, srcPath, dstPath string, opts options) (*SalvageReport, error) {
	withNotifier := func(o *handle.Options) { o.Notifier = opts.notifier }

	src := newHandle(srcPath, withNotifier)
	if err := src.Open(handle.ModeReadOnly); err != nil {
		return nil, err
	}
	defer src.Close()

	size, err := src.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to determine source length: %w", err)
	}

	dst := newHandle(dstPath, withNotifier)
	if err := dst.Open(handle.ModeOverWrite); err != nil {
		return nil, err
	}

	pageSize := int64(opts.pageSize)
	numPages := size / pageSize
	if size%pageSize != 0 {
		numPages++
	}

	report := &SalvageReport{
		Source:      srcPath,
		Destination: dstPath,
		Size:        size,
		PageSize:    opts.pageSize,
		BadPages:    roaring.New(),
	}

	var badMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers)

	for page := int64(0); page < numPages; page++ {
		if gctx.Err() != nil {
			break
		}

		page := page
		g.Go(func() error {
			off := page * pageSize
			want := pageSize
			if off+want > size {
				want = size - off
			}

			if err := opts.controller.AcquireIO(gctx, int(want)); err != nil {
				return err
			}

			buf := make([]byte, want)
			n, err := src.Read(buf, off)
			if err != nil || n != want {
				// Source damage is the expected case here: record and move on
				badMu.Lock()
				report.BadPages.Add(uint32(page))
				badMu.Unlock()
				return nil
			}

			if _, err := dst.Write(buf, off); err != nil {
				return fmt.Errorf("failed to write destination at offset %d: %w", off, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		_ = dst.Close()
		return nil, err
	}
	// Cancellation stops the scheduling loop early without an error from any
	// worker. A short destination must never pass for a complete salvage.
	if err := ctx.Err(); err != nil {
		_ = dst.Close()
		return nil, err
	}

	report.PagesCopied = uint64(numPages) - report.BadPages.GetCardinality()

	// If the final page was unreadable the destination would come up short.
	// Pad to the source length so page offsets stay valid downstream.
	if size > 0 && numPages > 0 && report.BadPages.Contains(uint32(numPages-1)) {
		if _, err := dst.Write([]byte{0}, size-1); err != nil {
			_ = dst.Close()
			return nil, fmt.Errorf("failed to pad destination to source length: %w", err)
		}
	}

	// Explicit close marks the salvage output as complete
	if err := dst.Close(); err != nil {
		return nil, err
	}

	if opts.archiveStore != nil {
		entry, err := archiveOutput(ctx, dstPath, opts)
		if err != nil {
			return nil, err
		}
		report.Archive = entry
	}

	return report, nil
}

func archiveOutput(ctx context.Context, dstPath string, opts options) (*archive.Entry, error) {
	start := time.Now()

	arch := archive.NewArchiver(opts.archiveStore, func(o *archive.Options) {
		o.Compression = opts.archiveCompression
		o.Controller = opts.controller
	})
	entry, err := arch.ArchivePath(ctx, dstPath, opts.archiveName)
	if err == nil && opts.archiveCatalog != nil {
		if cerr := opts.archiveCatalog.Put(ctx, entry); cerr != nil {
			err = fmt.Errorf("failed to record archive entry: %w", cerr)
		}
	}

	var bytes int64
	if entry != nil {
		bytes = entry.Size
	}
	opts.metricsCollector.RecordArchive(bytes, time.Since(start), err)
	opts.logger.LogArchive(ctx, opts.archiveName, bytes, err)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Verify scans path page by page and reports per-page checksums and
// unreadable pages. See the verify package for the report format.
func Verify(ctx context.Context, path string, optFns ...Option) (*verify.Report, error) {
	opts := applyOptions(optFns)
	start := time.Now()

	report, err := verify.Path(ctx, path, func(o *verify.Options) {
		o.PageSize = opts.pageSize
		o.Workers = opts.workers
		o.Controller = opts.controller
	})

	var pages, bad uint64
	if report != nil {
		pages, bad = report.Pages(), report.BadPages.GetCardinality()
	}
	opts.metricsCollector.RecordVerify(pages, bad, time.Since(start), err)
	opts.logger.LogVerify(ctx, path, pages, bad, err)
	return report, err
}

// Restore streams an archived entry from store back into a file at dstPath,
// decompressing and verifying its checksum.
func Restore(ctx context.Context, store archive.Store, entry *archive.Entry, dstPath string, optFns ...Option) error {
	opts := applyOptions(optFns)
	start := time.Now()

	arch := archive.NewArchiver(store, func(o *archive.Options) {
		o.Compression = entry.Compression
		o.Controller = opts.controller
	})
	err := arch.Restore(ctx, entry, dstPath)

	opts.metricsCollector.RecordRestore(entry.Size, time.Since(start), err)
	opts.logger.LogRestore(ctx, entry.Name, dstPath, err)
	return err
}

// RestoreFromCatalog looks up the entry recorded under name in catalog and
// restores it from store into a file at dstPath.
func RestoreFromCatalog(ctx context.Context, store archive.Store, catalog archive.Catalog, name, dstPath string, optFns ...Option) error {
	entry, err := catalog.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to look up archive entry %q: %w", name, err)
	}
	return Restore(ctx, store, entry, dstPath, optFns...)
}

// RegisterDiagnostics subscribes a logger to the notifier so every OS-level
// failure is logged as it happens, independent of the calling goroutine.
// The returned function unsubscribes again.
func RegisterDiagnostics(notifier *notify.Notifier, logger *Logger) func() {
	if notifier == nil {
		notifier = notify.Default
	}
	const name = "repairfs-diagnostics"
	notifier.Register(name, func(e *notify.Error) {
		logger.Error("io failure",
			"kind", e.Kind.String(),
			"code", int(e.Code),
			"message", e.Message,
			"path", e.Path(),
		)
	})
	return func() { notifier.Unregister(name) }
}
