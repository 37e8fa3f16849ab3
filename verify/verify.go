// Package verify scans files page by page through positioned reads,
// computing per-page checksums and collecting the pages that cannot be read
// at all. The resulting report drives salvage: damaged pages are skipped,
// intact pages are copied.
//
// Scanning is concurrent. Positioned reads are offset-explicit, so multiple
// workers can read the same open handle without coordination.
package verify

import (
	"context"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/repairfs/handle"
	"github.com/hupe1980/repairfs/resource"
)

// DefaultPageSize matches the page size of common storage engines.
const DefaultPageSize = 4096

// Options configures a scan.
type Options struct {
	// PageSize is the scan granularity in bytes. Defaults to DefaultPageSize.
	PageSize int

	// Workers is the number of concurrent scan goroutines. Defaults to 4.
	Workers int

	// Controller throttles scan I/O. Nil disables throttling.
	Controller *resource.Controller
}

// DefaultOptions are the defaults applied by File.
var DefaultOptions = Options{
	PageSize: DefaultPageSize,
	Workers:  4,
}

// Report is the outcome of a page scan.
type Report struct {
	Path     string
	Size     int64
	PageSize int

	// Checksums holds the CRC32 of every readable page, indexed by page
	// number. Entries for bad pages are zero and excluded from comparison.
	Checksums []uint32

	// BadPages holds the page numbers that could not be read.
	BadPages *roaring.Bitmap
}

// Pages returns the number of pages covered by the report.
func (r *Report) Pages() uint64 {
	return uint64(len(r.Checksums))
}

// OK reports whether every page was readable.
func (r *Report) OK() bool {
	return r.BadPages.IsEmpty()
}

// Mismatches compares per-page checksums against an expected set and
// returns the differing page numbers. Pages that are bad on either side
// count as mismatches; pages beyond the shorter report also do.
func (r *Report) Mismatches(expected *Report) *roaring.Bitmap {
	out := roaring.New()
	out.Or(r.BadPages)
	out.Or(expected.BadPages)

	a, b := r.Checksums, expected.Checksums
	limit := len(a)
	if len(b) < limit {
		limit = len(b)
	}
	for i := 0; i < limit; i++ {
		if a[i] != b[i] {
			out.Add(uint32(i))
		}
	}
	for i := limit; i < len(a); i++ {
		out.Add(uint32(i))
	}
	for i := limit; i < len(b); i++ {
		out.Add(uint32(i))
	}
	return out
}

// File scans the open handle h and returns a page report.
//
// h must be opened read-only by the caller and stays open afterwards. Scan
// errors on individual pages are recorded in the report, not returned; only
// a failing length query or context cancellation aborts the scan.
func File(ctx context.Context, h *handle.FileHandle, optFns ...func(o *Options)) (*Report, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	size, err := h.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to determine file length: %w", err)
	}

	pageSize := int64(opts.PageSize)
	numPages := size / pageSize
	if size%pageSize != 0 {
		numPages++
	}

	report := &Report{
		Path:      h.Path(),
		Size:      size,
		PageSize:  opts.PageSize,
		Checksums: make([]uint32, numPages),
		BadPages:  roaring.New(),
	}

	var badMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for page := int64(0); page < numPages; page++ {
		if err := gctx.Err(); err != nil {
			break
		}

		page := page
		g.Go(func() error {
			off := page * pageSize
			want := pageSize
			if off+want > size {
				want = size - off
			}

			if err := opts.Controller.AcquireIO(gctx, int(want)); err != nil {
				return err
			}

			buf := make([]byte, want)
			n, err := h.Read(buf, off)
			if err != nil || n != want {
				badMu.Lock()
				report.BadPages.Add(uint32(page))
				badMu.Unlock()
				return nil
			}

			report.Checksums[page] = Checksum(buf)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Cancellation stops the scheduling loop early without an error from any
	// worker; a truncated scan must not read as a clean one.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return report, nil
}

// Path opens path read-only, scans it and closes it again.
func Path(ctx context.Context, path string, optFns ...func(o *Options)) (*Report, error) {
	h := handle.New(path)
	if err := h.Open(handle.ModeReadOnly); err != nil {
		return nil, err
	}
	defer h.Close()

	return File(ctx, h, optFns...)
}
