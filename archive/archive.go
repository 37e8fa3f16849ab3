package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/hupe1980/repairfs/handle"
	"github.com/hupe1980/repairfs/resource"
	"github.com/hupe1980/repairfs/verify"
)

// DefaultChunkSize is the transfer granularity for archive and restore.
const DefaultChunkSize = 64 * 1024

// Options configures an Archiver.
type Options struct {
	// Compression is the codec applied to entries. Defaults to zstd.
	Compression Compression

	// ChunkSize is the transfer granularity in bytes.
	ChunkSize int

	// Controller throttles archive I/O. Nil disables throttling.
	Controller *resource.Controller
}

// DefaultOptions are the defaults applied by NewArchiver.
var DefaultOptions = Options{
	Compression: CompressionZstd,
	ChunkSize:   DefaultChunkSize,
}

// Entry describes an archived file. It is required to restore the entry and
// should be persisted alongside the store (it is cheap to re-derive name and
// compression, but the checksum is not).
type Entry struct {
	Name        string
	Size        int64 // uncompressed length in bytes
	Checksum    uint32
	Compression Compression
}

// Archiver streams files into a Store.
type Archiver struct {
	store Store
	opts  Options
}

// NewArchiver creates an Archiver writing to store.
func NewArchiver(store Store, optFns ...func(o *Options)) *Archiver {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &Archiver{store: store, opts: opts}
}

// Archive streams the open handle h into the store under name and returns
// the entry descriptor. The checksum covers the uncompressed bytes, so a
// restore verifies end to end regardless of codec.
//
// h must be opened read-only by the caller and stays open afterwards. On
// failure the partially written entry is deleted best-effort.
func (a *Archiver) Archive(ctx context.Context, h *handle.FileHandle, name string) (*Entry, error) {
	size, err := h.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to determine file length: %w", err)
	}

	blob, err := a.store.Create(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive entry: %w", err)
	}

	entry, err := a.copyIn(ctx, h, size, blob)
	if err != nil {
		_ = a.store.Delete(ctx, name)
		return nil, err
	}
	entry.Name = name
	return entry, nil
}

func (a *Archiver) copyIn(ctx context.Context, h *handle.FileHandle, size int64, blob WritableBlob) (*Entry, error) {
	limited := resource.NewLimitedWriter(ctx, blob, a.opts.Controller)
	comp, err := newCompressWriter(a.opts.Compression, limited)
	if err != nil {
		return nil, err
	}
	cw := verify.NewChecksumWriter(comp)

	buf := make([]byte, a.opts.ChunkSize)
	var off int64
	for off < size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := h.Read(buf, off)
		if err != nil {
			return nil, fmt.Errorf("failed to read source at offset %d: %w", off, err)
		}
		if n == 0 {
			break
		}
		if _, err := cw.Write(buf[:n]); err != nil {
			return nil, fmt.Errorf("failed to write archive entry: %w", err)
		}
		off += n
	}

	if err := comp.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish compression: %w", err)
	}
	if err := blob.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive entry: %w", err)
	}

	return &Entry{
		Size:        off,
		Checksum:    cw.Sum(),
		Compression: a.opts.Compression,
	}, nil
}

// ArchivePath opens path read-only, archives it under name and closes it.
func (a *Archiver) ArchivePath(ctx context.Context, path, name string) (*Entry, error) {
	h := handle.New(path)
	if err := h.Open(handle.ModeReadOnly); err != nil {
		return nil, err
	}
	defer h.Close()

	return a.Archive(ctx, h, name)
}

// Restore streams the entry back into a file at dstPath, decompressing and
// verifying the checksum. The destination is truncated first and closed
// explicitly once the restore is complete.
func (a *Archiver) Restore(ctx context.Context, entry *Entry, dstPath string) error {
	blob, err := a.store.Open(ctx, entry.Name)
	if err != nil {
		return fmt.Errorf("failed to open archive entry %q: %w", entry.Name, err)
	}
	defer blob.Close()

	limited := resource.NewLimitedReader(ctx, newBlobReader(ctx, blob), a.opts.Controller)
	comp, err := newCompressReader(entry.Compression, limited)
	if err != nil {
		return err
	}
	defer comp.Close()
	cr := verify.NewChecksumReader(comp)

	dst := handle.New(dstPath)
	if err := dst.Open(handle.ModeOverWrite); err != nil {
		return err
	}

	buf := make([]byte, a.opts.ChunkSize)
	var off int64
	for {
		if err := ctx.Err(); err != nil {
			_ = dst.Close()
			return err
		}

		n, rerr := cr.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n], off); werr != nil {
				_ = dst.Close()
				return fmt.Errorf("failed to write restored file at offset %d: %w", off, werr)
			}
			off += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			_ = dst.Close()
			return fmt.Errorf("failed to read archive entry %q: %w", entry.Name, rerr)
		}
	}

	if err := dst.Close(); err != nil {
		return err
	}

	if off != entry.Size {
		return fmt.Errorf("restored %d bytes, entry records %d", off, entry.Size)
	}
	return cr.Verify(entry.Checksum)
}
