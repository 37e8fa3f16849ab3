// Package archive stores salvage output: repaired files are streamed into
// a Store (local directory, in-memory, S3 or MinIO) with optional
// compression and a CRC32 integrity trailer computed over the uncompressed
// bytes.
package archive

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when an archive entry does not exist.
//
// Implementations should return an error satisfying
// `errors.Is(err, ErrNotFound)`. The default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Store is a destination for archived files.
type Store interface {
	// Open opens an existing entry for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create creates an entry for streaming writes. The entry becomes
	// visible once the returned blob is closed without error.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Put writes an entry in one shot.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes an entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the entry names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to an archived entry.
type Blob interface {
	io.Closer

	// ReadAt reads len(p) bytes starting at offset off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// Size returns the stored (possibly compressed) entry size in bytes.
	Size() int64
}

// WritableBlob is a streaming write handle to a new entry.
type WritableBlob interface {
	io.WriteCloser
}

// blobReader adapts a Blob to io.Reader for sequential consumption.
type blobReader struct {
	ctx  context.Context
	blob Blob
	off  int64
}

func newBlobReader(ctx context.Context, blob Blob) *blobReader {
	return &blobReader{ctx: ctx, blob: blob}
}

func (r *blobReader) Read(p []byte) (int, error) {
	if r.off >= r.blob.Size() {
		return 0, io.EOF
	}
	remaining := r.blob.Size() - r.off
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := r.blob.ReadAt(r.ctx, p, r.off)
	r.off += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}
