package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/hupe1980/repairfs/handle"
)

// LocalStore implements Store on a local directory. Reads and writes go
// through positioned file handles; writes land in a temporary file that is
// renamed into place on Close, so partially written entries are never
// visible under their final name.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at the given directory.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open opens an entry for reading.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	h := handle.New(s.path(name))
	if err := h.Open(handle.ModeReadOnly); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	size, err := h.Size()
	if err != nil {
		_ = h.Close()
		return nil, err
	}
	return &localBlob{h: h, size: size}, nil
}

// Create creates an entry for streaming writes.
func (s *LocalStore) Create(_ context.Context, name string) (WritableBlob, error) {
	final := s.path(name)
	if err := os.MkdirAll(filepath.Dir(final), 0o750); err != nil {
		return nil, err
	}

	tmp := final + ".tmp"
	h := handle.New(tmp)
	if err := h.Open(handle.ModeOverWrite); err != nil {
		return nil, err
	}
	return &localWritableBlob{h: h, tmp: tmp, final: final}, nil
}

// Put writes an entry in one shot.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	blob, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := blob.Write(data); err != nil {
		return err
	}
	return blob.Close()
}

// Delete removes an entry.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns all entry names below the given prefix, sorted.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

type localBlob struct {
	h    *handle.FileHandle
	size int64
}

func (b *localBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	n, err := b.h.Read(p, off)
	if err != nil {
		return int(n), err
	}
	if int(n) < len(p) {
		return int(n), io.EOF
	}
	return int(n), nil
}

func (b *localBlob) Size() int64 { return b.size }

func (b *localBlob) Close() error { return b.h.Close() }

type localWritableBlob struct {
	h     *handle.FileHandle
	tmp   string
	final string
	off   int64
}

func (b *localWritableBlob) Write(p []byte) (int, error) {
	n, err := b.h.Write(p, b.off)
	b.off += n
	return int(n), err
}

func (b *localWritableBlob) Close() error {
	if err := b.h.Close(); err != nil {
		return err
	}
	return os.Rename(b.tmp, b.final)
}
