// Package handle provides a positioned-I/O file handle for repair and
// recovery workloads.
//
// A FileHandle owns exactly one OS file descriptor for one path and exposes
// offset-explicit reads and writes that never depend on (or disturb) the
// shared file cursor. System calls interrupted by a signal are retried
// transparently without losing bytes already transferred; every other
// failing call is returned to the caller as a structured *notify.Error and
// simultaneously published to a notify.Notifier for out-of-band diagnostics.
//
// Open/Close transitions must be externally synchronized. Read, Write and
// Size are safe to call concurrently on an open handle because they are
// offset-explicit and the length query is fstat-based.
package handle

import (
	"errors"
	"runtime"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/hupe1980/repairfs/internal/sysio"
	"github.com/hupe1980/repairfs/notify"
)

// Mode selects how a FileHandle opens its file.
type Mode int

const (
	// ModeNone means the handle has never been opened (or was closed).
	ModeNone Mode = iota
	// ModeReadOnly opens an existing file for reading.
	ModeReadOnly
	// ModeOverWrite creates the file if missing, truncates it to empty and
	// opens it write-only.
	ModeOverWrite
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeReadOnly:
		return "read-only"
	case ModeOverWrite:
		return "overwrite"
	default:
		return "none"
	}
}

const invalidFD = -1

// overWritePerm is owner rwx, group read, other read.
const overWritePerm = 0o744

var (
	// ErrAlreadyOpened is returned when Open is called on an open handle.
	ErrAlreadyOpened = errors.New("handle: file already opened")
	// ErrNotOpened is returned when I/O is attempted on a closed handle.
	ErrNotOpened = errors.New("handle: file not opened")
	// ErrInvalidMode is returned when Open is called with ModeNone or an
	// unknown mode.
	ErrInvalidMode = errors.New("handle: invalid open mode")
	// ErrPathMismatch is returned by Transfer when source and destination
	// handles are bound to different paths.
	ErrPathMismatch = errors.New("handle: transfer between different paths")
)

// Options configures a FileHandle.
type Options struct {
	// Ops is the syscall implementation. Defaults to sysio.Default.
	// Tests inject a sysio.FaultyOps here.
	Ops sysio.Ops

	// Notifier receives every OS-level failure. Defaults to notify.Default.
	Notifier *notify.Notifier
}

// FileHandle owns one OS file descriptor for one path.
//
// The zero value is not usable; construct with New. A FileHandle must not
// be copied: descriptor ownership moves only through Move and Transfer.
type FileHandle struct {
	path     string
	fd       int
	mode     Mode
	ops      sysio.Ops
	notifier *notify.Notifier
	lastErr  atomic.Pointer[notify.Error]
}

// New binds a handle to path. No I/O happens until Open.
func New(path string, optFns ...func(o *Options)) *FileHandle {
	opts := Options{
		Ops:      sysio.Default,
		Notifier: notify.Default,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Ops == nil {
		opts.Ops = sysio.Default
	}

	return &FileHandle{
		path:     path,
		fd:       invalidFD,
		mode:     ModeNone,
		ops:      opts.Ops,
		notifier: opts.Notifier,
	}
}

// Path returns the path the handle is bound to.
func (h *FileHandle) Path() string { return h.path }

// Mode returns the mode the handle was opened with, or ModeNone.
func (h *FileHandle) Mode() Mode { return h.mode }

// IsOpened reports whether the handle currently owns a descriptor.
func (h *FileHandle) IsOpened() bool { return h.fd != invalidFD }

// Open acquires the descriptor with flags derived from mode. Exactly one
// descriptor-acquiring system call is issued per invocation.
//
// Opening an already-open handle is a caller error and returns
// ErrAlreadyOpened without touching the existing descriptor.
func (h *FileHandle) Open(mode Mode) error {
	if h.IsOpened() {
		return ErrAlreadyOpened
	}

	var (
		flags int
		perm  uint32
	)
	switch mode {
	case ModeOverWrite:
		flags = unix.O_CREAT | unix.O_WRONLY | unix.O_TRUNC
		perm = overWritePerm
	case ModeReadOnly:
		flags = unix.O_RDONLY
	default:
		return ErrInvalidMode
	}

	fd, err := h.ops.Open(h.path, flags, perm)
	if err != nil {
		return h.report(err)
	}

	h.fd = fd
	h.mode = mode
	if mode == ModeOverWrite {
		// A write-mode handle must be closed explicitly: Close is the
		// signal that the writer's output is complete. Flag handles that
		// get collected while still open instead of leaking silently.
		runtime.SetFinalizer(h, finalizeLeaked)
	}
	return nil
}

// Close releases the descriptor. Closing an already-closed handle is a
// no-op; idempotent close is strictly safer than a precondition failure.
func (h *FileHandle) Close() error {
	if !h.IsOpened() {
		return nil
	}
	fd := h.fd
	h.fd = invalidFD
	h.mode = ModeNone
	runtime.SetFinalizer(h, nil)

	if err := h.ops.Close(fd); err != nil {
		return h.report(err)
	}
	return nil
}

// Read reads up to len(p) bytes starting at absolute offset off.
//
// Signal interruption is retried transparently and bytes transferred by
// earlier attempts within the same call are never lost. Reaching end of
// file before len(p) bytes were available is not an error; the partial
// count is the correct result. On any other failure Read returns the bytes
// transferred before the failing attempt together with the captured error.
func (h *FileHandle) Read(p []byte, off int64) (int64, error) {
	if !h.IsOpened() {
		return 0, ErrNotOpened
	}

	var total int64
	for len(p) > 0 {
		n, err := h.ops.Pread(h.fd, p, off)
		if err != nil {
			if errnoOf(err) == unix.EINTR {
				continue
			}
			return total, h.report(err)
		}
		if n == 0 {
			break
		}
		total += int64(n)
		off += int64(n)
		p = p[n:]
	}
	return total, nil
}

// Write writes len(p) bytes starting at absolute offset off.
//
// The contract mirrors Read: transparent interruption retry, lossless
// partial accumulation and the partial count returned alongside any
// non-interruption error. A short write without an error simply continues
// with the remaining bytes at the advanced offset, even though positioned
// writes on most systems either complete fully or fail.
func (h *FileHandle) Write(p []byte, off int64) (int64, error) {
	if !h.IsOpened() {
		return 0, ErrNotOpened
	}

	var total int64
	for len(p) > 0 {
		n, err := h.ops.Pwrite(h.fd, p, off)
		if err != nil {
			if errnoOf(err) == unix.EINTR {
				continue
			}
			return total, h.report(err)
		}
		if n == 0 {
			break
		}
		total += int64(n)
		off += int64(n)
		p = p[n:]
	}
	return total, nil
}

// Size returns the current file length via fstat. It never seeks, so it is
// safe to call concurrently with positioned reads and writes.
func (h *FileHandle) Size() (int64, error) {
	if !h.IsOpened() {
		return 0, ErrNotOpened
	}
	size, err := h.ops.Fstat(h.fd)
	if err != nil {
		return 0, h.report(err)
	}
	return size, nil
}

// LastError returns the most recent OS-level error captured by this handle,
// or nil. It preserves the "retrieve locally" contract for callers that
// only observed a boolean or byte-count result.
func (h *FileHandle) LastError() *notify.Error {
	return h.lastErr.Load()
}

// Move transfers descriptor and mode ownership into a fresh handle bound to
// the same path. The receiver reverts to the closed state and issues no OS
// call when closed or collected afterwards.
func (h *FileHandle) Move() *FileHandle {
	moved := &FileHandle{
		path:     h.path,
		fd:       h.fd,
		mode:     h.mode,
		ops:      h.ops,
		notifier: h.notifier,
	}
	if e := h.lastErr.Load(); e != nil {
		moved.lastErr.Store(e)
	}
	if moved.mode == ModeOverWrite && moved.IsOpened() {
		runtime.SetFinalizer(moved, finalizeLeaked)
	}
	runtime.SetFinalizer(h, nil)
	h.fd = invalidFD
	h.mode = ModeNone
	return moved
}

// Transfer adopts src's descriptor and mode. Both handles must be bound to
// the same path; src reverts to the closed state. If the receiver already
// owns a descriptor it is released first, so no descriptor is ever leaked.
func (h *FileHandle) Transfer(src *FileHandle) error {
	if h.path != src.path {
		return ErrPathMismatch
	}
	if h == src {
		return nil
	}
	if h.IsOpened() {
		if err := h.Close(); err != nil {
			return err
		}
	}

	h.fd = src.fd
	h.mode = src.mode
	if h.mode == ModeOverWrite && h.IsOpened() {
		runtime.SetFinalizer(h, finalizeLeaked)
	}
	runtime.SetFinalizer(src, nil)
	src.fd = invalidFD
	src.mode = ModeNone
	return nil
}

// report captures err as a structured I/O error, publishes it to the
// notifier and stores it into the handle's last-error slot. This is the
// single error path for every failing OS call.
func (h *FileHandle) report(err error) *notify.Error {
	e := &notify.Error{
		Kind:    notify.KindIO,
		Code:    errnoOf(err),
		Message: err.Error(),
		Context: map[string]string{"path": h.path},
	}
	h.notifier.Notify(e)
	h.lastErr.Store(e)
	return e
}

// errnoOf extracts the OS error number from err, or 0.
func errnoOf(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}

// finalizeLeaked runs when a write-mode handle is collected while still
// open. The descriptor is released and the leak is broadcast; callers are
// expected to Close explicitly, so reaching this is a bug in the caller.
func finalizeLeaked(h *FileHandle) {
	if !h.IsOpened() {
		return
	}
	h.notifier.Notify(&notify.Error{
		Kind:    notify.KindIO,
		Message: "write-mode handle dropped without close",
		Context: map[string]string{"path": h.path},
	})
	_ = h.ops.Close(h.fd)
	h.fd = invalidFD
	h.mode = ModeNone
}
