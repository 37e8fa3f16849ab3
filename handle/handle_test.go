package handle

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/hupe1980/repairfs/internal/sysio"
	"github.com/hupe1980/repairfs/notify"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()

	h := New(path)
	require.NoError(t, h.Open(ModeOverWrite))
	n, err := h.Write(data, 0)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.NoError(t, h.Close())
}

func TestOpenModes(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "data.bin")

	h := New(path)
	assert.False(t, h.IsOpened())
	assert.Equal(t, ModeNone, h.Mode())

	// ModeNone is not a valid open mode
	assert.ErrorIs(t, h.Open(ModeNone), ErrInvalidMode)

	// OverWrite creates the file
	require.NoError(t, h.Open(ModeOverWrite))
	assert.True(t, h.IsOpened())
	assert.Equal(t, ModeOverWrite, h.Mode())

	// Opening an open handle is a caller error and leaves it open
	assert.ErrorIs(t, h.Open(ModeReadOnly), ErrAlreadyOpened)
	assert.True(t, h.IsOpened())

	require.NoError(t, h.Close())
	assert.False(t, h.IsOpened())
	assert.Equal(t, ModeNone, h.Mode())

	// ReadOnly reopens the now-existing file
	require.NoError(t, h.Open(ModeReadOnly))
	assert.Equal(t, ModeReadOnly, h.Mode())
	require.NoError(t, h.Close())
}

func TestRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "roundtrip.bin")
	data := []byte("the quick brown fox jumps over the lazy dog")

	writeFile(t, path, data)

	r := New(path)
	require.NoError(t, r.Open(ModeReadOnly))
	defer r.Close()

	buf := make([]byte, len(data))
	n, err := r.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, buf)

	size, err := r.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), size)
}

func TestOverWriteTruncates(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "trunc.bin")

	writeFile(t, path, []byte("a longer first version"))
	writeFile(t, path, []byte("short"))

	r := New(path)
	require.NoError(t, r.Open(ModeReadOnly))
	defer r.Close()

	size, err := r.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}

func TestReadAtEOF(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "eof.bin")
	writeFile(t, path, []byte("0123456789"))

	r := New(path)
	require.NoError(t, r.Open(ModeReadOnly))
	defer r.Close()

	// Request extends past the end: partial count, no error
	buf := make([]byte, 8)
	n, err := r.Read(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, []byte("6789"), buf[:n])
	assert.Nil(t, r.LastError())

	// Offset entirely past the end: zero count, no error
	n, err = r.Read(buf, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Nil(t, r.LastError())
}

func TestReadRetriesInterruption(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "eintr.bin")
	data := []byte("interrupted transfer payload")
	writeFile(t, path, data)

	faulty := sysio.NewFaultyOps(nil)
	// First a short transfer, then a signal interruption, then passthrough.
	// The accumulated count must survive both.
	faulty.PlanPread(
		sysio.Fault{Limit: 5},
		sysio.Fault{Err: unix.EINTR},
	)

	r := New(path, func(o *Options) { o.Ops = faulty })
	require.NoError(t, r.Open(ModeReadOnly))
	defer r.Close()

	buf := make([]byte, len(data))
	n, err := r.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, buf)
	assert.Nil(t, r.LastError())
}

func TestWriteRetriesInterruption(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "eintr-write.bin")
	data := []byte("write side interruption payload")

	faulty := sysio.NewFaultyOps(nil)
	faulty.PlanPwrite(
		sysio.Fault{Err: unix.EINTR},
		sysio.Fault{Limit: 7},
	)

	w := New(path, func(o *Options) { o.Ops = faulty })
	require.NoError(t, w.Open(ModeOverWrite))
	n, err := w.Write(data, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	require.NoError(t, w.Close())

	r := New(path)
	require.NoError(t, r.Open(ModeReadOnly))
	defer r.Close()

	buf := make([]byte, len(data))
	n, err = r.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, data, buf)
}

func TestReadErrorPreservesPartialCount(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "partial.bin")
	data := []byte("0123456789abcdef")
	writeFile(t, path, data)

	faulty := sysio.NewFaultyOps(nil)
	faulty.PlanPread(
		sysio.Fault{Limit: 4},
		sysio.Fault{Err: unix.EIO},
	)

	r := New(path, func(o *Options) { o.Ops = faulty })
	require.NoError(t, r.Open(ModeReadOnly))
	defer r.Close()

	buf := make([]byte, len(data))
	n, err := r.Read(buf, 0)
	require.Error(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, data[:4], buf[:4])
	assert.ErrorIs(t, err, unix.EIO)

	last := r.LastError()
	require.NotNil(t, last)
	assert.Equal(t, notify.KindIO, last.Kind)
	assert.Equal(t, path, last.Path())
}

func TestOpenMissingFile(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "does-not-exist")

	h := New(path)
	err := h.Open(ModeReadOnly)
	require.Error(t, err)
	assert.ErrorIs(t, err, unix.ENOENT)
	assert.False(t, h.IsOpened())
	assert.Equal(t, ModeNone, h.Mode())

	last := h.LastError()
	require.NotNil(t, last)
	assert.Equal(t, notify.KindIO, last.Kind)
	assert.Equal(t, path, last.Path())
	assert.Equal(t, unix.ENOENT, last.Code)
}

func TestIdempotentClose(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "close.bin")

	h := New(path)
	// Close before any open is a no-op
	assert.NoError(t, h.Close())

	require.NoError(t, h.Open(ModeOverWrite))
	assert.NoError(t, h.Close())
	assert.NoError(t, h.Close())
	assert.False(t, h.IsOpened())
}

func TestIOOnClosedHandle(t *testing.T) {
	h := New(filepath.Join(t.TempDir(), "closed.bin"))

	buf := make([]byte, 4)
	_, err := h.Read(buf, 0)
	assert.ErrorIs(t, err, ErrNotOpened)
	_, err = h.Write(buf, 0)
	assert.ErrorIs(t, err, ErrNotOpened)
	_, err = h.Size()
	assert.ErrorIs(t, err, ErrNotOpened)
}

func TestMoveTransfersOwnership(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "move.bin")
	writeFile(t, path, []byte("moved"))

	a := New(path)
	require.NoError(t, a.Open(ModeReadOnly))

	b := a.Move()
	assert.False(t, a.IsOpened())
	assert.Equal(t, ModeNone, a.Mode())
	assert.True(t, b.IsOpened())
	assert.Equal(t, path, b.Path())

	buf := make([]byte, 5)
	n, err := b.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, []byte("moved"), buf)

	// Moved-from handle is inert: close is a no-op
	assert.NoError(t, a.Close())
	require.NoError(t, b.Close())
}

func TestTransferRequiresEqualPaths(t *testing.T) {
	tmp := t.TempDir()
	pathA := filepath.Join(tmp, "a.bin")
	pathB := filepath.Join(tmp, "b.bin")
	writeFile(t, pathA, []byte("aaa"))
	writeFile(t, pathB, []byte("bbb"))

	src := New(pathA)
	require.NoError(t, src.Open(ModeReadOnly))
	defer src.Close()

	dst := New(pathB)
	assert.ErrorIs(t, dst.Transfer(src), ErrPathMismatch)
	assert.True(t, src.IsOpened())
}

func TestTransferReleasesExistingDescriptor(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "transfer.bin")
	writeFile(t, path, []byte("payload"))

	src := New(path)
	require.NoError(t, src.Open(ModeReadOnly))

	dst := New(path)
	require.NoError(t, dst.Open(ModeReadOnly))

	require.NoError(t, dst.Transfer(src))
	assert.False(t, src.IsOpened())
	assert.True(t, dst.IsOpened())

	buf := make([]byte, 7)
	n, err := dst.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, []byte("payload"), buf)
	require.NoError(t, dst.Close())
}

func TestNotifierReceivesFailures(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "missing")

	notifier := notify.NewNotifier()
	var (
		mu       sync.Mutex
		received []*notify.Error
	)
	notifier.Register("test", func(e *notify.Error) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	})

	h := New(path, func(o *Options) { o.Notifier = notifier })
	require.Error(t, h.Open(ModeReadOnly))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, notify.KindIO, received[0].Kind)
	assert.Equal(t, path, received[0].Path())
}

func TestConcurrentReads(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "concurrent.bin")

	data := make([]byte, 64*1024)
	for i := range data {
		data[i] = byte(i)
	}
	writeFile(t, path, data)

	r := New(path)
	require.NoError(t, r.Open(ModeReadOnly))
	defer r.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			off := int64(g * 8192)
			buf := make([]byte, 8192)
			n, err := r.Read(buf, off)
			assert.NoError(t, err)
			assert.Equal(t, int64(8192), n)
			assert.Equal(t, data[off:off+8192], buf)
		}(g)
	}
	wg.Wait()
}

func TestEndToEndScenario(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "e2e.bin")

	w := New(path)
	require.NoError(t, w.Open(ModeOverWrite))
	n, err := w.Write([]byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	require.NoError(t, w.Close())

	r := New(path)
	require.NoError(t, r.Open(ModeReadOnly))
	defer r.Close()

	buf := make([]byte, 5)
	n, err = r.Read(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, []byte("hello"), buf)

	size, err := r.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}
