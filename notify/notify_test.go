package notify

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestNewIOError(t *testing.T) {
	e := NewIOError(unix.ENOENT, "/tmp/missing")

	assert.Equal(t, KindIO, e.Kind)
	assert.Equal(t, unix.ENOENT, e.Code)
	assert.Equal(t, unix.ENOENT.Error(), e.Message)
	assert.Equal(t, "/tmp/missing", e.Path())
	assert.True(t, errors.Is(e, unix.ENOENT))
	assert.Contains(t, e.Error(), "path=/tmp/missing")
	assert.Contains(t, e.Error(), "io error")
}

func TestErrorWith(t *testing.T) {
	e := NewIOError(unix.EIO, "/data/db").With("operation", "read")

	assert.Equal(t, "read", e.Context["operation"])
	assert.Equal(t, "/data/db", e.Path())
}

func TestNotifierBroadcast(t *testing.T) {
	n := NewNotifier()

	var (
		mu   sync.Mutex
		seen []string
	)
	observe := func(name string) Observer {
		return func(e *Error) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, name)
		}
	}

	n.Register("a", observe("a"))
	n.Register("b", observe("b"))

	n.Notify(NewIOError(unix.EIO, "/x"))

	mu.Lock()
	assert.ElementsMatch(t, []string{"a", "b"}, seen)
	seen = nil
	mu.Unlock()

	n.Unregister("a")
	n.Notify(NewIOError(unix.EIO, "/x"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"b"}, seen)
}

func TestNotifierIsolatesPanics(t *testing.T) {
	n := NewNotifier()

	var called bool
	n.Register("panics", func(e *Error) { panic("observer bug") })
	n.Register("ok", func(e *Error) { called = true })

	require.NotPanics(t, func() {
		n.Notify(NewIOError(unix.EIO, "/x"))
	})
	assert.True(t, called)
}

func TestNotifyNilSafe(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, func() { n.Notify(NewIOError(unix.EIO, "/x")) })

	n2 := NewNotifier()
	assert.NotPanics(t, func() { n2.Notify(nil) })
}
