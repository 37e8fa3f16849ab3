// Package notify provides the structured error value produced by the I/O
// layer and a process-wide broadcast point for observing failures.
//
// Every failing OS call in this module is reported twice: once through the
// ordinary error return of the failing operation, and once through a
// Notifier so that diagnostics (logging, metrics, crash reporters) can
// observe failures from any goroutine without threading through call sites.
package notify

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"syscall"
)

// Kind classifies an Error.
type Kind int

const (
	// KindUnknown is the zero value.
	KindUnknown Kind = iota
	// KindIO marks a failed file I/O system call.
	KindIO
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is a structured I/O failure.
//
// Code carries the OS error number, Message its textual description, and
// Context additional key/value pairs. Context always includes "path" for
// errors produced by a file handle.
type Error struct {
	Kind    Kind
	Code    syscall.Errno
	Message string
	Context map[string]string
}

// NewIOError builds a KindIO Error from an errno and the path it occurred on.
func NewIOError(errno syscall.Errno, path string) *Error {
	return &Error{
		Kind:    KindIO,
		Code:    errno,
		Message: errno.Error(),
		Context: map[string]string{"path": path},
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s error (code %d): %s", e.Kind, int(e.Code), e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%s", k, e.Context[k])
		}
		sb.WriteString("]")
	}
	return sb.String()
}

// Unwrap exposes the underlying errno so errors.Is(err, unix.ENOENT) works.
func (e *Error) Unwrap() error {
	if e.Code == 0 {
		return nil
	}
	return e.Code
}

// Path returns the "path" context value, or "" if absent.
func (e *Error) Path() string {
	return e.Context["path"]
}

// With adds a context key/value and returns the error for chaining.
func (e *Error) With(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// Observer receives broadcast errors. Implementations must be safe for
// concurrent use; Notify may be called from any goroutine.
type Observer func(*Error)

// Notifier is a named-observer registry. Notification is fire-and-forget:
// the producing operation never blocks on or learns about observers.
type Notifier struct {
	mu        sync.RWMutex
	observers map[string]Observer
}

// NewNotifier creates an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{observers: make(map[string]Observer)}
}

// Default is the process-wide broadcast point. Handles publish here unless
// an explicit Notifier is injected.
var Default = NewNotifier()

// Register adds or replaces the observer stored under name.
func (n *Notifier) Register(name string, o Observer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if o == nil {
		delete(n.observers, name)
		return
	}
	n.observers[name] = o
}

// Unregister removes the observer stored under name.
func (n *Notifier) Unregister(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.observers, name)
}

// Notify broadcasts e to all registered observers. A panicking observer is
// isolated so it cannot break the failing operation's return path.
func (n *Notifier) Notify(e *Error) {
	if n == nil || e == nil {
		return
	}
	n.mu.RLock()
	observers := make([]Observer, 0, len(n.observers))
	for _, o := range n.observers {
		observers = append(observers, o)
	}
	n.mu.RUnlock()

	for _, o := range observers {
		func() {
			defer func() { _ = recover() }()
			o(e)
		}()
	}
}
