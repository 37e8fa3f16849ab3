package archive

import (
	"context"
	"sync"
)

// Catalog durably records Entry descriptors, keyed by entry name. The store
// holds an entry's bytes; the catalog holds what Restore needs to verify
// them — size, checksum and compression — which cannot be re-derived from
// the compressed blob alone.
type Catalog interface {
	// Put records or replaces the descriptor for entry.Name.
	Put(ctx context.Context, entry *Entry) error

	// Get returns the descriptor recorded under name, or ErrNotFound.
	Get(ctx context.Context, name string) (*Entry, error)

	// Delete removes the descriptor recorded under name. Deleting an
	// absent descriptor is not an error.
	Delete(ctx context.Context, name string) error
}

// MemoryCatalog is an in-memory Catalog for tests and single-process use.
type MemoryCatalog struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryCatalog creates an empty MemoryCatalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{entries: make(map[string]Entry)}
}

// Put implements Catalog.
func (c *MemoryCatalog) Put(_ context.Context, entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.Name] = *entry
	return nil
}

// Get implements Catalog.
func (c *MemoryCatalog) Get(_ context.Context, name string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}

// Delete implements Catalog.
func (c *MemoryCatalog) Delete(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
	return nil
}
