// Package bridge exposes pmemlog pools to a foreign runtime through
// opaque integer handles instead of raw pointers.
//
// Paths and payloads arrive as byte slices owned by the caller. They are
// copied before use so the caller may release them as soon as a call returns.
package bridge

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/kjk/pmemlog/pmemlog"
)

// Handle identifies a pool opened through a Table. The zero Handle is
// never issued and is returned when Create fails.
type Handle uint64

// ErrInvalidHandle is returned for handles that were never issued by the table
var ErrInvalidHandle = errors.New("bridge: invalid handle")

// Table maps handles to open pools. Safe for concurrent use.
type Table struct {
	opts *pmemlog.Options

	mu    sync.Mutex
	next  Handle
	pools map[Handle]*pmemlog.Pool
}

// NewTable returns an empty handle table. opts are used for every pool it opens.
func NewTable(opts *pmemlog.Options) *Table {
	return &Table{
		opts:  opts,
		next:  1,
		pools: map[Handle]*pmemlog.Pool{},
	}
}

// Create creates the pool at path, or opens it if it already exists,
// and returns a new handle for it. On failure returns the zero Handle
// and the error.
func (t *Table) Create(path []byte, size int64) (Handle, error) {
	p, err := pmemlog.CreateOrOpen(string(path), size, t.opts)
	if err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.next
	t.next++
	t.pools[h] = p
	return h, nil
}

func (t *Table) get(h Handle) (*pmemlog.Pool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h == 0 || h >= t.next {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	p, ok := t.pools[h]
	if !ok {
		return nil, fmt.Errorf("%w: handle %d", pmemlog.ErrHandleClosed, h)
	}
	return p, nil
}

// Append appends a copy of data to the pool behind h.
// Errors are always reported, never swallowed.
func (t *Table) Append(h Handle, data []byte) error {
	p, err := t.get(h)
	if err != nil {
		return err
	}
	_, err = p.Append(bytes.Clone(data))
	return err
}

// Close closes the pool behind h. Closing an already closed handle is a no-op.
func (t *Table) Close(h Handle) error {
	t.mu.Lock()
	if h == 0 || h >= t.next {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	p, ok := t.pools[h]
	delete(t.pools, h)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return p.Close()
}

// Len returns the number of open handles
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pools)
}

// CloseAll closes every open handle and returns the first error
func (t *Table) CloseAll() error {
	t.mu.Lock()
	pools := t.pools
	t.pools = map[Handle]*pmemlog.Pool{}
	t.mu.Unlock()

	var firstErr error
	for _, p := range pools {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
