package pmemlog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kjk/pmemlog/atomicfile"
)

// DefaultPerm is used by CreateOrOpen, before umask
const DefaultPerm os.FileMode = 0666

// MetricsHook observes pool operations. Calls happen on the caller's goroutine.
type MetricsHook interface {
	// ObserveAppend is called after every Append / AppendV, err is its result
	ObserveAppend(elapsed time.Duration, bytes int, err error)
	ObserveRead(elapsed time.Duration, bytes int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveAppend(time.Duration, int, error) {}
func (noopMetrics) ObserveRead(time.Duration, int)          {}

// Options configures how a pool is opened. nil *Options means defaults.
type Options struct {
	// Backend selects the region implementation
	Backend Backend
	// Metrics is optional
	Metrics MetricsHook
	// Logf, if set, is called for pool lifecycle events (create, open, close)
	Logf func(format string, args ...any)
}

func (o *Options) withDefaults() Options {
	var res Options
	if o != nil {
		res = *o
	}
	if res.Metrics == nil {
		res.Metrics = noopMetrics{}
	}
	if res.Logf == nil {
		res.Logf = func(string, ...any) {}
	}
	return res
}

// Pool is an open append-only log.
// It's safe for concurrent use. Appends are serialized, reads
// of committed data run concurrently with them.
type Pool struct {
	path     string
	capacity int64
	backend  Backend
	metrics  MetricsHook
	logf     func(format string, args ...any)

	// append critical section: reservation through tail persist
	appendMu sync.Mutex
	tracker  offsetTracker

	// committed tail, published after the header persist
	tail atomic.Int64

	// guards region lifetime. Close() takes it exclusively
	mu     sync.RWMutex
	closed bool
	region Region
}

// Stat describes a pool
type Stat struct {
	Path     string `json:"path"`
	Backend  string `json:"backend"`
	Capacity int64  `json:"capacity"`
	Tail     int64  `json:"tail"`
	Free     int64  `json:"free"`
}

// Create formats a new pool at path with capacity bytes for data.
// Fails with ErrAlreadyExists if path exists. The pool file is written
// and synced under a temporary name and linked into place at the end
// so a crash never leaves a half-formatted pool at path.
// With BackendMem nothing is written to disk and path is only a label.
func Create(path string, capacity int64, perm os.FileMode, opts *Options) (*Pool, error) {
	o := opts.withDefaults()
	if o.Backend != BackendMem {
		// existing path wins over invalid capacity so CreateOrOpen(path, 0) opens
		if _, err := os.Lstat(path); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, path)
		}
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	if o.Backend == BackendMem {
		return openMem(path, capacity, o), nil
	}
	if err := formatPoolFile(path, capacity, perm); err != nil {
		return nil, err
	}
	p, err := openPoolFile(path, o)
	if err != nil {
		return nil, err
	}
	o.Logf("pmemlog: created pool '%s', capacity: %d, backend: %s\n", path, capacity, p.backend)
	return p, nil
}

// Open opens an existing pool and validates its header.
// Fails with ErrNotFound or ErrCorruptPool.
func Open(path string, opts *Options) (*Pool, error) {
	o := opts.withDefaults()
	if o.Backend == BackendMem {
		return nil, fmt.Errorf("%w: %s (memory pools can't be re-opened)", ErrNotFound, path)
	}
	p, err := openPoolFile(path, o)
	if err != nil {
		return nil, err
	}
	o.Logf("pmemlog: opened pool '%s', capacity: %d, tail: %d, backend: %s\n", path, p.capacity, p.Tail(), p.backend)
	return p, nil
}

// CreateOrOpen creates a pool or, if path already exists, opens it.
// capacity is ignored for existing pools, 0 means "open only".
func CreateOrOpen(path string, capacity int64, opts *Options) (*Pool, error) {
	p, err := Create(path, capacity, DefaultPerm, opts)
	if errors.Is(err, ErrAlreadyExists) {
		return Open(path, opts)
	}
	return p, err
}

// OpenMem creates a volatile pool that lives only in memory
func OpenMem(capacity int64, opts *Options) (*Pool, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return openMem("", capacity, opts.withDefaults()), nil
}

func openMem(label string, capacity int64, o Options) *Pool {
	r := newMemRegion(HeaderSize + capacity)
	h := newHeader(capacity)
	_, _ = r.WriteAt(h.marshal(), 0)
	p, err := newPool(label, r, BackendMem, o)
	if err != nil {
		// we just wrote a valid header
		panic(err)
	}
	return p
}

// Check validates the pool at path without opening it for writing
func Check(path string) (*Stat, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, ioErr("open", path, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, ioErr("stat", path, err)
	}
	d := make([]byte, HeaderSize)
	if st.Size() >= HeaderSize {
		if _, err = f.ReadAt(d, 0); err != nil {
			return nil, ioErr("read", path, err)
		}
	}
	h, err := validateHeader(d, st.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Stat{
		Path:     path,
		Backend:  "none",
		Capacity: h.capacity,
		Tail:     h.tail,
		Free:     h.capacity - h.tail,
	}, nil
}

func validateHeader(d []byte, regionSize int64) (header, error) {
	if regionSize < HeaderSize {
		return header{}, corruptf("size %d is smaller than header", regionSize)
	}
	h, err := parseHeader(d)
	if err != nil {
		return h, err
	}
	if HeaderSize+h.capacity != regionSize {
		return h, corruptf("capacity %d doesn't match size %d", h.capacity, regionSize)
	}
	return h, nil
}

func formatPoolFile(path string, capacity int64, perm os.FileMode) error {
	// NoClobber makes the existence check race free
	f, err := atomicfile.NewWithConfig(path, &atomicfile.Config{Perm: perm, NoClobber: true})
	if err != nil {
		return ioErr("create", path, err)
	}
	defer f.RemoveIfNotClosed()

	if err = f.Truncate(HeaderSize + capacity); err != nil {
		return ioErr("truncate", path, err)
	}
	h := newHeader(capacity)
	if _, err = f.WriteAt(h.marshal(), 0); err != nil {
		return ioErr("write", path, err)
	}
	err = f.Close()
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	}
	return ioErr("create", path, err)
}

func openPoolFile(path string, o Options) (*Pool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, ioErr("open", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ioErr("stat", path, err)
	}
	if !st.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, corruptf("not a regular file"))
	}
	size := st.Size()
	if size < HeaderSize {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, corruptf("size %d is smaller than header", size))
	}
	backend := o.Backend.resolve()
	r, err := newFileBackedRegion(f, path, size, backend)
	if err != nil {
		return nil, err
	}
	p, err := newPool(path, r, backend, o)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// newPool validates the header found in r. That's all the recovery there is:
// the persisted tail is trusted and bytes past it are ignored.
func newPool(path string, r Region, backend Backend, o Options) (*Pool, error) {
	d := make([]byte, HeaderSize)
	if r.Size() >= HeaderSize {
		if _, err := r.ReadAt(d, 0); err != nil {
			return nil, err
		}
	}
	h, err := validateHeader(d, r.Size())
	if err != nil {
		return nil, err
	}
	p := &Pool{
		path:     path,
		capacity: h.capacity,
		backend:  backend,
		metrics:  o.Metrics,
		logf:     o.Logf,
		tracker:  newOffsetTracker(h.tail, h.capacity),
		region:   r,
	}
	p.tail.Store(h.tail)
	return p, nil
}

// Close persists everything and releases the pool. Waits for appends
// and reads in flight. Calling Close more than once is a no-op.
func (p *Pool) Close() error {
	p.appendMu.Lock()
	defer p.appendMu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	errPersist := p.region.PersistAll()
	errClose := p.region.Close()
	p.logf("pmemlog: closed pool '%s', tail: %d\n", p.path, p.Tail())
	if errPersist != nil {
		return errPersist
	}
	return errClose
}

// Path returns the path the pool was created or opened with
func (p *Pool) Path() string {
	return p.path
}

// Capacity returns the number of data bytes the pool can hold
func (p *Pool) Capacity() int64 {
	return p.capacity
}

// Tail returns the offset one past the last committed byte.
// It's also the number of bytes used.
func (p *Pool) Tail() int64 {
	return p.tail.Load()
}

// Free returns how many bytes can still be appended
func (p *Pool) Free() int64 {
	return p.capacity - p.Tail()
}

func (p *Pool) Stat() Stat {
	tail := p.Tail()
	return Stat{
		Path:     p.path,
		Backend:  p.backend.String(),
		Capacity: p.capacity,
		Tail:     tail,
		Free:     p.capacity - tail,
	}
}
