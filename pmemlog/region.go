package pmemlog

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Region is a fixed-size, persistently backed byte range addressed like memory.
// Offsets are absolute within the region (the pool header lives at 0).
// WriteAt gives no durability guarantee. After Persist returns, bytes in
// the range survive an immediate power loss.
// Any access with off + len > Size() fails with ErrOutOfRange.
type Region interface {
	io.ReaderAt
	io.WriterAt
	Persist(off int64, n int64) error
	PersistAll() error
	Size() int64
	Close() error
}

// Backend selects how a pool file is accessed
type Backend int

const (
	// BackendDefault is BackendMmap where supported, BackendFile otherwise
	BackendDefault Backend = iota
	// BackendMmap maps the pool file with a shared mapping and persists with msync
	BackendMmap
	// BackendFile uses pread / pwrite and persists with fsync
	BackendFile
	// BackendMem keeps the pool in memory. Nothing survives Close.
	BackendMem
)

func (b Backend) String() string {
	switch b {
	case BackendDefault:
		return "default"
	case BackendMmap:
		return "mmap"
	case BackendFile:
		return "file"
	case BackendMem:
		return "mem"
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

// ParseBackend parses names returned by Backend.String()
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return BackendDefault, nil
	case "mmap":
		return BackendMmap, nil
	case "file":
		return BackendFile, nil
	case "mem", "memory":
		return BackendMem, nil
	}
	return BackendDefault, fmt.Errorf("unknown backend '%s'", s)
}

func (b Backend) resolve() Backend {
	if b == BackendDefault {
		if mmapSupported {
			return BackendMmap
		}
		return BackendFile
	}
	return b
}

func checkRange(off int64, n int64, size int64) error {
	if off < 0 || n < 0 || off > size || n > size-off {
		return outOfRange(off, n, size)
	}
	return nil
}

// newFileBackedRegion takes ownership of f
func newFileBackedRegion(f *os.File, path string, size int64, backend Backend) (Region, error) {
	switch backend.resolve() {
	case BackendMmap:
		return mapRegion(f, path, size)
	case BackendFile:
		return &fileRegion{f: f, path: path, size: size}, nil
	}
	f.Close()
	return nil, fmt.Errorf("backend %s can't be used with a file", backend)
}

// fileRegion is the portable region: every Persist is an fsync of the whole file
type fileRegion struct {
	f    *os.File
	path string
	size int64
}

func (r *fileRegion) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, int64(len(p)), r.size); err != nil {
		return 0, err
	}
	n, err := r.f.ReadAt(p, off)
	return n, ioErr("read", r.path, err)
}

func (r *fileRegion) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, int64(len(p)), r.size); err != nil {
		return 0, err
	}
	n, err := r.f.WriteAt(p, off)
	return n, ioErr("write", r.path, err)
}

func (r *fileRegion) Persist(off int64, n int64) error {
	if err := checkRange(off, n, r.size); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return ioErr("fsync", r.path, r.f.Sync())
}

func (r *fileRegion) PersistAll() error {
	return ioErr("fsync", r.path, r.f.Sync())
}

func (r *fileRegion) Size() int64 {
	return r.size
}

func (r *fileRegion) Close() error {
	return ioErr("close", r.path, r.f.Close())
}

// memRegion backs BackendMem pools. Persist is a no-op.
type memRegion struct {
	data []byte
}

func newMemRegion(size int64) *memRegion {
	return &memRegion{data: make([]byte, size)}
}

func (r *memRegion) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, int64(len(p)), r.Size()); err != nil {
		return 0, err
	}
	return copy(p, r.data[off:]), nil
}

func (r *memRegion) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, int64(len(p)), r.Size()); err != nil {
		return 0, err
	}
	return copy(r.data[off:], p), nil
}

func (r *memRegion) Persist(off int64, n int64) error {
	return checkRange(off, n, r.Size())
}

func (r *memRegion) PersistAll() error {
	return nil
}

func (r *memRegion) Size() int64 {
	return int64(len(r.data))
}

func (r *memRegion) Close() error {
	r.data = nil
	return nil
}
