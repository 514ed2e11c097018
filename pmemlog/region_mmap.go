//go:build linux || darwin

package pmemlog

import (
	"fmt"
	"math"
	"os"

	"golang.org/x/sys/unix"
)

const mmapSupported = true

// mmapRegion is a shared mapping of the whole pool file.
// On a DAX mount writes go straight to persistent memory and msync
// is the flush; on a regular filesystem msync writes back dirty pages.
type mmapRegion struct {
	f        *os.File
	path     string
	data     []byte
	pageSize int64
}

func mapRegion(f *os.File, path string, size int64) (Region, error) {
	if size <= 0 || size > math.MaxInt {
		f.Close()
		return nil, fmt.Errorf("%w: can't map %d bytes", ErrOutOfRange, size)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, ioErr("mmap", path, err)
	}
	return &mmapRegion{
		f:        f,
		path:     path,
		data:     data,
		pageSize: int64(unix.Getpagesize()),
	}, nil
}

func (r *mmapRegion) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, int64(len(p)), r.Size()); err != nil {
		return 0, err
	}
	return copy(p, r.data[off:]), nil
}

func (r *mmapRegion) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange(off, int64(len(p)), r.Size()); err != nil {
		return 0, err
	}
	return copy(r.data[off:], p), nil
}

// Persist msyncs the pages overlapping [off, off+n).
// msync needs a page aligned address and the mapping starts page aligned.
func (r *mmapRegion) Persist(off int64, n int64) error {
	if err := checkRange(off, n, r.Size()); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	start := off &^ (r.pageSize - 1)
	end := off + n
	return ioErr("msync", r.path, unix.Msync(r.data[start:end], unix.MS_SYNC))
}

func (r *mmapRegion) PersistAll() error {
	return ioErr("msync", r.path, unix.Msync(r.data, unix.MS_SYNC))
}

func (r *mmapRegion) Size() int64 {
	return int64(len(r.data))
}

func (r *mmapRegion) Close() error {
	err := unix.Munmap(r.data)
	r.data = nil
	errClose := r.f.Close()
	if err != nil {
		return ioErr("munmap", r.path, err)
	}
	return ioErr("close", r.path, errClose)
}
