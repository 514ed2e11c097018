//go:build !(linux || darwin)

package pmemlog

import (
	"errors"
	"os"
)

const mmapSupported = false

func mapRegion(f *os.File, path string, size int64) (Region, error) {
	f.Close()
	return nil, ioErr("mmap", path, errors.New("mmap backend not supported on this platform"))
}
