package pmemlog

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyExists is returned by Create when something already exists at the path
	ErrAlreadyExists = errors.New("pmemlog: pool already exists")
	// ErrNotFound is returned by Open when there's no pool at the path
	ErrNotFound = errors.New("pmemlog: pool not found")
	// ErrCorruptPool is returned by Open / Check when header validation fails
	ErrCorruptPool = errors.New("pmemlog: corrupt pool")
	// ErrOutOfRange is returned for region or pool access outside of valid bounds
	ErrOutOfRange = errors.New("pmemlog: access out of range")
	// ErrPoolFull is returned when an append would exceed the capacity.
	// It's terminal for that append, the pool is never resized.
	ErrPoolFull = errors.New("pmemlog: pool full")
	// ErrIO is matched by every *IOError
	ErrIO = errors.New("pmemlog: i/o error")
	// ErrHandleClosed is returned when using a pool after Close
	ErrHandleClosed = errors.New("pmemlog: pool closed")
	// ErrInvalidCapacity is returned by Create for capacity <= 0
	ErrInvalidCapacity = errors.New("pmemlog: invalid capacity")
)

// IOError describes a failure of the backing storage.
// errors.Is(err, ErrIO) is true for it and so is errors.Is(err, <os error>)
// e.g. fs.ErrPermission.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("pmemlog: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("pmemlog: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

func ioErr(op string, path string, err error) error {
	if err == nil {
		return nil
	}
	var ioe *IOError
	if errors.As(err, &ioe) {
		return err
	}
	return &IOError{Op: op, Path: path, Err: err}
}

func corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptPool, fmt.Sprintf(format, args...))
}

func outOfRange(off int64, n int64, size int64) error {
	return fmt.Errorf("%w: offset %d, length %d, size %d", ErrOutOfRange, off, n, size)
}
