package atomicfile

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
)

// Some references:
// - https://www.slideshare.net/nan1nan1/eat-my-data
// - https://lwn.net/Articles/457667/

var (
	// ErrCancelled is returned by calls subsequent to RemoveIfNotClosed()
	ErrCancelled = errors.New("cancelled")

	// ensure we implement desired interfaces
	_ io.WriteCloser = &File{}
	_ io.WriterAt    = &File{}
)

type Config struct {
	// permissions of the destination file, before umask. 0 means 0644
	Perm os.FileMode
	// if true, Close() fails with an error matching os.ErrExist when
	// the destination already exists instead of over-writing it.
	// The check and the publish are a single link(2) so it's race free.
	NoClobber bool
}

// File is written to a temporary file in the destination directory
// and only shows up at the destination path after a successful Close().
// Either the whole file is there, synced, or nothing is.
type File struct {
	dstPath string
	dir     string
	tmpPath string
	tmpFile *os.File
	config  Config

	// first error, returned from every subsequent call
	err error
}

// New creates a File that over-writes path on Close()
func New(path string) (*File, error) {
	return NewWithConfig(path, nil)
}

// NewWithConfig creates a File. config can be nil.
func NewWithConfig(path string, config *Config) (*File, error) {
	dir, fName := filepath.Split(path)
	if fName == "" {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	f := &File{
		dstPath: path,
		dir:     dir,
	}
	if config != nil {
		f.config = *config
	}
	if f.config.Perm == 0 {
		f.config.Perm = 0644
	}
	f.tmpFile, err = createTemp(dir, fName, f.config.Perm)
	if err != nil {
		return nil, err
	}
	f.tmpPath = f.tmpFile.Name()
	return f, nil
}

// os.CreateTemp always uses 0600, we want the final permissions
// (subject to umask) to be set at creation time
func createTemp(dir string, prefix string, perm os.FileMode) (*os.File, error) {
	for range 10000 {
		name := fmt.Sprintf(".%s.%08x.tmp", prefix, rand.Uint32())
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, perm)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return f, err
	}
	return nil, &os.PathError{Op: "createtemp", Path: filepath.Join(dir, prefix), Err: os.ErrExist}
}

func (f *File) handleError(err error) error {
	if err == nil {
		return nil
	}
	if f.err == nil {
		f.err = err
	}
	// deletes the temporary file
	_ = f.Close()
	return err
}

func (f *File) Write(d []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := f.tmpFile.Write(d)
	return n, f.handleError(err)
}

func (f *File) WriteAt(d []byte, off int64) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := f.tmpFile.WriteAt(d, off)
	return n, f.handleError(err)
}

// Truncate sets the size of the file. Growing leaves a hole of zeros.
func (f *File) Truncate(size int64) error {
	if f.err != nil {
		return f.err
	}
	return f.handleError(f.tmpFile.Truncate(size))
}

func (f *File) Sync() error {
	if f.err != nil {
		return f.err
	}
	return f.handleError(f.tmpFile.Sync())
}

func (f *File) alreadyClosed() bool {
	return f.tmpFile == nil
}

// RemoveIfNotClosed removes the temp file if we didn't Close
// the file yet. Destination file will not be created.
// Use it with defer to ensure cleanup on early returns and panics.
// RemoveIfNotClosed after Close is a no-op.
func (f *File) RemoveIfNotClosed() {
	if f == nil || f.alreadyClosed() {
		return
	}
	f.err = ErrCancelled
	_ = f.Close()
}

func (f *File) publish() error {
	if !f.config.NoClobber {
		return os.Rename(f.tmpPath, f.dstPath)
	}
	if err := os.Link(f.tmpPath, f.dstPath); err != nil {
		return err
	}
	// dstPath now holds the data, the temp name is just an extra link
	_ = os.Remove(f.tmpPath)
	return nil
}

// Close syncs the file and moves it to the destination.
// Can be called multiple times; returns the first error.
func (f *File) Close() error {
	if f.alreadyClosed() {
		return f.err
	}
	tmpFile := f.tmpFile
	f.tmpFile = nil

	// https://www.joeshaw.org/dont-defer-close-on-writable-files/
	errSync := tmpFile.Sync()
	errClose := tmpFile.Close()

	didPublish := false
	defer func() {
		if !didPublish {
			_ = os.Remove(f.tmpPath)
		}
	}()

	if f.err != nil {
		return f.err
	}
	err := errSync
	if err == nil {
		err = errClose
	}
	if err == nil {
		err = f.publish()
		didPublish = err == nil
	}
	if didPublish {
		// the new directory entry must survive a crash too
		if fdir, _ := os.Open(f.dir); fdir != nil {
			_ = fdir.Sync()
			_ = fdir.Close()
		}
	}
	f.err = err
	return f.err
}
