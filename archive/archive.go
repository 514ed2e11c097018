// Package archive exports committed pool data to a portable, optionally
// compressed file and restores pools from such exports. Exports can be
// shipped off the machine with UploadS3 or UploadSFTP.
//
// Export format, before compression:
//
//	8 bytes magic "PMEMEXP1"
//	u64 capacity of the source pool
//	u64 n, number of data bytes
//	n bytes of data
//
// All integers are little endian.
package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kjk/pmemlog/atomicfile"
	"github.com/kjk/pmemlog/pmemlog"
)

const (
	exportMagic      = "PMEMEXP1"
	exportHeaderSize = 24

	restoreChunkSize = 1 << 20
)

// ErrBadExport is returned by Restore for data that isn't a valid export
var ErrBadExport = errors.New("archive: not a valid export")

// Info describes an export
type Info struct {
	Capacity int64
	Size     int64
}

// Export writes data committed at the time of the call to w
func Export(p *pmemlog.Pool, w io.Writer, codec Codec) (*Info, error) {
	cw, err := newWriter(w, codec)
	if err != nil {
		return nil, err
	}
	r := p.Reader()
	info := &Info{
		Capacity: p.Capacity(),
		Size:     r.Size(),
	}
	var hdr [exportHeaderSize]byte
	copy(hdr[:], exportMagic)
	binary.LittleEndian.PutUint64(hdr[8:], uint64(info.Capacity))
	binary.LittleEndian.PutUint64(hdr[16:], uint64(info.Size))
	if _, err = cw.Write(hdr[:]); err != nil {
		cw.Close()
		return nil, err
	}
	if _, err = io.Copy(cw, r); err != nil {
		cw.Close()
		return nil, err
	}
	if err = cw.Close(); err != nil {
		return nil, err
	}
	return info, nil
}

// ExportFile exports p to path. Codec is picked from the extension of path
// (.zst, .br, anything else is uncompressed). The file is written atomically.
func ExportFile(p *pmemlog.Pool, path string) (*Info, error) {
	f, err := atomicfile.New(path)
	if err != nil {
		return nil, err
	}
	defer f.RemoveIfNotClosed()
	info, err := Export(p, f, CodecFromPath(path))
	if err != nil {
		return nil, err
	}
	if err = f.Close(); err != nil {
		return nil, err
	}
	return info, nil
}

func readExportHeader(r io.Reader) (*Info, error) {
	var hdr [exportHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", ErrBadExport, err)
	}
	if string(hdr[:8]) != exportMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrBadExport, hdr[:8])
	}
	info := &Info{
		Capacity: int64(binary.LittleEndian.Uint64(hdr[8:])),
		Size:     int64(binary.LittleEndian.Uint64(hdr[16:])),
	}
	if info.Size < 0 || info.Capacity < 0 || info.Size > info.Capacity {
		return nil, fmt.Errorf("%w: size %d, capacity %d", ErrBadExport, info.Size, info.Capacity)
	}
	return info, nil
}

// Restore creates a new pool at path from an export read from r.
// capacity <= 0 means the capacity of the exported pool.
// On failure no pool is left at path.
func Restore(path string, capacity int64, r io.Reader, codec Codec, opts *pmemlog.Options) (*pmemlog.Pool, error) {
	dr, closeReader, err := newReader(r, codec)
	if err != nil {
		return nil, err
	}
	defer closeReader()
	info, err := readExportHeader(dr)
	if err != nil {
		return nil, err
	}
	if capacity <= 0 {
		capacity = max(info.Capacity, 1)
	}
	if info.Size > capacity {
		return nil, fmt.Errorf("%w: export has %d bytes, capacity is %d", pmemlog.ErrPoolFull, info.Size, capacity)
	}
	p, err := pmemlog.Create(path, capacity, pmemlog.DefaultPerm, opts)
	if err != nil {
		return nil, err
	}
	if err = restoreData(p, dr, info.Size); err != nil {
		p.Close()
		os.Remove(path)
		return nil, err
	}
	return p, nil
}

func restoreData(p *pmemlog.Pool, r io.Reader, size int64) error {
	buf := make([]byte, min(size, restoreChunkSize))
	for left := size; left > 0; {
		d := buf[:min(left, int64(len(buf)))]
		if _, err := io.ReadFull(r, d); err != nil {
			return fmt.Errorf("%w: data: %w", ErrBadExport, err)
		}
		if _, err := p.Append(d); err != nil {
			return err
		}
		left -= int64(len(d))
	}
	return nil
}

// RestoreFile is Restore from a file, codec is picked from the extension
func RestoreFile(path string, capacity int64, exportPath string, opts *pmemlog.Options) (*pmemlog.Pool, error) {
	f, err := os.Open(exportPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Restore(path, capacity, f, CodecFromPath(exportPath), opts)
}
