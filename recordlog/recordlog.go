package recordlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"iter"
	"math"

	"github.com/kjk/pmemlog/pmemlog"
)

// FrameHeaderSize is the per-record overhead: u32 length | u32 crc32c(payload)
const FrameHeaderSize = 8

// MaxRecordSize is the largest payload that fits in a frame
const MaxRecordSize = math.MaxUint32

var (
	// ErrCorruptRecord is returned when a frame fails validation
	ErrCorruptRecord = errors.New("recordlog: corrupt record")
	// ErrRecordTooLarge is returned by Append for payloads over MaxRecordSize
	ErrRecordTooLarge = errors.New("recordlog: record too large")

	castagnoli = crc32.MakeTable(crc32.Castagnoli)
)

// Record is a payload and the pool offset of its frame
type Record struct {
	Offset int64
	Data   []byte
}

// Size returns the number of pool bytes the record occupies
func (r *Record) Size() int64 {
	return FrameHeaderSize + int64(len(r.Data))
}

// Append writes d as one frame. The frame commits atomically
// so after a crash the record is either there, whole, or not at all.
// Returns the offset of the frame.
func Append(p *pmemlog.Pool, d []byte) (int64, error) {
	if uint64(len(d)) > MaxRecordSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(d))
	}
	var hdr [FrameHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(d)))
	binary.LittleEndian.PutUint32(hdr[4:], crc32.Checksum(d, castagnoli))
	return p.AppendV(hdr[:], d)
}

// ReadAt reads the record whose frame starts at off
func ReadAt(p *pmemlog.Pool, off int64) (*Record, error) {
	var hdr [FrameHeaderSize]byte
	if _, err := p.ReadAt(hdr[:], off); err != nil {
		if errors.Is(err, pmemlog.ErrOutOfRange) {
			return nil, fmt.Errorf("%w: truncated frame header at %d: %w", ErrCorruptRecord, off, err)
		}
		return nil, err
	}
	size := int64(binary.LittleEndian.Uint32(hdr[0:]))
	exp := binary.LittleEndian.Uint32(hdr[4:])
	if size > p.Tail()-off-FrameHeaderSize {
		return nil, fmt.Errorf("%w: record at %d of size %d goes past tail %d", ErrCorruptRecord, off, size, p.Tail())
	}
	d, err := p.Read(off+FrameHeaderSize, size)
	if err != nil {
		return nil, err
	}
	if got := crc32.Checksum(d, castagnoli); got != exp {
		return nil, fmt.Errorf("%w: checksum mismatch at %d, expected %08x, got %08x", ErrCorruptRecord, off, exp, got)
	}
	return &Record{Offset: off, Data: d}, nil
}

// Records returns an iterator over records committed at the time of the call.
// Call the returned error function after iteration to check for errors.
// Iteration stops at the first corrupt frame.
func Records(p *pmemlog.Pool) (iter.Seq[*Record], func() error) {
	var iterErr error
	seq := func(yield func(*Record) bool) {
		tail := p.Tail()
		for off := int64(0); off < tail; {
			rec, err := ReadAt(p, off)
			if err != nil {
				iterErr = err
				return
			}
			if !yield(rec) {
				return
			}
			off += rec.Size()
		}
	}
	return seq, func() error { return iterErr }
}

// Count returns the number of records in the pool
func Count(p *pmemlog.Pool) (int, error) {
	n := 0
	recs, errFn := Records(p)
	for range recs {
		n++
	}
	return n, errFn()
}
