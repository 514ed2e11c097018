package pmemlog

import (
	"io"
	"time"
)

// Append durably appends data and returns the offset it was written at.
// When Append returns nil error the data survives a crash. When it returns
// an error the live pool doesn't advance its tail, but after a crash the
// data may or may not be present: commit is defined by the persisted tail,
// which may have reached storage before the persist reported the error.
// Retrying after an error appends a new record, there's no de-duplication.
func (p *Pool) Append(data []byte) (int64, error) {
	return p.AppendV(data)
}

// AppendV appends all bufs as a single atomic record
func (p *Pool) AppendV(bufs ...[]byte) (int64, error) {
	timeStart := time.Now()
	n := 0
	for _, b := range bufs {
		n += len(b)
	}
	off, err := p.appendv(bufs, int64(n))
	p.metrics.ObserveAppend(time.Since(timeStart), n, err)
	return off, err
}

// commit protocol:
//  1. payload is written past the committed tail and persisted
//  2. only then the header tail is written and persisted
//
// A crash before 2. completes leaves stray bytes past the tail which are
// ignored by Open and over-written by the next append.
func (p *Pool) appendv(bufs [][]byte, n int64) (int64, error) {
	p.appendMu.Lock()
	defer p.appendMu.Unlock()
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return 0, ErrHandleClosed
	}
	start, err := p.tracker.reserve(n)
	if err != nil {
		return 0, err
	}
	defer p.tracker.release()
	if n == 0 {
		return start, nil
	}

	pos := HeaderSize + start
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		if _, err = p.region.WriteAt(b, pos); err != nil {
			return 0, err
		}
		pos += int64(len(b))
	}
	if err = p.region.Persist(HeaderSize+start, n); err != nil {
		return 0, err
	}

	end := start + n
	if err = p.persistTail(end); err != nil {
		// the tail word may be half way to storage, put back the committed
		// value in memory so a later successful append persists over it
		_, _ = p.region.WriteAt(encodeTail(start), offTail)
		return 0, err
	}
	p.tracker.commit()
	p.tail.Store(end)
	return start, nil
}

func (p *Pool) persistTail(tail int64) error {
	if _, err := p.region.WriteAt(encodeTail(tail), offTail); err != nil {
		return err
	}
	return p.region.Persist(offTail, 8)
}

// ReadAt reads committed data. Reading past the tail fails with ErrOutOfRange.
// Implements io.ReaderAt.
func (p *Pool) ReadAt(b []byte, off int64) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return 0, ErrHandleClosed
	}
	if err := checkRange(off, int64(len(b)), p.tail.Load()); err != nil {
		return 0, err
	}
	timeStart := time.Now()
	n, err := p.region.ReadAt(b, HeaderSize+off)
	p.metrics.ObserveRead(time.Since(timeStart), n)
	return n, err
}

// Read returns a copy of n committed bytes at offset off
func (p *Pool) Read(off int64, n int64) ([]byte, error) {
	if n < 0 {
		return nil, outOfRange(off, n, p.Tail())
	}
	d := make([]byte, n)
	if _, err := p.ReadAt(d, off); err != nil {
		return nil, err
	}
	return d, nil
}

// Reader returns a reader over data committed at the time of the call
func (p *Pool) Reader() *io.SectionReader {
	return io.NewSectionReader(p, 0, p.Tail())
}

// Walk calls fn with consecutive chunks of committed data, up to chunkSize
// bytes each. chunkSize <= 0 means a single chunk with everything.
// Stops when fn returns false. fn must not retain the slice.
// Data appended while walking is not visited.
func (p *Pool) Walk(chunkSize int64, fn func(d []byte) bool) error {
	tail := p.Tail()
	if tail == 0 {
		return nil
	}
	if chunkSize <= 0 || chunkSize > tail {
		chunkSize = tail
	}
	buf := make([]byte, chunkSize)
	for off := int64(0); off < tail; off += chunkSize {
		d := buf[:min(chunkSize, tail-off)]
		if _, err := p.ReadAt(d, off); err != nil {
			return err
		}
		if !fn(d) {
			return nil
		}
	}
	return nil
}
