package pmemlog

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// layout of the pool header, little endian:
//
//	0  magic    [8]byte "PMEMLOG\x00"
//	8  version  uint32
//	12 flags    uint32
//	16 capacity uint64
//	24 tail     uint64
//	32 checksum uint32, crc32c of [0, 24)
//	36 reserved, zero up to HeaderSize
//
// tail is not covered by the checksum. It's an aligned 8 byte word that
// is updated in place and persisted on its own.
const (
	// HeaderSize is the size of the pool header. Data starts right after it.
	HeaderSize = 64

	headerVersion = 1
	flagValid     = 1 << 0

	offMagic    = 0
	offVersion  = 8
	offFlags    = 12
	offCapacity = 16
	offTail     = 24
	offChecksum = 32
)

var (
	headerMagic = []byte("PMEMLOG\x00")
	castagnoli  = crc32.MakeTable(crc32.Castagnoli)
)

type header struct {
	version  uint32
	flags    uint32
	capacity int64
	tail     int64
}

func newHeader(capacity int64) header {
	return header{
		version:  headerVersion,
		flags:    flagValid,
		capacity: capacity,
	}
}

func (h *header) marshal() []byte {
	d := make([]byte, HeaderSize)
	copy(d[offMagic:], headerMagic)
	binary.LittleEndian.PutUint32(d[offVersion:], h.version)
	binary.LittleEndian.PutUint32(d[offFlags:], h.flags)
	binary.LittleEndian.PutUint64(d[offCapacity:], uint64(h.capacity))
	binary.LittleEndian.PutUint64(d[offTail:], uint64(h.tail))
	binary.LittleEndian.PutUint32(d[offChecksum:], crc32.Checksum(d[:offTail], castagnoli))
	return d
}

func encodeTail(tail int64) []byte {
	var d [8]byte
	binary.LittleEndian.PutUint64(d[:], uint64(tail))
	return d[:]
}

// parseHeader validates everything that can be validated
// without knowing the size of the region
func parseHeader(d []byte) (header, error) {
	var h header
	if len(d) < HeaderSize {
		return h, corruptf("header is %d bytes, expected %d", len(d), HeaderSize)
	}
	if !bytes.Equal(d[offMagic:offMagic+len(headerMagic)], headerMagic) {
		return h, corruptf("bad magic %q", d[offMagic:offMagic+len(headerMagic)])
	}
	h.version = binary.LittleEndian.Uint32(d[offVersion:])
	if h.version != headerVersion {
		return h, corruptf("unsupported version %d", h.version)
	}
	exp := binary.LittleEndian.Uint32(d[offChecksum:])
	got := crc32.Checksum(d[:offTail], castagnoli)
	if exp != got {
		return h, corruptf("header checksum mismatch, expected %08x, got %08x", exp, got)
	}
	h.flags = binary.LittleEndian.Uint32(d[offFlags:])
	if h.flags&flagValid == 0 {
		return h, corruptf("pool is not marked valid")
	}
	capacity := binary.LittleEndian.Uint64(d[offCapacity:])
	tail := binary.LittleEndian.Uint64(d[offTail:])
	if capacity == 0 || capacity > 1<<62 {
		return h, corruptf("invalid capacity %d", capacity)
	}
	if tail > capacity {
		return h, corruptf("tail %d past capacity %d", tail, capacity)
	}
	h.capacity = int64(capacity)
	h.tail = int64(tail)
	return h, nil
}
