package archive

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

type Codec int

const (
	CodecNone Codec = iota
	CodecZstd
	CodecBrotli
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecBrotli:
		return "brotli"
	}
	return fmt.Sprintf("Codec(%d)", int(c))
}

// Ext returns file extension conventionally used for the codec
func (c Codec) Ext() string {
	switch c {
	case CodecZstd:
		return ".zst"
	case CodecBrotli:
		return ".br"
	}
	return ""
}

func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CodecNone, nil
	case "zstd", "zst":
		return CodecZstd, nil
	case "brotli", "br":
		return CodecBrotli, nil
	}
	return CodecNone, fmt.Errorf("unknown codec '%s'", s)
}

// CodecFromPath picks codec based on file extension
func CodecFromPath(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst", ".zstd":
		return CodecZstd
	case ".br":
		return CodecBrotli
	}
	return CodecNone
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// newWriter wraps w with a compressor. Close() flushes the compressor,
// it doesn't close w
func newWriter(w io.Writer, c Codec) (io.WriteCloser, error) {
	switch c {
	case CodecNone:
		return nopWriteCloser{w}, nil
	case CodecZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	case CodecBrotli:
		return brotli.NewWriterLevel(w, brotli.DefaultCompression), nil
	}
	return nil, fmt.Errorf("unknown codec %s", c)
}

// newReader wraps r with a decompressor. Call the returned function when done.
func newReader(r io.Reader, c Codec) (io.Reader, func(), error) {
	switch c {
	case CodecNone:
		return r, func() {}, nil
	case CodecZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case CodecBrotli:
		return brotli.NewReader(r), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown codec %s", c)
}
