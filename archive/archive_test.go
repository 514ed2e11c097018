package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/kjk/pmemlog/pmemlog"
	"github.com/kjk/pmemlog/require"
)

func makePool(t *testing.T, n int) *pmemlog.Pool {
	t.Helper()
	p, err := pmemlog.OpenMem(64*1024, nil)
	require.NoError(t, err)
	for i := range n {
		_, err = p.Append(fmt.Appendf(nil, "This is the %dth string appended", i))
		require.NoError(t, err)
	}
	return p
}

func poolData(t *testing.T, p *pmemlog.Pool) []byte {
	t.Helper()
	d, err := p.Read(0, p.Tail())
	require.NoError(t, err)
	return d
}

func TestExportRestore(t *testing.T) {
	src := makePool(t, 500)
	exp := poolData(t, src)
	for _, codec := range []Codec{CodecNone, CodecZstd, CodecBrotli} {
		t.Run(codec.String(), func(t *testing.T) {
			var buf bytes.Buffer
			info, err := Export(src, &buf, codec)
			require.NoError(t, err)
			require.Equal(t, src.Tail(), info.Size)
			require.Equal(t, src.Capacity(), info.Capacity)
			if codec != CodecNone {
				require.True(t, int64(buf.Len()) < info.Size, "%s didn't compress: %d", codec, buf.Len())
			}

			path := filepath.Join(t.TempDir(), "restored")
			p, err := Restore(path, 0, &buf, codec, nil)
			require.NoError(t, err)
			defer p.Close()
			require.Equal(t, src.Capacity(), p.Capacity())
			require.BytesEqual(t, exp, poolData(t, p))
		})
	}
}

func TestExportEmpty(t *testing.T) {
	src := makePool(t, 0)
	var buf bytes.Buffer
	_, err := Export(src, &buf, CodecZstd)
	require.NoError(t, err)
	p, err := Restore(filepath.Join(t.TempDir(), "p"), 16, &buf, CodecZstd, nil)
	require.NoError(t, err)
	defer p.Close()
	require.Equal(t, int64(0), p.Tail())
	require.Equal(t, int64(16), p.Capacity())
}

func TestExportFile(t *testing.T) {
	src := makePool(t, 100)
	dir := t.TempDir()
	for _, name := range []string{"pool.bin", "pool.bin.zst", "pool.bin.br"} {
		exportPath := filepath.Join(dir, name)
		_, err := ExportFile(src, exportPath)
		require.NoError(t, err)

		path := filepath.Join(dir, name+".restored")
		p, err := RestoreFile(path, 0, exportPath, nil)
		require.NoError(t, err)
		require.BytesEqual(t, poolData(t, src), poolData(t, p))
		require.NoError(t, p.Close())
	}
	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 6)
}

func TestRestoreFailures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p")

	_, err := Restore(path, 0, bytes.NewReader([]byte("not an export at all")), CodecNone, nil)
	require.ErrorIs(t, err, ErrBadExport)

	src := makePool(t, 10)
	var buf bytes.Buffer
	_, err = Export(src, &buf, CodecNone)
	require.NoError(t, err)
	d := buf.Bytes()

	// too small
	_, err = Restore(path, 10, bytes.NewReader(d), CodecNone, nil)
	require.ErrorIs(t, err, pmemlog.ErrPoolFull)

	// truncated data, pool must not be left behind
	_, err = Restore(path, 0, bytes.NewReader(d[:len(d)-5]), CodecNone, nil)
	require.ErrorIs(t, err, ErrBadExport)
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err), "partial restore left a pool behind")

	// destination exists
	p, err := pmemlog.Create(path, 8, 0644, nil)
	require.NoError(t, err)
	require.NoError(t, p.Close())
	_, err = Restore(path, 0, bytes.NewReader(d), CodecNone, nil)
	require.ErrorIs(t, err, pmemlog.ErrAlreadyExists)
}

func TestCodecs(t *testing.T) {
	require.Equal(t, CodecZstd, CodecFromPath("a/b.ZST"))
	require.Equal(t, CodecBrotli, CodecFromPath("x.br"))
	require.Equal(t, CodecNone, CodecFromPath("x.pool"))
	for _, c := range []Codec{CodecNone, CodecZstd, CodecBrotli} {
		c2, err := ParseCodec(c.String())
		require.NoError(t, err)
		require.Equal(t, c, c2)
		require.Equal(t, c, CodecFromPath("x"+c.Ext()))
	}
	_, err := ParseCodec("lz4")
	require.Error(t, err)
}

func TestUploadConfigValidation(t *testing.T) {
	_, err := UploadS3(context.Background(), nil, "x", "y")
	require.Error(t, err)
	_, err = UploadS3(context.Background(), &S3Config{Bucket: "b"}, "x", "y")
	require.Error(t, err)
	require.Error(t, UploadSFTP(nil, "x", "y"))
	require.Error(t, UploadSFTP(&SFTPConfig{Host: "h"}, "x", "y"))
	require.Equal(t, "application/zstd", contentTypeForExport("a.zst"))
}
