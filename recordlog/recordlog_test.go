package recordlog

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/kjk/pmemlog/pmemlog"
	"github.com/kjk/pmemlog/require"
)

func openPool(t *testing.T, path string, capacity int64) *pmemlog.Pool {
	t.Helper()
	p, err := pmemlog.CreateOrOpen(path, capacity, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestRecordsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records")
	p := openPool(t, path, 64*1024)

	var exp []string
	var offsets []int64
	for i := range 100 {
		s := fmt.Sprintf("This is the %dth string appended", i)
		if i%10 == 0 {
			s = "" // empty records are still records
		}
		off, err := Append(p, []byte(s))
		require.NoError(t, err)
		exp = append(exp, s)
		offsets = append(offsets, off)
	}
	require.NoError(t, p.Close())

	p = openPool(t, path, 0)
	n, err := Count(p)
	require.NoError(t, err)
	require.Equal(t, len(exp), n)

	i := 0
	recs, errFn := Records(p)
	for rec := range recs {
		require.Equal(t, offsets[i], rec.Offset)
		require.Equal(t, exp[i], string(rec.Data))
		i++
	}
	require.NoError(t, errFn())

	rec, err := ReadAt(p, offsets[42])
	require.NoError(t, err)
	require.Equal(t, exp[42], string(rec.Data))
}

func TestRecordsStopEarly(t *testing.T) {
	p, err := pmemlog.OpenMem(1024, nil)
	require.NoError(t, err)
	for range 5 {
		_, err = Append(p, []byte("x"))
		require.NoError(t, err)
	}
	n := 0
	recs, errFn := Records(p)
	for range recs {
		n++
		if n == 2 {
			break
		}
	}
	require.Equal(t, 2, n)
	require.NoError(t, errFn())
}

func TestCorruptRecord(t *testing.T) {
	p, err := pmemlog.OpenMem(1024, nil)
	require.NoError(t, err)
	_, err = Append(p, []byte("good"))
	require.NoError(t, err)
	// raw append that doesn't look like a valid frame
	_, err = p.Append([]byte("\x02\x00\x00\x00\xde\xad\xbe\xefxy"))
	require.NoError(t, err)

	n := 0
	recs, errFn := Records(p)
	for range recs {
		n++
	}
	require.Equal(t, 1, n)
	require.ErrorIs(t, errFn(), ErrCorruptRecord)

	// length that points past the tail
	p2, err := pmemlog.OpenMem(1024, nil)
	require.NoError(t, err)
	_, err = p2.Append([]byte("\xff\x00\x00\x00\x00\x00\x00\x00"))
	require.NoError(t, err)
	_, err = ReadAt(p2, 0)
	require.ErrorIs(t, err, ErrCorruptRecord)

	// truncated frame header
	p3, err := pmemlog.OpenMem(1024, nil)
	require.NoError(t, err)
	_, err = p3.Append([]byte("abc"))
	require.NoError(t, err)
	_, err = Count(p3)
	require.ErrorIs(t, err, ErrCorruptRecord)
}

func TestAppendPoolFull(t *testing.T) {
	p, err := pmemlog.OpenMem(FrameHeaderSize+3, nil)
	require.NoError(t, err)
	_, err = Append(p, []byte("abcd"))
	require.ErrorIs(t, err, pmemlog.ErrPoolFull)
	require.Equal(t, int64(0), p.Tail())
	_, err = Append(p, []byte("abc"))
	require.NoError(t, err)
}
