package bridge

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kjk/pmemlog/pmemlog"
	"github.com/kjk/pmemlog/require"
)

func TestCreateAppendClose(t *testing.T) {
	tbl := NewTable(nil)
	path := filepath.Join(t.TempDir(), "jni.pool")

	h, err := tbl.Create([]byte(path), 1024)
	require.NoError(t, err)
	require.NotEqual(t, Handle(0), h)

	d := []byte("This is the 0th string appended")
	require.NoError(t, tbl.Append(h, d))
	// caller may reuse its buffer right away
	copy(d, "XXXX")
	require.NoError(t, tbl.Append(h, []byte("!")))
	require.NoError(t, tbl.Close(h))
	require.Equal(t, 0, tbl.Len())

	// closed handle
	require.ErrorIs(t, tbl.Append(h, []byte("x")), pmemlog.ErrHandleClosed)
	require.NoError(t, tbl.Close(h))

	// reopen through the table finds the data
	h2, err := tbl.Create([]byte(path), 1024)
	require.NoError(t, err)
	require.NotEqual(t, h, h2)
	require.NoError(t, tbl.CloseAll())

	p, err := pmemlog.Open(path, nil)
	require.NoError(t, err)
	defer p.Close()
	got, err := p.Read(0, p.Tail())
	require.NoError(t, err)
	require.BytesEqual(t, []byte("This is the 0th string appended!"), got)
}

func TestCreateExistingZeroSize(t *testing.T) {
	tbl := NewTable(nil)
	defer tbl.CloseAll()
	path := []byte(filepath.Join(t.TempDir(), "jni.pool"))

	h, err := tbl.Create(path, 256)
	require.NoError(t, err)
	require.NoError(t, tbl.Append(h, []byte("abc")))
	require.NoError(t, tbl.Close(h))

	// size is only used when the pool doesn't exist yet
	h, err = tbl.Create(path, 0)
	require.NoError(t, err)
	require.NotEqual(t, Handle(0), h)
	require.NoError(t, tbl.Append(h, []byte("def")))
	require.NoError(t, tbl.Close(h))

	p, err := pmemlog.Open(string(path), nil)
	require.NoError(t, err)
	defer p.Close()
	require.Equal(t, int64(256), p.Capacity())
	got, err := p.Read(0, p.Tail())
	require.NoError(t, err)
	require.BytesEqual(t, []byte("abcdef"), got)
}

func TestCreateFails(t *testing.T) {
	tbl := NewTable(nil)
	path := filepath.Join(t.TempDir(), "no", "such", "dir", "pool")
	h, err := tbl.Create([]byte(path), 1024)
	require.ErrorIs(t, err, pmemlog.ErrIO)
	require.Equal(t, Handle(0), h)

	h, err = tbl.Create([]byte(filepath.Join(t.TempDir(), "pool")), 0)
	require.ErrorIs(t, err, pmemlog.ErrInvalidCapacity)
	require.Equal(t, Handle(0), h)
}

func TestAppendErrorsReported(t *testing.T) {
	tbl := NewTable(&pmemlog.Options{Backend: pmemlog.BackendMem})
	defer tbl.CloseAll()
	h, err := tbl.Create([]byte("mem"), 4)
	require.NoError(t, err)
	require.NoError(t, tbl.Append(h, []byte("1234")))
	require.ErrorIs(t, tbl.Append(h, []byte("5")), pmemlog.ErrPoolFull)
}

func TestInvalidHandle(t *testing.T) {
	tbl := NewTable(nil)
	require.ErrorIs(t, tbl.Append(0, []byte("x")), ErrInvalidHandle)
	require.ErrorIs(t, tbl.Append(42, []byte("x")), ErrInvalidHandle)
	require.ErrorIs(t, tbl.Close(0), ErrInvalidHandle)
	require.ErrorIs(t, tbl.Close(7), ErrInvalidHandle)
}

func TestConcurrentHandles(t *testing.T) {
	tbl := NewTable(&pmemlog.Options{Backend: pmemlog.BackendMem})
	defer tbl.CloseAll()
	const n = 8
	handles := make([]Handle, n)
	for i := range handles {
		h, err := tbl.Create([]byte(fmt.Sprintf("pool-%d", i)), 64*1024)
		require.NoError(t, err)
		handles[i] = h
	}
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				// every goroutine hits every pool
				h := handles[(i+j)%n]
				if err := tbl.Append(h, []byte("record")); err != nil {
					errs[i] = err
					return
				}
			}
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, n, tbl.Len())
}
