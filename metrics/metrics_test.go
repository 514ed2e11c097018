package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/kjk/pmemlog/pmemlog"
	"github.com/kjk/pmemlog/require"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAppendMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	p, err := pmemlog.OpenMem(10, &pmemlog.Options{Metrics: m})
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Append([]byte("hello"))
	require.NoError(t, err)
	_, err = p.AppendV([]byte("wo"), []byte("rl"))
	require.NoError(t, err)
	_, err = p.Append([]byte("toolong"))
	require.ErrorIs(t, err, pmemlog.ErrPoolFull)

	require.Equal(t, 2.0, testutil.ToFloat64(m.AppendsTotal))
	require.Equal(t, 9.0, testutil.ToFloat64(m.AppendedBytes))
	require.Equal(t, 1.0, testutil.ToFloat64(m.AppendFailures.WithLabelValues(ReasonPoolFull)))

	_, err = p.Read(0, 5)
	require.NoError(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(m.ReadsTotal))
	require.Equal(t, 5.0, testutil.ToFloat64(m.ReadBytes))

	require.NoError(t, p.Close())
	_, err = p.Append([]byte("x"))
	require.ErrorIs(t, err, pmemlog.ErrHandleClosed)
	require.Equal(t, 1.0, testutil.ToFloat64(m.AppendFailures.WithLabelValues(ReasonClosed)))
}

func TestFailureReason(t *testing.T) {
	require.Equal(t, ReasonPoolFull, FailureReason(pmemlog.ErrPoolFull))
	ioErr := &pmemlog.IOError{Op: "persist", Path: "pool", Err: errors.New("EIO")}
	require.Equal(t, ReasonIO, FailureReason(ioErr))
	require.Equal(t, ReasonClosed, FailureReason(pmemlog.ErrHandleClosed))
	require.Equal(t, ReasonOther, FailureReason(errors.New("what")))
}

func TestWatchPool(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	p, err := pmemlog.Create("bench", 100, 0, &pmemlog.Options{Backend: pmemlog.BackendMem, Metrics: m})
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, m.WatchPool(p))
	_, err = p.Append([]byte("0123456789"))
	require.NoError(t, err)

	exp := `
# HELP pmemlog_pool_free_bytes Bytes that can still be appended
# TYPE pmemlog_pool_free_bytes gauge
pmemlog_pool_free_bytes{path="bench"} 90
# HELP pmemlog_pool_tail_bytes Committed tail of the pool
# TYPE pmemlog_pool_tail_bytes gauge
pmemlog_pool_tail_bytes{path="bench"} 10
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(exp), "pmemlog_pool_tail_bytes", "pmemlog_pool_free_bytes")
	require.NoError(t, err)

	// same pool twice collides
	require.Error(t, m.WatchPool(p))
}
