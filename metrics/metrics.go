// Package metrics exports pmemlog pool activity as Prometheus metrics
package metrics

import (
	"errors"
	"time"

	"github.com/kjk/pmemlog/pmemlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// reasons for failed appends, values of the "reason" label
const (
	ReasonPoolFull = "pool_full"
	ReasonIO       = "io"
	ReasonClosed   = "closed"
	ReasonOther    = "other"
)

// Metrics implements pmemlog.MetricsHook
type Metrics struct {
	reg prometheus.Registerer

	AppendsTotal   prometheus.Counter
	AppendedBytes  prometheus.Counter
	AppendDuration prometheus.Histogram
	AppendFailures *prometheus.CounterVec
	ReadsTotal     prometheus.Counter
	ReadBytes      prometheus.Counter
	ReadDuration   prometheus.Histogram
}

var _ pmemlog.MetricsHook = (*Metrics)(nil)

// New registers pool metrics with reg. nil reg means prometheus.DefaultRegisterer.
// Register a given registerer only once.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	m := &Metrics{
		reg: reg,
		AppendsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "pmemlog_appends_total",
			Help: "Total number of successful appends",
		}),
		AppendedBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "pmemlog_appended_bytes_total",
			Help: "Total number of bytes durably appended",
		}),
		AppendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pmemlog_append_duration_seconds",
			Help:    "Append duration in seconds, including persist",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10), // 1µs to ~260ms
		}),
		AppendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pmemlog_append_failures_total",
			Help: "Total number of failed appends",
		}, []string{"reason"}),
		ReadsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "pmemlog_reads_total",
			Help: "Total number of reads of committed data",
		}),
		ReadBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "pmemlog_read_bytes_total",
			Help: "Total number of bytes read",
		}),
		ReadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pmemlog_read_duration_seconds",
			Help:    "Read duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1e-7, 4, 10),
		}),
	}
	return m
}

// FailureReason maps an append error to a "reason" label value
func FailureReason(err error) string {
	switch {
	case errors.Is(err, pmemlog.ErrPoolFull):
		return ReasonPoolFull
	case errors.Is(err, pmemlog.ErrIO):
		return ReasonIO
	case errors.Is(err, pmemlog.ErrHandleClosed):
		return ReasonClosed
	}
	return ReasonOther
}

func (m *Metrics) ObserveAppend(elapsed time.Duration, bytes int, err error) {
	if err != nil {
		m.AppendFailures.WithLabelValues(FailureReason(err)).Inc()
		return
	}
	m.AppendsTotal.Inc()
	m.AppendedBytes.Add(float64(bytes))
	m.AppendDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRead(elapsed time.Duration, bytes int) {
	m.ReadsTotal.Inc()
	m.ReadBytes.Add(float64(bytes))
	m.ReadDuration.Observe(elapsed.Seconds())
}

// WatchPool exports tail, capacity and free bytes of p, labeled with its path.
// Gauges are read at scrape time.
func (m *Metrics) WatchPool(p *pmemlog.Pool) error {
	labels := prometheus.Labels{"path": p.Path()}
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "pmemlog_pool_tail_bytes",
			Help:        "Committed tail of the pool",
			ConstLabels: labels,
		}, func() float64 { return float64(p.Tail()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "pmemlog_pool_capacity_bytes",
			Help:        "Data capacity of the pool",
			ConstLabels: labels,
		}, func() float64 { return float64(p.Capacity()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "pmemlog_pool_free_bytes",
			Help:        "Bytes that can still be appended",
			ConstLabels: labels,
		}, func() float64 { return float64(p.Free()) }),
	}
	for _, g := range gauges {
		if err := m.reg.Register(g); err != nil {
			return err
		}
	}
	return nil
}
