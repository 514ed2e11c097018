package main

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/kjk/pmemlog/log"
	"github.com/kjk/pmemlog/pmemlog"
	"github.com/kjk/pmemlog/recordlog"
)

// Result is printed as JSON and optionally POSTed to Config.ReportURL
type Result struct {
	Path          string  `json:"path"`
	Backend       string  `json:"backend"`
	Framed        bool    `json:"framed"`
	Workers       int     `json:"workers"`
	Records       int64   `json:"records"`
	Bytes         int64   `json:"bytes"`
	DurationMs    float64 `json:"duration_ms"`
	RecordsPerSec float64 `json:"records_per_sec"`
	MBPerSec      float64 `json:"mb_per_sec"`
	Tail          int64   `json:"tail"`
	Capacity      int64   `json:"capacity"`
}

// appendRecordFmt is the payload of the classic benchmark
const appendRecordFmt = "This is the %dth string appended"

func appendRecord(buf []byte, i int) []byte {
	buf = append(buf[:0], "This is the "...)
	buf = strconv.AppendInt(buf, int64(i), 10)
	return append(buf, "th string appended"...)
}

type appendFunc func(p *pmemlog.Pool, d []byte) (int64, error)

func appendRaw(p *pmemlog.Pool, d []byte) (int64, error) {
	return p.Append(d)
}

// runBench appends cfg.Count records to p from cfg.Workers goroutines.
// Worker w appends records w, w+workers, w+2*workers...
// Stops at the first failed append and returns its error.
func runBench(p *pmemlog.Pool, cfg *Config) (*Result, error) {
	fn := appendFunc(appendRaw)
	if cfg.Framed {
		fn = recordlog.Append
	}
	workers := max(cfg.Workers, 1)

	var (
		nRecords atomic.Int64
		nBytes   atomic.Int64
		failed   atomic.Bool
		errOnce  sync.Once
		firstErr error
		wg       sync.WaitGroup
	)
	timeStart := time.Now()
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var buf []byte
			for i := w; i < cfg.Count; i += workers {
				if failed.Load() {
					return
				}
				buf = appendRecord(buf, i)
				if _, err := fn(p, buf); err != nil {
					errOnce.Do(func() {
						firstErr = fmt.Errorf("pmemlog_append: record %d: %w", i, err)
					})
					failed.Store(true)
					return
				}
				nRecords.Add(1)
				nBytes.Add(int64(len(buf)))
			}
		}()
	}
	wg.Wait()
	dur := time.Since(timeStart)
	if firstErr != nil {
		return nil, firstErr
	}

	res := &Result{
		Path:       p.Path(),
		Backend:    p.Stat().Backend,
		Framed:     cfg.Framed,
		Workers:    workers,
		Records:    nRecords.Load(),
		Bytes:      nBytes.Load(),
		DurationMs: float64(dur.Microseconds()) / 1000.0,
		Tail:       p.Tail(),
		Capacity:   p.Capacity(),
	}
	if secs := dur.Seconds(); secs > 0 {
		res.RecordsPerSec = float64(res.Records) / secs
		res.MBPerSec = float64(res.Bytes) / secs / (1024 * 1024)
	}
	log.EventWithDuration("bench", dur, "backend", res.Backend, "records", res.Records, "bytes", res.Bytes, "workers", workers)
	return res, nil
}

func reportResult(uri string, res *Result) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	return requests.
		URL(uri).
		BodyJSON(res).
		Fetch(ctx)
}
