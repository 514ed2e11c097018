// pmembench appends short strings to a pool as fast as it can
// and reports the throughput
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/kjk/pmemlog/log"
	"github.com/kjk/pmemlog/metrics"
	"github.com/kjk/pmemlog/pmemlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/pretty"
)

var (
	logf = log.Logf
)

func startMetricsServer(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		err := http.ListenAndServe(addr, mux)
		log.IfErrf(err, "metrics server on '%s' failed with '%s'\n", addr, err)
	}()
	logf("serving metrics on http://%s/metrics\n", addr)
}

func run(cfg *Config) (*Result, error) {
	backend, err := pmemlog.ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	opts := &pmemlog.Options{
		Backend: backend,
		Logf:    log.PoolLogf(true),
	}
	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		opts.Metrics = m
		startMetricsServer(cfg.MetricsAddr, reg)
	}

	p, err := pmemlog.CreateOrOpen(cfg.Path, cfg.Size, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Path, err)
	}
	if m != nil {
		if err = m.WatchPool(p); err != nil {
			p.Close()
			return nil, err
		}
	}
	res, err := runBench(p, cfg)
	errClose := p.Close()
	if err != nil {
		return nil, err
	}
	if errClose != nil {
		return nil, fmt.Errorf("pmemlog_close: %w", errClose)
	}
	return res, nil
}

func main() {
	cfg, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(2)
	}
	log.Verbose = cfg.Verbose
	log.Init(&log.Config{Dir: cfg.LogDir})
	defer log.Close()

	res, err := run(cfg)
	if err != nil {
		log.ErrorEvent("bench", err, "path", cfg.Path)
		log.Close()
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	d, _ := json.Marshal(res)
	fmt.Printf("%s", pretty.Pretty(d))

	if cfg.ReportURL != "" {
		if err = reportResult(cfg.ReportURL, res); err != nil {
			log.Errorf("reporting result to '%s' failed with '%s'\n", cfg.ReportURL, err)
		}
	}
}
