package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/kjk/pmemlog/pmemlog"
	"gopkg.in/yaml.v3"
)

// Config is read from a YAML file, command line flags override it
type Config struct {
	Path    string `yaml:"path"`
	Size    int64  `yaml:"size"`
	Count   int    `yaml:"count"`
	Workers int    `yaml:"workers"`
	Backend string `yaml:"backend"`
	// frame every record with recordlog
	Framed bool `yaml:"framed"`
	// if set, result is POSTed there as JSON
	ReportURL string `yaml:"report_url"`
	// if set, serve Prometheus metrics on this address while running
	MetricsAddr string `yaml:"metrics_addr"`
	LogDir      string `yaml:"log_dir"`
	Verbose     bool   `yaml:"verbose"`
}

// DefaultConfig matches the classic pmemlog benchmark:
// 20 million short strings into an 800 MB pool on a pmem mount
func DefaultConfig() *Config {
	return &Config{
		Path:    "/mnt/pmem/test/pmemlogc",
		Size:    800 * 1024 * 1024,
		Count:   20_000_000,
		Workers: 1,
		Backend: pmemlog.BackendDefault.String(),
	}
}

func LoadConfig(path string, cfg *Config) error {
	d, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err = yaml.Unmarshal(d, cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("path is required")
	}
	if c.Size <= 0 {
		return fmt.Errorf("size must be > 0, is %d", c.Size)
	}
	if c.Count < 0 {
		return fmt.Errorf("count must be >= 0, is %d", c.Count)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, is %d", c.Workers)
	}
	if _, err := pmemlog.ParseBackend(c.Backend); err != nil {
		return err
	}
	return nil
}

// parseArgs builds config from defaults, optional -config file and flags, in that order
func parseArgs(args []string, output io.Writer) (*Config, error) {
	var (
		flgConfig  string
		flgPath    string
		flgSize    int64
		flgCount   int
		flgWorkers int
		flgBackend string
		flgFramed  bool
		flgReport  string
		flgMetrics string
		flgLogDir  string
		flgVerbose bool
	)
	fs := flag.NewFlagSet("pmembench", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&flgConfig, "config", "", "path of YAML config file")
	fs.StringVar(&flgPath, "path", "", "path of the pool file")
	fs.Int64Var(&flgSize, "size", 0, "pool capacity in bytes, used when creating")
	fs.IntVar(&flgCount, "count", 0, "number of records to append")
	fs.IntVar(&flgWorkers, "workers", 0, "number of goroutines appending concurrently")
	fs.StringVar(&flgBackend, "backend", "", "default, mmap, file or mem")
	fs.BoolVar(&flgFramed, "framed", false, "frame records with length and checksum")
	fs.StringVar(&flgReport, "report-url", "", "POST JSON result to this URL")
	fs.StringVar(&flgMetrics, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9100")
	fs.StringVar(&flgLogDir, "log-dir", "", "directory for log files")
	fs.BoolVar(&flgVerbose, "verbose", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg := DefaultConfig()
	if flgConfig != "" {
		if err := LoadConfig(flgConfig, cfg); err != nil {
			return nil, err
		}
	}
	// only flags explicitly given override the file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "path":
			cfg.Path = flgPath
		case "size":
			cfg.Size = flgSize
		case "count":
			cfg.Count = flgCount
		case "workers":
			cfg.Workers = flgWorkers
		case "backend":
			cfg.Backend = flgBackend
		case "framed":
			cfg.Framed = flgFramed
		case "report-url":
			cfg.ReportURL = flgReport
		case "metrics-addr":
			cfg.MetricsAddr = flgMetrics
		case "log-dir":
			cfg.LogDir = flgLogDir
		case "verbose":
			cfg.Verbose = flgVerbose
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
