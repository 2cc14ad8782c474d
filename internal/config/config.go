// Package config loads collector settings from a YAML file with environment
// overrides. Precedence: environment, then file, then defaults. Validation
// runs before any work is scheduled so a bad config never half-starts a
// cycle.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wavefrontHQ/newrelic/internal/misc"
)

// Defaults applied before the file and the environment are consulted.
const (
	DefaultWorkers    = 4
	DefaultChunkCap   = 10 * time.Minute
	DefaultMinSpan    = time.Minute
	DefaultPause      = 30 * time.Second
	DefaultCycleDelay = time.Minute
	DefaultCacheTTL   = 24 * time.Hour
	DefaultOpsAddr    = "localhost:8090"
)

// Config is the collector's full configuration.
type Config struct {
	// Streams are the independent collection streams driven each cycle.
	Streams []Stream `yaml:"streams"`
	// Emitter is the downstream proxy connection.
	Emitter Emitter `yaml:"emitter"`
	// Storage selects the checkpoint/cache backend.
	Storage Storage `yaml:"storage"`
	// CacheTTL bounds reference-data cache entries.
	CacheTTL time.Duration `yaml:"cache_ttl"`
	// CycleDelay is the sleep between daemon cycles.
	CycleDelay time.Duration `yaml:"cycle_delay"`
	// OpsAddr hosts /healthz, /metrics, /debug/stacks.
	OpsAddr string `yaml:"ops_addr"`
}

// Stream configures one collection stream.
type Stream struct {
	// Name is the stream id used for watermarks and metrics labels.
	Name string `yaml:"name"`
	// Source names the source implementation ("system" is built in).
	Source string `yaml:"source"`
	// Workers bounds the stream's worker pool.
	Workers int `yaml:"workers"`
	// Lookback is how far behind now a stream with no watermark starts.
	Lookback time.Duration `yaml:"lookback"`
	// ChunkCap bounds a single time-window chunk.
	ChunkCap time.Duration `yaml:"chunk_cap"`
	// MinSpan is the smallest window worth processing.
	MinSpan time.Duration `yaml:"min_span"`
	// Pause is the inter-chunk breather during deep backlogs.
	Pause time.Duration `yaml:"pause"`
}

// Emitter configures the metric line connection.
type Emitter struct {
	Addr   string `yaml:"addr"`
	Format string `yaml:"format"`
	DryRun bool   `yaml:"dry_run"`
}

// Storage selects and configures the durable backend.
type Storage struct {
	// Backend is "pebble", "postgres", or "memory".
	Backend string `yaml:"backend"`
	// DataDir is the Pebble database directory.
	DataDir string `yaml:"data_dir"`
	// DSN is the Postgres connection string.
	DSN string `yaml:"dsn"`
}

// Load reads path (optional), applies environment overrides, and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Emitter:    Emitter{Format: "wavefront"},
		Storage:    Storage{Backend: "pebble", DataDir: "./data"},
		CacheTTL:   DefaultCacheTTL,
		CycleDelay: DefaultCycleDelay,
		OpsAddr:    DefaultOpsAddr,
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyStreamDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Emitter.Addr = misc.Getenv("COLLECTOR_EMITTER_ADDR", c.Emitter.Addr)
	c.Emitter.Format = misc.Getenv("COLLECTOR_EMITTER_FORMAT", c.Emitter.Format)
	c.Emitter.DryRun = misc.GetBool("COLLECTOR_DRY_RUN", c.Emitter.DryRun)

	c.Storage.Backend = misc.Getenv("COLLECTOR_STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.DataDir = misc.Getenv("COLLECTOR_DATA_DIR", c.Storage.DataDir)
	c.Storage.DSN = misc.Getenv("COLLECTOR_DATABASE_DSN", c.Storage.DSN)

	c.CacheTTL = misc.GetDuration("COLLECTOR_CACHE_TTL", c.CacheTTL)
	c.CycleDelay = misc.GetDuration("COLLECTOR_CYCLE_DELAY", c.CycleDelay)
	c.OpsAddr = misc.Getenv("COLLECTOR_OPS_ADDR", c.OpsAddr)
}

func (c *Config) applyStreamDefaults() {
	for i := range c.Streams {
		s := &c.Streams[i]
		if s.Workers == 0 {
			s.Workers = DefaultWorkers
		}
		if s.Lookback == 0 {
			s.Lookback = time.Hour
		}
		if s.ChunkCap == 0 {
			s.ChunkCap = DefaultChunkCap
		}
		if s.MinSpan == 0 {
			s.MinSpan = DefaultMinSpan
		}
		if s.Pause == 0 {
			s.Pause = DefaultPause
		}
	}
}

// Validate fails fast on anything that would break mid-cycle.
func (c *Config) Validate() error {
	if len(c.Streams) == 0 {
		return errors.New("config: at least one stream is required")
	}
	seen := map[string]struct{}{}
	for _, s := range c.Streams {
		if s.Name == "" {
			return errors.New("config: stream name is required")
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("config: duplicate stream %q", s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Source == "" {
			return fmt.Errorf("config: stream %q: source is required", s.Name)
		}
		if s.Workers < 1 {
			return fmt.Errorf("config: stream %q: workers must be >= 1", s.Name)
		}
		if s.Lookback <= 0 {
			return fmt.Errorf("config: stream %q: lookback must be positive", s.Name)
		}
		if s.ChunkCap < s.MinSpan {
			return fmt.Errorf("config: stream %q: chunk_cap below min_span", s.Name)
		}
	}

	switch c.Storage.Backend {
	case "pebble":
		if c.Storage.DataDir == "" {
			return errors.New("config: pebble backend requires data_dir")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("config: postgres backend requires dsn")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}

	if !c.Emitter.DryRun && c.Emitter.Addr == "" {
		return errors.New("config: emitter addr is required unless dry_run is set")
	}
	switch c.Emitter.Format {
	case "wavefront", "opentsdb":
	default:
		return fmt.Errorf("config: unknown emitter format %q", c.Emitter.Format)
	}
	return nil
}
