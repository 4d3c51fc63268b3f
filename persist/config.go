package persist

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/graft/dialect"
	"github.com/syssam/graft/dialect/sql"
)

// Config is the file configuration of a persister.
//
//	batch_size: 200
//	load_concurrency: 1
//	slow_query_threshold: 250ms
//	debug: false
type Config struct {
	// BatchSize is the maximum number of keys loaded per query.
	BatchSize int `yaml:"batch_size"`
	// LoadConcurrency is the number of load queries run at the same time.
	LoadConcurrency int `yaml:"load_concurrency"`
	// SlowQueryThreshold enables slow statement logging when positive.
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
	// Debug logs every statement.
	Debug bool `yaml:"debug"`
}

// LoadConfig reads the configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graft: reading config: %w", err)
	}
	return ParseConfig(b)
}

// ParseConfig parses a YAML configuration.
func ParseConfig(b []byte) (*Config, error) {
	cfg := &Config{BatchSize: DefaultBatchSize, LoadConcurrency: 1}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("graft: parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("graft: config: batch_size must be positive, got %d", c.BatchSize)
	case c.LoadConcurrency <= 0:
		return fmt.Errorf("graft: config: load_concurrency must be positive, got %d", c.LoadConcurrency)
	case c.SlowQueryThreshold < 0:
		return fmt.Errorf("graft: config: slow_query_threshold must not be negative, got %s", c.SlowQueryThreshold)
	}
	return nil
}

// Options returns the persister options of the configuration.
func (c *Config) Options() []Option {
	return []Option{
		WithBatchSize(c.BatchSize),
		WithLoadConcurrency(c.LoadConcurrency),
	}
}

// Driver wraps drv with the statement logging of the configuration.
func (c *Config) Driver(drv dialect.Driver, logger *slog.Logger) dialect.Driver {
	if c.Debug {
		drv = sql.NewDebugDriver(drv, logger)
	}
	if c.SlowQueryThreshold > 0 {
		drv = sql.NewStatsDriver(drv, sql.WithSlowThreshold(c.SlowQueryThreshold), sql.WithSlowQueryLog(logger))
	}
	return drv
}
