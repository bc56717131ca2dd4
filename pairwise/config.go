package pairwise

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/janelia-flyem/stitch/labels"
	"github.com/janelia-flyem/stitch/stitch"
)

// Defaults reproduce the production pipeline constants.
const (
	DefaultAttempts      = 5
	DefaultReadTries     = 5
	DefaultReadBackoff   = 10 * time.Second
	DefaultPartialSuffix = "_partial"
	DefaultHaloXY        = 64
	DefaultHaloZ         = 6
)

// Config holds the TOML configuration shared by the matching and planning tools.
type Config struct {
	Matching MatchingConfig
	Retry    RetryConfig
	Output   OutputConfig
	Logging  stitch.LogConfig
	Metrics  MetricsConfig
	Schedule ScheduleConfig
}

type MatchingConfig struct {
	Mode labels.MatchMode
}

type RetryConfig struct {
	Attempts    int
	ReadTries   int             `toml:"read_tries"`
	ReadBackoff stitch.Duration `toml:"read_backoff"`
}

type OutputConfig struct {
	Compression   stitch.Compression
	PartialSuffix string `toml:"partial_suffix"`
}

type MetricsConfig struct {
	Textfile string // Prometheus textfile collector output, written on exit
}

type ScheduleConfig struct {
	Workers    int
	OutputRoot string `toml:"output_root"`
	Halo       [3]int // per axis X, Y, Z
}

// DefaultConfig returns the configuration used when no TOML file is given.
func DefaultConfig() *Config {
	return &Config{
		Matching: MatchingConfig{Mode: labels.ThinSlice},
		Retry: RetryConfig{
			Attempts:    DefaultAttempts,
			ReadTries:   DefaultReadTries,
			ReadBackoff: stitch.Duration{Duration: DefaultReadBackoff},
		},
		Output: OutputConfig{
			Compression:   stitch.Gzip,
			PartialSuffix: DefaultPartialSuffix,
		},
		Schedule: ScheduleConfig{
			Halo: [3]int{DefaultHaloXY, DefaultHaloXY, DefaultHaloZ},
		},
	}
}

// LoadConfig decodes a TOML file over the defaults.  Relative paths in the file
// are taken relative to the file's directory.
func LoadConfig(filename string) (*Config, error) {
	c := DefaultConfig()
	if filename == "" {
		return c, nil
	}
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config: %v", err)
	}
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("bad configuration in %s: %v", filename, err)
	}
	stitch.Debugf("config from %s: %+v\n", filename, *c)
	return c, nil
}

func (c *Config) convertPathsToAbsolute(configPath string) error {
	var err error
	configDir := filepath.Dir(configPath)

	// [logging].logfile
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = stitch.ConvertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("error converting logfile setting to absolute path")
		}
	}

	// [metrics].textfile
	if c.Metrics.Textfile != "" {
		c.Metrics.Textfile, err = stitch.ConvertToAbsolute(c.Metrics.Textfile, configDir)
		if err != nil {
			return fmt.Errorf("error converting metrics textfile setting to absolute path")
		}
	}

	// [schedule].output_root
	if c.Schedule.OutputRoot != "" {
		c.Schedule.OutputRoot, err = stitch.ConvertToAbsolute(c.Schedule.OutputRoot, configDir)
		if err != nil {
			return fmt.Errorf("error converting output_root setting to absolute path")
		}
	}
	return nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.Retry.ReadTries < 1 {
		return fmt.Errorf("read tries must be at least 1, got %d", c.Retry.ReadTries)
	}
	if c.Retry.ReadBackoff.Duration < 0 {
		return fmt.Errorf("read backoff cannot be negative, got %s", c.Retry.ReadBackoff)
	}
	if c.Output.PartialSuffix == "" {
		return fmt.Errorf("partial suffix cannot be empty")
	}
	for i, h := range c.Schedule.Halo {
		if h < 1 {
			return fmt.Errorf("halo along %s must be positive, got %d", stitch.Axis(i), h)
		}
	}
	if c.Schedule.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", c.Schedule.Workers)
	}
	return nil
}
