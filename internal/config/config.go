// Package config loads the run configuration shared by the command-line tools.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/lumberjack"

	"github.com/TuSKan/n5-gomlx/parallel"
	"github.com/TuSKan/n5-gomlx/pipeline"
)

// Config is the TOML run configuration:
//
//	[scheduler]
//	workers = 16
//	max_partitions = 15000
//	ops_per_second = 0
//
//	[logging]
//	level = "info"
//	format = "text"
//	logfile = "/var/log/n5/run.log"
//	max_log_size = 500 # megabytes
//	max_log_age = 30   # days
type Config struct {
	Scheduler SchedulerConfig
	Logging   LoggingConfig
}

type SchedulerConfig struct {
	Workers       int     `toml:"workers"`
	MaxPartitions int     `toml:"max_partitions"`
	OpsPerSecond  float64 `toml:"ops_per_second"`
}

// LoggingConfig selects the log level and format. When Logfile is set, logs
// go to a rotating file instead of the writer passed to NewLogger.
type LoggingConfig struct {
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Logfile string `toml:"logfile"`
	MaxSize int    `toml:"max_log_size"`
	MaxAge  int    `toml:"max_log_age"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Scheduler: SchedulerConfig{MaxPartitions: parallel.MaxPartitions},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load decodes the TOML file at filename over the defaults. An empty
// filename returns the defaults.
func Load(filename string) (Config, error) {
	cfg := Default()
	if filename == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(filename, &cfg); err != nil {
		return cfg, fmt.Errorf("could not decode TOML config: %w", err)
	}
	if cfg.Logging.Logfile != "" && !filepath.IsAbs(cfg.Logging.Logfile) {
		cfg.Logging.Logfile = filepath.Join(filepath.Dir(filename), cfg.Logging.Logfile)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Scheduler.Workers < 0 || c.Scheduler.MaxPartitions < 0 || c.Scheduler.OpsPerSecond < 0 {
		return fmt.Errorf("scheduler settings must not be negative: %+v", c.Scheduler)
	}
	if c.Logging.MaxSize < 0 || c.Logging.MaxAge < 0 {
		return fmt.Errorf("log rotation settings must not be negative: %+v", c.Logging)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
}

func (c Config) level() (slog.Level, error) {
	var l slog.Level
	if c.Logging.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.Logging.Level))); err != nil {
		return l, fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return l, nil
}

// NewScheduler builds the block scheduler described by the configuration.
func (c Config) NewScheduler() *parallel.Scheduler {
	s := parallel.New(c.Scheduler.Workers, c.Scheduler.OpsPerSecond)
	s.MaxPartitions = c.Scheduler.MaxPartitions
	return s
}

// NewLogger builds the logger described by the configuration. Output goes to
// w unless a log file is configured.
func (c Config) NewLogger(w io.Writer) *pipeline.Logger {
	level, _ := c.level()
	if c.Logging.Logfile != "" {
		w = &lumberjack.Logger{
			Filename: c.Logging.Logfile,
			MaxSize:  c.Logging.MaxSize,
			MaxAge:   c.Logging.MaxAge,
		}
	}
	if c.Logging.Format == "json" {
		return pipeline.NewJSONLogger(w, level)
	}
	return pipeline.NewTextLogger(w, level)
}

// Options returns the pipeline options described by the configuration.
func (c Config) Options(w io.Writer) *pipeline.Options {
	return &pipeline.Options{
		Scheduler: c.NewScheduler(),
		Logger:    c.NewLogger(w),
	}
}
