package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/pause-alarm/internal/clock"
	"github.com/oshokin/pause-alarm/internal/pausealarm"
)

// Config holds the settings of the pause detector.
type Config struct {
	// Enabled turns the monitor on or off. Nil means enabled.
	Enabled *bool `yaml:"enabled,omitempty"`
	// CheckInterval is how often the monitor checks for pauses. It should be
	// much smaller than AlarmThreshold.
	CheckInterval time.Duration `yaml:"check_interval"`
	// AlarmThreshold reports pauses that last longer than this.
	AlarmThreshold time.Duration `yaml:"alarm_threshold"`
	// Clock selects the instant source: "system" or "monotonic-raw".
	Clock string `yaml:"clock,omitempty"`
	// ListenAddress is the optional gRPC health endpoint address.
	ListenAddress string `yaml:"listen_addr,omitempty"`
	// StatsFile is the path to the JSON file storing pause statistics.
	StatsFile string `yaml:"stats_file"`
	// HistorySize is the number of recent pauses kept in statistics.
	HistorySize int `yaml:"history_size"`
	// LogLevel is the minimum level of detector log lines.
	LogLevel string `yaml:"log_level,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for detector settings.
	DefaultConfigFilename = "pause-alarm-settings.yaml"

	// DefaultStatsFilename is the default filename for pause statistics JSON.
	DefaultStatsFilename = "pause-alarm-stats.json"

	// DefaultCheckInterval is the default time between checks.
	DefaultCheckInterval = pausealarm.DefaultCheckInterval

	// DefaultAlarmThreshold is the default minimum reported pause.
	DefaultAlarmThreshold = pausealarm.DefaultAlarmThreshold

	// DefaultHistorySize is the default number of recent pauses kept.
	DefaultHistorySize = 32

	// DefaultLogLevel is the default detector log level.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for written files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeDuration is returned for negative interval or threshold.
	errNegativeDuration = errors.New("duration must not be negative")
	// errNegativeHistory is returned for a negative history size.
	errNegativeHistory = errors.New("history size must not be negative")
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := new(Config)
	_ = Validate(cfg)

	return cfg
}

// IsEnabled reports whether the monitor should run.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault is Load that falls back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Save writes cfg to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills defaults for unset fields.
// A threshold at or below the interval is accepted: it alarms on every
// cycle, which is the caller's choice to make.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.CheckInterval < 0 || settings.AlarmThreshold < 0 {
		return fmt.Errorf("check interval %s, alarm threshold %s: %w",
			settings.CheckInterval, settings.AlarmThreshold, errNegativeDuration)
	}

	if settings.HistorySize < 0 {
		return fmt.Errorf("%d: %w", settings.HistorySize, errNegativeHistory)
	}

	if settings.CheckInterval == 0 {
		settings.CheckInterval = DefaultCheckInterval
	}

	if settings.AlarmThreshold == 0 {
		settings.AlarmThreshold = DefaultAlarmThreshold
	}

	if settings.HistorySize == 0 {
		settings.HistorySize = DefaultHistorySize
	}

	if settings.StatsFile == "" {
		settings.StatsFile = DefaultStatsFilename
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	if _, err := clock.ByName(settings.Clock); err != nil {
		return err
	}

	if settings.ListenAddress == "" {
		return nil
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	return nil
}
