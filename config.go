package swarm

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the contents of swarm.yaml.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Trace     TraceConfig     `yaml:"trace"`
	Provider  ProviderConfig  `yaml:"provider"`
	Store     StoreConfig     `yaml:"store"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Timeout   string          `yaml:"timeout"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	File   string `yaml:"file"`
}

// TraceConfig enables the interpreter's diagnostic traces.
type TraceConfig struct {
	Scopes bool `yaml:"scopes"`
	Stack  bool `yaml:"stack"`
}

// ProviderConfig configures the simulated fleet.
type ProviderConfig struct {
	Spacing float64 `yaml:"spacing"`
	Height  float64 `yaml:"height"`
	Latency string  `yaml:"latency"`
	Echo    bool    `yaml:"echo"`
}

// StoreConfig configures run history.
type StoreConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// ScheduleConfig configures periodic runs.
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// KnowledgeConfig configures knowledge seeding and saving.
type KnowledgeConfig struct {
	Seed map[string]any `yaml:"seed,omitempty"`
	In   string         `yaml:"in"`
	Out  string         `yaml:"out"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Provider: ProviderConfig{Spacing: 2, Height: 2, Echo: true},
		Store:    StoreConfig{Path: DefaultDBPath()},
	}
}

// LoadConfig reads path over the defaults. A missing file yields the defaults.
// Environment variables in the file are expanded.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultDBPath()
	}
	return cfg, nil
}

// ProviderLatency parses the configured per-call latency.
func (c *Config) ProviderLatency() (time.Duration, error) {
	return parseDuration(c.Provider.Latency)
}

// RunTimeout parses the configured run timeout. Zero means none.
func (c *Config) RunTimeout() (time.Duration, error) {
	return parseDuration(c.Timeout)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// NewLogger builds a slog logger from the logging section.
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
