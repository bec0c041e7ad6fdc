// Package config provides configuration loading for redact-edge.
// Supports YAML files, .env files and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application settings.
type Config struct {
	Observability ObservabilityConfig `yaml:"observability"`
	Render        RenderConfig        `yaml:"render"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Journal       JournalConfig       `yaml:"journal"`
	Server        ServerConfig        `yaml:"server"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json or console
}

// RenderConfig holds rasterization settings.
type RenderConfig struct {
	PreviewDPI  float64 `yaml:"preview_dpi"`
	ExportDPI   float64 `yaml:"export_dpi"`
	JPEGQuality int     `yaml:"jpeg_quality"`
}

// PipelineConfig holds artifact chain settings.
type PipelineConfig struct {
	WorkDir   string `yaml:"work_dir"` // empty: a temp dir per run
	QueueSize int    `yaml:"queue_size"`
}

// JournalConfig holds run journal settings.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr             string        `yaml:"addr"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

// Load reads configuration from a YAML file and applies .env and environment
// overrides. An empty path uses the defaults.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
		Render: RenderConfig{
			PreviewDPI:  120,
			ExportDPI:   200,
			JPEGQuality: 90,
		},
		Pipeline: PipelineConfig{
			QueueSize: 16,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "redact-edge.db",
		},
		Server: ServerConfig{
			Addr:             "127.0.0.1:8086",
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     5 * time.Minute,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Observability.LogFormat != "json" && c.Observability.LogFormat != "console" {
		return fmt.Errorf("invalid log format: %s", c.Observability.LogFormat)
	}

	if c.Render.PreviewDPI < 18 || c.Render.PreviewDPI > 1200 {
		return fmt.Errorf("preview_dpi must be between 18 and 1200")
	}

	if c.Render.ExportDPI < 18 || c.Render.ExportDPI > 1200 {
		return fmt.Errorf("export_dpi must be between 18 and 1200")
	}

	if c.Render.JPEGQuality < 1 || c.Render.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100")
	}

	if c.Pipeline.QueueSize < 1 {
		return fmt.Errorf("queue_size must be positive")
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		return fmt.Errorf("journal path is required when the journal is enabled")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REDACT_EDGE_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("REDACT_EDGE_LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	if v := os.Getenv("REDACT_EDGE_WORK_DIR"); v != "" {
		cfg.Pipeline.WorkDir = v
	}

	if v := os.Getenv("REDACT_EDGE_JOURNAL"); v != "" {
		switch strings.ToLower(v) {
		case "off", "false", "disabled", "none":
			cfg.Journal.Enabled = false
		default:
			cfg.Journal.Enabled = true
			cfg.Journal.Path = v
		}
	}

	if v := os.Getenv("REDACT_EDGE_PREVIEW_DPI"); v != "" {
		if dpi, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Render.PreviewDPI = dpi
		}
	}

	if v := os.Getenv("REDACT_EDGE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}
