package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/steer/internal/inference"
)

// Config represents the steer configuration file (~/.config/steer/config.yaml).
// All fields are pointers so we can distinguish "not set" from zero values.
type Config struct {
	// Sampling defaults
	Temperature *float64 `yaml:"temperature"`
	TopK        *int     `yaml:"top_k"`
	TopP        *float64 `yaml:"top_p"`
	MaxTokens   *int     `yaml:"max_tokens"`

	// Toy backend
	Seed   *int64 `yaml:"seed"`
	Hidden *int   `yaml:"hidden"`

	// Steering
	Flow       string         `yaml:"flow"`
	TraceFile  string         `yaml:"trace_file"`
	ModTimeout *time.Duration `yaml:"mod_timeout"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	if p := os.Getenv("STEER_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "steer", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	return loadConfigFrom(configPath())
}

func loadConfigFrom(path string) Config {
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// Defaults returns the sampling defaults for inference.ResolveConfig.
func (c Config) Defaults() inference.Defaults {
	return inference.Defaults{
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		TopP:        c.TopP,
		TopK:        c.TopK,
	}
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applySteeringConfig applies config file defaults to the backend and
// steering flags when they were not explicitly set.
func applySteeringConfig(c *cli.Command, cfg Config) {
	if cfg.Seed != nil && !c.IsSet("seed") {
		seed = *cfg.Seed
	}
	if cfg.Hidden != nil && !c.IsSet("hidden") {
		hidden = *cfg.Hidden
	}
	if cfg.Flow != "" && !c.IsSet("flow") {
		flowPath = cfg.Flow
	}
	if cfg.TraceFile != "" && !c.IsSet("trace-file") {
		traceFile = cfg.TraceFile
	}
	if cfg.ModTimeout != nil && !c.IsSet("mod-timeout") {
		modTimeout = *cfg.ModTimeout
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applySteeringConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}
