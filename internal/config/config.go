// Package config provides configuration types, defaults, and persistence for appreg.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sciworks/appreg/internal/log"
	"github.com/sciworks/appreg/internal/tracing"
)

// Config holds all configuration options for appreg.
type Config struct {
	// Apps is the path to the apps input document.
	Apps string `mapstructure:"apps"`
	// Categories is the path to the categories input document.
	Categories string `mapstructure:"categories"`
	// Out is the directory the registry is built into.
	Out string `mapstructure:"out"`

	// APIPath is the api tree location relative to Out.
	APIPath string `mapstructure:"api_path"`
	// HTMLPath is the website location relative to Out.
	HTMLPath string `mapstructure:"html_path"`

	// Static is an optional static tree copied over the built-in one.
	Static string `mapstructure:"static"`
	// Templates is an optional directory overriding built-in templates.
	Templates string `mapstructure:"templates"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	Tracing tracing.Config `mapstructure:"tracing"`
	Serve   ServeConfig    `mapstructure:"serve"`
}

// ServeConfig holds settings for the local preview server.
type ServeConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `mapstructure:"addr"`
	// Watch rebuilds the registry when the input documents change.
	Watch bool `mapstructure:"watch"`
}

// Defaults returns the default configuration values.
func Defaults() Config {
	return Config{
		Apps:       "apps.yaml",
		Categories: "categories.yaml",
		Out:        "build",
		APIPath:    "api/v1",
		HTMLPath:   ".",
		LogLevel:   "info",
		Tracing:    tracing.DefaultConfig(),
		Serve: ServeConfig{
			Addr:  ":8080",
			Watch: false,
		},
	}
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Appreg Configuration

# Input documents
apps: apps.yaml
categories: categories.yaml

# Output directory for the built registry
out: build

# Layout inside the output directory
api_path: api/v1
html_path: .

# Optional overrides for the generated website
# static: ./static        # extra static tree copied over the built-in one
# templates: ./templates  # templates overriding the built-in ones by name

# Logging
log_level: info           # debug, info, warn, error
# log_file: .appreg/appreg.log

# Preview server (appreg serve)
serve:
  addr: ":8080"
  watch: false            # rebuild when the input documents change

# Tracing configuration
# tracing:
#   enabled: true
#   exporter: file        # file or stdout
#   file_path: .appreg/traces.jsonl
#   sample_rate: 1.0      # 0.0-1.0
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
