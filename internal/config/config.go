// Package config loads the host's startup configuration: the database
// file path, the optional graph file path, log verbosity, and the HTTP
// and Prometheus listen addresses. Layering: compiled-in defaults, an
// optional YAML file, then CHANGEINTEL_* environment variables, each
// layer overriding the last.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
)

// Config holds the resolved startup configuration for the change
// intelligence host.
type Config struct {
	DBPath        string `koanf:"db_path"`
	GraphFilePath string `koanf:"graph_file_path"`
	LogLevel      string `koanf:"log_level"`
	HTTPAddr      string `koanf:"http_addr"`
	MetricsAddr   string `koanf:"metrics_addr"`
	BucketMinutes int    `koanf:"bucket_minutes"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"db_path":         "changeintel.db",
		"graph_file_path": "",
		"log_level":       "info",
		"http_addr":       ":8080",
		"metrics_addr":    ":9090",
		"bucket_minutes":  15,
	}
}

// Load resolves a Config by layering compiled-in defaults, an optional
// YAML file at filePath (skipped entirely when filePath is empty; a path
// that cannot be read or parsed is a validation error), and CHANGEINTEL_*
// environment variables, in that order of increasing precedence.
func Load(filePath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInvariantViolation, err, "load config defaults")
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
			return nil, coreerrors.Wrap(coreerrors.KindValidation, err, "load config file %q", filePath)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: "CHANGEINTEL_",
		TransformFunc: func(k, v string) (string, interface{}) {
			return strings.ToLower(strings.TrimPrefix(k, "CHANGEINTEL_")), v
		},
	}), nil); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInvariantViolation, err, "load config env vars")
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindValidation, err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the resolved configuration is usable.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return coreerrors.NewValidation("db_path must not be empty")
	}
	if c.HTTPAddr == "" {
		return coreerrors.NewValidation("http_addr must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return coreerrors.NewValidation("log_level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	return nil
}
