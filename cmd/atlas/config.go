package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config drives the CLI. Flags override file values; everything has a
// workable default so the binary runs with no config at all.
type Config struct {
	BackendURL   string `yaml:"backend_url"`
	DatabasePath string `yaml:"database_path"`
	LogLevel     string `yaml:"log_level"`
}

func defaultConfig() Config {
	return Config{
		DatabasePath: "atlas-chat.db",
		LogLevel:     "info",
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config file")
	}
	return cfg, nil
}

// resolveConfig layers command-line flags over the config file.
func resolveConfig() (Config, error) {
	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return cfg, err
	}
	if flagBackend != "" {
		cfg.BackendURL = flagBackend
	}
	if flagDatabase != "" {
		cfg.DatabasePath = flagDatabase
	}
	return cfg, nil
}
