package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the file form of the command line. Flags given explicitly win
// over the file.
type Config struct {
	Format     string        `yaml:"format"`
	Depth      int           `yaml:"depth"`
	Ownership  string        `yaml:"ownership"`
	HTML       string        `yaml:"html"`
	Navigable  string        `yaml:"navigable"`
	LogLevel   string        `yaml:"log_level"`
	LogBackend string        `yaml:"log_backend"` // zap, logrus, slog
	TraceHooks bool          `yaml:"trace_hooks"`
	IdleTTL    time.Duration `yaml:"idle_ttl"`
	Leases     LeaseConfig   `yaml:"leases"`
}

type LeaseConfig struct {
	Store       string        `yaml:"store"` // none, ristretto, bigcache, redis
	TTL         time.Duration `yaml:"ttl"`
	Max         int64         `yaml:"max"`
	RedisAddr   string        `yaml:"redis_addr"`
	RedisPrefix string        `yaml:"redis_prefix"`
}

func defaultConfig() Config {
	return Config{
		Format:     "json",
		Depth:      1,
		Ownership:  "root",
		Navigable:  "cli",
		LogLevel:   "warn",
		LogBackend: "zap",
		Leases: LeaseConfig{
			Store:     "none",
			TTL:       10 * time.Minute,
			Max:       10_000,
			RedisAddr: "localhost:6379",
		},
	}
}

// loadConfig reads path over the defaults. An empty path is not an error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
