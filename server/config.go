package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration, read from YAML then overridden by
// environment variables.
type Config struct {
	Listen       string        `yaml:"listen"`
	Document     string        `yaml:"document"`
	SendBuffer   int           `yaml:"send_buffer"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	LogLevel     string        `yaml:"log_level"`
	Store        StoreConfig   `yaml:"store"`
	Redis        RedisConfig   `yaml:"redis"`
	MDNS         MDNSConfig    `yaml:"mdns"`
}

// StoreConfig selects where snapshots live. Driver "none" keeps the
// document in memory only.
type StoreConfig struct {
	Driver         string `yaml:"driver"`
	DSN            string `yaml:"dsn"`
	SkipSaveOnExit bool   `yaml:"skip_save_on_exit"`
}

// RedisConfig enables the op feed when Addr is set.
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

type MDNSConfig struct {
	Disabled bool   `yaml:"disabled"`
	Service  string `yaml:"service"`
	Instance string `yaml:"instance"`
}

func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = ":8081"
	}
	if c.Document == "" {
		c.Document = "default"
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.DSN == "" && c.Store.Driver == "sqlite" {
		c.Store.DSN = "collabweave.db"
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "collabweave:ops"
	}
	if c.MDNS.Service == "" {
		c.MDNS.Service = "_collabweave._tcp"
	}
	if c.MDNS.Instance == "" {
		host, _ := os.Hostname()
		c.MDNS.Instance = "collabweave-" + host
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.Driver, c.Store.DSN = "postgres", v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// loadConfig reads path if it exists. Defaults fill whatever is left.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}
	cfg.applyEnv()
	cfg.defaults()
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
