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

// Config is the agent configuration, read from YAML then overridden by
// environment variables.
type Config struct {
	// ServerURL is the websocket endpoint. Empty means discover it over mDNS.
	ServerURL string        `yaml:"server_url"`
	Document  string        `yaml:"document"`
	DBPath    string        `yaml:"db_path"`
	LogLevel  string        `yaml:"log_level"`
	MDNS      MDNSConfig    `yaml:"mdns"`
	Dial      DialConfig    `yaml:"dial"`
	Timeout   time.Duration `yaml:"timeout"`
}

type MDNSConfig struct {
	Service string        `yaml:"service"`
	Browse  time.Duration `yaml:"browse"`
}

// DialConfig bounds the reconnect loop.
type DialConfig struct {
	MaxElapsed time.Duration `yaml:"max_elapsed"`
	MaxRetries uint64        `yaml:"max_retries"`
}

func (c *Config) defaults() {
	if c.Document == "" {
		c.Document = "default"
	}
	if c.DBPath == "" {
		c.DBPath = "agent.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MDNS.Service == "" {
		c.MDNS.Service = "_collabweave._tcp"
	}
	if c.MDNS.Browse <= 0 {
		c.MDNS.Browse = 5 * time.Second
	}
	if c.Dial.MaxElapsed <= 0 {
		c.Dial.MaxElapsed = 30 * time.Second
	}
	if c.Dial.MaxRetries == 0 {
		c.Dial.MaxRetries = 8
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SERVER_URL"); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv("AGENT_DB"); v != "" {
		c.DBPath = v
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
