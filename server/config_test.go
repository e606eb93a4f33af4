package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	yaml := "listen: \":9000\"\nwrite_timeout: 3s\nstore:\n  driver: bolt\n  dsn: doc.db\nredis:\n  addr: localhost:6379\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9000" || cfg.WriteTimeout != 3*time.Second {
		t.Errorf("listen %q, write timeout %s", cfg.Listen, cfg.WriteTimeout)
	}
	if cfg.Store.Driver != "bolt" || cfg.Store.DSN != "doc.db" {
		t.Errorf("store %+v", cfg.Store)
	}
	if cfg.Redis.Channel != "collabweave:ops" || cfg.SendBuffer != 256 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if parseLevel(cfg.LogLevel) != slog.LevelDebug {
		t.Errorf("log level %q", cfg.LogLevel)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/collab")
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.DSN != "postgres://localhost/collab" {
		t.Errorf("store %+v", cfg.Store)
	}
	if cfg.Listen != ":8081" || cfg.Document != "default" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}
