// Command agent is an editing site: it finds the server, joins the shared
// document and edits it from a line console. When the server cannot be
// reached, or the connection dies, it keeps working on an offline copy.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"collabweave/store"
)

func main() {
	configPath := flag.String("config", "agent.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	// The console owns stdout; logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("agent stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	snapshots, err := store.OpenBolt(cfg.DBPath)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	s := newSession(cfg, snapshots, logger)
	if err := start(ctx, s); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- runConsole(ctx, os.Stdin, os.Stdout, s) }()
	select {
	case err = <-done:
	case <-ctx.Done():
	}
	if serr := s.save(context.Background()); serr != nil {
		logger.Warn("save on exit", "error", serr)
	}
	return err
}

// start connects to the configured or discovered server, falling back to
// offline when none is reachable.
func start(ctx context.Context, s *session) error {
	url := s.cfg.ServerURL
	if url == "" {
		found, err := discover(ctx, s.cfg.MDNS.Service, s.cfg.MDNS.Browse, s.logger)
		if err != nil {
			s.logger.Warn("server discovery", "error", err)
			return s.goOffline(ctx)
		}
		url = found
	}
	if err := s.connect(ctx, url); err != nil {
		s.logger.Warn("server unreachable", "url", url, "error", err)
		return s.goOffline(ctx)
	}
	return nil
}
