// Command server is the replication server: it holds the shared document,
// assigns sites to joining clients and rebroadcasts their ops.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"collabweave/document"
	"collabweave/store"
)

func main() {
	configPath := flag.String("config", "server.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	var snapshots store.Snapshots
	if cfg.Store.Driver != "none" {
		s, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer s.Close()
		snapshots = s
		logger.Info("snapshot store ready", "driver", cfg.Store.Driver)
	}

	doc, err := loadDocument(ctx, snapshots, cfg.Document, logger)
	if err != nil {
		return err
	}

	var feed Feed = nopFeed{}
	if cfg.Redis.Addr != "" {
		f, err := newRedisFeed(ctx, cfg.Redis.Addr, cfg.Redis.Channel)
		if err != nil {
			return err
		}
		feed = f
		logger.Info("op feed enabled", "redis", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}
	defer feed.Close()

	hub := newHub(doc, feed, logger)

	if !cfg.MDNS.Disabled {
		stop, err := advertise(cfg.MDNS, cfg.Listen)
		if err != nil {
			logger.Warn("mdns advertisement unavailable", "error", err)
		} else {
			defer stop()
			logger.Info("mdns service registered", "service", cfg.MDNS.Service, "instance", cfg.MDNS.Instance)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(ctx, hub, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Listen, "document", cfg.Document)
		errc <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	hub.closeAll()
	hub.closeFeed()

	if snapshots != nil && !cfg.Store.SkipSaveOnExit {
		err := hub.withDocument(func(g *document.GlobalDocument) error {
			return snapshots.Save(shutdownCtx, cfg.Document, g)
		})
		if err != nil {
			return fmt.Errorf("save on shutdown: %w", err)
		}
		logger.Info("snapshot saved", "document", cfg.Document)
	}
	return nil
}

// loadDocument returns the stored snapshot for name, or a fresh document
// holding one empty paragraph.
func loadDocument(ctx context.Context, snapshots store.Snapshots, name string, logger *slog.Logger) (*document.GlobalDocument, error) {
	if snapshots != nil {
		g, err := snapshots.Load(ctx, name)
		switch {
		case err == nil:
			logger.Info("snapshot loaded", "document", name, "sequences", len(g.Sequences))
			return g, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}
	logger.Info("creating document", "document", name)
	return freshDocument()
}

func freshDocument() (*document.GlobalDocument, error) {
	d, err := document.FromLocal(document.NewBuilder().Paragraph("").Build(), 1,
		document.DefaultTarget(), document.DefaultDesign())
	if err != nil {
		return nil, err
	}
	return d.ToGlobal()
}

func newRouter(ctx context.Context, hub *Hub, cfg *Config) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(ctx, hub, cfg, w, r)
	})
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/snapshot", func(w http.ResponseWriter, _ *http.Request) {
		data, err := hub.snapshot()
		if err != nil {
			hub.logger.Error("encode snapshot", "error", err)
			http.Error(w, "snapshot unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", cfg.Document+".snapshot"))
		w.Write(data)
	}).Methods(http.MethodGet)
	return r
}
