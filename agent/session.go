package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cenkalti/backoff"

	"collabweave/client"
	"collabweave/document"
	"collabweave/store"
	"collabweave/weave"
)

// editor is what the console edits through: a live client or the offline
// fallback.
type editor interface {
	Edit(ctx context.Context, fn func(*document.Document) error) error
	View(fn func(*document.Document)) error
}

// offline is a single-site document that is never sent anywhere.
type offline struct {
	mu  sync.Mutex
	doc *document.Document
}

func (o *offline) Edit(_ context.Context, fn func(*document.Document) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	err := fn(o.doc)
	o.doc.DrainPending()
	return err
}

func (o *offline) View(fn func(*document.Document)) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(o.doc)
	return nil
}

func (o *offline) snapshot() (*document.GlobalDocument, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.doc.ToGlobal()
}

// session tracks which editor is current. It starts online when a server
// is reachable and falls back to offline for good on the first fatal
// connection error.
type session struct {
	mu      sync.Mutex
	current editor
	online  *client.Client
	site    weave.SiteID
	offline bool

	cfg       *Config
	snapshots store.Snapshots
	logger    *slog.Logger
}

func newSession(cfg *Config, snapshots store.Snapshots, logger *slog.Logger) *session {
	return &session{cfg: cfg, snapshots: snapshots, logger: logger}
}

func (s *session) editor() editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *session) status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return fmt.Sprintf("offline (site %d)", s.site)
	}
	return fmt.Sprintf("online (site %d)", s.site)
}

// connect dials url with exponential backoff and runs the handshake. On
// success the client keeps running in the background; when it fails the
// session falls back to offline.
func (s *session) connect(ctx context.Context, url string) error {
	var c *client.Client
	var done chan error

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = s.cfg.Dial.MaxElapsed
	policy := backoff.WithContext(backoff.WithMaxRetries(b, s.cfg.Dial.MaxRetries), ctx)

	err := backoff.Retry(func() error {
		dialCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
		tr, err := client.Dial(dialCtx, url)
		if err != nil {
			s.logger.Warn("dial failed, retrying", "url", url, "error", err)
			return err
		}
		c = client.New(tr, client.WithLogger(s.logger), client.WithOnChange(s.persist))
		done = make(chan error, 1)
		go func() { done <- c.Run(ctx) }()

		select {
		case <-c.Ready():
			return nil
		case err := <-done:
			c.Close()
			return err
		case <-dialCtx.Done():
			c.Close()
			return fmt.Errorf("handshake: %w", dialCtx.Err())
		}
	}, policy)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current, s.online, s.site = c, c, c.Site()
	s.mu.Unlock()
	s.logger.Info("connected", "url", url, "site", c.Site())

	go func() {
		err := <-done
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("connection lost", "error", err)
		if err := s.goOffline(context.Background()); err != nil {
			s.logger.Error("offline fallback", "error", err)
		}
	}()
	return nil
}

// persist stores the synchronized state for the offline fallback. It runs
// under the client lock after every remote change.
func (s *session) persist(doc *document.Document) {
	g, err := doc.ToGlobal()
	if err == nil {
		err = s.snapshots.Save(context.Background(), s.cfg.Document, g)
	}
	if err != nil {
		s.logger.Warn("save local snapshot", "error", err)
	}
}

// goOffline replaces the current editor with a single-site document built
// from the last stored snapshot, or a fresh one when there is none.
func (s *session) goOffline(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return nil
	}
	if s.online != nil {
		// Local edits made since the last remote change are in the client
		// document; keep them.
		if g, err := s.online.Snapshot(); err == nil {
			if err := s.snapshots.Save(ctx, s.cfg.Document, g); err != nil {
				s.logger.Warn("save local snapshot", "error", err)
			}
		}
		s.online.Close()
	}

	doc, err := s.loadOffline(ctx)
	if err != nil {
		return err
	}
	s.current, s.site, s.offline = &offline{doc: doc}, doc.Site(), true
	s.logger.Warn("working offline", "site", s.site)
	return nil
}

func (s *session) loadOffline(ctx context.Context) (*document.Document, error) {
	g, err := s.snapshots.Load(ctx, s.cfg.Document)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return document.FromLocal(document.NewBuilder().Paragraph("").Build(), 1,
			document.DefaultTarget(), document.DefaultDesign(), document.WithLogger(s.logger))
	case err != nil:
		return nil, err
	}
	site := s.site
	if site == 0 {
		site = g.MaxSite() + 1
	}
	return document.FromGlobal(g, site, document.WithLogger(s.logger))
}

// save stores the current state, online or offline.
func (s *session) save(ctx context.Context) error {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()

	var (
		g   *document.GlobalDocument
		err error
	)
	switch e := cur.(type) {
	case *client.Client:
		g, err = e.Snapshot()
	case *offline:
		g, err = e.snapshot()
	default:
		return nil
	}
	if err != nil {
		return err
	}
	return s.snapshots.Save(ctx, s.cfg.Document, g)
}
