package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"collabweave/document"
	"collabweave/store"
)

func sample(t *testing.T, text string) *document.GlobalDocument {
	t.Helper()
	d, err := document.FromLocal(document.NewBuilder().Paragraph(text).Build(), 1,
		document.DefaultTarget(), document.DefaultDesign())
	if err != nil {
		t.Fatal(err)
	}
	g, err := d.ToGlobal()
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func text(t *testing.T, g *document.GlobalDocument) string {
	t.Helper()
	d, err := document.FromGlobal(g, 2)
	if err != nil {
		t.Fatal(err)
	}
	return d.Text(d.Root())
}

func TestBackends(t *testing.T) {
	backends := []struct {
		driver string
		file   string
	}{
		{"sqlite", "snapshots.db"},
		{"bolt", "snapshots.bolt"},
	}
	for _, b := range backends {
		t.Run(b.driver, func(t *testing.T) {
			ctx := context.Background()
			s, err := store.Open(ctx, b.driver, filepath.Join(t.TempDir(), b.file))
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()

			if _, err := s.Load(ctx, "doc"); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("Load empty = %v", err)
			}
			if err := s.Save(ctx, "doc", sample(t, "first draft")); err != nil {
				t.Fatal(err)
			}
			if err := s.Save(ctx, "doc", sample(t, "second draft")); err != nil {
				t.Fatal(err)
			}
			if err := s.Save(ctx, "other", sample(t, "unrelated")); err != nil {
				t.Fatal(err)
			}
			g, err := s.Load(ctx, "doc")
			if err != nil {
				t.Fatal(err)
			}
			if got := text(t, g); got != "second draft" {
				t.Errorf("loaded %q", got)
			}
		})
	}
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "agent.bolt")
	s, err := store.OpenBolt(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "doc", sample(t, "kept")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = store.OpenBolt(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	g, err := s.Load(ctx, "doc")
	if err != nil {
		t.Fatal(err)
	}
	if got := text(t, g); got != "kept" {
		t.Errorf("loaded %q", got)
	}
}

func TestUnknownDriver(t *testing.T) {
	if _, err := store.Open(context.Background(), "mongo", ""); err == nil {
		t.Error("expected error")
	}
}
