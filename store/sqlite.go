package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"collabweave/document"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	name       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (unixepoch())
)`

// SQLite keeps snapshots in a single-file SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// One writer; also keeps ":memory:" on a single database.
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		sqliteSchema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", stmt, err)
		}
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context, name string) (*document.GlobalDocument, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %q: %w", name, err)
	}
	return decode(name, data)
}

func (s *SQLite) Save(ctx context.Context, name string, g *document.GlobalDocument) error {
	data, err := document.EncodeSnapshot(g)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, data, updated_at) VALUES (?, ?, unixepoch())
		ON CONFLICT (name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		name, data)
	if err != nil {
		return fmt.Errorf("store: save %q: %w", name, err)
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }
