// Package store persists document snapshots by name.
//
// Every backend stores the versioned snapshot envelope produced by
// document.EncodeSnapshot, so a snapshot written by one can be read by
// another.
package store

import (
	"context"
	"errors"
	"fmt"

	"collabweave/document"
)

// ErrNotFound is returned by Load when nothing is stored under the name.
var ErrNotFound = errors.New("store: snapshot not found")

// Snapshots loads and saves snapshots.
type Snapshots interface {
	Load(ctx context.Context, name string) (*document.GlobalDocument, error)
	Save(ctx context.Context, name string, g *document.GlobalDocument) error
	Close() error
}

// Open returns the backend named by driver: "postgres", "sqlite" or "bolt".
// dsn is a connection string for postgres and a file path otherwise.
func Open(ctx context.Context, driver, dsn string) (Snapshots, error) {
	var (
		s   Snapshots
		err error
	)
	switch driver {
	case "postgres":
		s, err = OpenPostgres(ctx, dsn)
	case "sqlite":
		s, err = OpenSQLite(dsn)
	case "bolt":
		s, err = OpenBolt(dsn)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func decode(name string, data []byte) (*document.GlobalDocument, error) {
	g, err := document.DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("store: snapshot %q: %w", name, err)
	}
	return g, nil
}
