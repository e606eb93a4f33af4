package store

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"collabweave/document"
)

var snapshotBucket = []byte("snapshots")

// Bolt keeps snapshots in a bbolt file, one key per name.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens or creates the file at path.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Load(_ context.Context, name string) (*document.GlobalDocument, error) {
	var data []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		// Bolt values are only valid inside the transaction.
		if v := tx.Bucket(snapshotBucket).Get([]byte(name)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: load %q: %w", name, err)
	}
	if data == nil {
		return nil, ErrNotFound
	}
	return decode(name, data)
}

func (b *Bolt) Save(_ context.Context, name string, g *document.GlobalDocument) error {
	data, err := document.EncodeSnapshot(g)
	if err != nil {
		return err
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotBucket).Put([]byte(name), data)
	})
	if err != nil {
		return fmt.Errorf("store: save %q: %w", name, err)
	}
	return nil
}

func (b *Bolt) Close() error { return b.db.Close() }
