package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"collabweave/document"
)

// Feed publishes every applied op for consumers outside the session, such
// as exporters that keep a rendered copy up to date.
type Feed interface {
	Publish(ctx context.Context, op document.DocumentOp) error
	Close() error
}

type nopFeed struct{}

func (nopFeed) Publish(context.Context, document.DocumentOp) error { return nil }
func (nopFeed) Close() error                                       { return nil }

// redisFeed publishes ops as JSON on a Redis channel.
type redisFeed struct {
	rdb     *redis.Client
	channel string
}

func newRedisFeed(ctx context.Context, addr, channel string) (*redisFeed, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return &redisFeed{rdb: rdb, channel: channel}, nil
}

func (f *redisFeed) Publish(ctx context.Context, op document.DocumentOp) error {
	payload, err := json.Marshal(op)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, f.channel, payload).Err()
}

func (f *redisFeed) Close() error { return f.rdb.Close() }
