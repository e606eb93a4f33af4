package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

var errNoServer = errors.New("no server found over mDNS")

// discover browses for the server's mDNS service and returns the websocket
// URL of the first instance that answers.
func discover(ctx context.Context, service string, timeout time.Duration, logger *slog.Logger) (string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("mdns resolver: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, service, "local.", entries); err != nil {
		return "", fmt.Errorf("mdns browse: %w", err)
	}
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return "", errNoServer
			}
			if url, ok := entryURL(entry); ok {
				logger.Info("server discovered", "instance", entry.Instance, "url", url)
				return url, nil
			}
		case <-ctx.Done():
			return "", errNoServer
		}
	}
}

// entryURL builds the websocket URL advertised by entry. The path comes
// from the "path=" TXT record.
func entryURL(entry *zeroconf.ServiceEntry) (string, bool) {
	if len(entry.AddrIPv4) == 0 {
		return "", false
	}
	path := "/ws"
	for _, txt := range entry.Text {
		if v, ok := strings.CutPrefix(txt, "path="); ok {
			path = v
		}
	}
	return fmt.Sprintf("ws://%s:%d%s", entry.AddrIPv4[0], entry.Port, path), true
}
