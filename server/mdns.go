package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/grandcat/zeroconf"

	"collabweave/document"
)

// advertise registers the server over mDNS so agents on the local network
// can find it without configuration. The returned func withdraws it.
func advertise(cfg MDNSConfig, listen string) (func(), error) {
	_, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return nil, fmt.Errorf("mdns: listen address %q: %w", listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("mdns: port %q: %w", portStr, err)
	}
	server, err := zeroconf.Register(cfg.Instance, cfg.Service, "local.", port,
		[]string{"path=/ws", "snapshot=" + document.SnapshotVersion}, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns: register: %w", err)
	}
	return server.Shutdown, nil
}
