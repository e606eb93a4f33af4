package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"collabweave/document"
	"collabweave/protocol"
	"collabweave/weave"
)

// errProtocol means a client broke the message sequence.
var errProtocol = errors.New("protocol violation")

// feedBuffer bounds the ops applied but not yet published.
const feedBuffer = 1024

// Hub owns the shared document and the roster of connected clients. Every
// inbound message is handled under one lock.
type Hub struct {
	mu       sync.Mutex
	doc      *document.GlobalDocument
	clients  map[*Client]bool
	nextSite weave.SiteID
	feed     Feed
	feedq    chan document.DocumentOp // nil once closed
	feedDone chan struct{}
	logger   *slog.Logger
}

// newHub serves doc. Sites are handed out above every site already present
// in doc so a restarted server never reissues one.
func newHub(doc *document.GlobalDocument, feed Feed, logger *slog.Logger) *Hub {
	h := &Hub{
		doc:      doc,
		clients:  make(map[*Client]bool),
		nextSite: doc.MaxSite() + 1,
		feed:     feed,
		feedq:    make(chan document.DocumentOp, feedBuffer),
		feedDone: make(chan struct{}),
		logger:   logger,
	}
	go h.publish(h.feedq)
	return h
}

// publish forwards applied ops to the feed in the order they were applied.
func (h *Hub) publish(ops <-chan document.DocumentOp) {
	defer close(h.feedDone)
	for op := range ops {
		if err := h.feed.Publish(context.Background(), op); err != nil {
			h.logger.Warn("op feed", "op", op.String(), "error", err)
		}
	}
}

// closeFeed stops queueing ops and waits until the queued ones are
// published.
func (h *Hub) closeFeed() {
	h.mu.Lock()
	if h.feedq != nil {
		close(h.feedq)
		h.feedq = nil
	}
	h.mu.Unlock()
	<-h.feedDone
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	h.logger.Info("client registered", "conn", c.id, "clients", len(h.clients))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
}

// drop removes c from the roster and closes its queue. The caller holds mu.
func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Info("client unregistered", "conn", c.id, "site", c.site, "clients", len(h.clients))
	}
}

// queue hands msg to c without blocking. A full queue drops c. The caller
// holds mu.
func (h *Hub) queue(c *Client, msg []byte) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("send queue full, dropping client", "conn", c.id, "site", c.site)
		h.drop(c)
	}
}

func (h *Hub) reply(c *Client, cmd protocol.ServerCommand) error {
	msg, err := protocol.EncodeServer(cmd)
	if err != nil {
		return err
	}
	h.queue(c, msg)
	return nil
}

// handle processes one message from c. An error means the connection must
// be dropped; nothing has been applied or broadcast in that case.
func (h *Hub) handle(ctx context.Context, c *Client, cmd protocol.ClientCommand) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch cmd.Kind {
	case protocol.ClientJoin:
		if c.site != 0 {
			return fmt.Errorf("%w: second Join", errProtocol)
		}
		c.site = h.nextSite
		h.nextSite++
		h.logger.Info("site assigned", "conn", c.id, "site", c.site)
		return h.reply(c, protocol.Welcome(c.site))

	case protocol.ClientGetAll:
		if c.site == 0 {
			return fmt.Errorf("%w: GetAll before Join", errProtocol)
		}
		if c.synced {
			return fmt.Errorf("%w: second GetAll", errProtocol)
		}
		c.synced = true
		return h.reply(c, protocol.Snapshot(h.doc))

	case protocol.ClientOp:
		if c.site == 0 {
			return fmt.Errorf("%w: Op before Join", errProtocol)
		}
		op := *cmd.Op
		if err := h.doc.Apply(op); err != nil {
			return fmt.Errorf("apply %s: %w", op, err)
		}
		msg, err := protocol.EncodeServer(protocol.ServerOpCommand(op))
		if err != nil {
			return err
		}
		for peer := range h.clients {
			if peer != c {
				h.queue(peer, msg)
			}
		}
		// Queued under the lock so the feed sees the apply order.
		if h.feedq != nil {
			select {
			case h.feedq <- op:
			case <-ctx.Done():
			}
		}
		h.logger.Debug("op applied", "site", c.site, "op", op.String())
		return nil
	}
	return fmt.Errorf("%w: %s", errProtocol, cmd.Kind)
}

// snapshot encodes the current document as a versioned snapshot.
func (h *Hub) snapshot() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return document.EncodeSnapshot(h.doc)
}

// withDocument runs fn on the document under the lock.
func (h *Hub) withDocument(fn func(*document.GlobalDocument) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.doc)
}

// closeAll drops every client.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.drop(c)
	}
}
