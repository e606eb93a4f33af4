// Package client implements the client side of the replication protocol:
// join, fetch the snapshot, then exchange ops with the server.
package client

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

var (
	// ErrProtocol means the server broke the message sequence. The
	// connection cannot be used any more.
	ErrProtocol = errors.New("client: protocol violation")
	// ErrNotConnected is returned by Edit before the snapshot has arrived.
	ErrNotConnected = errors.New("client: not connected")
)

// Transport is a duplex channel of whole messages that keeps the order of
// each direction.
type Transport interface {
	Send(ctx context.Context, msg []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}

// State is the connection state. Connected is terminal.
type State int

const (
	StateConnecting State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "connecting"
}

type Option func(*Client)

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithOnChange registers fn to run, under the client lock, after every
// remote op and after the snapshot is loaded.
func WithOnChange(fn func(*document.Document)) Option {
	return func(c *Client) { c.onChange = fn }
}

// Client is one site's connection to the server.
type Client struct {
	mu       sync.Mutex
	t        Transport
	state    State
	site     weave.SiteID
	doc      *document.Document
	ready    chan struct{}
	logger   *slog.Logger
	onChange func(*document.Document)
}

func New(t Transport, opts ...Option) *Client {
	c := &Client{
		t:      t,
		ready:  make(chan struct{}),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Site is the site assigned by the server, zero until Welcome.
func (c *Client) Site() weave.SiteID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.site
}

// Ready is closed once the snapshot has been loaded.
func (c *Client) Ready() <-chan struct{} { return c.ready }

func (c *Client) send(ctx context.Context, cmd protocol.ClientCommand) error {
	data, err := protocol.EncodeClient(cmd)
	if err != nil {
		return err
	}
	if err := c.t.Send(ctx, data); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Kind, err)
	}
	return nil
}

// Start asks the server for a site.
func (c *Client) Start(ctx context.Context) error {
	return c.send(ctx, protocol.Join())
}

// Run starts the handshake and handles server messages until ctx ends or
// the connection fails. It always returns a non-nil error.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Start(ctx); err != nil {
		return err
	}
	for {
		msg, err := c.t.Recv(ctx)
		if err != nil {
			return fmt.Errorf("recv: %w", err)
		}
		if err := c.Handle(ctx, msg); err != nil {
			return err
		}
	}
}

// Handle processes one server message. Any error is fatal for the
// connection.
func (c *Client) Handle(ctx context.Context, msg []byte) error {
	cmd, err := protocol.DecodeServer(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	switch cmd.Kind {
	case protocol.ServerWelcome:
		if c.state != StateConnecting || c.site != 0 {
			return fmt.Errorf("%w: unexpected Welcome", ErrProtocol)
		}
		c.site = cmd.Site
		c.logger.Info("joined", "site", c.site)
		return c.send(ctx, protocol.GetAll())

	case protocol.ServerDocument:
		if c.site == 0 {
			return fmt.Errorf("%w: Document before Welcome", ErrProtocol)
		}
		if c.state == StateConnected {
			return fmt.Errorf("%w: second Document", ErrProtocol)
		}
		doc, err := document.FromGlobal(cmd.Document, c.site, document.WithLogger(c.logger))
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		c.doc, c.state = doc, StateConnected
		close(c.ready)
		c.logger.Info("snapshot loaded", "site", c.site, "sequences", doc.Local().NumSequences())
		c.changed()
		return nil

	case protocol.ServerOp:
		if c.state != StateConnected {
			c.logger.Debug("op before snapshot ignored", "op", cmd.Op.String())
			return nil
		}
		if err := c.doc.ExecOp(*cmd.Op); err != nil {
			return fmt.Errorf("apply %s: %w", cmd.Op, err)
		}
		c.changed()
		return nil
	}
	return fmt.Errorf("%w: %s", ErrProtocol, cmd.Kind)
}

func (c *Client) changed() {
	if c.onChange != nil {
		c.onChange(c.doc)
	}
}

// Edit runs fn on the document under the client lock and sends every op it
// queued. An error from fn aborts before anything is sent; ops queued so far
// stay pending and go out with the next edit.
func (c *Client) Edit(ctx context.Context, fn func(*document.Document) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return ErrNotConnected
	}
	if err := fn(c.doc); err != nil {
		return err
	}
	for _, op := range c.doc.DrainPending() {
		if err := c.send(ctx, protocol.ClientOpCommand(op)); err != nil {
			return err
		}
	}
	return nil
}

// View runs fn on the document under the client lock.
func (c *Client) View(fn func(*document.Document)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return ErrNotConnected
	}
	fn(c.doc)
	return nil
}

// Snapshot exports the current document.
func (c *Client) Snapshot() (*document.GlobalDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return nil, ErrNotConnected
	}
	return c.doc.ToGlobal()
}

func (c *Client) Close() error { return c.t.Close() }
