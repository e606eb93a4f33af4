// Package protocol defines the replication messages exchanged between a
// client and the server, and their binary encoding.
//
// Per connection the sequence is Join, Welcome, GetAll, Document, then any
// number of Op messages in both directions.
package protocol

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"collabweave/document"
	"collabweave/weave"
)

// ErrMalformed is returned for bytes that do not decode to a valid message.
var ErrMalformed = errors.New("protocol: malformed message")

type ClientKind uint8

const (
	ClientJoin ClientKind = iota + 1
	ClientGetAll
	ClientOp
)

func (k ClientKind) String() string {
	switch k {
	case ClientJoin:
		return "Join"
	case ClientGetAll:
		return "GetAll"
	case ClientOp:
		return "Op"
	}
	return fmt.Sprintf("ClientKind(%d)", uint8(k))
}

// ClientCommand is a message from a client to the server.
type ClientCommand struct {
	Kind ClientKind
	Op   *document.DocumentOp
}

func Join() ClientCommand   { return ClientCommand{Kind: ClientJoin} }
func GetAll() ClientCommand { return ClientCommand{Kind: ClientGetAll} }
func ClientOpCommand(op document.DocumentOp) ClientCommand {
	return ClientCommand{Kind: ClientOp, Op: &op}
}

func (c ClientCommand) validate() error {
	switch c.Kind {
	case ClientJoin, ClientGetAll:
		return nil
	case ClientOp:
		if c.Op == nil {
			return fmt.Errorf("%w: Op without payload", ErrMalformed)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMalformed, c.Kind)
}

type ServerKind uint8

const (
	ServerWelcome ServerKind = iota + 1
	ServerDocument
	ServerOp
)

func (k ServerKind) String() string {
	switch k {
	case ServerWelcome:
		return "Welcome"
	case ServerDocument:
		return "Document"
	case ServerOp:
		return "Op"
	}
	return fmt.Sprintf("ServerKind(%d)", uint8(k))
}

// ServerCommand is a message from the server to a client.
type ServerCommand struct {
	Kind     ServerKind
	Site     weave.SiteID
	Document *document.GlobalDocument
	Op       *document.DocumentOp
}

func Welcome(site weave.SiteID) ServerCommand {
	return ServerCommand{Kind: ServerWelcome, Site: site}
}

func Snapshot(g *document.GlobalDocument) ServerCommand {
	return ServerCommand{Kind: ServerDocument, Document: g}
}

func ServerOpCommand(op document.DocumentOp) ServerCommand {
	return ServerCommand{Kind: ServerOp, Op: &op}
}

func (c ServerCommand) validate() error {
	switch c.Kind {
	case ServerWelcome:
		if c.Site == 0 {
			return fmt.Errorf("%w: Welcome without site", ErrMalformed)
		}
		return nil
	case ServerDocument:
		if c.Document == nil {
			return fmt.Errorf("%w: Document without payload", ErrMalformed)
		}
		return nil
	case ServerOp:
		if c.Op == nil {
			return fmt.Errorf("%w: Op without payload", ErrMalformed)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMalformed, c.Kind)
}

// Each message is one MessagePack value, so any frame decodes without the
// frames before it.
func encode(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func decode(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func EncodeClient(c ClientCommand) ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return encode(c)
}

func DecodeClient(data []byte) (ClientCommand, error) {
	var c ClientCommand
	if err := decode(data, &c); err != nil {
		return ClientCommand{}, err
	}
	if err := c.validate(); err != nil {
		return ClientCommand{}, err
	}
	return c, nil
}

func EncodeServer(c ServerCommand) ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return encode(c)
}

func DecodeServer(data []byte) (ServerCommand, error) {
	var c ServerCommand
	if err := decode(data, &c); err != nil {
		return ServerCommand{}, err
	}
	if err := c.validate(); err != nil {
		return ServerCommand{}, err
	}
	return c, nil
}
