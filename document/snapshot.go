package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotVersion tags every persisted snapshot. Bump it whenever the
// encoding of GlobalDocument changes.
const SnapshotVersion = "collabweave-snapshot-2"

// ErrVersionMismatch is returned for a snapshot written under another
// version. Nothing past the version tag is decoded.
var ErrVersionMismatch = errors.New("document: snapshot version mismatch")

// WriteSnapshot writes two MessagePack values: the SnapshotVersion string,
// then g itself. The payload is the global aggregate, weaves and content
// tables keyed by global id, with the print target and design carried in
// g.Target and g.Design. It is not a materialized tree; readers rebuild
// one with FromGlobal.
func WriteSnapshot(w io.Writer, g *GlobalDocument) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(SnapshotVersion); err != nil {
		return fmt.Errorf("write snapshot version: %w", err)
	}
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot checks the version tag and decodes the document after it.
func ReadSnapshot(r io.Reader) (*GlobalDocument, error) {
	dec := msgpack.NewDecoder(r)
	var version string
	if err := dec.Decode(&version); err != nil {
		return nil, fmt.Errorf("read snapshot version: %w", err)
	}
	if version != SnapshotVersion {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrVersionMismatch, version, SnapshotVersion)
	}
	g := &GlobalDocument{}
	if err := dec.Decode(g); err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	g.init()
	return g, nil
}

func EncodeSnapshot(g *GlobalDocument) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeSnapshot(data []byte) (*GlobalDocument, error) {
	return ReadSnapshot(bytes.NewReader(data))
}
