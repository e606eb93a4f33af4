package document_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"collabweave/document"
)

func TestSnapshotRoundTrip(t *testing.T) {
	d := newDoc(t, 1, document.NewBuilder().Chapter().Paragraph("Hello, world").Paragraph(""))
	g, err := d.ToGlobal()
	if err != nil {
		t.Fatal(err)
	}
	data, err := document.EncodeSnapshot(g)
	if err != nil {
		t.Fatal(err)
	}
	back, err := document.DecodeSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Root != g.Root || len(back.Sequences) != len(g.Sequences) || len(back.Words) != len(g.Words) {
		t.Fatalf("decoded %+v", back)
	}
	if back.Target != g.Target || back.Design.Name != g.Design.Name {
		t.Errorf("target/design lost: %+v %+v", back.Target, back.Design)
	}
	r, err := document.FromGlobal(back, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Text(r.Root()); got != "Hello , world" {
		t.Errorf("text = %q", got)
	}
}

func TestSnapshotVersionGate(t *testing.T) {
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode("collabweave-snapshot-0"); err != nil {
		t.Fatal(err)
	}
	// Anything after a foreign version tag must not be looked at.
	buf.Write([]byte{0xc1, 0x00, 0x13, 0x37})

	_, err := document.ReadSnapshot(&buf)
	if !errors.Is(err, document.ErrVersionMismatch) {
		t.Fatalf("err = %v, want ErrVersionMismatch", err)
	}
}

func TestSnapshotTruncated(t *testing.T) {
	d := newDoc(t, 1, document.NewBuilder().Paragraph("x"))
	g, err := d.ToGlobal()
	if err != nil {
		t.Fatal(err)
	}
	data, err := document.EncodeSnapshot(g)
	if err != nil {
		t.Fatal(err)
	}
	_, err = document.DecodeSnapshot(data[:len(data)/2])
	if err == nil || errors.Is(err, document.ErrVersionMismatch) {
		t.Errorf("truncated snapshot: %v", err)
	}
}
