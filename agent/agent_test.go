package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"

	"collabweave/document"
	"collabweave/protocol"
	"collabweave/store"
)

func testSession(t *testing.T) *session {
	t.Helper()
	snapshots, err := store.OpenBolt(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { snapshots.Close() })
	cfg := &Config{Dial: DialConfig{MaxElapsed: 2 * time.Second, MaxRetries: 1}, Timeout: 2 * time.Second}
	cfg.defaults()
	return newSession(cfg, snapshots, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func seed(t *testing.T, text string) *document.GlobalDocument {
	t.Helper()
	d, err := document.FromLocal(document.NewBuilder().Paragraph(text).Build(), 1,
		document.DefaultTarget(), document.DefaultDesign())
	if err != nil {
		t.Fatal(err)
	}
	g, err := d.ToGlobal()
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func execLines(t *testing.T, ed editor, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	for _, l := range lines {
		if err := execute(context.Background(), ed, l, &out); err != nil {
			t.Fatalf("%s: %v", l, err)
		}
	}
	return out.String()
}

func TestConsoleEditing(t *testing.T) {
	s := testSession(t)
	if err := s.goOffline(context.Background()); err != nil {
		t.Fatal(err)
	}
	ed := s.editor()

	execLines(t, ed,
		"append Hello world",
		"insert 0 1 big",
		"replace 0 0 Goodbye",
		"para second one",
		"remove 1 1",
	)
	got := execLines(t, ed, "print")
	want := "[0] Goodbye big world\n[1] second\n"
	if got != want {
		t.Errorf("print = %q, want %q", got, want)
	}

	var out bytes.Buffer
	for _, bad := range []string{"insert 0", "remove x 1", "remove 9 0", "frobnicate"} {
		if err := execute(context.Background(), ed, bad, &out); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestRunConsole(t *testing.T) {
	s := testSession(t)
	if err := s.goOffline(context.Background()); err != nil {
		t.Fatal(err)
	}
	in := strings.NewReader("append one two\nstatus\nprint\nsave\nquit\nappend never\n")
	var out bytes.Buffer
	if err := runConsole(context.Background(), in, &out, s); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"offline (site 1)", "[0] one two"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output %q lacks %q", out.String(), want)
		}
	}

	g, err := s.snapshots.Load(context.Background(), s.cfg.Document)
	if err != nil {
		t.Fatal(err)
	}
	d, err := document.FromGlobal(g, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Text(d.Root()); got != "one two" {
		t.Errorf("saved %q", got)
	}
}

func TestOfflineResumesFromStore(t *testing.T) {
	s := testSession(t)
	if err := s.snapshots.Save(context.Background(), s.cfg.Document, seed(t, "stored text")); err != nil {
		t.Fatal(err)
	}
	if err := s.goOffline(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := execLines(t, s.editor(), "print"); got != "[0] stored text\n" {
		t.Errorf("print = %q", got)
	}
	if s.site != 2 {
		t.Errorf("site = %d, want one above the stored sites", s.site)
	}
}

func TestUnreachableServerFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := testSession(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if err := s.connect(context.Background(), url); err == nil {
		t.Fatal("connect succeeded")
	}
	if err := s.goOffline(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(s.status(), "offline") {
		t.Errorf("status %q", s.status())
	}
}

// fakeServer runs the handshake for one connection, then holds it open
// until drop is closed.
func fakeServer(t *testing.T, g *document.GlobalDocument, drop <-chan struct{}) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, reply := range []protocol.ServerCommand{protocol.Welcome(5), protocol.Snapshot(g)} {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			msg, err := protocol.EncodeServer(reply)
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				return
			}
		}
		<-drop
	}))
}

func TestConnectionLossFallsBack(t *testing.T) {
	drop := make(chan struct{})
	srv := fakeServer(t, seed(t, "shared"), drop)
	defer srv.Close()

	s := testSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.connect(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")); err != nil {
		t.Fatal(err)
	}
	if got := s.status(); got != "online (site 5)" {
		t.Fatalf("status %q", got)
	}
	execLines(t, s.editor(), "append local")

	close(drop)
	deadline := time.Now().Add(5 * time.Second)
	for !strings.HasPrefix(s.status(), "offline") {
		if time.Now().After(deadline) {
			t.Fatal("no offline fallback")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := s.status(); got != "offline (site 5)" {
		t.Errorf("status %q", got)
	}
	if got := execLines(t, s.editor(), "print"); got != "[0] shared local\n" {
		t.Errorf("print = %q", got)
	}
}

func TestEntryURL(t *testing.T) {
	entry := zeroconf.NewServiceEntry("collabweave-host", "_collabweave._tcp", "local.")
	if _, ok := entryURL(entry); ok {
		t.Error("entry without address produced a URL")
	}
	entry.AddrIPv4 = []net.IP{net.IPv4(192, 168, 1, 7)}
	entry.Port = 8081
	entry.Text = []string{"snapshot=" + document.SnapshotVersion, "path=/collab"}
	url, ok := entryURL(entry)
	if !ok || url != "ws://192.168.1.7:8081/collab" {
		t.Errorf("url = %q, %v", url, ok)
	}
}
