package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/google/uuid"

	"collabweave/document"
	"collabweave/protocol"
	"collabweave/weave"
)

type recordingFeed struct {
	mu  sync.Mutex
	ops []document.DocumentOp
}

func (f *recordingFeed) Publish(_ context.Context, op document.DocumentOp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
	return nil
}

func (f *recordingFeed) Close() error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHub(t *testing.T) (*Hub, *recordingFeed) {
	t.Helper()
	g, err := freshDocument()
	if err != nil {
		t.Fatal(err)
	}
	feed := &recordingFeed{}
	h := newHub(g, feed, quietLogger())
	t.Cleanup(h.closeFeed)
	return h, feed
}

func testClient(h *Hub, buffer int) *Client {
	c := &Client{id: uuid.New(), hub: h, send: make(chan []byte, buffer), logger: h.logger}
	h.register(c)
	return c
}

func recv(t *testing.T, c *Client) protocol.ServerCommand {
	t.Helper()
	select {
	case msg := <-c.send:
		cmd, err := protocol.DecodeServer(msg)
		if err != nil {
			t.Fatal(err)
		}
		return cmd
	default:
		t.Fatal("nothing queued")
	}
	return protocol.ServerCommand{}
}

func joined(t *testing.T, h *Hub, buffer int) (*Client, *document.Document) {
	t.Helper()
	ctx := context.Background()
	c := testClient(h, buffer)
	if err := h.handle(ctx, c, protocol.Join()); err != nil {
		t.Fatal(err)
	}
	welcome := recv(t, c)
	if err := h.handle(ctx, c, protocol.GetAll()); err != nil {
		t.Fatal(err)
	}
	snap := recv(t, c)
	d, err := document.FromGlobal(snap.Document, welcome.Site)
	if err != nil {
		t.Fatal(err)
	}
	return c, d
}

func TestSitesStartAboveDocument(t *testing.T) {
	h, _ := testHub(t)
	a, _ := joined(t, h, 4)
	b, _ := joined(t, h, 4)
	if a.site != 2 || b.site != 3 {
		t.Errorf("sites = %d, %d", a.site, b.site)
	}
	if err := h.handle(context.Background(), a, protocol.Join()); !errors.Is(err, errProtocol) {
		t.Errorf("second Join = %v", err)
	}
}

func TestMessagesBeforeJoin(t *testing.T) {
	h, _ := testHub(t)
	c := testClient(h, 4)
	op := document.CreateWord(weave.ID{Clock: 1, Site: 5}, document.Word{Text: "x"})
	for _, cmd := range []protocol.ClientCommand{protocol.GetAll(), protocol.ClientOpCommand(op)} {
		if err := h.handle(context.Background(), c, cmd); !errors.Is(err, errProtocol) {
			t.Errorf("%s before Join = %v", cmd.Kind, err)
		}
	}
}

func TestOpIsAppliedAndRebroadcast(t *testing.T) {
	h, feed := testHub(t)
	a, docA := joined(t, h, 8)
	b, docB := joined(t, h, 8)

	para := document.SequenceKey(docA.Local().Sequence(docA.Root()).Items[0].Key)
	if _, err := docA.Insert(document.End(para), docA.AddWord("Hello")); err != nil {
		t.Fatal(err)
	}
	ops := docA.DrainPending()
	for _, op := range ops {
		if err := h.handle(context.Background(), a, protocol.ClientOpCommand(op)); err != nil {
			t.Fatal(err)
		}
	}

	if n := len(a.send); n != 0 {
		t.Errorf("originator got %d messages back", n)
	}
	for range ops {
		cmd := recv(t, b)
		if err := docB.ExecOp(*cmd.Op); err != nil {
			t.Fatal(err)
		}
	}
	if got := docB.Text(docB.Root()); got != "Hello" {
		t.Errorf("b text %q", got)
	}
	h.closeFeed()
	if len(feed.ops) != len(ops) {
		t.Errorf("feed got %d ops", len(feed.ops))
	}

	late, docC := joined(t, h, 8)
	if got := docC.Text(docC.Root()); got != "Hello" || late.site != 4 {
		t.Errorf("late joiner: site %d text %q", late.site, got)
	}
}

func TestFailedOpIsNotBroadcast(t *testing.T) {
	h, feed := testHub(t)
	a, docA := joined(t, h, 8)
	b, _ := joined(t, h, 8)

	para := document.SequenceKey(docA.Local().Sequence(docA.Root()).Items[0].Key)
	if _, err := docA.Insert(document.End(para), docA.AddWord("orphan")); err != nil {
		t.Fatal(err)
	}
	ops := docA.DrainPending()
	// The SeqOp without its CreateWord cites an unknown word.
	err := h.handle(context.Background(), a, protocol.ClientOpCommand(ops[1]))
	if !errors.Is(err, document.ErrUnknownID) {
		t.Fatalf("err = %v", err)
	}
	h.closeFeed()
	if len(b.send) != 0 || len(feed.ops) != 0 {
		t.Error("failed op was forwarded")
	}
}

func TestFullQueueDropsPeer(t *testing.T) {
	h, _ := testHub(t)
	a, docA := joined(t, h, 8)
	slow, _ := joined(t, h, 1)
	slow.send <- []byte("backlog")

	docA.AddWord("x")
	op := docA.DrainPending()[0]
	if err := h.handle(context.Background(), a, protocol.ClientOpCommand(op)); err != nil {
		t.Fatalf("sender affected: %v", err)
	}

	h.mu.Lock()
	_, present := h.clients[slow]
	h.mu.Unlock()
	if present {
		t.Fatal("slow peer still registered")
	}
	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Error("slow peer queue not closed")
	}
}

func TestGetAllIsAnsweredOnce(t *testing.T) {
	h, _ := testHub(t)
	c, _ := joined(t, h, 4)
	if err := h.handle(context.Background(), c, protocol.GetAll()); !errors.Is(err, errProtocol) {
		t.Errorf("second GetAll = %v", err)
	}
	if n := len(c.send); n != 0 {
		t.Errorf("%d messages queued for the second GetAll", n)
	}
}

func TestSequenceOfUnknownTypeIsRejected(t *testing.T) {
	h, _ := testHub(t)
	a, _ := joined(t, h, 8)
	b, _ := joined(t, h, 8)

	op := document.CreateSequence(weave.ID{Clock: 1, Site: a.site}, weave.ID{Clock: 99, Site: a.site})
	if err := h.handle(context.Background(), a, protocol.ClientOpCommand(op)); !errors.Is(err, document.ErrUnknownID) {
		t.Fatalf("err = %v", err)
	}
	if n := len(b.send); n != 0 {
		t.Errorf("rejected op forwarded to %d peers", n)
	}
	// joined fails the test if the stored document no longer loads.
	joined(t, h, 8)
}

func TestFeedKeepsApplyOrder(t *testing.T) {
	h, feed := testHub(t)
	observer, _ := joined(t, h, 1024)

	const senders, perSender = 4, 25
	clients := make([]*Client, senders)
	batches := make([][]document.DocumentOp, senders)
	for i := range senders {
		c, d := joined(t, h, 1024)
		for j := range perSender {
			d.AddWord(fmt.Sprintf("w%d-%d", i, j))
		}
		clients[i], batches[i] = c, d.DrainPending()
	}

	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, op := range batches[i] {
				if err := h.handle(context.Background(), c, protocol.ClientOpCommand(op)); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()
	h.closeFeed()

	// The observer's queue holds the broadcasts in apply order.
	var applied []weave.ID
	for len(observer.send) > 0 {
		applied = append(applied, recv(t, observer).Op.ID)
	}
	var published []weave.ID
	for _, op := range feed.ops {
		published = append(published, op.ID)
	}
	if len(applied) != senders*perSender {
		t.Fatalf("observer saw %d ops", len(applied))
	}
	if !slices.Equal(published, applied) {
		t.Errorf("feed order differs from apply order:\nfeed    %v\napplied %v", published, applied)
	}
}
