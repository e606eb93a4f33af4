package weave_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"collabweave/weave"
)

func word(site weave.SiteID, n uint32) weave.Item {
	return weave.Word(weave.ID{Clock: n, Site: site})
}

func insert(t *testing.T, w *weave.Weave, atoms ...weave.Atom) {
	t.Helper()
	for _, a := range atoms {
		if err := w.Insert(a); err != nil {
			t.Fatalf("insert %s: %v", a, err)
		}
	}
}

// local creates an atom on w and applies it, as a site editing its own replica does.
func local(t *testing.T, w *weave.Weave, site weave.SiteID, prev weave.ID, op weave.AtomOp) weave.Atom {
	t.Helper()
	a := w.Create(site, prev, op)
	insert(t, w, a)
	return a
}

// deliver applies atoms in the given order, holding back any atom whose prev
// has not arrived yet. This models causal delivery.
func deliver(t *testing.T, w *weave.Weave, atoms []weave.Atom) {
	t.Helper()
	var held []weave.Atom
	for _, a := range atoms {
		held = append(held, a)
		for progress := true; progress; {
			progress = false
			for i, h := range held {
				if h.Prev.IsNull() || w.Has(h.Prev) {
					insert(t, w, h)
					held = append(held[:i], held[i+1:]...)
					progress = true
					break
				}
			}
		}
	}
	if len(held) != 0 {
		t.Fatalf("undeliverable atoms: %v", held)
	}
}

func permutations(atoms []weave.Atom) [][]weave.Atom {
	if len(atoms) <= 1 {
		return [][]weave.Atom{append([]weave.Atom(nil), atoms...)}
	}
	var out [][]weave.Atom
	for i := range atoms {
		rest := make([]weave.Atom, 0, len(atoms)-1)
		rest = append(rest, atoms[:i]...)
		rest = append(rest, atoms[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]weave.Atom{atoms[i]}, p...))
		}
	}
	return out
}

func TestFromItemsIsLinear(t *testing.T) {
	items := []weave.Item{word(1, 1), word(1, 2), word(1, 3)}
	w := weave.FromItems(1, items)

	if got := w.Render(); !reflect.DeepEqual(got, items) {
		t.Fatalf("render = %v, want %v", got, items)
	}
	atoms := w.Atoms()
	if !atoms[0].Prev.IsNull() {
		t.Fatalf("first atom prev = %s, want null", atoms[0].Prev)
	}
	for i := 1; i < len(atoms); i++ {
		if atoms[i].Prev != atoms[i-1].ID {
			t.Fatalf("atom %d prev = %s, want %s", i, atoms[i].Prev, atoms[i-1].ID)
		}
	}
	if w.Clock() != 3 {
		t.Fatalf("clock = %d, want 3", w.Clock())
	}
}

func TestLocalInsertLandsAtIndex(t *testing.T) {
	a, b, c := word(1, 1), word(1, 2), word(1, 3)
	x, y, z := word(1, 4), word(1, 5), word(1, 6)
	w := weave.FromItems(1, []weave.Item{a, b, c})

	for _, step := range []struct {
		index int
		item  weave.Item
	}{
		{1, x}, // a x b c
		{0, y}, // y a x b c
		{5, z}, // y a x b c z
	} {
		prev, ok := w.Find(step.index)
		if !ok {
			t.Fatalf("find(%d) failed", step.index)
		}
		local(t, w, 1, prev, weave.Add(step.item))
	}

	want := []weave.Item{y, a, x, b, c, z}
	if got := w.Render(); !reflect.DeepEqual(got, want) {
		t.Fatalf("render = %v, want %v", got, want)
	}
	if _, ok := w.Find(42); ok {
		t.Fatal("find past the end should fail")
	}
}

func TestReplaceRemoveChain(t *testing.T) {
	const n = 4
	w := weave.New()
	last := local(t, w, 1, weave.NullID(), weave.Add(word(1, 0)))
	for i := 1; i <= n; i++ {
		last = local(t, w, 1, last.ID, weave.Replace(word(1, uint32(i))))
	}

	withoutRemove := w.Clone()
	local(t, w, 1, last.ID, weave.Remove())

	if got := w.Render(); len(got) != 0 {
		t.Fatalf("after remove render = %v, want empty", got)
	}
	want := []weave.Item{word(1, n)}
	if got := withoutRemove.Render(); !reflect.DeepEqual(got, want) {
		t.Fatalf("without remove render = %v, want %v", got, want)
	}
}

func TestConcurrentReplaceAndRemove(t *testing.T) {
	base := weave.FromItems(1, []weave.Item{word(1, 1)})
	slot, _, _ := base.At(0)

	s2, s3 := base.Clone(), base.Clone()
	r := local(t, s2, 2, slot, weave.Replace(word(2, 1)))
	rm := local(t, s3, 3, slot, weave.Remove())

	w1, w2 := base.Clone(), base.Clone()
	insert(t, w1, r, rm)
	insert(t, w2, rm, r)
	for _, w := range []*weave.Weave{w1, w2} {
		if got := w.Render(); len(got) != 0 {
			t.Fatalf("render = %v, want the remove to win", got)
		}
	}
}

func TestReplaceOfLaterVersionSurvivesStaleReplace(t *testing.T) {
	w := weave.New()
	a := local(t, w, 1, weave.NullID(), weave.Add(word(1, 1)))
	r := local(t, w, 1, a.ID, weave.Replace(word(1, 2)))
	r2 := local(t, w, 1, r.ID, weave.Replace(word(1, 3)))

	id, item, ok := w.At(0)
	if !ok || id != r2.ID || item != word(1, 3) {
		t.Fatalf("at(0) = %s %v %v, want %s %v", id, item, ok, r2.ID, word(1, 3))
	}
	if got, ok := w.ItemAt(r.ID); !ok || got != word(1, 2) {
		t.Fatalf("itemAt(%s) = %v %v", r.ID, got, ok)
	}
}

func TestConcurrentSiblingsTieBreak(t *testing.T) {
	base := weave.FromItems(1, []weave.Item{word(1, 1)})
	head, _, _ := base.At(0)

	s2, s3 := base.Clone(), base.Clone()
	p := s2.Create(2, head, weave.Add(word(2, 1)))
	q := s3.Create(3, head, weave.Add(word(3, 1)))
	if p.ID.Clock != q.ID.Clock {
		t.Fatalf("expected equal clocks, got %s and %s", p.ID, q.ID)
	}

	w1, w2 := base.Clone(), base.Clone()
	insert(t, w1, p, q)
	insert(t, w2, q, p)

	if !reflect.DeepEqual(w1.Atoms(), w2.Atoms()) {
		t.Fatalf("diverged:\n%v\n%v", w1.Atoms(), w2.Atoms())
	}
}

func TestConvergenceAllDeliveryOrders(t *testing.T) {
	base := weave.FromItems(1, []weave.Item{word(1, 1), word(1, 2), word(1, 3)})
	a, _, _ := base.At(0)
	b, _, _ := base.At(1)

	s2, s3 := base.Clone(), base.Clone()
	x := local(t, s2, 2, a, weave.Add(word(2, 1)))
	rb := local(t, s2, 2, b, weave.Replace(word(2, 2)))
	w := local(t, s2, 2, x.ID, weave.Add(word(2, 3)))
	y := local(t, s3, 3, a, weave.Add(word(3, 1)))
	rm := local(t, s3, 3, b, weave.Remove())
	z := local(t, s3, 3, weave.NullID(), weave.Add(word(3, 2)))

	concurrent := []weave.Atom{x, rb, w, y, rm, z}
	want := []weave.Item{word(3, 2), word(1, 1), word(3, 1), word(2, 1), word(2, 3), word(1, 3)}

	var first []weave.Atom
	for _, order := range permutations(concurrent) {
		replica := base.Clone()
		deliver(t, replica, order)
		if got := replica.Render(); !reflect.DeepEqual(got, want) {
			t.Fatalf("order %v: render = %v, want %v", order, got, want)
		}
		if first == nil {
			first = replica.Atoms()
		} else if !reflect.DeepEqual(replica.Atoms(), first) {
			t.Fatalf("order %v: atoms diverged", order)
		}
	}
}

func TestInsertUnknownPrev(t *testing.T) {
	w := weave.New()
	a := weave.Atom{Prev: weave.ID{Clock: 7, Site: 9}, Op: weave.Add(word(1, 1)), ID: weave.ID{Clock: 8, Site: 1}}
	if err := w.Insert(a); !errors.Is(err, weave.ErrUnknownAtom) {
		t.Fatalf("err = %v, want ErrUnknownAtom", err)
	}
	if len(w.Atoms()) != 0 {
		t.Fatal("failed insert must not modify the weave")
	}
}

func TestClockSkipsRemoteValues(t *testing.T) {
	w := weave.New()
	insert(t, w, weave.Atom{Prev: weave.NullID(), Op: weave.Add(word(2, 1)), ID: weave.ID{Clock: 41, Site: 2}})
	a := w.Create(1, weave.NullID(), weave.Add(word(1, 1)))
	if a.ID.Clock <= 41 {
		t.Fatalf("new clock %d not above remote 41", a.ID.Clock)
	}
}

func TestWeaveMsgpack(t *testing.T) {
	w := weave.FromItems(4, []weave.Item{word(4, 1), weave.Sequence(weave.ID{Clock: 2, Site: 4})})
	first, _, _ := w.At(0)
	local(t, w, 4, first, weave.Remove())

	data, err := msgpack.Marshal(w)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got := weave.New()
	if err := msgpack.Unmarshal(data, got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got.Atoms(), w.Atoms()) || got.Clock() != w.Clock() {
		t.Fatalf("decoded %v/%d, want %v/%d", got.Atoms(), got.Clock(), w.Atoms(), w.Clock())
	}
}

func TestNeighbours(t *testing.T) {
	a, b, c := word(1, 1), word(1, 2), word(1, 3)
	w := weave.FromItems(1, []weave.Item{a, b, c})
	bID, _, _ := w.At(1)
	local(t, w, 1, bID, weave.Remove())

	aID, _, _ := w.At(0)
	cID, _, _ := w.At(1)
	if id, item, ok := w.First(); !ok || id != aID || item != a {
		t.Errorf("First = %s %s %v", id, item, ok)
	}
	if id, item, ok := w.Last(); !ok || id != cID || item != c {
		t.Errorf("Last = %s %s %v", id, item, ok)
	}
	if id, item, ok := w.Next(aID); !ok || id != cID || item != c {
		t.Errorf("Next skips the removed slot: %s %s %v", id, item, ok)
	}
	if id, item, ok := w.Prev(cID); !ok || id != aID || item != a {
		t.Errorf("Prev = %s %s %v", id, item, ok)
	}
	if _, _, ok := w.Prev(aID); ok {
		t.Error("Prev of the first slot")
	}
	if _, _, ok := w.Next(cID); ok {
		t.Error("Next of the last slot")
	}
	if _, _, ok := w.Next(bID); ok {
		t.Error("Next of a removed slot")
	}
	if _, _, ok := weave.New().Last(); ok {
		t.Error("Last of an empty weave")
	}
}
