// Package weave implements the per-sequence replicated edit log.
//
// A Weave stores atoms in causal-tree preorder: every atom sits after the
// atom it cites as prev, and siblings citing the same prev are ordered by
// Atom.Compare. Applying the same set of atoms in any causally valid order
// yields the same array, so every replica materializes the same items.
package weave

import (
	"errors"
	"fmt"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnknownAtom is returned when an atom cites a prev the weave does not hold.
var ErrUnknownAtom = errors.New("weave: unknown atom")

// Weave is the ordered atom log of one sequence.
type Weave struct {
	atoms []Atom
	clock uint32
}

// New returns an empty weave.
func New() *Weave {
	return &Weave{}
}

// FromItems builds a straight-line weave: one Add per item, each citing the
// previous one, as if site had typed them in order.
func FromItems(site SiteID, items []Item) *Weave {
	w := New()
	prev := NullID()
	for _, item := range items {
		a := w.Create(site, prev, Add(item))
		// prev always exists: it is the atom appended just before.
		_ = w.Insert(a)
		prev = a.ID
	}
	return w
}

// Create stamps a new atom for site with the weave's current clock. The atom
// is not applied until passed to Insert.
func (w *Weave) Create(site SiteID, prev ID, op AtomOp) Atom {
	return Atom{
		Prev: prev,
		Op:   op,
		ID:   ID{Clock: w.clock, Site: site},
	}
}

// Insert places a at its deterministic position.
//
// The scan starts right after a.Prev (or at the head) and walks over the
// siblings that sort before a, skipping each sibling's whole subtree.
func (w *Weave) Insert(a Atom) error {
	idx := 0
	if !a.Prev.IsNull() {
		i := w.index(a.Prev)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownAtom, a.Prev)
		}
		idx = i + 1
	}
	for idx < len(w.atoms) {
		other := w.atoms[idx]
		if other.Prev != a.Prev || a.Compare(other) < 0 {
			break
		}
		idx = w.skipSubtree(idx)
	}
	w.atoms = slices.Insert(w.atoms, idx, a)
	w.clock = max(w.clock, a.ID.Clock) + 1
	return nil
}

// skipSubtree returns the index just past the atom at idx and all of its
// transitive descendants. In preorder these form one contiguous run.
func (w *Weave) skipSubtree(idx int) int {
	subtree := map[ID]struct{}{w.atoms[idx].ID: {}}
	for idx++; idx < len(w.atoms); idx++ {
		a := w.atoms[idx]
		if _, ok := subtree[a.Prev]; !ok {
			break
		}
		subtree[a.ID] = struct{}{}
	}
	return idx
}

func (w *Weave) index(id ID) int {
	for i, a := range w.atoms {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// Has reports whether the weave holds an atom with the given id.
func (w *Weave) Has(id ID) bool { return w.index(id) >= 0 }

// Clock is the value the next created atom will carry.
func (w *Weave) Clock() uint32 { return w.clock }

// Atoms returns a copy of the log in weave order.
func (w *Weave) Atoms() []Atom { return slices.Clone(w.atoms) }

// Clone returns an independent copy of w.
func (w *Weave) Clone() *Weave {
	return &Weave{atoms: slices.Clone(w.atoms), clock: w.clock}
}

// Items returns a fresh iterator over the visible slots.
func (w *Weave) Items() *ItemIter {
	return &ItemIter{atoms: w.atoms}
}

// Render collects the visible items.
func (w *Weave) Render() []Item {
	var items []Item
	it := w.Items()
	for {
		_, item, ok := it.Next()
		if !ok {
			return items
		}
		items = append(items, item)
	}
}

// Len is the number of visible slots.
func (w *Weave) Len() int {
	n := 0
	it := w.Items()
	for {
		if _, _, ok := it.Next(); !ok {
			return n
		}
		n++
	}
}

// At returns the id and item of the visible slot at index.
func (w *Weave) At(index int) (ID, Item, bool) {
	if index < 0 {
		return ID{}, Item{}, false
	}
	it := w.Items()
	for i := 0; ; i++ {
		id, item, ok := it.Next()
		if !ok {
			return ID{}, Item{}, false
		}
		if i == index {
			return id, item, true
		}
	}
}

// Find maps an insertion index to the prev a new atom must cite there: the
// null id at index 0, otherwise the id of the slot just before index.
func (w *Weave) Find(index int) (ID, bool) {
	if index == 0 {
		return NullID(), true
	}
	id, _, ok := w.At(index - 1)
	return id, ok
}

// First returns the first visible slot.
func (w *Weave) First() (ID, Item, bool) { return w.Items().Next() }

// Last returns the last visible slot.
func (w *Weave) Last() (ID, Item, bool) {
	var (
		id    ID
		item  Item
		found bool
	)
	it := w.Items()
	for {
		next, nextItem, ok := it.Next()
		if !ok {
			return id, item, found
		}
		id, item, found = next, nextItem, true
	}
}

// Prev returns the visible slot just before the slot identified by id.
func (w *Weave) Prev(id ID) (ID, Item, bool) {
	var (
		prev     ID
		prevItem Item
		found    bool
	)
	it := w.Items()
	for {
		cur, item, ok := it.Next()
		if !ok {
			return ID{}, Item{}, false
		}
		if cur == id {
			return prev, prevItem, found
		}
		prev, prevItem, found = cur, item, true
	}
}

// Next returns the visible slot just after the slot identified by id.
func (w *Weave) Next(id ID) (ID, Item, bool) {
	it := w.Items()
	for {
		cur, _, ok := it.Next()
		if !ok {
			return ID{}, Item{}, false
		}
		if cur == id {
			return it.Next()
		}
	}
}

// ItemAt returns the item carried by the atom with the given id, if that
// atom is an Add or a Replace.
func (w *Weave) ItemAt(id ID) (Item, bool) {
	i := w.index(id)
	if i < 0 || w.atoms[i].Op.Kind == OpRemove {
		return Item{}, false
	}
	return w.atoms[i].Op.Item, true
}

// ItemIter replays a weave one slot at a time. It holds a single open slot:
// an Add emits the previous open slot and opens a new one, a Replace citing
// the open slot swaps its value, a Remove citing it closes it.
type ItemIter struct {
	atoms []Atom
	pos   int
	open  bool
	id    ID
	item  Item
}

// Next returns the next visible slot, or false at the end.
func (it *ItemIter) Next() (ID, Item, bool) {
	for it.pos < len(it.atoms) {
		a := it.atoms[it.pos]
		it.pos++
		switch a.Op.Kind {
		case OpAdd:
			id, item, emit := it.id, it.item, it.open
			it.open, it.id, it.item = true, a.ID, a.Op.Item
			if emit {
				return id, item, true
			}
		case OpReplace:
			if it.open && it.id == a.Prev {
				it.id, it.item = a.ID, a.Op.Item
			}
		case OpRemove:
			if it.open && it.id == a.Prev {
				it.open = false
			}
		}
	}
	if it.open {
		it.open = false
		return it.id, it.item, true
	}
	return ID{}, Item{}, false
}

type wireWeave struct {
	Atoms []Atom
	Clock uint32
}

var (
	_ msgpack.CustomEncoder = (*Weave)(nil)
	_ msgpack.CustomDecoder = (*Weave)(nil)
)

func (w *Weave) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(wireWeave{Atoms: w.atoms, Clock: w.clock})
}

func (w *Weave) DecodeMsgpack(dec *msgpack.Decoder) error {
	var ww wireWeave
	if err := dec.Decode(&ww); err != nil {
		return err
	}
	w.atoms, w.clock = ww.Atoms, ww.Clock
	return nil
}
