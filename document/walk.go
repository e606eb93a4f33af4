package document

import "collabweave/weave"

// Node is one step of a tree walk. Type is set only for sequence items.
type Node struct {
	Tag   Tag
	Item  Item
	Type  TypeKey
	Depth int
}

type walkFrame struct {
	seq   SequenceKey
	index int
	depth int
}

// Walker iterates the tree depth first, visiting a sequence item before the
// items it holds. Create a new one to restart.
type Walker struct {
	doc   *LocalDocument
	stack []walkFrame
}

// Walk returns a walker over the items of seq and everything nested in it.
func (d *LocalDocument) Walk(seq SequenceKey) *Walker {
	w := &Walker{doc: d}
	if d.Sequence(seq) != nil {
		w.stack = append(w.stack, walkFrame{seq: seq})
	}
	return w
}

// Next returns the next node, or false when the walk is done.
func (w *Walker) Next() (Node, bool) {
	for len(w.stack) > 0 {
		top := &w.stack[len(w.stack)-1]
		items := w.doc.sequences[top.seq].Items
		if top.index >= len(items) {
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}
		n := Node{Tag: At(top.seq, top.index), Item: items[top.index], Depth: top.depth}
		top.index++
		if n.Item.Kind == weave.KindSequence {
			child := SequenceKey(n.Item.Key)
			n.Type = w.doc.sequences[child].Type
			w.stack = append(w.stack, walkFrame{seq: child, depth: n.Depth + 1})
		}
		return n, true
	}
	return Node{}, false
}
