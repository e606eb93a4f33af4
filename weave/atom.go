package weave

import "fmt"

// ItemKind tags what a GlobalItem refers to.
type ItemKind uint8

const (
	KindNone ItemKind = iota
	KindWord
	KindSymbol
	KindSequence
	KindObject
)

func (k ItemKind) String() string {
	switch k {
	case KindWord:
		return "word"
	case KindSymbol:
		return "symbol"
	case KindSequence:
		return "sequence"
	case KindObject:
		return "object"
	}
	return "none"
}

// Item is a tagged reference to network-wide content. Content itself lives
// in separate tables keyed by Ref.
type Item struct {
	Kind ItemKind `json:"kind"`
	Ref  ID       `json:"ref"`
}

func Word(id ID) Item     { return Item{Kind: KindWord, Ref: id} }
func Symbol(id ID) Item   { return Item{Kind: KindSymbol, Ref: id} }
func Sequence(id ID) Item { return Item{Kind: KindSequence, Ref: id} }
func Object(id ID) Item   { return Item{Kind: KindObject, Ref: id} }

func (it Item) String() string {
	return fmt.Sprintf("%s(%s)", it.Kind, it.Ref)
}

// OpKind is the kind of an atom. The numeric order is part of the merge
// rule: a Remove or Replace of a slot sorts ahead of sibling Adds so that it
// lands next to the slot it targets.
type OpKind uint8

const (
	OpRemove OpKind = iota + 1
	OpReplace
	OpAdd
)

func (k OpKind) String() string {
	switch k {
	case OpRemove:
		return "Remove"
	case OpReplace:
		return "Replace"
	case OpAdd:
		return "Add"
	}
	return fmt.Sprintf("OpKind(%d)", uint8(k))
}

// AtomOp is the operation carried by an atom. Item is unset for Remove.
type AtomOp struct {
	Kind OpKind `json:"kind"`
	Item Item   `json:"item"`
}

func Add(item Item) AtomOp     { return AtomOp{Kind: OpAdd, Item: item} }
func Replace(item Item) AtomOp { return AtomOp{Kind: OpReplace, Item: item} }
func Remove() AtomOp           { return AtomOp{Kind: OpRemove} }

// Atom is an immutable entry in a sequence's edit log. Prev names the atom
// this one is attached to; null means the head of the sequence.
type Atom struct {
	Prev ID     `json:"prev"`
	Op   AtomOp `json:"op"`
	ID   ID     `json:"id"`
}

// Compare is the total order used to place siblings: by prev, then by op
// kind, then newer atoms first. Newer-first keeps a local insert directly
// after the atom it cites. Every replica must apply the same order.
func (a Atom) Compare(other Atom) int {
	if c := a.Prev.Compare(other.Prev); c != 0 {
		return c
	}
	if a.Op.Kind != other.Op.Kind {
		if a.Op.Kind < other.Op.Kind {
			return -1
		}
		return +1
	}
	return other.ID.Compare(a.ID)
}

func (a Atom) String() string {
	if a.Op.Kind == OpRemove {
		return fmt.Sprintf("%s Remove %s", a.ID, a.Prev)
	}
	return fmt.Sprintf("%s %s(%s) %s", a.ID, a.Op.Kind, a.Op.Item, a.Prev)
}
