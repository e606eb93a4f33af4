package document

import (
	"fmt"
	"slices"

	"collabweave/weave"
)

// GlobalSequence is one sequence of the global document: its type label and
// its weave.
type GlobalSequence struct {
	Type  weave.ID
	Weave *weave.Weave
}

// GlobalDocument is the network-wide aggregate: every weave plus the
// immutable content tables, all keyed by global ids. The server holds one
// and mutates it in place as ops arrive; it is also the snapshot unit.
type GlobalDocument struct {
	Root      weave.ID
	Sequences map[weave.ID]*GlobalSequence
	Words     map[weave.ID]Word
	Symbols   map[weave.ID]Symbol
	Objects   map[weave.ID]Object
	Types     map[weave.ID]Type
	TypeNames map[string]weave.ID
	Fonts     map[weave.ID]FontFace
	Target    Target
	Design    Design
}

// NewGlobalDocument returns an empty aggregate.
func NewGlobalDocument() *GlobalDocument {
	g := &GlobalDocument{}
	g.init()
	return g
}

// init allocates any nil table. Decoding leaves empty tables nil.
func (g *GlobalDocument) init() {
	if g.Sequences == nil {
		g.Sequences = map[weave.ID]*GlobalSequence{}
	}
	if g.Words == nil {
		g.Words = map[weave.ID]Word{}
	}
	if g.Symbols == nil {
		g.Symbols = map[weave.ID]Symbol{}
	}
	if g.Objects == nil {
		g.Objects = map[weave.ID]Object{}
	}
	if g.Types == nil {
		g.Types = map[weave.ID]Type{}
	}
	if g.TypeNames == nil {
		g.TypeNames = map[string]weave.ID{}
	}
	if g.Fonts == nil {
		g.Fonts = map[weave.ID]FontFace{}
	}
	for _, s := range g.Sequences {
		if s.Weave == nil {
			s.Weave = weave.New()
		}
	}
}

// Apply mutates g with op. An op that refers to an unknown id, or creates
// an id that already exists, fails without changing anything.
func (g *GlobalDocument) Apply(op DocumentOp) error {
	if err := op.Validate(); err != nil {
		return err
	}
	if op.Kind != OpSeq && g.hasID(op) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, op)
	}
	switch op.Kind {
	case OpSeq:
		s, ok := g.Sequences[op.Seq]
		if !ok {
			return fmt.Errorf("%w: sequence %s", ErrUnknownID, op.Seq)
		}
		if op.Atom.Op.Kind != weave.OpRemove && !g.hasItem(op.Atom.Op.Item) {
			return fmt.Errorf("%w: %s", ErrUnknownID, op.Atom.Op.Item)
		}
		if err := s.Weave.Insert(op.Atom); err != nil {
			return fmt.Errorf("sequence %s: %w", op.Seq, err)
		}
	case OpCreateSequence:
		if _, ok := g.Types[op.Type]; !ok {
			return fmt.Errorf("%w: type %s", ErrUnknownID, op.Type)
		}
		g.Sequences[op.Seq] = &GlobalSequence{Type: op.Type, Weave: weave.New()}
	case OpCreateWord:
		g.Words[op.ID] = *op.Word
	case OpCreateSymbol:
		g.Symbols[op.ID] = *op.Symbol
	case OpCreateObject:
		g.Objects[op.ID] = *op.Object
	case OpCreateType:
		g.Types[op.ID] = *op.TypeDef
		if _, ok := g.TypeNames[op.Name]; !ok {
			g.TypeNames[op.Name] = op.ID
		}
	case OpCreateFont:
		g.Fonts[op.ID] = *op.Font
	}
	return nil
}

// hasID reports whether the id a create op introduces is already taken.
func (g *GlobalDocument) hasID(op DocumentOp) bool {
	var ok bool
	switch op.Kind {
	case OpCreateSequence:
		_, ok = g.Sequences[op.Seq]
	case OpCreateWord:
		_, ok = g.Words[op.ID]
	case OpCreateSymbol:
		_, ok = g.Symbols[op.ID]
	case OpCreateObject:
		_, ok = g.Objects[op.ID]
	case OpCreateType:
		_, ok = g.Types[op.ID]
	case OpCreateFont:
		_, ok = g.Fonts[op.ID]
	}
	return ok
}

func (g *GlobalDocument) hasItem(item weave.Item) bool {
	var ok bool
	switch item.Kind {
	case weave.KindWord:
		_, ok = g.Words[item.Ref]
	case weave.KindSymbol:
		_, ok = g.Symbols[item.Ref]
	case weave.KindSequence:
		_, ok = g.Sequences[item.Ref]
	case weave.KindObject:
		_, ok = g.Objects[item.Ref]
	}
	return ok
}

// MaxSite is the largest site that authored any id in g.
func (g *GlobalDocument) MaxSite() weave.SiteID {
	var m weave.SiteID
	see := func(id weave.ID) { m = max(m, id.Site) }
	see(g.Root)
	for id, s := range g.Sequences {
		see(id)
		for _, a := range s.Weave.Atoms() {
			see(a.ID)
		}
	}
	for id := range g.Words {
		see(id)
	}
	for id := range g.Symbols {
		see(id)
	}
	for id := range g.Objects {
		see(id)
	}
	for id := range g.Types {
		see(id)
	}
	for id := range g.Fonts {
		see(id)
	}
	return m
}

// sortedIDs returns the keys of m in id order so that rebuilding a document
// from a snapshot is deterministic.
func sortedIDs[V any](m map[weave.ID]V) []weave.ID {
	ids := make([]weave.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, weave.ID.Compare)
	return ids
}
