package document

import (
	"fmt"

	"collabweave/weave"
)

// ToGlobal exports the weaves and content tables as a snapshot. The weaves
// are copied.
func (d *Document) ToGlobal() (*GlobalDocument, error) {
	g := NewGlobalDocument()
	g.Target, g.Design = d.target, d.design
	l := d.local
	for i := range l.NumWords() {
		id, err := d.keys.Words.Global(WordKey(i))
		if err != nil {
			return nil, err
		}
		g.Words[id] = l.Word(WordKey(i))
	}
	for i := range l.NumSymbols() {
		id, err := d.keys.Symbols.Global(SymbolKey(i))
		if err != nil {
			return nil, err
		}
		g.Symbols[id] = l.Symbol(SymbolKey(i))
	}
	for i := range l.NumObjects() {
		id, err := d.keys.Objects.Global(ObjectKey(i))
		if err != nil {
			return nil, err
		}
		g.Objects[id] = l.Object(ObjectKey(i))
	}
	for i := range l.NumTypes() {
		id, err := d.keys.Types.Global(TypeKey(i))
		if err != nil {
			return nil, err
		}
		g.Types[id] = l.Type(TypeKey(i))
		if _, ok := g.TypeNames[l.TypeName(TypeKey(i))]; !ok {
			g.TypeNames[l.TypeName(TypeKey(i))] = id
		}
	}
	for i := range l.NumFonts() {
		id, err := d.keys.Fonts.Global(FontKey(i))
		if err != nil {
			return nil, err
		}
		g.Fonts[id] = l.Font(FontKey(i))
	}
	for i := range l.NumSequences() {
		k := SequenceKey(i)
		id, err := d.keys.Sequences.Global(k)
		if err != nil {
			return nil, err
		}
		typ, err := d.keys.Types.Global(l.Sequence(k).Type)
		if err != nil {
			return nil, err
		}
		g.Sequences[id] = &GlobalSequence{Type: typ, Weave: d.weaves[k].Clone()}
	}
	if l.Root >= 0 {
		root, err := d.keys.Sequences.Global(l.Root)
		if err != nil {
			return nil, err
		}
		g.Root = root
	}
	return g, nil
}

// FromGlobal builds a fresh document for site from a snapshot. Content is
// registered in id order so two replicas loading the same snapshot allocate
// the same local keys. g is not retained.
func FromGlobal(g *GlobalDocument, site weave.SiteID, opts ...Option) (*Document, error) {
	g.init()
	d := newDocument(NewLocalDocument(), site, opts)
	d.target, d.design = g.Target, g.Design
	l := d.local

	names := make(map[weave.ID]string, len(g.TypeNames))
	for name, id := range g.TypeNames {
		names[id] = name
	}
	for _, id := range sortedIDs(g.Types) {
		name, ok := names[id]
		if !ok {
			name = id.String()
		}
		d.keys.Types.Insert(l.appendType(name, g.Types[id]), id)
	}
	for _, id := range sortedIDs(g.Words) {
		d.keys.Words.Insert(l.appendWord(g.Words[id]), id)
	}
	for _, id := range sortedIDs(g.Symbols) {
		d.keys.Symbols.Insert(l.appendSymbol(g.Symbols[id]), id)
	}
	for _, id := range sortedIDs(g.Objects) {
		d.keys.Objects.Insert(l.AddObject(g.Objects[id]), id)
	}
	for _, id := range sortedIDs(g.Fonts) {
		d.keys.Fonts.Insert(l.AddFont(g.Fonts[id]), id)
	}

	seqs := sortedIDs(g.Sequences)
	for _, id := range seqs {
		s := g.Sequences[id]
		typ, err := d.keys.Types.Local(s.Type)
		if err != nil {
			return nil, fmt.Errorf("sequence %s: %w", id, err)
		}
		k := l.NewSequence(typ)
		d.weaves[k] = s.Weave.Clone()
		d.keys.Sequences.Insert(k, id)
	}
	// Items may reference any sequence, so replay only once all are known.
	for _, id := range seqs {
		k, _ := d.keys.Sequences.Local(id)
		if err := d.rematerialize(k); err != nil {
			return nil, err
		}
	}
	if !g.Root.IsNull() {
		root, err := d.keys.Sequences.Local(g.Root)
		if err != nil {
			return nil, fmt.Errorf("root: %w", err)
		}
		l.Root = root
	}
	return d, nil
}

// FromLocal adopts a single-author tree as if site had typed it: every piece
// of content gets a fresh id and every sequence a straight-line weave. No ops
// are queued; the result is meant to be exported with ToGlobal.
func FromLocal(local *LocalDocument, site weave.SiteID, target Target, design Design, opts ...Option) (*Document, error) {
	if site == 0 {
		return nil, ErrNoSite
	}
	d := newDocument(local, site, opts)
	d.target, d.design = target, design
	for i := range local.NumWords() {
		d.keys.Words.AddLocal(WordKey(i))
	}
	for i := range local.NumSymbols() {
		d.keys.Symbols.AddLocal(SymbolKey(i))
	}
	for i := range local.NumObjects() {
		d.keys.Objects.AddLocal(ObjectKey(i))
	}
	for i := range local.NumTypes() {
		d.keys.Types.AddLocal(TypeKey(i))
	}
	for i := range local.NumFonts() {
		d.keys.Fonts.AddLocal(FontKey(i))
	}
	for i := range local.NumSequences() {
		d.keys.Sequences.AddLocal(SequenceKey(i))
	}
	for i := range local.NumSequences() {
		k := SequenceKey(i)
		items := local.Sequence(k).Items
		gitems := make([]weave.Item, 0, len(items))
		for _, it := range items {
			g, err := d.keys.ToGlobal(it)
			if err != nil {
				return nil, fmt.Errorf("sequence %d: %w", k, err)
			}
			gitems = append(gitems, g)
		}
		d.weaves[k] = weave.FromItems(site, gitems)
	}
	return d, nil
}
