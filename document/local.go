package document

import (
	"fmt"

	"collabweave/weave"
)

// Local keys index this replica's content tables. They are allocated once per
// session and mean nothing outside it.
type (
	WordKey     int
	SymbolKey   int
	ObjectKey   int
	SequenceKey int
	TypeKey     int
	FontKey     int
)

// Item is a node of the local tree: a kind plus a local key.
type Item struct {
	Kind weave.ItemKind
	Key  int
}

func WordItem(k WordKey) Item         { return Item{Kind: weave.KindWord, Key: int(k)} }
func SymbolItem(k SymbolKey) Item     { return Item{Kind: weave.KindSymbol, Key: int(k)} }
func SequenceItem(k SequenceKey) Item { return Item{Kind: weave.KindSequence, Key: int(k)} }
func ObjectItem(k ObjectKey) Item     { return Item{Kind: weave.KindObject, Key: int(k)} }

// IsZero reports whether it is the empty item returned by no-op edits.
func (it Item) IsZero() bool { return it.Kind == weave.KindNone }

func (it Item) String() string { return fmt.Sprintf("%s#%d", it.Kind, it.Key) }

// Tag addresses a point in the local tree: index i of sequence Seq, or the
// end of Seq.
type Tag struct {
	Seq   SequenceKey
	Index int
	End   bool
}

// At returns the tag for index i of seq.
func At(seq SequenceKey, i int) Tag { return Tag{Seq: seq, Index: i} }

// End returns the tag for the end of seq.
func End(seq SequenceKey) Tag { return Tag{Seq: seq, End: true} }

func (t Tag) String() string {
	if t.End {
		return fmt.Sprintf("%d:end", t.Seq)
	}
	return fmt.Sprintf("%d:%d", t.Seq, t.Index)
}

// Sequence is one nesting level of the materialized tree.
type Sequence struct {
	Type  TypeKey
	Items []Item
}

// LocalDocument is the plain materialized tree plus its content store.
// Parent links live in a side table keyed by child sequence.
type LocalDocument struct {
	Root SequenceKey

	words     []Word
	symbols   []Symbol
	objects   []Object
	types     []Type
	typeNames []string
	fonts     []FontFace
	sequences []*Sequence
	parents   map[SequenceKey]SequenceKey

	wordIndex   map[string]WordKey
	symbolIndex map[string]SymbolKey
	typeIndex   map[string]TypeKey
}

// NewLocalDocument returns an empty tree without a root.
func NewLocalDocument() *LocalDocument {
	return &LocalDocument{
		Root:        -1,
		parents:     map[SequenceKey]SequenceKey{},
		wordIndex:   map[string]WordKey{},
		symbolIndex: map[string]SymbolKey{},
		typeIndex:   map[string]TypeKey{},
	}
}

// FindWord returns the key interned for text.
func (d *LocalDocument) FindWord(text string) (WordKey, bool) {
	k, ok := d.wordIndex[text]
	return k, ok
}

// AddWord interns text, returning the existing key when there is one.
func (d *LocalDocument) AddWord(text string) WordKey {
	if k, ok := d.wordIndex[text]; ok {
		return k
	}
	return d.appendWord(Word{Text: text})
}

// appendWord stores w under a new key. Text is interned on first sight only;
// two sites may create equal words concurrently and each keeps its own key.
func (d *LocalDocument) appendWord(w Word) WordKey {
	k := WordKey(len(d.words))
	d.words = append(d.words, w)
	if _, ok := d.wordIndex[w.Text]; !ok {
		d.wordIndex[w.Text] = k
	}
	return k
}

// FindSymbol returns the key interned for text.
func (d *LocalDocument) FindSymbol(text string) (SymbolKey, bool) {
	k, ok := d.symbolIndex[text]
	return k, ok
}

// AddSymbol interns s by its text.
func (d *LocalDocument) AddSymbol(s Symbol) SymbolKey {
	if k, ok := d.symbolIndex[s.Text]; ok {
		return k
	}
	return d.appendSymbol(s)
}

func (d *LocalDocument) appendSymbol(s Symbol) SymbolKey {
	k := SymbolKey(len(d.symbols))
	d.symbols = append(d.symbols, s)
	if _, ok := d.symbolIndex[s.Text]; !ok {
		d.symbolIndex[s.Text] = k
	}
	return k
}

// AddObject stores o.
func (d *LocalDocument) AddObject(o Object) ObjectKey {
	d.objects = append(d.objects, o)
	return ObjectKey(len(d.objects) - 1)
}

// AddFont stores f.
func (d *LocalDocument) AddFont(f FontFace) FontKey {
	d.fonts = append(d.fonts, f)
	return FontKey(len(d.fonts) - 1)
}

// FindType returns the key registered under name.
func (d *LocalDocument) FindType(name string) (TypeKey, bool) {
	k, ok := d.typeIndex[name]
	return k, ok
}

// AddType registers t under name, returning the existing key if the name is
// already taken.
func (d *LocalDocument) AddType(name string, t Type) TypeKey {
	if k, ok := d.typeIndex[name]; ok {
		return k
	}
	return d.appendType(name, t)
}

func (d *LocalDocument) appendType(name string, t Type) TypeKey {
	k := TypeKey(len(d.types))
	d.types = append(d.types, t)
	d.typeNames = append(d.typeNames, name)
	if _, ok := d.typeIndex[name]; !ok {
		d.typeIndex[name] = k
	}
	return k
}

// NewSequence stores a sequence of type typ holding items and links any
// nested sequences to it.
func (d *LocalDocument) NewSequence(typ TypeKey, items ...Item) SequenceKey {
	k := SequenceKey(len(d.sequences))
	d.sequences = append(d.sequences, &Sequence{Type: typ})
	d.setItems(k, items)
	return k
}

// setItems replaces the items of seq, unlinking the nested sequences it used
// to hold and linking the ones it holds now.
func (d *LocalDocument) setItems(seq SequenceKey, items []Item) {
	s := d.sequences[seq]
	for _, it := range s.Items {
		if it.Kind != weave.KindSequence {
			continue
		}
		if p, ok := d.parents[SequenceKey(it.Key)]; ok && p == seq {
			delete(d.parents, SequenceKey(it.Key))
		}
	}
	s.Items = items
	for _, it := range items {
		if it.Kind == weave.KindSequence {
			d.parents[SequenceKey(it.Key)] = seq
		}
	}
}

func (d *LocalDocument) Word(k WordKey) Word       { return d.words[k] }
func (d *LocalDocument) Symbol(k SymbolKey) Symbol { return d.symbols[k] }
func (d *LocalDocument) Object(k ObjectKey) Object { return d.objects[k] }
func (d *LocalDocument) Font(k FontKey) FontFace   { return d.fonts[k] }
func (d *LocalDocument) Type(k TypeKey) Type       { return d.types[k] }
func (d *LocalDocument) TypeName(k TypeKey) string { return d.typeNames[k] }
func (d *LocalDocument) NumWords() int             { return len(d.words) }
func (d *LocalDocument) NumSymbols() int           { return len(d.symbols) }
func (d *LocalDocument) NumObjects() int           { return len(d.objects) }
func (d *LocalDocument) NumTypes() int             { return len(d.types) }
func (d *LocalDocument) NumFonts() int             { return len(d.fonts) }
func (d *LocalDocument) NumSequences() int         { return len(d.sequences) }
func (d *LocalDocument) Sequence(k SequenceKey) *Sequence {
	if k < 0 || int(k) >= len(d.sequences) {
		return nil
	}
	return d.sequences[k]
}

// Parent returns the sequence that holds seq.
func (d *LocalDocument) Parent(seq SequenceKey) (SequenceKey, bool) {
	p, ok := d.parents[seq]
	return p, ok
}

// Get returns the item tag addresses, if it addresses a live slot.
func (d *LocalDocument) Get(tag Tag) (Item, bool) {
	s := d.Sequence(tag.Seq)
	if s == nil || tag.End || tag.Index < 0 || tag.Index >= len(s.Items) {
		return Item{}, false
	}
	return s.Items[tag.Index], true
}

// ParentTag returns the tag of the item in the parent sequence that holds seq.
func (d *LocalDocument) ParentTag(seq SequenceKey) (Tag, bool) {
	p, ok := d.parents[seq]
	if !ok {
		return Tag{}, false
	}
	for i, it := range d.sequences[p].Items {
		if it.Kind == weave.KindSequence && SequenceKey(it.Key) == seq {
			return At(p, i), true
		}
	}
	return Tag{}, false
}
