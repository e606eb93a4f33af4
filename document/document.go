package document

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"collabweave/weave"
)

var (
	// ErrTagOutOfRange is returned by Insert for an index past the end of the
	// sequence.
	ErrTagOutOfRange = errors.New("document: tag out of range")
	// ErrNoSite is returned when a document is bootstrapped without a site.
	ErrNoSite = errors.New("document: site not assigned")
)

// Option configures a Document.
type Option func(*Document)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(d *Document) { d.logger = l }
}

// Document is one site's editable projection of the shared document: the
// local tree, one weave per sequence, the key map and the queue of ops not
// yet sent. It is not safe for concurrent use.
type Document struct {
	local   *LocalDocument
	site    weave.SiteID
	weaves  map[SequenceKey]*weave.Weave
	keys    *Map
	pending []DocumentOp
	target  Target
	design  Design
	logger  *slog.Logger
}

func newDocument(local *LocalDocument, site weave.SiteID, opts []Option) *Document {
	d := &Document{
		local:  local,
		site:   site,
		weaves: map[SequenceKey]*weave.Weave{},
		keys:   NewMap(site),
		target: DefaultTarget(),
		design: DefaultDesign(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Document) Site() weave.SiteID    { return d.site }
func (d *Document) Local() *LocalDocument { return d.local }
func (d *Document) Keys() *Map            { return d.keys }
func (d *Document) Root() SequenceKey     { return d.local.Root }
func (d *Document) Target() Target        { return d.target }
func (d *Document) Design() Design        { return d.design }

// Weave returns the weave backing seq.
func (d *Document) Weave(seq SequenceKey) (*weave.Weave, bool) {
	w, ok := d.weaves[seq]
	return w, ok
}

// Pending returns a copy of the ops queued since the last drain.
func (d *Document) Pending() []DocumentOp { return slices.Clone(d.pending) }

// DrainPending returns the queued ops and empties the queue.
func (d *Document) DrainPending() []DocumentOp {
	ops := d.pending
	d.pending = nil
	return ops
}

// Item returns the item at tag.
func (d *Document) Item(tag Tag) (Item, bool) { return d.local.Get(tag) }

// ParentTag returns the tag of the item holding seq in its parent.
func (d *Document) ParentTag(seq SequenceKey) (Tag, bool) { return d.local.ParentTag(seq) }

// Walk iterates the tree under the root.
func (d *Document) Walk() *Walker { return d.local.Walk(d.local.Root) }

func (d *Document) sequence(seq SequenceKey) (*weave.Weave, weave.ID, error) {
	w, ok := d.weaves[seq]
	if !ok {
		return nil, weave.ID{}, fmt.Errorf("%w: sequence %d", ErrUnknownKey, seq)
	}
	id, err := d.keys.Sequences.Global(seq)
	if err != nil {
		return nil, weave.ID{}, err
	}
	return w, id, nil
}

// apply inserts a freshly created atom, refreshes the local tree and queues
// the op.
func (d *Document) apply(seq SequenceKey, seqID weave.ID, w *weave.Weave, a weave.Atom) error {
	if err := w.Insert(a); err != nil {
		return err
	}
	if err := d.rematerialize(seq); err != nil {
		return err
	}
	d.pending = append(d.pending, SeqOp(seqID, a))
	return nil
}

// Insert adds item at tag and returns the tag now addressing it.
func (d *Document) Insert(tag Tag, item Item) (Tag, error) {
	w, seqID, err := d.sequence(tag.Seq)
	if err != nil {
		return tag, err
	}
	index := tag.Index
	if tag.End {
		index = w.Len()
	}
	prev, ok := w.Find(index)
	if !ok || index < 0 {
		return tag, fmt.Errorf("%w: %s", ErrTagOutOfRange, tag)
	}
	g, err := d.keys.ToGlobal(item)
	if err != nil {
		return tag, err
	}
	if err := d.apply(tag.Seq, seqID, w, w.Create(d.site, prev, weave.Add(g))); err != nil {
		return tag, err
	}
	return At(tag.Seq, index), nil
}

// Replace swaps the item at tag. A tag that does not address a live slot is
// a no-op.
func (d *Document) Replace(tag Tag, item Item) error {
	w, seqID, err := d.sequence(tag.Seq)
	if err != nil {
		return err
	}
	if tag.End {
		return nil
	}
	id, _, ok := w.At(tag.Index)
	if !ok {
		d.logger.Debug("replace on dead slot", "tag", tag.String())
		return nil
	}
	g, err := d.keys.ToGlobal(item)
	if err != nil {
		return err
	}
	return d.apply(tag.Seq, seqID, w, w.Create(d.site, id, weave.Replace(g)))
}

// Remove deletes the item at tag. It returns the tag of the point left
// behind and the removed item; on a dead slot it returns tag unchanged and a
// zero item.
func (d *Document) Remove(tag Tag) (Tag, Item, error) {
	w, seqID, err := d.sequence(tag.Seq)
	if err != nil {
		return tag, Item{}, err
	}
	if tag.End {
		return tag, Item{}, nil
	}
	removed, ok := d.local.Get(tag)
	id, _, live := w.At(tag.Index)
	if !ok || !live {
		d.logger.Debug("remove on dead slot", "tag", tag.String())
		return tag, Item{}, nil
	}
	if err := d.apply(tag.Seq, seqID, w, w.Create(d.site, id, weave.Remove())); err != nil {
		return tag, Item{}, err
	}
	return At(tag.Seq, tag.Index), removed, nil
}

// AddWord interns text. A word this site already knows is reused without
// queuing anything.
func (d *Document) AddWord(text string) Item {
	if k, ok := d.local.FindWord(text); ok {
		return WordItem(k)
	}
	k := d.local.appendWord(Word{Text: text})
	id := d.keys.Words.AddLocal(k)
	d.pending = append(d.pending, CreateWord(id, Word{Text: text}))
	return WordItem(k)
}

// AddSymbol interns s by its text.
func (d *Document) AddSymbol(s Symbol) Item {
	if k, ok := d.local.FindSymbol(s.Text); ok {
		return SymbolItem(k)
	}
	k := d.local.appendSymbol(s)
	id := d.keys.Symbols.AddLocal(k)
	d.pending = append(d.pending, CreateSymbol(id, s))
	return SymbolItem(k)
}

// CreateObject stores o under a fresh id.
func (d *Document) CreateObject(o Object) Item {
	k := d.local.AddObject(o)
	id := d.keys.Objects.AddLocal(k)
	d.pending = append(d.pending, CreateObject(id, o))
	return ObjectItem(k)
}

// CreateType registers a sequence type, reusing one of the same name.
func (d *Document) CreateType(name string, t Type) TypeKey {
	if k, ok := d.local.FindType(name); ok {
		return k
	}
	k := d.local.appendType(name, t)
	id := d.keys.Types.AddLocal(k)
	d.pending = append(d.pending, CreateType(id, name, t))
	return k
}

// AddFont stores f under a fresh id.
func (d *Document) AddFont(f FontFace) FontKey {
	k := d.local.AddFont(f)
	id := d.keys.Fonts.AddLocal(k)
	d.pending = append(d.pending, CreateFont(id, f))
	return k
}

// CreateSequence allocates an empty sequence of type typ. The returned item
// still has to be inserted somewhere to become visible.
func (d *Document) CreateSequence(typ TypeKey) (Item, error) {
	typeID, err := d.keys.Types.Global(typ)
	if err != nil {
		return Item{}, err
	}
	k := d.local.NewSequence(typ)
	d.weaves[k] = weave.New()
	id := d.keys.Sequences.AddLocal(k)
	d.pending = append(d.pending, CreateSequence(id, typeID))
	return SequenceItem(k), nil
}

// ExecOp applies an op from any site. Ids the op refers to must already be
// known and ids it creates must not be; a violation leaves the document
// untouched and is returned as an error.
func (d *Document) ExecOp(op DocumentOp) error {
	if err := op.Validate(); err != nil {
		return err
	}
	if op.Kind != OpSeq && d.hasID(op) {
		return fmt.Errorf("%w: %s", ErrDuplicateID, op)
	}
	switch op.Kind {
	case OpSeq:
		seq, err := d.keys.Sequences.Local(op.Seq)
		if err != nil {
			return err
		}
		if op.Atom.Op.Kind != weave.OpRemove {
			if _, err := d.keys.ToLocal(op.Atom.Op.Item); err != nil {
				return err
			}
		}
		if err := d.weaves[seq].Insert(op.Atom); err != nil {
			return fmt.Errorf("sequence %s: %w", op.Seq, err)
		}
		return d.rematerialize(seq)
	case OpCreateSequence:
		typ, err := d.keys.Types.Local(op.Type)
		if err != nil {
			return err
		}
		k := d.local.NewSequence(typ)
		d.weaves[k] = weave.New()
		d.keys.Sequences.Insert(k, op.Seq)
	case OpCreateWord:
		d.keys.Words.Insert(d.local.appendWord(*op.Word), op.ID)
	case OpCreateSymbol:
		d.keys.Symbols.Insert(d.local.appendSymbol(*op.Symbol), op.ID)
	case OpCreateObject:
		d.keys.Objects.Insert(d.local.AddObject(*op.Object), op.ID)
	case OpCreateType:
		d.keys.Types.Insert(d.local.appendType(op.Name, *op.TypeDef), op.ID)
	case OpCreateFont:
		d.keys.Fonts.Insert(d.local.AddFont(*op.Font), op.ID)
	}
	return nil
}

func (d *Document) hasID(op DocumentOp) bool {
	switch op.Kind {
	case OpCreateSequence:
		return d.keys.Sequences.Has(op.Seq)
	case OpCreateWord:
		return d.keys.Words.Has(op.ID)
	case OpCreateSymbol:
		return d.keys.Symbols.Has(op.ID)
	case OpCreateObject:
		return d.keys.Objects.Has(op.ID)
	case OpCreateType:
		return d.keys.Types.Has(op.ID)
	case OpCreateFont:
		return d.keys.Fonts.Has(op.ID)
	}
	return false
}

// rematerialize replays the weave of seq into the local tree.
func (d *Document) rematerialize(seq SequenceKey) error {
	var items []Item
	it := d.weaves[seq].Items()
	for {
		_, g, ok := it.Next()
		if !ok {
			break
		}
		item, err := d.keys.ToLocal(g)
		if err != nil {
			return fmt.Errorf("sequence %d: %w", seq, err)
		}
		items = append(items, item)
	}
	d.local.setItems(seq, items)
	return nil
}

// Text renders seq, see LocalDocument.Text.
func (d *Document) Text(seq SequenceKey) string {
	return d.local.Text(seq)
}

// Text renders seq as its words and symbols separated by spaces, nested
// sequences inline.
func (d *LocalDocument) Text(seq SequenceKey) string {
	s := d.Sequence(seq)
	if s == nil {
		return ""
	}
	parts := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		switch it.Kind {
		case weave.KindWord:
			parts = append(parts, d.words[it.Key].Text)
		case weave.KindSymbol:
			parts = append(parts, d.symbols[it.Key].Text)
		case weave.KindObject:
			parts = append(parts, "["+d.objects[it.Key].Kind+"]")
		case weave.KindSequence:
			if t := d.Text(SequenceKey(it.Key)); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " ")
}
