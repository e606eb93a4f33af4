package document

import "collabweave/weave"

// Cursor positions are tags: At(seq, i) sits before item i and End(seq)
// after the last item. Navigation always returns End for the position past
// the last item, never At(seq, len).

func (d *LocalDocument) cursor(seq SequenceKey, i int) Tag {
	if i >= len(d.sequences[seq].Items) {
		return End(seq)
	}
	return At(seq, i)
}

// position resolves tag to an index in 0..len, or false if tag does not
// address a cursor position.
func (d *LocalDocument) position(tag Tag) (*Sequence, int, bool) {
	s := d.Sequence(tag.Seq)
	if s == nil || (!tag.End && tag.Index < 0) {
		return nil, 0, false
	}
	if tag.End || tag.Index > len(s.Items) {
		return s, len(s.Items), true
	}
	return s, tag.Index, true
}

// NextTagBounded moves the cursor one step forward inside tag's sequence. A
// nested sequence is entered at its start. It fails at the end of the
// sequence.
func (d *LocalDocument) NextTagBounded(tag Tag) (Tag, bool) {
	s, i, ok := d.position(tag)
	if !ok || i >= len(s.Items) {
		return Tag{}, false
	}
	if it := s.Items[i]; it.Kind == weave.KindSequence {
		return d.cursor(SequenceKey(it.Key), 0), true
	}
	return d.cursor(tag.Seq, i+1), true
}

// PrevTagBounded moves the cursor one step back inside tag's sequence. A
// nested sequence is entered at its end. It fails at the start of the
// sequence.
func (d *LocalDocument) PrevTagBounded(tag Tag) (Tag, bool) {
	s, i, ok := d.position(tag)
	if !ok || i == 0 {
		return Tag{}, false
	}
	if it := s.Items[i-1]; it.Kind == weave.KindSequence {
		return End(SequenceKey(it.Key)), true
	}
	return At(tag.Seq, i-1), true
}

// NextTag moves the cursor forward, leaving a nested sequence at its end to
// the position after it in the parent. It fails at the end of the root.
func (d *LocalDocument) NextTag(tag Tag) (Tag, bool) {
	if next, ok := d.NextTagBounded(tag); ok {
		return next, true
	}
	if _, _, ok := d.position(tag); !ok {
		return Tag{}, false
	}
	parent, ok := d.ParentTag(tag.Seq)
	if !ok {
		return Tag{}, false
	}
	return d.cursor(parent.Seq, parent.Index+1), true
}

// PrevTag moves the cursor back, leaving a nested sequence at its start to
// the position before it in the parent. It fails at the start of the root.
func (d *LocalDocument) PrevTag(tag Tag) (Tag, bool) {
	if prev, ok := d.PrevTagBounded(tag); ok {
		return prev, true
	}
	if _, _, ok := d.position(tag); !ok {
		return Tag{}, false
	}
	return d.ParentTag(tag.Seq)
}

func (d *Document) NextTag(tag Tag) (Tag, bool)        { return d.local.NextTag(tag) }
func (d *Document) PrevTag(tag Tag) (Tag, bool)        { return d.local.PrevTag(tag) }
func (d *Document) NextTagBounded(tag Tag) (Tag, bool) { return d.local.NextTagBounded(tag) }
func (d *Document) PrevTagBounded(tag Tag) (Tag, bool) { return d.local.PrevTagBounded(tag) }
