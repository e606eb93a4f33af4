package document

// Names of the built-in sequence types.
const (
	TypeDocument  = "document"
	TypeChapter   = "chapter"
	TypeParagraph = "paragraph"
)

type buildNode struct {
	text     string
	children []*buildNode
}

// Builder assembles a single-author tree: a document holding chapters and
// paragraphs. Paragraphs added before the first Chapter call sit directly in
// the document.
//
//	local := document.NewBuilder().
//		Paragraph("Preface.").
//		Chapter().Paragraph("Hello").Paragraph("World").
//		Build()
type Builder struct {
	top     []*buildNode // nil children marks a paragraph
	chapter *buildNode
}

func NewBuilder() *Builder { return &Builder{} }

// Chapter opens a new chapter; later paragraphs go into it.
func (b *Builder) Chapter() *Builder {
	b.chapter = &buildNode{children: []*buildNode{}}
	b.top = append(b.top, b.chapter)
	return b
}

// Paragraph appends a paragraph holding the words and symbols of text.
func (b *Builder) Paragraph(text string) *Builder {
	p := &buildNode{text: text}
	if b.chapter != nil {
		b.chapter.children = append(b.chapter.children, p)
	} else {
		b.top = append(b.top, p)
	}
	return b
}

// Build creates the tree. The root is the document sequence.
func (b *Builder) Build() *LocalDocument {
	d := NewLocalDocument()
	docType := d.AddType(TypeDocument, Type{Description: "document root"})
	chapterType := d.AddType(TypeChapter, Type{Description: "chapter"})
	paraType := d.AddType(TypeParagraph, Type{Description: "paragraph"})

	paragraph := func(n *buildNode) Item {
		return SequenceItem(d.NewSequence(paraType, d.AddText(n.text)...))
	}
	var top []Item
	for _, n := range b.top {
		if n.children == nil {
			top = append(top, paragraph(n))
			continue
		}
		var paras []Item
		for _, p := range n.children {
			paras = append(paras, paragraph(p))
		}
		top = append(top, SequenceItem(d.NewSequence(chapterType, paras...)))
	}
	d.Root = d.NewSequence(docType, top...)
	return d
}
