package document

// Word is the text of one word. Words are interned: equal text shares an id
// within a site.
type Word struct {
	Text string
}

// Symbol is a single punctuation or other non-word rune, with the hints the
// line breaker uses.
type Symbol struct {
	Text          string
	Leading       bool // opens a group, binds to the following item
	Trailing      bool // closes a group, binds to the preceding item
	OverflowLeft  float32
	OverflowRight float32
}

// Object is embedded non-text content such as an SVG drawing or a TeX formula.
type Object struct {
	Kind string // "svg" or "tex"
	Data []byte
}

// Type is a sequence label: paragraph, chapter, heading and so on.
type Type struct {
	Description string
}

// FontFace is raw font data.
type FontFace struct {
	Name string
	Data []byte
}

// Display says how a sequence of a given type is laid out.
type Display uint8

const (
	DisplayBlock Display = iota
	DisplayInline
	DisplayParagraph
)

// TypeDesign is the style applied to sequences of one type.
type TypeDesign struct {
	Display    Display
	Font       string // FontFace name
	FontSize   float32
	WordSpace  float32
	LineHeight float32
	Indent     float32
}

// Design maps type names to styles.
type Design struct {
	Name    string
	Default TypeDesign
	Types   map[string]TypeDesign
}

// TypeDesign returns the style for the named type, or the default.
func (d Design) TypeDesign(name string) TypeDesign {
	if td, ok := d.Types[name]; ok {
		return td
	}
	return d.Default
}

// Rect is an axis-aligned box in millimetres.
type Rect struct {
	X, Y, Width, Height float32
}

// Target describes a physical print target.
type Target struct {
	Description string
	ContentBox  Rect // area where important content can be placed
	MediaBox    Rect // entire media
	TrimBox     Rect // printed media gets trimmed to this
	PageColor   string
}

// DefaultTarget is an A4 page with 20mm margins.
func DefaultTarget() Target {
	return Target{
		Description: "A4",
		ContentBox:  Rect{X: 20, Y: 20, Width: 170, Height: 257},
		MediaBox:    Rect{Width: 210, Height: 297},
		TrimBox:     Rect{Width: 210, Height: 297},
		PageColor:   "#ffffff",
	}
}

// DefaultDesign is a plain single-font design.
func DefaultDesign() Design {
	return Design{
		Name: "default design",
		Default: TypeDesign{
			Display:    DisplayParagraph,
			FontSize:   5,
			WordSpace:  3,
			LineHeight: 6,
		},
		Types: map[string]TypeDesign{
			TypeChapter:  {Display: DisplayBlock, FontSize: 5, WordSpace: 3, LineHeight: 6},
			TypeDocument: {Display: DisplayBlock, FontSize: 5, WordSpace: 3, LineHeight: 6},
		},
	}
}
