package document

import (
	"unicode"
	"unicode/utf8"
)

type textToken struct {
	word   bool
	text   string
	symbol Symbol
}

// splitText breaks text into words (runs of letters and digits) and
// single-rune symbols. Whitespace only separates.
func splitText(text string) []textToken {
	var (
		tokens []textToken
		start  = -1
	)
	flush := func(end int) {
		if start >= 0 {
			tokens = append(tokens, textToken{word: true, text: text[start:end]})
			start = -1
		}
	}
	for i, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			if start < 0 {
				start = i
			}
		case unicode.IsSpace(r):
			flush(i)
		default:
			flush(i)
			tokens = append(tokens, textToken{symbol: newSymbol(r)})
		}
	}
	flush(len(text))
	return tokens
}

func newSymbol(r rune) Symbol {
	return Symbol{
		Text:     string(r),
		Leading:  unicode.In(r, unicode.Ps, unicode.Pi),
		Trailing: unicode.In(r, unicode.Pe, unicode.Pf, unicode.Po),
	}
}

// NewSymbol returns the symbol for the first rune of text.
func NewSymbol(text string) Symbol {
	r, _ := utf8.DecodeRuneInString(text)
	s := newSymbol(r)
	s.Text = text
	return s
}

// AddText interns the words and symbols of text and returns them in order.
func (d *LocalDocument) AddText(text string) []Item {
	var items []Item
	for _, t := range splitText(text) {
		if t.word {
			items = append(items, WordItem(d.AddWord(t.text)))
		} else {
			items = append(items, SymbolItem(d.AddSymbol(t.symbol)))
		}
	}
	return items
}

// AddText interns the words and symbols of text, queuing creation ops for
// new ones, and returns them in order. Nothing is inserted.
func (d *Document) AddText(text string) []Item {
	var items []Item
	for _, t := range splitText(text) {
		if t.word {
			items = append(items, d.AddWord(t.text))
		} else {
			items = append(items, d.AddSymbol(t.symbol))
		}
	}
	return items
}
