package document

import (
	"fmt"

	"collabweave/weave"
)

// OpKind tags a DocumentOp.
type OpKind uint8

const (
	OpSeq OpKind = iota + 1
	OpCreateSequence
	OpCreateWord
	OpCreateSymbol
	OpCreateObject
	OpCreateType
	OpCreateFont
)

// DocumentOp is one replicated change. Which fields are set depends on Kind:
//
//	OpSeq             Seq, Atom
//	OpCreateSequence  Seq, Type
//	OpCreateWord      ID, Word
//	OpCreateSymbol    ID, Symbol
//	OpCreateObject    ID, Object
//	OpCreateType      ID, Name, TypeDef
//	OpCreateFont      ID, Font
type DocumentOp struct {
	Kind    OpKind
	Seq     weave.ID
	Atom    weave.Atom
	Type    weave.ID
	ID      weave.ID
	Name    string
	Word    *Word
	Symbol  *Symbol
	Object  *Object
	TypeDef *Type
	Font    *FontFace
}

func SeqOp(seq weave.ID, atom weave.Atom) DocumentOp {
	return DocumentOp{Kind: OpSeq, Seq: seq, Atom: atom}
}

func CreateSequence(seq, typ weave.ID) DocumentOp {
	return DocumentOp{Kind: OpCreateSequence, Seq: seq, Type: typ}
}

func CreateWord(id weave.ID, w Word) DocumentOp {
	return DocumentOp{Kind: OpCreateWord, ID: id, Word: &w}
}

func CreateSymbol(id weave.ID, s Symbol) DocumentOp {
	return DocumentOp{Kind: OpCreateSymbol, ID: id, Symbol: &s}
}

func CreateObject(id weave.ID, o Object) DocumentOp {
	return DocumentOp{Kind: OpCreateObject, ID: id, Object: &o}
}

func CreateType(id weave.ID, name string, t Type) DocumentOp {
	return DocumentOp{Kind: OpCreateType, ID: id, Name: name, TypeDef: &t}
}

func CreateFont(id weave.ID, f FontFace) DocumentOp {
	return DocumentOp{Kind: OpCreateFont, ID: id, Font: &f}
}

// Validate checks that the payload required by Kind is present.
func (op DocumentOp) Validate() error {
	missing := false
	switch op.Kind {
	case OpSeq, OpCreateSequence:
	case OpCreateWord:
		missing = op.Word == nil
	case OpCreateSymbol:
		missing = op.Symbol == nil
	case OpCreateObject:
		missing = op.Object == nil
	case OpCreateType:
		missing = op.TypeDef == nil
	case OpCreateFont:
		missing = op.Font == nil
	default:
		return fmt.Errorf("document: unknown op kind %d", op.Kind)
	}
	if missing {
		return fmt.Errorf("document: %s without payload", op)
	}
	return nil
}

func (op DocumentOp) String() string {
	switch op.Kind {
	case OpSeq:
		return fmt.Sprintf("SeqOp(%s, %s)", op.Seq, op.Atom)
	case OpCreateSequence:
		return fmt.Sprintf("CreateSequence(%s, %s)", op.Seq, op.Type)
	case OpCreateWord:
		return fmt.Sprintf("CreateWord(%s)", op.ID)
	case OpCreateSymbol:
		return fmt.Sprintf("CreateSymbol(%s)", op.ID)
	case OpCreateObject:
		return fmt.Sprintf("CreateObject(%s)", op.ID)
	case OpCreateType:
		return fmt.Sprintf("CreateType(%s, %q)", op.ID, op.Name)
	case OpCreateFont:
		return fmt.Sprintf("CreateFont(%s)", op.ID)
	}
	return fmt.Sprintf("DocumentOp(%d)", op.Kind)
}
