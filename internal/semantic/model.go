// Package semantic answers the two questions case extraction asks of the
// compiler front end: what constant does an expression fold to, and which
// local symbol does a designation declare.
package semantic

import (
	"strconv"

	"switchfacts/internal/syntax"
)

// Type is a resolved type, identified by its display name.
type Type struct {
	Name string
}

// UnknownType is used when the front end could not infer a type.
var UnknownType = Type{Name: "<unknown>"}

// LocalSymbol is a local variable introduced by a pattern designation.
type LocalSymbol struct {
	Name string
	Type Type
	Span syntax.Span
}

// ConstantKind classifies a folded constant.
type ConstantKind string

const (
	IntConstant    ConstantKind = "int"
	RealConstant   ConstantKind = "real"
	StringConstant ConstantKind = "string"
	CharConstant   ConstantKind = "char"
	BoolConstant   ConstantKind = "bool"
	NullConstant   ConstantKind = "null"
)

// Constant is the compile-time value of an expression. The zero Constant is
// the "not a constant" marker.
type Constant struct {
	Kind ConstantKind
	Text string
}

// Valid reports whether c holds a value.
func (c Constant) Valid() bool { return c.Kind != "" }

// String renders c canonically, so equal values render equally.
func (c Constant) String() string {
	switch c.Kind {
	case "":
		return "<undefined>"
	case StringConstant:
		return strconv.Quote(c.Text)
	case CharConstant:
		return strconv.QuoteRune([]rune(c.Text + "\x00")[0])
	default:
		return c.Text
	}
}

// Model is the semantic oracle consulted during extraction.
type Model interface {
	// ConstantValue returns the folded value of e, or the zero Constant when
	// e is not a compile-time constant.
	ConstantValue(e syntax.Expr) Constant
	// DeclaredSymbol returns the local introduced by d, if any.
	DeclaredSymbol(d syntax.Designation) (*LocalSymbol, bool)
}
