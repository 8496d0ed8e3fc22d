package semantic

import "switchfacts/internal/syntax"

// Table is a Model backed by explicit lookups keyed by source span. Entries
// are recorded by a front end before extraction starts; a populated Table is
// safe for concurrent reads.
type Table struct {
	constants map[syntax.Span]Constant
	symbols   map[syntax.Span]*LocalSymbol
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		constants: make(map[syntax.Span]Constant),
		symbols:   make(map[syntax.Span]*LocalSymbol),
	}
}

// SetConstant records the value of the expression at span. It overrides
// folding for that expression, which is how named constants get values.
func (t *Table) SetConstant(span syntax.Span, c Constant) {
	t.constants[span] = c
}

// Declare records the symbol declared by the designation at span.
func (t *Table) Declare(span syntax.Span, sym *LocalSymbol) {
	t.symbols[span] = sym
}

// Symbols returns the number of declared symbols.
func (t *Table) Symbols() int { return len(t.symbols) }

// ConstantValue implements Model.
func (t *Table) ConstantValue(e syntax.Expr) Constant {
	return Fold(e, t.lookup)
}

func (t *Table) lookup(e syntax.Expr) (Constant, bool) {
	c, ok := t.constants[e.Span()]
	return c, ok
}

// DeclaredSymbol implements Model. Discards and tuple designations never
// resolve.
func (t *Table) DeclaredSymbol(d syntax.Designation) (*LocalSymbol, bool) {
	v, ok := d.(*syntax.SingleVariable)
	if !ok || v == nil {
		return nil, false
	}
	sym, ok := t.symbols[v.Loc]
	return sym, ok
}
