// Package syntax holds the frontend-neutral syntax tree of C# switch
// statements: switches, their sections, the case labels inside each section
// and the patterns, designations and expressions those labels carry.
//
// Every closed family (Label, Pattern, TypeSyntax, Designation, Expr) is a
// sealed interface: only types in this package implement it, so consumers can
// type-switch over the full set of variants.
package syntax

import "fmt"

// Span is a source range. Lines and columns are 1-based; End is exclusive.
type Span struct {
	File      string `yaml:"file,omitempty"`
	StartLine int    `yaml:"start_line"`
	StartCol  int    `yaml:"start_col"`
	EndLine   int    `yaml:"end_line"`
	EndCol    int    `yaml:"end_col"`
}

// IsZero reports whether the span carries no position.
func (s Span) IsZero() bool {
	return s.StartLine == 0 && s.StartCol == 0 && s.EndLine == 0 && s.EndCol == 0
}

// WithFile returns a copy of s anchored to file when s has no file yet.
func (s Span) WithFile(file string) Span {
	if s.File == "" {
		s.File = file
	}
	return s
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d-%d:%d", s.File, s.StartLine, s.StartCol, s.EndLine, s.EndCol)
}

// =============================================================================
// CASE LABELS
// =============================================================================

// Label is one case label of a switch section.
type Label interface {
	Span() Span
	label()
}

// ValueLabel is `case <constant-expression>:`.
type ValueLabel struct {
	Loc   Span
	Value Expr
}

// DefaultLabel is `default:`.
type DefaultLabel struct {
	Loc Span
}

// PatternLabel is `case <pattern> [when <guard>]:`. Guard is nil when the
// label has no when-clause.
type PatternLabel struct {
	Loc     Span
	Pattern Pattern
	Guard   Expr
}

// OtherLabel is a label form the frontend recognised as a label but could not
// map onto one of the shapes above. Extraction rejects it.
type OtherLabel struct {
	Loc  Span
	Kind string
}

func (l *ValueLabel) Span() Span   { return l.Loc }
func (l *DefaultLabel) Span() Span { return l.Loc }
func (l *PatternLabel) Span() Span { return l.Loc }
func (l *OtherLabel) Span() Span   { return l.Loc }

func (*ValueLabel) label()   {}
func (*DefaultLabel) label() {}
func (*PatternLabel) label() {}
func (*OtherLabel) label()   {}

// =============================================================================
// PATTERNS
// =============================================================================

// Pattern is the pattern of a PatternLabel.
type Pattern interface {
	Span() Span
	pattern()
}

// BindingPattern is `var <designation>`: the type is inferred.
type BindingPattern struct {
	Loc         Span
	VarKeyword  Span
	Designation Designation
}

// DeclarationPattern is `<type> <designation>`.
type DeclarationPattern struct {
	Loc         Span
	Type        TypeSyntax
	Designation Designation
}

// ConstantPattern matches a constant expression.
type ConstantPattern struct {
	Loc   Span
	Value Expr
}

// OtherPattern covers recursive, relational, logical and type patterns.
type OtherPattern struct {
	Loc  Span
	Kind string
}

func (p *BindingPattern) Span() Span     { return p.Loc }
func (p *DeclarationPattern) Span() Span { return p.Loc }
func (p *ConstantPattern) Span() Span    { return p.Loc }
func (p *OtherPattern) Span() Span       { return p.Loc }

func (*BindingPattern) pattern()     {}
func (*DeclarationPattern) pattern() {}
func (*ConstantPattern) pattern()    {}
func (*OtherPattern) pattern()       {}

// TypeSyntax is either an ExplicitType or NoExplicitType.
type TypeSyntax interface {
	typeSyntax()
}

// ExplicitType is a written type reference such as `int` or `List<string>`.
type ExplicitType struct {
	Name string
	Loc  Span
}

// NoExplicitType marks a pattern whose type is left to inference.
type NoExplicitType struct{}

func (ExplicitType) typeSyntax()   {}
func (NoExplicitType) typeSyntax() {}

// Designation names what a pattern binds.
type Designation interface {
	Span() Span
	designation()
}

// SingleVariable binds one local variable.
type SingleVariable struct {
	Name string
	Loc  Span
}

// Discard is `_`; it binds nothing.
type Discard struct {
	Loc Span
}

// TupleDesignation is `(a, b)`; it never resolves to a single symbol.
type TupleDesignation struct {
	Text string
	Loc  Span
}

func (d *SingleVariable) Span() Span   { return d.Loc }
func (d *Discard) Span() Span          { return d.Loc }
func (d *TupleDesignation) Span() Span { return d.Loc }

func (*SingleVariable) designation()   {}
func (*Discard) designation()          {}
func (*TupleDesignation) designation() {}

// =============================================================================
// EXPRESSIONS
// =============================================================================

// Expr is an expression appearing as a governing value, constant or guard.
type Expr interface {
	Span() Span
	expr()
}

// LiteralKind classifies literal tokens.
type LiteralKind string

const (
	IntLiteral    LiteralKind = "int"
	RealLiteral   LiteralKind = "real"
	StringLiteral LiteralKind = "string"
	CharLiteral   LiteralKind = "char"
	BoolLiteral   LiteralKind = "bool"
	NullLiteral   LiteralKind = "null"
)

// Literal is a literal token; Text is the source spelling.
type Literal struct {
	Kind LiteralKind
	Text string
	Loc  Span
}

// Name is a simple or qualified name reference.
type Name struct {
	Ident string
	Loc   Span
}

// Unary is a prefix operator application.
type Unary struct {
	Op      string
	Operand Expr
	Loc     Span
}

// Binary is an infix operator application.
type Binary struct {
	Op          string
	Left, Right Expr
	Loc         Span
}

// Paren is a parenthesised expression.
type Paren struct {
	Inner Expr
	Loc   Span
}

// OtherExpr is any expression the frontend does not model structurally.
type OtherExpr struct {
	Kind string
	Text string
	Loc  Span
}

func (e *Literal) Span() Span   { return e.Loc }
func (e *Name) Span() Span      { return e.Loc }
func (e *Unary) Span() Span     { return e.Loc }
func (e *Binary) Span() Span    { return e.Loc }
func (e *Paren) Span() Span     { return e.Loc }
func (e *OtherExpr) Span() Span { return e.Loc }

func (*Literal) expr()   {}
func (*Name) expr()      {}
func (*Unary) expr()     {}
func (*Binary) expr()    {}
func (*Paren) expr()     {}
func (*OtherExpr) expr() {}

// =============================================================================
// STATEMENTS
// =============================================================================

// Switch is a switch statement.
type Switch struct {
	Loc      Span
	Value    Expr
	Sections []*Section
}

// Section groups the labels that share one statement list.
type Section struct {
	Loc    Span
	Labels []Label
}

// File is every switch statement found in one source file, in source order.
type File struct {
	Path     string
	Switches []*Switch
}

// LabelCount returns the number of labels across all sections of s.
func (s *Switch) LabelCount() int {
	n := 0
	for _, sec := range s.Sections {
		n += len(sec.Labels)
	}
	return n
}
