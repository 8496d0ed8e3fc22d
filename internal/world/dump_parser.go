package world

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"switchfacts/internal/logging"
	"switchfacts/internal/semantic"
	"switchfacts/internal/syntax"
)

// DumpParser implements SwitchParser for YAML syntax dumps: switch trees
// produced by an external compiler front end, together with the semantic
// answers that front end computed.
//
// A dump looks like:
//
//	path: src/Shapes.cs
//	switches:
//	  - span: 3:5-9:6
//	    value: {kind: name, ident: shape, span: 3:13-3:18}
//	    sections:
//	      - labels:
//	          - {kind: value, span: 4:9-4:16, value: 1}
//	          - kind: pattern
//	            span: 5:9-5:31
//	            pattern:
//	              kind: declaration
//	              type: {name: int, span: 5:14-5:17}
//	              designation: {kind: variable, name: n, span: 5:18-5:19}
//	            guard: {kind: binary, op: ">", left: {kind: name, ident: n}, right: 0}
//	semantic:
//	  symbols:
//	    - {span: 5:18-5:19, name: n, type: int}
//
// Scalars in expression position are literal shorthand, and an expression
// without a span is located at its own position in the dump. Switches, labels
// and patterns must carry spans. Unknown label or pattern kinds decode to
// OtherLabel and OtherPattern so that extraction reports them rather than
// silently dropping them.
type DumpParser struct{}

// NewDumpParser creates a new syntax-dump parser.
func NewDumpParser() *DumpParser {
	return &DumpParser{}
}

// Language returns "dump".
func (p *DumpParser) Language() string {
	return "dump"
}

// SupportedExtensions returns [".yaml", ".yml"].
func (p *DumpParser) SupportedExtensions() []string {
	return []string{".yaml", ".yml"}
}

// Parse decodes a syntax dump. The dump's own path, when present, replaces
// path in every span.
func (p *DumpParser) Parse(ctx context.Context, path string, content []byte) (*ParseResult, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, table, err := DecodeDump(path, content)
	if err != nil {
		return nil, err
	}

	logging.FrontendDebug("DumpParser: decoded %s - %d switches, %d symbols in %v",
		filepath.Base(path), len(file.Switches), table.Symbols(), time.Since(start))
	return &ParseResult{File: file, Model: table}, nil
}

// DecodeDump decodes a YAML syntax dump into a syntax tree and the semantic
// table that accompanies it.
func DecodeDump(path string, content []byte) (*syntax.File, *semantic.Table, error) {
	var doc dumpDocument
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode syntax dump %s: %w", path, err)
	}
	if doc.Path != "" {
		path = doc.Path
	}

	d := &dumpDecoder{path: path}
	file := &syntax.File{Path: path}
	for i, sw := range doc.Switches {
		if sw == nil {
			return nil, nil, fmt.Errorf("decode syntax dump %s: switch %d is empty", path, i)
		}
		file.Switches = append(file.Switches, d.switchStatement(sw))
	}
	if d.err != nil {
		return nil, nil, fmt.Errorf("decode syntax dump %s: %w", path, d.err)
	}

	table := semantic.NewTable()
	for _, c := range doc.Semantic.Constants {
		kind := semantic.ConstantKind(c.Kind)
		switch kind {
		case semantic.IntConstant, semantic.RealConstant, semantic.StringConstant,
			semantic.CharConstant, semantic.BoolConstant, semantic.NullConstant:
		default:
			return nil, nil, fmt.Errorf("decode syntax dump %s: constant at %s has unknown kind %q", path, d.span(c.Span), c.Kind)
		}
		table.SetConstant(d.span(c.Span), semantic.Constant{Kind: kind, Text: c.Text})
	}
	for _, s := range doc.Semantic.Symbols {
		if s.Name == "" {
			return nil, nil, fmt.Errorf("decode syntax dump %s: symbol at %s has no name", path, d.span(s.Span))
		}
		t := semantic.UnknownType
		if s.Type != "" {
			t = semantic.Type{Name: s.Type}
		}
		loc := d.span(s.Span)
		table.Declare(loc, &semantic.LocalSymbol{Name: s.Name, Type: t, Span: loc})
	}
	return file, table, nil
}

// =============================================================================
// DOCUMENT SHAPE
// =============================================================================

type dumpDocument struct {
	Path     string        `yaml:"path"`
	Switches []*dumpSwitch `yaml:"switches"`
	Semantic struct {
		Constants []dumpConstant `yaml:"constants"`
		Symbols   []dumpSymbol   `yaml:"symbols"`
	} `yaml:"semantic"`
}

type dumpSwitch struct {
	Span     dumpSpan       `yaml:"span"`
	Value    *dumpExpr      `yaml:"value"`
	Sections []*dumpSection `yaml:"sections"`
}

type dumpSection struct {
	Span   dumpSpan     `yaml:"span"`
	Labels []*dumpLabel `yaml:"labels"`
}

type dumpLabel struct {
	Kind    string       `yaml:"kind"`
	Span    dumpSpan     `yaml:"span"`
	Value   *dumpExpr    `yaml:"value"`
	Pattern *dumpPattern `yaml:"pattern"`
	Guard   *dumpExpr    `yaml:"guard"`
}

type dumpPattern struct {
	Kind        string           `yaml:"kind"`
	Span        dumpSpan         `yaml:"span"`
	VarKeyword  dumpSpan         `yaml:"var_keyword"`
	Type        *dumpType        `yaml:"type"`
	Designation *dumpDesignation `yaml:"designation"`
	Value       *dumpExpr        `yaml:"value"`
}

type dumpType struct {
	Name string   `yaml:"name"`
	Span dumpSpan `yaml:"span"`
}

type dumpDesignation struct {
	Kind string   `yaml:"kind"`
	Name string   `yaml:"name"`
	Span dumpSpan `yaml:"span"`
}

type dumpExpr struct {
	Kind    string    `yaml:"kind"`
	Literal string    `yaml:"literal"`
	Text    string    `yaml:"text"`
	Ident   string    `yaml:"ident"`
	Op      string    `yaml:"op"`
	Operand *dumpExpr `yaml:"operand"`
	Left    *dumpExpr `yaml:"left"`
	Right   *dumpExpr `yaml:"right"`
	Inner   *dumpExpr `yaml:"inner"`
	Span    dumpSpan  `yaml:"span"`

	pos syntax.Span
}

type dumpConstant struct {
	Span dumpSpan `yaml:"span"`
	Kind string   `yaml:"kind"`
	Text string   `yaml:"text"`
}

type dumpSymbol struct {
	Span dumpSpan `yaml:"span"`
	Name string   `yaml:"name"`
	Type string   `yaml:"type"`
}

// UnmarshalYAML accepts either a mapping or a scalar literal shorthand.
func (e *dumpExpr) UnmarshalYAML(value *yaml.Node) error {
	e.pos = syntax.Span{StartLine: value.Line, StartCol: value.Column, EndLine: value.Line, EndCol: value.Column + 1}
	if value.Kind != yaml.ScalarNode {
		type plain dumpExpr
		pos := e.pos
		if err := value.Decode((*plain)(e)); err != nil {
			return err
		}
		e.pos = pos
		return nil
	}
	e.pos.EndCol = value.Column + len(value.Value)

	e.Kind = "literal"
	e.Text = value.Value
	switch value.ShortTag() {
	case "!!int":
		e.Literal = string(syntax.IntLiteral)
	case "!!float":
		e.Literal = string(syntax.RealLiteral)
	case "!!bool":
		e.Literal = string(syntax.BoolLiteral)
	case "!!null":
		e.Literal = string(syntax.NullLiteral)
		e.Text = "null"
	default:
		// Plain strings are names; quoted strings are string literals.
		if value.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
			e.Literal = string(syntax.StringLiteral)
			e.Text = fmt.Sprintf("%q", value.Value)
		} else {
			e.Kind = "name"
			e.Ident = value.Value
			e.Text = ""
		}
	}
	return nil
}

// dumpSpan accepts a mapping in syntax.Span's shape or the compact
// "line:col-line:col" form.
type dumpSpan struct {
	syntax.Span
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *dumpSpan) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var sp syntax.Span
		_, err := fmt.Sscanf(value.Value, "%d:%d-%d:%d", &sp.StartLine, &sp.StartCol, &sp.EndLine, &sp.EndCol)
		if err != nil {
			return fmt.Errorf("line %d: span %q: want line:col-line:col", value.Line, value.Value)
		}
		s.Span = sp
		return nil
	}
	return value.Decode(&s.Span)
}

// =============================================================================
// CONVERSION
// =============================================================================

type dumpDecoder struct {
	path string
	err  error
}

func (d *dumpDecoder) span(s dumpSpan) syntax.Span {
	return s.Span.WithFile(d.path)
}

// required converts a span that identifies an entity. The first missing one
// is recorded as the decode error.
func (d *dumpDecoder) required(s dumpSpan, what string) syntax.Span {
	if s.IsZero() && d.err == nil {
		d.err = fmt.Errorf("%s without span", what)
	}
	return d.span(s)
}

func (d *dumpDecoder) switchStatement(sw *dumpSwitch) *syntax.Switch {
	out := &syntax.Switch{Loc: d.required(sw.Span, "switch"), Value: d.expr(sw.Value)}
	for _, sec := range sw.Sections {
		if sec == nil {
			continue
		}
		s := &syntax.Section{Loc: d.span(sec.Span)}
		for _, l := range sec.Labels {
			if l == nil {
				continue
			}
			s.Labels = append(s.Labels, d.label(l))
		}
		out.Sections = append(out.Sections, s)
	}
	return out
}

func (d *dumpDecoder) label(l *dumpLabel) syntax.Label {
	loc := d.required(l.Span, l.Kind+" label")
	switch l.Kind {
	case "value":
		return &syntax.ValueLabel{Loc: loc, Value: d.expr(l.Value)}
	case "default":
		return &syntax.DefaultLabel{Loc: loc}
	case "pattern":
		var guard syntax.Expr
		if l.Guard != nil {
			guard = d.expr(l.Guard)
		}
		var pattern syntax.Pattern
		if l.Pattern != nil {
			pattern = d.pattern(l.Pattern)
		}
		return &syntax.PatternLabel{Loc: loc, Pattern: pattern, Guard: guard}
	}
	return &syntax.OtherLabel{Loc: loc, Kind: l.Kind}
}

func (d *dumpDecoder) pattern(p *dumpPattern) syntax.Pattern {
	loc := d.required(p.Span, p.Kind+" pattern")
	switch p.Kind {
	case "binding", "var":
		return &syntax.BindingPattern{
			Loc:         loc,
			VarKeyword:  d.span(p.VarKeyword),
			Designation: d.designation(p.Designation),
		}
	case "declaration":
		var ts syntax.TypeSyntax = syntax.NoExplicitType{}
		if p.Type != nil && p.Type.Name != "" {
			ts = syntax.ExplicitType{Name: p.Type.Name, Loc: d.span(p.Type.Span)}
		}
		return &syntax.DeclarationPattern{Loc: loc, Type: ts, Designation: d.designation(p.Designation)}
	case "constant":
		return &syntax.ConstantPattern{Loc: loc, Value: d.expr(p.Value)}
	}
	return &syntax.OtherPattern{Loc: loc, Kind: p.Kind}
}

func (d *dumpDecoder) designation(des *dumpDesignation) syntax.Designation {
	if des == nil {
		return nil
	}
	loc := d.span(des.Span)
	switch des.Kind {
	case "discard":
		return &syntax.Discard{Loc: loc}
	case "tuple":
		return &syntax.TupleDesignation{Text: des.Name, Loc: loc}
	}
	if des.Name == "_" {
		return &syntax.Discard{Loc: loc}
	}
	return &syntax.SingleVariable{Name: des.Name, Loc: loc}
}

func (d *dumpDecoder) expr(e *dumpExpr) syntax.Expr {
	if e == nil {
		return &syntax.OtherExpr{Kind: "missing"}
	}
	loc := d.span(e.Span)
	if e.Span.IsZero() {
		loc = e.pos.WithFile(d.path)
	}
	switch e.Kind {
	case "literal":
		return &syntax.Literal{Kind: syntax.LiteralKind(e.Literal), Text: e.Text, Loc: loc}
	case "name":
		return &syntax.Name{Ident: e.Ident, Loc: loc}
	case "unary":
		return &syntax.Unary{Op: e.Op, Operand: d.expr(e.Operand), Loc: loc}
	case "binary":
		return &syntax.Binary{Op: e.Op, Left: d.expr(e.Left), Right: d.expr(e.Right), Loc: loc}
	case "paren":
		return &syntax.Paren{Inner: d.expr(e.Inner), Loc: loc}
	}
	return &syntax.OtherExpr{Kind: e.Kind, Text: e.Text, Loc: loc}
}
