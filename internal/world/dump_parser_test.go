package world

import (
	"context"
	"strings"
	"testing"

	"switchfacts/internal/semantic"
	"switchfacts/internal/syntax"
)

const dumpSample = `
path: src/Shapes.cs
switches:
  - span: 3:5-9:6
    value: {kind: name, ident: shape, span: 3:13-3:18}
    sections:
      - span: 4:9-4:25
        labels:
          - {kind: value, span: 4:9-4:16, value: {kind: name, ident: Max, span: 4:14-4:17}}
          - {kind: value, span: 4:17-4:25, value: "circle"}
      - span: 5:9-6:20
        labels:
          - kind: pattern
            span: 5:9-5:31
            pattern:
              kind: declaration
              span: 5:14-5:19
              type: {name: int, span: 5:14-5:17}
              designation: {kind: variable, name: n, span: 5:18-5:19}
            guard: {kind: binary, op: ">", left: {kind: name, ident: n, span: 5:25-5:26}, right: 0}
          - kind: pattern
            span: 6:9-6:20
            pattern: {kind: var, span: 6:14-6:19, var_keyword: 6:14-6:17, designation: {name: y, span: 6:18-6:19}}
      - labels:
          - {kind: default, span: 7:9-7:17}
          - {kind: list, span: 8:9-8:20}
semantic:
  constants:
    - {span: 4:14-4:17, kind: int, text: "8"}
  symbols:
    - {span: 5:18-5:19, name: n, type: int}
    - {span: 6:18-6:19, name: y}
`

func TestDecodeDump(t *testing.T) {
	file, table, err := DecodeDump("ignored.yaml", []byte(dumpSample))
	if err != nil {
		t.Fatalf("DecodeDump: %v", err)
	}
	if file.Path != "src/Shapes.cs" {
		t.Errorf("dump path should win, got %q", file.Path)
	}
	if len(file.Switches) != 1 {
		t.Fatalf("expected 1 switch, got %d", len(file.Switches))
	}
	sw := file.Switches[0]
	if sw.Loc != (syntax.Span{File: "src/Shapes.cs", StartLine: 3, StartCol: 5, EndLine: 9, EndCol: 6}) {
		t.Errorf("unexpected switch span %s", sw.Loc)
	}
	if sw.LabelCount() != 6 {
		t.Fatalf("expected 6 labels, got %d", sw.LabelCount())
	}

	max := sw.Sections[0].Labels[0].(*syntax.ValueLabel)
	if got := table.ConstantValue(max.Value); got != (semantic.Constant{Kind: semantic.IntConstant, Text: "8"}) {
		t.Errorf("Max should resolve through the semantic section, got %#v", got)
	}
	circle := sw.Sections[0].Labels[1].(*syntax.ValueLabel)
	if got := table.ConstantValue(circle.Value); got != (semantic.Constant{Kind: semantic.StringConstant, Text: "circle"}) {
		t.Errorf("quoted scalar should be a string literal, got %#v", got)
	}

	guarded := sw.Sections[1].Labels[0].(*syntax.PatternLabel)
	decl := guarded.Pattern.(*syntax.DeclarationPattern)
	if et := decl.Type.(syntax.ExplicitType); et.Name != "int" {
		t.Errorf("expected explicit int, got %q", et.Name)
	}
	if sym, ok := table.DeclaredSymbol(decl.Designation); !ok || sym.Type.Name != "int" {
		t.Errorf("expected n:int, got %#v", sym)
	}
	guard := guarded.Guard.(*syntax.Binary)
	if guard.Right.Span().IsZero() {
		t.Error("shorthand literal should be located at its dump position")
	}
	if guard.Right.Span() == guard.Left.Span() {
		t.Error("operands must not share a span")
	}

	binding := sw.Sections[1].Labels[1].(*syntax.PatternLabel).Pattern.(*syntax.BindingPattern)
	sym, ok := table.DeclaredSymbol(binding.Designation)
	if !ok || sym.Type != semantic.UnknownType {
		t.Errorf("symbol without a type should be unknown, got %#v", sym)
	}

	if _, ok := sw.Sections[2].Labels[0].(*syntax.DefaultLabel); !ok {
		t.Errorf("expected default label, got %T", sw.Sections[2].Labels[0])
	}
	other, ok := sw.Sections[2].Labels[1].(*syntax.OtherLabel)
	if !ok || other.Kind != "list" {
		t.Errorf("unknown label kinds should decode to OtherLabel, got %#v", sw.Sections[2].Labels[1])
	}
}

func TestDecodeDumpErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"malformed yaml", "switches: [", "decode syntax dump"},
		{"bad span", "switches:\n  - span: nope\n", "want line:col-line:col"},
		{"label without span", "switches:\n  - span: 1:1-2:1\n    sections:\n      - labels:\n          - {kind: default}\n", "default label without span"},
		{"unknown constant kind", "semantic:\n  constants:\n    - {span: 1:1-1:2, kind: decimal, text: '1'}\n", "unknown kind"},
		{"unnamed symbol", "semantic:\n  symbols:\n    - {span: 1:1-1:2}\n", "has no name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeDump("x.yaml", []byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDumpParser_Parse(t *testing.T) {
	p := NewDumpParser()
	if p.Language() != "dump" {
		t.Errorf("Expected 'dump', got %s", p.Language())
	}
	res, err := p.Parse(context.Background(), "Shapes.yaml", []byte(dumpSample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Model.Symbols() != 2 {
		t.Errorf("expected 2 symbols, got %d", res.Model.Symbols())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Parse(ctx, "Shapes.yaml", []byte(dumpSample)); err == nil {
		t.Error("expected cancelled context to abort parsing")
	}
}
