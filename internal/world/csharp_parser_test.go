package world

import (
	"context"
	"testing"

	"switchfacts/internal/semantic"
	"switchfacts/internal/syntax"
)

const csharpSample = `class Shapes
{
    const int Max = 4 * 2;

    int Classify(int x, object o)
    {
        switch (x)
        {
            case 5:
                return 1;
            case Max:
            case -1:
                return 2;
            case int n when n > 0:
                return 3;
            case var y:
                return 4;
            default:
                return 0;
        }
    }
}
`

func parseSample(t *testing.T) *ParseResult {
	t.Helper()
	res, err := NewCSharpParser().Parse(context.Background(), "Shapes.cs", []byte(csharpSample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected syntax errors: %+v", res.Errors)
	}
	if len(res.File.Switches) != 1 {
		t.Fatalf("expected 1 switch, got %d", len(res.File.Switches))
	}
	return res
}

func allLabels(sw *syntax.Switch) []syntax.Label {
	var out []syntax.Label
	for _, sec := range sw.Sections {
		out = append(out, sec.Labels...)
	}
	return out
}

func TestCSharpParser_Metadata(t *testing.T) {
	p := NewCSharpParser()
	if p.Language() != "cs" {
		t.Errorf("Expected 'cs', got %s", p.Language())
	}
	if exts := p.SupportedExtensions(); len(exts) != 1 || exts[0] != ".cs" {
		t.Errorf("Expected [.cs], got %v", exts)
	}
}

func TestCSharpParser_Sections(t *testing.T) {
	res := parseSample(t)
	sw := res.File.Switches[0]

	if len(sw.Sections) != 5 {
		t.Fatalf("expected 5 sections, got %d", len(sw.Sections))
	}
	if got := len(sw.Sections[1].Labels); got != 2 {
		t.Errorf("second section should share two labels, got %d", got)
	}
	if loc := sw.Sections[1].Loc; loc.StartLine != 11 || loc.EndLine != 13 {
		t.Errorf("stacked labels should span one section from line 11 to 13, got %s", loc)
	}
	if sw.LabelCount() != 6 {
		t.Errorf("expected 6 labels, got %d", sw.LabelCount())
	}
	if sw.Loc.File != "Shapes.cs" || sw.Loc.StartLine != 7 {
		t.Errorf("unexpected switch span %s", sw.Loc)
	}

	value, ok := sw.Value.(*syntax.Name)
	if !ok || value.Ident != "x" {
		t.Errorf("governing value should be name x, got %#v", sw.Value)
	}
}

func TestCSharpParser_ValueLabels(t *testing.T) {
	res := parseSample(t)
	labels := allLabels(res.File.Switches[0])

	five, ok := labels[0].(*syntax.ValueLabel)
	if !ok {
		t.Fatalf("case 5 should be a value label, got %T", labels[0])
	}
	if got := res.Model.ConstantValue(five.Value); got != (semantic.Constant{Kind: semantic.IntConstant, Text: "5"}) {
		t.Errorf("case 5 folded to %v", got)
	}

	max, ok := labels[1].(*syntax.ValueLabel)
	if !ok {
		t.Fatalf("case Max should be a value label, got %T", labels[1])
	}
	if got := res.Model.ConstantValue(max.Value); got.String() != "8" {
		t.Errorf("named constant Max folded to %v, want 8", got)
	}

	neg, ok := labels[2].(*syntax.ValueLabel)
	if !ok {
		t.Fatalf("case -1 should be a value label, got %T", labels[2])
	}
	if got := res.Model.ConstantValue(neg.Value); got.String() != "-1" {
		t.Errorf("case -1 folded to %v", got)
	}

	if _, ok := labels[5].(*syntax.DefaultLabel); !ok {
		t.Errorf("last label should be default, got %T", labels[5])
	}
}

func TestCSharpParser_PatternLabels(t *testing.T) {
	res := parseSample(t)
	labels := allLabels(res.File.Switches[0])

	guarded, ok := labels[3].(*syntax.PatternLabel)
	if !ok {
		t.Fatalf("case int n when n > 0 should be a pattern label, got %T", labels[3])
	}
	if guarded.Guard == nil {
		t.Error("expected a guard")
	}
	decl, ok := guarded.Pattern.(*syntax.DeclarationPattern)
	if !ok {
		t.Fatalf("expected declaration pattern, got %T", guarded.Pattern)
	}
	if et, ok := decl.Type.(syntax.ExplicitType); !ok || et.Name != "int" {
		t.Errorf("expected explicit type int, got %#v", decl.Type)
	}
	sym, ok := res.Model.DeclaredSymbol(decl.Designation)
	if !ok || sym.Name != "n" || sym.Type.Name != "int" {
		t.Errorf("expected symbol n:int, got %#v", sym)
	}

	binding, ok := labels[4].(*syntax.PatternLabel)
	if !ok {
		t.Fatalf("case var y should be a pattern label, got %T", labels[4])
	}
	bp, ok := binding.Pattern.(*syntax.BindingPattern)
	if !ok {
		t.Fatalf("expected binding pattern, got %T", binding.Pattern)
	}
	if bp.VarKeyword.IsZero() {
		t.Error("var keyword span should be recorded")
	}
	sym, ok = res.Model.DeclaredSymbol(bp.Designation)
	if !ok || sym.Name != "y" {
		t.Fatalf("expected symbol y, got %#v", sym)
	}
	if sym.Type.Name != "int" {
		t.Errorf("var binding should take the governing type int, got %q", sym.Type.Name)
	}
}

func TestCSharpParser_NestedSwitchesInSourceOrder(t *testing.T) {
	src := `class C {
    void M(string s, int k) {
        switch (s) {
            case "a":
                switch (k) { case 1: break; }
                break;
        }
        switch (k) { default: break; }
    }
}
`
	res, err := NewCSharpParser().Parse(context.Background(), "C.cs", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.File.Switches) != 3 {
		t.Fatalf("expected 3 switches, got %d", len(res.File.Switches))
	}
	lines := []int{3, 5, 8}
	for i, sw := range res.File.Switches {
		if sw.Loc.StartLine != lines[i] {
			t.Errorf("switch %d starts at line %d, want %d", i, sw.Loc.StartLine, lines[i])
		}
	}

	str, ok := allLabels(res.File.Switches[0])[0].(*syntax.ValueLabel)
	if !ok {
		t.Fatalf("case \"a\" should be a value label")
	}
	if got := res.Model.ConstantValue(str.Value); got != (semantic.Constant{Kind: semantic.StringConstant, Text: "a"}) {
		t.Errorf("string label folded to %#v", got)
	}
}

func TestCSharpParser_ReportsSyntaxErrors(t *testing.T) {
	res, err := NewCSharpParser().Parse(context.Background(), "Broken.cs", []byte("class C { void M() { switch (x) { case 1 } } }"))
	if err != nil {
		t.Fatalf("Parse should tolerate broken input: %v", err)
	}
	if len(res.Errors) == 0 {
		t.Error("expected syntax errors to be reported")
	}
}

func TestCSharpParser_StackedLabelsShareSection(t *testing.T) {
	src := `class C {
    void M(int k) {
        switch (k) {
            case 1:
            case 2:
            default:
                break;
            case 3:
                break;
        }
    }
}
`
	res, err := NewCSharpParser().Parse(context.Background(), "Stack.cs", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sw := res.File.Switches[0]
	if len(sw.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sw.Sections))
	}
	first := sw.Sections[0].Labels
	if len(first) != 3 {
		t.Fatalf("first section should hold 3 labels, got %d", len(first))
	}
	if _, ok := first[2].(*syntax.DefaultLabel); !ok {
		t.Errorf("third label should be default, got %T", first[2])
	}
	if got := len(sw.Sections[1].Labels); got != 1 {
		t.Errorf("second section should hold 1 label, got %d", got)
	}
}
