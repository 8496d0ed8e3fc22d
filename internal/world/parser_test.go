package world

import (
	"context"
	"reflect"
	"testing"
)

func TestParserFactory_Routing(t *testing.T) {
	f := DefaultParserFactory()

	tests := []struct {
		path string
		lang string
	}{
		{"src/Program.cs", "cs"},
		{"SRC/PROGRAM.CS", "cs"},
		{"dumps/a.yaml", "dump"},
		{"dumps/a.yml", "dump"},
	}
	for _, tt := range tests {
		p := f.GetParser(tt.path)
		if p == nil {
			t.Errorf("%s: no parser", tt.path)
			continue
		}
		if p.Language() != tt.lang {
			t.Errorf("%s: got %s, want %s", tt.path, p.Language(), tt.lang)
		}
	}

	if f.HasParser("main.go") {
		t.Error("main.go should have no parser")
	}
	if got, want := f.SupportedExtensions(), []string{".cs", ".yaml", ".yml"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SupportedExtensions = %v, want %v", got, want)
	}
	if got, want := f.RegisteredLanguages(), []string{"cs", "dump"}; !reflect.DeepEqual(got, want) {
		t.Errorf("RegisteredLanguages = %v, want %v", got, want)
	}
}

func TestParserFactory_ParseUnknownExtension(t *testing.T) {
	f := NewParserFactory()
	if _, err := f.Parse(context.Background(), "a.cs", nil); err == nil {
		t.Fatal("expected error from empty factory")
	}
}

func TestNormalizeExtension(t *testing.T) {
	for in, want := range map[string]string{"cs": ".cs", ".CS": ".cs", ".yml": ".yml"} {
		if got := normalizeExtension(in); got != want {
			t.Errorf("normalizeExtension(%q) = %q, want %q", in, got, want)
		}
	}
}
