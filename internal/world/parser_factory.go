package world

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"switchfacts/internal/logging"
)

// ParserFactory routes parse requests to a SwitchParser by file extension.
type ParserFactory struct {
	mu      sync.RWMutex
	parsers map[string]SwitchParser // extension -> parser (e.g., ".cs" -> CSharpParser)
}

// NewParserFactory creates an empty factory.
func NewParserFactory() *ParserFactory {
	return &ParserFactory{parsers: make(map[string]SwitchParser)}
}

// Register adds a parser for its supported extensions.
// If a parser is already registered for an extension, it is replaced.
func (f *ParserFactory) Register(parser SwitchParser) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ext := range parser.SupportedExtensions() {
		ext = normalizeExtension(ext)
		logging.FrontendDebug("ParserFactory: registering %s parser for extension %s", parser.Language(), ext)
		f.parsers[ext] = parser
	}
}

// GetParser returns the parser for a given file path, or nil.
func (f *ParserFactory) GetParser(path string) SwitchParser {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.parsers[normalizeExtension(filepath.Ext(path))]
}

// HasParser returns true if a parser exists for the given file path.
func (f *ParserFactory) HasParser(path string) bool {
	return f.GetParser(path) != nil
}

// Parse parses a file with the parser registered for its extension.
func (f *ParserFactory) Parse(ctx context.Context, path string, content []byte) (*ParseResult, error) {
	parser := f.GetParser(path)
	if parser == nil {
		return nil, fmt.Errorf("no parser registered for extension: %s", filepath.Ext(path))
	}
	return parser.Parse(ctx, path, content)
}

// SupportedExtensions returns all registered file extensions, sorted.
func (f *ParserFactory) SupportedExtensions() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	exts := make([]string, 0, len(f.parsers))
	for ext := range f.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// RegisteredLanguages returns all registered language identifiers.
func (f *ParserFactory) RegisteredLanguages() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	seen := make(map[string]bool)
	var langs []string
	for _, parser := range f.parsers {
		lang := parser.Language()
		if !seen[lang] {
			seen[lang] = true
			langs = append(langs, lang)
		}
	}
	sort.Strings(langs)
	return langs
}

// normalizeExtension ensures extensions are lowercase with leading dot.
func normalizeExtension(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// DefaultParserFactory creates a ParserFactory with all built-in parsers registered.
func DefaultParserFactory() *ParserFactory {
	factory := NewParserFactory()
	factory.Register(NewCSharpParser())
	factory.Register(NewDumpParser())
	logging.FrontendDebug("DefaultParserFactory: registered parsers for %v", factory.SupportedExtensions())
	return factory
}
