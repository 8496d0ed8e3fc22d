package world

import (
	"context"

	"switchfacts/internal/semantic"
	"switchfacts/internal/syntax"
)

// SwitchParser turns one source file into the switch statements it contains
// plus the semantic answers extraction will ask about them.
//
// Implementations must be safe for concurrent use: the extractor parses
// files in parallel through a single registered instance.
type SwitchParser interface {
	// Parse extracts every switch statement from content. path is recorded
	// in all spans.
	Parse(ctx context.Context, path string, content []byte) (*ParseResult, error)

	// SupportedExtensions returns the file extensions this parser handles,
	// with the leading dot.
	SupportedExtensions() []string

	// Language returns a short identifier used in logs ("cs", "dump").
	Language() string
}

// ParseResult is the output of one parse.
type ParseResult struct {
	File  *syntax.File
	Model *semantic.Table

	// Errors lists non-fatal problems such as tree-sitter error nodes.
	Errors []ParseError
}

// ParseError represents a non-fatal parsing issue.
type ParseError struct {
	Line    int
	Column  int
	Message string
}
