// Package types provides the fact representation shared by the extractor, the
// Mangle engine wrapper and the SQLite store.
// Types in this package are foundational data structures with no internal dependencies.
package types

import (
	"fmt"
	"strings"

	"github.com/google/mangle/ast"
)

// =============================================================================
// MANGLE FACT TYPES
// =============================================================================

// MangleAtom represents a Mangle name constant (starting with /).
// This explicit type avoids ambiguity between strings and atoms.
type MangleAtom string

// Fact represents a single logical fact (atom) in the EDB.
type Fact struct {
	Predicate string
	Args      []interface{}
}

// NewFact builds a fact from a predicate and its arguments.
func NewFact(predicate string, args ...interface{}) Fact {
	return Fact{Predicate: predicate, Args: args}
}

// String returns the Datalog string representation of the fact.
func (f Fact) String() string {
	args := make([]string, 0, len(f.Args))
	for _, arg := range f.Args {
		switch v := arg.(type) {
		case MangleAtom:
			args = append(args, string(v))
		case string:
			args = append(args, fmt.Sprintf("%q", v))
		case int:
			args = append(args, fmt.Sprintf("%d", v))
		case int64:
			args = append(args, fmt.Sprintf("%d", v))
		case bool:
			if v {
				args = append(args, "/true")
			} else {
				args = append(args, "/false")
			}
		default:
			args = append(args, fmt.Sprintf("%q", fmt.Sprintf("%v", v)))
		}
	}
	return fmt.Sprintf("%s(%s).", f.Predicate, strings.Join(args, ", "))
}

// Key returns a canonical identity for the fact, used for deduplication.
func (f Fact) Key() string {
	return f.String()
}

// ToAtom converts a Fact to a Mangle AST Atom for direct store insertion.
// Strings always become string constants; only MangleAtom values become names.
func (f Fact) ToAtom() (ast.Atom, error) {
	terms := make([]ast.BaseTerm, 0, len(f.Args))
	for i, arg := range f.Args {
		switch v := arg.(type) {
		case MangleAtom:
			s := string(v)
			if !strings.HasPrefix(s, "/") {
				return ast.Atom{}, fmt.Errorf("%s arg %d: name constant %q must start with /", f.Predicate, i, s)
			}
			c, err := ast.Name(s)
			if err != nil {
				return ast.Atom{}, fmt.Errorf("%s arg %d: %w", f.Predicate, i, err)
			}
			terms = append(terms, c)
		case string:
			terms = append(terms, ast.String(v))
		case int:
			terms = append(terms, ast.Number(int64(v)))
		case int64:
			terms = append(terms, ast.Number(v))
		case bool:
			if v {
				terms = append(terms, ast.TrueConstant)
			} else {
				terms = append(terms, ast.FalseConstant)
			}
		default:
			terms = append(terms, ast.String(fmt.Sprintf("%v", v)))
		}
	}
	return ast.NewAtom(f.Predicate, terms...), nil
}

// Bool converts a Go boolean to the Mangle name constants /true and /false.
func Bool(b bool) MangleAtom {
	if b {
		return "/true"
	}
	return "/false"
}
