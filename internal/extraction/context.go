// Package extraction holds the per-file state shared by every entity
// builder: stable entity identities, location deduplication, the semantic
// model, the fact sink and the staged batches that make entity creation
// all-or-nothing.
package extraction

import (
	"fmt"

	"github.com/google/uuid"

	"switchfacts/internal/semantic"
	"switchfacts/internal/syntax"
	"switchfacts/internal/types"
)

// namespace roots every entity ID; IDs are UUIDv5 over (kind, file, span) so
// re-extracting the same file yields the same identities.
var namespace = uuid.MustParse("6f1d0c52-6b8e-4a5e-9a59-3b0f4c2e7d10")

// Observer is notified of extraction events. Metrics implement it.
type Observer interface {
	CaseCreated(shape string)
	Fault(kind string)
	FactsEmitted(n int)
}

// Options tune a Context.
type Options struct {
	// FailFast stops a switch at its first fault instead of skipping the
	// offending label.
	FailFast bool
	Observer Observer
}

// Context is the extraction state of one source file. It is not safe for
// concurrent use; run one Context per file.
type Context struct {
	File  string
	Model semantic.Model

	sink      Sink
	opts      Options
	committed map[string]struct{}
	faults    []*InternalError
}

// NewContext creates a context for file.
func NewContext(file string, model semantic.Model, sink Sink, opts Options) *Context {
	return &Context{
		File:      file,
		Model:     model,
		sink:      sink,
		opts:      opts,
		committed: make(map[string]struct{}),
	}
}

// FailFast reports whether faults abort the enclosing switch.
func (cx *Context) FailFast() bool { return cx.opts.FailFast }

// ID returns the stable identity of the entity of the given kind at span.
func (cx *Context) ID(kind string, span syntax.Span) string {
	key := fmt.Sprintf("%s|%s", kind, span.WithFile(cx.File))
	return uuid.NewSHA1(namespace, []byte(key)).String()
}

// TypeID returns the identity of a type. Types are shared across files.
func (cx *Context) TypeID(t semantic.Type) string {
	return uuid.NewSHA1(namespace, []byte("type|"+t.Name)).String()
}

// Begin starts a batch. Facts staged on it reach the sink only on Commit.
func (cx *Context) Begin() *Batch {
	return &Batch{cx: cx}
}

// Report records a fault and notifies the observer.
func (cx *Context) Report(err *InternalError) {
	cx.faults = append(cx.faults, err)
	if cx.opts.Observer != nil {
		cx.opts.Observer.Fault(string(err.Kind))
	}
}

// Faults returns the faults reported so far.
func (cx *Context) Faults() []*InternalError {
	return append([]*InternalError(nil), cx.faults...)
}

// CaseCreated notifies the observer of a committed case.
func (cx *Context) CaseCreated(shape types.MangleAtom) {
	if cx.opts.Observer != nil {
		cx.opts.Observer.CaseCreated(string(shape))
	}
}

// Batch stages facts for one entity.
type Batch struct {
	cx    *Context
	facts []types.Fact
	done  bool
}

// Context returns the owning context.
func (b *Batch) Context() *Context { return b.cx }

// Model returns the semantic model of the owning context.
func (b *Batch) Model() semantic.Model { return b.cx.Model }

// ID forwards to Context.ID.
func (b *Batch) ID(kind string, span syntax.Span) string { return b.cx.ID(kind, span) }

// Emit stages a fact.
func (b *Batch) Emit(pred string, args ...interface{}) {
	b.facts = append(b.facts, types.NewFact(pred, args...))
}

// Location stages the location fact for span and returns its identity.
func (b *Batch) Location(span syntax.Span) string {
	span = span.WithFile(b.cx.File)
	id := b.cx.ID("location", span)
	b.Emit(types.PredLocation, id, span.File, span.StartLine, span.StartCol, span.EndLine, span.EndCol)
	return id
}

// Type stages the type fact for t and returns its identity.
func (b *Batch) Type(t semantic.Type) string {
	id := b.cx.TypeID(t)
	b.Emit(types.PredType, id, t.Name)
	return id
}

// Staged returns the number of facts staged so far.
func (b *Batch) Staged() int { return len(b.facts) }

// Commit hands the staged facts to the sink. Facts already committed by an
// earlier batch of the same context (shared locations and types) are
// skipped. A failed commit leaves nothing marked as committed.
func (b *Batch) Commit() error {
	if b.done {
		return fmt.Errorf("batch already finished")
	}
	b.done = true

	fresh := make([]types.Fact, 0, len(b.facts))
	keys := make([]string, 0, len(b.facts))
	local := make(map[string]struct{}, len(b.facts))
	for _, f := range b.facts {
		key := f.Key()
		if _, ok := b.cx.committed[key]; ok {
			continue
		}
		if _, ok := local[key]; ok {
			continue
		}
		local[key] = struct{}{}
		fresh = append(fresh, f)
		keys = append(keys, key)
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := b.cx.sink.Emit(fresh); err != nil {
		return fmt.Errorf("emit %d facts: %w", len(fresh), err)
	}
	for _, k := range keys {
		b.cx.committed[k] = struct{}{}
	}
	if b.cx.opts.Observer != nil {
		b.cx.opts.Observer.FactsEmitted(len(fresh))
	}
	b.facts = nil
	return nil
}

// Discard drops everything staged.
func (b *Batch) Discard() {
	b.done = true
	b.facts = nil
}
