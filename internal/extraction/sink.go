package extraction

import (
	"sync"

	"switchfacts/internal/types"
)

// Sink receives committed facts. Emit is called once per committed batch.
type Sink interface {
	Emit(facts []types.Fact) error
}

// MemorySink collects facts in order, dropping exact duplicates. It is safe
// for concurrent use.
type MemorySink struct {
	mu    sync.Mutex
	facts []types.Fact
	seen  map[string]struct{}
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{seen: make(map[string]struct{})}
}

// Emit implements Sink.
func (s *MemorySink) Emit(facts []types.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range facts {
		key := f.Key()
		if _, dup := s.seen[key]; dup {
			continue
		}
		s.seen[key] = struct{}{}
		s.facts = append(s.facts, f)
	}
	return nil
}

// Facts returns a copy of everything emitted so far.
func (s *MemorySink) Facts() []types.Fact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Fact, len(s.facts))
	copy(out, s.facts)
	return out
}

// Len returns the number of distinct facts.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.facts)
}

// ByPredicate returns the emitted facts of one predicate, in emission order.
func (s *MemorySink) ByPredicate(pred string) []types.Fact {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Fact
	for _, f := range s.facts {
		if f.Predicate == pred {
			out = append(out, f)
		}
	}
	return out
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(facts []types.Fact) error

// Emit implements Sink.
func (fn SinkFunc) Emit(facts []types.Fact) error { return fn(facts) }
