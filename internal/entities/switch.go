package entities

import (
	"fmt"
	"sync"

	"switchfacts/internal/extraction"
	"switchfacts/internal/logging"
	"switchfacts/internal/semantic"
	"switchfacts/internal/syntax"
	"switchfacts/internal/types"
)

// LabelValue is the message a value case sends its switch: the constant the
// label matches (possibly undefined) and the case that carries it.
type LabelValue struct {
	Value semantic.Constant
	Case  string
}

// Switch is an extracted switch statement. It accepts label registrations
// from its cases and is safe for concurrent use.
type Switch struct {
	id   string
	loc  string
	span syntax.Span

	mu         sync.Mutex
	byValue    map[string]string
	registered []LabelValue
	cases      []*Case
}

// NewSwitch creates a switch entity without emitting anything. CreateSwitch
// is the usual entry point; NewSwitch serves callers that extract labels
// one at a time.
func NewSwitch(cx *extraction.Context, span syntax.Span) *Switch {
	return &Switch{
		id:      cx.ID("switch", span),
		span:    span,
		byValue: make(map[string]string),
	}
}

func (s *Switch) ID() string        { return s.id }
func (s *Switch) Span() syntax.Span { return s.span }
func (s *Switch) Location() string  { return s.loc }

// RegisterLabelValue records a case label value. The first case registering
// a given defined value wins the LabelForValue lookup.
func (s *Switch) RegisterLabelValue(v LabelValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = append(s.registered, v)
	if !v.Value.Valid() {
		return
	}
	key := v.Value.String()
	if _, taken := s.byValue[key]; !taken {
		s.byValue[key] = v.Case
	}
}

// LabelForValue returns the case whose label matches v.
func (s *Switch) LabelForValue(v semantic.Constant) (string, bool) {
	if !v.Valid() {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byValue[v.String()]
	return id, ok
}

// Registrations returns every registration in arrival order, undefined
// values included.
func (s *Switch) Registrations() []LabelValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LabelValue(nil), s.registered...)
}

// Cases returns the successfully created cases in creation order.
func (s *Switch) Cases() []*Case {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Case(nil), s.cases...)
}

func (s *Switch) addCase(c *Case) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases = append(s.cases, c)
}

// CreateSwitch extracts sw as child index of parent, then every label of
// every section. Labels are numbered in source order across sections; a
// rejected label keeps its number. Rejected labels are reported on cx and
// returned; with FailFast the first rejection stops the switch. The error
// result is reserved for failures that are not InternalErrors.
func CreateSwitch(cx *extraction.Context, sw *syntax.Switch, parent string, index int) (*Switch, []*extraction.InternalError, error) {
	if sw == nil {
		return nil, nil, fmt.Errorf("nil switch")
	}
	s := NewSwitch(cx, sw.Loc)

	b := cx.Begin()
	s.loc = b.Location(sw.Loc)
	b.Emit(types.PredStmt, s.id, types.StmtSwitch, parent, index, s.loc)
	if sw.Value != nil {
		CreateExpr(b, sw.Value, s.id, 0)
	}
	if err := b.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit switch at %s: %w", sw.Loc, err)
	}

	var faults []*extraction.InternalError
	n := 0
	for si, sec := range sw.Sections {
		for _, label := range sec.Labels {
			child := n
			n++
			_, err := CreateCase(cx, label, s, child, InSection(si))
			if err == nil {
				continue
			}
			ie, ok := extraction.AsInternal(err)
			if !ok {
				return s, faults, err
			}
			faults = append(faults, ie)
			cx.Report(ie)
			if ferr := emitFault(cx, ie); ferr != nil {
				return s, faults, ferr
			}
			if cx.FailFast() {
				return s, faults, nil
			}
		}
	}
	logging.ExtractDebug("switch %s: %d labels, %d faults", s.id, n, len(faults))
	return s, faults, nil
}

// emitFault records a rejected label as a diagnostic fact. No branch facts
// are emitted for it.
func emitFault(cx *extraction.Context, ie *extraction.InternalError) error {
	b := cx.Begin()
	loc := b.Location(ie.Span)
	b.Emit(types.PredExtractionFault, cx.File, types.MangleAtom("/"+string(ie.Kind)), loc, ie.Detail)
	return b.Commit()
}

// ExtractFile extracts every switch of f; each switch's parent is the file
// path. Faults are collected on cx. With FailFast the first fault is
// returned.
func ExtractFile(cx *extraction.Context, f *syntax.File) error {
	b := cx.Begin()
	b.Emit(types.PredSourceFile, cx.File)
	if err := b.Commit(); err != nil {
		return err
	}

	for i, sw := range f.Switches {
		_, faults, err := CreateSwitch(cx, sw, cx.File, i)
		if err != nil {
			return err
		}
		if cx.FailFast() && len(faults) > 0 {
			return faults[0]
		}
	}
	return nil
}
