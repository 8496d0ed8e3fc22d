// Package entities turns syntax into facts. Each Create function stages the
// facts of one entity on an extraction batch; CreateCase and CreateSwitch
// own their batches and commit them only when the whole entity succeeded.
package entities

import (
	"fmt"

	"switchfacts/internal/extraction"
	"switchfacts/internal/logging"
	"switchfacts/internal/semantic"
	"switchfacts/internal/syntax"
	"switchfacts/internal/types"
)

// Child slots of a case statement.
const (
	SlotPayload = 0 // label value, constant pattern or variable declaration
	SlotType    = 1 // explicit or synthetic type access
	SlotGuard   = 2 // when-clause
)

// Child is one child expression of a case.
type Child struct {
	Slot int
	ID   string
}

// Case is an extracted case branch. It is immutable once returned.
type Case struct {
	id       string
	switchID string
	index    int
	section  int
	shape    types.MangleAtom
	loc      string
	span     syntax.Span
	children []Child
}

func (c *Case) ID() string              { return c.id }
func (c *Case) SwitchID() string        { return c.switchID }
func (c *Case) Index() int              { return c.index }
func (c *Case) Shape() types.MangleAtom { return c.shape }
func (c *Case) Location() string        { return c.loc }
func (c *Case) Span() syntax.Span       { return c.span }

// Section returns the section ordinal, or -1 when created outside a switch
// section.
func (c *Case) Section() int { return c.section }

// Children returns the child expressions in creation order.
func (c *Case) Children() []Child { return append([]Child(nil), c.children...) }

// Child returns the child at slot.
func (c *Case) Child(slot int) (string, bool) {
	for _, ch := range c.children {
		if ch.Slot == slot {
			return ch.ID, true
		}
	}
	return "", false
}

// CaseOption adjusts CreateCase.
type CaseOption func(*Case)

// InSection records the section ordinal the label belongs to.
func InSection(i int) CaseOption {
	return func(c *Case) { c.section = i }
}

// CreateCase extracts one case label as a branch of parent at position
// child. On error nothing is emitted and no value is registered with parent.
func CreateCase(cx *extraction.Context, label syntax.Label, parent *Switch, child int, opts ...CaseOption) (*Case, error) {
	if label == nil {
		return nil, extraction.NewInternalError(extraction.UnhandledCaseShape, syntax.Span{File: cx.File}, "nil label")
	}
	if parent == nil {
		return nil, fmt.Errorf("case at %s: nil parent switch", label.Span())
	}

	c := &Case{
		id:       cx.ID("case", label.Span()),
		switchID: parent.ID(),
		index:    child,
		section:  -1,
		span:     label.Span(),
	}
	for _, opt := range opts {
		opt(c)
	}

	b := cx.Begin()
	c.loc = b.Location(label.Span())

	var (
		pending *LabelValue
		err     error
	)
	switch l := label.(type) {
	case *syntax.ValueLabel:
		c.shape = types.ShapeValue
		pending, err = populateValue(b, c, l)
	case *syntax.DefaultLabel:
		c.shape = types.ShapeDefault
	case *syntax.PatternLabel:
		c.shape = types.ShapePattern
		err = populatePattern(b, c, l)
	default:
		err = extraction.NewInternalError(extraction.UnhandledCaseShape, label.Span().WithFile(cx.File), "%T", label)
	}
	if err != nil {
		b.Discard()
		logging.ExtractDebug("case %d of switch %s rejected: %v", child, parent.ID(), err)
		return nil, err
	}

	b.Emit(types.PredStmt, c.id, types.StmtCase, parent.ID(), child, c.loc)
	b.Emit(types.PredCaseShape, c.id, c.shape)
	if c.section >= 0 {
		b.Emit(types.PredCaseSection, c.id, c.section)
	}
	if pending != nil && pending.Value.Valid() {
		b.Emit(types.PredSwitchLabelValue, parent.ID(), pending.Value.String(), c.id)
	}
	if err := b.Commit(); err != nil {
		return nil, fmt.Errorf("commit case %d: %w", child, err)
	}

	if pending != nil {
		parent.RegisterLabelValue(*pending)
	}
	parent.addCase(c)
	cx.CaseCreated(c.shape)
	return c, nil
}

func (c *Case) attach(slot int, id string) {
	c.children = append(c.children, Child{Slot: slot, ID: id})
}

// populateValue stages the label expression and returns the value to
// register with the switch. Non-constant values register the undefined
// Constant and get no switch_label_value fact.
func populateValue(b *extraction.Batch, c *Case, l *syntax.ValueLabel) (*LabelValue, error) {
	if l.Value == nil {
		return nil, extraction.NewInternalError(extraction.UnhandledCaseShape, l.Loc.WithFile(b.Context().File), "value label without value")
	}
	c.attach(SlotPayload, CreateExpr(b, l.Value, c.id, SlotPayload))

	v := b.Model().ConstantValue(l.Value)
	if !v.Valid() {
		logging.ExtractWarn("case label at %s is not a constant", l.Loc)
	}
	return &LabelValue{Value: v, Case: c.id}, nil
}

func populatePattern(b *extraction.Batch, c *Case, l *syntax.PatternLabel) error {
	switch p := l.Pattern.(type) {
	case *syntax.BindingPattern:
		populateBinding(b, c, p.Loc, syntax.NoExplicitType{}, p.VarKeyword, p.Designation)
	case *syntax.DeclarationPattern:
		populateBinding(b, c, p.Loc, p.Type, syntax.Span{}, p.Designation)
	case *syntax.ConstantPattern:
		if p.Value == nil {
			return extraction.NewInternalError(extraction.UnhandledPatternShape, p.Loc.WithFile(b.Context().File), "constant pattern without value")
		}
		c.attach(SlotPayload, CreateExpr(b, p.Value, c.id, SlotPayload))
	case *syntax.OtherPattern:
		return extraction.NewInternalError(extraction.UnhandledPatternShape, p.Loc.WithFile(b.Context().File), "%s", p.Kind)
	default:
		return extraction.NewInternalError(extraction.UnhandledPatternShape, l.Loc.WithFile(b.Context().File), "%T", l.Pattern)
	}

	if l.Guard != nil {
		c.attach(SlotGuard, CreateExpr(b, l.Guard, c.id, SlotGuard))
	}
	return nil
}

// populateBinding handles both binding forms. Written type syntax yields a
// type access at SlotType. When the designation declares a local, the
// declaration goes to SlotPayload; an inferred type additionally yields a
// synthetic type access at SlotType located at varKeyword.
func populateBinding(b *extraction.Batch, c *Case, pattern syntax.Span, ts syntax.TypeSyntax, varKeyword syntax.Span, d syntax.Designation) {
	explicit, isExplicit := ts.(syntax.ExplicitType)
	if isExplicit {
		c.attach(SlotType, CreateTypeAccess(b, explicit, c.id, SlotType))
	}

	if d == nil {
		return
	}
	sym, ok := b.Model().DeclaredSymbol(d)
	if !ok || sym == nil {
		return
	}

	t := sym.Type
	if t.Name == "" {
		t = semantic.UnknownType
	}
	typeID := b.Type(t)
	if !isExplicit {
		at := varKeyword
		if at.IsZero() {
			at = pattern
		}
		c.attach(SlotType, CreateSyntheticTypeAccess(b, t, at, c.id, SlotType))
	}
	c.attach(SlotPayload, CreateVariableDeclaration(b, sym, typeID, pattern, d.Span(), isExplicit, c.id, SlotPayload))
}
