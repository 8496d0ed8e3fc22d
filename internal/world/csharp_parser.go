package world

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"

	"switchfacts/internal/logging"
	"switchfacts/internal/semantic"
	"switchfacts/internal/syntax"
)

// CSharpParser implements SwitchParser for C# source files using Tree-sitter.
//
// Type information is approximated from declarations in the same file:
// parameters, locals and fields give identifiers their declared type, and
// const declarations give names a folded value. Nothing is resolved across
// files.
type CSharpParser struct{}

// NewCSharpParser creates a new C# parser.
func NewCSharpParser() *CSharpParser {
	return &CSharpParser{}
}

// Language returns "cs".
func (p *CSharpParser) Language() string {
	return "cs"
}

// SupportedExtensions returns [".cs"].
func (p *CSharpParser) SupportedExtensions() []string {
	return []string{".cs"}
}

// Parse extracts switch statements from C# source code.
func (p *CSharpParser) Parse(ctx context.Context, path string, content []byte) (*ParseResult, error) {
	start := time.Now()
	logging.FrontendDebug("CSharpParser: parsing file: %s", filepath.Base(path))

	// sitter.Parser is not safe for concurrent use; one per call.
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(csharp.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		logging.Get(logging.CategoryFrontend).Error("CSharpParser: parse failed: %s - %v", path, err)
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	c := &csConverter{
		path:      path,
		src:       content,
		table:     semantic.NewTable(),
		declTypes: make(map[string]string),
		consts:    make(map[string]*sitter.Node),
		constVals: make(map[string]semantic.Constant),
		resolving: make(map[string]bool),
	}
	root := tree.RootNode()
	c.collectDeclarations(root)

	file := &syntax.File{Path: path}
	c.walkSwitches(root, file)

	result := &ParseResult{File: file, Model: c.table}
	if root.HasError() {
		result.Errors = collectErrors(root)
	}

	logging.FrontendDebug("CSharpParser: parsed %s - %d switches, %d symbols in %v",
		filepath.Base(path), len(file.Switches), c.table.Symbols(), time.Since(start))
	return result, nil
}

// csConverter carries per-file state while lowering a Tree-sitter tree.
type csConverter struct {
	path  string
	src   []byte
	table *semantic.Table

	declTypes map[string]string       // identifier -> declared type text
	consts    map[string]*sitter.Node // const name -> initializer
	constVals map[string]semantic.Constant
	resolving map[string]bool
}

func (c *csConverter) span(n *sitter.Node) syntax.Span {
	s, e := n.StartPoint(), n.EndPoint()
	return syntax.Span{
		File:      c.path,
		StartLine: int(s.Row) + 1,
		StartCol:  int(s.Column) + 1,
		EndLine:   int(e.Row) + 1,
		EndCol:    int(e.Column) + 1,
	}
}

func (c *csConverter) spanBetween(from, to *sitter.Node) syntax.Span {
	s := c.span(from)
	e := c.span(to)
	s.EndLine, s.EndCol = e.EndLine, e.EndCol
	return s
}

func (c *csConverter) text(n *sitter.Node) string {
	return n.Content(c.src)
}

// =============================================================================
// DECLARATIONS
// =============================================================================

func (c *csConverter) collectDeclarations(n *sitter.Node) {
	switch n.Type() {
	case "parameter":
		typeNode := n.ChildByFieldName("type")
		nameNode := n.ChildByFieldName("name")
		if typeNode != nil && nameNode != nil {
			c.declTypes[c.text(nameNode)] = c.text(typeNode)
		}
	case "variable_declaration":
		c.collectVariableDeclaration(n)
	}
	for _, child := range namedChildren(n) {
		c.collectDeclarations(child)
	}
}

func (c *csConverter) collectVariableDeclaration(n *sitter.Node) {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		typeNode = n.NamedChild(0)
	}
	isConst := false
	if parent := n.Parent(); parent != nil {
		for _, child := range allChildren(parent) {
			if c.text(child) == "const" {
				isConst = true
				break
			}
		}
	}

	for _, decl := range namedChildren(n) {
		if decl.Type() != "variable_declarator" {
			continue
		}
		name, init := c.declarator(decl)
		if name == "" {
			continue
		}
		if typeNode != nil && typeNode.Type() != "implicit_type" && c.text(typeNode) != "var" {
			c.declTypes[name] = c.text(typeNode)
		} else if init != nil {
			if t, ok := literalType(init.Type()); ok {
				c.declTypes[name] = t
			}
		}
		if isConst && init != nil {
			c.consts[name] = init
		}
	}
}

// declarator returns the declared name and initializer of a variable_declarator.
func (c *csConverter) declarator(n *sitter.Node) (string, *sitter.Node) {
	var name string
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		name = c.text(nameNode)
	}
	var init *sitter.Node
	afterEquals := false
	for _, child := range allChildren(n) {
		switch {
		case child.Type() == "identifier" && name == "":
			name = c.text(child)
		case child.Type() == "equals_value_clause":
			init = child.NamedChild(0)
		case !child.IsNamed() && c.text(child) == "=":
			afterEquals = true
		case afterEquals && child.IsNamed() && init == nil:
			init = child
		}
	}
	return name, init
}

// constValue folds the initializer of a named constant. Cycles and unknown
// names yield the undefined constant.
func (c *csConverter) constValue(name string) semantic.Constant {
	if v, ok := c.constVals[name]; ok {
		return v
	}
	init, ok := c.consts[name]
	if !ok || c.resolving[name] {
		return semantic.Constant{}
	}
	c.resolving[name] = true
	v := c.table.ConstantValue(c.expr(init))
	delete(c.resolving, name)
	c.constVals[name] = v
	return v
}

// typeOf approximates the static type of a governing expression.
func (c *csConverter) typeOf(n *sitter.Node) semantic.Type {
	if n == nil {
		return semantic.UnknownType
	}
	for n.Type() == "parenthesized_expression" && n.NamedChildCount() > 0 {
		n = n.NamedChild(0)
	}
	if t, ok := literalType(n.Type()); ok {
		return semantic.Type{Name: t}
	}
	if n.Type() == "identifier" {
		if t, ok := c.declTypes[c.text(n)]; ok {
			return semantic.Type{Name: t}
		}
	}
	return semantic.UnknownType
}

func literalType(nodeType string) (string, bool) {
	switch nodeType {
	case "integer_literal":
		return "int", true
	case "real_literal":
		return "double", true
	case "string_literal", "verbatim_string_literal", "raw_string_literal":
		return "string", true
	case "character_literal":
		return "char", true
	case "boolean_literal":
		return "bool", true
	}
	return "", false
}

// =============================================================================
// SWITCH STATEMENTS
// =============================================================================

// walkSwitches appends switch statements in source order, outer before inner.
func (c *csConverter) walkSwitches(n *sitter.Node, file *syntax.File) {
	if n.Type() == "switch_statement" {
		file.Switches = append(file.Switches, c.switchStatement(n))
	}
	for _, child := range namedChildren(n) {
		c.walkSwitches(child, file)
	}
}

func (c *csConverter) switchStatement(n *sitter.Node) *syntax.Switch {
	body := n.ChildByFieldName("body")
	if body == nil {
		for _, child := range namedChildren(n) {
			if child.Type() == "switch_body" || child.Type() == "switch_block" {
				body = child
			}
		}
	}
	value := n.ChildByFieldName("value")
	if value == nil {
		for _, child := range namedChildren(n) {
			if body == nil || !sameNode(child, body) {
				value = child
				break
			}
		}
	}

	sw := &syntax.Switch{Loc: c.span(n), Value: c.expr(value)}
	if body == nil {
		return sw
	}
	governing := c.typeOf(value)
	// The grammar ends a switch_section at each stacked label. C# has no
	// fall-through, so a section without statements belongs to the next one.
	var carried *syntax.Section
	for _, child := range namedChildren(body) {
		if child.Type() != "switch_section" {
			continue
		}
		sec, hasBody := c.section(child, governing)
		if carried != nil {
			carried.Labels = append(carried.Labels, sec.Labels...)
			carried.Loc.EndLine, carried.Loc.EndCol = sec.Loc.EndLine, sec.Loc.EndCol
			sec, carried = carried, nil
		}
		if !hasBody {
			carried = sec
			continue
		}
		sw.Sections = append(sw.Sections, sec)
	}
	if carried != nil {
		sw.Sections = append(sw.Sections, carried)
	}
	return sw
}

// section collects labels whether the grammar wraps them in label nodes or
// inlines the case/default tokens into the section. hasBody reports whether
// any statement follows the labels.
func (c *csConverter) section(n *sitter.Node, governing semantic.Type) (sec *syntax.Section, hasBody bool) {
	sec = &syntax.Section{Loc: c.span(n)}

	var (
		open  *sitter.Node
		parts []*sitter.Node
	)
	for _, child := range allChildren(n) {
		if open != nil {
			if !child.IsNamed() && child.Type() == ":" {
				sec.Labels = append(sec.Labels, c.label(open, parts, c.spanBetween(open, child), governing))
				open, parts = nil, nil
			} else if child.IsNamed() {
				parts = append(parts, child)
			}
			continue
		}
		switch child.Type() {
		case "case_switch_label", "case_pattern_switch_label":
			sec.Labels = append(sec.Labels, c.label(nil, namedChildren(child), c.span(child), governing))
		case "default_switch_label":
			sec.Labels = append(sec.Labels, &syntax.DefaultLabel{Loc: c.span(child)})
		case "case", "default":
			if !child.IsNamed() {
				open = child
			}
		case "comment":
		default:
			if child.IsNamed() {
				hasBody = true
			}
		}
	}
	return sec, hasBody
}

func (c *csConverter) label(keyword *sitter.Node, parts []*sitter.Node, loc syntax.Span, governing semantic.Type) syntax.Label {
	if keyword != nil && keyword.Type() == "default" {
		return &syntax.DefaultLabel{Loc: loc}
	}

	var main, when *sitter.Node
	for _, part := range parts {
		switch {
		case part.Type() == "when_clause":
			when = part
		case part.Type() == "comment":
		case main == nil:
			main = part
		}
	}
	if main == nil {
		return &syntax.OtherLabel{Loc: loc, Kind: "empty_case"}
	}

	var guard syntax.Expr
	if when != nil {
		guard = c.expr(lastNamed(when))
	}

	if main.Type() == "constant_pattern" {
		main = lastNamed(main)
		if main == nil {
			return &syntax.OtherLabel{Loc: loc, Kind: "constant_pattern"}
		}
	}
	// A bare name parses as a type pattern; it may just as well name a constant.
	if main.Type() == "type_pattern" && main.NamedChildCount() == 1 {
		switch inner := main.NamedChild(0); inner.Type() {
		case "identifier", "qualified_name":
			main = inner
		}
	}
	if isPatternNode(main.Type()) {
		return &syntax.PatternLabel{Loc: loc, Pattern: c.pattern(main, governing), Guard: guard}
	}

	value := c.expr(main)
	if guard == nil {
		return &syntax.ValueLabel{Loc: loc, Value: value}
	}
	return &syntax.PatternLabel{
		Loc:     loc,
		Pattern: &syntax.ConstantPattern{Loc: value.Span(), Value: value},
		Guard:   guard,
	}
}

func isPatternNode(t string) bool {
	switch t {
	case "declaration_pattern", "var_pattern", "discard", "recursive_pattern",
		"positional_pattern", "property_pattern", "relational_pattern",
		"negated_pattern", "and_pattern", "or_pattern", "binary_pattern",
		"parenthesized_pattern", "type_pattern", "list_pattern",
		"predefined_type", "array_type", "nullable_type", "tuple_type", "pointer_type":
		return true
	}
	return false
}

// =============================================================================
// PATTERNS
// =============================================================================

func (c *csConverter) pattern(n *sitter.Node, governing semantic.Type) syntax.Pattern {
	loc := c.span(n)
	switch n.Type() {
	case "declaration_pattern":
		typeNode := n.ChildByFieldName("type")
		if typeNode == nil {
			typeNode = n.NamedChild(0)
		}
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = lastNamed(n)
		}
		if typeNode == nil || nameNode == nil || sameNode(typeNode, nameNode) {
			return &syntax.OtherPattern{Loc: loc, Kind: "declaration_pattern"}
		}
		if typeNode.Type() == "implicit_type" || c.text(typeNode) == "var" {
			return &syntax.BindingPattern{
				Loc:         loc,
				VarKeyword:  c.span(typeNode),
				Designation: c.designation(nameNode, governing),
			}
		}
		declared := semantic.Type{Name: c.text(typeNode)}
		return &syntax.DeclarationPattern{
			Loc:         loc,
			Type:        syntax.ExplicitType{Name: declared.Name, Loc: c.span(typeNode)},
			Designation: c.designation(nameNode, declared),
		}

	case "var_pattern":
		var keyword syntax.Span
		if first := n.Child(0); first != nil && c.text(first) == "var" {
			keyword = c.span(first)
		}
		nameNode := lastNamed(n)
		if nameNode == nil {
			return &syntax.OtherPattern{Loc: loc, Kind: "var_pattern"}
		}
		return &syntax.BindingPattern{Loc: loc, VarKeyword: keyword, Designation: c.designation(nameNode, governing)}

	case "discard":
		return &syntax.OtherPattern{Loc: loc, Kind: "discard_pattern"}

	case "constant_pattern":
		if inner := lastNamed(n); inner != nil {
			v := c.expr(inner)
			return &syntax.ConstantPattern{Loc: loc, Value: v}
		}
	}
	return &syntax.OtherPattern{Loc: loc, Kind: n.Type()}
}

// designation converts a variable designation and declares single variables
// with type t.
func (c *csConverter) designation(n *sitter.Node, t semantic.Type) syntax.Designation {
	loc := c.span(n)
	name := c.text(n)
	switch {
	case n.Type() == "discard" || name == "_":
		return &syntax.Discard{Loc: loc}
	case n.Type() == "identifier":
		c.table.Declare(loc, &semantic.LocalSymbol{Name: name, Type: t, Span: loc})
		return &syntax.SingleVariable{Name: name, Loc: loc}
	default:
		return &syntax.TupleDesignation{Text: name, Loc: loc}
	}
}

// =============================================================================
// EXPRESSIONS
// =============================================================================

func (c *csConverter) expr(n *sitter.Node) syntax.Expr {
	if n == nil {
		return &syntax.OtherExpr{Kind: "missing"}
	}
	loc := c.span(n)
	text := c.text(n)

	switch n.Type() {
	case "integer_literal":
		return &syntax.Literal{Kind: syntax.IntLiteral, Text: text, Loc: loc}
	case "real_literal":
		return &syntax.Literal{Kind: syntax.RealLiteral, Text: text, Loc: loc}
	case "string_literal", "verbatim_string_literal":
		return &syntax.Literal{Kind: syntax.StringLiteral, Text: text, Loc: loc}
	case "character_literal":
		return &syntax.Literal{Kind: syntax.CharLiteral, Text: text, Loc: loc}
	case "boolean_literal":
		return &syntax.Literal{Kind: syntax.BoolLiteral, Text: text, Loc: loc}
	case "null_literal":
		return &syntax.Literal{Kind: syntax.NullLiteral, Text: text, Loc: loc}

	case "identifier", "member_access_expression", "qualified_name":
		name := &syntax.Name{Ident: text, Loc: loc}
		if _, ok := c.consts[text]; ok {
			if v := c.constValue(text); v.Valid() {
				c.table.SetConstant(loc, v)
			}
		}
		return name

	case "prefix_unary_expression":
		op := ""
		if opNode := n.ChildByFieldName("operator"); opNode != nil {
			op = c.text(opNode)
		} else if first := n.Child(0); first != nil && !first.IsNamed() {
			op = c.text(first)
		}
		operand := n.ChildByFieldName("operand")
		if operand == nil {
			operand = lastNamed(n)
		}
		return &syntax.Unary{Op: op, Operand: c.expr(operand), Loc: loc}

	case "binary_expression":
		left := n.ChildByFieldName("left")
		right := n.ChildByFieldName("right")
		op := ""
		if opNode := n.ChildByFieldName("operator"); opNode != nil {
			op = c.text(opNode)
		} else if n.ChildCount() == 3 {
			op = c.text(n.Child(1))
		}
		if left == nil || right == nil {
			break
		}
		return &syntax.Binary{Op: op, Left: c.expr(left), Right: c.expr(right), Loc: loc}

	case "parenthesized_expression":
		return &syntax.Paren{Inner: c.expr(n.NamedChild(0)), Loc: loc}
	}
	return &syntax.OtherExpr{Kind: n.Type(), Text: text, Loc: loc}
}

// =============================================================================
// NODE HELPERS
// =============================================================================

func allChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.ChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if child := n.Child(i); child != nil {
			out = append(out, child)
		}
	}
	return out
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		if child := n.NamedChild(i); child != nil {
			out = append(out, child)
		}
	}
	return out
}

func lastNamed(n *sitter.Node) *sitter.Node {
	if n == nil || n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(int(n.NamedChildCount()) - 1)
}

func collectErrors(root *sitter.Node) []ParseError {
	var errs []ParseError
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.IsError() || n.IsMissing() {
			p := n.StartPoint()
			msg := "syntax error"
			if n.IsMissing() {
				msg = "missing " + n.Type()
			}
			errs = append(errs, ParseError{Line: int(p.Row) + 1, Column: int(p.Column) + 1, Message: msg})
			return
		}
		for _, child := range allChildren(n) {
			walk(child)
		}
	}
	walk(root)
	return errs
}

// sameNode compares nodes by position and type; Tree-sitter hands out
// fresh *Node values on each accessor call.
func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}
