package entities

import (
	"switchfacts/internal/extraction"
	"switchfacts/internal/syntax"
	"switchfacts/internal/types"
)

var literalKinds = map[syntax.LiteralKind]types.MangleAtom{
	syntax.IntLiteral:    types.ExprIntLiteral,
	syntax.RealLiteral:   types.ExprRealLiteral,
	syntax.StringLiteral: types.ExprStringLiteral,
	syntax.CharLiteral:   types.ExprCharLiteral,
	syntax.BoolLiteral:   types.ExprBoolLiteral,
	syntax.NullLiteral:   types.ExprNullLiteral,
}

// CreateExpr stages the facts for e, attached to parent at child, and
// returns its identity. Operands are created recursively: a unary operand
// and a parenthesised inner expression at 0, binary operands at 0 and 1.
func CreateExpr(b *extraction.Batch, e syntax.Expr, parent string, child int) string {
	var kind types.MangleAtom
	switch x := e.(type) {
	case *syntax.Literal:
		kind = literalKinds[x.Kind]
		if kind == "" {
			kind = types.ExprUnknown
		}
	case *syntax.Name:
		kind = types.ExprName
	case *syntax.Unary:
		kind = types.ExprUnary
	case *syntax.Binary:
		kind = types.ExprBinary
	case *syntax.Paren:
		kind = types.ExprParen
	default:
		kind = types.ExprUnknown
	}

	id := b.ID(string(kind), e.Span())
	b.Emit(types.PredExpr, id, kind, parent, child, b.Location(e.Span()))

	switch x := e.(type) {
	case *syntax.Literal:
		b.Emit(types.PredExprValue, id, x.Text)
	case *syntax.Name:
		b.Emit(types.PredExprName, id, x.Ident)
	case *syntax.Unary:
		b.Emit(types.PredExprOperator, id, x.Op)
		if x.Operand != nil {
			CreateExpr(b, x.Operand, id, 0)
		}
	case *syntax.Binary:
		b.Emit(types.PredExprOperator, id, x.Op)
		if x.Left != nil {
			CreateExpr(b, x.Left, id, 0)
		}
		if x.Right != nil {
			CreateExpr(b, x.Right, id, 1)
		}
	case *syntax.Paren:
		if x.Inner != nil {
			CreateExpr(b, x.Inner, id, 0)
		}
	case *syntax.OtherExpr:
		b.Emit(types.PredExprValue, id, x.Text)
	}

	if c := b.Model().ConstantValue(e); c.Valid() {
		// Folded value of a non-literal constant, e.g. `-1` or `A | B`.
		if _, isLit := e.(*syntax.Literal); !isLit {
			b.Emit(types.PredExprValue, id, c.String())
		}
	}
	return id
}
