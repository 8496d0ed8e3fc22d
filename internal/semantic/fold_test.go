package semantic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"switchfacts/internal/syntax"
)

func lit(kind syntax.LiteralKind, text string) *syntax.Literal {
	return &syntax.Literal{Kind: kind, Text: text}
}

func TestFoldLiterals(t *testing.T) {
	tests := []struct {
		name string
		expr syntax.Expr
		want Constant
	}{
		{"decimal", lit(syntax.IntLiteral, "42"), Constant{IntConstant, "42"}},
		{"hex with suffix", lit(syntax.IntLiteral, "0xFFu"), Constant{IntConstant, "255"}},
		{"binary with separators", lit(syntax.IntLiteral, "0b1_0_1"), Constant{IntConstant, "5"}},
		{"long suffix", lit(syntax.IntLiteral, "7L"), Constant{IntConstant, "7"}},
		{"real", lit(syntax.RealLiteral, "1.5f"), Constant{RealConstant, "1.5"}},
		{"string", lit(syntax.StringLiteral, `"a\tb"`), Constant{StringConstant, "a\tb"}},
		{"verbatim string", lit(syntax.StringLiteral, `@"say ""hi"""`), Constant{StringConstant, `say "hi"`}},
		{"char", lit(syntax.CharLiteral, `'x'`), Constant{CharConstant, "x"}},
		{"escaped char", lit(syntax.CharLiteral, `'\n'`), Constant{CharConstant, "\n"}},
		{"bool", lit(syntax.BoolLiteral, "true"), Constant{BoolConstant, "true"}},
		{"null", lit(syntax.NullLiteral, "null"), Constant{NullConstant, "null"}},
		{"garbage int", lit(syntax.IntLiteral, "12abc"), Constant{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Fold(tt.expr, nil))
		})
	}
}

func TestFoldOperators(t *testing.T) {
	one := lit(syntax.IntLiteral, "1")
	two := lit(syntax.IntLiteral, "2")
	zero := lit(syntax.IntLiteral, "0")

	tests := []struct {
		name string
		expr syntax.Expr
		want Constant
	}{
		{"negation", &syntax.Unary{Op: "-", Operand: two}, Constant{IntConstant, "-2"}},
		{"complement", &syntax.Unary{Op: "~", Operand: zero}, Constant{IntConstant, "-1"}},
		{"not", &syntax.Unary{Op: "!", Operand: lit(syntax.BoolLiteral, "false")}, Constant{BoolConstant, "true"}},
		{"sum", &syntax.Binary{Op: "+", Left: one, Right: two}, Constant{IntConstant, "3"}},
		{"shift", &syntax.Binary{Op: "<<", Left: one, Right: lit(syntax.IntLiteral, "4")}, Constant{IntConstant, "16"}},
		{"paren", &syntax.Paren{Inner: &syntax.Binary{Op: "*", Left: two, Right: two}}, Constant{IntConstant, "4"}},
		{"mixed numeric", &syntax.Binary{Op: "+", Left: one, Right: lit(syntax.RealLiteral, "0.5")}, Constant{RealConstant, "1.5"}},
		{"comparison", &syntax.Binary{Op: "<", Left: one, Right: two}, Constant{BoolConstant, "true"}},
		{"concat", &syntax.Binary{Op: "+", Left: lit(syntax.StringLiteral, `"a"`), Right: lit(syntax.StringLiteral, `"b"`)}, Constant{StringConstant, "ab"}},
		{"division by zero", &syntax.Binary{Op: "/", Left: one, Right: zero}, Constant{}},
		{"overflow", &syntax.Binary{Op: "+", Left: lit(syntax.IntLiteral, "9223372036854775807"), Right: one}, Constant{}},
		{"unbound name", &syntax.Name{Ident: "x"}, Constant{}},
		{"name in operand", &syntax.Binary{Op: "+", Left: &syntax.Name{Ident: "x"}, Right: one}, Constant{}},
		{"other", &syntax.OtherExpr{Kind: "invocation_expression", Text: "f()"}, Constant{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fold(tt.expr, nil)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.want.Kind != "", got.Valid())
		})
	}
}

func TestFoldLookupOverrides(t *testing.T) {
	k := &syntax.Name{Ident: "K", Loc: syntax.Span{StartLine: 3, StartCol: 10, EndLine: 3, EndCol: 11}}
	lookup := func(e syntax.Expr) (Constant, bool) {
		if e.Span() == k.Loc {
			return Constant{IntConstant, "10"}, true
		}
		return Constant{}, false
	}

	got := Fold(&syntax.Binary{Op: "+", Left: k, Right: lit(syntax.IntLiteral, "1")}, lookup)
	require.Equal(t, Constant{IntConstant, "11"}, got)
}

func TestConstantString(t *testing.T) {
	require.Equal(t, "5", Constant{IntConstant, "5"}.String())
	require.Equal(t, `"a\"b"`, Constant{StringConstant, `a"b`}.String())
	require.Equal(t, `'x'`, Constant{CharConstant, "x"}.String())
	require.Equal(t, "<undefined>", Constant{}.String())
}
