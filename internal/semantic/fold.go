package semantic

import (
	"math"
	"strconv"
	"strings"

	"switchfacts/internal/syntax"
)

// Lookup returns a recorded value for e, overriding folding.
type Lookup func(e syntax.Expr) (Constant, bool)

// Fold evaluates e as a C# constant expression. Names only fold when lookup
// knows them. Overflow, division by zero and unsupported operators yield the
// zero Constant.
func Fold(e syntax.Expr, lookup Lookup) Constant {
	if e == nil {
		return Constant{}
	}
	if lookup != nil {
		if c, ok := lookup(e); ok {
			return c
		}
	}
	switch x := e.(type) {
	case *syntax.Literal:
		return foldLiteral(x)
	case *syntax.Paren:
		return Fold(x.Inner, lookup)
	case *syntax.Unary:
		return foldUnary(x.Op, Fold(x.Operand, lookup))
	case *syntax.Binary:
		l := Fold(x.Left, lookup)
		if !l.Valid() {
			return Constant{}
		}
		r := Fold(x.Right, lookup)
		if !r.Valid() {
			return Constant{}
		}
		return foldBinary(x.Op, l, r)
	default:
		return Constant{}
	}
}

func foldLiteral(l *syntax.Literal) Constant {
	switch l.Kind {
	case syntax.IntLiteral:
		if n, ok := parseInt(l.Text); ok {
			return intConst(n)
		}
	case syntax.RealLiteral:
		if f, ok := parseReal(l.Text); ok {
			return realConst(f)
		}
	case syntax.StringLiteral:
		if s, ok := unquoteString(l.Text); ok {
			return Constant{Kind: StringConstant, Text: s}
		}
	case syntax.CharLiteral:
		if s, ok := unquoteChar(l.Text); ok {
			return Constant{Kind: CharConstant, Text: s}
		}
	case syntax.BoolLiteral:
		switch l.Text {
		case "true", "false":
			return Constant{Kind: BoolConstant, Text: l.Text}
		}
	case syntax.NullLiteral:
		return Constant{Kind: NullConstant, Text: "null"}
	}
	return Constant{}
}

func parseInt(text string) (int64, bool) {
	s := strings.ReplaceAll(text, "_", "")
	s = strings.TrimRight(s, "uUlL")
	base := 10
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		base, s = 16, s[2:]
	case strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B"):
		base, s = 2, s[2:]
	}
	u, err := strconv.ParseUint(s, base, 64)
	if err != nil || u > math.MaxInt64 {
		return 0, false
	}
	return int64(u), true
}

func parseReal(text string) (float64, bool) {
	s := strings.ReplaceAll(text, "_", "")
	s = strings.TrimRight(s, "fFdDmM")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func unquoteString(text string) (string, bool) {
	switch {
	case strings.HasPrefix(text, `@"`) && strings.HasSuffix(text, `"`) && len(text) >= 3:
		return strings.ReplaceAll(text[2:len(text)-1], `""`, `"`), true
	case strings.HasPrefix(text, `"`):
		s, err := strconv.Unquote(text)
		if err != nil {
			return "", false
		}
		return s, true
	}
	return "", false
}

func unquoteChar(text string) (string, bool) {
	r, _, tail, err := strconv.UnquoteChar(strings.TrimSuffix(strings.TrimPrefix(text, "'"), "'"), '\'')
	if err != nil || tail != "" {
		return "", false
	}
	return string(r), true
}

func intConst(n int64) Constant {
	return Constant{Kind: IntConstant, Text: strconv.FormatInt(n, 10)}
}

func realConst(f float64) Constant {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return Constant{}
	}
	return Constant{Kind: RealConstant, Text: strconv.FormatFloat(f, 'g', -1, 64)}
}

func boolConst(b bool) Constant {
	return Constant{Kind: BoolConstant, Text: strconv.FormatBool(b)}
}

func (c Constant) asInt() int64 {
	n, _ := strconv.ParseInt(c.Text, 10, 64)
	return n
}

func (c Constant) asReal() float64 {
	f, _ := strconv.ParseFloat(c.Text, 64)
	return f
}

func (c Constant) numeric() bool {
	return c.Kind == IntConstant || c.Kind == RealConstant
}

func foldUnary(op string, v Constant) Constant {
	if !v.Valid() {
		return Constant{}
	}
	switch {
	case op == "!" && v.Kind == BoolConstant:
		return boolConst(v.Text != "true")
	case op == "+" && v.numeric():
		return v
	case op == "-" && v.Kind == IntConstant:
		n := v.asInt()
		if n == math.MinInt64 {
			return Constant{}
		}
		return intConst(-n)
	case op == "-" && v.Kind == RealConstant:
		return realConst(-v.asReal())
	case op == "~" && v.Kind == IntConstant:
		return intConst(^v.asInt())
	}
	return Constant{}
}

func foldBinary(op string, l, r Constant) Constant {
	switch {
	case l.Kind == IntConstant && r.Kind == IntConstant:
		return foldInts(op, l.asInt(), r.asInt())
	case l.numeric() && r.numeric():
		return foldReals(op, l.asReal(), r.asReal())
	case l.Kind == BoolConstant && r.Kind == BoolConstant:
		a, b := l.Text == "true", r.Text == "true"
		switch op {
		case "&&", "&":
			return boolConst(a && b)
		case "||", "|":
			return boolConst(a || b)
		case "^", "!=":
			return boolConst(a != b)
		case "==":
			return boolConst(a == b)
		}
	case l.Kind == StringConstant && r.Kind == StringConstant:
		switch op {
		case "+":
			return Constant{Kind: StringConstant, Text: l.Text + r.Text}
		case "==":
			return boolConst(l.Text == r.Text)
		case "!=":
			return boolConst(l.Text != r.Text)
		}
	}
	return Constant{}
}

func foldInts(op string, a, b int64) Constant {
	switch op {
	case "+":
		s := a + b
		if (s > a) != (b > 0) {
			return Constant{}
		}
		return intConst(s)
	case "-":
		d := a - b
		if (d < a) != (b > 0) {
			return Constant{}
		}
		return intConst(d)
	case "*":
		if a != 0 && b != 0 {
			p := a * b
			if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
				return Constant{}
			}
			return intConst(p)
		}
		return intConst(0)
	case "/", "%":
		if b == 0 || (a == math.MinInt64 && b == -1) {
			return Constant{}
		}
		if op == "/" {
			return intConst(a / b)
		}
		return intConst(a % b)
	case "&":
		return intConst(a & b)
	case "|":
		return intConst(a | b)
	case "^":
		return intConst(a ^ b)
	case "<<", ">>":
		if b < 0 || b > 63 {
			return Constant{}
		}
		if op == "<<" {
			return intConst(a << uint(b))
		}
		return intConst(a >> uint(b))
	}
	return compare(op, float64(a), float64(b))
}

func foldReals(op string, a, b float64) Constant {
	switch op {
	case "+":
		return realConst(a + b)
	case "-":
		return realConst(a - b)
	case "*":
		return realConst(a * b)
	case "/":
		if b == 0 {
			return Constant{}
		}
		return realConst(a / b)
	}
	return compare(op, a, b)
}

func compare(op string, a, b float64) Constant {
	switch op {
	case "==":
		return boolConst(a == b)
	case "!=":
		return boolConst(a != b)
	case "<":
		return boolConst(a < b)
	case "<=":
		return boolConst(a <= b)
	case ">":
		return boolConst(a > b)
	case ">=":
		return boolConst(a >= b)
	}
	return Constant{}
}
