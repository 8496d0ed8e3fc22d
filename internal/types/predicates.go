package types

// Predicate names of the extracted fact schema. The declarations with their
// argument bounds live in internal/mangle/schema/switchfacts.mg.
const (
	PredSourceFile       = "source_file"
	PredLocation         = "location"
	PredStmt             = "stmt"
	PredCaseShape        = "case_shape"
	PredCaseSection      = "case_section"
	PredExpr             = "expr"
	PredExprValue        = "expr_value"
	PredExprOperator     = "expr_operator"
	PredExprName         = "expr_name"
	PredExprType         = "expr_type"
	PredType             = "named_type"
	PredTypeAccessSynth  = "type_access_synthetic"
	PredLocalVar         = "local_var"
	PredLocalVarDecl     = "local_var_decl"
	PredSwitchLabelValue = "switch_label_value"
	PredExtractionFault  = "extraction_fault"
)

// Statement kinds.
const (
	StmtSwitch MangleAtom = "/switch"
	StmtCase   MangleAtom = "/case"
)

// Case shapes.
const (
	ShapeValue   MangleAtom = "/value"
	ShapeDefault MangleAtom = "/default"
	ShapePattern MangleAtom = "/pattern"
)

// Expression kinds.
const (
	ExprIntLiteral    MangleAtom = "/int_literal"
	ExprRealLiteral   MangleAtom = "/real_literal"
	ExprStringLiteral MangleAtom = "/string_literal"
	ExprCharLiteral   MangleAtom = "/char_literal"
	ExprBoolLiteral   MangleAtom = "/bool_literal"
	ExprNullLiteral   MangleAtom = "/null_literal"
	ExprName          MangleAtom = "/name_access"
	ExprUnary         MangleAtom = "/unary"
	ExprBinary        MangleAtom = "/binary"
	ExprParen         MangleAtom = "/paren"
	ExprUnknown       MangleAtom = "/unknown"
	ExprTypeAccess    MangleAtom = "/type_access"
	ExprLocalVarDecl  MangleAtom = "/local_var_decl"
)
