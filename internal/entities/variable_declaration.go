package entities

import (
	"switchfacts/internal/extraction"
	"switchfacts/internal/semantic"
	"switchfacts/internal/syntax"
	"switchfacts/internal/types"
)

// CreateVariableDeclaration stages the declaration expression for a pattern
// binding plus the local variable it introduces. The expression sits at the
// pattern's span; the variable at the designation's. explicit records
// whether the type was written or inferred.
func CreateVariableDeclaration(
	b *extraction.Batch,
	sym *semantic.LocalSymbol,
	typeID string,
	pattern, designation syntax.Span,
	explicit bool,
	parent string,
	child int,
) string {
	exprID := b.ID(string(types.ExprLocalVarDecl), pattern)
	varID := b.ID("local_var", designation)

	b.Emit(types.PredExpr, exprID, types.ExprLocalVarDecl, parent, child, b.Location(pattern))
	b.Emit(types.PredExprType, exprID, typeID)

	designationLoc := b.Location(designation)
	b.Emit(types.PredLocalVar, varID, sym.Name, typeID, designationLoc)
	b.Emit(types.PredLocalVarDecl, exprID, varID, types.Bool(explicit), designationLoc)
	return exprID
}
