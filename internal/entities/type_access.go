package entities

import (
	"switchfacts/internal/extraction"
	"switchfacts/internal/semantic"
	"switchfacts/internal/syntax"
	"switchfacts/internal/types"
)

// CreateTypeAccess stages a type-reference expression for written type
// syntax.
func CreateTypeAccess(b *extraction.Batch, t syntax.ExplicitType, parent string, child int) string {
	id := b.ID(string(types.ExprTypeAccess), t.Loc)
	typeID := b.Type(semantic.Type{Name: t.Name})
	b.Emit(types.PredExpr, id, types.ExprTypeAccess, parent, child, b.Location(t.Loc))
	b.Emit(types.PredExprType, id, typeID)
	return id
}

// CreateSyntheticTypeAccess stages a type-reference expression that has no
// written syntax, such as the inferred type behind `var`. It is located at
// the span the type stands in for.
func CreateSyntheticTypeAccess(b *extraction.Batch, t semantic.Type, at syntax.Span, parent string, child int) string {
	id := b.ID("synthetic_type_access", at)
	typeID := b.Type(t)
	b.Emit(types.PredExpr, id, types.ExprTypeAccess, parent, child, b.Location(at))
	b.Emit(types.PredExprType, id, typeID)
	b.Emit(types.PredTypeAccessSynth, id)
	return id
}
