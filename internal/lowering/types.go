package lowering

import "vela/internal/ir"

// parseTypeExpr parses a flat type annotation string produced by
// internal/parser (e.g. "Int64", "Array{Float64}", "Dict{String,Int64}")
// into an ir.TypeExpr. The surface grammar doesn't nest parametric type
// syntax through its own AST nodes (parser.FunctionStmt.ParamTypes is a
// plain string slice), so lowering carries the small recursive-descent
// parse needed to recover the parametric shape spec.md §3.1's TypeExpr
// expects.
func parseTypeExpr(s string) *ir.TypeExpr {
	t, _ := parseTypeExprAt(s, 0)
	return t
}

func parseTypeExprAt(s string, i int) (*ir.TypeExpr, int) {
	start := i
	for i < len(s) && s[i] != '{' && s[i] != ',' && s[i] != '}' {
		i++
	}
	name := s[start:i]
	te := &ir.TypeExpr{Name: name}
	if i < len(s) && s[i] == '{' {
		i++
		for i < len(s) && s[i] != '}' {
			var arg *ir.TypeExpr
			arg, i = parseTypeExprAt(s, i)
			te.Args = append(te.Args, arg)
			if i < len(s) && s[i] == ',' {
				i++
			}
		}
		if i < len(s) && s[i] == '}' {
			i++
		}
	}
	return te, i
}
