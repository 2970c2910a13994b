package aot

import (
	"strings"
	"testing"

	vela "vela/internal/ir"
)

func TestEmitFunctionAbs(t *testing.T) {
	fn := &vela.Function{
		Name:       "abs",
		Params:     []vela.Param{{Name: "x", Type: &vela.TypeExpr{Name: "Int64"}}},
		ReturnType: &vela.TypeExpr{Name: "Int64"},
		Body: &vela.Block{Stmts: []vela.Stmt{
			&vela.IfStmt{
				Cond: &vela.BinaryExpr{Op: "<", Left: &vela.VarRef{Name: "x"}, Right: &vela.Literal{Kind: vela.LitInt, Value: int64(0)}},
				Then: &vela.Block{Stmts: []vela.Stmt{&vela.ReturnStmt{Value: &vela.UnaryExpr{Op: "-", Operand: &vela.VarRef{Name: "x"}}}}},
				Else: &vela.Block{Stmts: []vela.Stmt{&vela.ReturnStmt{Value: &vela.VarRef{Name: "x"}}}},
			},
		}},
	}

	g := New()
	if _, err := g.EmitFunction(fn); err != nil {
		t.Fatalf("emit: %v", err)
	}
	text := g.String()
	if !strings.Contains(text, "define") || !strings.Contains(text, "abs") {
		t.Fatalf("expected emitted IR to define abs, got:\n%s", text)
	}
}

func TestEmitFunctionRejectsUnsupportedType(t *testing.T) {
	fn := &vela.Function{
		Name:       "f",
		ReturnType: &vela.TypeExpr{Name: "Any"},
		Body:       &vela.Block{},
	}
	g := New()
	if _, err := g.EmitFunction(fn); err == nil {
		t.Fatal("expected an unsupported-type codegen error")
	}
}

func TestEmitFunctionRequiresTerminatingReturn(t *testing.T) {
	fn := &vela.Function{
		Name:       "f",
		ReturnType: &vela.TypeExpr{Name: "Int64"},
		Body:       &vela.Block{Stmts: []vela.Stmt{&vela.ExprStmt{X: &vela.Literal{Kind: vela.LitInt, Value: int64(1)}}}},
	}
	g := New()
	if _, err := g.EmitFunction(fn); err == nil {
		t.Fatal("expected a missing-terminating-return error")
	}
}
