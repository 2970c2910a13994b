package infer

import (
	"testing"

	"vela/internal/ir"
	"vela/internal/lattice"
)

func lit(kind ir.LitKind, v interface{}) *ir.Literal { return &ir.Literal{Kind: kind, Value: v} }

func TestBuildCallGraphSelfEdge(t *testing.T) {
	// function fact(n) = fact(n-1) — a single self-recursive function.
	body := &ir.Block{Stmts: []ir.Stmt{
		&ir.ReturnStmt{Value: &ir.CallExpr{
			Callee: &ir.VarRef{Name: "fact"},
			Args:   []ir.Arg{{Value: &ir.BinaryExpr{Op: "-", Left: &ir.VarRef{Name: "n"}, Right: lit(ir.LitInt, int64(1))}}},
		}},
	}}
	prog := &ir.Program{Functions: []*ir.Function{
		{Name: "fact", Params: []ir.Param{{Name: "n"}}, Body: body},
	}}
	prog.AssignIndices()

	cg := BuildCallGraph(prog)
	if !cg.Edges[0][0] {
		t.Fatal("fact should have a self-edge in the call graph")
	}
	sccs := DetectSCCs(cg)
	if len(sccs) != 1 || len(sccs[0]) != 1 {
		t.Fatalf("expected a single 1-node SCC, got %v", sccs)
	}
	if !IsRecursiveSCC(sccs[0], cg) {
		t.Error("a function with a self-edge should count as a recursive SCC")
	}
}

func TestSCCsInReverseTopologicalOrder(t *testing.T) {
	// caller() -> callee(), no cycle: callee should come before caller (leaves first).
	callerBody := &ir.Block{Stmts: []ir.Stmt{
		&ir.ReturnStmt{Value: &ir.CallExpr{Callee: &ir.VarRef{Name: "callee"}}},
	}}
	calleeBody := &ir.Block{Stmts: []ir.Stmt{
		&ir.ReturnStmt{Value: lit(ir.LitInt, int64(1))},
	}}
	prog := &ir.Program{Functions: []*ir.Function{
		{Name: "caller", Body: callerBody},
		{Name: "callee", Body: calleeBody},
	}}
	prog.AssignIndices()

	cg := BuildCallGraph(prog)
	sccs := DetectSCCs(cg)
	if len(sccs) != 2 {
		t.Fatalf("expected 2 singleton SCCs, got %d", len(sccs))
	}
	// callee (index 1) must appear before caller (index 0): leaves first.
	pos := map[int]int{}
	for i, scc := range sccs {
		pos[scc[0]] = i
	}
	if pos[1] >= pos[0] {
		t.Errorf("callee should precede caller in leaves-first order, got sccs=%v", sccs)
	}
}

// buildFibProgram mirrors spec.md §8 scenario 4:
//
//	function fib(n)
//	    if n <= 1; return n; end
//	    fib(n-1) + fib(n-2)
//	end
func buildFibProgram() *ir.Program {
	n := &ir.VarRef{Name: "n"}
	body := &ir.Block{Stmts: []ir.Stmt{
		&ir.IfStmt{
			Cond: &ir.BinaryExpr{Op: "<=", Left: n, Right: lit(ir.LitInt, int64(1))},
			Then: &ir.Block{Stmts: []ir.Stmt{&ir.ReturnStmt{Value: n}}},
		},
		&ir.ExprStmt{X: &ir.BinaryExpr{
			Op: "+",
			Left: &ir.CallExpr{Callee: &ir.VarRef{Name: "fib"}, Args: []ir.Arg{
				{Value: &ir.BinaryExpr{Op: "-", Left: n, Right: lit(ir.LitInt, int64(1))}},
			}},
			Right: &ir.CallExpr{Callee: &ir.VarRef{Name: "fib"}, Args: []ir.Arg{
				{Value: &ir.BinaryExpr{Op: "-", Left: n, Right: lit(ir.LitInt, int64(2))}},
			}},
		}},
	}}
	prog := &ir.Program{Functions: []*ir.Function{
		{Name: "fib", Params: []ir.Param{{Name: "n"}}, Body: body},
	}}
	prog.AssignIndices()
	return prog
}

func TestRecursiveFixpointTerminatesWithinMaxIter(t *testing.T) {
	prog := buildFibProgram()
	result := NewEngine(prog).InferAll()
	rt, ok := result.ReturnTypes[0]
	if !ok {
		t.Fatal("fib should have an inferred return type")
	}
	// Either it stabilizes on a concrete numeric join, or it widens to Top with a
	// recorded divergence diagnostic — both are sound outcomes per spec.md §4.3.
	if rt.Kind != lattice.KindTop && rt.Kind != lattice.KindConcrete && rt.Kind != lattice.KindUnion {
		t.Errorf("fib return type should be a concrete/union/Top lattice element, got %s", rt)
	}
	for _, d := range result.Diagnostics {
		if d.FunctionIndex != 0 {
			t.Errorf("unexpected diagnostic for function %d: %s", d.FunctionIndex, d.Message)
		}
	}
}

func TestInferenceNeverAborts(t *testing.T) {
	// Calling an undefined function should widen to Top rather than error —
	// spec.md §4.3's "inference never throws".
	body := &ir.Block{Stmts: []ir.Stmt{
		&ir.ReturnStmt{Value: &ir.CallExpr{Callee: &ir.VarRef{Name: "nonexistent"}}},
	}}
	prog := &ir.Program{Functions: []*ir.Function{{Name: "f", Body: body}}}
	prog.AssignIndices()

	result := NewEngine(prog).InferAll()
	if result.ReturnTypes[0].Kind != lattice.KindTop {
		t.Errorf("calling an undefined function should infer Top, got %s", result.ReturnTypes[0])
	}
}

func TestConstantFoldedArithmetic(t *testing.T) {
	// square(7): x*x where x is the untyped parameter — constant folding only
	// applies when the operand is itself a Const, so here we test a body with a
	// literal-only expression to exercise ConstEval through the engine.
	body := &ir.Block{Stmts: []ir.Stmt{
		&ir.ReturnStmt{Value: &ir.BinaryExpr{Op: "+", Left: lit(ir.LitInt, int64(1)), Right: lit(ir.LitInt, int64(2))}},
	}}
	prog := &ir.Program{Functions: []*ir.Function{{Name: "f", Body: body}}}
	prog.AssignIndices()

	result := NewEngine(prog).InferAll()
	rt := result.ReturnTypes[0]
	if rt.Kind != lattice.KindConst || rt.ConstValue != int64(3) {
		t.Errorf("1 + 2 should constant-fold to Const(3), got %s", rt)
	}
}
