// Package infer implements interprocedural type inference (spec.md §4.3): call
// graph construction, Tarjan SCC detection, and the worklist fixpoint driver with
// widening. Grounded on the original Rust engine's worklist shape
// (original_source/subset_julia_vm/src/compile/ipo/{worklist,recursion,cache}.rs)
// adapted into idiomatic Go.
package infer

import "vela/internal/ir"

// CallGraph has one node per function index; edges are call sites discovered by
// walking function bodies (self-calls produce self-edges).
type CallGraph struct {
	Program *ir.Program
	Edges   map[int]map[int]bool // caller index -> set of callee indices
}

// BuildCallGraph walks every function body collecting CallExpr sites whose callee
// is a simple name that resolves (by name only — overload resolution happens
// later in internal/dispatch) to at least one function in the program.
func BuildCallGraph(p *ir.Program) *CallGraph {
	cg := &CallGraph{Program: p, Edges: make(map[int]map[int]bool)}
	byName := map[string][]int{}
	for _, f := range p.Functions {
		byName[f.Name] = append(byName[f.Name], f.Index)
	}
	for _, f := range p.Functions {
		cg.Edges[f.Index] = map[int]bool{}
		walkBlock(f.Body, func(name string) {
			for _, callee := range byName[name] {
				cg.Edges[f.Index][callee] = true
			}
		})
	}
	return cg
}

func walkBlock(b *ir.Block, onCall func(name string)) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		walkStmt(s, onCall)
	}
}

func walkStmt(s ir.Stmt, onCall func(name string)) {
	switch st := s.(type) {
	case *ir.LetStmt:
		walkExpr(st.Initializer, onCall)
	case *ir.AssignStmt:
		walkExpr(st.Value, onCall)
	case *ir.CompoundAssignStmt:
		walkExpr(st.Value, onCall)
	case *ir.ExprStmt:
		walkExpr(st.X, onCall)
	case *ir.ReturnStmt:
		walkExpr(st.Value, onCall)
	case *ir.IfStmt:
		walkExpr(st.Cond, onCall)
		walkBlock(st.Then, onCall)
		walkBlock(st.Else, onCall)
	case *ir.WhileStmt:
		walkExpr(st.Cond, onCall)
		walkBlock(st.Body, onCall)
	case *ir.ForRangeStmt:
		walkExpr(st.Start, onCall)
		walkExpr(st.Stop, onCall)
		walkExpr(st.Step, onCall)
		walkBlock(st.Body, onCall)
	case *ir.ForEachStmt:
		walkExpr(st.Iter, onCall)
		walkBlock(st.Body, onCall)
	case *ir.TryStmt:
		walkBlock(st.TryBlock, onCall)
		walkBlock(st.CatchBlock, onCall)
		walkBlock(st.ElseBlock, onCall)
		walkBlock(st.FinallyBlock, onCall)
	}
}

func walkExpr(e ir.Expr, onCall func(name string)) {
	if e == nil {
		return
	}
	switch ex := e.(type) {
	case *ir.CallExpr:
		if name, ok := ex.Callee.(*ir.VarRef); ok {
			onCall(name.Name)
		} else {
			walkExpr(ex.Callee, onCall)
		}
		for _, a := range ex.Args {
			walkExpr(a.Value, onCall)
		}
	case *ir.BinaryExpr:
		walkExpr(ex.Left, onCall)
		walkExpr(ex.Right, onCall)
	case *ir.UnaryExpr:
		walkExpr(ex.Operand, onCall)
	case *ir.FieldExpr:
		walkExpr(ex.Object, onCall)
	case *ir.IndexExpr:
		walkExpr(ex.Object, onCall)
		for _, i := range ex.Indices {
			walkExpr(i, onCall)
		}
	case *ir.TupleExpr:
		for _, el := range ex.Elements {
			walkExpr(el, onCall)
		}
	case *ir.ArrayExpr:
		for _, el := range ex.Elements {
			walkExpr(el, onCall)
		}
	case *ir.DictExpr:
		for _, en := range ex.Entries {
			walkExpr(en.Key, onCall)
			walkExpr(en.Value, onCall)
		}
	case *ir.RangeExpr:
		walkExpr(ex.Start, onCall)
		walkExpr(ex.Step, onCall)
		walkExpr(ex.Stop, onCall)
	case *ir.ComprehensionExpr:
		walkExpr(ex.Result, onCall)
		walkExpr(ex.Iter, onCall)
		walkExpr(ex.Cond, onCall)
	case *ir.LambdaExpr:
		walkExpr(ex.Body, onCall)
	case *ir.TernaryExpr:
		walkExpr(ex.Cond, onCall)
		walkExpr(ex.Then, onCall)
		walkExpr(ex.Else, onCall)
	case *ir.InterpolationExpr:
		for _, p := range ex.Parts {
			walkExpr(p.Expr, onCall)
		}
	case *ir.BroadcastExpr:
		walkExpr(ex.Callee, onCall)
		for _, a := range ex.Args {
			walkExpr(a, onCall)
		}
	}
}
