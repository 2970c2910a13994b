package compiler

import (
	"testing"

	"vela/internal/bytecode"
	"vela/internal/infer"
	"vela/internal/ir"
	"vela/internal/vm"
)

func lit(kind ir.LitKind, v interface{}) *ir.Literal { return &ir.Literal{Kind: kind, Value: v} }

func tref(name string) *ir.TypeExpr { return &ir.TypeExpr{Name: name} }

// buildSquareProgram mirrors spec.md §8 scenario 2:
//
//	function square(x::Int64)::Int64
//	    x * x
//	end
//	square(7)
func buildSquareProgram() *ir.Program {
	squareBody := &ir.Block{Stmts: []ir.Stmt{
		&ir.ExprStmt{X: &ir.BinaryExpr{Op: "*", Left: &ir.VarRef{Name: "x"}, Right: &ir.VarRef{Name: "x"}}},
	}}
	square := &ir.Function{
		Name:       "square",
		Params:     []ir.Param{{Name: "x", Type: tref("Int64")}},
		ReturnType: tref("Int64"),
		Body:       squareBody,
	}
	main := &ir.Block{Stmts: []ir.Stmt{
		&ir.ExprStmt{X: &ir.CallExpr{
			Callee: &ir.VarRef{Name: "square"},
			Args:   []ir.Arg{{Value: lit(ir.LitInt, int64(7))}},
		}},
	}}
	prog := &ir.Program{Functions: []*ir.Function{square}, Main: main}
	prog.AssignIndices()
	return prog
}

// TestCompileAndRunSquare drives the square(7) scenario through the real
// compiler and VM (no hand-assembled bytecode), exercising slot allocation,
// static single-candidate Call lowering, and typed arithmetic together.
func TestCompileAndRunSquare(t *testing.T) {
	prog := buildSquareProgram()
	infer.NewEngine(prog).InferAll()

	cp, err := NewCompiler(prog).Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(cp.Functions) != 2 {
		t.Fatalf("expected square + main FunctionInfo entries, got %d", len(cp.Functions))
	}
	square := cp.Functions[0]
	if len(square.ParamToSlot) != 1 {
		t.Fatalf("square should have exactly one parameter slot, got %v", square.ParamToSlot)
	}

	machine := vm.New(cp)
	machine.SeedRNG(1)
	val, err := machine.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	i, ok := val.(int64)
	if !ok {
		t.Fatalf("square(7) result is %T, want int64", val)
	}
	if i != 49 {
		t.Errorf("square(7) = %d, want 49", i)
	}
	if machine.Output() != "" {
		t.Errorf("square(7) should produce no output, got %q", machine.Output())
	}
}

// buildFibProgram mirrors spec.md §8 scenario 4: fib(10) == 55.
func buildFibProgram() *ir.Program {
	n := &ir.VarRef{Name: "n"}
	fibBody := &ir.Block{Stmts: []ir.Stmt{
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
	fib := &ir.Function{Name: "fib", Params: []ir.Param{{Name: "n"}}, Body: fibBody}
	main := &ir.Block{Stmts: []ir.Stmt{
		&ir.ExprStmt{X: &ir.CallExpr{Callee: &ir.VarRef{Name: "fib"}, Args: []ir.Arg{{Value: lit(ir.LitInt, int64(10))}}}},
	}}
	prog := &ir.Program{Functions: []*ir.Function{fib}, Main: main}
	prog.AssignIndices()
	return prog
}

func TestCompileAndRunFibonacci(t *testing.T) {
	prog := buildFibProgram()
	infer.NewEngine(prog).InferAll()

	cp, err := NewCompiler(prog).Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	machine := vm.New(cp)
	machine.SeedRNG(1)
	val, err := machine.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	i, ok := val.(int64)
	if !ok {
		t.Fatalf("fib(10) result is %T, want int64", val)
	}
	if i != 55 {
		t.Errorf("fib(10) = %d, want 55", i)
	}
}

// TestDeterministicAcrossRuns covers spec.md §8's determinism property: two
// compiles+runs of the same program with the same seed produce identical
// (value, output).
func TestDeterministicAcrossRuns(t *testing.T) {
	run := func() (vm.Value, string) {
		prog := buildFibProgram()
		infer.NewEngine(prog).InferAll()
		cp, err := NewCompiler(prog).Compile()
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		machine := vm.New(cp)
		machine.SeedRNG(42)
		val, err := machine.Run()
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return val, machine.Output()
	}
	v1, o1 := run()
	v2, o2 := run()
	if v1.(int64) != v2.(int64) || o1 != o2 {
		t.Errorf("two runs diverged: (%v,%q) vs (%v,%q)", v1, o1, v2, o2)
	}
}

// hasOp reports whether any instruction in code carries the given opcode.
func hasOp(code []bytecode.Instr, op bytecode.OpCode) bool {
	for _, in := range code {
		if in.Op == op {
			return true
		}
	}
	return false
}

// TestCompileBinaryEmitsTypedOpcodeForDeclaredInt64Params covers spec.md
// §4.5's C6 typed-opcode family: square(x::Int64) multiplies two operands
// both declared Int64, so compileBinary should pick OpMulI64 over the
// dynamic OpMul.
func TestCompileBinaryEmitsTypedOpcodeForDeclaredInt64Params(t *testing.T) {
	prog := buildSquareProgram()
	infer.NewEngine(prog).InferAll()
	cp, err := NewCompiler(prog).Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	square := cp.Functions[0]
	code := cp.Code[square.CodeStart:square.CodeEnd]
	if !hasOp(code, bytecode.OpMulI64) {
		t.Errorf("square's x*x should compile to OpMulI64, got ops: %v", opNames(code))
	}
	if hasOp(code, bytecode.OpMul) {
		t.Errorf("square's x*x should not also emit the dynamic OpMul, got ops: %v", opNames(code))
	}
}

// TestCompileBinaryStaysDynamicForUntypedParams covers fib's untyped `n`
// parameter (no declared type): the `n - 1` / `n - 2` operands aren't
// provably Int64, so compileBinary must fall back to the dynamic family.
func TestCompileBinaryStaysDynamicForUntypedParams(t *testing.T) {
	prog := buildFibProgram()
	infer.NewEngine(prog).InferAll()
	cp, err := NewCompiler(prog).Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	fib := cp.Functions[0]
	code := cp.Code[fib.CodeStart:fib.CodeEnd]
	if !hasOp(code, bytecode.OpSub) {
		t.Errorf("fib's n-1/n-2 should stay on dynamic OpSub without a declared type, got ops: %v", opNames(code))
	}
	if hasOp(code, bytecode.OpSubI64) {
		t.Errorf("fib's n-1/n-2 shouldn't emit OpSubI64 without a declared Int64 type, got ops: %v", opNames(code))
	}
}

// TestDivisionNeverEmitsOpDivI64 covers the constraint that `/` always
// widens to Float64 (spec.md §4.2/§8), even when both operands are declared
// Int64: OpDivI64 (true truncating integer division) would silently change
// the language's division semantics, so compileBinary must never pick it for
// the generic `/` operator.
func TestDivisionNeverEmitsOpDivI64(t *testing.T) {
	body := &ir.Block{Stmts: []ir.Stmt{
		&ir.ExprStmt{X: &ir.BinaryExpr{Op: "/", Left: &ir.VarRef{Name: "a"}, Right: &ir.VarRef{Name: "b"}}},
	}}
	fn := &ir.Function{
		Name: "halve",
		Params: []ir.Param{
			{Name: "a", Type: tref("Int64")},
			{Name: "b", Type: tref("Int64")},
		},
		Body: body,
	}
	prog := &ir.Program{Functions: []*ir.Function{fn}}
	prog.AssignIndices()
	infer.NewEngine(prog).InferAll()

	cp, err := NewCompiler(prog).Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	code := cp.Code[cp.Functions[0].CodeStart:cp.Functions[0].CodeEnd]
	if hasOp(code, bytecode.OpDivI64) {
		t.Errorf("Int64/Int64 `/` must never compile to OpDivI64, got ops: %v", opNames(code))
	}
	if !hasOp(code, bytecode.OpDiv) {
		t.Errorf("Int64/Int64 `/` should still compile to the widening OpDiv, got ops: %v", opNames(code))
	}
}

func opNames(code []bytecode.Instr) []string {
	names := make([]string, len(code))
	for i, in := range code {
		names[i] = in.Op.Name()
	}
	return names
}

// buildCountToTenProgram mirrors `for i in 1:10 { total += i }` with an
// implicit Int64 step, returning total (== 55).
func buildCountToTenProgram() *ir.Program {
	body := &ir.Block{Stmts: []ir.Stmt{
		&ir.LetStmt{Name: "total", Type: tref("Int64"), Mutable: true, Initializer: lit(ir.LitInt, int64(0))},
		&ir.ForRangeStmt{
			Var:   "i",
			Start: lit(ir.LitInt, int64(1)),
			Stop:  lit(ir.LitInt, int64(10)),
			Body: &ir.Block{Stmts: []ir.Stmt{
				&ir.CompoundAssignStmt{Target: ir.VarLValue{Name: "total"}, Op: "+=", Value: &ir.VarRef{Name: "i"}},
			}},
		},
		&ir.ExprStmt{X: &ir.VarRef{Name: "total"}},
	}}
	prog := &ir.Program{Main: body}
	prog.AssignIndices()
	return prog
}

// TestForRangeFusesInt64LoopGuard covers spec.md §4.5's fused loop-counter
// opcodes: a `for i in 1:10` range with statically Int64 bounds and an
// implicit step should compile its guard/increment to
// OpJumpIfLessI64Slot/OpLoadAddI64Slot rather than the general
// Load/Compare/Add sequence, and must still execute to the correct sum.
func TestForRangeFusesInt64LoopGuard(t *testing.T) {
	prog := buildCountToTenProgram()
	infer.NewEngine(prog).InferAll()
	cp, err := NewCompiler(prog).Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	main := cp.Functions[cp.MainEntry]
	code := cp.Code[main.CodeStart:main.CodeEnd]
	if !hasOp(code, bytecode.OpJumpIfLessI64Slot) {
		t.Errorf("for i in 1:10 should fuse its guard to OpJumpIfLessI64Slot, got ops: %v", opNames(code))
	}
	if !hasOp(code, bytecode.OpLoadAddI64Slot) {
		t.Errorf("for i in 1:10 should fuse its increment to OpLoadAddI64Slot, got ops: %v", opNames(code))
	}

	machine := vm.New(cp)
	machine.SeedRNG(1)
	val, err := machine.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if i, ok := val.(int64); !ok || i != 55 {
		t.Errorf("sum of 1..10 = %v, want int64 55", val)
	}
}
