package lowering

import (
	"testing"

	"vela/internal/ir"
	"vela/internal/parser"
)

// TestLowerFunctionAndCall mirrors spec.md §8 scenario 2's square(x::Int64):
// a typed function declaration plus a top-level call both land in the
// Program's Functions table and implicit Main block respectively.
func TestLowerFunctionAndCall(t *testing.T) {
	stmts := []parser.Stmt{
		&parser.FunctionStmt{
			Name:       "square",
			Params:     []string{"x"},
			ParamTypes: []string{"Int64"},
			ReturnType: "Int64",
			Vararg:     -1,
			Body: []parser.Stmt{
				&parser.ExpressionStmt{Expr: &parser.Binary{
					Left: &parser.Variable{Name: "x"}, Operator: "*", Right: &parser.Variable{Name: "x"},
				}},
			},
		},
		&parser.ExpressionStmt{Expr: &parser.CallExpr{
			Callee: &parser.Variable{Name: "square"},
			Args:   []parser.Expr{&parser.Literal{Value: int64(7)}},
		}},
	}

	prog, err := New().Lower(stmts)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if len(prog.Functions) != 1 || prog.Functions[0].Name != "square" {
		t.Fatalf("expected a single square function, got %v", prog.Functions)
	}
	fn := prog.Functions[0]
	if len(fn.Params) != 1 || fn.Params[0].Type == nil || fn.Params[0].Type.Name != "Int64" {
		t.Errorf("square's param should carry an Int64 type annotation, got %+v", fn.Params)
	}
	if fn.ReturnType == nil || fn.ReturnType.Name != "Int64" {
		t.Errorf("square's return type should be Int64, got %v", fn.ReturnType)
	}
	if len(prog.Main.Stmts) != 1 {
		t.Fatalf("expected a single top-level call statement, got %d", len(prog.Main.Stmts))
	}
	call, ok := prog.Main.Stmts[0].(*ir.ExprStmt).X.(*ir.CallExpr)
	if !ok {
		t.Fatalf("expected the top-level statement to lower to a call, got %T", prog.Main.Stmts[0])
	}
	if len(call.Args) != 1 {
		t.Errorf("square(7) should lower with a single argument, got %d", len(call.Args))
	}
}

// TestLowerParametricTypeAnnotation exercises parseTypeExpr's recursive
// descent over a parametric annotation string, the one piece of surface
// grammar lowering has to re-parse itself (ParamTypes is a flat string slice).
func TestLowerParametricTypeAnnotation(t *testing.T) {
	te := parseTypeExpr("Dict{String,Int64}")
	if te.Name != "Dict" || len(te.Args) != 2 {
		t.Fatalf("parseTypeExpr(Dict{String,Int64}) = %+v", te)
	}
	if te.Args[0].Name != "String" || te.Args[1].Name != "Int64" {
		t.Errorf("parseTypeExpr type args = %+v, want [String Int64]", te.Args)
	}
}

func TestLowerNestedParametricTypeAnnotation(t *testing.T) {
	te := parseTypeExpr("Array{Array{Float64}}")
	if te.Name != "Array" || len(te.Args) != 1 {
		t.Fatalf("parseTypeExpr(Array{Array{Float64}}) = %+v", te)
	}
	inner := te.Args[0]
	if inner.Name != "Array" || len(inner.Args) != 1 || inner.Args[0].Name != "Float64" {
		t.Errorf("nested type arg = %+v, want Array{Float64}", inner)
	}
}

// TestLowerCStyleForDesugarsToWhile exercises spec.md §3.1's "for is sugar
// over while" rule: a C-style for(init;cond;update) becomes a BlockStmt
// wrapping a LetStmt followed by a WhileStmt whose body runs update last.
func TestLowerCStyleForDesugarsToWhile(t *testing.T) {
	st := &parser.ForStmt{
		Init:      &parser.LetStmt{Name: "i", Expr: &parser.Literal{Value: int64(0)}},
		Condition: &parser.Binary{Left: &parser.Variable{Name: "i"}, Operator: "<", Right: &parser.Literal{Value: int64(3)}},
		Update:    &parser.Assign{Name: "i", Value: &parser.Binary{Left: &parser.Variable{Name: "i"}, Operator: "+", Right: &parser.Literal{Value: int64(1)}}},
		Body:      []parser.Stmt{&parser.ExpressionStmt{Expr: &parser.Variable{Name: "i"}}},
	}

	l := New()
	stmt, err := l.lowerStmt(st)
	if err != nil {
		t.Fatalf("lowerStmt: %v", err)
	}
	block, ok := stmt.(*ir.BlockStmt)
	if !ok {
		t.Fatalf("expected *ir.BlockStmt, got %T", stmt)
	}
	if len(block.Block.Stmts) != 2 {
		t.Fatalf("expected [LetStmt, WhileStmt], got %d stmts", len(block.Block.Stmts))
	}
	if _, ok := block.Block.Stmts[0].(*ir.LetStmt); !ok {
		t.Errorf("first desugared statement should be the init LetStmt, got %T", block.Block.Stmts[0])
	}
	while, ok := block.Block.Stmts[1].(*ir.WhileStmt)
	if !ok {
		t.Fatalf("second desugared statement should be a WhileStmt, got %T", block.Block.Stmts[1])
	}
	if len(while.Body.Stmts) != 2 {
		t.Errorf("while body should carry the original body plus the trailing update, got %d stmts", len(while.Body.Stmts))
	}
}

// TestLowerForInRangeUsesForRangeStmt confirms `for i in a..b` takes the
// dedicated ForRangeStmt path rather than the generic ForEachStmt fallback.
func TestLowerForInRangeUsesForRangeStmt(t *testing.T) {
	st := &parser.ForInStmt{
		Variable:   "i",
		Collection: &parser.RangeExpr{Start: &parser.Literal{Value: int64(1)}, Stop: &parser.Literal{Value: int64(5)}},
		Body:       []parser.Stmt{&parser.ExpressionStmt{Expr: &parser.Variable{Name: "i"}}},
	}
	stmt, err := New().lowerStmt(st)
	if err != nil {
		t.Fatalf("lowerStmt: %v", err)
	}
	if _, ok := stmt.(*ir.ForRangeStmt); !ok {
		t.Errorf("for-in over a range literal should lower to ForRangeStmt, got %T", stmt)
	}
}

// TestLowerForInCollectionUsesForEachStmt confirms a non-range collection
// falls back to the generic ForEachStmt.
func TestLowerForInCollectionUsesForEachStmt(t *testing.T) {
	st := &parser.ForInStmt{
		Variable:   "v",
		Collection: &parser.Variable{Name: "xs"},
		Body:       []parser.Stmt{&parser.ExpressionStmt{Expr: &parser.Variable{Name: "v"}}},
	}
	stmt, err := New().lowerStmt(st)
	if err != nil {
		t.Fatalf("lowerStmt: %v", err)
	}
	if _, ok := stmt.(*ir.ForEachStmt); !ok {
		t.Errorf("for-in over a plain variable should lower to ForEachStmt, got %T", stmt)
	}
}

// TestLowerMatchDesugarsToIfChain exercises lowerMatch's hygienic
// subject-binding desugaring into a chain of equality-tested IfStmts.
func TestLowerMatchDesugarsToIfChain(t *testing.T) {
	st := &parser.MatchStmt{
		Value: &parser.Variable{Name: "x"},
		Cases: []parser.MatchCase{
			{Pattern: &parser.Literal{Value: int64(1)}, Body: []parser.Stmt{&parser.ExpressionStmt{Expr: &parser.Literal{Value: "one"}}}},
			{Pattern: &parser.Literal{Value: int64(2)}, Body: []parser.Stmt{&parser.ExpressionStmt{Expr: &parser.Literal{Value: "two"}}}},
		},
	}
	stmt, err := New().lowerStmt(st)
	if err != nil {
		t.Fatalf("lowerStmt: %v", err)
	}
	block, ok := stmt.(*ir.BlockStmt)
	if !ok {
		t.Fatalf("expected *ir.BlockStmt, got %T", stmt)
	}
	if len(block.Block.Stmts) != 2 {
		t.Fatalf("expected [LetStmt(subject), IfStmt chain], got %d stmts", len(block.Block.Stmts))
	}
	if _, ok := block.Block.Stmts[0].(*ir.LetStmt); !ok {
		t.Errorf("first statement should bind the match subject, got %T", block.Block.Stmts[0])
	}
	outer, ok := block.Block.Stmts[1].(*ir.IfStmt)
	if !ok {
		t.Fatalf("second statement should be the desugared if-chain head, got %T", block.Block.Stmts[1])
	}
	if outer.Else == nil || len(outer.Else.Stmts) != 1 {
		t.Fatalf("first case's else branch should hold the second case's IfStmt, got %+v", outer.Else)
	}
	if _, ok := outer.Else.Stmts[0].(*ir.IfStmt); !ok {
		t.Errorf("match cases should chain as nested IfStmts, got %T", outer.Else.Stmts[0])
	}
}

func TestLowerStructDeclaresBitsWhenImmutableAndPrimitive(t *testing.T) {
	cs := &parser.ClassStmt{
		Name: "Point",
		Fields: []parser.StructFieldDecl{
			{Name: "x", Type: "Float64"},
			{Name: "y", Type: "Float64"},
		},
	}
	def := New().lowerStruct(cs)
	if !def.IsBits {
		t.Error("an immutable all-primitive struct should be marked IsBits")
	}

	mutable := &parser.ClassStmt{
		Name:    "Box",
		Mutable: true,
		Fields:  []parser.StructFieldDecl{{Name: "v", Type: "Float64"}},
	}
	if New().lowerStruct(mutable).IsBits {
		t.Error("a mutable struct should never be marked IsBits even if all fields are primitive")
	}
}
