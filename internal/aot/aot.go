// Package aot is the AoT code generator (C8): it translates type-stable Core
// IR into LLVM IR text via github.com/llir/llvm, grounded on the pack's
// bin2ll translator (other_examples' bb9c4e55_..._bin2ll-ll.go.go), which
// builds an ir.Module the same way (types.NewFunc/types.I64/constant.NewInt)
// and wraps every translation failure with github.com/pkg/errors.WithStack.
//
// Only the monomorphic numeric/bool subset of the IR is supported today: a
// function whose parameters and locals are all Int-family, Float32/64, or
// Bool, built from literals, variable references, unary/binary arithmetic,
// comparisons, and if/while control flow. Call expressions are not emitted.
// Anything else, calls included, is an unsupported-node codegen error per
// spec.md §4.7's failure semantics, never a silent fallback.
package aot

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"

	vela "vela/internal/ir"
)

// Generator holds the in-progress LLVM module plus the per-function state
// needed while walking one function body.
type Generator struct {
	mod *ir.Module
}

func New() *Generator {
	return &Generator{mod: ir.NewModule()}
}

// Module returns the LLVM module built so far.
func (g *Generator) Module() *ir.Module { return g.mod }

// String renders the module as LLVM IR text.
func (g *Generator) String() string { return g.mod.String() }

// funcScope tracks the current LLVM block and the mapping from Vela local
// names to their LLVM alloca slots, mirroring bin2ll's per-function
// basicBlock/register bookkeeping.
type funcScope struct {
	block   *ir.Block
	locals  map[string]value.Value
	retType types.Type
}

// EmitFunction translates fn into an LLVM function and appends it to the
// module, returning the emitted function for callers (e.g. a later call
// site) to reference.
func (g *Generator) EmitFunction(fn *vela.Function) (*ir.Func, error) {
	retType, err := llvmType(fn.ReturnType)
	if err != nil {
		return nil, errors.WithStack(fmt.Errorf("aot: function %s: return type: %w", fn.Name, err))
	}

	var params []*ir.Param
	for _, p := range fn.Params {
		pt, err := llvmType(p.Type)
		if err != nil {
			return nil, errors.WithStack(fmt.Errorf("aot: function %s: param %s: %w", fn.Name, p.Name, err))
		}
		params = append(params, ir.NewParam(mangleIdent(p.Name), pt))
	}

	lfn := g.mod.NewFunc(mangleIdent(fn.Name), retType, params...)
	entry := lfn.NewBlock("entry")

	scope := &funcScope{block: entry, locals: map[string]value.Value{}, retType: retType}
	for i, p := range fn.Params {
		slot := entry.NewAlloca(params[i].Type())
		entry.NewStore(lfn.Params[i], slot)
		scope.locals[p.Name] = slot
	}

	if fn.Body == nil {
		return nil, errors.WithStack(fmt.Errorf("aot: function %s: missing body", fn.Name))
	}
	if err := g.emitBlock(scope, fn.Body); err != nil {
		return nil, errors.WithStack(fmt.Errorf("aot: function %s: %w", fn.Name, err))
	}
	if scope.block.Term == nil {
		if _, isVoid := retType.(*types.VoidType); isVoid {
			scope.block.NewRet(nil)
		} else {
			return nil, errors.WithStack(fmt.Errorf("aot: function %s: missing terminating return", fn.Name))
		}
	}
	return lfn, nil
}

// llvmType maps spec.md §4.7's representative type table onto concrete LLVM
// types; anything outside the supported numeric/bool/nothing subset is a
// codegen error rather than a silent fallback to a tagged Value.
func llvmType(t *vela.TypeExpr) (types.Type, error) {
	if t == nil {
		return types.Void, nil
	}
	switch t.Name {
	case "Int8", "UInt8":
		return types.I8, nil
	case "Int16", "UInt16":
		return types.I16, nil
	case "Int32", "UInt32":
		return types.I32, nil
	case "Int64", "UInt64":
		return types.I64, nil
	case "Int128", "UInt128":
		return types.I128, nil
	case "Float16", "Float32":
		return types.Float, nil
	case "Float64":
		return types.Double, nil
	case "Bool":
		return types.I1, nil
	case "Nothing":
		return types.Void, nil
	default:
		return nil, fmt.Errorf("unsupported AoT type %q (falls back to the tagged Value runtime, not emitted here)", t.Name)
	}
}

func (g *Generator) emitBlock(scope *funcScope, block *vela.Block) error {
	for _, stmt := range block.Stmts {
		if err := g.emitStmt(scope, stmt); err != nil {
			return err
		}
		if scope.block.Term != nil {
			return nil
		}
	}
	return nil
}

func (g *Generator) emitStmt(scope *funcScope, stmt vela.Stmt) error {
	switch s := stmt.(type) {
	case *vela.LetStmt:
		v, err := g.emitExpr(scope, s.Initializer)
		if err != nil {
			return err
		}
		slot := scope.block.NewAlloca(v.Type())
		scope.block.NewStore(v, slot)
		scope.locals[s.Name] = slot
		return nil
	case *vela.AssignStmt:
		vlv, ok := s.Target.(vela.VarLValue)
		if !ok {
			return fmt.Errorf("aot: unsupported assignment target %T", s.Target)
		}
		slot, ok := scope.locals[vlv.Name]
		if !ok {
			return fmt.Errorf("aot: assignment to undeclared local %q", vlv.Name)
		}
		v, err := g.emitExpr(scope, s.Value)
		if err != nil {
			return err
		}
		scope.block.NewStore(v, slot)
		return nil
	case *vela.ExprStmt:
		_, err := g.emitExpr(scope, s.X)
		return err
	case *vela.ReturnStmt:
		if s.Value == nil {
			scope.block.NewRet(nil)
			return nil
		}
		v, err := g.emitExpr(scope, s.Value)
		if err != nil {
			return err
		}
		scope.block.NewRet(v)
		return nil
	case *vela.IfStmt:
		return g.emitIf(scope, s)
	case *vela.WhileStmt:
		return g.emitWhile(scope, s)
	default:
		return fmt.Errorf("aot: unsupported statement %T", stmt)
	}
}

func (g *Generator) emitIf(scope *funcScope, s *vela.IfStmt) error {
	cond, err := g.emitExpr(scope, s.Cond)
	if err != nil {
		return err
	}
	parent := scope.block.Parent
	thenBlk := parent.NewBlock("")
	var elseBlk, mergeBlk *ir.Block
	mergeBlk = parent.NewBlock("")
	if s.Else != nil {
		elseBlk = parent.NewBlock("")
		scope.block.NewCondBr(cond, thenBlk, elseBlk)
	} else {
		scope.block.NewCondBr(cond, thenBlk, mergeBlk)
	}

	thenScope := &funcScope{block: thenBlk, locals: scope.locals, retType: scope.retType}
	if err := g.emitBlock(thenScope, s.Then); err != nil {
		return err
	}
	if thenBlk.Term == nil {
		thenBlk.NewBr(mergeBlk)
	}

	if s.Else != nil {
		elseScope := &funcScope{block: elseBlk, locals: scope.locals, retType: scope.retType}
		if err := g.emitBlock(elseScope, s.Else); err != nil {
			return err
		}
		if elseBlk.Term == nil {
			elseBlk.NewBr(mergeBlk)
		}
	}

	scope.block = mergeBlk
	return nil
}

func (g *Generator) emitWhile(scope *funcScope, s *vela.WhileStmt) error {
	parent := scope.block.Parent
	condBlk := parent.NewBlock("")
	bodyBlk := parent.NewBlock("")
	afterBlk := parent.NewBlock("")

	scope.block.NewBr(condBlk)

	cond, err := g.emitExpr(&funcScope{block: condBlk, locals: scope.locals, retType: scope.retType}, s.Cond)
	if err != nil {
		return err
	}
	condBlk.NewCondBr(cond, bodyBlk, afterBlk)

	bodyScope := &funcScope{block: bodyBlk, locals: scope.locals, retType: scope.retType}
	if err := g.emitBlock(bodyScope, s.Body); err != nil {
		return err
	}
	if bodyBlk.Term == nil {
		bodyBlk.NewBr(condBlk)
	}

	scope.block = afterBlk
	return nil
}

func (g *Generator) emitExpr(scope *funcScope, e vela.Expr) (value.Value, error) {
	switch expr := e.(type) {
	case *vela.Literal:
		return emitLiteral(expr)
	case *vela.VarRef:
		slot, ok := scope.locals[expr.Name]
		if !ok {
			return nil, fmt.Errorf("aot: undefined variable %q", expr.Name)
		}
		return scope.block.NewLoad(slot), nil
	case *vela.UnaryExpr:
		v, err := g.emitExpr(scope, expr.Operand)
		if err != nil {
			return nil, err
		}
		return emitUnary(scope, expr.Op, v)
	case *vela.BinaryExpr:
		l, err := g.emitExpr(scope, expr.Left)
		if err != nil {
			return nil, err
		}
		r, err := g.emitExpr(scope, expr.Right)
		if err != nil {
			return nil, err
		}
		return emitBinary(scope, expr.Op, l, r)
	default:
		return nil, fmt.Errorf("aot: unsupported expression %T", e)
	}
}

func emitLiteral(lit *vela.Literal) (value.Value, error) {
	switch lit.Kind {
	case vela.LitInt:
		n, _ := lit.Value.(int64)
		return constant.NewInt(n, types.I64), nil
	case vela.LitFloat:
		f, _ := lit.Value.(float64)
		return constant.NewFloat(f, types.Double), nil
	case vela.LitBool:
		b, _ := lit.Value.(bool)
		if b {
			return constant.True, nil
		}
		return constant.False, nil
	default:
		return nil, fmt.Errorf("aot: unsupported literal kind %v (falls back to the tagged Value runtime)", lit.Kind)
	}
}

func emitUnary(scope *funcScope, op string, v value.Value) (value.Value, error) {
	switch op {
	case "-":
		if isFloat(v.Type()) {
			return scope.block.NewFNeg(v), nil
		}
		return scope.block.NewSub(constant.NewInt(0, v.Type()), v), nil
	case "!":
		return scope.block.NewXor(v, constant.True), nil
	default:
		return nil, fmt.Errorf("aot: unsupported unary operator %q", op)
	}
}

func emitBinary(scope *funcScope, op string, l, r value.Value) (value.Value, error) {
	f := isFloat(l.Type())
	switch op {
	case "+":
		if f {
			return scope.block.NewFAdd(l, r), nil
		}
		return scope.block.NewAdd(l, r), nil
	case "-":
		if f {
			return scope.block.NewFSub(l, r), nil
		}
		return scope.block.NewSub(l, r), nil
	case "*":
		if f {
			return scope.block.NewFMul(l, r), nil
		}
		return scope.block.NewMul(l, r), nil
	case "/":
		if f {
			return scope.block.NewFDiv(l, r), nil
		}
		return scope.block.NewSDiv(l, r), nil
	case "<", "<=", ">", ">=", "==", "!=":
		if f {
			return scope.block.NewFCmp(fCmpPred(op), l, r), nil
		}
		return scope.block.NewICmp(iCmpPred(op), l, r), nil
	default:
		return nil, fmt.Errorf("aot: unsupported binary operator %q", op)
	}
}

func isFloat(t types.Type) bool {
	switch t.(type) {
	case *types.FloatType:
		return true
	default:
		return false
	}
}

func iCmpPred(op string) ir.IntPred {
	switch op {
	case "<":
		return ir.IntSLT
	case "<=":
		return ir.IntSLE
	case ">":
		return ir.IntSGT
	case ">=":
		return ir.IntSGE
	case "==":
		return ir.IntEQ
	default:
		return ir.IntNE
	}
}

func fCmpPred(op string) ir.FloatPred {
	switch op {
	case "<":
		return ir.FloatOLT
	case "<=":
		return ir.FloatOLE
	case ">":
		return ir.FloatOGT
	case ">=":
		return ir.FloatOGE
	case "==":
		return ir.FloatOEQ
	default:
		return ir.FloatONE
	}
}

// mangleIdent applies spec.md §4.7's identifier-hygiene rule: any name that
// collides with an LLVM reserved token is mechanically prefixed.
func mangleIdent(name string) string {
	if reservedLLVMIdents[name] {
		return "v_" + name
	}
	return name
}

var reservedLLVMIdents = map[string]bool{
	"define": true, "declare": true, "global": true, "call": true, "ret": true,
}

// EmitProgram translates every function in prog, in order, into one LLVM
// module. A single unsupported function aborts emission with its error
// wrapped by github.com/pkg/errors, matching the "print and abort" failure
// semantics of spec.md §4.7.
func EmitProgram(prog *vela.Program) (*ir.Module, error) {
	g := New()
	for _, fn := range prog.Functions {
		if _, err := g.EmitFunction(fn); err != nil {
			return nil, errors.Wrap(err, "aot: emit program")
		}
	}
	return g.Module(), nil
}
