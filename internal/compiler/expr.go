package compiler

import (
	"fmt"

	"vela/internal/bytecode"
	"vela/internal/gensym"
	"vela/internal/ir"
)

// intrinsicNames are built-in call targets with no ir.Function definition —
// they're lowered straight to OpCallBuiltin/OpCallIntrinsic rather than
// through dispatch.Resolve.
var intrinsicNames = map[string]bool{
	"println": true, "print": true, "length": true, "rand": true,
	"seed!": true, "sort": true,
}

func (fc *fnCompiler) compileExpr(e ir.Expr) error {
	switch x := e.(type) {
	case *ir.Literal:
		return fc.compileLiteral(x)

	case *ir.VarRef:
		if slot, ok := fc.scope.slots[x.Name]; ok {
			fc.emit(bytecode.OpLoadSlot, slot, 0, 0)
			return nil
		}
		if fc.enclosing != nil && fc.resolvesInAncestor(x.Name) {
			fc.recordCapture(x.Name)
			idx := fc.constant(x.Name)
			fc.emit(bytecode.OpGetUpvalue, idx, 0, 0)
			return nil
		}
		idx := fc.constant(x.Name)
		fc.emit(bytecode.OpGetGlobal, idx, 0, 0)
		return nil

	case *ir.BinaryExpr:
		return fc.compileBinary(x)

	case *ir.UnaryExpr:
		if err := fc.compileExpr(x.Operand); err != nil {
			return err
		}
		switch x.Op {
		case "-":
			fc.emit(bytecode.OpNegate, 0, 0, 0)
		case "!":
			fc.emit(bytecode.OpNot, 0, 0, 0)
		default:
			return fmt.Errorf("compiler: unsupported unary operator %q", x.Op)
		}
		return nil

	case *ir.CallExpr:
		return fc.compileCall(x)

	case *ir.FieldExpr:
		if err := fc.compileExpr(x.Object); err != nil {
			return err
		}
		idx := fc.constant(x.Field)
		fc.emit(bytecode.OpGetField, idx, 0, 0)
		return nil

	case *ir.IndexExpr:
		if err := fc.compileExpr(x.Object); err != nil {
			return err
		}
		if len(x.Indices) != 1 {
			return fmt.Errorf("compiler: only single-dimension indexing is supported")
		}
		if err := fc.compileExpr(x.Indices[0]); err != nil {
			return err
		}
		fc.emit(bytecode.OpGetIndex, 0, 0, 0)
		return nil

	case *ir.TupleExpr:
		for _, el := range x.Elements {
			if err := fc.compileExpr(el); err != nil {
				return err
			}
		}
		fc.emit(bytecode.OpNewTuple, int32(len(x.Elements)), 0, 0)
		return nil

	case *ir.ArrayExpr:
		for _, el := range x.Elements {
			if err := fc.compileExpr(el); err != nil {
				return err
			}
		}
		fc.emit(bytecode.OpNewArray, int32(len(x.Elements)), 0, 0)
		return nil

	case *ir.DictExpr:
		for _, entry := range x.Entries {
			if err := fc.compileExpr(entry.Key); err != nil {
				return err
			}
			if err := fc.compileExpr(entry.Value); err != nil {
				return err
			}
		}
		fc.emit(bytecode.OpNewDict, int32(len(x.Entries)), 0, 0)
		return nil

	case *ir.SetExpr:
		for _, el := range x.Elements {
			if err := fc.compileExpr(el); err != nil {
				return err
			}
		}
		fc.emit(bytecode.OpNewSet, int32(len(x.Elements)), 0, 0)
		return nil

	case *ir.RangeExpr:
		return fc.compileRange(x)

	case *ir.TernaryExpr:
		if err := fc.compileExpr(x.Cond); err != nil {
			return err
		}
		jumpElse := fc.emit(bytecode.OpJumpIfFalse, 0, 0, 0)
		if err := fc.compileExpr(x.Then); err != nil {
			return err
		}
		jumpEnd := fc.emit(bytecode.OpJump, 0, 0, 0)
		fc.chunk.Patch(jumpElse, int32(len(fc.chunk.Code)))
		if err := fc.compileExpr(x.Else); err != nil {
			return err
		}
		fc.chunk.Patch(jumpEnd, int32(len(fc.chunk.Code)))
		return nil

	case *ir.SymbolExpr:
		idx := fc.constant(x.Name)
		fc.emit(bytecode.OpConstant, idx, 0, 0)
		return nil

	case *ir.InterpolationExpr:
		return fc.compileInterpolation(x)

	case *ir.NamedTupleExpr:
		return fmt.Errorf("compiler: named tuple literals are not yet lowered")
	case *ir.ComprehensionExpr:
		return fmt.Errorf("compiler: comprehensions are not yet lowered")
	case *ir.LambdaExpr:
		return fc.compileLambda(x)
	case *ir.QuoteExpr:
		return fmt.Errorf("compiler: quoting is not yet lowered")
	case *ir.BroadcastExpr:
		return fmt.Errorf("compiler: broadcast application is not yet lowered")

	default:
		return fmt.Errorf("compiler: unhandled expression %T", e)
	}
}

func (fc *fnCompiler) compileLiteral(l *ir.Literal) error {
	switch l.Kind {
	case ir.LitNothing:
		fc.emit(bytecode.OpNil, 0, 0, 0)
		return nil
	case ir.LitInt:
		idx := fc.constant(l.Value)
		fc.emit(bytecode.OpConstant, idx, 0, 0)
		return nil
	case ir.LitFloat:
		v := l.Value
		if l.FloatSuffix == "f32" {
			if f, ok := v.(float64); ok {
				v = float32(f)
			}
		}
		idx := fc.constant(v)
		fc.emit(bytecode.OpConstant, idx, 0, 0)
		return nil
	default:
		idx := fc.constant(l.Value)
		fc.emit(bytecode.OpConstant, idx, 0, 0)
		return nil
	}
}

func (fc *fnCompiler) compileRange(r *ir.RangeExpr) error {
	if err := fc.compileExpr(r.Start); err != nil {
		return err
	}
	if r.Step != nil {
		if err := fc.compileExpr(r.Step); err != nil {
			return err
		}
	} else {
		idx := fc.constant(int64(1))
		fc.emit(bytecode.OpConstant, idx, 0, 0)
	}
	if err := fc.compileExpr(r.Stop); err != nil {
		return err
	}
	// RangeValue construction is an intrinsic builtin call rather than its own
	// opcode family: three values on the stack, one output.
	fc.emit(bytecode.OpCallIntrinsic, fc.constant("##makerange"), 3, 0)
	return nil
}

// compileInterpolation lowers `"a=${x}"` into a chain of Concat ops over
// string-ified parts, the same desugaring the teacher's lexer performs for
// template literals (grounded on the general "interpolation is concat sugar"
// approach common across the example pack's string handling).
func (fc *fnCompiler) compileInterpolation(x *ir.InterpolationExpr) error {
	first := true
	for _, part := range x.Parts {
		if part.Expr != nil {
			if err := fc.compileExpr(part.Expr); err != nil {
				return err
			}
			fc.emit(bytecode.OpToString, 0, 0, 0)
		} else {
			idx := fc.constant(part.Literal)
			fc.emit(bytecode.OpConstant, idx, 0, 0)
		}
		if !first {
			fc.emit(bytecode.OpConcat, 0, 0, 0)
		}
		first = false
	}
	if len(x.Parts) == 0 {
		idx := fc.constant("")
		fc.emit(bytecode.OpConstant, idx, 0, 0)
	}
	return nil
}

// primitiveTypeOf returns the statically known Int64/Float64 type of e, or ""
// if e isn't provably one of those two. This is a local, syntax-driven
// approximation of full inference (internal/infer's per-site results aren't
// threaded into the compiler, see DESIGN.md) built only from what the slot
// declared: a parameter or `let x::Type = ...` annotation, never a mutable
// binding's initializer, since a later assignment isn't bound by it.
// compileBinary/compileForRange consult this to pick a typed opcode (spec.md
// §4.5 C6) over the dynamic family when it's safe to do so.
func (fc *fnCompiler) primitiveTypeOf(e ir.Expr) string {
	switch x := e.(type) {
	case *ir.Literal:
		switch x.Kind {
		case ir.LitInt:
			return "Int64"
		case ir.LitFloat:
			if x.FloatSuffix == "f32" {
				return ""
			}
			return "Float64"
		}
		return ""
	case *ir.VarRef:
		if t := fc.scope.primType(x.Name); t != "" {
			return t
		}
		for anc := fc.enclosing; anc != nil; anc = anc.enclosing {
			if t := anc.scope.primType(x.Name); t != "" {
				return t
			}
		}
		return ""
	case *ir.UnaryExpr:
		if x.Op == "-" {
			return fc.primitiveTypeOf(x.Operand)
		}
		return ""
	case *ir.BinaryExpr:
		switch x.Op {
		case "+", "-", "*", "%":
			l, r := fc.primitiveTypeOf(x.Left), fc.primitiveTypeOf(x.Right)
			if l != "" && l == r {
				return l
			}
		}
		return ""
	default:
		return ""
	}
}

// compileBinary picks the dynamic or Int64/Float64-typed opcode family.
// Typed opcodes are only emitted when both operands are provably the same
// primitive type via primitiveTypeOf; everything else falls back to the
// dynamic family, whose opcodes already implement the full numeric-promotion
// semantics of spec.md §4.2. `/` is never lowered to OpDivI64 even when both
// operands are Int64: the language's single `/` operator always widens to
// Float64 (internal/lattice's BinaryTransfer "/" case), so only the
// both-Float64 case can safely pick OpDivF64. No typed opcode exists for
// `%`, `<=`, or `>=` (internal/bytecode/opcodes.go), so those stay dynamic
// regardless of operand types.
func (fc *fnCompiler) compileBinary(b *ir.BinaryExpr) error {
	if err := fc.compileExpr(b.Left); err != nil {
		return err
	}
	if err := fc.compileExpr(b.Right); err != nil {
		return err
	}
	lt, rt := fc.primitiveTypeOf(b.Left), fc.primitiveTypeOf(b.Right)
	sameInt := lt == "Int64" && rt == "Int64"
	sameFloat := lt == "Float64" && rt == "Float64"

	switch b.Op {
	case "+":
		switch {
		case sameInt:
			fc.emit(bytecode.OpAddI64, 0, 0, 0)
		case sameFloat:
			fc.emit(bytecode.OpAddF64, 0, 0, 0)
		default:
			fc.emit(bytecode.OpAdd, 0, 0, 0)
		}
	case "-":
		switch {
		case sameInt:
			fc.emit(bytecode.OpSubI64, 0, 0, 0)
		case sameFloat:
			fc.emit(bytecode.OpSubF64, 0, 0, 0)
		default:
			fc.emit(bytecode.OpSub, 0, 0, 0)
		}
	case "*":
		switch {
		case sameInt:
			fc.emit(bytecode.OpMulI64, 0, 0, 0)
		case sameFloat:
			fc.emit(bytecode.OpMulF64, 0, 0, 0)
		default:
			fc.emit(bytecode.OpMul, 0, 0, 0)
		}
	case "/":
		if sameFloat {
			fc.emit(bytecode.OpDivF64, 0, 0, 0)
		} else {
			fc.emit(bytecode.OpDiv, 0, 0, 0)
		}
	case "%":
		fc.emit(bytecode.OpMod, 0, 0, 0)
	case "==":
		fc.emit(bytecode.OpEqual, 0, 0, 0)
	case "!=":
		fc.emit(bytecode.OpNotEqual, 0, 0, 0)
	case ">":
		if sameInt {
			fc.emit(bytecode.OpGreaterI64, 0, 0, 0)
		} else {
			fc.emit(bytecode.OpGreater, 0, 0, 0)
		}
	case "<":
		if sameInt {
			fc.emit(bytecode.OpLessI64, 0, 0, 0)
		} else {
			fc.emit(bytecode.OpLess, 0, 0, 0)
		}
	case ">=":
		fc.emit(bytecode.OpGreaterEqual, 0, 0, 0)
	case "<=":
		fc.emit(bytecode.OpLessEqual, 0, 0, 0)
	case "&&":
		fc.emit(bytecode.OpAnd, 0, 0, 0)
	case "||":
		fc.emit(bytecode.OpOr, 0, 0, 0)
	case "&":
		fc.emit(bytecode.OpBitAnd, 0, 0, 0)
	case "|":
		fc.emit(bytecode.OpBitOr, 0, 0, 0)
	case "^":
		fc.emit(bytecode.OpBitXor, 0, 0, 0)
	case "<<":
		fc.emit(bytecode.OpShl, 0, 0, 0)
	case ">>":
		fc.emit(bytecode.OpShr, 0, 0, 0)
	default:
		return fmt.Errorf("compiler: unsupported binary operator %q", b.Op)
	}
	return nil
}

// compileCall resolves the callee by static arity+name against
// internal/dispatch. A simple-name callee with a single candidate compiles to
// a direct OpCall; multiple candidates compile to OpCallTypedDispatch over a
// registered DispatchGroup, deferring the final pick to live argument types
// at runtime (spec.md §4.4's OutcomeTyped path) since full per-call-site
// lattice types aren't threaded in from internal/infer at this stage.
func (fc *fnCompiler) compileCall(call *ir.CallExpr) error {
	name, ok := simpleCalleeName(call.Callee)
	if !ok {
		return fmt.Errorf("compiler: only simple-name callees are supported")
	}
	if intrinsicNames[name] {
		return fc.compileIntrinsicCall(name, call)
	}

	candidates := fc.prog.ir.FunctionsNamed(name)
	if len(candidates) == 0 {
		if fc.isLocalOrCaptured(name) {
			return fc.compileDynamicCall(call)
		}
		return fmt.Errorf("compiler: undefined function %q", name)
	}

	splatMask := int32(0)
	for i, arg := range call.Args {
		if arg.Splat {
			if i >= 32 {
				return fmt.Errorf("compiler: splat arguments past position 31 are not supported")
			}
			splatMask |= 1 << uint(i)
		}
		if err := fc.compileExpr(arg.Value); err != nil {
			return err
		}
	}
	argc := int32(len(call.Args))

	if len(candidates) == 1 {
		target := fc.prog.fnIndexOf[candidates[0]]
		if splatMask != 0 {
			fc.emit(bytecode.OpCallWithSplat, int32(target), argc, splatMask)
			return nil
		}
		hasUntyped := false
		for _, p := range candidates[0].Params {
			if p.Type == nil {
				hasUntyped = true
				break
			}
		}
		if hasUntyped {
			fc.emit(bytecode.OpCallSpecialize, int32(target), argc, 0)
		} else {
			fc.emit(bytecode.OpCall, int32(target), argc, 0)
		}
		return nil
	}

	if splatMask != 0 {
		return fmt.Errorf("compiler: splat arguments are not supported at multi-candidate call sites")
	}

	idxs := make([]int, len(candidates))
	for i, cand := range candidates {
		idxs[i] = fc.prog.fnIndexOf[cand]
	}
	groupIdx := fc.prog.out.AddDispatchGroup(idxs)
	fc.emit(bytecode.OpCallTypedDispatch, int32(groupIdx), argc, 0)
	return nil
}

// isLocalOrCaptured reports whether name is a local slot in this function or
// an ancestor (for a lambda body), i.e. a call through a function-valued
// variable rather than a named global function.
func (fc *fnCompiler) isLocalOrCaptured(name string) bool {
	if _, ok := fc.scope.slots[name]; ok {
		return true
	}
	for anc := fc.enclosing; anc != nil; anc = anc.enclosing {
		if _, ok := anc.scope.slots[name]; ok {
			return true
		}
	}
	return false
}

// compileDynamicCall lowers a call whose callee is a function-valued local
// variable to OpCallFunctionVariable, the "fully dynamic call" fallback of
// spec.md §4.4 item 2.
func (fc *fnCompiler) compileDynamicCall(call *ir.CallExpr) error {
	for _, arg := range call.Args {
		if arg.Splat {
			return fmt.Errorf("compiler: splat arguments are not supported on function-variable calls")
		}
	}
	if err := fc.compileExpr(call.Callee); err != nil {
		return err
	}
	for _, arg := range call.Args {
		if err := fc.compileExpr(arg.Value); err != nil {
			return err
		}
	}
	fc.emit(bytecode.OpCallFunctionVariable, 0, int32(len(call.Args)), 0)
	return nil
}

func (fc *fnCompiler) compileIntrinsicCall(name string, call *ir.CallExpr) error {
	for _, arg := range call.Args {
		if err := fc.compileExpr(arg.Value); err != nil {
			return err
		}
	}
	idx := fc.constant(name)
	fc.emit(bytecode.OpCallBuiltin, idx, int32(len(call.Args)), 0)
	return nil
}

func simpleCalleeName(e ir.Expr) (string, bool) {
	if v, ok := e.(*ir.VarRef); ok {
		return v.Name, true
	}
	return "", false
}

// compileLambda compiles `params -> body` into its own FunctionInfo, appended
// to the program immediately (the CompiledProgram is append-only throughout
// compilation, not just during CallSpecialize — spec.md §3.4), then emits
// OpClosure at the definition site to snapshot every captured free variable
// off the *current* frame into a vm.ClosureValue.
//
// Grounded on the teacher's upvalue-by-name CallFrame.overflow design
// (internal/vm.CallFrame doc comment): a lambda body loads a capture via
// OpGetUpvalue(name), and at call time the VM re-seeds a fresh frame's
// overflow map from FunctionInfo.UpvalueNames zipped with
// ClosureValue.Upvalues, so the body's OpGetUpvalue sites are unaffected by
// which particular closure instance is running.
func (fc *fnCompiler) compileLambda(x *ir.LambdaExpr) error {
	lamChunk := bytecode.NewChunk()
	lam := &fnCompiler{prog: fc.prog, chunk: lamChunk, scope: newScope(), enclosing: fc}

	paramSlots := make([]int32, len(x.Params))
	paramInfo := make([]bytecode.ParamSlot, len(x.Params))
	for i, p := range x.Params {
		slot := lam.scope.slotFor(p)
		paramSlots[i] = slot
		paramInfo[i] = bytecode.ParamSlot{Name: p, SlotType: "Any"}
	}

	if err := lam.compileExpr(x.Body); err != nil {
		return err
	}
	lam.emit(bytecode.OpReturn, 1, 0, 0)

	paramToSlot := make([]int, len(paramSlots))
	for i, s := range paramSlots {
		paramToSlot[i] = int(s)
	}
	name := gensym.Next("lambda")
	info := bytecode.FunctionInfo{
		Name:         name,
		Params:       paramInfo,
		ReturnType:   "Any",
		SlotNames:    lam.scope.slotNames,
		ParamToSlot:  paramToSlot,
		VarargsIndex: -1, VarargsFixedArity: -1,
		UpvalueNames: lam.captureOrder,
	}
	funcIdx := fc.prog.out.AppendFunction(info, lamChunk)

	for _, capName := range lam.captureOrder {
		if err := fc.compileExpr(&ir.VarRef{Name: capName}); err != nil {
			return err
		}
	}
	namesIdx := fc.constant(lam.captureOrder)
	fc.emit(bytecode.OpClosure, int32(funcIdx), int32(namesIdx), int32(len(lam.captureOrder)))
	return nil
}
