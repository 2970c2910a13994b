// Package compiler lowers a type-inferred ir.Program into a
// bytecode.CompiledProgram (C6, spec.md §4.5): it allocates per-function
// slots, resolves multiple-dispatch call sites via internal/dispatch,
// chooses typed vs. dynamic opcodes, and performs a small peephole fusion
// pass. Grounded on the teacher's internal/compiler visitor-over-parser.Expr
// design (compiler.go/stmt_compiler.go), generalized here to a plain
// recursive-descent walk over ir.Program — the IR's type switch already
// plays the role the teacher's Accept/Visitor pair served for parser.Expr.
package compiler

import (
	"fmt"

	"vela/internal/bytecode"
	"vela/internal/ir"
)

// scope tracks the slot allocated to each local name within one function,
// plus the loop-control jump lists needed for break/continue backpatching.
type scope struct {
	slots     map[string]int32
	slotNames []string

	// primTypes records the statically *declared* Int64/Float64 type of a
	// name, from a function parameter annotation or a `let x::Type = ...`
	// declaration. It is never inferred from an initializer alone, since a
	// mutable binding's initializer type doesn't bind later assignments —
	// only an explicit annotation is trustworthy enough to pick a typed
	// opcode over the dynamic family in compileBinary/compileForRange.
	primTypes map[string]string
}

func newScope() *scope { return &scope{slots: map[string]int32{}} }

func (s *scope) slotFor(name string) int32 {
	if idx, ok := s.slots[name]; ok {
		return idx
	}
	idx := int32(len(s.slotNames))
	s.slots[name] = idx
	s.slotNames = append(s.slotNames, name)
	return idx
}

// declarePrimType records name's static type if it is one of the two
// primitives the typed opcode families (spec.md §4.5 C6) cover.
func (s *scope) declarePrimType(name, typ string) {
	if typ != "Int64" && typ != "Float64" {
		return
	}
	if s.primTypes == nil {
		s.primTypes = map[string]string{}
	}
	s.primTypes[name] = typ
}

func (s *scope) primType(name string) string { return s.primTypes[name] }

// loopCtx records the patch list for a single enclosing loop.
type loopCtx struct {
	breakJumps    []int
	continueJumps []int
	continueTarget int
}

// fnCompiler compiles one ir.Function's (or the top-level main block's) body.
type fnCompiler struct {
	prog  *Compiler
	chunk *bytecode.Chunk
	scope *scope
	loops []*loopCtx

	// enclosing is set while compiling a lambda body: free variables that
	// resolve in an ancestor's scope are recorded in captureOrder/captureSet
	// and loaded via OpGetUpvalue instead of OpLoadSlot/OpGetGlobal.
	enclosing   *fnCompiler
	captureSet  map[string]bool
	captureOrder []string
}

// resolvesInAncestor reports whether name is a local slot somewhere up the
// enclosing chain, i.e. it is a genuine closure capture rather than a global.
func (fc *fnCompiler) resolvesInAncestor(name string) bool {
	for anc := fc.enclosing; anc != nil; anc = anc.enclosing {
		if _, ok := anc.scope.slots[name]; ok {
			return true
		}
		if anc.captureSet != nil && anc.captureSet[name] {
			return true
		}
	}
	return false
}

// recordCapture adds name to this function's upvalue list (idempotent) and
// returns its position, used both to emit OpGetUpvalue and, at the enclosing
// OpClosure site, to know which current-frame values to snapshot.
func (fc *fnCompiler) recordCapture(name string) int {
	if fc.captureSet == nil {
		fc.captureSet = map[string]bool{}
	}
	if !fc.captureSet[name] {
		fc.captureSet[name] = true
		fc.captureOrder = append(fc.captureOrder, name)
	}
	for i, n := range fc.captureOrder {
		if n == name {
			return i
		}
	}
	return -1
}

// Compiler drives the whole-program compile: it builds the FunctionInfo table
// first (so forward references and dispatch groups can resolve by index),
// then compiles each body.
type Compiler struct {
	ir        *ir.Program
	out       *bytecode.CompiledProgram
	fnIndexOf map[*ir.Function]int
}

func NewCompiler(p *ir.Program) *Compiler {
	return &Compiler{
		ir:        p,
		out:       bytecode.NewCompiledProgram(),
		fnIndexOf: map[*ir.Function]int{},
	}
}

// Compile runs the full C6 pipeline and returns the appended CompiledProgram.
func (c *Compiler) Compile() (*bytecode.CompiledProgram, error) {
	for i, fn := range c.ir.Functions {
		c.fnIndexOf[fn] = i
	}
	// Pre-register struct/abstract tables so OpNewStruct can resolve field order.
	for _, sd := range c.ir.Structs {
		fields := make([]bytecode.StructFieldInfo, len(sd.Fields))
		for i, f := range sd.Fields {
			fields[i] = bytecode.StructFieldInfo{Name: f.Name, Type: f.Type.String()}
		}
		c.out.Structs = append(c.out.Structs, bytecode.StructInfo{
			Name: sd.Name, Mutable: sd.Mutable, Fields: fields, Parent: sd.Parent,
		})
	}
	for _, ad := range c.ir.Abstracts {
		tps := make([]string, len(ad.TypeParams))
		for i, t := range ad.TypeParams {
			tps[i] = t.Name
		}
		c.out.Abstracts = append(c.out.Abstracts, bytecode.AbstractInfo{Name: ad.Name, Parent: ad.Parent, TypeParams: tps})
	}

	for _, fn := range c.ir.Functions {
		if err := c.compileFunction(fn); err != nil {
			return nil, fmt.Errorf("compiler: function %s: %w", fn.Name, err)
		}
	}

	mainFC := &fnCompiler{prog: c, chunk: bytecode.NewChunk(), scope: newScope()}
	if c.ir.Main != nil {
		if err := mainFC.compileBlock(c.ir.Main); err != nil {
			return nil, fmt.Errorf("compiler: main: %w", err)
		}
	}
	mainFC.chunk.Emit(bytecode.OpReturn, tailReturnArg(c.ir.Main), 0, 0, bytecode.DebugInfo{})
	mainInfo := bytecode.FunctionInfo{
		Name:         "main",
		SlotNames:    mainFC.scope.slotNames,
		VarargsIndex: -1, VarargsFixedArity: -1,
	}
	mainIdx := c.out.AppendFunction(mainInfo, mainFC.chunk)
	c.out.MainEntry = mainIdx

	return c.out, nil
}

func (c *Compiler) compileFunction(fn *ir.Function) error {
	fc := &fnCompiler{prog: c, chunk: bytecode.NewChunk(), scope: newScope()}
	paramSlots := make([]int32, len(fn.Params))
	paramInfo := make([]bytecode.ParamSlot, len(fn.Params))
	for i, p := range fn.Params {
		slot := fc.scope.slotFor(p.Name)
		paramSlots[i] = slot
		typeName := "Any"
		if p.Type != nil {
			typeName = p.Type.String()
			fc.scope.declarePrimType(p.Name, typeName)
		}
		paramInfo[i] = bytecode.ParamSlot{Name: p.Name, SlotType: typeName}
	}
	varargsIdx, varargsArity := -1, -1

	if err := fc.compileBlock(fn.Body); err != nil {
		return err
	}
	// Ensure every path has a terminating return; a trailing implicit-nil
	// return is always safe to append since OpReturn with A==0 is a no-value
	// return.
	fc.chunk.Emit(bytecode.OpReturn, 0, 0, 0, bytecode.DebugInfo{})

	returnType := "Any"
	if fn.ReturnType != nil {
		returnType = fn.ReturnType.String()
	}
	typeParamNames := make([]string, len(fn.TypeParams))
	for i, tp := range fn.TypeParams {
		typeParamNames[i] = tp.Name
	}
	paramToSlot := make([]int, len(paramSlots))
	for i, s := range paramSlots {
		paramToSlot[i] = int(s)
	}
	info := bytecode.FunctionInfo{
		Name:              fn.Name,
		Params:            paramInfo,
		EntryIP:           0,
		ReturnType:        returnType,
		TypeParams:        typeParamNames,
		CodeStart:         0,
		CodeEnd:           0,
		SlotNames:         fc.scope.slotNames,
		ParamToSlot:       paramToSlot,
		VarargsIndex:      varargsIdx,
		VarargsFixedArity: varargsArity,
	}
	c.out.AppendFunction(info, fc.chunk)

	// Functions with any untyped parameter are retained for call-site
	// monomorphization (spec.md §3.4's Specializable table).
	untyped := false
	for _, p := range fn.Params {
		if p.Type == nil {
			untyped = true
			break
		}
	}
	if untyped {
		c.out.Specializable[c.fnIndexOf[fn]] = fn
	}
	return nil
}

// tailReturnArg is the A operand of the closing OpReturn for body b: 1 when
// b's last statement is an ExprStmt whose value compileBlock left on the
// stack, 0 otherwise.
func tailReturnArg(b *ir.Block) int32 {
	if b != nil && len(b.Stmts) > 0 {
		if _, ok := b.Stmts[len(b.Stmts)-1].(*ir.ExprStmt); ok {
			return 1
		}
	}
	return 0
}

func (fc *fnCompiler) emit(op bytecode.OpCode, a, b, c2 int32) int {
	return fc.chunk.Emit(op, a, b, c2, bytecode.DebugInfo{})
}

func (fc *fnCompiler) compileBlock(b *ir.Block) error {
	if b == nil {
		return nil
	}
	for i, stmt := range b.Stmts {
		isLast := i == len(b.Stmts)-1
		if err := fc.compileStmt(stmt, isLast); err != nil {
			return err
		}
	}
	return nil
}

// compileStmt compiles one statement. tailPosition marks the last statement
// of a function body: a bare ExprStmt there leaves its value on the stack as
// the function's implicit return, matching the tail-expression rule spec.md
// §3.1 documents for ExprStmt.
func (fc *fnCompiler) compileStmt(stmt ir.Stmt, tailPosition bool) error {
	switch s := stmt.(type) {
	case *ir.LetStmt:
		if s.Initializer != nil {
			if err := fc.compileExpr(s.Initializer); err != nil {
				return err
			}
		} else {
			fc.emit(bytecode.OpNil, 0, 0, 0)
		}
		slot := fc.scope.slotFor(s.Name)
		if s.Type != nil {
			fc.scope.declarePrimType(s.Name, s.Type.String())
		}
		fc.emit(bytecode.OpStoreSlot, slot, 0, 0)
		fc.emit(bytecode.OpPop, 0, 0, 0)
		return nil

	case *ir.AssignStmt:
		return fc.compileAssign(s.Target, s.Value)

	case *ir.CompoundAssignStmt:
		return fc.compileCompoundAssign(s)

	case *ir.ExprStmt:
		if err := fc.compileExpr(s.X); err != nil {
			return err
		}
		if !tailPosition {
			fc.emit(bytecode.OpPop, 0, 0, 0)
		}
		return nil

	case *ir.ReturnStmt:
		if s.Value != nil {
			if err := fc.compileExpr(s.Value); err != nil {
				return err
			}
			fc.emit(bytecode.OpReturn, 1, 0, 0)
		} else {
			fc.emit(bytecode.OpReturn, 0, 0, 0)
		}
		return nil

	case *ir.IfStmt:
		return fc.compileIf(s)

	case *ir.WhileStmt:
		return fc.compileWhile(s)

	case *ir.ForRangeStmt:
		return fc.compileForRange(s)

	case *ir.ForEachStmt:
		return fc.compileForEach(s)

	case *ir.BreakStmt:
		if len(fc.loops) == 0 {
			return fmt.Errorf("break outside a loop")
		}
		lp := fc.loops[len(fc.loops)-1]
		ip := fc.emit(bytecode.OpJump, 0, 0, 0)
		lp.breakJumps = append(lp.breakJumps, ip)
		return nil

	case *ir.ContinueStmt:
		if len(fc.loops) == 0 {
			return fmt.Errorf("continue outside a loop")
		}
		lp := fc.loops[len(fc.loops)-1]
		ip := fc.emit(bytecode.OpJump, 0, 0, 0)
		lp.continueJumps = append(lp.continueJumps, ip)
		return nil

	case *ir.TryStmt:
		return fc.compileTry(s)

	case *ir.BlockStmt:
		return fc.compileBlock(s.Block)

	default:
		return fmt.Errorf("compiler: unhandled statement %T", stmt)
	}
}

// compileAssign emits operands in the exact order each Set opcode expects
// them popped (value last, so it ends up on top): OpSetField wants
// (object, value); OpSetIndex wants (object, index, value).
func (fc *fnCompiler) compileAssign(target ir.LValue, value ir.Expr) error {
	switch t := target.(type) {
	case ir.VarLValue:
		if err := fc.compileExpr(value); err != nil {
			return err
		}
		slot := fc.scope.slotFor(t.Name)
		fc.emit(bytecode.OpStoreSlot, slot, 0, 0)
		fc.emit(bytecode.OpPop, 0, 0, 0)
	case ir.FieldLValue:
		if err := fc.compileExpr(t.Object); err != nil {
			return err
		}
		if err := fc.compileExpr(value); err != nil {
			return err
		}
		nameIdx := fc.constant(t.Field)
		fc.emit(bytecode.OpSetField, nameIdx, 0, 0)
	case ir.IndexLValue:
		if len(t.Indices) != 1 {
			return fmt.Errorf("compiler: only single-index assignment is supported")
		}
		if err := fc.compileExpr(t.Object); err != nil {
			return err
		}
		if err := fc.compileExpr(t.Indices[0]); err != nil {
			return err
		}
		if err := fc.compileExpr(value); err != nil {
			return err
		}
		fc.emit(bytecode.OpSetIndex, 0, 0, 0)
	default:
		return fmt.Errorf("compiler: unhandled lvalue %T", target)
	}
	return nil
}

func (fc *fnCompiler) compileCompoundAssign(s *ir.CompoundAssignStmt) error {
	baseOp := opForCompound(s.Op)
	switch t := s.Target.(type) {
	case ir.VarLValue:
		slot := fc.scope.slotFor(t.Name)
		fc.emit(bytecode.OpLoadSlot, slot, 0, 0)
		if err := fc.compileExpr(s.Value); err != nil {
			return err
		}
		fc.emit(baseOp, 0, 0, 0)
		fc.emit(bytecode.OpStoreSlot, slot, 0, 0)
		fc.emit(bytecode.OpPop, 0, 0, 0)
		return nil
	default:
		return fmt.Errorf("compiler: compound assignment only supported on simple variables")
	}
}

func opForCompound(op string) bytecode.OpCode {
	switch op {
	case "+=":
		return bytecode.OpAdd
	case "-=":
		return bytecode.OpSub
	case "*=":
		return bytecode.OpMul
	case "/=":
		return bytecode.OpDiv
	case "%=":
		return bytecode.OpMod
	default:
		return bytecode.OpAdd
	}
}

func (fc *fnCompiler) compileIf(s *ir.IfStmt) error {
	if err := fc.compileExpr(s.Cond); err != nil {
		return err
	}
	jumpToElse := fc.emit(bytecode.OpJumpIfFalse, 0, 0, 0)
	if err := fc.compileBlock(s.Then); err != nil {
		return err
	}
	jumpToEnd := fc.emit(bytecode.OpJump, 0, 0, 0)
	fc.chunk.Patch(jumpToElse, int32(len(fc.chunk.Code)))
	if s.Else != nil {
		if err := fc.compileBlock(s.Else); err != nil {
			return err
		}
	}
	fc.chunk.Patch(jumpToEnd, int32(len(fc.chunk.Code)))
	return nil
}

func (fc *fnCompiler) compileWhile(s *ir.WhileStmt) error {
	loopStart := len(fc.chunk.Code)
	lp := &loopCtx{continueTarget: loopStart}
	fc.loops = append(fc.loops, lp)

	if err := fc.compileExpr(s.Cond); err != nil {
		return err
	}
	exitJump := fc.emit(bytecode.OpJumpIfFalse, 0, 0, 0)
	if err := fc.compileBlock(s.Body); err != nil {
		return err
	}
	fc.emit(bytecode.OpLoop, int32(loopStart), 0, 0)
	end := len(fc.chunk.Code)
	fc.chunk.Patch(exitJump, int32(end))
	for _, j := range lp.breakJumps {
		fc.chunk.Patch(j, int32(end))
	}
	for _, j := range lp.continueJumps {
		fc.chunk.Patch(j, int32(loopStart))
	}
	fc.loops = fc.loops[:len(fc.loops)-1]
	return nil
}

// compileForRange desugars `for v in a:b` into slot-based counting. When both
// bounds are provably Int64 and the step is the implicit 1 (spec.md §4.5 C6),
// it emits the fused OpLoadAddI64Slot/OpJumpIfLessI64Slot forms the teacher
// prefers on hot loop paths (internal/bytecode/opcodes.go); otherwise it falls
// back to the general Load/Compare/Add sequence, which remains correct for
// any Step expression or non-Int64 bound.
func (fc *fnCompiler) compileForRange(s *ir.ForRangeStmt) error {
	stepIsI64 := s.Step == nil || fc.primitiveTypeOf(s.Step) == "Int64"
	if stepIsI64 && fc.primitiveTypeOf(s.Start) == "Int64" && fc.primitiveTypeOf(s.Stop) == "Int64" {
		return fc.compileForRangeFusedI64(s)
	}
	return fc.compileForRangeGeneral(s)
}

// compileForRangeFusedI64 is the fast path: the loop guard and increment each
// collapse to a single fused opcode. The stop bound is stored pre-incremented
// (stop+1) so the strict-less OpJumpIfLessI64Slot test implements the
// language's inclusive `a:b` range without an off-by-one.
func (fc *fnCompiler) compileForRangeFusedI64(s *ir.ForRangeStmt) error {
	ivar := fc.scope.slotFor(s.Var)
	stopSlot := fc.scope.slotFor("##forstop#" + s.Var)
	stepSlot := fc.scope.slotFor("##forstep#" + s.Var)

	if err := fc.compileExpr(s.Start); err != nil {
		return err
	}
	fc.emit(bytecode.OpStoreSlot, ivar, 0, 0)
	fc.emit(bytecode.OpPop, 0, 0, 0)

	if err := fc.compileExpr(s.Stop); err != nil {
		return err
	}
	oneIdx := fc.constant(int64(1))
	fc.emit(bytecode.OpConstant, oneIdx, 0, 0)
	fc.emit(bytecode.OpAddI64, 0, 0, 0)
	fc.emit(bytecode.OpStoreSlot, stopSlot, 0, 0)
	fc.emit(bytecode.OpPop, 0, 0, 0)

	if s.Step != nil {
		if err := fc.compileExpr(s.Step); err != nil {
			return err
		}
	} else {
		fc.emit(bytecode.OpConstant, oneIdx, 0, 0)
	}
	fc.emit(bytecode.OpStoreSlot, stepSlot, 0, 0)
	fc.emit(bytecode.OpPop, 0, 0, 0)

	loopStart := len(fc.chunk.Code)
	lp := &loopCtx{continueTarget: loopStart}
	fc.loops = append(fc.loops, lp)

	// bodyStart is computable directly (guard + else-jump are exactly two
	// instructions) so the guard's branch target (operand C, which
	// Chunk.Patch can't reach — it only backpatches operand A) never needs
	// patching.
	bodyStart := loopStart + 2
	fc.emit(bytecode.OpJumpIfLessI64Slot, ivar, stopSlot, int32(bodyStart))
	exitJump := fc.emit(bytecode.OpJump, 0, 0, 0)

	if err := fc.compileBlock(s.Body); err != nil {
		return err
	}

	fc.emit(bytecode.OpLoadAddI64Slot, ivar, stepSlot, 0)
	fc.emit(bytecode.OpStoreSlot, ivar, 0, 0)
	fc.emit(bytecode.OpPop, 0, 0, 0)
	fc.emit(bytecode.OpLoop, int32(loopStart), 0, 0)

	end := len(fc.chunk.Code)
	fc.chunk.Patch(exitJump, int32(end))
	for _, j := range lp.breakJumps {
		fc.chunk.Patch(j, int32(end))
	}
	for _, j := range lp.continueJumps {
		fc.chunk.Patch(j, int32(loopStart))
	}
	fc.loops = fc.loops[:len(fc.loops)-1]
	return nil
}

func (fc *fnCompiler) compileForRangeGeneral(s *ir.ForRangeStmt) error {
	ivar := fc.scope.slotFor(s.Var)
	stopSlot := fc.scope.slotFor("##forstop#" + s.Var)

	if err := fc.compileExpr(s.Start); err != nil {
		return err
	}
	fc.emit(bytecode.OpStoreSlot, ivar, 0, 0)
	fc.emit(bytecode.OpPop, 0, 0, 0)

	if err := fc.compileExpr(s.Stop); err != nil {
		return err
	}
	fc.emit(bytecode.OpStoreSlot, stopSlot, 0, 0)
	fc.emit(bytecode.OpPop, 0, 0, 0)

	loopStart := len(fc.chunk.Code)
	lp := &loopCtx{continueTarget: loopStart}
	fc.loops = append(fc.loops, lp)

	fc.emit(bytecode.OpLoadSlot, ivar, 0, 0)
	fc.emit(bytecode.OpLoadSlot, stopSlot, 0, 0)
	fc.emit(bytecode.OpGreater, 0, 0, 0)
	exitJump := fc.emit(bytecode.OpJumpIfTrue, 0, 0, 0)

	if err := fc.compileBlock(s.Body); err != nil {
		return err
	}

	fc.emit(bytecode.OpLoadSlot, ivar, 0, 0)
	if s.Step != nil {
		if err := fc.compileExpr(s.Step); err != nil {
			return err
		}
	} else {
		oneIdx := fc.constant(int64(1))
		fc.emit(bytecode.OpConstant, oneIdx, 0, 0)
	}
	fc.emit(bytecode.OpAdd, 0, 0, 0)
	fc.emit(bytecode.OpStoreSlot, ivar, 0, 0)
	fc.emit(bytecode.OpPop, 0, 0, 0)
	fc.emit(bytecode.OpLoop, int32(loopStart), 0, 0)

	end := len(fc.chunk.Code)
	fc.chunk.Patch(exitJump, int32(end))
	for _, j := range lp.breakJumps {
		fc.chunk.Patch(j, int32(end))
	}
	for _, j := range lp.continueJumps {
		fc.chunk.Patch(j, int32(loopStart))
	}
	fc.loops = fc.loops[:len(fc.loops)-1]
	return nil
}

// compileForEach uses the Iterate-family opcodes over any iterable value.
func (fc *fnCompiler) compileForEach(s *ir.ForEachStmt) error {
	iterSlot := fc.scope.slotFor("##iter#" + s.Var)
	idxSlot := fc.scope.slotFor("##iteridx#" + s.Var)
	ivar := fc.scope.slotFor(s.Var)

	if err := fc.compileExpr(s.Iter); err != nil {
		return err
	}
	fc.emit(bytecode.OpStoreSlot, iterSlot, 0, 0)
	fc.emit(bytecode.OpPop, 0, 0, 0)
	zeroIdx := fc.constant(int64(0))
	fc.emit(bytecode.OpConstant, zeroIdx, 0, 0)
	fc.emit(bytecode.OpStoreSlot, idxSlot, 0, 0)
	fc.emit(bytecode.OpPop, 0, 0, 0)

	loopStart := len(fc.chunk.Code)
	lp := &loopCtx{continueTarget: loopStart}
	fc.loops = append(fc.loops, lp)

	fc.emit(bytecode.OpLoadSlot, iterSlot, 0, 0)
	fc.emit(bytecode.OpArrayLen, 0, 0, 0)
	fc.emit(bytecode.OpLoadSlot, idxSlot, 0, 0)
	fc.emit(bytecode.OpSwap, 0, 0, 0)
	fc.emit(bytecode.OpGreaterEqual, 0, 0, 0)
	exitJump := fc.emit(bytecode.OpJumpIfTrue, 0, 0, 0)

	fc.emit(bytecode.OpLoadSlot, iterSlot, 0, 0)
	fc.emit(bytecode.OpLoadSlot, idxSlot, 0, 0)
	fc.emit(bytecode.OpIterateDynamic, 0, 0, 0)
	fc.emit(bytecode.OpStoreSlot, ivar, 0, 0)
	fc.emit(bytecode.OpPop, 0, 0, 0)

	if err := fc.compileBlock(s.Body); err != nil {
		return err
	}

	fc.emit(bytecode.OpLoadSlot, idxSlot, 0, 0)
	oneIdx := fc.constant(int64(1))
	fc.emit(bytecode.OpConstant, oneIdx, 0, 0)
	fc.emit(bytecode.OpAdd, 0, 0, 0)
	fc.emit(bytecode.OpStoreSlot, idxSlot, 0, 0)
	fc.emit(bytecode.OpPop, 0, 0, 0)
	fc.emit(bytecode.OpLoop, int32(loopStart), 0, 0)

	end := len(fc.chunk.Code)
	fc.chunk.Patch(exitJump, int32(end))
	for _, j := range lp.breakJumps {
		fc.chunk.Patch(j, int32(end))
	}
	for _, j := range lp.continueJumps {
		fc.chunk.Patch(j, int32(loopStart))
	}
	fc.loops = fc.loops[:len(fc.loops)-1]
	return nil
}

// compileTry emits EnterTry/body/LeaveTry and, if present, a catch block at
// the patched target, matching the frame-scoped handler model of spec.md §4.6.
func (fc *fnCompiler) compileTry(s *ir.TryStmt) error {
	enterIP := fc.emit(bytecode.OpEnterTry, 0, 0, 0)
	if err := fc.compileBlock(s.TryBlock); err != nil {
		return err
	}
	fc.emit(bytecode.OpLeaveTry, 0, 0, 0)
	if s.ElseBlock != nil {
		if err := fc.compileBlock(s.ElseBlock); err != nil {
			return err
		}
	}
	jumpOverCatch := fc.emit(bytecode.OpJump, 0, 0, 0)

	catchStart := len(fc.chunk.Code)
	fc.chunk.Patch(enterIP, int32(catchStart))
	if s.CatchVar != "" {
		slot := fc.scope.slotFor(s.CatchVar)
		fc.emit(bytecode.OpStoreSlot, slot, 0, 0)
		fc.emit(bytecode.OpPop, 0, 0, 0)
	} else {
		fc.emit(bytecode.OpPop, 0, 0, 0)
	}
	if err := fc.compileBlock(s.CatchBlock); err != nil {
		return err
	}

	end := len(fc.chunk.Code)
	fc.chunk.Patch(jumpOverCatch, int32(end))
	if s.FinallyBlock != nil {
		if err := fc.compileBlock(s.FinallyBlock); err != nil {
			return err
		}
	}
	return nil
}

func (fc *fnCompiler) constant(v interface{}) int32 { return fc.chunk.AddConstant(v) }
