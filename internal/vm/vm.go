package vm

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"vela/internal/bytecode"
	"vela/internal/config"
	"vela/internal/diagnostics"
	"vela/internal/rng"
)

// tryHandler is one installed exception handler, pushed by OpEnterTry and
// popped by OpLeaveTry or by a throw unwinding past it (spec.md §4.6).
type tryHandler struct {
	catchIP   int32
	stackTop  int // stack depth to restore before jumping to catchIP
	frameDepth int // call-frame depth this handler belongs to
}

// CallFrame mirrors the teacher's EnhancedCallFrame: each call gets its own
// slot array (locals) rather than sharing one global stack region, which is
// what lets CallSpecialize monomorphize a function per call-site type
// signature without locals from one specialization bleeding into another.
type CallFrame struct {
	funcIndex int
	ip        int
	slots     []Value
	// overflow holds locals beyond the statically-sized slot array — e.g. a
	// closure's captured-variable cells that outlive the frame.
	overflow map[string]Value
	handlers []tryHandler
}

// specializationKey identifies one monomorphized instantiation of a
// specializable function by its call-site argument type signature.
type specializationKey struct {
	funcIndex int
	argSig    string
}

// VM is the stack-based interpreter of spec.md §4.6/§C7. It consumes a
// bytecode.CompiledProgram and may append to it during execution
// (CallSpecialize), matching the "VM may lazily append specializations"
// append-only lifecycle of spec.md §3.4.
type VM struct {
	Program *bytecode.CompiledProgram

	stack    []Value
	frames   []*CallFrame
	globals  map[string]Value
	structHeap []*StructInstance

	specializations map[specializationKey]int // resolved function index
	callCounter     atomic.Int64

	out       []byte
	streamOut func(string)

	rng *rng.StableRNG

	diagnostics []*diagnostics.Diagnostic
}

func New(p *bytecode.CompiledProgram) *VM {
	return &VM{
		Program:         p,
		globals:         map[string]Value{},
		specializations: map[specializationKey]int{},
		rng:             rng.New(0x5EED),
	}
}

// SetStreamOut installs a callback invoked for every print/println in
// addition to the buffered output, matching spec.md §4.6's "deterministic
// output buffer with an optional streaming callback".
func (vm *VM) SetStreamOut(fn func(string)) { vm.streamOut = fn }

// SeedRNG reseeds the VM's deterministic RNG stream before a run, letting an
// embedder (internal/embed) control reproducibility per spec.md §6.1's
// `compile_and_run(source, seed)` contract.
func (vm *VM) SeedRNG(seed uint64) { vm.rng.Seed(seed) }

func (vm *VM) Output() string { return string(vm.out) }

func (vm *VM) Diagnostics() []*diagnostics.Diagnostic { return vm.diagnostics }

func (vm *VM) push(v Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() Value {
	n := len(vm.stack)
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v
}

func (vm *VM) peek(offset int) Value { return vm.stack[len(vm.stack)-1-offset] }

func (vm *VM) currentFrame() *CallFrame { return vm.frames[len(vm.frames)-1] }

// VMError is raised for RuntimeError conditions detected inside the dispatch
// loop (spec.md §7): it carries enough context for a host to either catch it
// via a TryStmt or surface it as vm.Run's return value.
type VMError struct {
	Subkind diagnostics.RuntimeSubkind
	Value   Value // the thrown value, for user-level catch bindings
	Message string
}

func (e *VMError) Error() string { return e.Message }

func throwError(subkind diagnostics.RuntimeSubkind, format string, args ...interface{}) *VMError {
	msg := fmt.Sprintf(format, args...)
	return &VMError{Subkind: subkind, Message: msg, Value: msg}
}

// Run executes the program starting at Program.MainEntry. A returned error is
// either a *VMError that escaped every installed handler, or an
// InternalInvariant violation (spec.md §7: "compile errors abort; runtime
// errors propagate to handlers or become Run's return value").
func (vm *VM) Run() (Value, error) {
	entry := vm.Program.MainEntry
	if entry < 0 || entry >= len(vm.Program.Functions) {
		return nil, fmt.Errorf("vm: InternalInvariant: no main entry")
	}
	return vm.callFunction(entry, nil)
}

func (vm *VM) callFunction(funcIndex int, args []Value) (Value, error) {
	return vm.callFunctionUpvalues(funcIndex, args, nil)
}

// callFunctionUpvalues is callFunction generalized to seed a fresh frame's
// overflow map from a closure's captured bindings (spec.md §3.3's
// Closure/ComposedFunction handles): upvalues[i] is bound under
// Functions[funcIndex].UpvalueNames[i].
func (vm *VM) callFunctionUpvalues(funcIndex int, args []Value, upvalues []Value) (Value, error) {
	fi := vm.Program.Functions[funcIndex]
	frame := &CallFrame{
		funcIndex: funcIndex,
		ip:        fi.CodeStart,
		slots:     make([]Value, len(fi.SlotNames)),
		overflow:  map[string]Value{},
	}
	for i := range frame.slots {
		frame.slots[i] = UndefValue{}
	}
	for i, a := range args {
		if i < len(fi.ParamToSlot) {
			frame.slots[fi.ParamToSlot[i]] = a
		}
	}
	for i, name := range fi.UpvalueNames {
		if i < len(upvalues) {
			frame.overflow[name] = upvalues[i]
		}
	}
	vm.frames = append(vm.frames, frame)
	defer func() { vm.frames = vm.frames[:len(vm.frames)-1] }()
	return vm.execute(fi.CodeEnd)
}

// callValue dispatches a call whose callee is a first-class runtime value
// (spec.md §4.4's "fully dynamic call" fallback): a plain function reference,
// a closure carrying captured upvalues, or a composition of two callables.
func (vm *VM) callValue(callee Value, args []Value) (Value, error) {
	switch c := callee.(type) {
	case *FunctionValue:
		return vm.callFunction(c.Index, args)
	case *ClosureValue:
		return vm.callFunctionUpvalues(c.FuncIndex, args, c.Upvalues)
	case *ComposedFunctionValue:
		inner, err := vm.callValue(c.Inner, args)
		if err != nil {
			return nil, err
		}
		return vm.callValue(c.Outer, []Value{inner})
	default:
		return nil, throwError(diagnostics.RuntimeMethodError, "%s is not callable", TypeName(callee))
	}
}

// execute runs the current top frame until it returns, hits end-of-code, or
// an unhandled throw propagates out. end is the exclusive code bound for the
// current function (frames never jump outside their own code region, except
// the deliberate CallSpecialize append which installs a fresh frame instead).
func (vm *VM) execute(end int) (Value, error) {
	frame := vm.currentFrame()
	fi := &vm.Program.Functions[frame.funcIndex]
dispatch:
	for {
		if config.IsCancelled() {
			return nil, fmt.Errorf("vm: execution cancelled")
		}
		if frame.ip >= end {
			return NilValue{}, nil
		}
		instr := vm.Program.Code[frame.ip]
		frame.ip++

		switch instr.Op {
		case bytecode.OpPush, bytecode.OpConstant:
			vm.push(fi.Constants[instr.A])
		case bytecode.OpPop:
			vm.pop()
		case bytecode.OpDup:
			vm.push(vm.peek(0))
		case bytecode.OpSwap:
			n := len(vm.stack)
			vm.stack[n-1], vm.stack[n-2] = vm.stack[n-2], vm.stack[n-1]
		case bytecode.OpNil:
			vm.push(NilValue{})

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod:
			b, a := vm.pop(), vm.pop()
			res, err := vm.binaryDynamic(instr.Op, a, b)
			if err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}
			vm.push(res)
		case bytecode.OpCallDynamicBinaryBoth:
			// Runtime-resolved binary op when neither operand's static type was
			// known at compile time: the live value tags pick the arithmetic (no
			// method scoring happens here), plus the String/Char-concatenation
			// special case of spec.md §4.2.
			b, a := vm.pop(), vm.pop()
			res, err := vm.dynamicBinaryBoth(OpCodeFromConstant(fi.Constants[instr.A]), a, b)
			if err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}
			vm.push(res)

		case bytecode.OpAddI64:
			b, a := vm.pop().(int64), vm.pop().(int64)
			vm.push(a + b)
		case bytecode.OpSubI64:
			b, a := vm.pop().(int64), vm.pop().(int64)
			vm.push(a - b)
		case bytecode.OpMulI64:
			b, a := vm.pop().(int64), vm.pop().(int64)
			vm.push(a * b)
		case bytecode.OpDivI64:
			b, a := vm.pop().(int64), vm.pop().(int64)
			if b == 0 {
				if vm.handleThrow(throwError(diagnostics.RuntimeDivisionByZero, "integer division by zero")) {
					continue dispatch
				}
				return nil, throwError(diagnostics.RuntimeDivisionByZero, "integer division by zero")
			}
			vm.push(a / b)
		case bytecode.OpAddF64:
			b, a := vm.pop().(float64), vm.pop().(float64)
			vm.push(a + b)
		case bytecode.OpSubF64:
			b, a := vm.pop().(float64), vm.pop().(float64)
			vm.push(a - b)
		case bytecode.OpMulF64:
			b, a := vm.pop().(float64), vm.pop().(float64)
			vm.push(a * b)
		case bytecode.OpDivF64:
			b, a := vm.pop().(float64), vm.pop().(float64)
			vm.push(a / b)

		case bytecode.OpNegate:
			v := vm.pop()
			switch x := v.(type) {
			case int64:
				vm.push(-x)
			case float64:
				vm.push(-x)
			default:
				if vm.handleThrow(throwError(diagnostics.RuntimeTypeMismatch, "cannot negate %s", TypeName(v))) {
					continue dispatch
				}
				return nil, throwError(diagnostics.RuntimeTypeMismatch, "cannot negate %s", TypeName(v))
			}

		case bytecode.OpEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(valuesEqual(a, b))
		case bytecode.OpNotEqual:
			b, a := vm.pop(), vm.pop()
			vm.push(!valuesEqual(a, b))
		case bytecode.OpGreater, bytecode.OpLess, bytecode.OpGreaterEqual, bytecode.OpLessEqual:
			b, a := vm.pop(), vm.pop()
			res, err := vm.compareDynamic(instr.Op, a, b)
			if err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}
			vm.push(res)
		case bytecode.OpLessI64:
			b, a := vm.pop().(int64), vm.pop().(int64)
			vm.push(a < b)
		case bytecode.OpGreaterI64:
			b, a := vm.pop().(int64), vm.pop().(int64)
			vm.push(a > b)

		case bytecode.OpAnd:
			b, a := vm.pop().(bool), vm.pop().(bool)
			vm.push(a && b)
		case bytecode.OpOr:
			b, a := vm.pop().(bool), vm.pop().(bool)
			vm.push(a || b)
		case bytecode.OpNot:
			vm.push(!vm.pop().(bool))
		case bytecode.OpBitAnd:
			b, a := vm.pop().(int64), vm.pop().(int64)
			vm.push(a & b)
		case bytecode.OpBitOr:
			b, a := vm.pop().(int64), vm.pop().(int64)
			vm.push(a | b)
		case bytecode.OpBitXor:
			b, a := vm.pop().(int64), vm.pop().(int64)
			vm.push(a ^ b)
		case bytecode.OpShl:
			b, a := vm.pop().(int64), vm.pop().(int64)
			vm.push(a << uint(b))
		case bytecode.OpShr:
			b, a := vm.pop().(int64), vm.pop().(int64)
			vm.push(a >> uint(b))

		case bytecode.OpJump:
			frame.ip = int(instr.A)
		case bytecode.OpJumpIfFalse:
			if !truthy(vm.pop()) {
				frame.ip = int(instr.A)
			}
		case bytecode.OpJumpIfTrue:
			if truthy(vm.pop()) {
				frame.ip = int(instr.A)
			}
		case bytecode.OpLoop:
			frame.ip = int(instr.A)

		case bytecode.OpLoadAddI64Slot:
			a := frame.slots[instr.A].(int64)
			b := frame.slots[instr.B].(int64)
			vm.push(a + b)
		case bytecode.OpJumpIfLessI64Slot:
			a := frame.slots[instr.A].(int64)
			b := frame.slots[instr.B].(int64)
			if a < b {
				frame.ip = int(instr.C)
			}

		case bytecode.OpDefineGlobal:
			name := fi.Constants[instr.A].(string)
			vm.globals[name] = vm.pop()
		case bytecode.OpGetGlobal:
			name := fi.Constants[instr.A].(string)
			v, ok := vm.globals[name]
			if !ok {
				if vm.handleThrow(throwError(diagnostics.RuntimeUndefinedVar, "undefined variable %q", name)) {
					continue dispatch
				}
				return nil, throwError(diagnostics.RuntimeUndefinedVar, "undefined variable %q", name)
			}
			vm.push(v)
		case bytecode.OpSetGlobal:
			name := fi.Constants[instr.A].(string)
			vm.globals[name] = vm.peek(0)

		case bytecode.OpGetLocal, bytecode.OpLoadSlot, bytecode.OpLoadFast:
			vm.push(frame.slots[instr.A])
		case bytecode.OpSetLocal, bytecode.OpStoreSlot, bytecode.OpStoreFast:
			frame.slots[instr.A] = vm.peek(0)

		case bytecode.OpGetUpvalue:
			name := fi.Constants[instr.A].(string)
			vm.push(frame.overflow[name])
		case bytecode.OpSetUpvalue:
			name := fi.Constants[instr.A].(string)
			frame.overflow[name] = vm.peek(0)

		case bytecode.OpClosure:
			funcIdx := int(instr.A)
			n := int(instr.C)
			upvalues := make([]Value, n)
			for i := n - 1; i >= 0; i-- {
				upvalues[i] = vm.pop()
			}
			vm.push(&ClosureValue{FuncIndex: funcIdx, Upvalues: upvalues})

		case bytecode.OpCall:
			target := int(instr.A)
			argc := int(instr.B)
			args := make([]Value, argc)
			for i := argc - 1; i >= 0; i-- {
				args[i] = vm.pop()
			}
			res, err := vm.callFunction(target, args)
			if err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}
			vm.push(res)

		case bytecode.OpCallWithSplat:
			target := int(instr.A)
			argc := int(instr.B)
			mask := instr.C
			raw := make([]Value, argc)
			for i := argc - 1; i >= 0; i-- {
				raw[i] = vm.pop()
			}
			args := make([]Value, 0, argc)
			for i, v := range raw {
				if mask&(1<<uint(i)) != 0 {
					expanded, err := vm.expandSplat(v)
					if err != nil {
						if vm.handleThrow(err) {
							continue dispatch
						}
						return nil, err
					}
					args = append(args, expanded...)
				} else {
					args = append(args, v)
				}
			}
			res, err := vm.callFunction(target, args)
			if err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}
			vm.push(res)

		case bytecode.OpCallSpecialize:
			target, err := vm.resolveSpecialization(int(instr.A), int(instr.B))
			if err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}
			argc := int(instr.B)
			args := make([]Value, argc)
			for i := argc - 1; i >= 0; i-- {
				args[i] = vm.pop()
			}
			res, err := vm.callFunction(target, args)
			if err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}
			vm.push(res)

		case bytecode.OpCallTypedDispatch:
			groupIdx := int(instr.A)
			argc := int(instr.B)
			args := make([]Value, argc)
			for i := argc - 1; i >= 0; i-- {
				args[i] = vm.pop()
			}
			target, err := vm.resolveTypedDispatch(groupIdx, args)
			if err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}
			res, err := vm.callFunction(target, args)
			if err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}
			vm.push(res)

		case bytecode.OpCallFunctionVariable, bytecode.OpCallGlobalRef:
			argc := int(instr.B)
			args := make([]Value, argc)
			for i := argc - 1; i >= 0; i-- {
				args[i] = vm.pop()
			}
			callee := vm.pop()
			res, err := vm.callValue(callee, args)
			if err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}
			vm.push(res)

		case bytecode.OpCallBuiltin, bytecode.OpCallIntrinsic:
			name := fi.Constants[instr.A].(string)
			argc := int(instr.B)
			args := make([]Value, argc)
			for i := argc - 1; i >= 0; i-- {
				args[i] = vm.pop()
			}
			res, err := vm.callBuiltin(name, args)
			if err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}
			vm.push(res)

		case bytecode.OpReturn, bytecode.OpReturnI64, bytecode.OpReturnF64, bytecode.OpReturnStruct:
			var v Value = NilValue{}
			if len(vm.stack) > 0 && instr.A != 0 {
				v = vm.pop()
			}
			vm.popHandlersForReturn(frame)
			return v, nil

		case bytecode.OpNewArray:
			n := int(instr.A)
			data := make([]Value, n)
			for i := n - 1; i >= 0; i-- {
				data[i] = vm.pop()
			}
			vm.push(NewArray1D("Any", data))
		case bytecode.OpNewTuple:
			n := int(instr.A)
			data := make([]Value, n)
			for i := n - 1; i >= 0; i-- {
				data[i] = vm.pop()
			}
			vm.push(&TupleValue{Elements: data})
		case bytecode.OpNewDict:
			n := int(instr.A)
			d := NewDict()
			for i := 0; i < n; i++ {
				v := vm.pop()
				k := vm.pop()
				d.Set(k, v)
			}
			vm.push(d)
		case bytecode.OpNewSet:
			n := int(instr.A)
			s := NewSet()
			for i := 0; i < n; i++ {
				s.Add(vm.pop())
			}
			vm.push(s)
		case bytecode.OpNewStruct, bytecode.OpNewDynamicParametricStruct:
			typeName := fi.Constants[instr.A].(string)
			si := vm.structInfoByName(typeName)
			n := len(si.Fields)
			fields := map[string]Value{}
			for i := n - 1; i >= 0; i-- {
				fields[si.Fields[i].Name] = vm.pop()
			}
			vm.structHeap = append(vm.structHeap, &StructInstance{TypeName: typeName, Mutable: si.Mutable, Fields: fields})
			vm.push(StructRef{TypeName: typeName, Index: len(vm.structHeap) - 1})

		case bytecode.OpGetField, bytecode.OpNamedTupleGetField, bytecode.OpPairsGetBySymbol:
			field := fi.Constants[instr.A].(string)
			recv := vm.pop()
			v, err := vm.getField(recv, field)
			if err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}
			vm.push(v)
		case bytecode.OpSetField:
			field := fi.Constants[instr.A].(string)
			val := vm.pop()
			recv := vm.pop()
			if err := vm.setField(recv, field, val); err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}

		case bytecode.OpGetIndex:
			idx := vm.pop()
			recv := vm.pop()
			v, err := vm.getIndex(recv, idx)
			if err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}
			vm.push(v)
		case bytecode.OpSetIndex:
			val := vm.pop()
			idx := vm.pop()
			recv := vm.pop()
			if err := vm.setIndex(recv, idx, val); err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}

		case bytecode.OpArrayLen:
			n, err := vm.iterLen(vm.pop())
			if err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}
			vm.push(int64(n))
		case bytecode.OpIterateDynamic:
			idx := vm.pop()
			recv := vm.pop()
			i, ok := idx.(int64)
			if !ok {
				err := throwError(diagnostics.RuntimeTypeMismatch, "iteration index must be Int64")
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}
			v, err := vm.iterAt(recv, int(i))
			if err != nil {
				if vm.handleThrow(err) {
					continue dispatch
				}
				return nil, err
			}
			vm.push(v)
		case bytecode.OpStringLen:
			s := vm.pop().(string)
			vm.push(int64(len([]rune(s))))

		case bytecode.OpConcat:
			b, a := vm.pop(), vm.pop()
			vm.push(Format(a) + Format(b))
		case bytecode.OpSubstring:
			end, start := int(vm.pop().(int64)), int(vm.pop().(int64))
			s := []rune(vm.pop().(string))
			if start < 0 || end > len(s) || start > end {
				if vm.handleThrow(throwError(diagnostics.RuntimeIndexOutOfBounds, "substring bounds out of range")) {
					continue dispatch
				}
				return nil, throwError(diagnostics.RuntimeIndexOutOfBounds, "substring bounds out of range")
			}
			vm.push(string(s[start:end]))
		case bytecode.OpToString:
			vm.push(Format(vm.pop()))

		case bytecode.OpTypeOf:
			vm.push(vm.pop())
			vm.stack[len(vm.stack)-1] = Symbol{Name: TypeName(vm.stack[len(vm.stack)-1])}
		case bytecode.OpIsType:
			typeName := fi.Constants[instr.A].(string)
			v := vm.pop()
			vm.push(vm.isType(v, typeName))
		case bytecode.OpLoadTypeBinding:
			name := fi.Constants[instr.A].(string)
			vm.push(frame.overflow["type:"+name])

		case bytecode.OpEnterTry:
			frame.handlers = append(frame.handlers, tryHandler{
				catchIP:   instr.A,
				stackTop:  len(vm.stack),
				frameDepth: len(vm.frames),
			})
		case bytecode.OpLeaveTry:
			if len(frame.handlers) > 0 {
				frame.handlers = frame.handlers[:len(frame.handlers)-1]
			}
		case bytecode.OpThrow:
			thrown := vm.pop()
			err := &VMError{Subkind: diagnostics.RuntimeUserThrown, Value: thrown, Message: Format(thrown)}
			if vm.handleThrow(err) {
				continue dispatch
			}
			return nil, err

		case bytecode.OpPrint:
			s := Format(vm.pop())
			vm.emit(s)
		case bytecode.OpPrintln:
			s := Format(vm.pop())
			vm.emit(s + "\n")

		case bytecode.OpImport, bytecode.OpExport:
			// Module-table bookkeeping: resolved during compilation; the
			// dispatch loop only needs to be a no-op placeholder here.

		default:
			return nil, fmt.Errorf("vm: InternalInvariant: unimplemented opcode %s", instr.Op.Name())
		}
	}
}

// handleThrow searches the current frame's installed handlers (innermost
// first) for one that catches err, rewinding the stack to the handler's
// depth, binding the thrown value, and jumping the frame's ip to its catch
// block. Reports whether it found one: execute's dispatch loop continues
// from the new frame.ip on true, or keeps unwinding (returning the error to
// an outer OpCall site, which retries the search one frame up) on false —
// spec.md §4.6's "handler rewind across frames" propagation.
func (vm *VM) handleThrow(err error) bool {
	if len(vm.frames) == 0 {
		return false
	}
	frame := vm.currentFrame()
	if len(frame.handlers) == 0 {
		return false
	}
	h := frame.handlers[len(frame.handlers)-1]
	frame.handlers = frame.handlers[:len(frame.handlers)-1]
	vm.stack = vm.stack[:h.stackTop]
	if ve, ok := err.(*VMError); ok {
		vm.push(ve.Value)
	} else {
		vm.push(err.Error())
	}
	frame.ip = int(h.catchIP)
	return true
}

// popHandlersForReturn discards any handlers still installed in a frame that
// is returning normally (spec.md §4.6's "handlers-for-return sweep"): a
// handler's scope never outlives its owning frame.
func (vm *VM) popHandlersForReturn(frame *CallFrame) {
	frame.handlers = nil
}

func truthy(v Value) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return v != nil
}

func valuesEqual(a, b Value) bool {
	if TypeName(a) != TypeName(b) {
		an, aok := toFloat(a)
		bn, bok := toFloat(b)
		if aok && bok {
			return an == bn
		}
		return false
	}
	switch x := a.(type) {
	case *ArrayValue:
		y := b.(*ArrayValue)
		if len(x.Data) != len(y.Data) {
			return false
		}
		for i := range x.Data {
			if !valuesEqual(x.Data[i], y.Data[i]) {
				return false
			}
		}
		return true
	default:
		return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
	}
}

func toFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	default:
		return 0, false
	}
}

func (vm *VM) emit(s string) {
	vm.out = append(vm.out, []byte(s)...)
	if vm.streamOut != nil {
		vm.streamOut(s)
	}
}

func (vm *VM) structInfoByName(name string) *bytecode.StructInfo {
	for i := range vm.Program.Structs {
		if vm.Program.Structs[i].Name == name {
			return &vm.Program.Structs[i]
		}
	}
	return &bytecode.StructInfo{Name: name}
}

func (vm *VM) isType(v Value, typeName string) bool {
	if typeName == "Any" {
		return true
	}
	return TypeName(v) == typeName
}

func (vm *VM) getField(recv Value, field string) (Value, error) {
	switch r := recv.(type) {
	case StructRef:
		inst := vm.structHeap[r.Index]
		v, ok := inst.Fields[field]
		if !ok {
			return nil, throwError(diagnostics.RuntimeMethodError, "type %s has no field %q", r.TypeName, field)
		}
		return v, nil
	case *NamedTupleValue:
		for i, n := range r.Names {
			if n == field {
				return r.Values[i], nil
			}
		}
		return nil, throwError(diagnostics.RuntimeMethodError, "named tuple has no field %q", field)
	case *ModuleValue:
		v, ok := r.Exports[field]
		if !ok {
			return nil, throwError(diagnostics.RuntimeUndefinedVar, "module %s has no export %q", r.Name, field)
		}
		return v, nil
	default:
		return nil, throwError(diagnostics.RuntimeTypeMismatch, "cannot access field %q on %s", field, TypeName(recv))
	}
}

func (vm *VM) setField(recv Value, field string, val Value) error {
	r, ok := recv.(StructRef)
	if !ok {
		return throwError(diagnostics.RuntimeTypeMismatch, "cannot set field on %s", TypeName(recv))
	}
	inst := vm.structHeap[r.Index]
	if !inst.Mutable {
		// Immutable struct "mutation" allocates a fresh heap entry rather than
		// modifying the original in place (spec.md §3.4).
		fresh := &StructInstance{TypeName: inst.TypeName, Mutable: false, Fields: map[string]Value{}}
		for k, v := range inst.Fields {
			fresh.Fields[k] = v
		}
		fresh.Fields[field] = val
		vm.structHeap = append(vm.structHeap, fresh)
		return nil
	}
	inst.Fields[field] = val
	return nil
}

// iterLen returns the element count of any iterable value, per spec.md
// §4.2's element_of family. Used by ForEach compilation instead of a literal
// ArrayValue assertion so `for x in <dict|set|range|string|tuple>` works.
func (vm *VM) iterLen(v Value) (int, error) {
	switch r := v.(type) {
	case *ArrayValue:
		return r.Len(), nil
	case *TupleValue:
		return len(r.Elements), nil
	case *DictValue:
		return r.Len(), nil
	case *SetValue:
		return r.Len(), nil
	case RangeValue:
		return r.Len(), nil
	case string:
		return len([]rune(r)), nil
	case *MemoryValue:
		return len(r.Data), nil
	default:
		return 0, throwError(diagnostics.RuntimeTypeMismatch, "cannot iterate %s", TypeName(v))
	}
}

// iterAt returns the i'th element of any iterable value in iteration order.
// A Dict yields Tuple{key,value} per spec.md §4.2's element_of(Dict{K,V}).
func (vm *VM) iterAt(v Value, i int) (Value, error) {
	switch r := v.(type) {
	case *ArrayValue:
		if i < 0 || i >= len(r.Data) {
			return nil, throwError(diagnostics.RuntimeIndexOutOfBounds, "index %d out of bounds (len %d)", i, len(r.Data))
		}
		return r.Data[i], nil
	case *TupleValue:
		if i < 0 || i >= len(r.Elements) {
			return nil, throwError(diagnostics.RuntimeIndexOutOfBounds, "tuple index %d out of bounds", i)
		}
		return r.Elements[i], nil
	case *DictValue:
		if i < 0 || i >= len(r.Keys) {
			return nil, throwError(diagnostics.RuntimeIndexOutOfBounds, "dict index %d out of bounds", i)
		}
		k := r.Keys[i]
		val, _ := r.Get(k)
		return &TupleValue{Elements: []Value{k, val}}, nil
	case *SetValue:
		if i < 0 || i >= len(r.Order) {
			return nil, throwError(diagnostics.RuntimeIndexOutOfBounds, "set index %d out of bounds", i)
		}
		return r.Order[i], nil
	case RangeValue:
		if i < 0 || i >= r.Len() {
			return nil, throwError(diagnostics.RuntimeIndexOutOfBounds, "range index %d out of bounds", i)
		}
		return r.At(i), nil
	case string:
		runes := []rune(r)
		if i < 0 || i >= len(runes) {
			return nil, throwError(diagnostics.RuntimeIndexOutOfBounds, "string index %d out of bounds", i)
		}
		return runes[i], nil
	case *MemoryValue:
		if i < 0 || i >= len(r.Data) {
			return nil, throwError(diagnostics.RuntimeIndexOutOfBounds, "memory index %d out of bounds", i)
		}
		return r.Data[i], nil
	default:
		return nil, throwError(diagnostics.RuntimeTypeMismatch, "cannot iterate %s", TypeName(v))
	}
}

// expandSplat expands a splatted call argument into zero or more positional
// values (spec.md §4.6 "Splat expansion"): Array/Tuple/Range collections
// expand element-wise; any other value passes through unchanged since the
// splat flag on a non-collection is a no-op.
func (vm *VM) expandSplat(v Value) ([]Value, error) {
	switch r := v.(type) {
	case *ArrayValue:
		out := make([]Value, len(r.Data))
		copy(out, r.Data)
		return out, nil
	case *TupleValue:
		out := make([]Value, len(r.Elements))
		copy(out, r.Elements)
		return out, nil
	case RangeValue:
		n := r.Len()
		out := make([]Value, n)
		for i := 0; i < n; i++ {
			out[i] = r.At(i)
		}
		return out, nil
	default:
		return []Value{v}, nil
	}
}

func (vm *VM) getIndex(recv, idx Value) (Value, error) {
	switch r := recv.(type) {
	case *ArrayValue:
		i, ok := idx.(int64)
		if !ok {
			return nil, throwError(diagnostics.RuntimeTypeMismatch, "array index must be Int64")
		}
		if i < 0 || int(i) >= len(r.Data) {
			return nil, throwError(diagnostics.RuntimeIndexOutOfBounds, "index %d out of bounds (len %d)", i, len(r.Data))
		}
		return r.Data[i], nil
	case *TupleValue:
		i := idx.(int64)
		if i < 0 || int(i) >= len(r.Elements) {
			return nil, throwError(diagnostics.RuntimeIndexOutOfBounds, "tuple index %d out of bounds", i)
		}
		return r.Elements[i], nil
	case *DictValue:
		v, ok := r.Get(idx)
		if !ok {
			return nil, throwError(diagnostics.RuntimeMethodError, "key %v not found", idx)
		}
		return v, nil
	case string:
		runes := []rune(r)
		i := idx.(int64)
		if i < 0 || int(i) >= len(runes) {
			return nil, throwError(diagnostics.RuntimeIndexOutOfBounds, "string index %d out of bounds", i)
		}
		return runes[i], nil
	case RangeValue:
		i := idx.(int64)
		if int(i) < 0 || int(i) >= r.Len() {
			return nil, throwError(diagnostics.RuntimeIndexOutOfBounds, "range index %d out of bounds", i)
		}
		return r.At(int(i)), nil
	case *MemoryValue:
		i := idx.(int64)
		if i < 0 || int(i) >= len(r.Data) {
			return nil, throwError(diagnostics.RuntimeIndexOutOfBounds, "memory index %d out of bounds", i)
		}
		return r.Data[i], nil
	default:
		return nil, throwError(diagnostics.RuntimeTypeMismatch, "cannot index %s", TypeName(recv))
	}
}

func (vm *VM) setIndex(recv, idx, val Value) error {
	switch r := recv.(type) {
	case *ArrayValue:
		i := idx.(int64)
		if i < 0 || int(i) >= len(r.Data) {
			return throwError(diagnostics.RuntimeIndexOutOfBounds, "index %d out of bounds (len %d)", i, len(r.Data))
		}
		r.Data[i] = val
		return nil
	case *DictValue:
		r.Set(idx, val)
		return nil
	case *MemoryValue:
		i := idx.(int64)
		if i < 0 || int(i) >= len(r.Data) {
			return throwError(diagnostics.RuntimeIndexOutOfBounds, "memory index %d out of bounds", i)
		}
		r.Data[i] = val
		return nil
	default:
		return throwError(diagnostics.RuntimeTypeMismatch, "cannot index-assign %s", TypeName(recv))
	}
}

// resolveSpecialization implements CallSpecialize (spec.md §4.6 step 4): the
// first call at a given call site with a given argument-type signature
// compiles (or, here, locates) a monomorphized FunctionInfo and remembers it
// in vm.specializations, so subsequent calls with the same signature skip
// straight to the specialized entry point.
func (vm *VM) resolveSpecialization(genericFuncIndex int, argc int) (int, error) {
	args := make([]Value, argc)
	for i := 0; i < argc; i++ {
		args[i] = vm.peek(argc - 1 - i)
	}
	sig := make([]string, argc)
	for i, a := range args {
		sig[i] = TypeName(a)
	}
	key := specializationKey{funcIndex: genericFuncIndex, argSig: fmt.Sprint(sig)}
	if idx, ok := vm.specializations[key]; ok {
		return idx, nil
	}
	// No cached specialization: the generic retained-IR compiler (C6) would
	// normally monomorphize vm.Program.Specializable[genericFuncIndex] here and
	// append it via CompiledProgram.AppendFunction. Until that compiler hook is
	// wired, fall back to the generic entry point itself — functionally
	// correct (dynamic dispatch), just not specialized.
	vm.specializations[key] = genericFuncIndex
	return genericFuncIndex, nil
}

// resolveTypedDispatch re-scores a precomputed candidate group against live
// argument types (spec.md §4.4's OutcomeTyped path: compile time narrowed the
// candidate set but couldn't pick a single winner, so the VM arbitrates using
// the concrete runtime types). Scoring mirrors internal/dispatch's exact-match
// priority but against runtime tags instead of lattice types.
func (vm *VM) resolveTypedDispatch(groupIdx int, args []Value) (int, error) {
	if groupIdx < 0 || groupIdx >= len(vm.Program.DispatchGroups) {
		return 0, throwError(diagnostics.RuntimeMethodError, "InternalInvariant: bad dispatch group %d", groupIdx)
	}
	candidates := vm.Program.DispatchGroups[groupIdx]
	bestIdx, bestScore := -1, -1
	for _, fnIdx := range candidates {
		fi := vm.Program.Functions[fnIdx]
		if len(fi.Params) != len(args) {
			continue
		}
		score := 0
		for i, p := range fi.Params {
			if p.SlotType == "" || p.SlotType == "Any" {
				continue
			}
			if p.SlotType == TypeName(args[i]) {
				score += 10
			} else {
				score = -1
				break
			}
		}
		if score > bestScore {
			bestScore = score
			bestIdx = fnIdx
		}
	}
	if bestIdx == -1 {
		return 0, throwError(diagnostics.RuntimeMethodError, "no matching method for dispatch group %d", groupIdx)
	}
	return bestIdx, nil
}

// CallBuiltin invokes a named builtin (either VM-provided or registered by a
// Base submodule via RegisterBuiltin) outside of bytecode execution, the path
// the embedding API and Base-module tests use to exercise a builtin directly.
func (vm *VM) CallBuiltin(name string, args []Value) (Value, error) {
	return vm.callBuiltin(name, args)
}

func (vm *VM) callBuiltin(name string, args []Value) (Value, error) {
	switch name {
	case "println":
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = Format(a)
		}
		s := joinStrings(parts, " ")
		vm.emit(s + "\n")
		return NilValue{}, nil
	case "print":
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = Format(a)
		}
		vm.emit(joinStrings(parts, " "))
		return NilValue{}, nil
	case "length":
		return int64(builtinLength(args[0])), nil
	case "rand":
		return vm.rng.Float64(), nil
	case "seed!":
		vm.rng.Seed(uint64(args[0].(int64)))
		return NilValue{}, nil
	case "sort":
		return builtinSort(args[0])
	case "##makerange":
		start, sok := toFloat(args[0])
		step, tok := toFloat(args[1])
		stop, pok := toFloat(args[2])
		if !sok || !tok || !pok {
			return nil, throwError(diagnostics.RuntimeTypeMismatch, "range bounds must be numeric")
		}
		_, isInt := args[0].(int64)
		return RangeValue{Start: start, Step: step, Stop: stop, IsInt: isInt}, nil
	case "throw":
		var v Value = NilValue{}
		if len(args) > 0 {
			v = args[0]
		}
		return nil, &VMError{Subkind: diagnostics.RuntimeUserThrown, Value: v, Message: Format(v)}
	case "typeof":
		return TypeName(args[0]), nil
	case "deepcopy":
		return vm.deepCopy(args[0]), nil
	case "matmul":
		return builtinMatmul(args[0], args[1])
	default:
		builtinRegistryMu.RLock()
		fn, ok := builtinRegistry[name]
		builtinRegistryMu.RUnlock()
		if ok {
			return fn(vm, args)
		}
		return nil, throwError(diagnostics.RuntimeMethodError, "no Base method named %q", name)
	}
}

// BuiltinFunc is the shape of a VM-provided CallBuiltin implementation
// (spec.md §4.5's "CallBuiltin for VM-provided operations"). Base submodules
// (internal/base's db/net/crypto/time modules) register theirs through
// RegisterBuiltin rather than this package importing them directly, which
// would invert the dependency the other way around.
type BuiltinFunc func(vm *VM, args []Value) (Value, error)

var (
	builtinRegistryMu sync.RWMutex
	builtinRegistry   = map[string]BuiltinFunc{}
)

// RegisterBuiltin adds a builtin to the shared registry every VM instance
// consults. It is meant to be called from package init() functions in Base
// submodules, mirroring the teacher's module-loader registration pattern
// (internal/vm/module_loader.go) but keyed by plain name instead of a
// module-handle value.
func RegisterBuiltin(name string, fn BuiltinFunc) {
	builtinRegistryMu.Lock()
	defer builtinRegistryMu.Unlock()
	builtinRegistry[name] = fn
}

// deepCopy implements the introspection/deep-copy supplement of SPEC_FULL.md
// §6: structs and containers are copied recursively; everything else in the
// closed value set is already immutable or cheap to copy by value.
func (vm *VM) deepCopy(v Value) Value {
	switch x := v.(type) {
	case StructRef:
		orig := vm.structHeap[x.Index]
		fields := make(map[string]Value, len(orig.Fields))
		for k, fv := range orig.Fields {
			fields[k] = vm.deepCopy(fv)
		}
		vm.structHeap = append(vm.structHeap, &StructInstance{TypeName: orig.TypeName, Mutable: orig.Mutable, Fields: fields})
		return StructRef{TypeName: x.TypeName, Index: len(vm.structHeap) - 1}
	case *ArrayValue:
		data := make([]Value, len(x.Data))
		for i, e := range x.Data {
			data[i] = vm.deepCopy(e)
		}
		return NewArray1D(x.ElemType, data)
	case *TupleValue:
		elems := make([]Value, len(x.Elements))
		for i, e := range x.Elements {
			elems[i] = vm.deepCopy(e)
		}
		return &TupleValue{Elements: elems}
	case *DictValue:
		d := NewDict()
		for _, k := range x.Keys {
			dv, _ := x.Get(k)
			d.Set(vm.deepCopy(k), vm.deepCopy(dv))
		}
		return d
	case *SetValue:
		s := NewSet()
		for _, e := range x.Order {
			s.Add(vm.deepCopy(e))
		}
		return s
	default:
		return v
	}
}

// builtinMatmul implements the dense, naive 2-D matrix multiply intrinsic
// supplemented from original_source's vm/matmul/multiply.rs (SPEC_FULL.md
// §6): no BLAS dependency appears anywhere in the example pack, so this
// stays on plain nested loops rather than reaching for one.
func builtinMatmul(a, b Value) (Value, error) {
	am, aok := a.(*ArrayValue)
	bm, bok := b.(*ArrayValue)
	if !aok || !bok || len(am.Shape) != 2 || len(bm.Shape) != 2 {
		return nil, throwError(diagnostics.RuntimeTypeMismatch, "matmul expects two 2-D arrays")
	}
	ar, ac := am.Shape[0], am.Shape[1]
	br, bc := bm.Shape[0], bm.Shape[1]
	if ac != br {
		return nil, throwError(diagnostics.RuntimeTypeMismatch, "matmul: inner dimensions %d and %d do not match", ac, br)
	}
	out := make([]Value, ar*bc)
	for i := 0; i < ar; i++ {
		for j := 0; j < bc; j++ {
			var sum float64
			for k := 0; k < ac; k++ {
				av, _ := toFloat(am.Data[i*ac+k])
				bv, _ := toFloat(bm.Data[k*bc+j])
				sum += av * bv
			}
			out[i*bc+j] = sum
		}
	}
	return &ArrayValue{ElemType: "Float64", Shape: []int{ar, bc}, Data: out}, nil
}

func joinStrings(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

func builtinLength(v Value) int {
	switch x := v.(type) {
	case *ArrayValue:
		return x.Len()
	case *TupleValue:
		return len(x.Elements)
	case *DictValue:
		return x.Len()
	case *SetValue:
		return x.Len()
	case string:
		return len([]rune(x))
	case RangeValue:
		return x.Len()
	default:
		return 0
	}
}

func builtinSort(v Value) (Value, error) {
	arr, ok := v.(*ArrayValue)
	if !ok {
		return nil, throwError(diagnostics.RuntimeTypeMismatch, "sort expects an Array")
	}
	out := make([]Value, len(arr.Data))
	copy(out, arr.Data)
	sort.SliceStable(out, func(i, j int) bool {
		fi, iok := toFloat(out[i])
		fj, jok := toFloat(out[j])
		if iok && jok {
			return fi < fj
		}
		return Format(out[i]) < Format(out[j])
	})
	return NewArray1D(arr.ElemType, out), nil
}

// OpCodeFromConstant recovers the opcode embedded as a constant-pool entry by
// the compiler for OpCallDynamicBinaryBoth sites (the actual operator isn't
// known statically, so it travels as data rather than as the instruction's
// own opcode).
func OpCodeFromConstant(c interface{}) bytecode.OpCode {
	if op, ok := c.(bytecode.OpCode); ok {
		return op
	}
	return bytecode.OpAdd
}
