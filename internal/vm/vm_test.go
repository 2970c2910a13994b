package vm

import (
	"math"
	"testing"

	"vela/internal/bytecode"
)

// buildProgram wraps a single function's chunk into a runnable CompiledProgram
// with one FunctionInfo acting as both main and callee, matching the table
// shape the teacher's vm_test.go used for instruction-level tests.
func buildProgram(chunk *bytecode.Chunk) *bytecode.CompiledProgram {
	cp := bytecode.NewCompiledProgram()
	idx := cp.AppendFunction(bytecode.FunctionInfo{Name: "main", SlotNames: []string{}}, chunk)
	cp.MainEntry = idx
	return cp
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		build    func() *bytecode.Chunk
		expected Value
	}{
		{
			name: "addition",
			build: func() *bytecode.Chunk {
				c := bytecode.NewChunk()
				a := c.AddConstant(int64(10))
				b := c.AddConstant(int64(20))
				c.Emit(bytecode.OpConstant, a, 0, 0, bytecode.DebugInfo{})
				c.Emit(bytecode.OpConstant, b, 0, 0, bytecode.DebugInfo{})
				c.Emit(bytecode.OpAdd, 0, 0, 0, bytecode.DebugInfo{})
				c.Emit(bytecode.OpReturn, 1, 0, 0, bytecode.DebugInfo{})
				return c
			},
			expected: int64(30),
		},
		{
			name: "division always widens to float",
			build: func() *bytecode.Chunk {
				c := bytecode.NewChunk()
				a := c.AddConstant(int64(60))
				b := c.AddConstant(int64(4))
				c.Emit(bytecode.OpConstant, a, 0, 0, bytecode.DebugInfo{})
				c.Emit(bytecode.OpConstant, b, 0, 0, bytecode.DebugInfo{})
				c.Emit(bytecode.OpDiv, 0, 0, 0, bytecode.DebugInfo{})
				c.Emit(bytecode.OpReturn, 1, 0, 0, bytecode.DebugInfo{})
				return c
			},
			expected: float64(15),
		},
		{
			name: "string concatenation via Add",
			build: func() *bytecode.Chunk {
				c := bytecode.NewChunk()
				a := c.AddConstant("foo")
				b := c.AddConstant("bar")
				c.Emit(bytecode.OpConstant, a, 0, 0, bytecode.DebugInfo{})
				c.Emit(bytecode.OpConstant, b, 0, 0, bytecode.DebugInfo{})
				c.Emit(bytecode.OpAdd, 0, 0, 0, bytecode.DebugInfo{})
				c.Emit(bytecode.OpReturn, 1, 0, 0, bytecode.DebugInfo{})
				return c
			},
			expected: "foobar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := buildProgram(tt.build())
			vm := New(cp)
			got, err := vm.Run()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("got %v (%T), want %v (%T)", got, got, tt.expected, tt.expected)
			}
		})
	}
}

func TestDivisionByZeroThrows(t *testing.T) {
	c := bytecode.NewChunk()
	a := c.AddConstant(int64(1))
	b := c.AddConstant(int64(0))
	c.Emit(bytecode.OpConstant, a, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpConstant, b, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpDivI64, 0, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpReturn, 1, 0, 0, bytecode.DebugInfo{})

	cp := buildProgram(c)
	vm := New(cp)
	_, err := vm.Run()
	if err == nil {
		t.Fatalf("expected a division-by-zero error")
	}
	ve, ok := err.(*VMError)
	if !ok {
		t.Fatalf("expected *VMError, got %T", err)
	}
	if ve.Subkind != "DivisionByZero" {
		t.Errorf("got subkind %v", ve.Subkind)
	}
}

// TestDynamicDivisionByZeroYieldsInf confirms OpDiv (the generic `/`, which
// always widens to Float64 per spec.md §4.2) never raises on a zero divisor
// — only OpDivI64's true integer division does (TestDivisionByZeroThrows).
// Per spec.md §8, a float-typed division by zero yields +-Inf/NaN.
func TestDynamicDivisionByZeroYieldsInf(t *testing.T) {
	c := bytecode.NewChunk()
	a := c.AddConstant(int64(1))
	b := c.AddConstant(int64(0))
	c.Emit(bytecode.OpConstant, a, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpConstant, b, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpDiv, 0, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpReturn, 1, 0, 0, bytecode.DebugInfo{})

	cp := buildProgram(c)
	vm := New(cp)
	got, err := vm.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, ok := got.(float64)
	if !ok || !math.IsInf(f, 1) {
		t.Errorf("got %v (%T), want +Inf", got, got)
	}
}

func TestTryCatchHandlesThrow(t *testing.T) {
	c := bytecode.NewChunk()
	msg := c.AddConstant("boom")

	enterIP := c.Emit(bytecode.OpEnterTry, 0, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpConstant, msg, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpThrow, 0, 0, 0, bytecode.DebugInfo{})
	leaveIP := c.Emit(bytecode.OpLeaveTry, 0, 0, 0, bytecode.DebugInfo{})
	jumpOverCatch := c.Emit(bytecode.OpJump, 0, 0, 0, bytecode.DebugInfo{})
	catchStart := len(c.Code)
	returnIP := c.Emit(bytecode.OpReturn, 1, 0, 0, bytecode.DebugInfo{})

	c.Patch(enterIP, int32(catchStart))
	c.Patch(jumpOverCatch, int32(returnIP+1))
	_ = leaveIP

	cp := buildProgram(c)
	vm := New(cp)
	got, err := vm.Run()
	if err != nil {
		t.Fatalf("unexpected escaping error: %v", err)
	}
	if got != "boom" {
		t.Errorf("got %v, want the thrown value to be bound and returned", got)
	}
}

// TestTryCatchResumesDispatchLoop regression-tests handleThrow actually
// reporting a handled catch to its caller: a throw inside a try block, once
// caught, must let execution continue with the instructions that follow the
// catch block in the same frame rather than unwinding execute() as if the
// throw were a function return.
func TestTryCatchResumesDispatchLoop(t *testing.T) {
	c := bytecode.NewChunk()
	msg := c.AddConstant("boom")
	after := c.AddConstant(int64(42))

	enterIP := c.Emit(bytecode.OpEnterTry, 0, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpConstant, msg, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpThrow, 0, 0, 0, bytecode.DebugInfo{})
	leaveIP := c.Emit(bytecode.OpLeaveTry, 0, 0, 0, bytecode.DebugInfo{})
	jumpOverCatch := c.Emit(bytecode.OpJump, 0, 0, 0, bytecode.DebugInfo{})
	catchStart := len(c.Code)
	c.Emit(bytecode.OpPop, 0, 0, 0, bytecode.DebugInfo{})
	afterCatch := len(c.Code)
	c.Emit(bytecode.OpConstant, after, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpReturn, 1, 0, 0, bytecode.DebugInfo{})

	c.Patch(enterIP, int32(catchStart))
	c.Patch(jumpOverCatch, int32(afterCatch))
	_ = leaveIP

	cp := buildProgram(c)
	vm := New(cp)
	got, err := vm.Run()
	if err != nil {
		t.Fatalf("unexpected escaping error: %v", err)
	}
	if got != int64(42) {
		t.Errorf("got %v, want 42 (execution resumed past the catch block)", got)
	}
}

func TestArrayIndexOutOfBounds(t *testing.T) {
	c := bytecode.NewChunk()
	idx := c.AddConstant(int64(5))
	c.Emit(bytecode.OpNewArray, 0, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpConstant, idx, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpGetIndex, 0, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpReturn, 1, 0, 0, bytecode.DebugInfo{})

	cp := buildProgram(c)
	vm := New(cp)
	_, err := vm.Run()
	if err == nil {
		t.Fatalf("expected an index-out-of-bounds error on an empty array")
	}
}

// TestIterateDynamicOverDict regression-tests the ForEach fix: OpArrayLen
// used to assert a bare *ArrayValue, so iterating a Dict panicked. Dict
// iteration yields Tuple{key,value} per spec.md §4.2's element_of(Dict{K,V}).
func TestIterateDynamicOverDict(t *testing.T) {
	c := bytecode.NewChunk()
	k1, v1 := c.AddConstant(int64(1)), c.AddConstant(int64(10))
	c.Emit(bytecode.OpConstant, k1, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpConstant, v1, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpNewDict, 1, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpStoreSlot, 0, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpPop, 0, 0, 0, bytecode.DebugInfo{})

	c.Emit(bytecode.OpLoadSlot, 0, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpArrayLen, 0, 0, 0, bytecode.DebugInfo{})
	lenSlot := int32(1)
	c.Emit(bytecode.OpStoreSlot, lenSlot, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpPop, 0, 0, 0, bytecode.DebugInfo{})

	zero := c.AddConstant(int64(0))
	c.Emit(bytecode.OpLoadSlot, 0, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpConstant, zero, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpIterateDynamic, 0, 0, 0, bytecode.DebugInfo{})
	c.Emit(bytecode.OpReturn, 1, 0, 0, bytecode.DebugInfo{})

	cp := bytecode.NewCompiledProgram()
	idx := cp.AppendFunction(bytecode.FunctionInfo{Name: "main", SlotNames: []string{"d", "n"}}, c)
	cp.MainEntry = idx

	vm := New(cp)
	got, err := vm.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tup, ok := got.(*TupleValue)
	if !ok {
		t.Fatalf("got %T, want *TupleValue", got)
	}
	if tup.Elements[0] != int64(1) || tup.Elements[1] != int64(10) {
		t.Errorf("got %v, want Tuple{1, 10}", tup.Elements)
	}
}

// TestClosureCapturesEnclosingVariable exercises OpClosure/OpGetUpvalue and
// the dynamic OpCallFunctionVariable fallback together: a closure created in
// "main" captures a local, is stored as a value, and is invoked through
// CallFunctionVariable rather than a statically resolved OpCall.
func TestClosureCapturesEnclosingVariable(t *testing.T) {
	lamChunk := bytecode.NewChunk()
	xName := lamChunk.AddConstant("x")
	lamChunk.Emit(bytecode.OpGetUpvalue, xName, 0, 0, bytecode.DebugInfo{})
	lamChunk.Emit(bytecode.OpLoadSlot, 0, 0, 0, bytecode.DebugInfo{})
	lamChunk.Emit(bytecode.OpAddI64, 0, 0, 0, bytecode.DebugInfo{})
	lamChunk.Emit(bytecode.OpReturn, 1, 0, 0, bytecode.DebugInfo{})
	lamInfo := bytecode.FunctionInfo{
		Name: "lambda", SlotNames: []string{"y"}, ParamToSlot: []int{0},
		UpvalueNames: []string{"x"}, VarargsIndex: -1, VarargsFixedArity: -1,
	}

	mainChunk := bytecode.NewChunk()
	ten := mainChunk.AddConstant(int64(10))
	mainChunk.Emit(bytecode.OpConstant, ten, 0, 0, bytecode.DebugInfo{})
	mainChunk.Emit(bytecode.OpStoreSlot, 0, 0, 0, bytecode.DebugInfo{})
	mainChunk.Emit(bytecode.OpPop, 0, 0, 0, bytecode.DebugInfo{})
	mainChunk.Emit(bytecode.OpLoadSlot, 0, 0, 0, bytecode.DebugInfo{})

	cp := bytecode.NewCompiledProgram()
	lamIdx := cp.AppendFunction(lamInfo, lamChunk)
	mainChunk.Emit(bytecode.OpClosure, int32(lamIdx), 0, 1, bytecode.DebugInfo{})
	five := mainChunk.AddConstant(int64(5))
	mainChunk.Emit(bytecode.OpConstant, five, 0, 0, bytecode.DebugInfo{})
	mainChunk.Emit(bytecode.OpCallFunctionVariable, 0, 1, 0, bytecode.DebugInfo{})
	mainChunk.Emit(bytecode.OpReturn, 1, 0, 0, bytecode.DebugInfo{})
	mainInfo := bytecode.FunctionInfo{Name: "main", SlotNames: []string{"x"}, VarargsIndex: -1, VarargsFixedArity: -1}
	mainIdx := cp.AppendFunction(mainInfo, mainChunk)
	cp.MainEntry = mainIdx

	vm := New(cp)
	got, err := vm.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != int64(15) {
		t.Errorf("got %v, want 15 (captured x=10 + argument y=5)", got)
	}
}

// TestCallWithSplatExpandsArray exercises OpCallWithSplat's element-wise
// expansion of a collection-valued splatted argument (spec.md §4.6).
func TestCallWithSplatExpandsArray(t *testing.T) {
	sumChunk := bytecode.NewChunk()
	sumChunk.Emit(bytecode.OpLoadSlot, 0, 0, 0, bytecode.DebugInfo{})
	sumChunk.Emit(bytecode.OpLoadSlot, 1, 0, 0, bytecode.DebugInfo{})
	sumChunk.Emit(bytecode.OpAddI64, 0, 0, 0, bytecode.DebugInfo{})
	sumChunk.Emit(bytecode.OpLoadSlot, 2, 0, 0, bytecode.DebugInfo{})
	sumChunk.Emit(bytecode.OpAddI64, 0, 0, 0, bytecode.DebugInfo{})
	sumChunk.Emit(bytecode.OpReturn, 1, 0, 0, bytecode.DebugInfo{})
	sumInfo := bytecode.FunctionInfo{
		Name: "sum3", SlotNames: []string{"a", "b", "c"}, ParamToSlot: []int{0, 1, 2},
		VarargsIndex: -1, VarargsFixedArity: -1,
	}

	cp := bytecode.NewCompiledProgram()
	sumIdx := cp.AppendFunction(sumInfo, sumChunk)

	mainChunk := bytecode.NewChunk()
	one, two, three := mainChunk.AddConstant(int64(1)), mainChunk.AddConstant(int64(2)), mainChunk.AddConstant(int64(3))
	mainChunk.Emit(bytecode.OpConstant, one, 0, 0, bytecode.DebugInfo{})
	mainChunk.Emit(bytecode.OpConstant, two, 0, 0, bytecode.DebugInfo{})
	mainChunk.Emit(bytecode.OpConstant, three, 0, 0, bytecode.DebugInfo{})
	mainChunk.Emit(bytecode.OpNewArray, 3, 0, 0, bytecode.DebugInfo{})
	mainChunk.Emit(bytecode.OpCallWithSplat, int32(sumIdx), 1, 1, bytecode.DebugInfo{})
	mainChunk.Emit(bytecode.OpReturn, 1, 0, 0, bytecode.DebugInfo{})
	mainIdx := cp.AppendFunction(bytecode.FunctionInfo{Name: "main", SlotNames: []string{}, VarargsIndex: -1, VarargsFixedArity: -1}, mainChunk)
	cp.MainEntry = mainIdx

	vm := New(cp)
	got, err := vm.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != int64(6) {
		t.Errorf("got %v, want 6 (1+2+3 via splatted array)", got)
	}
}
