// Package vm implements the stack-based bytecode interpreter (C7, spec.md
// §4.6): the value model, call frames, struct heap, dispatch loop, exception
// propagation, call-site specialization, and deterministic output capture.
// Grounded on the teacher's internal/vm/vm.go EnhancedVM (stack-based
// execution, atomic.Int32 counters, sync.RWMutex-guarded shared maps),
// generalized to the typed value model of spec.md §3.3 and consolidated out
// of the teacher's several alternate vm_*.go prototypes into one
// implementation over vela/internal/bytecode.
package vm

import (
	"fmt"

	"vela/internal/bigmath"
)

// Value is the closed runtime value set of spec.md §3.3: one Go type per
// variant rather than a virtual method table (spec.md §9: "dispatch is
// explicit at instruction level, not via Go interface methods"). `any` plays
// the role of the tagged union; TypeName below is the single switch point
// every dispatch-relevant opcode uses.
type Value = interface{}

// NilValue is the Nothing sentinel.
type NilValue struct{}

// MissingValue is the Missing sentinel, distinct from Nothing per spec.md §3.3.
type MissingValue struct{}

// UndefValue marks an uninitialized slot (read-before-write detection).
type UndefValue struct{}

// Symbol is an interned identifier value (`:foo`).
type Symbol struct{ Name string }

// StructRef is a reference to an instance on the VM's append-only struct heap.
type StructRef struct {
	TypeName string
	Index    int
}

// StructInstance is one struct-heap allocation. Mutable structs are updated
// in place; immutable ones are replaced by a fresh heap entry on "mutation"
// (spec.md §3.4's append-only heap discipline).
type StructInstance struct {
	TypeName string
	Mutable  bool
	Fields   map[string]Value
}

// ArrayValue is an N-dimensional array: a shape vector plus a flat,
// row-major data payload. ElemType records the declared element type for
// display/dispatch; a single []Value payload stands in for spec.md §3.3's
// "type-segregated payload" optimization, which is a valid future
// specialization but not required for correctness.
type ArrayValue struct {
	Shape    []int
	Data     []Value
	ElemType string
}

func NewArray1D(elemType string, data []Value) *ArrayValue {
	return &ArrayValue{Shape: []int{len(data)}, Data: data, ElemType: elemType}
}

func NewArrayShape(elemType string, shape []int) *ArrayValue {
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]Value, n)
	for i := range data {
		data[i] = NilValue{}
	}
	return &ArrayValue{Shape: shape, Data: data, ElemType: elemType}
}

func (a *ArrayValue) Len() int {
	n := 1
	for _, d := range a.Shape {
		n *= d
	}
	return n
}

// strides returns the row-major stride for each dimension.
func (a *ArrayValue) strides() []int {
	s := make([]int, len(a.Shape))
	acc := 1
	for i := len(a.Shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= a.Shape[i]
	}
	return s
}

func (a *ArrayValue) FlatIndex(idx []int) (int, bool) {
	if len(idx) != len(a.Shape) {
		return 0, false
	}
	st := a.strides()
	off := 0
	for i, ix := range idx {
		if ix < 0 || ix >= a.Shape[i] {
			return 0, false
		}
		off += ix * st[i]
	}
	return off, true
}

// TupleValue is a heterogeneous, fixed-size, immutable tuple.
type TupleValue struct{ Elements []Value }

// NamedTupleValue is `(; a=1, b=2)`.
type NamedTupleValue struct {
	Names  []string
	Values []Value
}

// DictValue is an insertion-ordered map: iteration order is part of spec.md
// §8's deterministic-output contract, so plain map iteration is never used
// for anything user-observable.
type DictValue struct {
	Keys   []Value
	Values map[string]Value
	Order  []string
}

func NewDict() *DictValue { return &DictValue{Values: map[string]Value{}} }

func keyString(k Value) string { return fmt.Sprintf("%T:%v", k, k) }

func (d *DictValue) Set(k, v Value) {
	ks := keyString(k)
	if _, exists := d.Values[ks]; !exists {
		d.Keys = append(d.Keys, k)
		d.Order = append(d.Order, ks)
	}
	d.Values[ks] = v
}

func (d *DictValue) Get(k Value) (Value, bool) {
	v, ok := d.Values[keyString(k)]
	return v, ok
}

func (d *DictValue) Delete(k Value) {
	ks := keyString(k)
	if _, ok := d.Values[ks]; !ok {
		return
	}
	delete(d.Values, ks)
	for i, o := range d.Order {
		if o == ks {
			d.Order = append(d.Order[:i], d.Order[i+1:]...)
			d.Keys = append(d.Keys[:i], d.Keys[i+1:]...)
			break
		}
	}
}

func (d *DictValue) Len() int { return len(d.Keys) }

// SetValue is an insertion-ordered set, for the same determinism reason as DictValue.
type SetValue struct {
	present map[string]bool
	Order   []Value
}

func NewSet() *SetValue { return &SetValue{present: map[string]bool{}} }

func (s *SetValue) Add(v Value) {
	k := keyString(v)
	if !s.present[k] {
		s.present[k] = true
		s.Order = append(s.Order, v)
	}
}

func (s *SetValue) Contains(v Value) bool { return s.present[keyString(v)] }
func (s *SetValue) Len() int              { return len(s.Order) }

// RangeValue is a lazy start:step:stop range over integers or floats.
type RangeValue struct {
	Start, Step, Stop float64
	IsInt             bool
}

func (r RangeValue) Len() int {
	if r.Step == 0 {
		return 0
	}
	n := int((r.Stop-r.Start)/r.Step) + 1
	if n < 0 {
		return 0
	}
	return n
}

func (r RangeValue) At(i int) Value {
	v := r.Start + float64(i)*r.Step
	if r.IsInt {
		return int64(v)
	}
	return v
}

// MemoryValue is Memory{T}: a flat typed buffer with no shape, the
// lower-level sibling of ArrayValue (spec.md §3.3).
type MemoryValue struct {
	ElemType string
	Data     []Value
}

// ModuleValue/FunctionValue/ClosureValue/ComposedFunctionValue are opaque
// callable/namespace handles.
type ModuleValue struct {
	Name    string
	Exports map[string]Value
}

type FunctionValue struct {
	Name  string
	Index int // index into the CompiledProgram's FunctionInfo table
}

type ClosureValue struct {
	FuncIndex int
	Upvalues  []Value
}

type ComposedFunctionValue struct{ Outer, Inner Value }

// IOValue is a stream or in-memory buffer handle (spec.md §4.6 "deterministic
// output buffer with an optional streaming callback").
type IOValue struct {
	Kind   string // "stdout", "buffer", "file"
	Buffer *[]byte
}

// Quotation values for the metaprogramming subset that survives to runtime.
type ExprValue struct {
	Head string
	Args []Value
}
type QuoteNodeValue struct{ Value Value }
type LineNumberNodeValue struct {
	Line int
	File string
}
type GlobalRefValue struct {
	Module string
	Name   string
}

// RegexValue/RegexMatchValue wrap the stdlib regexp engine for Base's regex module.
type RegexValue struct{ Pattern string }
type RegexMatchValue struct {
	Match  string
	Groups []string
}

// EnumValue carries an enum type name and underlying integer value.
type EnumValue struct {
	TypeName string
	Value    int64
}

// AllColonValue is the "all-colon" slice marker `:` used in `a[:, 1]`.
type AllColonValue struct{}

// BigIntValue/BigFloatValue wrap internal/bigmath for spec.md §3.3's
// arbitrary-precision scalars.
type BigIntValue struct{ V *bigmath.Int }
type BigFloatValue struct{ V *bigmath.Float }

// TypeName returns the dispatch-relevant runtime type tag for v.
func TypeName(v Value) string {
	switch x := v.(type) {
	case nil, NilValue:
		return "Nothing"
	case MissingValue:
		return "Missing"
	case UndefValue:
		return "Undef"
	case bool:
		return "Bool"
	case int64:
		return "Int64"
	case int32:
		return "Int32"
	case int16:
		return "Int16"
	case int8:
		return "Int8"
	case uint64:
		return "UInt64"
	case uint32:
		return "UInt32"
	case uint16:
		return "UInt16"
	case uint8:
		return "UInt8"
	case float64:
		return "Float64"
	case float32:
		return "Float32"
	case rune:
		return "Char"
	case string:
		return "String"
	case Symbol:
		return "Symbol"
	case *ArrayValue:
		return "Array"
	case *TupleValue:
		return "Tuple"
	case *NamedTupleValue:
		return "NamedTuple"
	case *DictValue:
		return "Dict"
	case *SetValue:
		return "Set"
	case RangeValue:
		return "Range"
	case StructRef:
		return x.TypeName
	case *MemoryValue:
		return "Memory"
	case *ModuleValue:
		return "Module"
	case *FunctionValue:
		return "Function"
	case *ClosureValue:
		return "Closure"
	case *ComposedFunctionValue:
		return "ComposedFunction"
	case *IOValue:
		return "IO"
	case *ExprValue:
		return "Expr"
	case QuoteNodeValue:
		return "QuoteNode"
	case LineNumberNodeValue:
		return "LineNumberNode"
	case GlobalRefValue:
		return "GlobalRef"
	case *RegexValue:
		return "Regex"
	case *RegexMatchValue:
		return "RegexMatch"
	case EnumValue:
		return x.TypeName
	case AllColonValue:
		return "Colon"
	case *BigIntValue:
		return "BigInt"
	case *BigFloatValue:
		return "BigFloat"
	default:
		return "Any"
	}
}

// Format renders v for print/println, the deterministic-output contract of
// spec.md §4.6.
func Format(v Value) string {
	switch x := v.(type) {
	case nil, NilValue:
		return "nothing"
	case MissingValue:
		return "missing"
	case string:
		return x
	case rune:
		return string(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case Symbol:
		return ":" + x.Name
	case *ArrayValue:
		s := "["
		for i, el := range x.Data {
			if i > 0 {
				s += ", "
			}
			s += Format(el)
		}
		return s + "]"
	case *TupleValue:
		s := "("
		for i, el := range x.Elements {
			if i > 0 {
				s += ", "
			}
			s += Format(el)
		}
		return s + ")"
	case *DictValue:
		s := "Dict("
		for i, k := range x.Keys {
			if i > 0 {
				s += ", "
			}
			v, _ := x.Get(k)
			s += Format(k) + " => " + Format(v)
		}
		return s + ")"
	case RangeValue:
		return fmt.Sprintf("%v:%v:%v", x.Start, x.Step, x.Stop)
	case *BigIntValue:
		return x.V.String()
	case *BigFloatValue:
		return x.V.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
