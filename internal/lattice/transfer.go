package lattice

import "fmt"

// ElementOf implements spec.md §4.2's iterator element type function, used by
// ForEach/comprehension inference and the VM's IterateDynamic opcode's static type.
func ElementOf(t Type) Type {
	t = Widen(t)
	switch {
	case t.Kind == KindConcrete && t.Concrete == "Array" && len(t.TypeArgs) >= 1:
		return t.TypeArgs[0]
	case t.Kind == KindConcrete && t.Concrete == "Range" && len(t.TypeArgs) == 1:
		return t.TypeArgs[0]
	case t.Kind == KindConcrete && t.Concrete == "String":
		return Concrete("Char")
	case t.Kind == KindConcrete && t.Concrete == "Dict" && len(t.TypeArgs) == 2:
		return Concrete("Tuple", t.TypeArgs[0], t.TypeArgs[1])
	case t.Kind == KindConcrete && t.Concrete == "Tuple" && len(t.TypeArgs) > 0:
		first := t.TypeArgs[0].String()
		allSame := true
		for _, a := range t.TypeArgs[1:] {
			if a.String() != first {
				allSame = false
				break
			}
		}
		if allSame {
			return t.TypeArgs[0]
		}
		return Union(t.TypeArgs...)
	default:
		return Top()
	}
}

// BinaryTransfer applies the transfer function for a binary operator family
// (arithmetic, comparison, bitwise, string) to two lattice operands, per spec.md
// §4.2/§4.3. Constant-propagation (evaluating Const op Const) is handled
// separately in internal/infer, which calls this only after falling back from
// the constant-fold path.
func BinaryTransfer(op string, a, b Type) Type {
	switch op {
	case "+", "-", "*", "/", "%", "^":
		aw, bw := Widen(a), Widen(b)
		if aw.Concrete == "String" || bw.Concrete == "String" {
			if op == "+" {
				return Concrete("String")
			}
		}
		if op == "/" {
			// division always widens integers to a float family in this language
			p := Promote(aw, bw)
			if _, isInt := intRank[p.Concrete]; isInt {
				return Concrete("Float64")
			}
			return p
		}
		return Promote(aw, bw)
	case "==", "!=", "<", ">", "<=", ">=":
		return Concrete("Bool")
	case "&&", "||":
		return Concrete("Bool")
	case "&", "|", "~", "<<", ">>":
		return Promote(Widen(a), Widen(b))
	default:
		return Top()
	}
}

// UnaryTransfer applies the transfer function for a unary operator.
func UnaryTransfer(op string, a Type) Type {
	switch op {
	case "-", "+":
		return Widen(a)
	case "!":
		return Concrete("Bool")
	default:
		return Top()
	}
}

// IntrinsicTransfer implements the representative intrinsic transfer functions
// named in spec.md §4.2 (`sqrt`, `string`, `isa`, `abs`).
func IntrinsicTransfer(name string, args []Type) Type {
	switch name {
	case "sqrt":
		return Concrete("Float64")
	case "string":
		return Concrete("String")
	case "isa":
		return Concrete("Bool")
	case "abs":
		if len(args) == 1 {
			a := Widen(args[0])
			if a.Concrete == "Complex" {
				return Concrete("Float64")
			}
			return a
		}
		return Top()
	case "typeof":
		return Concrete("String")
	default:
		return Top()
	}
}

// ConstEval attempts to evaluate a binary operator eagerly over two Const
// lattice elements with computable Go-native values, per spec.md §4.3's constant
// propagation. ok is false when the operator isn't supported for these operand
// types (a "no fold").
func ConstEval(op string, a, b Type) (Type, bool) {
	if a.Kind != KindConst || b.Kind != KindConst {
		return Type{}, false
	}
	af, aIsF := a.ConstValue.(float64)
	bf, bIsF := b.ConstValue.(float64)
	ai, aIsI := a.ConstValue.(int64)
	bi, bIsI := b.ConstValue.(int64)

	if aIsI && bIsI {
		switch op {
		case "+":
			return Const(ai+bi, "Int64"), true
		case "-":
			return Const(ai-bi, "Int64"), true
		case "*":
			return Const(ai*bi, "Int64"), true
		case "/":
			if bi != 0 {
				return Const(float64(ai)/float64(bi), "Float64"), true
			}
		case "%":
			if bi != 0 {
				return Const(ai%bi, "Int64"), true
			}
		case "==":
			return Const(ai == bi, "Bool"), true
		case "<":
			return Const(ai < bi, "Bool"), true
		case ">":
			return Const(ai > bi, "Bool"), true
		}
		return Type{}, false
	}
	if (aIsF || aIsI) && (bIsF || bIsI) {
		if aIsI {
			af = float64(ai)
		}
		if bIsI {
			bf = float64(bi)
		}
		switch op {
		case "+":
			return Const(af+bf, "Float64"), true
		case "-":
			return Const(af-bf, "Float64"), true
		case "*":
			return Const(af*bf, "Float64"), true
		case "/":
			return Const(af/bf, "Float64"), true
		case "==":
			return Const(af == bf, "Bool"), true
		case "<":
			return Const(af < bf, "Bool"), true
		case ">":
			return Const(af > bf, "Bool"), true
		}
	}
	as, aIsS := a.ConstValue.(string)
	bs, bIsS := b.ConstValue.(string)
	if aIsS && bIsS && op == "+" {
		return Const(as+bs, "String"), true
	}
	return Type{}, false
}

// DebugString is a convenience for diagnostics/tests.
func DebugString(t Type) string { return fmt.Sprint(t.String()) }
