package vm

import (
	"vela/internal/bytecode"
	"vela/internal/diagnostics"
)

// binaryDynamic implements the untyped arithmetic opcodes (Add/Sub/Mul/Div/
// Mod) by inspecting the live value tags, the runtime counterpart of
// internal/lattice's BinaryTransfer used at compile time. String `+` is
// concatenation per spec.md §4.2; `/` (OpDiv) always promotes to Float64,
// even for two integers. Truncating integer division is OpDivI64, handled
// separately.
func (vm *VM) binaryDynamic(op bytecode.OpCode, a, b Value) (Value, error) {
	if s, ok := a.(string); ok && op == bytecode.OpAdd {
		return s + Format(b), nil
	}
	if s, ok := b.(string); ok && op == bytecode.OpAdd {
		if _, aIsStr := a.(string); !aIsStr {
			return Format(a) + s, nil
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return nil, throwError(diagnostics.RuntimeTypeMismatch, "cannot apply %s to %s and %s", op.Name(), TypeName(a), TypeName(b))
	}
	_, aIsInt := a.(int64)
	_, bIsInt := b.(int64)
	bothInt := aIsInt && bIsInt

	switch op {
	case bytecode.OpAdd:
		if bothInt {
			return a.(int64) + b.(int64), nil
		}
		return af + bf, nil
	case bytecode.OpSub:
		if bothInt {
			return a.(int64) - b.(int64), nil
		}
		return af - bf, nil
	case bytecode.OpMul:
		if bothInt {
			return a.(int64) * b.(int64), nil
		}
		return af * bf, nil
	case bytecode.OpDiv:
		// Division always widens to Float64 (spec.md §4.2), matching the `/`
		// operator's promotion rule even for two integer operands, so a zero
		// divisor yields IEEE-754 +-Inf/NaN rather than raising (spec.md §8:
		// "on floats yields +-Inf / NaN"). Only OpDivI64's true integer
		// division raises on a zero divisor.
		return af / bf, nil
	case bytecode.OpMod:
		if bothInt {
			bi := b.(int64)
			if bi == 0 {
				return nil, throwError(diagnostics.RuntimeDivisionByZero, "modulo by zero")
			}
			return a.(int64) % bi, nil
		}
		return modFloat(af, bf), nil
	default:
		return nil, throwError(diagnostics.RuntimeTypeMismatch, "unsupported dynamic binary op %s", op.Name())
	}
}

func modFloat(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	m := a - b*float64(int64(a/b))
	return m
}

// dynamicBinaryBoth resolves OpCallDynamicBinaryBoth: the runtime-arbitrated
// path for call sites where neither operand's type was known until now.
// It applies the Char concatenation case and otherwise defers to
// binaryDynamic; no method scoring happens here.
func (vm *VM) dynamicBinaryBoth(op bytecode.OpCode, a, b Value) (Value, error) {
	_, aIsChar := a.(rune)
	_, bIsChar := b.(rune)
	if op == bytecode.OpAdd && (aIsChar || bIsChar) {
		// Char + Char / Char + String concatenates rather than adding code
		// points, the special case spec.md §4.2 calls out.
		return Format(a) + Format(b), nil
	}
	return vm.binaryDynamic(op, a, b)
}

// compareDynamic implements Greater/Less/GreaterEqual/LessEqual across the
// numeric tower plus lexicographic string comparison.
func (vm *VM) compareDynamic(op bytecode.OpCode, a, b Value) (Value, error) {
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			switch op {
			case bytecode.OpGreater:
				return as > bs, nil
			case bytecode.OpLess:
				return as < bs, nil
			case bytecode.OpGreaterEqual:
				return as >= bs, nil
			case bytecode.OpLessEqual:
				return as <= bs, nil
			}
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return nil, throwError(diagnostics.RuntimeTypeMismatch, "cannot compare %s and %s", TypeName(a), TypeName(b))
	}
	switch op {
	case bytecode.OpGreater:
		return af > bf, nil
	case bytecode.OpLess:
		return af < bf, nil
	case bytecode.OpGreaterEqual:
		return af >= bf, nil
	case bytecode.OpLessEqual:
		return af <= bf, nil
	default:
		return nil, throwError(diagnostics.RuntimeTypeMismatch, "unsupported comparison op %s", op.Name())
	}
}
