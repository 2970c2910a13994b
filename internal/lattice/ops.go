package lattice

// Numeric ranks, per spec.md §4.2's promotion table.
const (
	rankBool = 0
	rankI8   = 1
	rankU8   = 2
	rankI16  = 3
	rankU16  = 4
	rankI32  = 5
	rankU32  = 6
	rankI64  = 7
	rankU64  = 8
	rankF32  = 100
	rankF64  = 101
)

var intRank = map[string]int{
	"Bool": rankBool, "Int8": rankI8, "UInt8": rankU8, "Int16": rankI16,
	"UInt16": rankU16, "Int32": rankI32, "UInt32": rankU32, "Int64": rankI64,
	"UInt64": rankU64,
}

var floatRank = map[string]int{"Float32": rankF32, "Float64": rankF64}

// subtypeChain defines the fixed hierarchy Bool <= Integer <= Real <= Number plus
// Char/String/Nothing/Missing sitting directly under Any. User-defined abstract
// type parent chains (ir.AbstractTypeDef.Parent, ir.StructDef.Parent) are
// registered in AbstractParents at merge time.
var subtypeChain = map[string]string{
	"Bool": "Integer",
	"Int8": "Integer", "UInt8": "Integer", "Int16": "Integer", "UInt16": "Integer",
	"Int32": "Integer", "UInt32": "Integer", "Int64": "Integer", "UInt64": "Integer",
	"Int128": "Integer", "UInt128": "Integer", "BigInt": "Integer",
	"Integer": "Real",
	"Float16": "Real", "Float32": "Real", "Float64": "Real", "BigFloat": "Real",
	"Real":    "Number",
	"Complex": "Number",
	"Number":  "Any",
	"Char": "Any", "String": "Any", "Nothing": "Any", "Missing": "Any",
}

// AbstractParents allows the Base-merge step (internal/base) to register
// user-defined abstract-type parent chains so subtype() sees them too.
var AbstractParents = map[string]string{}

func ancestorsOf(name string) []string {
	var chain []string
	cur := name
	for i := 0; i < 64; i++ { // bound against accidental cycles
		chain = append(chain, cur)
		next, ok := subtypeChain[cur]
		if !ok {
			next, ok = AbstractParents[cur]
		}
		if !ok || next == cur {
			break
		}
		cur = next
	}
	return chain
}

// IsPrimitiveScalar reports whether name is a primitive scalar type (spec.md
// §3.1). ir.StructDef.IsBits is computed in internal/lowering from its own
// name table, not through this function.
func IsPrimitiveScalar(name string) bool {
	if _, ok := intRank[name]; ok {
		return true
	}
	if _, ok := floatRank[name]; ok {
		return true
	}
	switch name {
	case "Char", "Bool":
		return true
	}
	return false
}

// subtypeConcrete implements spec.md §4.2's reflexive-transitive relation over
// concrete type names, walking each name's ancestor chain.
func subtypeConcrete(a, b string) bool {
	if a == b || b == "Any" {
		return true
	}
	for _, anc := range ancestorsOf(a) {
		if anc == b {
			return true
		}
	}
	return false
}

// Subtype implements spec.md §3.2's subtype(a,b): reflexive, transitive; Bottom is
// a subtype of everything, everything is a subtype of Top.
func Subtype(a, b Type) bool {
	if a.Kind == KindBottom {
		return true
	}
	if b.Kind == KindTop {
		return true
	}
	a, b = Widen(a), Widen(b)
	if b.Kind == KindUnion {
		for _, bm := range b.Members {
			if Subtype(a, bm) {
				return true
			}
		}
		return false
	}
	if a.Kind == KindUnion {
		for _, am := range a.Members {
			if !Subtype(am, b) {
				return false
			}
		}
		return true
	}
	if a.Kind != KindConcrete || b.Kind != KindConcrete {
		return false
	}
	if a.Concrete != b.Concrete {
		return subtypeConcrete(a.Concrete, b.Concrete)
	}
	if len(a.TypeArgs) != len(b.TypeArgs) {
		return false
	}
	for i := range a.TypeArgs {
		if !Subtype(a.TypeArgs[i], b.TypeArgs[i]) {
			return false
		}
	}
	return true
}

// promoteNumeric implements spec.md §4.2's fixed numeric-promotion table.
func promoteNumeric(a, b string) string {
	ra, aIsFloat := floatRank[a]
	rb, bIsFloat := floatRank[b]
	if !aIsFloat {
		ra, aIsFloat = -1, false
	}
	if !bIsFloat {
		rb, bIsFloat = -1, false
	}
	ia, aIsInt := intRank[a]
	ib, bIsInt := intRank[b]

	switch {
	case aIsFloat && bIsFloat:
		if ra >= rb {
			return a
		}
		return b
	case aIsFloat && bIsInt:
		return a
	case bIsFloat && aIsInt:
		return b
	case aIsInt && bIsInt:
		maxRank := ia
		if ib > maxRank {
			maxRank = ib
		}
		switch {
		case maxRank <= rankBool:
			return "Int64"
		case maxRank >= rankI64:
			if ia > ib {
				return a
			}
			return b
		default:
			return "Int64"
		}
	}
	return "Number"
}

// Promote implements spec.md §3.2's promote(a,b), including the Complex-absorbs-
// real-operand rule.
func Promote(a, b Type) Type {
	a, b = Widen(a), Widen(b)
	if a.Kind != KindConcrete || b.Kind != KindConcrete {
		return Join(a, b)
	}
	if a.Concrete == "Complex" || b.Concrete == "Complex" {
		var complexArg, other Type
		if a.Concrete == "Complex" {
			complexArg, other = a, b
		} else {
			complexArg, other = b, a
		}
		inner := Concrete("Float64")
		if len(complexArg.TypeArgs) == 1 {
			inner = complexArg.TypeArgs[0]
		}
		if other.Concrete == "Complex" {
			otherInner := Concrete("Float64")
			if len(other.TypeArgs) == 1 {
				otherInner = other.TypeArgs[0]
			}
			return Concrete("Complex", Promote(inner, otherInner))
		}
		return Concrete("Complex", Promote(inner, other))
	}
	_, aNum := intRank[a.Concrete]
	if !aNum {
		_, aNum = floatRank[a.Concrete]
	}
	_, bNum := intRank[b.Concrete]
	if !bNum {
		_, bNum = floatRank[b.Concrete]
	}
	if aNum && bNum {
		return Concrete(promoteNumeric(a.Concrete, b.Concrete))
	}
	return Join(a, b)
}

// Join implements spec.md §3.2's join(a,b): monotone, commutative, associative,
// absorbing Top, with numeric promotion collapsing adjacent numeric types.
func Join(a, b Type) Type {
	if a.Kind == KindBottom {
		return b
	}
	if b.Kind == KindBottom {
		return a
	}
	if a.Kind == KindTop || b.Kind == KindTop {
		return Top()
	}
	a, b = Widen(a), Widen(b)
	if a.String() == b.String() {
		return a
	}
	if a.Kind == KindConcrete && b.Kind == KindConcrete {
		_, aNum := intRank[a.Concrete]
		if !aNum {
			_, aNum = floatRank[a.Concrete]
		}
		_, bNum := intRank[b.Concrete]
		if !bNum {
			_, bNum = floatRank[b.Concrete]
		}
		if aNum && bNum {
			return Concrete(promoteNumeric(a.Concrete, b.Concrete))
		}
	}
	return Union(a, b)
}

// Meet implements spec.md §3.2's meet(a,b): the dual of Join, used during
// conditional refinement on `isa` tests.
func Meet(a, b Type) Type {
	if a.Kind == KindBottom || b.Kind == KindBottom {
		return Bottom()
	}
	if a.Kind == KindTop {
		return b
	}
	if b.Kind == KindTop {
		return a
	}
	if Subtype(a, b) {
		return a
	}
	if Subtype(b, a) {
		return b
	}
	return Bottom()
}

// Unify is the conservative merge-point combinator of spec.md §4.2: like Join but
// prefers wider numeric widening at phi points, where arithmetic sites would
// instead prefer Promote. In this lattice, Join already performs the conservative
// widening; Unify is kept distinct so callers (internal/infer's phi handling) can
// evolve the two independently without redefining Join's arithmetic-site contract.
func Unify(a, b Type) Type { return Join(a, b) }
