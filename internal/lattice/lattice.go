// Package lattice implements the abstract type domain of spec.md §3.2: the
// interprocedural inference engine (internal/infer) and the dispatcher
// (internal/dispatch) are both built entirely on top of the operations defined
// here (join, meet, subtype, promote).
//
// The domain mirrors the teacher's visitor-style AST design in spirit (a small
// closed set of node kinds, a type switch instead of one interface method per
// operation) because every lattice element needs the same handful of operations
// applied to it uniformly, rather than per-kind dispatch logic living on the type.
package lattice

import (
	"fmt"
	"sort"
	"strings"
)

// Kind discriminates the six lattice element families of spec.md §3.2.
type Kind int

const (
	KindBottom Kind = iota
	KindConst
	KindConcrete
	KindUnion
	KindConditional
	KindTop
)

// Type is a single immutable lattice element. Only the fields relevant to Kind
// are populated; this is the idiomatic "tagged struct" the runtime value model
// also uses (spec.md §3.3's "closed set of variants, one tag per variant").
type Type struct {
	Kind Kind

	// KindConst
	ConstValue interface{}
	ConstType  string // the concrete type name the constant belongs to

	// KindConcrete
	Concrete string // e.g. "Int64", "Bool", "String"
	TypeArgs []Type // for Array{T}, Tuple{...}, Dict{K,V}, Struct{name,args...}

	// KindUnion
	Members []Type // canonicalized: sorted, flattened, no duplicates

	// KindConditional
	CondVar    string
	TrueType   *Type
	FalseType  *Type
}

// Bottom, Top and common concretes as constructors (not package vars) so callers
// never accidentally alias/mutate a shared Type value via its slice fields.
func Bottom() Type { return Type{Kind: KindBottom} }
func Top() Type    { return Type{Kind: KindTop} }

func Concrete(name string, args ...Type) Type {
	return Type{Kind: KindConcrete, Concrete: name, TypeArgs: args}
}

func Const(value interface{}, concreteType string) Type {
	return Type{Kind: KindConst, ConstValue: value, ConstType: concreteType}
}

func Conditional(condVar string, trueTy, falseTy Type) Type {
	return Type{Kind: KindConditional, CondVar: condVar, TrueType: &trueTy, FalseType: &falseTy}
}

// Union constructs a canonicalized union of the given members (flattening nested
// unions, deduplicating, and sorting for stable display/equality).
func Union(members ...Type) Type {
	var flat []Type
	seen := map[string]bool{}
	for _, m := range members {
		if m.Kind == KindUnion {
			flat = append(flat, m.Members...)
		} else {
			flat = append(flat, m)
		}
	}
	var out []Type
	for _, m := range flat {
		k := m.String()
		if !seen[k] {
			seen[k] = true
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	if len(out) == 1 {
		return out[0]
	}
	return Type{Kind: KindUnion, Members: out}
}

func (t Type) String() string {
	switch t.Kind {
	case KindBottom:
		return "Bottom"
	case KindTop:
		return "Any"
	case KindConst:
		return fmt.Sprintf("Const(%v::%s)", t.ConstValue, t.ConstType)
	case KindConcrete:
		if len(t.TypeArgs) == 0 {
			return t.Concrete
		}
		parts := make([]string, len(t.TypeArgs))
		for i, a := range t.TypeArgs {
			parts[i] = a.String()
		}
		return fmt.Sprintf("%s{%s}", t.Concrete, strings.Join(parts, ","))
	case KindUnion:
		parts := make([]string, len(t.Members))
		for i, m := range t.Members {
			parts[i] = m.String()
		}
		return "Union{" + strings.Join(parts, ",") + "}"
	case KindConditional:
		return fmt.Sprintf("Conditional(%s ? %s : %s)", t.CondVar, t.TrueType, t.FalseType)
	}
	return "?"
}

// Widen collapses a Conditional to the join of its branches, and a Const to its
// underlying Concrete type — the two reductions needed before subtype/promote
// logic, which otherwise only reasons about Concrete/Union/Top/Bottom.
func Widen(t Type) Type {
	switch t.Kind {
	case KindConditional:
		return Join(Widen(*t.TrueType), Widen(*t.FalseType))
	case KindConst:
		return Concrete(t.ConstType)
	default:
		return t
	}
}

// Lower returns the set of concrete types a lattice element could statically be,
// used by the dispatcher's "some Ti in lower(Ai)" admissibility rule (spec.md §4.4).
func Lower(t Type) []Type {
	switch t.Kind {
	case KindBottom:
		return nil
	case KindTop:
		return []Type{Top()}
	case KindConst:
		return []Type{Concrete(t.ConstType)}
	case KindConcrete:
		return []Type{t}
	case KindUnion:
		return t.Members
	case KindConditional:
		return append(Lower(*t.TrueType), Lower(*t.FalseType)...)
	}
	return nil
}
