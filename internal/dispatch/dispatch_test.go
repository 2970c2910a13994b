package dispatch

import (
	"testing"

	"vela/internal/ir"
	"vela/internal/lattice"
)

// ty is a small helper building an *ir.TypeExpr for a concrete name.
func ty(name string) *ir.TypeExpr { return &ir.TypeExpr{Name: name} }

func fn(name string, paramType *ir.TypeExpr) *ir.Function {
	return &ir.Function{Name: name, Params: []ir.Param{{Name: "x", Type: paramType}}}
}

// buildDispatchProgram mirrors spec.md §8 scenario 3:
//
//	f(x::Int64) = 1
//	f(x::Float64) = 2
func buildDispatchProgram() *ir.Program {
	p := &ir.Program{Functions: []*ir.Function{
		fn("f", ty("Int64")),
		fn("f", ty("Float64")),
	}}
	p.AssignIndices()
	return p
}

func TestResolveExactMatch(t *testing.T) {
	p := buildDispatchProgram()

	res := Resolve(p, "f", []lattice.Type{lattice.Concrete("Int64")})
	if res.Outcome != OutcomeResolved {
		t.Fatalf("f(Int64) outcome = %v, want OutcomeResolved", res.Outcome)
	}
	if res.Resolved.Params[0].Type.Name != "Int64" {
		t.Errorf("f(Int64) resolved to the wrong overload: %s", res.Resolved.Signature())
	}

	res = Resolve(p, "f", []lattice.Type{lattice.Concrete("Float64")})
	if res.Outcome != OutcomeResolved || res.Resolved.Params[0].Type.Name != "Float64" {
		t.Errorf("f(Float64) should resolve to the Float64 overload, got %v", res)
	}
}

func TestResolveIntLiteralPrefersIntOverload(t *testing.T) {
	// f(3) — spec scenario 3's tuple (f(1), f(2.0), f(3)) expects f(3) to hit the
	// Int64 overload like f(1), not the Float64 one.
	p := buildDispatchProgram()
	res := Resolve(p, "f", []lattice.Type{lattice.Const(int64(3), "Int64")})
	if res.Outcome != OutcomeResolved || res.Resolved.Params[0].Type.Name != "Int64" {
		t.Errorf("f(Const(3, Int64)) should resolve to the Int64 overload, got %v", res)
	}
}

func TestResolveNoAdmissibleCandidateIsDynamic(t *testing.T) {
	p := buildDispatchProgram()
	res := Resolve(p, "f", []lattice.Type{lattice.Concrete("String")})
	if res.Outcome != OutcomeDynamic {
		t.Errorf("f(String) outcome = %v, want OutcomeDynamic (no admissible overload)", res.Outcome)
	}
}

func TestResolveAbstractUpperBoundWeakerThanExact(t *testing.T) {
	// A Real-typed candidate is admissible for Int64 via the subtype chain but
	// should lose to an exact Int64 match.
	p := &ir.Program{Functions: []*ir.Function{
		fn("g", ty("Real")),
		fn("g", ty("Int64")),
	}}
	p.AssignIndices()
	res := Resolve(p, "g", []lattice.Type{lattice.Concrete("Int64")})
	if res.Outcome != OutcomeResolved || res.Resolved.Params[0].Type.Name != "Int64" {
		t.Errorf("exact Int64 match should outscore the Real upper-bound match, got %v", res)
	}
}

func TestDispatchMonotonicity(t *testing.T) {
	// spec.md §8: replacing an argument's lattice type with a subtype must never
	// change the winner to a less-specific method.
	p := buildDispatchProgram()
	args := []lattice.Type{lattice.Concrete("Float64")}
	if !Monotone(p, "f", args, 0, lattice.Concrete("Int64")) {
		t.Error("narrowing Float64 -> Int64 should not regress dispatch specificity")
	}
}

func TestAmbiguousCallYieldsTypedDispatch(t *testing.T) {
	// Two equally-scored, equally-specialized candidates with no direct exact
	// match (both via an abstract upper bound) should produce a typed-dispatch
	// candidate list rather than a single resolution.
	p := &ir.Program{Functions: []*ir.Function{
		fn("h", ty("Number")),
		fn("h", ty("Number")),
	}}
	p.AssignIndices()
	res := Resolve(p, "h", []lattice.Type{lattice.Concrete("Int64")})
	if res.Outcome != OutcomeTyped {
		t.Errorf("two tied candidates should yield OutcomeTyped, got %v", res.Outcome)
	}
	if len(res.Candidates) != 2 {
		t.Errorf("expected 2 tied candidates, got %d", len(res.Candidates))
	}
}
