package lattice

import "testing"

// These exercise spec.md §8's "Lattice laws": join(a,a)=a, join(a,b)=join(b,a),
// join(a,Top)=Top, meet(a,Bottom)=Bottom, subtype(a,Top) for all a.

func TestJoinIdempotent(t *testing.T) {
	for _, ty := range []Type{Concrete("Int64"), Concrete("String"), Bottom(), Top()} {
		if got := Join(ty, ty); got.String() != ty.String() {
			t.Errorf("join(%s,%s) = %s, want %s", ty, ty, got, ty)
		}
	}
}

func TestJoinCommutative(t *testing.T) {
	pairs := [][2]Type{
		{Concrete("Int64"), Concrete("Float64")},
		{Concrete("Bool"), Concrete("String")},
		{Concrete("Int32"), Top()},
		{Bottom(), Concrete("Char")},
	}
	for _, p := range pairs {
		ab, ba := Join(p[0], p[1]), Join(p[1], p[0])
		if ab.String() != ba.String() {
			t.Errorf("join(%s,%s)=%s != join(%s,%s)=%s", p[0], p[1], ab, p[1], p[0], ba)
		}
	}
}

func TestJoinAbsorbsTop(t *testing.T) {
	if got := Join(Concrete("Int64"), Top()); got.Kind != KindTop {
		t.Errorf("join(Int64, Top) = %s, want Any", got)
	}
}

func TestMeetBottom(t *testing.T) {
	if got := Meet(Concrete("Int64"), Bottom()); got.Kind != KindBottom {
		t.Errorf("meet(Int64, Bottom) = %s, want Bottom", got)
	}
}

func TestSubtypeOfTop(t *testing.T) {
	for _, ty := range []Type{Concrete("Int64"), Concrete("String"), Bottom(), Union(Concrete("Int64"), Concrete("Bool"))} {
		if !Subtype(ty, Top()) {
			t.Errorf("subtype(%s, Any) should hold", ty)
		}
	}
}

func TestBottomSubtypeOfEverything(t *testing.T) {
	for _, ty := range []Type{Concrete("Int64"), Concrete("String"), Top()} {
		if !Subtype(Bottom(), ty) {
			t.Errorf("subtype(Bottom, %s) should hold", ty)
		}
	}
}

func TestNumericPromotionHierarchy(t *testing.T) {
	if got := Join(Concrete("Int64"), Concrete("Float64")); got.Concrete != "Float64" {
		t.Errorf("Int64 join Float64 = %s, want Float64", got)
	}
	if !Subtype(Concrete("Bool"), Concrete("Integer")) {
		t.Error("Bool should be a subtype of Integer")
	}
	if !Subtype(Concrete("Int64"), Concrete("Number")) {
		t.Error("Int64 should be a subtype of Number (via Integer -> Real -> Number)")
	}
	if Subtype(Concrete("String"), Concrete("Number")) {
		t.Error("String should not be a subtype of Number")
	}
}

func TestPromoteComplexAbsorbsReal(t *testing.T) {
	complexInt := Concrete("Complex", Concrete("Int64"))
	got := Promote(complexInt, Concrete("Float64"))
	if got.Concrete != "Complex" || len(got.TypeArgs) != 1 || got.TypeArgs[0].Concrete != "Float64" {
		t.Errorf("promote(Complex{Int64}, Float64) = %s, want Complex{Float64}", got)
	}
}

func TestUnionCanonicalizesAndDeduplicates(t *testing.T) {
	u := Union(Concrete("Bool"), Concrete("String"), Concrete("Bool"))
	if u.Kind != KindUnion || len(u.Members) != 2 {
		t.Errorf("Union should flatten and dedup: got %s", u)
	}
}

func TestUnionOfOneCollapses(t *testing.T) {
	u := Union(Concrete("Int64"))
	if u.Kind != KindConcrete {
		t.Errorf("Union of a single member should collapse to that member, got %s", u)
	}
}

func TestWidenConditionalJoinsBranches(t *testing.T) {
	cond := Conditional("x", Concrete("Int64"), Concrete("Float64"))
	got := Widen(cond)
	if got.Concrete != "Float64" {
		t.Errorf("widen(Conditional{Int64,Float64}) = %s, want Float64 (numeric join)", got)
	}
}

func TestSubtypeOnUserAbstractChain(t *testing.T) {
	AbstractParents["Shape"] = "Any"
	AbstractParents["Circle"] = "Shape"
	defer func() {
		delete(AbstractParents, "Shape")
		delete(AbstractParents, "Circle")
	}()
	if !Subtype(Concrete("Circle"), Concrete("Shape")) {
		t.Error("Circle should be a subtype of its registered abstract parent Shape")
	}
}
