package ir

import "testing"

func TestFunctionSignatureUntypedParamIsAny(t *testing.T) {
	f := &Function{Name: "f", Params: []Param{{Name: "x"}, {Name: "y", Type: &TypeExpr{Name: "Int64"}}}}
	if got, want := f.Signature(), "f(Any,Int64)"; got != want {
		t.Errorf("Signature() = %q, want %q", got, want)
	}
}

func TestFunctionSignatureParametricType(t *testing.T) {
	f := &Function{Name: "g", Params: []Param{{Name: "xs", Type: &TypeExpr{Name: "Array", Args: []*TypeExpr{{Name: "Float64"}}}}}}
	if got, want := f.Signature(), "g(Array{Float64})"; got != want {
		t.Errorf("Signature() = %q, want %q", got, want)
	}
}

func TestProgramAssignIndices(t *testing.T) {
	p := &Program{Functions: []*Function{{Name: "a"}, {Name: "b"}, {Name: "c"}}}
	p.AssignIndices()
	for i, f := range p.Functions {
		if f.Index != i {
			t.Errorf("function %q has Index %d, want %d", f.Name, f.Index, i)
		}
	}
}

// TestFunctionsNamedPreservesOrder covers the candidate set multiple dispatch
// (internal/dispatch) scores against: definition order among same-named
// overloads must be preserved for tie-breaking.
func TestFunctionsNamedPreservesOrder(t *testing.T) {
	f1 := &Function{Name: "f", Params: []Param{{Type: &TypeExpr{Name: "Int64"}}}}
	f2 := &Function{Name: "f", Params: []Param{{Type: &TypeExpr{Name: "Float64"}}}}
	other := &Function{Name: "g"}
	p := &Program{Functions: []*Function{f1, other, f2}}
	p.AssignIndices()

	named := p.FunctionsNamed("f")
	if len(named) != 2 || named[0] != f1 || named[1] != f2 {
		t.Errorf("FunctionsNamed(f) = %v, want [f1 f2] in definition order", named)
	}
}

func TestStructByNameAndAbstractByNameMiss(t *testing.T) {
	p := &Program{Structs: []*StructDef{{Name: "Point"}}, Abstracts: []*AbstractTypeDef{{Name: "Shape"}}}
	if p.StructByName("Point") == nil {
		t.Error("StructByName should find Point")
	}
	if p.StructByName("Missing") != nil {
		t.Error("StructByName should return nil for an unknown struct")
	}
	if p.AbstractByName("Shape") == nil {
		t.Error("AbstractByName should find Shape")
	}
	if p.AbstractByName("Missing") != nil {
		t.Error("AbstractByName should return nil for an unknown abstract type")
	}
}

func TestTypeExprStringNilIsEmpty(t *testing.T) {
	var te *TypeExpr
	if te.String() != "" {
		t.Errorf("nil *TypeExpr.String() = %q, want empty", te.String())
	}
}
