package base

import (
	"testing"

	"vela/internal/ir"
)

func TestMergeAddsBaseFunctions(t *testing.T) {
	user := &ir.Program{Main: &ir.Block{}}
	user.AssignIndices()

	merged, err := Merge(user)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(merged.FunctionsNamed("Abs")) != 2 {
		t.Fatalf("expected both Abs overloads from Base, got %d", len(merged.FunctionsNamed("Abs")))
	}
	if merged.BaseFunctionCount == 0 {
		t.Fatal("expected a nonzero BaseFunctionCount watermark")
	}
}

func TestMergeUserOverridesOnIdenticalSignature(t *testing.T) {
	userAbs := &ir.Function{
		Name:   "Abs",
		Params: []ir.Param{{Name: "x", Type: &ir.TypeExpr{Name: "Int64"}}},
	}
	user := &ir.Program{Main: &ir.Block{}, Functions: []*ir.Function{userAbs}}
	user.AssignIndices()

	merged, err := Merge(user)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	abs := merged.FunctionsNamed("Abs")
	if len(abs) != 2 {
		t.Fatalf("expected Int64 overload overridden and Float64 retained, got %d", len(abs))
	}
	foundUser := false
	for _, f := range abs {
		if f.Params[0].Type.Name == "Int64" && !f.IsBaseExt {
			foundUser = true
		}
	}
	if !foundUser {
		t.Fatal("expected the user's Int64 Abs to win over the Base one")
	}
}

func TestMergeShadowsStructsByName(t *testing.T) {
	user := &ir.Program{
		Main:    &ir.Block{},
		Structs: []*ir.StructDef{{Name: "Point", Fields: []ir.StructField{{Name: "x"}}}},
	}
	user.AssignIndices()

	merged, err := Merge(user)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	got := merged.StructByName("Point")
	if got == nil || len(got.Fields) != 1 {
		t.Fatalf("expected the user's Point struct to survive unshadowed")
	}
}
