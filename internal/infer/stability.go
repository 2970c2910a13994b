package infer

import (
	"fmt"

	"vela/internal/lattice"
)

// Status is the per-function outcome of spec.md §6.1's analyze_type_stability.
type Status string

const (
	Stable   Status = "Stable"
	Unstable Status = "Unstable"
	Unknown  Status = "Unknown"
)

// FunctionReport is one function's entry in a StabilityReport. Reasons is a
// supplement beyond spec.md's bare {status,reasons,suggestions} shape, grounded
// on the original Rust engine's per-function reason enum
// (original_source/subset_julia_vm/src/compile/type_stability/reason.rs).
type FunctionReport struct {
	Function    string
	Status      Status
	Reasons     []string
	Suggestions []string
}

// StabilityReport is the full-program result.
type StabilityReport struct {
	Functions []FunctionReport
}

// AnalyzeStability classifies each function's return-type stability from an
// already computed inference Result, per spec.md §6.1.
func AnalyzeStability(result *Result, funcNames map[int]string) *StabilityReport {
	report := &StabilityReport{}
	divergent := map[int]bool{}
	for _, d := range result.Diagnostics {
		divergent[d.FunctionIndex] = true
	}
	for idx, name := range funcNames {
		rt, ok := result.ReturnTypes[idx]
		fr := FunctionReport{Function: name}
		switch {
		case !ok:
			fr.Status = Unknown
			fr.Reasons = append(fr.Reasons, "function was never reached by a call site")
		case divergent[idx]:
			fr.Status = Unstable
			fr.Reasons = append(fr.Reasons, "fixed-point iteration did not converge; widened to Any")
			fr.Suggestions = append(fr.Suggestions, "add explicit parameter or return type annotations to break the cycle")
		case rt.Kind == lattice.KindTop:
			fr.Status = Unstable
			fr.Reasons = append(fr.Reasons, "return type widened to Any")
			fr.Suggestions = append(fr.Suggestions, "annotate parameter types so dispatch can narrow the return type")
		case rt.Kind == lattice.KindUnion:
			fr.Status = Unstable
			fr.Reasons = append(fr.Reasons, fmt.Sprintf("return type is a union: %s", rt.String()))
			fr.Suggestions = append(fr.Suggestions, "split into type-specific methods to make each branch return a single concrete type")
		default:
			fr.Status = Stable
		}
		report.Functions = append(report.Functions, fr)
	}
	return report
}
