// Package dispatch implements multiple-method resolution (spec.md §4.4): given a
// callee name and the lattice types of argument expressions at a call site, it
// scores every admissible candidate and either resolves to a single method, a
// small typed-dispatch candidate list for runtime arbitration, or a fully
// dynamic fallback.
package dispatch

import (
	"sort"

	"vela/internal/ir"
	"vela/internal/lattice"
)

// Outcome discriminates the three resolutions of spec.md §4.4.
type Outcome int

const (
	OutcomeResolved Outcome = iota
	OutcomeTyped
	OutcomeDynamic
)

// Candidate is one admissible, scored method.
type Candidate struct {
	Function   *ir.Function
	Score      int
	NumTypeVars int
}

// Result is the outcome of resolving one call site.
type Result struct {
	Outcome    Outcome
	Resolved   *ir.Function      // set iff Outcome == OutcomeResolved
	Candidates []Candidate       // set iff Outcome == OutcomeTyped (sorted best-first)
	Bindings   map[string]lattice.Type // where-clause bindings for Resolved, if any
}

// scoreSlot implements spec.md §4.4's per-slot scoring rule.
func scoreSlot(arg lattice.Type, paramTy *ir.TypeExpr, typeParams []ir.TypeParam) (int, bool, string) {
	if paramTy == nil {
		return 0, false, "" // untyped param: admissible with score 0 (dynamic/Any slot)
	}
	isTypeVar := false
	var bound *ir.TypeExpr
	for _, tp := range typeParams {
		if tp.Name == paramTy.Name {
			isTypeVar = true
			bound = tp.Bound
			break
		}
	}
	candidates := lattice.Lower(arg)
	for _, c := range candidates {
		if isTypeVar {
			if bound == nil || lattice.Subtype(c, lattice.Concrete(bound.Name)) {
				return 8, true, c.Concrete
			}
		}
		paramConcrete := lattice.Concrete(paramTy.Name)
		if c.String() == paramConcrete.String() {
			return 10, false, ""
		}
		if len(paramTy.Args) > 0 && c.Kind == lattice.KindConcrete && c.Concrete == paramTy.Name {
			return 5, false, ""
		}
		if lattice.Subtype(c, paramConcrete) {
			return 1, false, ""
		}
	}
	return 0, false, ""
}

// admissible reports whether every argument type has some lower-set member that
// is a subtype of the corresponding declared parameter type (spec.md §4.4).
func admissible(fn *ir.Function, args []lattice.Type) (bool, int, map[string]string) {
	if len(fn.Params) != len(args) {
		return false, 0, nil
	}
	total := 0
	bindings := map[string]string{}
	for i, p := range fn.Params {
		score, boundVar, concreteName := scoreSlot(args[i], p.Type, fn.TypeParams)
		if p.Type != nil && score == 0 {
			return false, 0, nil
		}
		if boundVar {
			bindings[p.Type.Name] = concreteName
		}
		total += score
	}
	return true, total, bindings
}

// Resolve scores every function named `name` against the argument lattice types
// at a call site, per spec.md §4.4.
func Resolve(p *ir.Program, name string, args []lattice.Type) Result {
	candidates := p.FunctionsNamed(name)
	var admissibleCands []Candidate
	var bindingsByFn = map[*ir.Function]map[string]string{}
	for _, fn := range candidates {
		ok, score, bindings := admissible(fn, args)
		if !ok {
			continue
		}
		admissibleCands = append(admissibleCands, Candidate{
			Function:    fn,
			Score:       score,
			NumTypeVars: len(fn.TypeParams),
		})
		bindingsByFn[fn] = bindings
	}
	if len(admissibleCands) == 0 {
		return Result{Outcome: OutcomeDynamic}
	}
	sort.SliceStable(admissibleCands, func(i, j int) bool {
		if admissibleCands[i].Score != admissibleCands[j].Score {
			return admissibleCands[i].Score > admissibleCands[j].Score
		}
		if admissibleCands[i].NumTypeVars != admissibleCands[j].NumTypeVars {
			return admissibleCands[i].NumTypeVars < admissibleCands[j].NumTypeVars
		}
		return admissibleCands[i].Function.Index < admissibleCands[j].Function.Index
	})
	if len(admissibleCands) == 1 || admissibleCands[0].Score > admissibleCands[1].Score {
		winner := admissibleCands[0].Function
		bindings := map[string]lattice.Type{}
		for k, v := range bindingsByFn[winner] {
			bindings[k] = lattice.Concrete(v)
		}
		return Result{Outcome: OutcomeResolved, Resolved: winner, Bindings: bindings}
	}
	return Result{Outcome: OutcomeTyped, Candidates: admissibleCands}
}

// Monotone reports the dispatch-monotonicity invariant of spec.md §8: replacing
// argument index i's type with a subtype of itself must never change the winner
// to a less-specific (lower-score) method. It's exposed for property tests.
func Monotone(p *ir.Program, name string, args []lattice.Type, i int, narrower lattice.Type) bool {
	before := Resolve(p, name, args)
	if before.Outcome != OutcomeResolved {
		return true
	}
	narrowedArgs := append([]lattice.Type{}, args...)
	narrowedArgs[i] = narrower
	after := Resolve(p, name, narrowedArgs)
	if after.Outcome != OutcomeResolved {
		return true
	}
	beforeOK, beforeScore, _ := admissible(before.Resolved, args)
	afterOK, afterScore, _ := admissible(after.Resolved, narrowedArgs)
	_ = beforeOK
	_ = afterOK
	return afterScore >= beforeScore || after.Resolved == before.Resolved
}
