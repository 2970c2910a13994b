// Package embed implements the embedding API of spec.md §6.1: a handful of
// entry points a host program links against, plus a long-lived REPL session.
// The pipeline wiring mirrors cmd/sentra/main.go's
// lexer→parser→compiler→vm chain, adapted to return a result value instead
// of printing to stdout/exiting the process.
package embed

import (
	"vela/internal/base"
	"vela/internal/bytecode"
	"vela/internal/compiler"
	"vela/internal/infer"
	"vela/internal/ir"
	"vela/internal/lexer"
	"vela/internal/lowering"
	"vela/internal/parser"
	"vela/internal/rng"
	"vela/internal/vm"
)

// RunResult is compile_and_run/run_ir's `{value, output}` shape.
type RunResult struct {
	Value  vm.Value
	Output string
}

// CompileToIR parses and lowers source, merging in the Base library, and
// returns the resulting annotated-but-not-yet-inferred program — spec.md
// §6.1's compile_to_ir.
func CompileToIR(source string) (*ir.Program, error) {
	tokens := lexer.NewScanner(source).ScanTokens()
	stmts := parser.NewParserWithSource(tokens, source, "").Parse()
	prog, err := lowering.New().Lower(stmts)
	if err != nil {
		return nil, err
	}
	return base.Merge(prog)
}

// CompileProgram runs inference and bytecode compilation over an already
// merged ir.Program, the shared tail of compile_and_run and run_ir. Exported
// so drivers like cmd/vela's bytecode-save subcommand can produce a
// CompiledProgram without duplicating the inference+compile wiring.
func CompileProgram(prog *ir.Program) (*bytecode.CompiledProgram, error) {
	infer.NewEngine(prog).InferAll()
	return compiler.NewCompiler(prog).Compile()
}

// RunCompiled seeds a VM over an already-compiled program and executes it,
// capturing output regardless of whether execution ultimately errors
// (spec.md §7's "output captured up to the failure point is always returned
// alongside the error"). Used directly by the bytecode-load driver, which
// has no source or ir.Program to recompile from.
func RunCompiled(cp *bytecode.CompiledProgram, seed uint64) (RunResult, error) {
	machine := vm.New(cp)
	machine.SeedRNG(seed)
	val, err := machine.Run()
	return RunResult{Value: val, Output: machine.Output()}, err
}

// CompileAndRun is the end-to-end entry point of spec.md §6.1.
func CompileAndRun(source string, seed uint64) (RunResult, error) {
	prog, err := CompileToIR(source)
	if err != nil {
		return RunResult{}, err
	}
	cp, err := CompileProgram(prog)
	if err != nil {
		return RunResult{}, err
	}
	return RunCompiled(cp, seed)
}

// RunIR skips parsing, running inference and compilation directly over a
// caller-supplied program — spec.md §6.1's run_ir.
func RunIR(prog *ir.Program, seed uint64) (RunResult, error) {
	cp, err := CompileProgram(prog)
	if err != nil {
		return RunResult{}, err
	}
	return RunCompiled(cp, seed)
}

// AnalyzeTypeStability runs inference without execution and classifies every
// function's return-type stability — spec.md §6.1's analyze_type_stability.
func AnalyzeTypeStability(source string) (*infer.StabilityReport, error) {
	prog, err := CompileToIR(source)
	if err != nil {
		return nil, err
	}
	result := infer.NewEngine(prog).InferAll()
	names := make(map[int]string, len(prog.Functions))
	for _, fn := range prog.Functions {
		names[fn.Index] = fn.Name
	}
	return infer.AnalyzeStability(result, names), nil
}

// REPLSession is a long-lived evaluator: successive Eval calls accumulate
// function/struct definitions and top-level statements (spec.md §6.1). Each
// Eval compiles the accumulated program and runs it in a new VM, so the struct
// heap and runtime values of one evaluation are not carried into the next;
// between evaluations the session keeps only the program and its RNG stream.
type REPLSession struct {
	prog    *ir.Program
	machine *vm.VM
	rng     *rng.StableRNG
}

// NewREPLSession starts an empty session backed by a fresh, empty program
// merged with the Base library.
func NewREPLSession(seed uint64) (*REPLSession, error) {
	prog, err := base.Merge(&ir.Program{Main: &ir.Block{}})
	if err != nil {
		return nil, err
	}
	return &REPLSession{prog: prog, rng: rng.New(seed)}, nil
}

// Eval parses and lowers source, appends its declarations onto the
// session's accumulated program, recompiles the whole thing, and runs all
// accumulated top-level code (statements from earlier evaluations included)
// in a fresh VM seeded from the session's own RNG stream
// so successive evaluations are still deterministic as a sequence.
func (r *REPLSession) Eval(source string) (RunResult, error) {
	tokens := lexer.NewScanner(source).ScanTokens()
	stmts := parser.NewParserWithSource(tokens, source, "").Parse()
	incoming, err := lowering.New().Lower(stmts)
	if err != nil {
		return RunResult{}, err
	}

	r.prog.Functions = append(r.prog.Functions, incoming.Functions...)
	r.prog.Structs = append(r.prog.Structs, incoming.Structs...)
	r.prog.Abstracts = append(r.prog.Abstracts, incoming.Abstracts...)
	r.prog.Enums = append(r.prog.Enums, incoming.Enums...)
	r.prog.Aliases = append(r.prog.Aliases, incoming.Aliases...)
	r.prog.Main.Stmts = append(r.prog.Main.Stmts, incoming.Main.Stmts...)
	r.prog.AssignIndices()

	cp, err := CompileProgram(r.prog)
	if err != nil {
		return RunResult{}, err
	}
	r.machine = vm.New(cp)
	r.machine.SeedRNG(r.rng.Uint64())
	val, runErr := r.machine.Run()
	return RunResult{Value: val, Output: r.machine.Output()}, runErr
}
