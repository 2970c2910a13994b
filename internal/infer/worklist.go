package infer

import (
	"fmt"

	"vela/internal/ir"
	"vela/internal/lattice"
)

// MaxIter bounds the recursive-SCC fixpoint, per spec.md §4.3.
const MaxIter = 10

// cacheKey is (function id, argument-type vector hash) per spec.md §4.3.
type cacheKey struct {
	funcID int
	argSig string
}

// Cache maps a call site's resolved inputs to its resolved return type. Safe to
// clear between top-level evaluations (it holds no pointers into any one run's
// heap).
type Cache struct {
	m map[cacheKey]lattice.Type
}

func NewCache() *Cache { return &Cache{m: map[cacheKey]lattice.Type{}} }

func argSignature(args []lattice.Type) string {
	s := ""
	for i, a := range args {
		if i > 0 {
			s += ","
		}
		s += a.String()
	}
	return s
}

func (c *Cache) Get(funcID int, args []lattice.Type) (lattice.Type, bool) {
	t, ok := c.m[cacheKey{funcID, argSignature(args)}]
	return t, ok
}

func (c *Cache) Put(funcID int, args []lattice.Type, t lattice.Type) {
	c.m[cacheKey{funcID, argSignature(args)}] = t
}

func (c *Cache) Clear() { c.m = map[cacheKey]lattice.Type{} }

// Diagnostic is a non-fatal inference diagnostic (spec.md §4.3's "never throws").
type Diagnostic struct {
	FunctionIndex int
	FunctionName  string
	Message       string
}

// Result is the outcome of running inference over a whole program.
type Result struct {
	// ReturnTypes maps function index -> inferred return type (monomorphic,
	// 0-argument approximation used for the call graph's own fixpoint; per-call-
	// site argument-specific results live in the Cache and in SiteTypes).
	ReturnTypes map[int]lattice.Type
	// SiteTypes maps an ir.CallExpr pointer to its resolved lattice.Type at that
	// call site, keyed by pointer identity (the IR is immutable so this is stable
	// for the lifetime of one Program).
	SiteTypes   map[ir.Expr]lattice.Type
	Diagnostics []Diagnostic
	Cache       *Cache
}

// Engine runs the worklist-based IPO inference algorithm of spec.md §4.3.
type Engine struct {
	Program *ir.Program
	CG      *CallGraph
	result  *Result
	inProgress map[int]bool
}

func NewEngine(p *ir.Program) *Engine {
	cg := BuildCallGraph(p)
	return &Engine{
		Program: p,
		CG:      cg,
		result: &Result{
			ReturnTypes: map[int]lattice.Type{},
			SiteTypes:   map[ir.Expr]lattice.Type{},
			Cache:       NewCache(),
		},
		inProgress: map[int]bool{},
	}
}

// InferAll runs inference to a fixpoint across the whole program, per spec.md
// §4.3 step 1 (non-recursive SCCs, one pass each) and step 2 (recursive SCCs,
// bounded fixpoint with widening on divergence).
func (e *Engine) InferAll() *Result {
	sccs := DetectSCCs(e.CG)
	for _, scc := range sccs {
		if IsRecursiveSCC(scc, e.CG) {
			e.inferRecursiveGroup(scc)
		} else {
			for _, fn := range scc {
				e.inferFunction(fn)
			}
		}
	}
	return e.result
}

func (e *Engine) functionByIndex(idx int) *ir.Function {
	if idx < 0 || idx >= len(e.Program.Functions) {
		return nil
	}
	return e.Program.Functions[idx]
}

// inferFunction computes fn's return type from a transfer-function walk of its
// body, using currently cached callee return types. Returns true if the stored
// return type changed.
func (e *Engine) inferFunction(funcID int) bool {
	if e.inProgress[funcID] {
		// Recursive call back into a function currently being analyzed returns
		// Top, breaking the cycle without descending further (spec.md §4.3 step 3).
		if _, ok := e.result.ReturnTypes[funcID]; !ok {
			e.result.ReturnTypes[funcID] = lattice.Top()
		}
		return false
	}
	e.inProgress[funcID] = true
	defer delete(e.inProgress, funcID)

	fn := e.functionByIndex(funcID)
	if fn == nil {
		return false
	}
	newTy := e.inferBlockReturn(fn, fn.Body)
	old, had := e.result.ReturnTypes[funcID]
	e.result.ReturnTypes[funcID] = newTy
	e.result.Cache.Put(funcID, declaredParamTypes(fn), newTy)
	return !had || old.String() != newTy.String()
}

// inferRecursiveGroup implements spec.md §4.3 step 2: initialize every member's
// return type to Bottom, fixpoint-iterate up to MaxIter, and widen to Top with a
// divergence diagnostic if still unstable at MaxIter-1.
func (e *Engine) inferRecursiveGroup(scc []int) {
	for _, fn := range scc {
		e.result.ReturnTypes[fn] = lattice.Bottom()
	}
	stable := false
	for iter := 0; iter < MaxIter; iter++ {
		changed := false
		for _, fn := range scc {
			if e.inferFunction(fn) {
				changed = true
			}
		}
		if !changed {
			stable = true
			break
		}
		if iter == MaxIter-2 {
			for _, fn := range scc {
				e.result.ReturnTypes[fn] = lattice.Top()
				name := ""
				if f := e.functionByIndex(fn); f != nil {
					name = f.Name
				}
				e.result.Diagnostics = append(e.result.Diagnostics, Diagnostic{
					FunctionIndex: fn,
					FunctionName:  name,
					Message:       fmt.Sprintf("type inference did not converge within %d iterations; widened to Any", MaxIter),
				})
			}
		}
	}
	_ = stable
}

func declaredParamTypes(fn *ir.Function) []lattice.Type {
	out := make([]lattice.Type, len(fn.Params))
	for i, p := range fn.Params {
		if p.Type != nil {
			out[i] = lattice.Concrete(p.Type.Name)
		} else {
			out[i] = lattice.Top()
		}
	}
	return out
}

// inferBlockReturn walks fn's body computing the join of every reachable
// ReturnStmt's expression type plus the fall-off-the-end type (Nothing, unless
// the last statement is an expression statement whose value is the implicit
// return — mirrored in the compiler's tail-expression handling).
func (e *Engine) inferBlockReturn(fn *ir.Function, b *ir.Block) lattice.Type {
	env := map[string]lattice.Type{}
	for _, p := range fn.Params {
		if p.Type != nil {
			env[p.Name] = lattice.Concrete(p.Type.Name)
		} else {
			env[p.Name] = lattice.Top()
		}
	}
	fallOff := lattice.Concrete("Nothing")
	var returns []lattice.Type
	last := e.inferBlock(b, env, &returns)
	if b != nil && len(b.Stmts) > 0 {
		switch b.Stmts[len(b.Stmts)-1].(type) {
		case *ir.ExprStmt:
			fallOff = last
		case *ir.ReturnStmt:
			fallOff = lattice.Bottom()
		}
	}
	acc := fallOff
	for _, r := range returns {
		acc = lattice.Join(acc, r)
	}
	return acc
}

func (e *Engine) inferBlock(b *ir.Block, env map[string]lattice.Type, returns *[]lattice.Type) lattice.Type {
	if b == nil {
		return lattice.Concrete("Nothing")
	}
	var last lattice.Type = lattice.Concrete("Nothing")
	for _, s := range b.Stmts {
		last = e.inferStmt(s, env, returns)
	}
	return last
}

func (e *Engine) inferStmt(s ir.Stmt, env map[string]lattice.Type, returns *[]lattice.Type) lattice.Type {
	switch st := s.(type) {
	case *ir.LetStmt:
		t := e.inferExpr(st.Initializer, env)
		if st.Type != nil {
			t = lattice.Concrete(st.Type.Name)
		}
		env[st.Name] = t
		return lattice.Concrete("Nothing")
	case *ir.AssignStmt:
		t := e.inferExpr(st.Value, env)
		if v, ok := st.Target.(ir.VarLValue); ok {
			env[v.Name] = lattice.Unify(env[v.Name], t)
		}
		return lattice.Concrete("Nothing")
	case *ir.ExprStmt:
		return e.inferExpr(st.X, env)
	case *ir.ReturnStmt:
		var t lattice.Type
		if st.Value != nil {
			t = e.inferExpr(st.Value, env)
		} else {
			t = lattice.Concrete("Nothing")
		}
		*returns = append(*returns, t)
		return t
	case *ir.IfStmt:
		e.inferExpr(st.Cond, env)
		thenEnv := cloneEnv(env)
		e.inferBlock(st.Then, thenEnv, returns)
		elseEnv := cloneEnv(env)
		if st.Else != nil {
			e.inferBlock(st.Else, elseEnv, returns)
		}
		for k, v := range thenEnv {
			env[k] = lattice.Unify(v, elseEnv[k])
		}
		return lattice.Concrete("Nothing")
	case *ir.WhileStmt:
		e.inferExpr(st.Cond, env)
		e.inferBlock(st.Body, cloneEnv(env), returns)
		return lattice.Concrete("Nothing")
	case *ir.ForRangeStmt:
		env[st.Var] = lattice.Concrete("Int64")
		e.inferBlock(st.Body, cloneEnv(env), returns)
		return lattice.Concrete("Nothing")
	case *ir.ForEachStmt:
		iterTy := e.inferExpr(st.Iter, env)
		bodyEnv := cloneEnv(env)
		bodyEnv[st.Var] = lattice.ElementOf(iterTy)
		e.inferBlock(st.Body, bodyEnv, returns)
		return lattice.Concrete("Nothing")
	case *ir.TryStmt:
		e.inferBlock(st.TryBlock, cloneEnv(env), returns)
		catchEnv := cloneEnv(env)
		if st.CatchVar != "" {
			catchEnv[st.CatchVar] = lattice.Top()
		}
		e.inferBlock(st.CatchBlock, catchEnv, returns)
		e.inferBlock(st.ElseBlock, cloneEnv(env), returns)
		e.inferBlock(st.FinallyBlock, cloneEnv(env), returns)
		return lattice.Concrete("Nothing")
	}
	return lattice.Concrete("Nothing")
}

func cloneEnv(env map[string]lattice.Type) map[string]lattice.Type {
	out := make(map[string]lattice.Type, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

func (e *Engine) inferExpr(ex ir.Expr, env map[string]lattice.Type) lattice.Type {
	if ex == nil {
		return lattice.Concrete("Nothing")
	}
	var t lattice.Type
	switch x := ex.(type) {
	case *ir.Literal:
		t = literalType(x)
	case *ir.VarRef:
		if v, ok := env[x.Name]; ok {
			t = v
		} else {
			t = lattice.Top()
		}
	case *ir.BinaryExpr:
		lt := e.inferExpr(x.Left, env)
		rt := e.inferExpr(x.Right, env)
		if folded, ok := lattice.ConstEval(x.Op, lt, rt); ok {
			t = folded
		} else {
			t = lattice.BinaryTransfer(x.Op, lt, rt)
		}
	case *ir.UnaryExpr:
		t = lattice.UnaryTransfer(x.Op, e.inferExpr(x.Operand, env))
	case *ir.CallExpr:
		for _, a := range x.Args {
			e.inferExpr(a.Value, env)
		}
		t = e.inferCall(x, env)
	case *ir.TernaryExpr:
		e.inferExpr(x.Cond, env)
		t = lattice.Unify(e.inferExpr(x.Then, env), e.inferExpr(x.Else, env))
	case *ir.TupleExpr:
		args := make([]lattice.Type, len(x.Elements))
		for i, el := range x.Elements {
			args[i] = e.inferExpr(el, env)
		}
		t = lattice.Concrete("Tuple", args...)
	case *ir.ArrayExpr:
		elemTy := lattice.Bottom()
		for _, el := range x.Elements {
			elemTy = lattice.Join(elemTy, e.inferExpr(el, env))
		}
		if elemTy.Kind == lattice.KindBottom {
			elemTy = lattice.Top()
		}
		t = lattice.Concrete("Array", elemTy)
	case *ir.IndexExpr:
		objTy := e.inferExpr(x.Object, env)
		for _, i := range x.Indices {
			e.inferExpr(i, env)
		}
		t = lattice.ElementOf(objTy)
	case *ir.RangeExpr:
		e.inferExpr(x.Start, env)
		e.inferExpr(x.Stop, env)
		if x.Step != nil {
			e.inferExpr(x.Step, env)
		}
		t = lattice.Concrete("Range", lattice.Concrete("Int64"))
	default:
		t = lattice.Top()
	}
	e.result.SiteTypes[ex] = t
	return t
}

func literalType(l *ir.Literal) lattice.Type {
	switch l.Kind {
	case ir.LitInt:
		return lattice.Const(l.Value, "Int64")
	case ir.LitFloat:
		cty := "Float64"
		if l.FloatSuffix == "f32" {
			cty = "Float32"
		}
		return lattice.Const(l.Value, cty)
	case ir.LitBool:
		return lattice.Const(l.Value, "Bool")
	case ir.LitChar:
		return lattice.Const(l.Value, "Char")
	case ir.LitString:
		return lattice.Const(l.Value, "String")
	case ir.LitNothing:
		return lattice.Concrete("Nothing")
	case ir.LitMissing:
		return lattice.Concrete("Missing")
	}
	return lattice.Top()
}

// inferCall resolves a simple-name call site's argument types and recurses into
// the callee (consulting/populating Cache), implementing the "insert into a
// cache keyed by (function id, argument types)" rule of spec.md §4.3 step 1.
func (e *Engine) inferCall(call *ir.CallExpr, env map[string]lattice.Type) lattice.Type {
	name, ok := call.Callee.(*ir.VarRef)
	if !ok {
		return lattice.Top()
	}
	if t := lattice.IntrinsicTransfer(name.Name, nil); t.Kind != lattice.KindTop {
		return t
	}
	candidates := e.Program.FunctionsNamed(name.Name)
	if len(candidates) == 0 {
		return lattice.Top()
	}
	argTys := make([]lattice.Type, len(call.Args))
	for i, a := range call.Args {
		argTys[i] = e.result.SiteTypes[a.Value]
	}
	var joined lattice.Type = lattice.Bottom()
	for _, fn := range candidates {
		if cached, ok := e.result.Cache.Get(fn.Index, argTys); ok {
			joined = lattice.Join(joined, cached)
			continue
		}
		if rt, ok := e.result.ReturnTypes[fn.Index]; ok {
			joined = lattice.Join(joined, rt)
			continue
		}
		e.inferFunction(fn.Index)
		joined = lattice.Join(joined, e.result.ReturnTypes[fn.Index])
	}
	if joined.Kind == lattice.KindBottom {
		return lattice.Top()
	}
	return joined
}
