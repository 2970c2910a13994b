package ir

// Expr is implemented by every expression-node variant listed in spec.md §3.1.
// The visitor is kept deliberately small (Kind + type switch in consumers) rather
// than a full visitor interface per node — the teacher's parser package uses a
// visitor interface for its much smaller grammar; once the grammar grows to the
// full §3.1 list a type switch reads better and avoids an N-method interface med
// every consumer (compiler, inference, AoT) must implement in full.
type Expr interface {
	exprNode()
	SpanOf() Span
}

type base struct{ Span Span }

func (base) exprNode()         {}
func (b base) SpanOf() Span    { return b.Span }

// LitKind distinguishes the literal variants of spec.md §3.1.
type LitKind int

const (
	LitInt LitKind = iota
	LitFloat
	LitBool
	LitChar
	LitString
	LitNothing
	LitMissing
)

// Literal is a constant value appearing directly in source.
type Literal struct {
	base
	Kind LitKind
	// Value holds the Go-native representation: int64 for LitInt, float64 for
	// LitFloat (with the parsed suffix, see FloatSuffix), bool, rune, string.
	Value        interface{}
	FloatSuffix  string // "f32" / "f64" / "" (defaults to f64)
}

// VarRef references a named binding (local, global, or function).
type VarRef struct {
	base
	Name string
}

// BinaryExpr is `left OP right`.
type BinaryExpr struct {
	base
	Op          string
	Left, Right Expr
}

// UnaryExpr is `OP operand`.
type UnaryExpr struct {
	base
	Op      string
	Operand Expr
}

// Arg is one argument at a call site: either positional (Name=="") or keyword.
type Arg struct {
	Name  string
	Value Expr
	Splat bool // expand a collection-valued argument into positionals
}

// CallExpr invokes Callee (a name in the simplest case, or any expression that
// evaluates to a callable) with positional/keyword/splat arguments.
type CallExpr struct {
	base
	Callee Expr
	Args   []Arg
}

// FieldExpr is `object.field`.
type FieldExpr struct {
	base
	Object Expr
	Field  string
}

// IndexExpr is `object[index...]`.
type IndexExpr struct {
	base
	Object  Expr
	Indices []Expr
}

// TupleExpr is `(a, b, c)`.
type TupleExpr struct {
	base
	Elements []Expr
}

// ArrayExpr is `[a, b, c]`.
type ArrayExpr struct {
	base
	Elements []Expr
}

// DictEntry is one `key => value` pair in a dict literal.
type DictEntry struct{ Key, Value Expr }

// DictExpr is `Dict(k1=>v1, k2=>v2)`.
type DictExpr struct {
	base
	Entries []DictEntry
}

// SetExpr is `Set([a,b,c])`.
type SetExpr struct {
	base
	Elements []Expr
}

// NamedTupleField is one `name = value` entry in a named-tuple literal.
type NamedTupleField struct {
	Name  string
	Value Expr
}

// NamedTupleExpr is `(; a=1, b=2)`.
type NamedTupleExpr struct {
	base
	Fields []NamedTupleField
}

// RangeExpr is `start:step:stop` (Step nil means implicit 1).
type RangeExpr struct {
	base
	Start, Step, Stop Expr
}

// ComprehensionExpr is `[expr for var in iter if cond]`.
type ComprehensionExpr struct {
	base
	Result   Expr
	Var      string
	Iter     Expr
	Cond     Expr // nil if no filter
}

// LambdaExpr is an anonymous function `x -> expr` / `(x,y) -> expr`.
type LambdaExpr struct {
	base
	Params []string
	Body   Expr
}

// TernaryExpr is `cond ? then : else`.
type TernaryExpr struct {
	base
	Cond, Then, Else Expr
}

// QuoteExpr wraps `:( expr )` for the metaprogramming subset that survives into
// runtime as Expr/QuoteNode/GlobalRef values (spec.md §3.3).
type QuoteExpr struct {
	base
	Quoted Expr
}

// SymbolExpr is `:name`, an interned symbol literal.
type SymbolExpr struct {
	base
	Name string
}

// InterpolationPart is either a literal string chunk or an embedded expression.
type InterpolationPart struct {
	Literal string // used when Expr == nil
	Expr    Expr
}

// InterpolationExpr is a string with `${...}` splices.
type InterpolationExpr struct {
	base
	Parts []InterpolationPart
}

// BroadcastExpr is `f.(args...)`, element-wise application over array arguments.
type BroadcastExpr struct {
	base
	Callee Expr
	Args   []Expr
}
