// Package ir defines the typed core intermediate representation that the rest of
// the pipeline (base merge, inference, compiler, AoT codegen) operates on.
//
// The IR is an immutable tree: blocks own statements which own expressions. Cycles
// exist only at the call-graph level (see internal/infer), never in the IR itself.
package ir

// Span is a source location range, carried through from the CST.
type Span struct {
	File        string
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// TypeExpr is the surface-level, unresolved type annotation written by the user
// (e.g. `Int64`, `Array{Float64}`, `T` where T is a where-clause variable). Lattice
// resolution happens in internal/lattice; TypeExpr is the syntactic input to that.
type TypeExpr struct {
	Name string
	Args []*TypeExpr // parametric arguments, e.g. Array{Float64} -> Args=[Float64]
}

func (t *TypeExpr) String() string {
	if t == nil {
		return ""
	}
	if len(t.Args) == 0 {
		return t.Name
	}
	s := t.Name + "{"
	for i, a := range t.Args {
		if i > 0 {
			s += ","
		}
		s += a.String()
	}
	return s + "}"
}

// Param is a positional parameter: name, optional declared type.
type Param struct {
	Name string
	Type *TypeExpr // nil means untyped (dynamic)
	Span Span
}

// KeywordParam is a keyword parameter with a default expression and a required flag.
type KeywordParam struct {
	Name     string
	Type     *TypeExpr
	Default  Expr // nil if Required
	Required bool
}

// TypeParam is a where-clause type variable, e.g. `where T <: Number`.
type TypeParam struct {
	Name  string
	Bound *TypeExpr // upper bound, nil if unbounded
}

// Function is a single method definition. Multiple Functions may share a Name —
// that is exactly what multiple dispatch (C5) resolves between.
type Function struct {
	Name          string
	Params        []Param
	KeywordParams []KeywordParam
	TypeParams    []TypeParam
	ReturnType    *TypeExpr // nil means inferred/unannotated
	Body          *Block
	IsBaseExt     bool // true if this function was loaded from the Base library
	Span          Span

	// Index is assigned by the Program once all functions are collected; it is the
	// stable identifier used by the call graph (C4), dispatch tables (C5), and the
	// compiler's FunctionInfo table (C6).
	Index int
}

// Signature returns the parameter-type signature used as the multiple-dispatch key.
// Untyped parameters serialize as "Any".
func (f *Function) Signature() string {
	sig := f.Name + "("
	for i, p := range f.Params {
		if i > 0 {
			sig += ","
		}
		if p.Type != nil {
			sig += p.Type.String()
		} else {
			sig += "Any"
		}
	}
	sig += ")"
	return sig
}

// StructField is a single typed field of a struct.
type StructField struct {
	Name string
	Type *TypeExpr
}

// StructDef declares a (possibly parametric) struct type.
//
// IsBits holds iff Mutable is false and every field is a primitive scalar type
// (internal/lowering decides this from the field annotation names when it builds
// the StructDef).
type StructDef struct {
	Name       string
	Mutable    bool
	Fields     []StructField
	Parent     string // optional abstract-type parent, "" if none
	TypeParams []TypeParam
	IsBits     bool
	Span       Span
}

// AbstractTypeDef declares an abstract (non-instantiable) type, optionally with a
// parent in the abstract-type chain used by subtype().
type AbstractTypeDef struct {
	Name       string
	Parent     string
	TypeParams []TypeParam
}

// EnumMember is one named, explicitly valued member of an enum.
type EnumMember struct {
	Name  string
	Value int64
}

// EnumDef declares an integer-backed enum.
type EnumDef struct {
	Name    string
	BaseTy  string // one of the integer primitive names
	Members []EnumMember
}

// Alias declares `TypeAlias = TargetType`.
type Alias struct {
	Name   string
	Target *TypeExpr
}

// Program is the top-level unit produced by lowering, and later by base-merge.
type Program struct {
	Functions  []*Function
	Structs    []*StructDef
	Abstracts  []*AbstractTypeDef
	Enums      []*EnumDef
	Aliases    []*Alias
	Imports    []string
	Main       *Block

	// BaseFunctionCount is the watermark set by base-merge (C2): functions with
	// Index < BaseFunctionCount are Base functions and are never runtime-specialized.
	BaseFunctionCount int
}

// FunctionsNamed returns every function whose Name matches, preserving definition
// order. This is the candidate set method dispatch (C5) scores against.
func (p *Program) FunctionsNamed(name string) []*Function {
	var out []*Function
	for _, f := range p.Functions {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

// AssignIndices numbers every function 0..n in current slice order. Called once
// after lowering and again after base-merge, which places the Base functions
// ahead of the user's.
func (p *Program) AssignIndices() {
	for i, f := range p.Functions {
		f.Index = i
	}
}

// StructByName looks up a struct definition, returning nil if absent.
func (p *Program) StructByName(name string) *StructDef {
	for _, s := range p.Structs {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// AbstractByName looks up an abstract type definition, returning nil if absent.
func (p *Program) AbstractByName(name string) *AbstractTypeDef {
	for _, a := range p.Abstracts {
		if a.Name == name {
			return a
		}
	}
	return nil
}
