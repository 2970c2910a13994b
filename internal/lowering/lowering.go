// Package lowering converts the CST produced by internal/parser into the
// typed core IR of internal/ir (spec.md §2's "Lowering" stage, C1's input
// contract). The surface grammar (internal/lexer + internal/parser) is out of
// scope per spec.md §1; lowering is the one piece of this repository that has
// to bridge it to the in-scope pipeline, so it stays a thin, mechanical
// visitor rather than an elaborated pass of its own.
//
// Grounded on the teacher's own lowering shape: a StmtVisitor/ExprVisitor walk
// that returns ir nodes instead of evaluating them directly, mirrored here
// because the teacher's interpreter visitor and this lowering visitor both
// need to handle the exact same grammar.
package lowering

import (
	"fmt"

	"vela/internal/diagnostics"
	"vela/internal/ir"
	"vela/internal/parser"
)

// Lowerer walks a parser.Stmt slice and produces an ir.Program. One Lowerer
// is used per compilation unit; it is not safe for concurrent use.
type Lowerer struct {
	prog *ir.Program
	errs []error
	hy   *hygiene
}

func New() *Lowerer {
	return &Lowerer{
		prog: &ir.Program{},
		hy:   newHygiene(),
	}
}

// Lower converts a top-level statement slice (the output of parser.Parse)
// into an ir.Program. Top-level function/struct/abstract/enum/alias
// declarations are collected into the Program's tables; everything else
// becomes part of the implicit main block, matching spec.md §3.1's "top-level
// main block".
func (l *Lowerer) Lower(stmts []parser.Stmt) (*ir.Program, error) {
	main := &ir.Block{}
	for _, s := range stmts {
		if err := l.lowerTopLevel(s, main); err != nil {
			l.errs = append(l.errs, err)
		}
	}
	l.prog.Main = main
	l.prog.AssignIndices()
	if len(l.errs) > 0 {
		return l.prog, l.errs[0]
	}
	return l.prog, nil
}

func (l *Lowerer) lowerTopLevel(s parser.Stmt, main *ir.Block) error {
	switch st := s.(type) {
	case *parser.FunctionStmt:
		fn, err := l.lowerFunction(st)
		if err != nil {
			return err
		}
		l.prog.Functions = append(l.prog.Functions, fn)
		return nil
	case *parser.ClassStmt:
		l.prog.Structs = append(l.prog.Structs, l.lowerStruct(st))
		return nil
	case *parser.AbstractStmt:
		l.prog.Abstracts = append(l.prog.Abstracts, &ir.AbstractTypeDef{
			Name: st.Name, Parent: st.Parent,
		})
		return nil
	case *parser.EnumStmt:
		members := make([]ir.EnumMember, len(st.Members))
		for i, m := range st.Members {
			members[i] = ir.EnumMember{Name: m.Name, Value: m.Value}
		}
		l.prog.Enums = append(l.prog.Enums, &ir.EnumDef{Name: st.Name, BaseTy: st.BaseTy, Members: members})
		return nil
	case *parser.AliasStmt:
		l.prog.Aliases = append(l.prog.Aliases, &ir.Alias{Name: st.Name, Target: parseTypeExpr(st.Target)})
		return nil
	case *parser.ImportStmt:
		l.prog.Imports = append(l.prog.Imports, st.Path)
		return nil
	case *parser.ExportStmt:
		return l.lowerTopLevel(st.Stmt, main)
	default:
		stmt, err := l.lowerStmt(s)
		if err != nil {
			return err
		}
		main.Stmts = append(main.Stmts, stmt)
		return nil
	}
}

func (l *Lowerer) lowerFunction(fs *parser.FunctionStmt) (*ir.Function, error) {
	params := make([]ir.Param, len(fs.Params))
	for i, name := range fs.Params {
		var ty *ir.TypeExpr
		if i < len(fs.ParamTypes) && fs.ParamTypes[i] != "" {
			ty = parseTypeExpr(fs.ParamTypes[i])
		}
		params[i] = ir.Param{Name: name, Type: ty}
	}
	typeParams := make([]ir.TypeParam, len(fs.TypeParams))
	for i, tp := range fs.TypeParams {
		typeParams[i] = ir.TypeParam{Name: tp}
	}
	var ret *ir.TypeExpr
	if fs.ReturnType != "" {
		ret = parseTypeExpr(fs.ReturnType)
	}
	body, err := l.lowerBlock(fs.Body)
	if err != nil {
		return nil, err
	}
	return &ir.Function{
		Name:       fs.Name,
		Params:     params,
		TypeParams: typeParams,
		ReturnType: ret,
		Body:       body,
	}, nil
}

func (l *Lowerer) lowerStruct(cs *parser.ClassStmt) *ir.StructDef {
	fields := make([]ir.StructField, len(cs.Fields))
	allPrimitive := true
	for i, f := range cs.Fields {
		ty := parseTypeExpr(f.Type)
		fields[i] = ir.StructField{Name: f.Name, Type: ty}
		if !isPrimitiveScalarName(f.Type) {
			allPrimitive = false
		}
	}
	typeParams := make([]ir.TypeParam, len(cs.TypeParams))
	for i, tp := range cs.TypeParams {
		typeParams[i] = ir.TypeParam{Name: tp}
	}
	return &ir.StructDef{
		Name:       cs.Name,
		Mutable:    cs.Mutable,
		Fields:     fields,
		Parent:     cs.Superclass,
		TypeParams: typeParams,
		IsBits:     !cs.Mutable && allPrimitive,
	}
}

var primitiveScalarNames = map[string]bool{
	"Int8": true, "Int16": true, "Int32": true, "Int64": true, "Int128": true,
	"UInt8": true, "UInt16": true, "UInt32": true, "UInt64": true, "UInt128": true,
	"Float16": true, "Float32": true, "Float64": true,
	"Bool": true, "Char": true,
}

func isPrimitiveScalarName(name string) bool { return primitiveScalarNames[name] }

func (l *Lowerer) lowerBlock(stmts []parser.Stmt) (*ir.Block, error) {
	b := &ir.Block{}
	for _, s := range stmts {
		stmt, err := l.lowerStmt(s)
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, stmt)
	}
	return b, nil
}

func (l *Lowerer) lowerStmt(s parser.Stmt) (ir.Stmt, error) {
	switch st := s.(type) {
	case *parser.LetStmt:
		init, err := l.lowerExpr(st.Expr)
		if err != nil {
			return nil, err
		}
		return &ir.LetStmt{Name: st.Name, Mutable: true, Initializer: init}, nil

	case *parser.AssignmentStmt:
		v, err := l.lowerExpr(st.Value)
		if err != nil {
			return nil, err
		}
		return &ir.AssignStmt{Target: ir.VarLValue{Name: st.Name}, Value: v}, nil

	case *parser.IndexAssignmentStmt:
		obj, err := l.lowerExpr(st.Object)
		if err != nil {
			return nil, err
		}
		idx, err := l.lowerExpr(st.Index)
		if err != nil {
			return nil, err
		}
		v, err := l.lowerExpr(st.Value)
		if err != nil {
			return nil, err
		}
		return &ir.AssignStmt{Target: ir.IndexLValue{Object: obj, Indices: []ir.Expr{idx}}, Value: v}, nil

	case *parser.FieldAssignmentStmt:
		obj, err := l.lowerExpr(st.Object)
		if err != nil {
			return nil, err
		}
		v, err := l.lowerExpr(st.Value)
		if err != nil {
			return nil, err
		}
		return &ir.AssignStmt{Target: ir.FieldLValue{Object: obj, Field: st.Field}, Value: v}, nil

	case *parser.CompoundAssignmentStmt:
		lv, err := l.lowerLValue(st.Target)
		if err != nil {
			return nil, err
		}
		v, err := l.lowerExpr(st.Value)
		if err != nil {
			return nil, err
		}
		return &ir.CompoundAssignStmt{Target: lv, Op: st.Op, Value: v}, nil

	case *parser.ExpressionStmt:
		x, err := l.lowerExpr(st.Expr)
		if err != nil {
			return nil, err
		}
		return &ir.ExprStmt{X: x}, nil

	case *parser.PrintStmt:
		x, err := l.lowerExpr(st.Expr)
		if err != nil {
			return nil, err
		}
		call := &ir.CallExpr{Callee: &ir.VarRef{Name: "println"}, Args: []ir.Arg{{Value: x}}}
		return &ir.ExprStmt{X: call}, nil

	case *parser.ReturnStmt:
		var v ir.Expr
		if st.Value != nil {
			x, err := l.lowerExpr(st.Value)
			if err != nil {
				return nil, err
			}
			v = x
		}
		return &ir.ReturnStmt{Value: v}, nil

	case *parser.IfStmt:
		cond, err := l.lowerExpr(st.Condition)
		if err != nil {
			return nil, err
		}
		then, err := l.lowerBlock(st.Then)
		if err != nil {
			return nil, err
		}
		var els *ir.Block
		if st.Else != nil {
			els, err = l.lowerBlock(st.Else)
			if err != nil {
				return nil, err
			}
		}
		return &ir.IfStmt{Cond: cond, Then: then, Else: els}, nil

	case *parser.WhileStmt:
		cond, err := l.lowerExpr(st.Condition)
		if err != nil {
			return nil, err
		}
		body, err := l.lowerBlock(st.Body)
		if err != nil {
			return nil, err
		}
		return &ir.WhileStmt{Cond: cond, Body: body}, nil

	case *parser.ForStmt:
		return l.lowerCStyleFor(st)

	case *parser.ForInStmt:
		if r, ok := st.Collection.(*parser.RangeExpr); ok {
			return l.lowerForRange(st.Variable, r, st.Body)
		}
		iter, err := l.lowerExpr(st.Collection)
		if err != nil {
			return nil, err
		}
		body, err := l.lowerBlock(st.Body)
		if err != nil {
			return nil, err
		}
		return &ir.ForEachStmt{Var: st.Variable, Iter: iter, Body: body}, nil

	case *parser.BreakStmt:
		return &ir.BreakStmt{}, nil
	case *parser.ContinueStmt:
		return &ir.ContinueStmt{}, nil

	case *parser.TryStmt:
		tryBlock, err := l.lowerBlock(st.TryBlock)
		if err != nil {
			return nil, err
		}
		var catchBlock, finallyBlock *ir.Block
		if st.CatchBlock != nil {
			catchBlock, err = l.lowerBlock(st.CatchBlock)
			if err != nil {
				return nil, err
			}
		}
		if st.FinallyBlock != nil {
			finallyBlock, err = l.lowerBlock(st.FinallyBlock)
			if err != nil {
				return nil, err
			}
		}
		return &ir.TryStmt{
			TryBlock: tryBlock, CatchVar: st.CatchVar,
			CatchBlock: catchBlock, FinallyBlock: finallyBlock,
		}, nil

	case *parser.ThrowStmt:
		v, err := l.lowerExpr(st.Value)
		if err != nil {
			return nil, err
		}
		// `throw e` lowers to a call of the Base `throw` intrinsic rather than
		// its own ir.Stmt variant — spec.md §3.1 doesn't list Throw among the
		// statement variants, only Try; throw is ordinary control flow raised
		// from inside a CallBuiltin at the bytecode layer (internal/vm).
		call := &ir.CallExpr{Callee: &ir.VarRef{Name: "throw"}, Args: []ir.Arg{{Value: v}}}
		return &ir.ExprStmt{X: call}, nil

	case *parser.ClassStmt, *parser.AbstractStmt, *parser.EnumStmt, *parser.AliasStmt, *parser.FunctionStmt, *parser.ImportStmt, *parser.ExportStmt:
		return nil, fmt.Errorf("lowering: declaration %T is only valid at top level", st)

	case *parser.MatchStmt:
		return l.lowerMatch(st)

	default:
		return nil, loweringError(fmt.Sprintf("unhandled statement %T", s))
	}
}

func (l *Lowerer) lowerLValue(e parser.Expr) (ir.LValue, error) {
	switch t := e.(type) {
	case *parser.Variable:
		return ir.VarLValue{Name: t.Name}, nil
	case *parser.PropertyExpr:
		obj, err := l.lowerExpr(t.Object)
		if err != nil {
			return nil, err
		}
		return ir.FieldLValue{Object: obj, Field: t.Property}, nil
	case *parser.IndexExpr:
		obj, err := l.lowerExpr(t.Object)
		if err != nil {
			return nil, err
		}
		idx, err := l.lowerExpr(t.Index)
		if err != nil {
			return nil, err
		}
		return ir.IndexLValue{Object: obj, Indices: []ir.Expr{idx}}, nil
	default:
		return nil, loweringError(fmt.Sprintf("invalid assignment target %T", e))
	}
}

// lowerCStyleFor desugars the C-style `for(init; cond; update)` form, which
// spec.md's statement grammar doesn't name directly, into a While loop whose
// body runs the update expression last — the same "for is sugar over while"
// desugaring the teacher's own lowering favors for constructs the core IR
// doesn't model 1:1.
func (l *Lowerer) lowerCStyleFor(st *parser.ForStmt) (ir.Stmt, error) {
	block := &ir.Block{}
	if st.Init != nil {
		init, err := l.lowerStmt(st.Init)
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, init)
	}
	var cond ir.Expr = &ir.Literal{Kind: ir.LitBool, Value: true}
	if st.Condition != nil {
		c, err := l.lowerExpr(st.Condition)
		if err != nil {
			return nil, err
		}
		cond = c
	}
	body, err := l.lowerBlock(st.Body)
	if err != nil {
		return nil, err
	}
	if st.Update != nil {
		upd, err := l.lowerExpr(st.Update)
		if err != nil {
			return nil, err
		}
		body.Stmts = append(body.Stmts, &ir.ExprStmt{X: upd})
	}
	block.Stmts = append(block.Stmts, &ir.WhileStmt{Cond: cond, Body: body})
	return &ir.BlockStmt{Block: block}, nil
}

func (l *Lowerer) lowerForRange(v string, r *parser.RangeExpr, bodyStmts []parser.Stmt) (ir.Stmt, error) {
	start, err := l.lowerExpr(r.Start)
	if err != nil {
		return nil, err
	}
	stop, err := l.lowerExpr(r.Stop)
	if err != nil {
		return nil, err
	}
	var step ir.Expr
	if r.Step != nil {
		step, err = l.lowerExpr(r.Step)
		if err != nil {
			return nil, err
		}
	}
	body, err := l.lowerBlock(bodyStmts)
	if err != nil {
		return nil, err
	}
	return &ir.ForRangeStmt{Var: v, Start: start, Stop: stop, Step: step, Body: body}, nil
}

// lowerMatch desugars `match v { pattern => body, ... }` into a chain of
// if/else comparing v against each pattern — the core IR has no match
// construct (spec.md §3.1 doesn't list one), so this is sugar, same
// treatment as lowerCStyleFor above.
func (l *Lowerer) lowerMatch(st *parser.MatchStmt) (ir.Stmt, error) {
	subjectName := l.hy.next("match")
	subject, err := l.lowerExpr(st.Value)
	if err != nil {
		return nil, err
	}
	block := &ir.Block{Stmts: []ir.Stmt{
		&ir.LetStmt{Name: subjectName, Initializer: subject},
	}}
	var chain *ir.IfStmt
	var tail *ir.IfStmt
	for _, c := range st.Cases {
		pat, err := l.lowerExpr(c.Pattern)
		if err != nil {
			return nil, err
		}
		body, err := l.lowerBlock(c.Body)
		if err != nil {
			return nil, err
		}
		cond := &ir.BinaryExpr{Op: "==", Left: &ir.VarRef{Name: subjectName}, Right: pat}
		ifs := &ir.IfStmt{Cond: cond, Then: body}
		if chain == nil {
			chain = ifs
		} else {
			tail.Else = &ir.Block{Stmts: []ir.Stmt{ifs}}
		}
		tail = ifs
	}
	if chain != nil {
		block.Stmts = append(block.Stmts, chain)
	}
	return &ir.BlockStmt{Block: block}, nil
}

func loweringError(msg string) error {
	return fmt.Errorf("lowering: %s", diagnostics.New(diagnostics.KindLowering, msg).Error())
}
