package bytecode

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"vela/internal/ir"
)

// Magic is the 4-byte ASCII sequence identifying a Vela bytecode file
// (spec.md §6.2).
const Magic = "SJBC"

// Version is bumped on any incompatible change to the encoded Program shape.
const Version uint32 = 1

// ErrBadMagic / ErrVersionMismatch are the two documented load failures.
var (
	ErrBadMagic        = fmt.Errorf("bytecode: not a %s file (bad magic)", Magic)
	ErrVersionMismatch = fmt.Errorf("bytecode: incompatible version")
)

func init() {
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(float32(0))
	gob.Register(string(""))
	gob.Register(bool(false))
	gob.Register(rune(0))
	gob.Register(OpCode(0))
	gob.Register(&ir.Function{})
	// Every concrete Expr/Stmt/LValue variant must be registered so gob can
	// round-trip the retained IR of specializable functions (Specializable).
	gob.Register(&ir.Literal{})
	gob.Register(&ir.VarRef{})
	gob.Register(&ir.BinaryExpr{})
	gob.Register(&ir.UnaryExpr{})
	gob.Register(&ir.CallExpr{})
	gob.Register(&ir.FieldExpr{})
	gob.Register(&ir.IndexExpr{})
	gob.Register(&ir.TupleExpr{})
	gob.Register(&ir.ArrayExpr{})
	gob.Register(&ir.DictExpr{})
	gob.Register(&ir.SetExpr{})
	gob.Register(&ir.NamedTupleExpr{})
	gob.Register(&ir.RangeExpr{})
	gob.Register(&ir.ComprehensionExpr{})
	gob.Register(&ir.LambdaExpr{})
	gob.Register(&ir.TernaryExpr{})
	gob.Register(&ir.QuoteExpr{})
	gob.Register(&ir.SymbolExpr{})
	gob.Register(&ir.InterpolationExpr{})
	gob.Register(&ir.BroadcastExpr{})
	gob.Register(&ir.LetStmt{})
	gob.Register(&ir.AssignStmt{})
	gob.Register(&ir.CompoundAssignStmt{})
	gob.Register(&ir.ExprStmt{})
	gob.Register(&ir.ReturnStmt{})
	gob.Register(&ir.IfStmt{})
	gob.Register(&ir.WhileStmt{})
	gob.Register(&ir.ForRangeStmt{})
	gob.Register(&ir.ForEachStmt{})
	gob.Register(&ir.BreakStmt{})
	gob.Register(&ir.ContinueStmt{})
	gob.Register(&ir.TryStmt{})
	gob.Register(&ir.BlockStmt{})
	gob.Register(ir.VarLValue{})
	gob.Register(ir.FieldLValue{})
	gob.Register(ir.IndexLValue{})
}

// Save writes the Magic/Version/length-prefixed-gob-body file format of
// spec.md §6.2. Round-trip identity (Load(Save(p)) == p) is the tested invariant.
func Save(w io.Writer, cp *CompiledProgram) error {
	var body bytes.Buffer
	enc := gob.NewEncoder(&body)
	if err := enc.Encode(cp); err != nil {
		return fmt.Errorf("bytecode: encode: %w", err)
	}
	if _, err := w.Write([]byte(Magic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, Version); err != nil {
		return err
	}
	length := uint64(body.Len())
	if err := binary.Write(w, binary.LittleEndian, length); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

// Load reads and validates the file format, returning ErrBadMagic or
// ErrVersionMismatch for the two documented failure modes.
func Load(r io.Reader) (*CompiledProgram, error) {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, ErrBadMagic
	}
	if string(magic) != Magic {
		return nil, ErrBadMagic
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, ErrVersionMismatch
	}
	if version != Version {
		return nil, ErrVersionMismatch
	}
	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, fmt.Errorf("bytecode: truncated body length: %w", err)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("bytecode: truncated body: %w", err)
	}
	var cp CompiledProgram
	dec := gob.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&cp); err != nil {
		return nil, fmt.Errorf("bytecode: decode: %w", err)
	}
	return &cp, nil
}
