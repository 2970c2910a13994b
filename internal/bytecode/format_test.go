package bytecode

import (
	"bytes"
	"testing"
)

func buildSampleProgram() *CompiledProgram {
	cp := NewCompiledProgram()
	chunk := NewChunk()
	c0 := chunk.AddConstant(int64(42))
	chunk.Emit(OpConstant, c0, 0, 0, DebugInfo{Line: 1, File: "main"})
	chunk.Emit(OpReturnI64, 0, 0, 0, DebugInfo{Line: 1})
	cp.AppendFunction(FunctionInfo{
		Name:       "answer",
		Params:     []ParamSlot{{Name: "x", SlotType: "Int64"}},
		ReturnType: "Int64",
		SlotNames:  []string{"x"},
	}, chunk)
	cp.Structs = append(cp.Structs, StructInfo{
		Name:   "Point",
		Fields: []StructFieldInfo{{Name: "x", Type: "Float64"}, {Name: "y", Type: "Float64"}},
	})
	cp.ShowMethods["Point"] = 0
	cp.GlobalSlots = []string{"counter"}
	cp.DispatchGroups = append(cp.DispatchGroups, []int{0})
	cp.MainEntry = 0
	return cp
}

// TestBytecodeRoundTrip covers spec.md §6.2/§8's "saving and loading a Program
// is the identity modulo encoding" invariant.
func TestBytecodeRoundTrip(t *testing.T) {
	original := buildSampleProgram()

	var buf bytes.Buffer
	if err := Save(&buf, original); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(loaded.Code) != len(original.Code) {
		t.Fatalf("Code length mismatch: got %d, want %d", len(loaded.Code), len(original.Code))
	}
	for i := range original.Code {
		if loaded.Code[i].Op != original.Code[i].Op || loaded.Code[i].A != original.Code[i].A {
			t.Errorf("instruction %d mismatch: got %+v, want %+v", i, loaded.Code[i], original.Code[i])
		}
	}
	if len(loaded.Functions) != 1 || loaded.Functions[0].Name != "answer" {
		t.Fatalf("function info did not round-trip: %+v", loaded.Functions)
	}
	if loaded.Functions[0].ReturnType != "Int64" {
		t.Errorf("return type mismatch: got %q", loaded.Functions[0].ReturnType)
	}
	if len(loaded.Structs) != 1 || loaded.Structs[0].Name != "Point" {
		t.Fatalf("struct table did not round-trip: %+v", loaded.Structs)
	}
	if loaded.ShowMethods["Point"] != 0 {
		t.Errorf("ShowMethods did not round-trip: %v", loaded.ShowMethods)
	}
	if len(loaded.GlobalSlots) != 1 || loaded.GlobalSlots[0] != "counter" {
		t.Errorf("GlobalSlots did not round-trip: %v", loaded.GlobalSlots)
	}
	if len(loaded.DispatchGroups) != 1 || len(loaded.DispatchGroups[0]) != 1 || loaded.DispatchGroups[0][0] != 0 {
		t.Errorf("DispatchGroups did not round-trip: %v", loaded.DispatchGroups)
	}
}

func TestBytecodeBadMagic(t *testing.T) {
	buf := bytes.NewBufferString("NOPE + padding to be long enough")
	if _, err := Load(buf); err != ErrBadMagic {
		t.Errorf("Load with bad magic: got %v, want ErrBadMagic", err)
	}
}

func TestBytecodeVersionMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := Save(&buf, buildSampleProgram()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw := buf.Bytes()
	// Version is the 4 bytes immediately after the magic, little-endian.
	corrupted := append([]byte{}, raw...)
	corrupted[len(Magic)] = 0xFF
	if _, err := Load(bytes.NewReader(corrupted)); err != ErrVersionMismatch {
		t.Errorf("Load with mismatched version: got %v, want ErrVersionMismatch", err)
	}
}
