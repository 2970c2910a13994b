package base

import (
	"bytes"
	"testing"

	"vela/internal/bytecode"
)

func TestCacheRoundTrip(t *testing.T) {
	cp := bytecode.NewCompiledProgram()
	cp.AppendFunction(bytecode.FunctionInfo{Name: "main"}, bytecode.NewChunk())

	var buf bytes.Buffer
	source := "fn main() {}"
	if err := SaveCache(&buf, source, cp); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadCache(&buf, source)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Functions) != 1 || loaded.Functions[0].Name != "main" {
		t.Fatalf("got %+v", loaded.Functions)
	}
}

func TestCacheRejectsStaleHash(t *testing.T) {
	cp := bytecode.NewCompiledProgram()
	var buf bytes.Buffer
	if err := SaveCache(&buf, "fn main() {}", cp); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := LoadCache(&buf, "fn main() { changed }"); err == nil {
		t.Fatal("expected a hash-mismatch error")
	}
}
