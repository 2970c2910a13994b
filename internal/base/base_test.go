package base

import (
	"testing"

	"vela/internal/bytecode"
	"vela/internal/vm"
)

func newTestVM() *vm.VM {
	return vm.New(bytecode.NewCompiledProgram())
}

func TestCryptoBuiltinsRegistered(t *testing.T) {
	machine := newTestVM()
	sum, err := machine.CallBuiltin("Crypto.sha256", []vm.Value{"hello"})
	if err != nil {
		t.Fatalf("Crypto.sha256: %v", err)
	}
	digest, ok := sum.([]byte)
	if !ok || len(digest) != 32 {
		t.Fatalf("expected a 32-byte digest, got %#v", sum)
	}
}

func TestTimeStrftimeRegistered(t *testing.T) {
	machine := newTestVM()
	out, err := machine.CallBuiltin("Time.strftime", []vm.Value{"%Y-%m-%d", int64(0)})
	if err != nil {
		t.Fatalf("Time.strftime: %v", err)
	}
	if out != "1970-01-01" {
		t.Fatalf("got %v", out)
	}
}

func TestDatabaseBuiltinsRoundTrip(t *testing.T) {
	machine := newTestVM()
	if _, err := machine.CallBuiltin("Database.connect", []vm.Value{"b1", "sqlite", "file::memory:?cache=shared"}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := machine.CallBuiltin("Database.query", []vm.Value{"b1", "SELECT 1 AS one"}); err != nil {
		t.Fatalf("query: %v", err)
	}
	if _, err := machine.CallBuiltin("Database.close", []vm.Value{"b1"}); err != nil {
		t.Fatalf("close: %v", err)
	}
}
