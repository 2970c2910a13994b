// Package base wires Vela's domain Base modules (database, network, crypto,
// time) into the VM's builtin registry (vm.RegisterBuiltin), the same
// registration-at-init pattern the teacher uses to attach its module
// builtins without internal/vm importing any of them directly.
package base

import (
	"fmt"
	"time"

	"github.com/ncruces/go-strftime"

	"vela/internal/vm"
)

func init() {
	vm.RegisterBuiltin("Time.now", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		return time.Now().Unix(), nil
	})

	vm.RegisterBuiltin("Time.strftime", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("Time.strftime: expected (format, epochSeconds)")
		}
		format, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("Time.strftime: format must be a string")
		}
		epoch, err := asInt64(args[1])
		if err != nil {
			return nil, fmt.Errorf("Time.strftime: %w", err)
		}
		t := time.Unix(epoch, 0).UTC()
		return strftime.Format(format, t), nil
	})
}

func asInt64(v vm.Value) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
