package base

import (
	"fmt"

	"vela/internal/network"
	"vela/internal/vm"
)

var netModule = network.NewModule()

func init() {
	vm.RegisterBuiltin("Net.httpGet", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		url, ok := singleString(args)
		if !ok {
			return nil, fmt.Errorf("Net.httpGet: expected (url)")
		}
		body, status, err := netModule.HTTPGet(url)
		if err != nil {
			return nil, err
		}
		return map[string]vm.Value{"body": body, "status": int64(status)}, nil
	})

	vm.RegisterBuiltin("Net.httpPost", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("Net.httpPost: expected (url, contentType, body)")
		}
		url, ok1 := args[0].(string)
		contentType, ok2 := args[1].(string)
		body, ok3 := args[2].(string)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("Net.httpPost: all arguments must be strings")
		}
		respBody, status, err := netModule.HTTPPost(url, contentType, body)
		if err != nil {
			return nil, err
		}
		return map[string]vm.Value{"body": respBody, "status": int64(status)}, nil
	})

	vm.RegisterBuiltin("Net.wsConnect", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		id, url, err := twoStrings("Net.wsConnect", args)
		if err != nil {
			return nil, err
		}
		if connErr := netModule.WSConnect(id, url); connErr != nil {
			return nil, connErr
		}
		return id, nil
	})

	vm.RegisterBuiltin("Net.wsSend", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		id, message, err := twoStrings("Net.wsSend", args)
		if err != nil {
			return nil, err
		}
		return nil, netModule.WSSend(id, message)
	})

	vm.RegisterBuiltin("Net.wsClose", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		id, ok := singleString(args)
		if !ok {
			return nil, fmt.Errorf("Net.wsClose: expected (id)")
		}
		return nil, netModule.WSClose(id)
	})
}
