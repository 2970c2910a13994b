package base

import (
	"fmt"

	"vela/internal/database"
	"vela/internal/vm"
)

var dbModule = database.NewModule()

func init() {
	vm.RegisterBuiltin("Database.connect", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		id, driver, dsn, err := threeStrings("Database.connect", args)
		if err != nil {
			return nil, err
		}
		if err := dbModule.Connect(id, driver, dsn); err != nil {
			return nil, err
		}
		return id, nil
	})

	vm.RegisterBuiltin("Database.query", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("Database.query: expected (id, query, ...args)")
		}
		id, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("Database.query: id must be a string")
		}
		query, ok := args[1].(string)
		if !ok {
			return nil, fmt.Errorf("Database.query: query must be a string")
		}
		queryArgs := make([]interface{}, len(args)-2)
		for i, a := range args[2:] {
			queryArgs[i] = a
		}
		rows, err := dbModule.Query(id, query, queryArgs...)
		if err != nil {
			return nil, err
		}
		out := make([]vm.Value, len(rows))
		for i, row := range rows {
			m := make(map[string]vm.Value, len(row))
			for k, v := range row {
				m[k] = v
			}
			out[i] = m
		}
		return out, nil
	})

	vm.RegisterBuiltin("Database.close", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		id, ok := singleString(args)
		if !ok {
			return nil, fmt.Errorf("Database.close: expected (id)")
		}
		return nil, dbModule.Close(id)
	})
}

func threeStrings(name string, args []vm.Value) (string, string, string, error) {
	if len(args) != 3 {
		return "", "", "", fmt.Errorf("%s: expected 3 string arguments", name)
	}
	out := make([]string, 3)
	for i, a := range args {
		s, ok := a.(string)
		if !ok {
			return "", "", "", fmt.Errorf("%s: argument %d must be a string", name, i+1)
		}
		out[i] = s
	}
	return out[0], out[1], out[2], nil
}

func singleString(args []vm.Value) (string, bool) {
	if len(args) != 1 {
		return "", false
	}
	s, ok := args[0].(string)
	return s, ok
}

func twoStrings(name string, args []vm.Value) (string, string, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("%s: expected 2 string arguments", name)
	}
	a, ok1 := args[0].(string)
	b, ok2 := args[1].(string)
	if !ok1 || !ok2 {
		return "", "", fmt.Errorf("%s: arguments must be strings", name)
	}
	return a, b, nil
}
