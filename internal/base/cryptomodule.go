package base

import (
	"fmt"

	"vela/internal/cryptoanalysis"
	"vela/internal/vm"
)

var cryptoModule = cryptoanalysis.NewModule()

func init() {
	vm.RegisterBuiltin("Crypto.sha256", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		data, err := singleBytes("Crypto.sha256", args)
		if err != nil {
			return nil, err
		}
		return cryptoModule.HashSHA256(data), nil
	})

	vm.RegisterBuiltin("Crypto.encryptAES", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		data, key, err := twoBytes("Crypto.encryptAES", args)
		if err != nil {
			return nil, err
		}
		return cryptoModule.EncryptAES(data, key)
	})

	vm.RegisterBuiltin("Crypto.decryptAES", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		ciphertext, key, err := twoBytes("Crypto.decryptAES", args)
		if err != nil {
			return nil, err
		}
		return cryptoModule.DecryptAES(ciphertext, key)
	})

	vm.RegisterBuiltin("Crypto.encryptChaCha20Poly1305", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		data, key, err := twoBytes("Crypto.encryptChaCha20Poly1305", args)
		if err != nil {
			return nil, err
		}
		return cryptoModule.EncryptChaCha20Poly1305(data, key)
	})

	vm.RegisterBuiltin("Crypto.decryptChaCha20Poly1305", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		ciphertext, key, err := twoBytes("Crypto.decryptChaCha20Poly1305", args)
		if err != nil {
			return nil, err
		}
		return cryptoModule.DecryptChaCha20Poly1305(ciphertext, key)
	})

	vm.RegisterBuiltin("Crypto.generateKey", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		bits, err := singleInt("Crypto.generateKey", args)
		if err != nil {
			return nil, err
		}
		return cryptoModule.GenerateSecureKey(int(bits))
	})

	vm.RegisterBuiltin("Crypto.generateEd25519KeyPair", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		pub, priv, err := cryptoModule.GenerateEd25519KeyPair()
		if err != nil {
			return nil, err
		}
		return map[string]vm.Value{"public": []byte(pub), "private": []byte(priv)}, nil
	})

	vm.RegisterBuiltin("Crypto.signEd25519", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		priv, message, err := twoBytes("Crypto.signEd25519", args)
		if err != nil {
			return nil, err
		}
		return cryptoModule.SignEd25519(priv, message), nil
	})

	vm.RegisterBuiltin("Crypto.verifyEd25519", func(_ *vm.VM, args []vm.Value) (vm.Value, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("Crypto.verifyEd25519: expected (publicKey, message, signature)")
		}
		pub, ok1 := args[0].([]byte)
		message, ok2 := args[1].([]byte)
		sig, ok3 := args[2].([]byte)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("Crypto.verifyEd25519: all arguments must be byte strings")
		}
		return cryptoModule.VerifyEd25519(pub, message, sig), nil
	})
}

func singleBytes(name string, args []vm.Value) ([]byte, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s: expected 1 argument", name)
	}
	return asBytes(name, args[0])
}

func twoBytes(name string, args []vm.Value) ([]byte, []byte, error) {
	if len(args) != 2 {
		return nil, nil, fmt.Errorf("%s: expected 2 arguments", name)
	}
	a, err := asBytes(name, args[0])
	if err != nil {
		return nil, nil, err
	}
	b, err := asBytes(name, args[1])
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func asBytes(name string, v vm.Value) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, fmt.Errorf("%s: expected bytes or a string, got %T", name, v)
	}
}

func singleInt(name string, args []vm.Value) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%s: expected 1 argument", name)
	}
	return asInt64(args[0])
}
