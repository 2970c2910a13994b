package cryptoanalysis

import "testing"

func TestHashSHA256(t *testing.T) {
	m := NewModule()
	sum := m.HashSHA256([]byte("hello"))
	if len(sum) != 32 {
		t.Fatalf("expected a 32-byte digest, got %d bytes", len(sum))
	}
}

func TestAESRoundTrip(t *testing.T) {
	m := NewModule()
	key, err := m.GenerateSecureKey(256)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	plaintext := []byte("attack at dawn")
	ciphertext, err := m.EncryptAES(plaintext, key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := m.DecryptAES(ciphertext, key)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("got %q, want %q", got, plaintext)
	}
}

func TestAESDecryptShortCiphertext(t *testing.T) {
	m := NewModule()
	key, _ := m.GenerateSecureKey(128)
	if _, err := m.DecryptAES([]byte("x"), key); err == nil {
		t.Fatal("expected an error for a too-short ciphertext")
	}
}

func TestChaCha20Poly1305RoundTrip(t *testing.T) {
	m := NewModule()
	key, err := m.GenerateSecureKey(256)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	plaintext := []byte("the eagle lands at midnight")
	ciphertext, err := m.EncryptChaCha20Poly1305(plaintext, key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := m.DecryptChaCha20Poly1305(ciphertext, key)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("got %q, want %q", got, plaintext)
	}
}

func TestEd25519SignVerify(t *testing.T) {
	m := NewModule()
	pub, priv, err := m.GenerateEd25519KeyPair()
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	message := []byte("vela")
	sig := m.SignEd25519(priv, message)
	if !m.VerifyEd25519(pub, message, sig) {
		t.Fatal("expected signature to verify")
	}
	if m.VerifyEd25519(pub, []byte("tampered"), sig) {
		t.Fatal("expected signature over a different message to fail")
	}
}

func TestVerifyEd25519RejectsMalformedKey(t *testing.T) {
	m := NewModule()
	if m.VerifyEd25519([]byte{0x01, 0x02}, []byte("msg"), []byte("sig")) {
		t.Fatal("expected a malformed public key to fail verification")
	}
}
