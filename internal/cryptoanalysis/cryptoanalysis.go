// Package cryptoanalysis backs Vela's Base `Crypto` module. It is adapted
// from the teacher's internal/cryptoanalysis.CryptoAnalysisModule, a
// TLS/certificate security scanner; a scientific-computing Base library has
// no use for its certificate/TLS/weakness-analysis methods, so only the
// primitive operations (hash, AEAD encrypt/decrypt, key generation) survive,
// generalized to also cover Ed25519 signing and ChaCha20-Poly1305 AEAD.
package cryptoanalysis

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"io"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/ed25519"
)

// Module is the stateless primitive-crypto toolbox exposed to Base code.
// Unlike the teacher's module it keeps no result history: callers get a
// value back or an error, nothing is accumulated under a mutex.
type Module struct{}

func NewModule() *Module {
	return &Module{}
}

// HashSHA256 computes the SHA-256 digest of data.
func (m *Module) HashSHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// EncryptAES seals data with AES-GCM under key, prefixing the nonce to the
// returned ciphertext.
func (m *Module) EncryptAES(data, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoanalysis: aes key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptoanalysis: gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptoanalysis: nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

// DecryptAES reverses EncryptAES.
func (m *Module) DecryptAES(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoanalysis: aes key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptoanalysis: gcm: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("cryptoanalysis: ciphertext too short")
	}
	nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptoanalysis: open: %w", err)
	}
	return plaintext, nil
}

// EncryptChaCha20Poly1305 seals data with ChaCha20-Poly1305 under key (must
// be chacha20poly1305.KeySize bytes), prefixing the nonce to the output.
func (m *Module) EncryptChaCha20Poly1305(data, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoanalysis: chacha20poly1305 key: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptoanalysis: nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, data, nil), nil
}

// DecryptChaCha20Poly1305 reverses EncryptChaCha20Poly1305.
func (m *Module) DecryptChaCha20Poly1305(ciphertext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoanalysis: chacha20poly1305 key: %w", err)
	}
	nonceSize := aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("cryptoanalysis: ciphertext too short")
	}
	nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptoanalysis: open: %w", err)
	}
	return plaintext, nil
}

// GenerateSecureKey returns keySize/8 bytes of crypto/rand output, for use as
// an AES or ChaCha20-Poly1305 key.
func (m *Module) GenerateSecureKey(keySize int) ([]byte, error) {
	key := make([]byte, keySize/8)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("cryptoanalysis: random key: %w", err)
	}
	return key, nil
}

// GenerateRSAKeyPair generates an RSA key of the given bit size.
func (m *Module) GenerateRSAKeyPair(bits int) (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("cryptoanalysis: rsa keygen: %w", err)
	}
	return key, nil
}

// GenerateEd25519KeyPair generates an Ed25519 signing key pair.
func (m *Module) GenerateEd25519KeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("cryptoanalysis: ed25519 keygen: %w", err)
	}
	return pub, priv, nil
}

// SignEd25519 signs message with priv.
func (m *Module) SignEd25519(priv ed25519.PrivateKey, message []byte) []byte {
	return ed25519.Sign(priv, message)
}

// VerifyEd25519 reports whether sig is a valid Ed25519 signature of message
// under pub. A malformed point on the curve is treated as verification
// failure rather than a panic, exercising edwards25519's point decoder the
// way the Ed25519 reference implementation does internally.
func (m *Module) VerifyEd25519(pub ed25519.PublicKey, message, sig []byte) bool {
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return false
	}
	return ed25519.Verify(pub, message, sig)
}
