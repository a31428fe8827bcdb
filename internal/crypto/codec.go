package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
)

// ErrEncryption is returned for any codec failure: missing or mismatched
// key, corrupt ciphertext, or a failed authentication tag. Callers must
// treat it as fatal for the operation in flight.
var ErrEncryption = errors.New("encryption failure")

// Mode selects how a field is encrypted.
type Mode int

const (
	// Probabilistic produces a different ciphertext on every call (fresh
	// random nonce). Default for all PII that is never searched by equality.
	Probabilistic Mode = iota

	// Deterministic produces identical ciphertext for identical plaintext,
	// enabling equality lookup without decrypting every row. This leaks
	// equality patterns and must only be used for high-cardinality lookup
	// keys such as account handles.
	Deterministic
)

// Codec performs field-level AES-256-GCM encryption. The two modes use
// independent subkeys derived from one root key, so a deterministic
// ciphertext can never collide with a probabilistic one.
type Codec struct {
	probKey []byte
	detKey  []byte
	macKey  []byte // synthetic-nonce HMAC key for deterministic mode
}

// NewCodec derives the codec subkeys from a 32-byte root key using
// HKDF-SHA256. The root key is not retained.
func NewCodec(rootKey []byte) (*Codec, error) {
	if len(rootKey) != 32 {
		return nil, fmt.Errorf("%w: root key must be 32 bytes", ErrEncryption)
	}
	c := &Codec{}
	for _, sub := range []struct {
		context string
		dst     *[]byte
	}{
		{"fleetadmin-field-probabilistic-v1", &c.probKey},
		{"fleetadmin-field-deterministic-v1", &c.detKey},
		{"fleetadmin-nonce-mac-v1", &c.macKey},
	} {
		key := make([]byte, 32)
		r := hkdf.New(sha256.New, rootKey, nil, []byte(sub.context))
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, fmt.Errorf("%w: deriving subkey: %v", ErrEncryption, err)
		}
		*sub.dst = key
	}
	return c, nil
}

// Encrypt encrypts plaintext in the given mode. The returned ciphertext is
// nonce-prefixed and self-contained.
func (c *Codec) Encrypt(plaintext []byte, mode Mode) ([]byte, error) {
	gcm, err := c.aead(mode)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	switch mode {
	case Probabilistic:
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return nil, fmt.Errorf("%w: generating nonce: %v", ErrEncryption, err)
		}
	case Deterministic:
		mac := hmac.New(sha256.New, c.macKey)
		mac.Write(plaintext)
		copy(nonce, mac.Sum(nil))
	default:
		return nil, fmt.Errorf("%w: unknown mode %d", ErrEncryption, mode)
	}
	out := make([]byte, len(nonce))
	copy(out, nonce)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt for ciphertext produced in the same mode under
// the same root key. It never returns partial plaintext on failure.
func (c *Codec) Decrypt(ciphertext []byte, mode Mode) ([]byte, error) {
	gcm, err := c.aead(mode)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrEncryption)
	}
	nonce := ciphertext[:gcm.NonceSize()]
	plaintext, err := gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryption, err)
	}
	return plaintext, nil
}

// EncryptString is Encrypt over a string plaintext.
func (c *Codec) EncryptString(plaintext string, mode Mode) ([]byte, error) {
	return c.Encrypt([]byte(plaintext), mode)
}

// DecryptString is Decrypt returning a string.
func (c *Codec) DecryptString(ciphertext []byte, mode Mode) (string, error) {
	b, err := c.Decrypt(ciphertext, mode)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Equal reports whether two ciphertexts are byte-identical. Only meaningful
// for deterministic-mode values.
func Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}

func (c *Codec) aead(mode Mode) (cipher.AEAD, error) {
	var key []byte
	switch mode {
	case Probabilistic:
		key = c.probKey
	case Deterministic:
		key = c.detKey
	default:
		return nil, fmt.Errorf("%w: unknown mode %d", ErrEncryption, mode)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: creating AES cipher: %v", ErrEncryption, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: creating GCM: %v", ErrEncryption, err)
	}
	return gcm, nil
}

// GenerateRootKey generates a 32-byte cryptographically secure random root key.
func GenerateRootKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generating root key: %w", err)
	}
	return key, nil
}

// LoadRootKey reads a base64-encoded 32-byte root key from a key file.
func LoadRootKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	key, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding key file: %v", ErrEncryption, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%w: key file must hold 32 bytes, got %d", ErrEncryption, len(key))
	}
	return key, nil
}

// WriteRootKey writes a root key to path, base64-encoded, owner-readable only.
func WriteRootKey(path string, key []byte) error {
	encoded := base64.StdEncoding.EncodeToString(key)
	return os.WriteFile(path, []byte(encoded+"\n"), 0600)
}
