package crypto

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	key, err := GenerateRootKey()
	if err != nil {
		t.Fatalf("generating root key: %v", err)
	}
	c, err := NewCodec(key)
	if err != nil {
		t.Fatalf("creating codec: %v", err)
	}
	return c
}

func TestRoundTripBothModes(t *testing.T) {
	c := testCodec(t)
	plaintexts := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("super_admin"),
		[]byte("some longer free-form audit detail with unicode: Rotterdam ✓"),
		bytes.Repeat([]byte{0x00, 0xff}, 512),
	}
	for _, mode := range []Mode{Probabilistic, Deterministic} {
		for _, p := range plaintexts {
			ct, err := c.Encrypt(p, mode)
			if err != nil {
				t.Fatalf("mode=%d encrypt(%q): %v", mode, p, err)
			}
			got, err := c.Decrypt(ct, mode)
			if err != nil {
				t.Fatalf("mode=%d decrypt: %v", mode, err)
			}
			if !bytes.Equal(got, p) {
				t.Errorf("mode=%d round trip mismatch: got %q want %q", mode, got, p)
			}
		}
	}
}

func TestDeterministicStability(t *testing.T) {
	c := testCodec(t)
	a, err := c.EncryptString("system_admin_1", Deterministic)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.EncryptString("system_admin_1", Deterministic)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(a, b) {
		t.Error("deterministic mode produced differing ciphertexts for equal input")
	}
	other, err := c.EncryptString("system_admin_2", Deterministic)
	if err != nil {
		t.Fatal(err)
	}
	if Equal(a, other) {
		t.Error("deterministic ciphertexts collided for different inputs")
	}
}

func TestProbabilisticVariance(t *testing.T) {
	c := testCodec(t)
	a, err := c.EncryptString("same input", Probabilistic)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.EncryptString("same input", Probabilistic)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Error("probabilistic mode repeated a ciphertext")
	}
}

func TestModesUseIndependentKeys(t *testing.T) {
	c := testCodec(t)
	ct, err := c.EncryptString("handle", Deterministic)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Decrypt(ct, Probabilistic); !errors.Is(err, ErrEncryption) {
		t.Errorf("cross-mode decrypt: got %v, want ErrEncryption", err)
	}
}

func TestWrongKeyFails(t *testing.T) {
	c1 := testCodec(t)
	c2 := testCodec(t)
	ct, err := c1.EncryptString("secret", Probabilistic)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c2.Decrypt(ct, Probabilistic); !errors.Is(err, ErrEncryption) {
		t.Errorf("foreign-key decrypt: got %v, want ErrEncryption", err)
	}
}

func TestCorruptCiphertextFails(t *testing.T) {
	c := testCodec(t)
	ct, err := c.EncryptString("payload", Probabilistic)
	if err != nil {
		t.Fatal(err)
	}
	ct[len(ct)-1] ^= 0x01
	if _, err := c.Decrypt(ct, Probabilistic); !errors.Is(err, ErrEncryption) {
		t.Errorf("corrupt decrypt: got %v, want ErrEncryption", err)
	}
	if _, err := c.Decrypt([]byte{0x01, 0x02}, Probabilistic); !errors.Is(err, ErrEncryption) {
		t.Errorf("short decrypt: got %v, want ErrEncryption", err)
	}
}

func TestKeyFileRoundTrip(t *testing.T) {
	key, err := GenerateRootKey()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "fleet.key")
	if err := WriteRootKey(path, key); err != nil {
		t.Fatalf("writing key: %v", err)
	}
	got, err := LoadRootKey(path)
	if err != nil {
		t.Fatalf("loading key: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Error("key file round trip mismatch")
	}
	if _, err := LoadRootKey(filepath.Join(t.TempDir(), "missing.key")); err == nil {
		t.Error("expected error for missing key file")
	}
}
