package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/Natifishman/MessageU/pkg/protocol"
)

func TestGenerateRSAWireSize(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping key generation in short mode")
	}

	private, err := GenerateRSA()
	if err != nil {
		t.Fatalf("GenerateRSA() error = %v", err)
	}

	pub, err := private.PublicBytes()
	if err != nil {
		t.Fatalf("PublicBytes() error = %v", err)
	}
	if len(pub) != protocol.PublicKeySize {
		t.Errorf("public key wire size = %d, want %d", len(pub), protocol.PublicKeySize)
	}
}

func TestRSARoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping key generation in short mode")
	}

	private, err := GenerateRSA()
	if err != nil {
		t.Fatal(err)
	}
	pubBytes, err := private.PublicBytes()
	if err != nil {
		t.Fatal(err)
	}
	public, err := ParsePublicKey(pubBytes)
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}

	// 16 bytes is the symmetric-key case; MaxOAEPPlaintext is the
	// 1024-bit OAEP-SHA1 ceiling.
	for _, size := range []int{1, 16, MaxOAEPPlaintext} {
		plain := make([]byte, size)
		rand.Read(plain)

		cipher, err := public.Encrypt(plain)
		if err != nil {
			t.Fatalf("Encrypt(%d bytes) error = %v", size, err)
		}
		if len(cipher) != 128 {
			t.Errorf("ciphertext length = %d, want 128", len(cipher))
		}

		got, err := private.Decrypt(cipher)
		if err != nil {
			t.Fatalf("Decrypt(%d bytes) error = %v", size, err)
		}
		if !bytes.Equal(got, plain) {
			t.Errorf("round trip mismatch at size %d", size)
		}
	}
}

func TestRSAEncryptOversize(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping key generation in short mode")
	}

	private, err := GenerateRSA()
	if err != nil {
		t.Fatal(err)
	}
	pubBytes, _ := private.PublicBytes()
	public, _ := ParsePublicKey(pubBytes)

	if _, err := public.Encrypt(make([]byte, MaxOAEPPlaintext+1)); err != ErrCryptoEncrypt {
		t.Errorf("Encrypt(oversize) error = %v, want ErrCryptoEncrypt", err)
	}
}

func TestPrivateKeySerialization(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping key generation in short mode")
	}

	private, err := GenerateRSA()
	if err != nil {
		t.Fatal(err)
	}

	der, err := private.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	restored, err := ParsePrivateKey(der)
	if err != nil {
		t.Fatalf("ParsePrivateKey() error = %v", err)
	}

	// The restored key must decrypt what the original public key sealed
	pubBytes, _ := private.PublicBytes()
	public, _ := ParsePublicKey(pubBytes)

	plain := []byte("serialized and back")
	cipher, err := public.Encrypt(plain)
	if err != nil {
		t.Fatal(err)
	}
	got, err := restored.Decrypt(cipher)
	if err != nil {
		t.Fatalf("Decrypt() with restored key error = %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Error("round trip through serialization mismatch")
	}
}

func TestParsePublicKeyRejectsBadInput(t *testing.T) {
	if _, err := ParsePublicKey(make([]byte, 10)); err != ErrBadKeyLength {
		t.Errorf("ParsePublicKey(short) error = %v, want ErrBadKeyLength", err)
	}
	if _, err := ParsePublicKey(make([]byte, protocol.PublicKeySize)); err != ErrCryptoInit {
		t.Errorf("ParsePublicKey(garbage) error = %v, want ErrCryptoInit", err)
	}
}

func TestParsePrivateKeyRejectsGarbage(t *testing.T) {
	if _, err := ParsePrivateKey([]byte("not a key")); err != ErrCryptoInit {
		t.Errorf("ParsePrivateKey(garbage) error = %v, want ErrCryptoInit", err)
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping key generation in short mode")
	}

	private, err := GenerateRSA()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := private.Decrypt(make([]byte, 128)); err != ErrCryptoDecrypt {
		t.Errorf("Decrypt(garbage) error = %v, want ErrCryptoDecrypt", err)
	}
}
