// Package crypto wraps the asymmetric and symmetric primitives the relay
// protocol fixes: RSA-1024 with OAEP-SHA1 for key exchange and
// AES-128-CBC for message bodies. The parameters are protocol-level
// choices kept for wire compatibility with deployed counterparts.
package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"errors"
	"math/big"

	"github.com/Natifishman/MessageU/pkg/protocol"
)

var (
	ErrCryptoInit    = errors.New("crypto init failed")
	ErrCryptoEncrypt = errors.New("encryption failed")
	ErrCryptoDecrypt = errors.New("decryption failed")
	ErrBadKeyLength  = errors.New("bad key length")
)

const (
	rsaBits = 1024

	// publicExponent matches the deployed peers' key generator. With
	// e=17 the DER SubjectPublicKeyInfo of an RSA-1024 key is exactly
	// protocol.PublicKeySize bytes; the usual 65537 produces 162.
	publicExponent = 17

	// MaxOAEPPlaintext is the largest plaintext a 1024-bit OAEP-SHA1
	// encryption can carry.
	MaxOAEPPlaintext = rsaBits/8 - 2*sha1.Size - 2
)

// PrivateKey wraps an RSA private key together with the serialization the
// identity store persists.
type PrivateKey struct {
	key *rsa.PrivateKey
}

// GenerateRSA produces a fresh RSA-1024 keypair with the protocol's
// public exponent. The standard library generator hardcodes e=65537, so
// the primes and CRT values are assembled here.
func GenerateRSA() (*PrivateKey, error) {
	e := big.NewInt(publicExponent)
	one := big.NewInt(1)

	for {
		p, err := rand.Prime(rand.Reader, rsaBits/2)
		if err != nil {
			return nil, ErrCryptoInit
		}
		q, err := rand.Prime(rand.Reader, rsaBits/2)
		if err != nil {
			return nil, ErrCryptoInit
		}
		if p.Cmp(q) == 0 {
			continue
		}

		n := new(big.Int).Mul(p, q)
		if n.BitLen() != rsaBits {
			continue
		}

		pminus := new(big.Int).Sub(p, one)
		qminus := new(big.Int).Sub(q, one)
		totient := new(big.Int).Mul(pminus, qminus)

		d := new(big.Int).ModInverse(e, totient)
		if d == nil {
			// e divides p-1 or q-1; pick new primes
			continue
		}

		key := &rsa.PrivateKey{
			PublicKey: rsa.PublicKey{N: n, E: publicExponent},
			D:         d,
			Primes:    []*big.Int{p, q},
		}
		key.Precompute()
		if err := key.Validate(); err != nil {
			continue
		}

		return &PrivateKey{key: key}, nil
	}
}

// ParsePrivateKey reconstructs a private key from its PKCS#8 bytes as
// stored in the identity file.
func ParsePrivateKey(der []byte) (*PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, ErrCryptoInit
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrCryptoInit
	}
	return &PrivateKey{key: key}, nil
}

// Bytes serializes the private key to PKCS#8
func (p *PrivateKey) Bytes() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(p.key)
	if err != nil {
		return nil, ErrCryptoInit
	}
	return der, nil
}

// PublicBytes serializes the public half to the 160-byte DER
// SubjectPublicKeyInfo the wire format fixes.
func (p *PrivateKey) PublicBytes() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(&p.key.PublicKey)
	if err != nil {
		return nil, ErrCryptoInit
	}
	if len(der) != protocol.PublicKeySize {
		return nil, ErrBadKeyLength
	}
	return der, nil
}

// Decrypt decrypts an OAEP-SHA1 ciphertext with the private key
func (p *PrivateKey) Decrypt(ciphertext []byte) ([]byte, error) {
	plain, err := rsa.DecryptOAEP(sha1.New(), nil, p.key, ciphertext, nil)
	if err != nil {
		return nil, ErrCryptoDecrypt
	}
	return plain, nil
}

// PublicKey wraps a peer's RSA public key received off the wire
type PublicKey struct {
	key *rsa.PublicKey
}

// ParsePublicKey reconstructs a public key from its 160 wire bytes
func ParsePublicKey(der []byte) (*PublicKey, error) {
	if len(der) != protocol.PublicKeySize {
		return nil, ErrBadKeyLength
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, ErrCryptoInit
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, ErrCryptoInit
	}
	return &PublicKey{key: key}, nil
}

// Encrypt encrypts a plaintext of at most MaxOAEPPlaintext bytes with
// OAEP-SHA1.
func (k *PublicKey) Encrypt(plaintext []byte) ([]byte, error) {
	cipher, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, k.key, plaintext, nil)
	if err != nil {
		return nil, ErrCryptoEncrypt
	}
	return cipher, nil
}
