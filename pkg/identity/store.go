// Package identity persists the local client identity: display name,
// server-assigned 16-byte identifier and the RSA private key.
package identity

import (
	"bufio"
	"encoding/base64"
	"errors"
	"os"
	"strings"

	"github.com/Natifishman/MessageU/pkg/crypto"
	"github.com/Natifishman/MessageU/pkg/protocol"
)

var (
	ErrNotPresent  = errors.New("identity file not present")
	ErrMalformed   = errors.New("identity file malformed")
	ErrPersistence = errors.New("identity file write failed")
)

// base64 private-key lines are wrapped at this width on save; load
// accepts any line layout.
const keyLineWidth = 64

// LocalIdentity is the registered local client. Immutable for the
// process lifetime once created.
type LocalIdentity struct {
	Name    string
	ID      protocol.Ident
	Private *crypto.PrivateKey
}

// Store reads and writes the identity file. The format is line-oriented
// text: line 1 the display name, line 2 the identity as 32 lowercase hex
// digits, lines 3+ the base64 of the PKCS#8 private key.
type Store struct {
	path string
}

// NewStore creates a store over the given file path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// Load reads the identity file. A missing file is the ordinary
// unregistered state, reported as ErrNotPresent.
func (s *Store) Load() (*LocalIdentity, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotPresent
		}
		return nil, ErrMalformed
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)

	if !scanner.Scan() {
		return nil, ErrMalformed
	}
	name := strings.TrimSpace(scanner.Text())
	if name == "" || len(name) >= protocol.NameSize {
		return nil, ErrMalformed
	}

	if !scanner.Scan() {
		return nil, ErrMalformed
	}
	id, err := protocol.IdentFromHex(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return nil, ErrMalformed
	}

	var encoded strings.Builder
	for scanner.Scan() {
		encoded.WriteString(strings.TrimSpace(scanner.Text()))
	}
	if scanner.Err() != nil || encoded.Len() == 0 {
		return nil, ErrMalformed
	}

	der, err := base64.StdEncoding.DecodeString(encoded.String())
	if err != nil {
		return nil, ErrMalformed
	}
	private, err := crypto.ParsePrivateKey(der)
	if err != nil {
		return nil, ErrMalformed
	}

	return &LocalIdentity{Name: name, ID: id, Private: private}, nil
}

// Save overwrites the identity file with the given identity
func (s *Store) Save(li *LocalIdentity) error {
	der, err := li.Private.Bytes()
	if err != nil {
		return ErrPersistence
	}

	var b strings.Builder
	b.WriteString(li.Name)
	b.WriteByte('\n')
	b.WriteString(li.ID.String())
	b.WriteByte('\n')

	encoded := base64.StdEncoding.EncodeToString(der)
	for len(encoded) > keyLineWidth {
		b.WriteString(encoded[:keyLineWidth])
		b.WriteByte('\n')
		encoded = encoded[keyLineWidth:]
	}
	b.WriteString(encoded)
	b.WriteByte('\n')

	if err := os.WriteFile(s.path, []byte(b.String()), 0600); err != nil {
		return ErrPersistence
	}
	return nil
}
