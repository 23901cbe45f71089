// Package registry keeps the in-memory table of peers learned from the
// server's users list, together with any key material negotiated with
// each of them.
package registry

import (
	"errors"
	"sort"

	"github.com/Natifishman/MessageU/pkg/protocol"
)

var ErrUnknownPeer = errors.New("peer not in registry")

// Peer is a snapshot of one registry entry. Key slices are copies; the
// registry never hands out aliases of its key material.
type Peer struct {
	ID           protocol.Ident
	Name         string
	PublicKey    []byte
	SymmetricKey []byte
}

// HasPublicKey reports whether a public key was learned for the peer
func (p Peer) HasPublicKey() bool {
	return len(p.PublicKey) != 0
}

// HasSymmetricKey reports whether a symmetric key was negotiated
func (p Peer) HasSymmetricKey() bool {
	return len(p.SymmetricKey) != 0
}

type entry struct {
	name         string
	publicKey    []byte
	symmetricKey []byte
}

// Registry maps identities to peers. At most one entry per identity.
type Registry struct {
	peers map[protocol.Ident]*entry
}

// New creates an empty registry
func New() *Registry {
	return &Registry{peers: make(map[protocol.Ident]*entry)}
}

// ReplaceAll rebuilds the registry from a users-list refresh. Key
// material already learned for a surviving identity is carried over;
// identities absent from the new list are dropped.
func (r *Registry) ReplaceAll(users []protocol.UserRecord) {
	fresh := make(map[protocol.Ident]*entry, len(users))
	for _, u := range users {
		e := &entry{name: u.Name}
		if old, ok := r.peers[u.ID]; ok {
			e.publicKey = old.publicKey
			e.symmetricKey = old.symmetricKey
		}
		fresh[u.ID] = e
	}
	r.peers = fresh
}

// FindByID looks a peer up by identity
func (r *Registry) FindByID(id protocol.Ident) (Peer, bool) {
	e, ok := r.peers[id]
	if !ok {
		return Peer{}, false
	}
	return r.snapshot(id, e), true
}

// FindByName looks a peer up by display name
func (r *Registry) FindByName(name string) (Peer, bool) {
	for id, e := range r.peers {
		if e.name == name {
			return r.snapshot(id, e), true
		}
	}
	return Peer{}, false
}

// SetPublicKey installs a peer's public key. The identity must already be
// known from a users refresh.
func (r *Registry) SetPublicKey(id protocol.Ident, key []byte) error {
	e, ok := r.peers[id]
	if !ok {
		return ErrUnknownPeer
	}
	e.publicKey = cloneBytes(key)
	return nil
}

// SetSymmetricKey installs a peer's symmetric key
func (r *Registry) SetSymmetricKey(id protocol.Ident, key []byte) error {
	e, ok := r.peers[id]
	if !ok {
		return ErrUnknownPeer
	}
	e.symmetricKey = cloneBytes(key)
	return nil
}

// NamesSorted returns all peer names in ascending order
func (r *Registry) NamesSorted() []string {
	names := make([]string, 0, len(r.peers))
	for _, e := range r.peers {
		names = append(names, e.name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of known peers
func (r *Registry) Len() int {
	return len(r.peers)
}

func (r *Registry) snapshot(id protocol.Ident, e *entry) Peer {
	return Peer{
		ID:           id,
		Name:         e.name,
		PublicKey:    cloneBytes(e.publicKey),
		SymmetricKey: cloneBytes(e.symmetricKey),
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
