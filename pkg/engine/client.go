// Package engine orchestrates the client protocol flows: registration,
// peer discovery, key exchange and message transfer. The Client owns the
// identity store, the peer registry, the history database and the
// transport; operations borrow them and run to completion one at a time.
package engine

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Natifishman/MessageU/pkg/config"
	"github.com/Natifishman/MessageU/pkg/identity"
	"github.com/Natifishman/MessageU/pkg/metrics"
	"github.com/Natifishman/MessageU/pkg/protocol"
	"github.com/Natifishman/MessageU/pkg/registry"
	"github.com/Natifishman/MessageU/pkg/storage"
	"github.com/Natifishman/MessageU/pkg/transport"
)

var (
	ErrNotRegistered       = errors.New("local identity not registered")
	ErrAlreadyRegistered   = errors.New("local identity already registered")
	ErrSelfTarget          = errors.New("cannot target self")
	ErrPreconditionMissing = errors.New("peer key material missing")
	ErrPeerMismatch        = errors.New("response names a different peer")
	ErrEmptyContent        = errors.New("no content provided")
	ErrFileNotFound        = errors.New("file not found")
	ErrFileWriteFailed     = errors.New("file write failed")
)

// IncomingMessage is one processed pending message handed to the consumer
type IncomingMessage struct {
	From string
	Body string
}

// Client is the single owner of all client-side state
type Client struct {
	settings config.Settings
	endpoint config.Endpoint

	store    *identity.Store
	local    *identity.LocalIdentity
	registry *registry.Registry
	history  *storage.HistoryDB
	metrics  *metrics.Metrics

	errBuf strings.Builder
}

// New creates a client over the given settings. Metrics may be nil.
func New(settings config.Settings, m *metrics.Metrics) *Client {
	return &Client{
		settings: settings,
		store:    identity.NewStore(settings.ClientInfoPath),
		registry: registry.New(),
		metrics:  m,
	}
}

// Prepare loads the server endpoint and, when present, the persisted
// local identity. A missing identity file is the ordinary unregistered
// state; a malformed one is an error.
func (c *Client) Prepare() error {
	endpoint, err := config.LoadEndpoint(c.settings.ServerInfoPath)
	if err != nil {
		c.appendError("server configuration %s: %v", c.settings.ServerInfoPath, err)
		return err
	}
	c.endpoint = endpoint

	if err := c.LoadIdentity(); err != nil {
		return err
	}
	return nil
}

// LoadIdentity reads the identity file and attaches the history database
func (c *Client) LoadIdentity() error {
	li, err := c.store.Load()
	if err != nil {
		if errors.Is(err, identity.ErrNotPresent) {
			return nil
		}
		c.appendError("client configuration %s: %v", c.store.Path(), err)
		return err
	}

	c.local = li
	c.attachHistory()
	return nil
}

// Registered reports whether a local identity is loaded
func (c *Client) Registered() bool {
	return c.local != nil
}

// SelfName returns the registered display name, or empty when
// unregistered.
func (c *Client) SelfName() string {
	if c.local == nil {
		return ""
	}
	return c.local.Name
}

// SelfIdent returns the registered identity
func (c *Client) SelfIdent() protocol.Ident {
	if c.local == nil {
		return protocol.Ident{}
	}
	return c.local.ID
}

// UsersSorted returns the known peer names in ascending order
func (c *Client) UsersSorted() []string {
	return c.registry.NamesSorted()
}

// History returns the messages exchanged with a named peer, newest
// first. The peer must be in the registry.
func (c *Client) History(name string, limit int) ([]*storage.StoredMessage, error) {
	peer, ok := c.registry.FindByName(name)
	if !ok {
		return nil, registry.ErrUnknownPeer
	}
	if c.history == nil {
		return nil, nil
	}
	return c.history.ConversationMessages(peer.ID, limit, 0)
}

// LastError returns the accumulated diagnostics and clears the buffer
func (c *Client) LastError() string {
	s := c.errBuf.String()
	c.errBuf.Reset()
	return s
}

// Close releases the history database
func (c *Client) Close() {
	if c.history != nil {
		c.history.Close()
		c.history = nil
	}
}

func (c *Client) attachHistory() {
	if c.history != nil || c.local == nil {
		return
	}

	secret, err := c.local.Private.Bytes()
	if err != nil {
		log.Printf("history disabled: %v", err)
		return
	}
	h, err := storage.NewHistoryDB(c.settings.HistoryPath, c.local.ID, secret)
	if err != nil {
		log.Printf("history disabled: %v", err)
		return
	}
	c.history = h
}

func (c *Client) appendError(format string, args ...any) {
	fmt.Fprintf(&c.errBuf, format+"\n", args...)
}

// exchange runs one request/response cycle: connect, send the packet,
// read the validated response header, read the body, disconnect. The
// header is parsed before the body so a server error or a bad size field
// is classified instead of stalling the read.
func (c *Client) exchange(request []byte, expected uint16) ([]byte, error) {
	conn := transport.New(c.endpoint.Host, c.endpoint.Port, time.Duration(c.settings.DialTimeout))
	if err := conn.Connect(); err != nil {
		return nil, err
	}
	defer conn.Disconnect()

	if err := conn.SendAll(request); err != nil {
		return nil, err
	}

	_, payload, err := protocol.ReadResponse(conn, expected)
	if err != nil {
		return nil, err
	}
	return payload, nil
}
