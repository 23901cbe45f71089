package engine

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/Natifishman/MessageU/pkg/crypto"
	"github.com/Natifishman/MessageU/pkg/identity"
	"github.com/Natifishman/MessageU/pkg/protocol"
	"github.com/Natifishman/MessageU/pkg/registry"
	"github.com/Natifishman/MessageU/pkg/storage"
)

// Markers delivered for the key-exchange message types
const (
	markerKeyRequest  = "Symmetric key request"
	markerKeyReceived = "Symmetric key received"
)

// fileSinkDir is the directory under the system temp dir where decrypted
// file messages are written.
const fileSinkDir = "MessageU"

func msgTypeName(t uint8) string {
	switch t {
	case protocol.MsgKeyRequest:
		return "key request"
	case protocol.MsgKeySend:
		return "key send"
	case protocol.MsgText:
		return "text"
	case protocol.MsgFile:
		return "file"
	}
	return fmt.Sprintf("type %d", t)
}

// Register registers the local client under the given name, adopts the
// server-assigned identity and persists it.
func (c *Client) Register(name string) error {
	c.metrics.IncRequest("register")
	err := c.register(name)
	if err != nil {
		c.metrics.IncFailure("register")
	}
	return err
}

func (c *Client) register(name string) error {
	if c.local != nil {
		c.appendError("already registered as %s", c.local.Name)
		return ErrAlreadyRegistered
	}
	if err := protocol.ValidateName(name); err != nil {
		c.appendError("invalid name %q: must be alphanumeric and under %d characters", name, protocol.NameSize)
		return err
	}

	private, err := crypto.GenerateRSA()
	if err != nil {
		c.appendError("key generation: %v", err)
		return err
	}
	pub, err := private.PublicBytes()
	if err != nil {
		c.appendError("key serialization: %v", err)
		return err
	}

	req := protocol.RegisterRequest{Name: name}
	copy(req.PublicKey[:], pub)
	packet, err := req.Encode()
	if err != nil {
		c.appendError("registration request: %v", err)
		return err
	}

	payload, err := c.exchange(packet, protocol.CodeRegistered)
	if err != nil {
		c.appendError("registration: %v", err)
		return err
	}

	var resp protocol.RegisteredResponse
	if err := resp.Decode(payload); err != nil {
		c.appendError("registration response: %v", err)
		return err
	}

	li := &identity.LocalIdentity{Name: name, ID: resp.ID, Private: private}
	if err := c.store.Save(li); err != nil {
		c.appendError("storing identity to %s: %v", c.store.Path(), err)
		return err
	}

	c.local = li
	c.attachHistory()
	return nil
}

// FetchUsers refreshes the peer registry from the server's client list.
// Keys already learned for surviving peers are preserved; the local
// identity never enters the registry. An empty list is ordinary success.
func (c *Client) FetchUsers() error {
	c.metrics.IncRequest("fetch_users")
	err := c.fetchUsers()
	if err != nil {
		c.metrics.IncFailure("fetch_users")
	}
	return err
}

func (c *Client) fetchUsers() error {
	if c.local == nil {
		c.appendError("fetch users: %v", ErrNotRegistered)
		return ErrNotRegistered
	}

	req := protocol.ClientsListRequest{From: c.local.ID}
	payload, err := c.exchange(req.Encode(), protocol.CodeUsers)
	if err != nil {
		c.appendError("fetch users: %v", err)
		return err
	}

	users, err := protocol.DecodeUsers(payload)
	if err != nil {
		c.appendError("users response: %v", err)
		return err
	}

	filtered := users[:0]
	for _, u := range users {
		if u.ID != c.local.ID {
			filtered = append(filtered, u)
		}
	}
	c.registry.ReplaceAll(filtered)
	return nil
}

// FetchPublicKey fetches and installs the named peer's public key
func (c *Client) FetchPublicKey(name string) error {
	c.metrics.IncRequest("fetch_public_key")
	err := c.fetchPublicKey(name)
	if err != nil {
		c.metrics.IncFailure("fetch_public_key")
	}
	return err
}

func (c *Client) fetchPublicKey(name string) error {
	if c.local == nil {
		c.appendError("fetch public key: %v", ErrNotRegistered)
		return ErrNotRegistered
	}
	if name == c.local.Name {
		c.appendError("fetch public key: %v", ErrSelfTarget)
		return ErrSelfTarget
	}

	peer, ok := c.registry.FindByName(name)
	if !ok {
		c.appendError("user %q not found; refresh the user list", name)
		return registry.ErrUnknownPeer
	}

	req := protocol.PublicKeyRequest{From: c.local.ID, Target: peer.ID}
	payload, err := c.exchange(req.Encode(), protocol.CodePublicKeyReply)
	if err != nil {
		c.appendError("fetch public key for %s: %v", name, err)
		return err
	}

	var resp protocol.PublicKeyResponse
	if err := resp.Decode(payload); err != nil {
		c.appendError("public key response: %v", err)
		return err
	}
	if resp.ID != peer.ID {
		c.appendError("public key response for %s names a different client", name)
		return ErrPeerMismatch
	}

	if err := c.registry.SetPublicKey(peer.ID, resp.PublicKey[:]); err != nil {
		c.appendError("storing public key for %s: %v", name, err)
		return err
	}
	return nil
}

// SendMessage encrypts and sends one message to the named peer. The data
// argument is the text body for MsgText, the source path for MsgFile, and
// ignored for the key-exchange types.
func (c *Client) SendMessage(name string, kind uint8, data string) error {
	c.metrics.IncRequest("send_message")
	err := c.sendMessage(name, kind, data)
	if err != nil {
		c.metrics.IncFailure("send_message")
		return err
	}
	c.metrics.IncSent(msgTypeName(kind))
	return nil
}

func (c *Client) sendMessage(name string, kind uint8, data string) error {
	if c.local == nil {
		c.appendError("send message: %v", ErrNotRegistered)
		return ErrNotRegistered
	}
	if name == c.local.Name {
		c.appendError("cannot send %s to yourself", msgTypeName(kind))
		return ErrSelfTarget
	}

	peer, ok := c.registry.FindByName(name)
	if !ok {
		c.appendError("user %q not found; refresh the user list", name)
		return registry.ErrUnknownPeer
	}

	content, err := c.buildContent(peer, kind, data)
	if err != nil {
		return err
	}

	req := protocol.SendMessageRequest{
		From:    c.local.ID,
		Dest:    peer.ID,
		Type:    kind,
		Content: content,
	}
	packet, err := req.Encode()
	if err != nil {
		c.appendError("sending %s to %s: %v", msgTypeName(kind), name, err)
		return err
	}

	payload, err := c.exchange(packet, protocol.CodeMessageSent)
	if err != nil {
		c.appendError("sending %s to %s: %v", msgTypeName(kind), name, err)
		return err
	}

	var resp protocol.MessageSentResponse
	if err := resp.Decode(payload); err != nil {
		c.appendError("send confirmation: %v", err)
		return err
	}
	if resp.Dest != peer.ID {
		c.appendError("send confirmation names a different client")
		return ErrPeerMismatch
	}

	c.recordSent(peer, kind, data)
	return nil
}

// buildContent assembles the encrypted content for one outgoing message,
// enforcing the per-type key preconditions locally before any request is
// sent.
func (c *Client) buildContent(peer registry.Peer, kind uint8, data string) ([]byte, error) {
	switch kind {
	case protocol.MsgKeyRequest:
		return nil, nil

	case protocol.MsgKeySend:
		if !peer.HasPublicKey() {
			c.appendError("public key for %s not available", peer.Name)
			return nil, ErrPreconditionMissing
		}
		pub, err := crypto.ParsePublicKey(peer.PublicKey)
		if err != nil {
			c.appendError("public key for %s: %v", peer.Name, err)
			return nil, err
		}
		key, err := crypto.GenerateAESKey()
		if err != nil {
			c.appendError("key generation for %s: %v", peer.Name, err)
			return nil, err
		}
		if err := c.registry.SetSymmetricKey(peer.ID, key); err != nil {
			c.appendError("storing symmetric key for %s: %v", peer.Name, err)
			return nil, err
		}
		content, err := pub.Encrypt(key)
		if err != nil {
			c.appendError("encrypting symmetric key for %s: %v", peer.Name, err)
			return nil, err
		}
		return content, nil

	case protocol.MsgText, protocol.MsgFile:
		if data == "" {
			c.appendError("no content provided for message to %s", peer.Name)
			return nil, ErrEmptyContent
		}
		if !peer.HasSymmetricKey() {
			c.appendError("symmetric key for %s not available", peer.Name)
			return nil, ErrPreconditionMissing
		}

		body := []byte(data)
		if kind == protocol.MsgFile {
			var err error
			body, err = os.ReadFile(data)
			if err != nil {
				c.appendError("file not found: %s", data)
				return nil, ErrFileNotFound
			}
		}

		content, err := crypto.AESEncrypt(peer.SymmetricKey, body)
		if err != nil {
			c.appendError("encrypting message for %s: %v", peer.Name, err)
			return nil, err
		}
		return content, nil
	}

	c.appendError("unknown message type %d", kind)
	return nil, ErrEmptyContent
}

// FetchPending retrieves and processes all messages waiting on the
// server. Per-record failures are non-fatal: the record is skipped, a
// diagnostic is appended to the error buffer, and the remaining records
// are still delivered in server order.
func (c *Client) FetchPending() ([]IncomingMessage, error) {
	c.metrics.IncRequest("fetch_pending")
	msgs, err := c.fetchPending()
	if err != nil {
		c.metrics.IncFailure("fetch_pending")
	}
	return msgs, err
}

func (c *Client) fetchPending() ([]IncomingMessage, error) {
	if c.local == nil {
		c.appendError("fetch pending: %v", ErrNotRegistered)
		return nil, ErrNotRegistered
	}

	req := protocol.PendingRequest{From: c.local.ID}
	payload, err := c.exchange(req.Encode(), protocol.CodePending)
	if err != nil {
		c.appendError("fetch pending: %v", err)
		return nil, err
	}

	records, err := protocol.DecodePending(payload)
	if err != nil {
		c.appendError("pending response: %v", err)
		return nil, err
	}

	messages := make([]IncomingMessage, 0, len(records))
	for _, rec := range records {
		if msg, ok := c.processPending(rec); ok {
			messages = append(messages, msg)
			c.metrics.IncReceived(msgTypeName(rec.Type))
		}
	}
	return messages, nil
}

func (c *Client) processPending(rec protocol.PendingMessage) (IncomingMessage, bool) {
	peer, known := c.registry.FindByID(rec.From)
	fromName := peer.Name
	if !known {
		fromName = "Unknown client: " + rec.From.String()
	}

	switch rec.Type {
	case protocol.MsgKeyRequest:
		return IncomingMessage{From: fromName, Body: markerKeyRequest}, true

	case protocol.MsgKeySend:
		key, err := c.local.Private.Decrypt(rec.Content)
		if err != nil {
			c.appendError("message #%d from %s: %v", rec.MessageID, fromName, err)
			return IncomingMessage{}, false
		}
		if len(key) != protocol.SymmetricKeySize {
			c.appendError("message #%d from %s: %v", rec.MessageID, fromName, crypto.ErrBadKeyLength)
			return IncomingMessage{}, false
		}
		if !known {
			c.appendError("message #%d: symmetric key from unknown client %s", rec.MessageID, rec.From)
			return IncomingMessage{}, false
		}
		if err := c.registry.SetSymmetricKey(rec.From, key); err != nil {
			c.appendError("message #%d from %s: %v", rec.MessageID, fromName, err)
			return IncomingMessage{}, false
		}
		return IncomingMessage{From: fromName, Body: markerKeyReceived}, true

	case protocol.MsgText, protocol.MsgFile:
		if !peer.HasSymmetricKey() {
			c.appendError("message #%d from %s: symmetric key not available", rec.MessageID, fromName)
			return IncomingMessage{}, false
		}
		body, err := crypto.AESDecrypt(peer.SymmetricKey, rec.Content)
		if err != nil {
			c.appendError("message #%d from %s: %v", rec.MessageID, fromName, err)
			return IncomingMessage{}, false
		}

		if rec.Type == protocol.MsgFile {
			path, err := c.writeFileMessage(fromName, body)
			if err != nil {
				c.appendError("message #%d from %s: %v", rec.MessageID, fromName, err)
				return IncomingMessage{}, false
			}
			c.recordReceived(rec.From, fromName, rec.Type, []byte(path))
			return IncomingMessage{From: fromName, Body: path}, true
		}

		c.recordReceived(rec.From, fromName, rec.Type, body)
		return IncomingMessage{From: fromName, Body: string(body)}, true
	}

	c.appendError("message #%d from %s: corrupted message type %d", rec.MessageID, fromName, rec.Type)
	return IncomingMessage{}, false
}

func (c *Client) writeFileMessage(fromName string, body []byte) (string, error) {
	dir := filepath.Join(os.TempDir(), fileSinkDir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", ErrFileWriteFailed
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%d", fromName, time.Now().UnixMilli()))
	if err := os.WriteFile(path, body, 0600); err != nil {
		return "", ErrFileWriteFailed
	}
	return path, nil
}

// recordSent stores an outgoing text or file message in the history.
// History writes are best-effort.
func (c *Client) recordSent(peer registry.Peer, kind uint8, data string) {
	if c.history == nil || (kind != protocol.MsgText && kind != protocol.MsgFile) {
		return
	}

	err := c.history.SaveMessage(&storage.StoredMessage{
		PeerIdent: peer.ID,
		PeerName:  peer.Name,
		Type:      kind,
		Body:      []byte(data),
		Timestamp: time.Now().UnixMilli(),
		Direction: storage.DirectionOutgoing,
	})
	if err != nil {
		log.Printf("history write failed: %v", err)
	}
}

func (c *Client) recordReceived(from protocol.Ident, fromName string, kind uint8, body []byte) {
	if c.history == nil {
		return
	}

	err := c.history.SaveMessage(&storage.StoredMessage{
		PeerIdent: from,
		PeerName:  fromName,
		Type:      kind,
		Body:      body,
		Timestamp: time.Now().UnixMilli(),
		Direction: storage.DirectionIncoming,
	})
	if err != nil {
		log.Printf("history write failed: %v", err)
	}
}
