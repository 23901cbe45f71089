// Package storage keeps an encrypted local history of sent and received
// messages in a SQLite database. History is an aid for the user, not part
// of the wire protocol: writes are best-effort and never fail an
// exchange.
package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"

	"github.com/Natifishman/MessageU/pkg/crypto"
	"github.com/Natifishman/MessageU/pkg/protocol"
)

var ErrNotFound = errors.New("not found")

// Direction of a stored message relative to the local client
type Direction int

const (
	DirectionOutgoing Direction = iota
	DirectionIncoming
)

// StoredMessage is one history row. Body is plaintext in memory and
// encrypted at rest.
type StoredMessage struct {
	ID             int64
	ConversationID string
	PeerIdent      protocol.Ident
	PeerName       string
	Type           uint8
	Body           []byte
	Timestamp      int64
	Direction      Direction
}

// HistoryDB manages the encrypted message history
type HistoryDB struct {
	db    *sql.DB
	key   []byte
	local protocol.Ident
}

// NewHistoryDB opens (or creates) the history database. The at-rest key
// is derived from the caller's secret — the serialized private key — via
// HKDF-SHA256, so the history is unreadable without the identity file.
func NewHistoryDB(path string, local protocol.Ident, secret []byte) (*HistoryDB, error) {
	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %v", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %v", err)
	}

	h := &HistoryDB{db: db, key: key, local: local}
	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return h, nil
}

func deriveKey(secret []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, nil, []byte("messageu history at-rest key"))
	key := make([]byte, protocol.SymmetricKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive history key: %v", err)
	}
	return key, nil
}

func (h *HistoryDB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		peer_ident TEXT NOT NULL,
		peer_name TEXT NOT NULL,
		msg_type INTEGER NOT NULL,
		body BLOB NOT NULL,
		timestamp INTEGER NOT NULL,
		direction INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_messages_peer ON messages(peer_ident, timestamp DESC);
	`

	if _, err := h.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %v", err)
	}
	return nil
}

// ConversationID derives a stable identifier for the pair of the local
// client and a peer, independent of message direction.
func (h *HistoryDB) ConversationID(peer protocol.Ident) string {
	lo, hi := h.local, peer
	for i := 0; i < protocol.IdentSize; i++ {
		if lo[i] != hi[i] {
			if lo[i] > hi[i] {
				lo, hi = hi, lo
			}
			break
		}
	}

	sum := blake2b.Sum256(append(lo[:], hi[:]...))
	return hex.EncodeToString(sum[:])
}

// SaveMessage stores a message, encrypting the body at rest
func (h *HistoryDB) SaveMessage(msg *StoredMessage) error {
	encrypted, err := crypto.AESEncrypt(h.key, msg.Body)
	if err != nil {
		return fmt.Errorf("failed to encrypt body: %v", err)
	}

	msg.ConversationID = h.ConversationID(msg.PeerIdent)

	result, err := h.db.Exec(
		`INSERT INTO messages (conversation_id, peer_ident, peer_name, msg_type, body, timestamp, direction)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ConversationID,
		msg.PeerIdent.String(),
		msg.PeerName,
		msg.Type,
		encrypted,
		msg.Timestamp,
		int(msg.Direction),
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %v", err)
	}

	msg.ID, err = result.LastInsertId()
	return err
}

// ConversationMessages returns the newest messages exchanged with a peer,
// most recent first.
func (h *HistoryDB) ConversationMessages(peer protocol.Ident, limit, offset int) ([]*StoredMessage, error) {
	rows, err := h.db.Query(
		`SELECT id, conversation_id, peer_ident, peer_name, msg_type, body, timestamp, direction
		 FROM messages
		 WHERE conversation_id = ?
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ? OFFSET ?`,
		h.ConversationID(peer), limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*StoredMessage
	for rows.Next() {
		var (
			msg       StoredMessage
			identHex  string
			encrypted []byte
			direction int
		)

		if err := rows.Scan(&msg.ID, &msg.ConversationID, &identHex, &msg.PeerName,
			&msg.Type, &encrypted, &msg.Timestamp, &direction); err != nil {
			return nil, err
		}

		msg.PeerIdent, err = protocol.IdentFromHex(identHex)
		if err != nil {
			return nil, fmt.Errorf("corrupt peer ident in row %d", msg.ID)
		}
		msg.Direction = Direction(direction)

		msg.Body, err = crypto.AESDecrypt(h.key, encrypted)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt body of row %d: %v", msg.ID, err)
		}

		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// Close closes the database connection
func (h *HistoryDB) Close() error {
	return h.db.Close()
}
