package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Natifishman/MessageU/pkg/protocol"
)

var (
	localID = protocol.Ident{0x01}
	peerID  = protocol.Ident{0x02}
)

func newTestDB(t *testing.T) (*HistoryDB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "history.db")
	db, err := NewHistoryDB(path, localID, []byte("test secret material"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db, path
}

func TestSaveAndQuery(t *testing.T) {
	db, _ := newTestDB(t)

	sent := &StoredMessage{
		PeerIdent: peerID,
		PeerName:  "bob",
		Type:      protocol.MsgText,
		Body:      []byte("hello"),
		Timestamp: 1000,
		Direction: DirectionOutgoing,
	}
	require.NoError(t, db.SaveMessage(sent))
	assert.NotZero(t, sent.ID)

	received := &StoredMessage{
		PeerIdent: peerID,
		PeerName:  "bob",
		Type:      protocol.MsgText,
		Body:      []byte("reply"),
		Timestamp: 2000,
		Direction: DirectionIncoming,
	}
	require.NoError(t, db.SaveMessage(received))

	msgs, err := db.ConversationMessages(peerID, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	// Newest first
	assert.Equal(t, []byte("reply"), msgs[0].Body)
	assert.Equal(t, DirectionIncoming, msgs[0].Direction)
	assert.Equal(t, []byte("hello"), msgs[1].Body)
	assert.Equal(t, DirectionOutgoing, msgs[1].Direction)
	assert.Equal(t, peerID, msgs[0].PeerIdent)
	assert.Equal(t, "bob", msgs[0].PeerName)
}

func TestConversationsAreIsolated(t *testing.T) {
	db, _ := newTestDB(t)

	other := protocol.Ident{0x03}
	require.NoError(t, db.SaveMessage(&StoredMessage{
		PeerIdent: peerID, PeerName: "bob", Type: protocol.MsgText,
		Body: []byte("to bob"), Timestamp: 1, Direction: DirectionOutgoing,
	}))
	require.NoError(t, db.SaveMessage(&StoredMessage{
		PeerIdent: other, PeerName: "carol", Type: protocol.MsgText,
		Body: []byte("to carol"), Timestamp: 2, Direction: DirectionOutgoing,
	}))

	msgs, err := db.ConversationMessages(peerID, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("to bob"), msgs[0].Body)
}

func TestConversationIDDirectionIndependent(t *testing.T) {
	db, _ := newTestDB(t)

	// The pair identifier must not depend on which side computes it
	other, err := NewHistoryDB(filepath.Join(t.TempDir(), "peer.db"), peerID, []byte("peer secret"))
	require.NoError(t, err)
	defer other.Close()

	assert.Equal(t, db.ConversationID(peerID), other.ConversationID(localID))
	assert.NotEqual(t, db.ConversationID(peerID), db.ConversationID(protocol.Ident{0x07}))
}

func TestBodiesEncryptedAtRest(t *testing.T) {
	db, path := newTestDB(t)

	secretText := []byte("extremely identifiable plaintext body")
	require.NoError(t, db.SaveMessage(&StoredMessage{
		PeerIdent: peerID, PeerName: "bob", Type: protocol.MsgText,
		Body: secretText, Timestamp: 1, Direction: DirectionOutgoing,
	}))
	require.NoError(t, db.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, secretText), "plaintext body leaked into the database file")
}

func TestKeyDerivationIsStable(t *testing.T) {
	k1, err := deriveKey([]byte("secret"))
	require.NoError(t, err)
	k2, err := deriveKey([]byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := deriveKey([]byte("different"))
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, protocol.SymmetricKeySize)
}
