package identity

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Natifishman/MessageU/pkg/crypto"
	"github.com/Natifishman/MessageU/pkg/protocol"
)

func newIdentity(t *testing.T) *LocalIdentity {
	t.Helper()

	private, err := crypto.GenerateRSA()
	if err != nil {
		t.Fatalf("GenerateRSA() error = %v", err)
	}

	id := protocol.Ident{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16}
	return &LocalIdentity{Name: "alice", ID: id, Private: private}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "my.info")
	store := NewStore(path)

	original := newIdentity(t)
	if err := store.Save(original); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Name != original.Name {
		t.Errorf("name = %q, want %q", loaded.Name, original.Name)
	}
	if loaded.ID != original.ID {
		t.Error("ident mismatch")
	}

	origDER, _ := original.Private.Bytes()
	loadedDER, err := loaded.Private.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if hex.EncodeToString(origDER) != hex.EncodeToString(loadedDER) {
		t.Error("private key mismatch after round trip")
	}
}

func TestFileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "my.info")
	store := NewStore(path)

	if err := store.Save(newIdentity(t)); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")

	if len(lines) < 3 {
		t.Fatalf("file has %d lines, want at least 3", len(lines))
	}
	if lines[0] != "alice" {
		t.Errorf("line 1 = %q, want the display name", lines[0])
	}
	if lines[1] != "01020304050607080910111213141516" {
		t.Errorf("line 2 = %q, want 32 lowercase hex digits", lines[1])
	}
	for i, line := range lines[2:] {
		if len(line) > keyLineWidth {
			t.Errorf("key line %d exceeds wrap width: %d bytes", i, len(line))
		}
	}
}

func TestLoadNotPresent(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "my.info"))
	if _, err := store.Load(); err != ErrNotPresent {
		t.Errorf("Load() error = %v, want ErrNotPresent", err)
	}
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"missing ident", "alice\n"},
		{"bad hex ident", "alice\nnot-hex-at-all-not-hex-at-all-xx\nAAAA\n"},
		{"short ident", "alice\nabcd\nAAAA\n"},
		{"missing key", "alice\n01020304050607080910111213141516\n"},
		{"bad base64", "alice\n01020304050607080910111213141516\n!!!!\n"},
		{"key not a key", "alice\n01020304050607080910111213141516\nAAAA\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "my.info")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}

			if _, err := NewStore(path).Load(); err != ErrMalformed {
				t.Errorf("Load() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestSaveUnwritablePath(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing", "my.info"))
	if err := store.Save(newIdentity(t)); err != ErrPersistence {
		t.Errorf("Save() error = %v, want ErrPersistence", err)
	}
}
