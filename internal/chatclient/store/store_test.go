package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dmrelay/internal/identity"
	"dmrelay/internal/relay"
)

var testLocal = identity.Identity{ID: "me", Name: "Me"}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chat.db")

	s, err := Open(path, testLocal)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s, path
}

func TestAppendOutgoingOptimisticEcho(t *testing.T) {
	s, _ := openTestStore(t)

	msg := s.AppendOutgoing("bob", "hi", "")

	require.NotEmpty(t, msg.ID)
	require.Equal(t, "me", msg.From)
	require.Equal(t, "bob", msg.To)
	require.Equal(t, "hi", msg.Text)
	require.NotEmpty(t, msg.Time)

	// The echo is in the log before any network activity could have happened.
	log := s.Conversation("bob")
	require.Len(t, log, 1)
	require.Equal(t, msg, log[0])
}

func TestAppendOutgoingUniqueIDs(t *testing.T) {
	s, _ := openTestStore(t)

	seen := make(map[string]struct{})
	for range 100 {
		msg := s.AppendOutgoing("bob", "x", "")
		_, dup := seen[msg.ID]
		require.False(t, dup, "message id %q repeated", msg.ID)
		seen[msg.ID] = struct{}{}
	}
}

func TestAppendIncomingPartnerKeying(t *testing.T) {
	s, _ := openTestStore(t)

	// A message from a peer files under the peer's id.
	s.AppendIncoming(relay.Message{ID: "1", From: "alice", To: "me", Text: "hello"})
	require.Len(t, s.Conversation("alice"), 1)

	// A server-forwarded copy of our own message files under its recipient,
	// not under our own id.
	s.AppendIncoming(relay.Message{ID: "2", From: "me", To: "alice", Text: "echo"})
	require.Len(t, s.Conversation("alice"), 2)
	require.Empty(t, s.Conversation("me"))
}

func TestConversationAppendOnly(t *testing.T) {
	s, _ := openTestStore(t)

	for i := range 5 {
		s.AppendIncoming(relay.Message{ID: string(rune('a' + i)), From: "alice", To: "me", Text: "m"})
	}

	before := s.Conversation("alice")

	s.AppendIncoming(relay.Message{ID: "z", From: "alice", To: "me", Text: "later"})

	after := s.Conversation("alice")
	require.GreaterOrEqual(t, len(after), len(before))
	require.Equal(t, before, after[:len(before)], "existing entries must not be reordered or removed")
}

func TestPersistRestoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")

	s, err := Open(path, testLocal)
	require.NoError(t, err)

	s.AppendOutgoing("bob", "first", "")
	s.AppendIncoming(relay.Message{ID: "in-1", From: "bob", To: "me", Text: "reply", Time: "2026-08-29T10:00:00Z"})
	s.AddContact(Contact{ID: "bob", Name: "Bob", AvatarColor: "indigo"})
	s.SetTheme("dark")

	wantContacts := s.Contacts()
	wantBob := s.Conversation("bob")
	wantPeers := s.Peers()

	require.NoError(t, s.Close())

	restored, err := Open(path, testLocal)
	require.NoError(t, err)
	defer restored.Close()

	require.Equal(t, "dark", restored.Theme())
	require.Equal(t, wantContacts, restored.Contacts())
	require.Equal(t, wantBob, restored.Conversation("bob"))
	require.ElementsMatch(t, wantPeers, restored.Peers())
}

func TestRestoreFailsClosedOnCorruptRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")

	s, err := Open(path, testLocal)
	require.NoError(t, err)
	s.AppendOutgoing("bob", "will be lost", "")
	require.NoError(t, s.Close())

	// Corrupt every persisted record behind the store's back.
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE records SET value = X'DEADBEEF'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	restored, err := Open(path, testLocal)
	require.NoError(t, err, "corrupt state must not propagate a parse fault")
	defer restored.Close()

	// Each record resets to its default instead of failing open.
	require.Equal(t, DefaultTheme, restored.Theme())
	require.Equal(t, sampleContacts(), restored.Contacts())
	require.Empty(t, restored.Conversation("bob"))
}

func TestFreshStoreSeedsDemoData(t *testing.T) {
	s, _ := openTestStore(t)

	contacts := s.Contacts()
	require.Len(t, contacts, 3)
	require.Equal(t, "c1", contacts[0].ID)

	welcome := s.Conversation("c1")
	require.Len(t, welcome, 1)
	require.Equal(t, "c1", welcome[0].From)
}

func TestIncomingFromUnknownPeerCreatesContact(t *testing.T) {
	s, _ := openTestStore(t)

	s.AppendIncoming(relay.Message{ID: "1", From: "dave", To: "me", Text: "yo"})

	contacts := s.Contacts()
	require.Equal(t, "dave", contacts[0].ID, "unknown peers are prepended as placeholder contacts")
	require.Equal(t, "yo", contacts[0].Last)
}

func TestSetOnlineUpdatesContact(t *testing.T) {
	s, _ := openTestStore(t)

	s.AddContact(Contact{ID: "bob", Name: "Bob"})
	s.SetOnline("bob", true)

	for _, c := range s.Contacts() {
		if c.ID == "bob" {
			require.True(t, c.Online)
			return
		}
	}
	t.Fatal("contact bob not found")
}
