/*
Package store implements the client session store: the contact list, the
per-peer conversation logs, and the theme preference, persisted to a local
SQLite database as three namespaced records.

Persistence is write-through: every mutation overwrites the affected record
wholesale. The store is the single reader and writer of its database file.
*/
package store

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"dmrelay/internal/identity"
	"dmrelay/internal/pkg/logx"
	"dmrelay/internal/pkg/randx"
	"dmrelay/internal/relay"
)

// Record keys. The names keep the web client's localStorage namespace so an
// inspector of either store sees the same keys.
const (
	keyTheme    = "chatapp_theme_v1"
	keyContacts = "chatapp_contacts_v1"
	keyMessages = "chatapp_messages_v1"
)

// DefaultTheme is used when no theme record exists or the stored one is corrupt.
const DefaultTheme = "light"

// Contact is local-only UI metadata about a peer. The online flag is not
// synchronized with the server's notion of presence; see the presence
// simulator in the chatclient package.
type Contact struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AvatarColor string `json:"avatarColor"`
	Online      bool   `json:"online"`
	Last        string `json:"last"`
}

// sampleContacts seeds a fresh store with demo data.
func sampleContacts() []Contact {
	return []Contact{
		{ID: "c1", Name: "Alicia", AvatarColor: "pink", Online: true, Last: "Hola!"},
		{ID: "c2", Name: "Bruno", AvatarColor: "indigo", Online: false, Last: "Veo esto luego"},
		{ID: "c3", Name: "Carla", AvatarColor: "green", Online: true, Last: "OK"},
	}
}

// sampleLogs seeds the conversation logs of a fresh store with the demo
// welcome message.
func sampleLogs() map[string][]relay.Message {
	return map[string][]relay.Message{
		"c1": {{
			ID:   randx.MessageID(),
			From: "c1",
			Text: "Bienvenido!",
			Time: time.Now().Format(time.RFC3339),
		}},
	}
}

// Store holds the client's conversation state and persists it write-through.
type Store struct {
	mu sync.Mutex

	db    *sql.DB
	local identity.Identity

	theme    string
	contacts []Contact

	// logs maps the other party's identity ID to the append-only conversation log.
	logs map[string][]relay.Message

	logger zerolog.Logger
}

// Open opens (or creates) the database at path, ensures the schema, and
// restores persisted state. local is the identity whose perspective the
// conversation keys are computed from.
func Open(path string, local identity.Identity) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:     db,
		local:  local,
		theme:  DefaultTheme,
		logs:   make(map[string][]relay.Message),
		logger: logx.Logger().With().Str("component", "Store").Str("local_id", local.ID).Logger(),
	}

	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.Restore(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close flushes nothing (writes are through) and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS records (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`)
	return err
}

// AppendOutgoing constructs a Message addressed to peerID, appends it to the
// conversation log synchronously, persists, and returns it for transmission.
// The append happens before any network activity, so the optimistic echo is
// visible regardless of delivery outcome.
func (s *Store) AppendOutgoing(peerID, text, fileName string) relay.Message {
	msg := relay.Message{
		ID:       randx.MessageID(),
		From:     s.local.ID,
		To:       peerID,
		Text:     text,
		FileName: fileName,
		Time:     time.Now().Format(time.RFC3339),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs[peerID] = append(s.logs[peerID], msg)
	s.touchContactLocked(peerID, text)
	s.persistLocked()

	return msg
}

// AppendIncoming files a received message under the other party's ID. A
// server-forwarded copy of one's own message (from == local) is keyed by its
// recipient instead, so the echo lands in the right log.
func (s *Store) AppendIncoming(msg relay.Message) {
	key := msg.From
	if msg.From == s.local.ID {
		key = msg.To
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.logs[key] = append(s.logs[key], msg)
	s.touchContactLocked(key, msg.Text)
	s.persistLocked()
}

// Conversation returns a copy of the log for the given peer, in arrival order.
func (s *Store) Conversation(peerID string) []relay.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[peerID]
	out := make([]relay.Message, len(log))
	copy(out, log)
	return out
}

// Peers returns the IDs of every conversation in the store.
func (s *Store) Peers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	peers := make([]string, 0, len(s.logs))
	for id := range s.logs {
		peers = append(peers, id)
	}
	return peers
}

// Contacts returns a copy of the contact list.
func (s *Store) Contacts() []Contact {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Contact, len(s.contacts))
	copy(out, s.contacts)
	return out
}

// AddContact prepends a contact and persists. An existing ID is left untouched.
func (s *Store) AddContact(c Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.contacts {
		if existing.ID == c.ID {
			return
		}
	}

	s.contacts = append([]Contact{c}, s.contacts...)
	s.persistLocked()
}

// SetOnline updates a contact's online flag and persists.
func (s *Store) SetOnline(id string, online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.contacts {
		if s.contacts[i].ID == id {
			s.contacts[i].Online = online
			s.persistLocked()
			return
		}
	}
}

// Theme returns the persisted theme preference.
func (s *Store) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.theme
}

// SetTheme stores the theme preference and persists.
func (s *Store) SetTheme(theme string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.theme = theme
	s.persistLocked()
}

// touchContactLocked refreshes the last-message preview for a peer, creating
// a placeholder contact when the peer is not in the list yet.
func (s *Store) touchContactLocked(peerID, preview string) {
	for i := range s.contacts {
		if s.contacts[i].ID == peerID {
			s.contacts[i].Last = preview
			return
		}
	}

	s.contacts = append([]Contact{{
		ID:          peerID,
		Name:        peerID,
		AvatarColor: randx.AvatarColor([]string{"pink", "indigo", "green", "rose"}),
		Last:        preview,
	}}, s.contacts...)
}

// Restore loads the three persisted records. A missing or malformed record
// fails closed to its default rather than propagating a parse fault.
func (s *Store) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.theme = DefaultTheme
	if raw, ok := s.readRecordLocked(keyTheme); ok {
		var theme string
		if err := json.Unmarshal(raw, &theme); err != nil || theme == "" {
			s.logger.Warn().Err(err).Msg("Stored theme record is corrupt, resetting to default.")
		} else {
			s.theme = theme
		}
	}

	s.contacts = sampleContacts()
	if raw, ok := s.readRecordLocked(keyContacts); ok {
		var contacts []Contact
		if err := json.Unmarshal(raw, &contacts); err != nil {
			s.logger.Warn().Err(err).Msg("Stored contacts record is corrupt, resetting to defaults.")
		} else {
			s.contacts = contacts
		}
	}

	s.logs = sampleLogs()
	if raw, ok := s.readRecordLocked(keyMessages); ok {
		var logs map[string][]relay.Message
		if err := json.Unmarshal(raw, &logs); err != nil || logs == nil {
			s.logger.Warn().Err(err).Msg("Stored messages record is corrupt, resetting to empty logs.")
			s.logs = make(map[string][]relay.Message)
		} else {
			s.logs = logs
		}
	}

	return nil
}

// Persist writes all three records wholesale.
func (s *Store) Persist() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.persistLocked()
}

func (s *Store) readRecordLocked(key string) ([]byte, bool) {
	var value []byte

	err := s.db.QueryRow(`SELECT value FROM records WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to read persisted record.")
		}
		return nil, false
	}

	return value, true
}

func (s *Store) persistLocked() {
	s.writeRecordLocked(keyTheme, s.theme)
	s.writeRecordLocked(keyContacts, s.contacts)
	s.writeRecordLocked(keyMessages, s.logs)
}

func (s *Store) writeRecordLocked(key string, value any) {
	blob, err := json.Marshal(value)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to marshal record.")
		return
	}

	_, err = s.db.Exec(
		`INSERT INTO records (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, blob,
	)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to persist record.")
	}
}
