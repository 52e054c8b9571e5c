package chatclient

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"dmrelay/internal/chatclient/store"
	"dmrelay/internal/identity"
	"dmrelay/internal/relay"
)

const testWait = 3 * time.Second

func startRelayServer(t *testing.T) (*relay.Hub, string) {
	t.Helper()

	hub := relay.NewHub(identity.AcceptAll{})
	hub.Start()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		client := relay.NewClient(hub, conn)
		go client.WritePump()
		hub.RegisterClient(client)
		client.ReadPump()
	}))

	t.Cleanup(func() {
		srv.Close()
		hub.Shutdown()
	})

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func openTestStore(t *testing.T, id identity.Identity) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "chat.db"), id)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func newTestManager(t *testing.T, url string, id identity.Identity, reconnect bool) (*Manager, *store.Store) {
	t.Helper()

	st := openTestStore(t, id)
	m := New(Options{
		ServerURL:     url,
		Identity:      id,
		AutoReconnect: reconnect,
	}, st)
	t.Cleanup(m.Close)

	return m, st
}

func waitIdentified(t *testing.T, m *Manager) {
	t.Helper()

	require.Eventually(t, func() bool {
		return m.State() == StateIdentified
	}, testWait, 5*time.Millisecond, "manager never reached Identified")
}

func TestSendWhileDisconnectedQueuesAndEchoes(t *testing.T) {
	m, st := newTestManager(t, "ws://127.0.0.1:1/ws", identity.Identity{ID: "me"}, false)

	msg := m.Send("bob", "composed offline", "")

	// The optimistic echo is appended regardless of connectivity.
	log := st.Conversation("bob")
	require.Len(t, log, 1)
	require.Equal(t, msg, log[0])

	require.Equal(t, 1, m.QueuedCount())
}

func TestOutboundQueueDropsOldestOnOverflow(t *testing.T) {
	m, st := newTestManager(t, "ws://127.0.0.1:1/ws", identity.Identity{ID: "me"}, false)

	ids := make([]string, 0, outboundQueueCap+10)
	for i := 0; i < outboundQueueCap+10; i++ {
		ids = append(ids, m.Send("bob", fmt.Sprintf("m%d", i), "").ID)
	}

	require.Equal(t, outboundQueueCap, m.QueuedCount())

	// Overflow drops from the front: the ten oldest entries are gone, the
	// queue holds exactly the newest outboundQueueCap in FIFO order.
	m.mu.Lock()
	queued := make([]string, len(m.queue))
	for i, msg := range m.queue {
		queued[i] = msg.ID
	}
	m.mu.Unlock()

	require.Equal(t, ids[10:], queued)

	// Dropped from the queue, never from the local log.
	require.Len(t, st.Conversation("bob"), outboundQueueCap+10)
}

func TestSendWriteFailureRequeues(t *testing.T) {
	_, url := startRelayServer(t)

	st := openTestStore(t, identity.Identity{ID: "me"})
	m := New(Options{ServerURL: url, Identity: identity.Identity{ID: "me"}}, st)
	t.Cleanup(m.Close)

	// A connection that is already dead: the next write fails immediately.
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	m.mu.Lock()
	m.conn = conn
	m.state = StateIdentified
	m.mu.Unlock()

	msg := m.Send("bob", "lost write", "")

	require.Equal(t, 1, m.QueuedCount())

	m.mu.Lock()
	queuedID := m.queue[0].ID
	m.mu.Unlock()
	require.Equal(t, msg.ID, queuedID, "a failed write must queue the message for retry")

	// The optimistic echo is unaffected by the transmit failure.
	require.Len(t, st.Conversation("bob"), 1)
}

func TestEndToEndDelivery(t *testing.T) {
	hub, url := startRelayServer(t)

	alice, aliceStore := newTestManager(t, url, identity.Identity{ID: "alice", Name: "Alice"}, false)
	bob, bobStore := newTestManager(t, url, identity.Identity{ID: "bob", Name: "Bob"}, false)

	alice.Connect()
	bob.Connect()
	waitIdentified(t, alice)
	waitIdentified(t, bob)

	require.True(t, hub.Registry().Online("alice"))
	require.True(t, hub.Registry().Online("bob"))

	sent := alice.Send("bob", "hi", "")

	// Alice's own log under key "bob" already holds the message.
	aliceLog := aliceStore.Conversation("bob")
	require.Len(t, aliceLog, 1)
	require.Equal(t, sent, aliceLog[0])

	// Bob receives it with all fields intact, filed under key "alice".
	require.Eventually(t, func() bool {
		return len(bobStore.Conversation("alice")) == 1
	}, testWait, 5*time.Millisecond)

	got := bobStore.Conversation("alice")[0]
	require.Equal(t, "alice", got.From)
	require.Equal(t, "bob", got.To)
	require.Equal(t, "hi", got.Text)
	require.Equal(t, sent.ID, got.ID)
}

func TestQueueDrainedOnIdentify(t *testing.T) {
	_, url := startRelayServer(t)

	bob, bobStore := newTestManager(t, url, identity.Identity{ID: "bob"}, false)
	bob.Connect()
	waitIdentified(t, bob)

	alice, _ := newTestManager(t, url, identity.Identity{ID: "alice"}, false)

	// Composed before the connection exists.
	alice.Send("bob", "queued one", "")
	alice.Send("bob", "queued two", "")
	require.Equal(t, 2, alice.QueuedCount())

	alice.Connect()
	waitIdentified(t, alice)

	require.Eventually(t, func() bool {
		return len(bobStore.Conversation("alice")) == 2
	}, testWait, 5*time.Millisecond, "queued messages must be drained on identify")

	log := bobStore.Conversation("alice")
	require.Equal(t, "queued one", log[0].Text)
	require.Equal(t, "queued two", log[1].Text)
	require.Equal(t, 0, alice.QueuedCount())
}

func TestTypingDispatch(t *testing.T) {
	_, url := startRelayServer(t)

	alice, _ := newTestManager(t, url, identity.Identity{ID: "alice"}, false)
	bob, _ := newTestManager(t, url, identity.Identity{ID: "bob"}, false)

	alice.Connect()
	bob.Connect()
	waitIdentified(t, alice)
	waitIdentified(t, bob)

	bob.SendTyping("alice", true)

	require.Eventually(t, func() bool {
		return alice.TypingState("bob")
	}, testWait, 5*time.Millisecond)

	bob.SendTyping("alice", false)

	require.Eventually(t, func() bool {
		return !alice.TypingState("bob")
	}, testWait, 5*time.Millisecond)
}

func TestCloseCancelsReconnect(t *testing.T) {
	m, _ := newTestManager(t, "ws://127.0.0.1:1/ws", identity.Identity{ID: "me"}, true)

	m.Connect()

	done := make(chan struct{})
	go func() {
		m.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(testWait):
		t.Fatal("Close did not cancel the reconnect loop")
	}

	require.Equal(t, StateDisconnected, m.State())
}

func TestPresenceSimulatorLifecycle(t *testing.T) {
	st := openTestStore(t, identity.Identity{ID: "me"})

	sim := NewPresenceSimulator(st, 10*time.Millisecond)
	sim.Start()

	time.Sleep(50 * time.Millisecond)

	sim.Stop()
	sim.Stop() // idempotent
}
