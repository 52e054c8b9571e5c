/*
Package chatclient implements the client-side connection manager: the single
outbound connection, the identify handshake, reconnection, and dispatch of
inbound events into the session store.
*/
package chatclient

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"dmrelay/internal/chatclient/store"
	"dmrelay/internal/identity"
	"dmrelay/internal/pkg/logx"
	"dmrelay/internal/relay"
)

// State names the connection manager's position in its lifecycle.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateIdentified   State = "identified"
)

const (
	// reconnectBaseDelay is the first backoff interval after a failed dial.
	reconnectBaseDelay = 500 * time.Millisecond

	// reconnectMaxDelay caps the exponential backoff.
	reconnectMaxDelay = 30 * time.Second

	// outboundQueueCap bounds the queue of messages composed while not
	// identified. Overflow drops the oldest entry.
	outboundQueueCap = 64

	// clientWriteWait is the write deadline for outbound frames.
	clientWriteWait = 10 * time.Second
)

// Options configures a Manager.
type Options struct {
	// ServerURL is the websocket endpoint, e.g. "ws://localhost:3000/ws".
	ServerURL string

	// Identity is the local identity sent in the identify handshake.
	Identity identity.Identity

	// Token is the optional signed identity token for token-mode servers.
	Token string

	// AutoReconnect re-dials with exponential backoff after transport loss.
	AutoReconnect bool

	// OnMessage, OnTyping and OnError are optional callbacks invoked from the
	// read goroutine after the store has been updated.
	OnMessage func(relay.Message)
	OnTyping  func(relay.TypingSignal)
	OnError   func(relay.ErrorPayload)
}

// Manager owns the single outbound connection and its state machine:
// Disconnected -> Connecting -> Identified -> Disconnected, looping through
// Connecting again while auto-reconnect is enabled.
type Manager struct {
	opts  Options
	store *store.Store

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	queue   []relay.Message
	typing  map[string]bool
	started bool

	// writeMu serializes frame writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	presence *PresenceSimulator

	logger zerolog.Logger
}

// New constructs a Manager over an opened session store.
func New(opts Options, st *store.Store) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		opts:   opts,
		store:  st,
		state:  StateDisconnected,
		typing: make(map[string]bool),
		ctx:    ctx,
		cancel: cancel,
		logger: logx.Logger().With().
			Str("component", "ConnectionManager").
			Str("local_id", opts.Identity.ID).
			Logger(),
	}
}

// Connect starts the background connect/reconnect loop. Calling it twice is a no-op.
func (m *Manager) Connect() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run()
	}()
}

// Close tears the manager down: it cancels any reconnect attempt, stops the
// presence simulator, closes the live connection, and waits for the loop to exit.
func (m *Manager) Close() {
	m.cancel()

	if m.presence != nil {
		m.presence.Stop()
	}

	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// TypingState reports whether the given peer is currently marked as typing.
func (m *Manager) TypingState(peerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.typing[peerID]
}

// QueuedCount returns how many composed messages await transmission.
func (m *Manager) QueuedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.queue)
}

// StartPresenceSimulation starts the randomized presence ticker. It is
// stopped by Close.
func (m *Manager) StartPresenceSimulation(interval time.Duration) {
	if m.presence != nil {
		return
	}

	m.presence = NewPresenceSimulator(m.store, interval)
	m.presence.Start()
}

// Send appends the message to the local log first (optimistic echo, always
// synchronous), then transmits it if identified. While not identified the
// message joins the bounded outbound queue, which is drained in FIFO order on
// the next transition to Identified; when the queue is full the oldest entry
// is dropped. A write failure on a live connection queues the message the same
// way, so it is retried on the next connection instead of lost.
func (m *Manager) Send(peerID, text, fileName string) relay.Message {
	msg := m.store.AppendOutgoing(peerID, text, fileName)

	m.mu.Lock()
	conn := m.conn
	identified := m.state == StateIdentified && conn != nil
	if !identified {
		m.enqueueLocked(msg)
	}
	m.mu.Unlock()

	if identified {
		if err := m.writeFrame(conn, relay.EventMessage, msg); err != nil {
			m.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("Failed to transmit message, queueing for retry.")

			m.mu.Lock()
			m.enqueueLocked(msg)
			m.mu.Unlock()
		}
	}

	return msg
}

// enqueueLocked appends to the bounded outbound queue, dropping the oldest
// entry on overflow. The caller holds mu.
func (m *Manager) enqueueLocked(msg relay.Message) {
	if len(m.queue) >= outboundQueueCap {
		dropped := m.queue[0]
		m.queue = m.queue[1:]
		m.logger.Warn().Str("message_id", dropped.ID).Msg("Outbound queue full, dropping oldest message.")
	}
	m.queue = append(m.queue, msg)
}

// SendTyping transmits a typing signal for the given peer. Signals are
// fire-and-forget: while not identified they are simply dropped.
func (m *Manager) SendTyping(peerID string, isTyping bool) {
	m.mu.Lock()
	conn := m.conn
	identified := m.state == StateIdentified && conn != nil
	m.mu.Unlock()

	if !identified {
		return
	}

	sig := relay.TypingSignal{To: peerID, IsTyping: isTyping}
	if err := m.writeFrame(conn, relay.EventTyping, sig); err != nil {
		m.logger.Debug().Err(err).Msg("Failed to transmit typing signal.")
	}
}

// run is the connect/reconnect loop.
func (m *Manager) run() {
	delay := reconnectBaseDelay

	for {
		m.setState(StateConnecting)

		conn, _, err := websocket.DefaultDialer.DialContext(m.ctx, m.opts.ServerURL, nil)
		if err != nil {
			m.setState(StateDisconnected)

			if m.ctx.Err() != nil || !m.opts.AutoReconnect {
				return
			}

			m.logger.Info().Err(err).Dur("retry_in", delay).Msg("Dial failed, backing off.")

			select {
			case <-m.ctx.Done():
				return
			case <-time.After(delay):
			}

			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}

		delay = reconnectBaseDelay

		m.mu.Lock()
		m.conn = conn
		m.mu.Unlock()

		if err := m.identify(conn); err != nil {
			m.logger.Warn().Err(err).Msg("Identify handshake failed.")
			conn.Close()
		} else {
			m.setState(StateIdentified)
			m.logger.Info().Msg("Identified with relay.")

			m.drainQueue(conn)
			m.readLoop(conn)
		}

		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		m.setState(StateDisconnected)

		if m.ctx.Err() != nil || !m.opts.AutoReconnect {
			return
		}
	}
}

// identify sends the identify handshake with the local identity.
func (m *Manager) identify(conn *websocket.Conn) error {
	payload := relay.IdentifyPayload{
		Identity: m.opts.Identity,
		Token:    m.opts.Token,
	}

	return m.writeFrame(conn, relay.EventIdentify, payload)
}

// drainQueue transmits queued messages in FIFO order. On a write failure the
// untransmitted remainder stays queued for the next connection.
func (m *Manager) drainQueue(conn *websocket.Conn) {
	m.mu.Lock()
	pending := m.queue
	m.queue = nil
	m.mu.Unlock()

	for i, msg := range pending {
		if err := m.writeFrame(conn, relay.EventMessage, msg); err != nil {
			m.logger.Warn().Err(err).Int("remaining", len(pending)-i).Msg("Queue drain interrupted.")

			m.mu.Lock()
			m.queue = append(pending[i:], m.queue...)
			m.mu.Unlock()
			return
		}
	}

	if len(pending) > 0 {
		m.logger.Info().Int("count", len(pending)).Msg("Drained outbound queue.")
	}
}

// readLoop dispatches inbound frames until the connection drops.
func (m *Manager) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.logger.Info().Err(err).Msg("Connection lost.")
			return
		}

		var frame relay.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			m.logger.Warn().Err(err).Msg("Server sent invalid frame.")
			continue
		}

		switch frame.Type {
		case relay.EventMessage:
			var msg relay.Message
			if err := json.Unmarshal(frame.Payload, &msg); err != nil {
				m.logger.Warn().Err(err).Msg("Server sent invalid message payload.")
				continue
			}

			m.store.AppendIncoming(msg)

			if m.opts.OnMessage != nil {
				m.opts.OnMessage(msg)
			}

		case relay.EventTyping:
			var sig relay.TypingSignal
			if err := json.Unmarshal(frame.Payload, &sig); err != nil {
				m.logger.Warn().Err(err).Msg("Server sent invalid typing payload.")
				continue
			}

			m.mu.Lock()
			m.typing[sig.From] = sig.IsTyping
			m.mu.Unlock()

			if m.opts.OnTyping != nil {
				m.opts.OnTyping(sig)
			}

		case relay.EventError:
			var errPayload relay.ErrorPayload
			if err := json.Unmarshal(frame.Payload, &errPayload); err != nil {
				m.logger.Warn().Err(err).Msg("Server sent invalid error payload.")
				continue
			}

			m.logger.Warn().
				Int("code", errPayload.Code).
				Str("message", errPayload.Message).
				Msg("Relay reported an error.")

			if m.opts.OnError != nil {
				m.opts.OnError(errPayload)
			}

		default:
			m.logger.Debug().Str("event_type", string(frame.Type)).Msg("Ignoring unknown inbound event.")
		}
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) writeFrame(conn *websocket.Conn, eventType relay.EventType, payload any) error {
	frameBytes, err := relay.EncodeFrame(eventType, payload)
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
	return conn.WriteMessage(websocket.TextMessage, frameBytes)
}
