/*
Package relay contains the core logic of the message relay.

This file defines the Hub, the single event loop of the server. Every
transport event (connect, identify, message, typing, disconnect) is handled to
completion before the next one, so the registry is never mutated concurrently.
*/
package relay

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"dmrelay/internal/identity"
	"dmrelay/internal/pkg/errs"
	"dmrelay/internal/pkg/logx"
)

const inboundChannelBuffer = 1024

// inboundFrame pairs a raw frame with the connection it arrived on.
type inboundFrame struct {
	client *Client
	data   []byte
}

// Hub owns the SessionRegistry and the Router and serializes all state
// mutation through one Run loop.
type Hub struct {
	registry *SessionRegistry
	router   *Router
	verifier identity.Verifier

	// clients is the set of all live connections, bound or not.
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame

	// stopChan signals the Run loop to terminate.
	stopChan chan struct{}
	stopOnce sync.Once

	// wg waits for the Run loop during Shutdown.
	wg sync.WaitGroup

	// structured logger with hub context.
	logger zerolog.Logger
}

// NewHub constructs a Hub using the given identity verifier. Pass
// identity.AcceptAll{} for the demo behavior of trusting every claim.
func NewHub(verifier identity.Verifier) *Hub {
	registry := NewSessionRegistry()

	return &Hub{
		registry:   registry,
		router:     NewRouter(registry),
		verifier:   verifier,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame, inboundChannelBuffer),
		stopChan:   make(chan struct{}),
		logger:     logx.Logger().With().Str("component", "Hub").Logger(),
	}
}

// Registry exposes the session registry for read-only introspection
// (derived presence, health reporting).
func (h *Hub) Registry() *SessionRegistry {
	return h.registry
}

// Start launches the Run loop.
func (h *Hub) Start() {
	h.wg.Add(1)

	go func() {
		defer h.wg.Done()
		h.run()
	}()
}

// Shutdown terminates the Run loop and closes every client's outbound queue.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down hub event loop...")

	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
	h.wg.Wait()

	h.logger.Info().Msg("Hub shutdown complete.")
}

// RegisterClient hands a freshly upgraded connection to the event loop.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.stopChan:
		c.closeSend()
	}
}

// dropClient requests cleanup for a disconnected client. Safe to call more
// than once; cleanup is idempotent.
func (h *Hub) dropClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopChan:
	}
}

// dispatch forwards a raw inbound frame to the event loop.
func (h *Hub) dispatch(c *Client, data []byte) {
	select {
	case h.inbound <- inboundFrame{client: c, data: data}:
	case <-h.stopChan:
	}
}

// run is the single-threaded event loop. Each event is processed fully before
// the next, so no locking is required for routing by construction.
func (h *Hub) run() {
	defer func() {
		for c := range h.clients {
			h.registry.Unbind(c)
			c.closeSend()
		}
		h.clients = make(map[*Client]struct{})

		h.logger.Info().Msg("Hub run loop finished.")
	}()

	h.logger.Info().Msg("Hub run loop started.")

	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Info().Int("total_connections", len(h.clients)).Msg("Connection registered.")

		case client := <-h.unregister:
			h.removeClient(client)

		case frame := <-h.inbound:
			h.handleFrame(frame.client, frame.data)

		case <-h.stopChan:
			h.logger.Info().Msg("Hub stop initiated.")
			return
		}
	}
}

// removeClient unbinds and forgets a connection. Idempotent with respect to
// registry cleanup: unknown clients are a no-op.
func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	h.registry.Unbind(client)
	client.closeSend()

	h.logger.Info().Int("total_connections", len(h.clients)).Msg("Connection unregistered.")
}

// handleFrame decodes and processes one inbound frame.
func (h *Hub) handleFrame(client *Client, data []byte) {
	// The select can process an unregister before frames the same connection
	// already pushed onto the inbound channel. By then the client's send
	// channel is closed, so late frames are dropped: answering one would
	// panic, and a late identify would bind a dead connection.
	if _, ok := h.clients[client]; !ok {
		return
	}

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.logger.Warn().Err(err).Msg("Connection sent invalid JSON frame")
		client.sendError(errs.NewError(errs.ErrInvalidEvent))
		return
	}

	switch frame.Type {
	case EventIdentify:
		h.handleIdentify(client, frame.Payload)

	case EventMessage:
		h.handleMessage(client, frame.Payload)

	case EventTyping:
		h.handleTyping(client, frame.Payload)

	default:
		h.logger.Warn().Str("event_type", string(frame.Type)).Msg("Connection sent unsupported event type")
		client.sendError(errs.NewError(errs.ErrInvalidEvent))
	}
}

// handleIdentify verifies the claimed identity and binds it to the connection.
// A rejected claim leaves the connection registered but unbound, so nothing
// routes to it.
func (h *Hub) handleIdentify(client *Client, payload json.RawMessage) {
	var identify IdentifyPayload
	if err := json.Unmarshal(payload, &identify); err != nil {
		h.logger.Warn().Err(err).Msg("Connection sent invalid identify payload")
		client.sendError(errs.NewError(errs.ErrInvalidPayload))
		return
	}

	if err := h.verifier.Verify(context.Background(), identify.Identity, identify.Token); err != nil {
		h.logger.Warn().Err(err).
			Str("claimed_id", identify.ID).
			Msg("Identity claim rejected by verifier.")
		client.sendError(errs.NewError(errs.ErrIdentityRejected))
		return
	}

	h.registry.Bind(client, identify.Identity)

	h.logger.Info().
		Str("identity_id", identify.ID).
		Str("identity_name", identify.Name).
		Msg("Connection identified.")
}

// handleMessage validates size limits and hands the message to the router.
// The relay does not check that the sender is bound or that From matches the
// binding; identities are unauthenticated by design and the router forwards
// the message unmodified.
func (h *Hub) handleMessage(client *Client, payload json.RawMessage) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		h.logger.Warn().Err(err).Msg("Connection sent invalid message payload")
		client.sendError(errs.NewError(errs.ErrInvalidPayload))
		return
	}

	if len(msg.Text) > MaxTextBytes {
		client.sendError(errs.NewError(errs.ErrMessageTooLong))
		return
	}

	delivered := h.router.Route(msg)

	h.logger.Debug().
		Str("message_id", msg.ID).
		Str("from", msg.From).
		Str("to", msg.To).
		Int("delivered", delivered).
		Msg("Message routed.")
}

// handleTyping relays a typing signal. From is always stamped from the
// sender's binding, so a connection that never identified cannot emit
// attributable typing signals and is rejected.
func (h *Hub) handleTyping(client *Client, payload json.RawMessage) {
	var sig TypingSignal
	if err := json.Unmarshal(payload, &sig); err != nil {
		h.logger.Warn().Err(err).Msg("Connection sent invalid typing payload")
		client.sendError(errs.NewError(errs.ErrInvalidPayload))
		return
	}

	bound, ok := h.registry.Identity(client)
	if !ok {
		client.sendError(errs.NewError(errs.ErrNotIdentified))
		return
	}
	sig.From = bound.ID

	h.relayTyping(sig, client)
}

// relayTyping forwards the signal to every other connection, or, when the
// signal carries a target, only to connections resolving to that identity.
// The origin connection never receives its own signal.
func (h *Hub) relayTyping(sig TypingSignal, origin *Client) {
	frameBytes, err := EncodeFrame(EventTyping, sig)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode typing frame.")
		return
	}

	if sig.To != "" {
		for _, target := range h.registry.Resolve(sig.To) {
			if target != origin {
				target.queueFrame(frameBytes)
			}
		}
		return
	}

	for c := range h.clients {
		if c != origin {
			c.queueFrame(frameBytes)
		}
	}
}
