/*
Package relay contains the core logic of the message relay.

This file defines the Router, which resolves a message's destination identity
through the SessionRegistry and forwards the message to every matching
connection.
*/
package relay

import (
	"github.com/rs/zerolog"

	"dmrelay/internal/pkg/logx"
)

// Router forwards messages point-to-point. Delivery is best-effort,
// at-most-once: an unresolvable recipient is a silent drop, never an error.
// The Router is invoked only from the hub event loop, so messages from one
// sender to one recipient are forwarded in the order they arrive.
type Router struct {
	registry *SessionRegistry
	logger   zerolog.Logger
}

// NewRouter constructs a Router over the given registry.
func NewRouter(registry *SessionRegistry) *Router {
	return &Router{
		registry: registry,
		logger:   logx.Logger().With().Str("component", "Router").Logger(),
	}
}

// Route forwards msg unmodified to every connection bound to msg.To and
// returns how many connections it was queued to. The sender's own connection
// is not excluded: a self-addressed message resolves to the sender like any
// other recipient. No acknowledgment, no retry, no buffering for offline
// recipients.
func (rt *Router) Route(msg Message) int {
	targets := rt.registry.Resolve(msg.To)
	if len(targets) == 0 {
		rt.logger.Debug().
			Str("message_id", msg.ID).
			Str("to", msg.To).
			Msg("No live connection for recipient, dropping message.")
		return 0
	}

	frameBytes, err := EncodeFrame(EventMessage, msg)
	if err != nil {
		rt.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to encode message frame.")
		return 0
	}

	delivered := 0
	for _, target := range targets {
		if target.queueFrame(frameBytes) {
			delivered++
		}
	}

	return delivered
}
