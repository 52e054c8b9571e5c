/*
Package relay contains the core logic of the message relay.

This file defines the SessionRegistry, which maps live connections to their
claimed identities and answers the reverse lookup used by the router.
*/
package relay

import (
	"sync"

	"dmrelay/internal/identity"
)

// SessionRegistry records which identity, if any, each live connection has
// claimed. All operations are total functions over the current state: there is
// no validation and no rejection path. Binding is last-write-wins per
// connection, and multiple connections may bind the same identity ID; Resolve
// returns all of them.
//
// Mutation happens only from the hub's event loop, so writes are already
// serialized; the mutex exists for readers (Online, Snapshot) called from
// handler goroutines.
type SessionRegistry struct {
	mu sync.RWMutex

	// bindings maps each connection to its bound identity.
	bindings map[*Client]identity.Identity

	// byID indexes connections by bound identity ID for Resolve.
	byID map[string]map[*Client]struct{}
}

// NewSessionRegistry constructs an empty SessionRegistry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		bindings: make(map[*Client]identity.Identity),
		byID:     make(map[string]map[*Client]struct{}),
	}
}

// Bind records the identity for a connection, overwriting any prior binding.
func (r *SessionRegistry) Bind(c *Client, id identity.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.bindings[c]; ok {
		r.removeIndexLocked(prev.ID, c)
	}

	r.bindings[c] = id

	set := r.byID[id.ID]
	if set == nil {
		set = make(map[*Client]struct{})
		r.byID[id.ID] = set
	}
	set[c] = struct{}{}
}

// Resolve returns every live connection whose bound identity ID equals the
// argument. The slice is empty when nothing matches, including when no
// identify was ever received for that ID.
func (r *SessionRegistry) Resolve(identityID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byID[identityID]
	if len(set) == 0 {
		return nil
	}

	conns := make([]*Client, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

// Unbind removes all registry entries for a connection. It is idempotent:
// unbinding an unknown connection is a no-op.
func (r *SessionRegistry) Unbind(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.bindings[c]
	if !ok {
		return
	}

	delete(r.bindings, c)
	r.removeIndexLocked(prev.ID, c)
}

// Identity returns the identity bound to the connection and whether one exists.
func (r *SessionRegistry) Identity(c *Client) (identity.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bindings[c]
	return id, ok
}

// Online reports whether at least one live connection is bound to the identity
// ID. This is the registry-derived notion of presence.
func (r *SessionRegistry) Online(identityID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byID[identityID]) > 0
}

// Snapshot returns the distinct identities currently bound, in no particular order.
func (r *SessionRegistry) Snapshot() []identity.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.byID))
	ids := make([]identity.Identity, 0, len(r.byID))

	for _, id := range r.bindings {
		if _, ok := seen[id.ID]; ok {
			continue
		}
		seen[id.ID] = struct{}{}
		ids = append(ids, id)
	}

	return ids
}

// removeIndexLocked drops the connection from the byID index, pruning empty sets.
func (r *SessionRegistry) removeIndexLocked(identityID string, c *Client) {
	set := r.byID[identityID]
	if set == nil {
		return
	}

	delete(set, c)
	if len(set) == 0 {
		delete(r.byID, identityID)
	}
}
