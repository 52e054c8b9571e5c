package relay

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dmrelay/internal/identity"
)

func TestRegistryBindResolve(t *testing.T) {
	reg := NewSessionRegistry()

	a := &Client{send: make(chan []byte, 1)}
	b := &Client{send: make(chan []byte, 1)}

	require.Empty(t, reg.Resolve("alice"), "resolve before any bind must be empty")

	reg.Bind(a, identity.Identity{ID: "alice", Name: "Alice"})
	reg.Bind(b, identity.Identity{ID: "bob", Name: "Bob"})

	matches := reg.Resolve("alice")
	require.Len(t, matches, 1)
	require.Same(t, a, matches[0])

	require.True(t, reg.Online("alice"))
	require.False(t, reg.Online("carol"))
}

func TestRegistryRebindOverwrites(t *testing.T) {
	reg := NewSessionRegistry()
	c := &Client{send: make(chan []byte, 1)}

	reg.Bind(c, identity.Identity{ID: "alice"})
	reg.Bind(c, identity.Identity{ID: "alice2"})

	require.Empty(t, reg.Resolve("alice"), "old binding must not survive a rebind")
	require.Len(t, reg.Resolve("alice2"), 1)

	bound, ok := reg.Identity(c)
	require.True(t, ok)
	require.Equal(t, "alice2", bound.ID)
}

func TestRegistryDuplicateIdentity(t *testing.T) {
	reg := NewSessionRegistry()

	c1 := &Client{send: make(chan []byte, 1)}
	c2 := &Client{send: make(chan []byte, 1)}

	reg.Bind(c1, identity.Identity{ID: "alice"})
	reg.Bind(c2, identity.Identity{ID: "alice"})

	// Last-bind-wins applies per connection; both connections stay resolvable.
	require.Len(t, reg.Resolve("alice"), 2)

	reg.Unbind(c1)
	matches := reg.Resolve("alice")
	require.Len(t, matches, 1)
	require.Same(t, c2, matches[0])
}

func TestRegistryUnbindIdempotent(t *testing.T) {
	reg := NewSessionRegistry()
	c := &Client{send: make(chan []byte, 1)}

	reg.Bind(c, identity.Identity{ID: "alice"})

	reg.Unbind(c)
	reg.Unbind(c)

	require.Empty(t, reg.Resolve("alice"))
	require.False(t, reg.Online("alice"))

	_, ok := reg.Identity(c)
	require.False(t, ok)

	// Unbinding a connection that never bound is a no-op.
	reg.Unbind(&Client{send: make(chan []byte, 1)})
}

func TestRegistrySnapshotDistinct(t *testing.T) {
	reg := NewSessionRegistry()

	c1 := &Client{send: make(chan []byte, 1)}
	c2 := &Client{send: make(chan []byte, 1)}
	c3 := &Client{send: make(chan []byte, 1)}

	reg.Bind(c1, identity.Identity{ID: "alice", Name: "Alice"})
	reg.Bind(c2, identity.Identity{ID: "alice", Name: "Alice"})
	reg.Bind(c3, identity.Identity{ID: "bob", Name: "Bob"})

	snapshot := reg.Snapshot()
	require.Len(t, snapshot, 2, "snapshot must deduplicate identity ids")
}
