/*
Package identity contains the data structures and verification seam for user identity.

An Identity is a durable user-level handle, distinct from any transport connection.
It is client-supplied and, in the default configuration, accepted unchecked.
*/
package identity

// Identity represents the basic identity information of a chat participant.
// Fields use JSON tags for serialization in socket frames.
type Identity struct {
	// ID is the unique identifier claimed by the client. Uniqueness is
	// assumed, not enforced.
	ID string `json:"id"`

	// Name is the display name of the user.
	Name string `json:"name"`

	// Avatar is the URL for the user's avatar, if any.
	Avatar string `json:"avatar,omitempty"`
}
