package identity

import "context"

// Verifier decides whether a claimed identity may be bound to a connection.
// The relay invokes it once per identify frame, before binding. Implementations
// must treat a nil error as accept.
type Verifier interface {
	Verify(ctx context.Context, claimed Identity, token string) error
}

// AcceptAll is the demo default Verifier: every claim is accepted, including
// an empty token. It keeps the verification seam in place without enforcing
// anything.
type AcceptAll struct{}

// Verify always accepts the claimed identity.
func (AcceptAll) Verify(ctx context.Context, claimed Identity, token string) error {
	return nil
}
