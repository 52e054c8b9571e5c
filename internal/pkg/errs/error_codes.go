/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific relay or request errors both internally
and in frames sent back to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1002
)

// 2xxx: Wire Protocol Errors
const (
	// ErrInvalidEvent indicates an inbound frame with an unknown or malformed event type.
	ErrInvalidEvent = 2001

	// ErrInvalidPayload indicates an inbound frame whose payload failed to decode.
	ErrInvalidPayload = 2002

	// ErrMessageTooLong indicates that the message text exceeded the maximum length limit.
	ErrMessageTooLong = 2003

	// ErrNotIdentified indicates a message or typing frame sent before identify.
	ErrNotIdentified = 2004
)

// 3xxx: Identity Errors
const (
	// ErrIdentityRejected indicates the identity verifier refused the claimed identity.
	ErrIdentityRejected = 3001

	// ErrTokenInvalid indicates a token that failed to parse or validate.
	ErrTokenInvalid = 3002
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
