/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to
standardize HTTP responses and error frames sent over the socket.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Wire Protocol Errors
	ErrInvalidEvent:   {Code: ErrInvalidEvent, Message: "Unsupported event type."},
	ErrInvalidPayload: {Code: ErrInvalidPayload, Message: "Malformed event payload."},
	ErrMessageTooLong: {Code: ErrMessageTooLong, Message: "Message is too long."},
	ErrNotIdentified:  {Code: ErrNotIdentified, Message: "Identify before sending messages."},

	// 3xxx: Identity Errors
	ErrIdentityRejected: {Code: ErrIdentityRejected, Message: "Identity was rejected."},
	ErrTokenInvalid:     {Code: ErrTokenInvalid, Message: "Invalid or expired token.", Status: http.StatusUnauthorized},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
