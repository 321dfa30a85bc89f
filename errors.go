package realmnet

import (
	"errors"

	"github.com/peronio/realmnet/protocol"
)

// Error codes carried by system:error messages.
const (
	CodeInvalidMessage     = protocol.CodeInvalidMessage
	CodeNotAuthenticated   = "NOT_AUTHENTICATED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeUnsupportedChannel = "UNSUPPORTED_CHANNEL"
	CodeInternalError      = "INTERNAL_ERROR"
)

// Close reasons.
const (
	ReasonRateLimited    = "Rate limit exceeded"
	ReasonServerShutdown = "Server shutting down"
	ReasonFrameTooLarge  = "Frame too large"
	ReasonReplaced       = "Logged in from another connection"
)

// Connection errors
var (
	ErrConnectionClosed     = errors.New("connection is closed")
	ErrContextCancelled     = errors.New("connection context cancelled")
	ErrServerAlreadyRunning = errors.New("server already running")
	ErrRegistryClosed       = errors.New("connection registry is closed")
	ErrDuplicateConn        = errors.New("connection already registered")
	ErrNotConnecting        = errors.New("client is not connecting")
)

// Dispatch errors
var (
	ErrDuplicateHandler = errors.New("handler already registered for kind")
	ErrNotClientKind    = errors.New("kind is not a client-origin kind")
)

// ClientError is a handler failure the sender is allowed to see.
type ClientError struct {
	Code    string
	Message string
}

func (e *ClientError) Error() string {
	return e.Code + ": " + e.Message
}

// NewClientError returns a *ClientError.
func NewClientError(code, message string) *ClientError {
	return &ClientError{Code: code, Message: message}
}
