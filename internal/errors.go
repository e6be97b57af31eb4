package gateway

import "errors"

// Sentinel errors returned by pipeline components below the envelope
// boundary. The pipeline driver turns these into envelopes before they ever
// reach a transport; they are used internally for control flow and in
// tests.
var (
	ErrValidation    = errors.New("gateway: validation failed")
	ErrCircuitOpen   = errors.New("gateway: circuit breaker open")
	ErrGlobalLimit   = errors.New("gateway: global rate limit exceeded")
	ErrChatLimit     = errors.New("gateway: per-destination rate limit exceeded")
	ErrUploadFailed  = errors.New("gateway: upload preparation failed")
	ErrMethodUnknown = errors.New("gateway: method not found")
)
