package ipc

import "errors"

var (
	// ErrMalformedFrame covers short reads, length mismatches and payloads
	// that are not a JSON object.
	ErrMalformedFrame = errors.New("ipc: malformed frame")
	// ErrOversizedFrame is returned for a declared length of 0 or above MaxPayloadSize.
	ErrOversizedFrame = errors.New("ipc: frame length out of bounds")
	// ErrInvalidPayload is returned when a payload cannot be encoded as JSON.
	ErrInvalidPayload = errors.New("ipc: invalid payload")
	ErrClosed         = errors.New("ipc: connection closed")
)
