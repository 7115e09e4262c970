package client

import (
	"errors"
	"fmt"
)

var (
	ErrNoEndpointFound   = errors.New("no ipc endpoint completed the handshake")
	ErrHandshakeRejected = errors.New("handshake rejected")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrNotReady          = errors.New("link is not ready")
	ErrRejected          = errors.New("command rejected")
	ErrLinkLost          = errors.New("link lost")
)

// ResponseError carries the data of an ERROR reply. It matches ErrRejected.
type ResponseError struct {
	Code    int
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%v: code %d: %s", ErrRejected, e.Code, e.Message)
}

func (e *ResponseError) Unwrap() error {
	return ErrRejected
}
