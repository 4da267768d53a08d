package transport

import (
	"context"
	"errors"
)

// ErrNoDevices is returned when no ANT stick could be opened.
var ErrNoDevices = errors.New("no ANT devices available")

var errNotConnected = errors.New("transport is not connected")

// Transport moves ANT message payloads (id + data) to and from a stick.
// Framing and checksums are handled by the implementation.
type Transport interface {
	Name() string
	Connect(ctx context.Context) error
	Close() error
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, payload []byte) error
}

type StatusTargetResolver interface {
	StatusTarget() string
}
