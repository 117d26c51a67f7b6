package core

import "errors"

// ErrBackpressure is returned by TrySend when the outbound buffer is full.
var ErrBackpressure = errors.New("backpressure")

// Frame is an encoded outbound message.
type Frame []byte

// SessionID identifies one connected client (a browser tab).
type SessionID string

// SignalConnection abstracts the live push transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
