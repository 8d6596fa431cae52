package main

// Conn is one client channel. It is the unit of identity for room
// membership and disconnect cleanup; the transport owns its lifetime.
type Conn interface {
	ID() string
	// Send enqueues a frame without blocking.
	Send(data []byte) error
	Close() error
}
