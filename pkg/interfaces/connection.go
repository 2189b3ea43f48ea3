package interfaces

// Peer is the write surface of one live transport session. The coordinator
// and relay deliver through this interface only; the concrete WebSocket
// wrapper lives in internal/ws.
type Peer interface {
	// ID returns the opaque connection id minted at transport establishment.
	ID() string

	// WriteJSON serializes v and queues it for the peer's writer. It must be
	// safe to call from multiple goroutines.
	WriteJSON(v interface{}) error

	// Close tears down the transport. Idempotent.
	Close() error
}
