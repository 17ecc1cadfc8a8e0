package stream

import "context"

// Handle identifies a live transport-level stream. Handles are opaque to the
// supervisor; it only holds them to stop the stream later.
type Handle string

// Transport is the persistent push-connection collaborator. Implementations
// must deliver frames to onMessage in arrival order, one at a time per
// stream, and keep the low-level connection alive (ping/pong keepalive and
// automatic reconnection) beneath the logical handle.
type Transport interface {
	// Start opens the stream at path. An error means no handle was created
	// and the caller may retry.
	Start(path string, onMessage func(raw []byte)) (Handle, error)

	// Stop tears down one stream.
	Stop(h Handle) error

	// StartEventLoop makes the transport ready to open streams.
	StartEventLoop()

	// StopEventLoop tears down every stream and the background machinery.
	StopEventLoop()
}

// ListenKeySource supplies the authenticated listen key needed to open the
// user-data stream.
type ListenKeySource interface {
	ListenKey(ctx context.Context) (string, error)
}
