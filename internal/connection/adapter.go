package connection

// adapter is the protocol-specific strategy plugged into a Conn. The state
// machine itself is adapter-agnostic; adapters decide how a connection
// becomes ready, how inbound frames are interpreted, and how sends are
// encoded and acknowledged.
type adapter interface {
	// name identifies the adapter for diagnostics ("native" | "ruyuan").
	name() string

	// onOpen runs after the transport connects. Native marks the connection
	// ready immediately; ruyuan starts its ONLINE handshake instead.
	onOpen(c *Conn)

	// onMessage interprets one inbound frame. Malformed payloads are logged
	// and dropped, never fatal to the connection.
	onMessage(c *Conn, raw []byte)

	// onClose runs when the transport drops or the connection is closed;
	// adapters clear their timers and sub-state here.
	onClose(c *Conn)

	// encodeSend transmits one outbound request and arranges for its result
	// channel to be resolved exactly once.
	encodeSend(c *Conn, item queuedSend)

	// online reports adapter-level session state (always true for native
	// once connected; the ONLINE ack state for ruyuan).
	online() bool
}
