package pluginsdk

// Peer identifies the remote side of a conversation.
type Peer struct {
	// Kind is "dm" for direct conversations or "group" for group chats.
	Kind string `json:"kind"`
	// ID is the peer's channel-native identifier (user id for DMs, chat id
	// for groups).
	ID string `json:"id"`
}

// AgentRoute is the host's answer to "which agent session handles this peer".
type AgentRoute struct {
	SessionKey string `json:"sessionKey"`
	AccountID  string `json:"accountId"`
}

// RouteResolver resolves an inbound conversation to an agent session.
// It is implemented by the host runtime.
type RouteResolver interface {
	ResolveAgentRoute(channel string, peer Peer) (AgentRoute, error)
}
