// Package pluginsdk defines the public API between the host gateway and
// channel plugins. The web-chat channel implements Channel and consumes the
// host's routing and reply services through the interfaces declared here.
package pluginsdk

import "context"

// Channel is the interface that all messaging channel plugins must implement.
type Channel interface {
	// Name returns the channel identifier (e.g., "webchat").
	Name() string

	// Start initializes the channel and begins listening for messages.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop() error

	// Send sends a message through the channel.
	Send(ctx context.Context, msg OutgoingMessage) error

	// IsConnected returns whether the channel is currently connected.
	IsConnected() bool

	// StartTyping signals that the bot is processing a response.
	StartTyping(ctx context.Context, recipient string) error

	// StopTyping cancels any active typing indicator.
	StopTyping(ctx context.Context, recipient string) error
}

// OutgoingMessage represents a message to send through a channel.
type OutgoingMessage struct {
	RecipientID string  `json:"recipientId"`
	GroupID     string  `json:"groupId,omitempty"`
	Text        string  `json:"text"`
	Media       []Media `json:"media,omitempty"`
	ReplyToID   string  `json:"replyToId,omitempty"`
}

// Media represents a media attachment.
type Media struct {
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"data,omitempty"`
	MimeType string `json:"mimeType"`
	Filename string `json:"filename,omitempty"`
}
