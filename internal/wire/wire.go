// Package wire defines the native web-chat wire format: the normalized
// message event every adapter produces, the outbound send envelope, and a
// tagged classification of raw inbound payloads so malformed data is rejected
// before any field access.
package wire

import "encoding/json"

// MessageEvent is the adapter-agnostic representation of an inbound chat
// message. All protocol adapters normalize into this form.
type MessageEvent struct {
	MessageID   string `json:"messageId"`
	ChatID      string `json:"chatId"`
	SenderID    string `json:"senderId"`
	SenderName  string `json:"senderName"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"` // "text" | "image" | "file"
	Timestamp   int64  `json:"timestamp"`   // milliseconds
	IsDirect    bool   `json:"isDirect,omitempty"`
	ReplyTo     string `json:"replyTo,omitempty"`
}

// SendRequest is the payload of an outbound send.
type SendRequest struct {
	ChatID      string `json:"chatId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType,omitempty"`
	ReplyTo     string `json:"replyTo,omitempty"`
}

// SendResponse is the result of an outbound send, either echoed by the peer
// (native protocol) or synthesized locally (ruyuan, timeouts).
type SendResponse struct {
	RequestID string `json:"requestId,omitempty"`
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Envelope wraps an outbound send request on the native protocol.
type Envelope struct {
	Type      string      `json:"type"`
	RequestID string      `json:"requestId"`
	Data      SendRequest `json:"data"`
}

// EnvelopeTypeSendMessage is the only envelope type the native protocol
// defines for client-to-server traffic.
const EnvelopeTypeSendMessage = "send_message"

// Kind tags the result of classifying a raw inbound payload.
type Kind int

const (
	KindUnknown Kind = iota
	KindSendAck
	KindEvent
	KindRuyuanCommand
)

// probe carries just enough fields to classify a payload without trusting it.
type probe struct {
	RequestID string           `json:"requestId"`
	MessageID json.RawMessage  `json:"messageId"`
	ChatID    json.RawMessage  `json:"chatId"`
	Content   *string          `json:"content"`
	UserID    *json.Number     `json:"userId"`
	Client    *json.Number     `json:"client"`
	Type      *json.Number     `json:"type"`
	Body      *json.RawMessage `json:"body"`
}

// Classify decides what a raw inbound payload is. For send acks and events it
// also returns the decoded value; ruyuan commands are decoded by the ruyuan
// package. Anything that does not parse, or parses but matches no shape,
// classifies as KindUnknown.
func Classify(raw []byte) (Kind, *SendResponse, *MessageEvent) {
	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return KindUnknown, nil, nil
	}

	if p.UserID != nil && p.Client != nil && p.Type != nil && p.Body != nil {
		return KindRuyuanCommand, nil, nil
	}

	if p.RequestID != "" {
		var ack SendResponse
		if err := json.Unmarshal(raw, &ack); err != nil {
			return KindUnknown, nil, nil
		}
		return KindSendAck, &ack, nil
	}

	if len(p.MessageID) > 0 && len(p.ChatID) > 0 && p.Content != nil {
		var ev MessageEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return KindUnknown, nil, nil
		}
		return KindEvent, nil, &ev
	}

	return KindUnknown, nil, nil
}
