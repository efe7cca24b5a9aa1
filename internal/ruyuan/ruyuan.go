// Package ruyuan implements the Ruyuan-IM protocol adapter: pure, stateless
// translation between the normalized web-chat types and Ruyuan's JSON command
// format, plus per-connection adapter state (online flag, sequence counter).
package ruyuan

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/highclaw/webchat-channel/internal/wire"
)

// CommandType enumerates Ruyuan command codes.
type CommandType int

const (
	CommandError        CommandType = 0
	CommandRegister     CommandType = 1
	CommandHeartbeat    CommandType = 2
	CommandOnline       CommandType = 3
	CommandOffline      CommandType = 4
	CommandMessageSend  CommandType = 5
	CommandMessagePush  CommandType = 6
	CommandMessageAck   CommandType = 7
	CommandMessageFetch CommandType = 8
)

// ChatType enumerates Ruyuan conversation kinds.
type ChatType int

const (
	ChatTypeC2C ChatType = 1 // direct
	ChatTypeC2G ChatType = 2 // group
)

// MessageTypeText is the only message type this adapter emits.
const MessageTypeText = 1

// Command is the Ruyuan wire frame. Body holds a command-specific payload.
type Command struct {
	UserID int64           `json:"userId"`
	Client int             `json:"client"`
	Type   CommandType     `json:"type"`
	Body   json.RawMessage `json:"body"`
}

// OnlineBody is the ONLINE request payload.
type OnlineBody struct {
	Token string `json:"token"`
}

// SendBody is the MESSAGE_SEND payload.
type SendBody struct {
	MessageID   int64    `json:"messageId"`
	ChatType    ChatType `json:"chatType"`
	FromID      int64    `json:"fromId"`
	ToID        int64    `json:"toId"`
	ChatID      int64    `json:"chatId"`
	MessageType int      `json:"messageType"`
	Content     string   `json:"content"`
	Sequence    int64    `json:"sequence"`
	Timestamp   int64    `json:"timestamp"` // seconds
}

// PushBody is the MESSAGE_PUSH payload.
type PushBody struct {
	ChatType    ChatType `json:"chatType"`
	FromID      int64    `json:"fromId"`
	ChatID      int64    `json:"chatId"`
	MessageID   int64    `json:"messageId"`
	MessageType int      `json:"messageType"`
	Content     string   `json:"content"`
	Sequence    int64    `json:"sequence"`
	Timestamp   int64    `json:"timestamp"` // seconds
}

// AckBody is the MESSAGE_ACK payload.
type AckBody struct {
	ChatType  ChatType `json:"chatType"`
	ClientID  int      `json:"clientId"`
	ChatID    int64    `json:"chatId"`
	MemberID  int64    `json:"memberId"`
	MessageID int64    `json:"messageId"`
}

// FetchOfflineBody is the MESSAGE_FETCH payload.
type FetchOfflineBody struct {
	ChatType      ChatType `json:"chatType"`
	MemberID      int64    `json:"memberId"`
	ChatID        int64    `json:"chatId"`
	ClientID      int      `json:"clientId"`
	LastMessageID int64    `json:"lastMessageId"`
}

// Decode parses a raw frame into a Command.
func Decode(raw []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, fmt.Errorf("decode ruyuan command: %w", err)
	}
	return &cmd, nil
}

// NameResolver maps a numeric user id to a display name.
type NameResolver func(userID int64) string

// FromPush converts a MESSAGE_PUSH command into a normalized event. Ruyuan
// timestamps are seconds; the normalized form uses milliseconds. When resolver
// is nil a synthetic "User_<id>" display name is substituted. The protocol has
// no reply concept, so ReplyTo is always empty.
func FromPush(cmd *Command, resolver NameResolver) (wire.MessageEvent, error) {
	if cmd.Type != CommandMessagePush {
		return wire.MessageEvent{}, fmt.Errorf("not a MESSAGE_PUSH command: %s", CommandTypeName(cmd.Type))
	}
	var body PushBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return wire.MessageEvent{}, fmt.Errorf("decode push body: %w", err)
	}

	senderName := fmt.Sprintf("User_%d", body.FromID)
	if resolver != nil {
		senderName = resolver(body.FromID)
	}

	messageType := "unknown"
	if body.MessageType == MessageTypeText {
		messageType = "text"
	}

	return wire.MessageEvent{
		MessageID:   strconv.FormatInt(body.MessageID, 10),
		ChatID:      strconv.FormatInt(body.ChatID, 10),
		SenderID:    strconv.FormatInt(body.FromID, 10),
		SenderName:  senderName,
		Content:     body.Content,
		MessageType: messageType,
		Timestamp:   body.Timestamp * 1000,
		IsDirect:    body.ChatType == ChatTypeC2C,
	}, nil
}

// ToSendCommand converts a normalized send request into a MESSAGE_SEND
// command. A "group:" prefix on the chat id selects group chat; anything else
// is direct. The chat id must parse to a number after prefix stripping.
func ToSendCommand(req wire.SendRequest, userID int64, clientType int, sequence int64) (Command, *SendBody, error) {
	chatID := req.ChatID
	chatType := ChatTypeC2C
	if strings.HasPrefix(chatID, "group:") {
		chatID = strings.TrimPrefix(chatID, "group:")
		chatType = ChatTypeC2G
	}

	numericChatID, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return Command{}, nil, fmt.Errorf("ruyuan chat id %q is not numeric: %w", req.ChatID, err)
	}

	body := SendBody{
		MessageID:   time.Now().UnixMilli(),
		ChatType:    chatType,
		FromID:      userID,
		ToID:        numericChatID,
		ChatID:      numericChatID,
		MessageType: MessageTypeText,
		Content:     req.Content,
		Sequence:    sequence,
		Timestamp:   time.Now().Unix(),
	}

	return newCommand(userID, clientType, CommandMessageSend, body), &body, nil
}

// OnlineCommand builds the ONLINE handshake request.
func OnlineCommand(userID int64, clientType int, token string) Command {
	return newCommand(userID, clientType, CommandOnline, OnlineBody{Token: token})
}

// HeartbeatCommand builds a HEARTBEAT request.
func HeartbeatCommand(userID int64, clientType int) Command {
	return newCommand(userID, clientType, CommandHeartbeat, struct{}{})
}

// AckCommand builds a MESSAGE_ACK request.
func AckCommand(userID int64, clientType int, messageID, chatID int64, chatType ChatType) Command {
	return newCommand(userID, clientType, CommandMessageAck, AckBody{
		ChatType:  chatType,
		ClientID:  clientType,
		ChatID:    chatID,
		MemberID:  userID,
		MessageID: messageID,
	})
}

// FetchOfflineCommand builds a MESSAGE_FETCH request for messages after
// lastMessageID.
func FetchOfflineCommand(userID int64, clientType int, chatID, lastMessageID int64, chatType ChatType) Command {
	return newCommand(userID, clientType, CommandMessageFetch, FetchOfflineBody{
		ChatType:      chatType,
		MemberID:      userID,
		ChatID:        chatID,
		ClientID:      clientType,
		LastMessageID: lastMessageID,
	})
}

func newCommand(userID int64, clientType int, typ CommandType, body any) Command {
	raw, _ := json.Marshal(body)
	return Command{UserID: userID, Client: clientType, Type: typ, Body: raw}
}

var commandTypeNames = map[CommandType]string{
	CommandError:        "ERROR",
	CommandRegister:     "REGISTER",
	CommandHeartbeat:    "HEARTBEAT",
	CommandOnline:       "ONLINE",
	CommandOffline:      "OFFLINE",
	CommandMessageSend:  "MESSAGE_SEND",
	CommandMessagePush:  "MESSAGE_PUSH",
	CommandMessageAck:   "MESSAGE_ACK",
	CommandMessageFetch: "MESSAGE_FETCH",
}

// CommandTypeName returns a diagnostic name for a command code. Unknown codes
// format as UNKNOWN(<n>) rather than failing.
func CommandTypeName(typ CommandType) string {
	if name, ok := commandTypeNames[typ]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(typ))
}

// ChatTypeName returns a diagnostic name for a chat type code.
func ChatTypeName(typ ChatType) string {
	switch typ {
	case ChatTypeC2C:
		return "C2C"
	case ChatTypeC2G:
		return "C2G"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(typ))
	}
}

// State is the per-connection Ruyuan sub-state: identity, online flag, and a
// monotonically increasing sequence counter that is never reused.
type State struct {
	UserID     int64
	ClientType int
	Token      string

	online atomic.Bool
	seq    atomic.Int64
}

// NewState initializes adapter state from account configuration. A zero
// clientType defaults to 1 (web).
func NewState(userID int64, clientType int, token string) *State {
	if clientType == 0 {
		clientType = 1
	}
	return &State{UserID: userID, ClientType: clientType, Token: token}
}

// NextSequence returns the next outbound sequence number.
func (s *State) NextSequence() int64 {
	return s.seq.Add(1)
}

// Online reports whether the ONLINE handshake has completed.
func (s *State) Online() bool {
	return s.online.Load()
}

// SetOnline records handshake state.
func (s *State) SetOnline(v bool) {
	s.online.Store(v)
}
