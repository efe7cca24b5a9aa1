package pluginsdk

import (
	"context"
	"strings"
	"sync"
	"time"
)

// ReplyPayload is one unit of agent output to deliver back to the channel.
type ReplyPayload struct {
	Text string `json:"text"`
}

// DeliverFunc delivers a reply payload to the originating chat surface.
type DeliverFunc func(ctx context.Context, payload ReplyPayload) error

// ReplyDispatcher serializes reply delivery for one inbound message. Delivery
// errors are routed to the onError callback instead of aborting the dispatch.
type ReplyDispatcher struct {
	deliver DeliverFunc
	onError func(err error)
	onIdle  func()

	mu         sync.Mutex
	finalCount int
	idle       bool
}

// NewReplyDispatcher creates a dispatcher around a deliver function. onError
// and onIdle may be nil.
func NewReplyDispatcher(deliver DeliverFunc, onError func(error), onIdle func()) *ReplyDispatcher {
	return &ReplyDispatcher{deliver: deliver, onError: onError, onIdle: onIdle}
}

// Dispatch delivers one payload. Empty payloads are skipped.
func (d *ReplyDispatcher) Dispatch(ctx context.Context, payload ReplyPayload) error {
	if strings.TrimSpace(payload.Text) == "" {
		return nil
	}
	if err := d.deliver(ctx, payload); err != nil {
		if d.onError != nil {
			d.onError(err)
		}
		return err
	}
	d.mu.Lock()
	d.finalCount++
	d.mu.Unlock()
	return nil
}

// FinalCount returns the number of successfully delivered payloads.
func (d *ReplyDispatcher) FinalCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.finalCount
}

// MarkIdle signals that no further replies are expected for this dispatch.
func (d *ReplyDispatcher) MarkIdle() {
	d.mu.Lock()
	already := d.idle
	d.idle = true
	d.mu.Unlock()
	if !already && d.onIdle != nil {
		d.onIdle()
	}
}

// InboundContext is the normalized envelope handed to the host's agent
// dispatch for one inbound message.
type InboundContext struct {
	Body       string `json:"body"`
	RawBody    string `json:"rawBody"`
	From       string `json:"from"`
	To         string `json:"to"`
	SessionKey string `json:"sessionKey"`
	AccountID  string `json:"accountId"`
	ChatType   string `json:"chatType"` // "direct" or "group"
	SenderName string `json:"senderName"`
	SenderID   string `json:"senderId"`
	MessageID  string `json:"messageId"`
	Channel    string `json:"channel"`
	Timestamp  int64  `json:"timestamp"`
}

// FinalizeInboundContext fills defaults the host requires before dispatch.
func FinalizeInboundContext(ctx InboundContext) InboundContext {
	if ctx.ChatType == "" {
		ctx.ChatType = "direct"
	}
	if ctx.SenderName == "" {
		ctx.SenderName = ctx.SenderID
	}
	if ctx.RawBody == "" {
		ctx.RawBody = ctx.Body
	}
	if ctx.Timestamp == 0 {
		ctx.Timestamp = time.Now().UnixMilli()
	}
	return ctx
}

// DispatchResult summarizes one agent dispatch.
type DispatchResult struct {
	QueuedFinal bool `json:"queuedFinal"`
	FinalCount  int  `json:"finalCount"`
}

// Host bundles the host-runtime services a channel plugin consumes: agent
// routing and reply dispatch.
type Host interface {
	RouteResolver

	// DispatchReply hands an inbound context to the agent and streams the
	// agent's replies through the dispatcher. It blocks until the agent
	// produced its final reply.
	DispatchReply(ctx context.Context, inbound InboundContext, dispatcher *ReplyDispatcher) (DispatchResult, error)
}
