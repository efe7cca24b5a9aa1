package connection

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/highclaw/webchat-channel/internal/wire"
)

// nativeAdapter speaks the web-chat wire protocol: the connection is ready as
// soon as the socket opens, sends are correlated with peer acknowledgements
// by request id, and inbound events arrive as plain JSON objects.
type nativeAdapter struct{}

func (a *nativeAdapter) name() string { return "native" }

func (a *nativeAdapter) onOpen(c *Conn) {
	c.becomeReady()
}

func (a *nativeAdapter) onMessage(c *Conn, raw []byte) {
	kind, ack, event := wire.Classify(raw)
	switch kind {
	case wire.KindSendAck:
		if !c.resolvePending(*ack) {
			c.logger.Debug("ack for unknown request", "requestId", ack.RequestID)
		}
	case wire.KindEvent:
		c.fanOut(*event)
	default:
		c.logger.Warn("dropping unrecognized payload", "size", len(raw))
	}
}

func (a *nativeAdapter) onClose(c *Conn) {}

func (a *nativeAdapter) encodeSend(c *Conn, item queuedSend) {
	requestID := newRequestID()
	env := wire.Envelope{
		Type:      wire.EnvelopeTypeSendMessage,
		RequestID: requestID,
		Data:      item.req,
	}

	// Register before writing so a fast echo cannot miss the entry.
	c.addPending(requestID, item.ch)
	if err := c.writeJSON(env); err != nil {
		if p := c.takePending(requestID); p != nil {
			p.timer.Stop()
			p.ch <- wire.SendResponse{Success: false, Error: err.Error()}
		}
	}
}

func (a *nativeAdapter) online() bool { return true }

func newRequestID() string {
	return fmt.Sprintf("req_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
