package connection

import (
	"strconv"
	"sync"
	"time"

	"github.com/highclaw/webchat-channel/internal/ruyuan"
	"github.com/highclaw/webchat-channel/internal/wire"
)

// ruyuanAdapter layers the Ruyuan-IM handshake, heartbeat, and command
// dispatch on the shared connection machinery. Readiness requires an ONLINE
// acknowledgement, and sends have no acknowledgement channel at all: they
// resolve immediately with a provisional message id. That trade-off is
// inherent to the protocol, not a shortcut.
type ruyuanAdapter struct {
	state             *ruyuan.State
	heartbeatInterval time.Duration

	mu            sync.Mutex
	stopHeartbeat chan struct{}
}

func newRuyuanAdapter(state *ruyuan.State, heartbeatInterval time.Duration) *ruyuanAdapter {
	if heartbeatInterval <= 0 {
		heartbeatInterval = defaultHeartbeatInterval
	}
	return &ruyuanAdapter{state: state, heartbeatInterval: heartbeatInterval}
}

func (a *ruyuanAdapter) name() string { return "ruyuan" }

func (a *ruyuanAdapter) onOpen(c *Conn) {
	if a.state.UserID == 0 || a.state.Token == "" {
		c.logger.Error("ruyuan config missing userId or token")
		return
	}
	cmd := ruyuan.OnlineCommand(a.state.UserID, a.state.ClientType, a.state.Token)
	if err := c.writeJSON(cmd); err != nil {
		c.logger.Error("ruyuan ONLINE request failed", "error", err)
		return
	}
	c.logger.Info("ruyuan ONLINE request sent")
}

func (a *ruyuanAdapter) onMessage(c *Conn, raw []byte) {
	cmd, err := ruyuan.Decode(raw)
	if err != nil {
		c.logger.Warn("dropping malformed ruyuan payload", "error", err)
		return
	}

	switch cmd.Type {
	case ruyuan.CommandOnline:
		a.state.SetOnline(true)
		c.logger.Info("ruyuan online")
		a.startHeartbeat(c)
		c.becomeReady()

	case ruyuan.CommandMessagePush:
		ev, err := ruyuan.FromPush(cmd, nil)
		if err != nil {
			c.logger.Warn("dropping malformed push", "error", err)
			return
		}
		c.fanOut(ev)

	case ruyuan.CommandOffline:
		c.logger.Warn("ruyuan offline notification received")
		a.state.SetOnline(false)
		c.setReady(false)

	case ruyuan.CommandHeartbeat:
		// Heartbeat echo; nothing to do.

	default:
		c.logger.Debug("unhandled ruyuan command", "type", ruyuan.CommandTypeName(cmd.Type))
	}
}

func (a *ruyuanAdapter) onClose(c *Conn) {
	a.mu.Lock()
	if a.stopHeartbeat != nil {
		close(a.stopHeartbeat)
		a.stopHeartbeat = nil
	}
	a.mu.Unlock()
	a.state.SetOnline(false)
}

func (a *ruyuanAdapter) encodeSend(c *Conn, item queuedSend) {
	seq := a.state.NextSequence()
	cmd, body, err := ruyuan.ToSendCommand(item.req, a.state.UserID, a.state.ClientType, seq)
	if err != nil {
		item.ch <- wire.SendResponse{Success: false, Error: err.Error()}
		return
	}
	if err := c.writeJSON(cmd); err != nil {
		item.ch <- wire.SendResponse{Success: false, Error: err.Error()}
		return
	}
	item.ch <- wire.SendResponse{
		Success:   true,
		MessageID: strconv.FormatInt(body.MessageID, 10),
	}
}

func (a *ruyuanAdapter) online() bool { return a.state.Online() }

func (a *ruyuanAdapter) startHeartbeat(c *Conn) {
	a.mu.Lock()
	if a.stopHeartbeat != nil {
		a.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	a.stopHeartbeat = stop
	a.mu.Unlock()

	go func() {
		ticker := time.NewTicker(a.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				cmd := ruyuan.HeartbeatCommand(a.state.UserID, a.state.ClientType)
				if err := c.writeJSON(cmd); err != nil {
					c.logger.Warn("ruyuan heartbeat failed", "error", err)
				}
			}
		}
	}()
	c.logger.Info("ruyuan heartbeat started", "interval", a.heartbeatInterval)
}
