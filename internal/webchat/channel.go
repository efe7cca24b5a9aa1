package webchat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/highclaw/webchat-channel/internal/config"
	"github.com/highclaw/webchat-channel/pkg/pluginsdk"
)

// Channel adapts one monitored account to the host plugin contract.
type Channel struct {
	accountID string
	service   *Service
	outbound  *OutboundAdapter
	host      pluginsdk.Host
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewChannel builds a channel plugin for one account.
func NewChannel(service *Service, accountID string, host pluginsdk.Host, logger *slog.Logger) *Channel {
	return &Channel{
		accountID: accountID,
		service:   service,
		outbound:  service.Outbound(),
		host:      host,
		logger:    logger.With("component", "webchat.channel", "account", accountID),
	}
}

// Name implements pluginsdk.Channel.
func (c *Channel) Name() string { return "webchat" }

// Start validates the account and launches the monitor loop in the
// background. Configuration problems surface here, monitor-loop errors are
// logged.
func (c *Channel) Start(ctx context.Context) error {
	account := config.ResolveAccount(c.service.Config(), c.accountID)
	if !account.Enabled || !account.Configured {
		return fmt.Errorf("webchat account %q not configured or disabled", account.AccountID)
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return errors.New("channel already started")
	}
	mctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		if err := c.service.Monitor(mctx, c.accountID, c.host); err != nil {
			c.logger.Error("monitor exited", "error", err)
		}
	}()
	return nil
}

// Stop cancels the monitor and waits for it to wind down.
func (c *Channel) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Send implements pluginsdk.Channel.
func (c *Channel) Send(ctx context.Context, msg pluginsdk.OutgoingMessage) error {
	to := "user:" + msg.RecipientID
	if msg.GroupID != "" {
		to = "chat:" + msg.GroupID
	}
	if msg.Text == "" && len(msg.Media) == 0 {
		return errors.New("empty outgoing message")
	}
	_, err := c.outbound.SendMedia(ctx, c.accountID, to, msg.Text, msg.Media, msg.ReplyToID)
	return err
}

// IsConnected reports whether the account's pooled connection is live.
func (c *Channel) IsConnected() bool {
	return c.service.Pool().Status(c.accountID).Connected
}

// StartTyping is a no-op; the wire protocol has no typing indicator.
func (c *Channel) StartTyping(ctx context.Context, recipient string) error { return nil }

// StopTyping is a no-op; the wire protocol has no typing indicator.
func (c *Channel) StopTyping(ctx context.Context, recipient string) error { return nil }
