package webchat

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/highclaw/webchat-channel/internal/config"
	"github.com/highclaw/webchat-channel/internal/connection"
	"github.com/highclaw/webchat-channel/internal/wire"
)

// Service is the account-aware facade over the connection pool and the HTTP
// API. All sends and monitors go through here.
type Service struct {
	cfg      *config.Config
	pool     *connection.Pool
	logger   *slog.Logger
	httpc    *http.Client
	outbound *OutboundAdapter
}

// NewService builds the facade. The pool is injected so tests and embedders
// can share or isolate connection state explicitly.
func NewService(cfg *config.Config, pool *connection.Pool, logger *slog.Logger) *Service {
	s := &Service{
		cfg:    cfg,
		pool:   pool,
		logger: logger.With("component", "webchat"),
		httpc:  &http.Client{Timeout: 15 * time.Second},
	}
	s.outbound = NewOutboundAdapter(s)
	return s
}

// Pool exposes the underlying connection pool for status queries.
func (s *Service) Pool() *connection.Pool { return s.pool }

// Outbound returns the service's send adapter. All host-driven deliveries go
// through this one instance so a tuned chunk limit applies everywhere.
func (s *Service) Outbound() *OutboundAdapter { return s.outbound }

// Config returns the configuration the service was built with.
func (s *Service) Config() *config.Config { return s.cfg }

// SendOutcome is the result of one send attempt. Exactly one of MessageID or
// Error is set.
type SendOutcome struct {
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// OK reports whether the send succeeded.
func (o SendOutcome) OK() bool { return o.Error == "" }

// Send delivers one text message to a target on the given account. Disabled
// or unconfigured accounts fail without touching the network.
func (s *Service) Send(ctx context.Context, accountID, to, text, replyTo string) SendOutcome {
	account := config.ResolveAccount(s.cfg, accountID)
	if !account.Enabled || !account.Configured {
		return SendOutcome{Error: fmt.Sprintf("webchat account %q not available", account.AccountID)}
	}

	req := wire.SendRequest{
		ChatID:      ExtractChatID(NormalizeTarget(to)),
		Content:     text,
		MessageType: "text",
		ReplyTo:     replyTo,
	}

	var resp wire.SendResponse
	if account.ConnectionMode == config.ModeHTTP {
		resp = s.httpSend(ctx, account, req)
	} else {
		conn := s.pool.GetOrCreate(account.AccountID, account, nil)
		resp = conn.Send(ctx, req)
	}

	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "send failed"
		}
		return SendOutcome{Error: msg}
	}
	return SendOutcome{MessageID: resp.MessageID}
}

// BatchItem is one entry of a batch send.
type BatchItem struct {
	To      string `json:"to"`
	Text    string `json:"text"`
	ReplyTo string `json:"replyTo,omitempty"`
}

// BatchResult pairs a batch item with its outcome.
type BatchResult struct {
	To      string `json:"to"`
	Outcome SendOutcome
}

// SendBatch delivers the items concurrently. Each item succeeds or fails on
// its own; one failure never aborts the rest. Results keep the input order.
func (s *Service) SendBatch(ctx context.Context, accountID string, items []BatchItem) []BatchResult {
	results := make([]BatchResult, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item BatchItem) {
			defer wg.Done()
			results[i] = BatchResult{
				To:      item.To,
				Outcome: s.Send(ctx, accountID, item.To, item.Text, item.ReplyTo),
			}
		}(i, item)
	}
	wg.Wait()
	return results
}
