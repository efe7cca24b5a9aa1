package webchat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/highclaw/webchat-channel/internal/config"
	"github.com/highclaw/webchat-channel/internal/wire"
	"github.com/highclaw/webchat-channel/pkg/pluginsdk"
)

// Monitor subscribes to an account's inbound messages and routes each one
// through the host runtime until the context ends. Misconfigured accounts
// fail synchronously so callers see the problem immediately.
func (s *Service) Monitor(ctx context.Context, accountID string, host pluginsdk.Host) error {
	if host == nil {
		return errors.New("webchat monitor requires a host runtime")
	}
	account := config.ResolveAccount(s.cfg, accountID)
	if !account.Enabled || !account.Configured {
		return fmt.Errorf("webchat account %q not configured or disabled", account.AccountID)
	}

	log := s.logger.With("account", account.AccountID)
	log.Info("monitor starting", "mode", account.ConnectionMode, "adapter", account.Adapter)

	if account.ConnectionMode == config.ModeHTTP {
		err := s.Poll(ctx, account, func(ev wire.MessageEvent) {
			s.handleInbound(ctx, account, host, log, ev)
		})
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		log.Info("monitor stopped")
		return err
	}

	conn := s.pool.GetOrCreate(account.AccountID, account, nil)
	unsubscribe := conn.Subscribe(func(ev wire.MessageEvent) {
		// Dispatch off the read loop: the agent may reply on this same
		// connection, and a native-mode reply blocks until its ack arrives.
		go s.handleInbound(ctx, account, host, log, ev)
	})

	<-ctx.Done()
	unsubscribe()
	s.pool.Close(account.AccountID)
	log.Info("monitor stopped")
	return nil
}

// MonitorAll runs Monitor for every enabled account and blocks until all of
// them finish. One account's failure does not stop the others.
func (s *Service) MonitorAll(ctx context.Context, host pluginsdk.Host) error {
	accounts := config.ListEnabledAccounts(s.cfg)
	if len(accounts) == 0 {
		s.logger.Info("no enabled webchat accounts to monitor")
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, acct := range accounts {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.Monitor(ctx, id, host); err != nil && !errors.Is(err, context.Canceled) {
				mu.Lock()
				errs = append(errs, fmt.Errorf("account %s: %w", id, err))
				mu.Unlock()
			}
		}(acct.AccountID)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// handleInbound routes one inbound message to its agent session and streams
// the agent's replies back into the originating chat.
func (s *Service) handleInbound(ctx context.Context, account config.ResolvedAccount, host pluginsdk.Host, log *slog.Logger, ev wire.MessageEvent) {
	log.Info("message received",
		"chatId", ev.ChatID,
		"sender", ev.SenderID,
		"direct", ev.IsDirect,
		"length", len(ev.Content))

	peer := pluginsdk.Peer{Kind: "group", ID: ev.ChatID}
	chatType := "group"
	if ev.IsDirect {
		peer = pluginsdk.Peer{Kind: "dm", ID: ev.SenderID}
		chatType = "direct"
	}

	route, err := host.ResolveAgentRoute("webchat", peer)
	if err != nil {
		log.Error("route resolution failed", "error", err)
		return
	}

	deliver := func(dctx context.Context, payload pluginsdk.ReplyPayload) error {
		_, err := s.outbound.SendText(dctx, account.AccountID, "chat:"+ev.ChatID, payload.Text, ev.MessageID)
		return err
	}
	dispatcher := pluginsdk.NewReplyDispatcher(deliver,
		func(err error) { log.Error("reply delivery failed", "error", err) },
		func() { log.Debug("reply stream idle", "chatId", ev.ChatID) },
	)

	inbound := pluginsdk.FinalizeInboundContext(pluginsdk.InboundContext{
		Body:       fmt.Sprintf("%s: %s", ev.SenderName, ev.Content),
		RawBody:    ev.Content,
		From:       ev.SenderID,
		To:         "chat:" + ev.ChatID,
		SessionKey: route.SessionKey,
		AccountID:  route.AccountID,
		ChatType:   chatType,
		SenderName: ev.SenderName,
		SenderID:   ev.SenderID,
		MessageID:  ev.MessageID,
		Channel:    "webchat",
		Timestamp:  ev.Timestamp,
	})

	result, err := host.DispatchReply(ctx, inbound, dispatcher)
	dispatcher.MarkIdle()
	if err != nil {
		log.Error("agent dispatch failed", "error", err)
		return
	}
	log.Debug("agent dispatch complete",
		"queuedFinal", result.QueuedFinal,
		"replies", result.FinalCount)
}
