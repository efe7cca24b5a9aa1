package webchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/highclaw/webchat-channel/internal/config"
	"github.com/highclaw/webchat-channel/internal/wire"
)

// httpSend performs a one-shot send over the HTTP API.
func (s *Service) httpSend(ctx context.Context, account config.ResolvedAccount, req wire.SendRequest) wire.SendResponse {
	body, err := json.Marshal(req)
	if err != nil {
		return wire.SendResponse{Success: false, Error: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, account.APIURL+"/api/messages", bytes.NewReader(body))
	if err != nil {
		return wire.SendResponse{Success: false, Error: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if account.APIToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+account.APIToken)
	}

	resp, err := s.httpc.Do(httpReq)
	if err != nil {
		return wire.SendResponse{Success: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return wire.SendResponse{Success: false, Error: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return wire.SendResponse{Success: false, Error: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(data))}
	}

	var out wire.SendResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return wire.SendResponse{Success: false, Error: fmt.Sprintf("malformed send response: %v", err)}
	}
	if out.MessageID != "" && !out.Success {
		// Some servers omit the success flag on 2xx responses.
		out.Success = true
	}
	return out
}

// fetchMessages pulls new messages from the HTTP API, resuming after the
// given cursor when set.
func (s *Service) fetchMessages(ctx context.Context, account config.ResolvedAccount, after string) ([]wire.MessageEvent, error) {
	u := account.APIURL + "/api/messages"
	if after != "" {
		u += "?after=" + url.QueryEscape(after)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if account.APIToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+account.APIToken)
	}

	resp, err := s.httpc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	// Servers answer either a bare array or {"messages": [...]}.
	var events []wire.MessageEvent
	if err := json.Unmarshal(data, &events); err == nil {
		return events, nil
	}
	var wrapped struct {
		Messages []wire.MessageEvent `json:"messages"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("malformed message list: %w", err)
	}
	return wrapped.Messages, nil
}

// Poll runs the HTTP polling loop until the context ends, advancing an
// "after" cursor past each delivered message. Fetch errors pause for one
// interval and retry rather than killing the loop.
func (s *Service) Poll(ctx context.Context, account config.ResolvedAccount, fn func(wire.MessageEvent)) error {
	log := s.logger.With("account", account.AccountID, "mode", "http")
	log.Info("polling started", "interval", account.PollInterval)

	var after string
	for {
		events, err := s.fetchMessages(ctx, account, after)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("poll fetch failed", "error", err)
		}
		for _, ev := range events {
			fn(ev)
			after = ev.MessageID
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(account.PollInterval):
		}
	}
}
