package webchat

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/highclaw/webchat-channel/internal/wire"
	"github.com/highclaw/webchat-channel/pkg/pluginsdk"
)

// fakeHost records routed messages and answers each with one reply.
type fakeHost struct {
	reply string

	mu      sync.Mutex
	inbound []pluginsdk.InboundContext
	routed  []pluginsdk.Peer
	seen    chan struct{}
}

func newFakeHost(reply string) *fakeHost {
	return &fakeHost{reply: reply, seen: make(chan struct{}, 16)}
}

func (h *fakeHost) ResolveAgentRoute(channel string, peer pluginsdk.Peer) (pluginsdk.AgentRoute, error) {
	h.mu.Lock()
	h.routed = append(h.routed, peer)
	h.mu.Unlock()
	return pluginsdk.AgentRoute{SessionKey: channel + ":" + peer.Kind + ":" + peer.ID, AccountID: "agent-1"}, nil
}

func (h *fakeHost) DispatchReply(ctx context.Context, inbound pluginsdk.InboundContext, dispatcher *pluginsdk.ReplyDispatcher) (pluginsdk.DispatchResult, error) {
	h.mu.Lock()
	h.inbound = append(h.inbound, inbound)
	h.mu.Unlock()
	defer func() { h.seen <- struct{}{} }()

	if h.reply == "" {
		return pluginsdk.DispatchResult{}, nil
	}
	if err := dispatcher.Dispatch(ctx, pluginsdk.ReplyPayload{Text: h.reply}); err != nil {
		return pluginsdk.DispatchResult{}, err
	}
	return pluginsdk.DispatchResult{QueuedFinal: true, FinalCount: dispatcher.FinalCount()}, nil
}

func (h *fakeHost) inboundContexts() []pluginsdk.InboundContext {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]pluginsdk.InboundContext(nil), h.inbound...)
}

func (h *fakeHost) routedPeers() []pluginsdk.Peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]pluginsdk.Peer(nil), h.routed...)
}

func TestMonitorRejectsMisconfiguredAccount(t *testing.T) {
	svc := newHTTPService(t, "", "")
	svc.Config().Channels.WebChat.Enabled = boolPtr(false)

	err := svc.Monitor(context.Background(), "", newFakeHost(""))
	if err == nil {
		t.Fatal("expected synchronous error for disabled account")
	}
	if !strings.Contains(err.Error(), "not configured or disabled") {
		t.Errorf("error = %v", err)
	}
}

func TestMonitorRequiresHost(t *testing.T) {
	svc := newHTTPService(t, "http://unused", "")
	if err := svc.Monitor(context.Background(), "", nil); err == nil {
		t.Fatal("expected error for nil host")
	}
}

func TestMonitorHTTPRoutesAndReplies(t *testing.T) {
	cs := &chatServer{}
	srv := httptest.NewServer(cs.handler())
	defer srv.Close()

	cs.addMessage(wire.MessageEvent{
		MessageID:  "m1",
		ChatID:     "general",
		SenderID:   "u7",
		SenderName: "Ann",
		Content:    "hello agent",
		Timestamp:  1700000000000,
	})

	svc := newHTTPService(t, srv.URL, "")
	host := newFakeHost("hi Ann")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Monitor(ctx, "", host) }()

	select {
	case <-host.seen:
	case <-time.After(5 * time.Second):
		t.Fatal("host never saw the inbound message")
	}
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Monitor returned %v", err)
	}

	inbound := host.inboundContexts()
	if len(inbound) != 1 {
		t.Fatalf("inbound count = %d", len(inbound))
	}
	in := inbound[0]
	if in.Body != "Ann: hello agent" || in.RawBody != "hello agent" {
		t.Errorf("body = %q / %q", in.Body, in.RawBody)
	}
	if in.Channel != "webchat" || in.ChatType != "group" || in.MessageID != "m1" {
		t.Errorf("inbound = %+v", in)
	}
	if in.SessionKey != "webchat:group:general" {
		t.Errorf("SessionKey = %q", in.SessionKey)
	}

	peers := host.routedPeers()
	if len(peers) != 1 || peers[0].Kind != "group" || peers[0].ID != "general" {
		t.Errorf("peers = %+v", peers)
	}

	// The reply must land back on the server, threaded to the inbound message.
	var replies []wire.SendRequest
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		replies = cs.sentRequests()
		if len(replies) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(replies) != 1 {
		t.Fatalf("server saw %d replies", len(replies))
	}
	if replies[0].ChatID != "general" || replies[0].Content != "hi Ann" || replies[0].ReplyTo != "m1" {
		t.Errorf("reply = %+v", replies[0])
	}
}

func TestMonitorRepliesHonorChunkLimit(t *testing.T) {
	cs := &chatServer{}
	srv := httptest.NewServer(cs.handler())
	defer srv.Close()

	cs.addMessage(wire.MessageEvent{MessageID: "m1", ChatID: "general", SenderID: "u7", Content: "hi"})

	svc := newHTTPService(t, srv.URL, "")
	svc.Outbound().TextChunkLimit = 8
	host := newFakeHost("alpha\nbravo\ncharlie")

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = svc.Monitor(ctx, "", host) }()
	select {
	case <-host.seen:
	case <-time.After(5 * time.Second):
		t.Fatal("host never saw the inbound message")
	}
	cancel()

	var replies []wire.SendRequest
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		replies = cs.sentRequests()
		if len(replies) == 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(replies) != 3 {
		t.Fatalf("server saw %d replies, want one per chunk", len(replies))
	}
	for i, want := range []string{"alpha", "bravo", "charlie"} {
		if replies[i].Content != want {
			t.Errorf("reply %d = %q, want %q", i, replies[i].Content, want)
		}
	}
	if replies[0].ReplyTo != "m1" {
		t.Errorf("first chunk ReplyTo = %q", replies[0].ReplyTo)
	}
	if replies[1].ReplyTo != "" || replies[2].ReplyTo != "" {
		t.Error("continuation chunks should not thread the reply reference")
	}
}

func TestMonitorDirectMessageRoutesByPeer(t *testing.T) {
	cs := &chatServer{}
	srv := httptest.NewServer(cs.handler())
	defer srv.Close()

	cs.addMessage(wire.MessageEvent{
		MessageID: "m1",
		ChatID:    "dm-1",
		SenderID:  "u7",
		Content:   "psst",
		IsDirect:  true,
	})

	svc := newHTTPService(t, srv.URL, "")
	host := newFakeHost("")

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = svc.Monitor(ctx, "", host) }()
	select {
	case <-host.seen:
	case <-time.After(5 * time.Second):
		t.Fatal("host never saw the inbound message")
	}
	cancel()

	peers := host.routedPeers()
	if len(peers) != 1 || peers[0].Kind != "dm" || peers[0].ID != "u7" {
		t.Errorf("peers = %+v, want dm keyed by sender", peers)
	}
	if in := host.inboundContexts()[0]; in.ChatType != "direct" {
		t.Errorf("ChatType = %q", in.ChatType)
	}
}

func TestMonitorAllNoAccounts(t *testing.T) {
	svc := newHTTPService(t, "", "")
	svc.Config().Channels.WebChat.Enabled = boolPtr(false)
	if err := svc.MonitorAll(context.Background(), newFakeHost("")); err != nil {
		t.Fatalf("MonitorAll with no accounts: %v", err)
	}
}
