package webchat

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/highclaw/webchat-channel/internal/wire"
	"github.com/highclaw/webchat-channel/pkg/pluginsdk"
)

func TestChannelStartRejectsBadAccount(t *testing.T) {
	svc := newHTTPService(t, "", "")
	svc.Config().Channels.WebChat.Enabled = boolPtr(false)

	ch := NewChannel(svc, "", newFakeHost(""), testLogger())
	if err := ch.Start(context.Background()); err == nil {
		t.Fatal("Start on disabled account succeeded")
	}
}

func TestChannelLifecycleAndSend(t *testing.T) {
	cs := &chatServer{}
	srv := httptest.NewServer(cs.handler())
	defer srv.Close()

	cs.addMessage(wire.MessageEvent{MessageID: "m1", ChatID: "general", SenderID: "u1", Content: "hi"})

	svc := newHTTPService(t, srv.URL, "")
	host := newFakeHost("")
	ch := NewChannel(svc, "", host, testLogger())

	if got := ch.Name(); got != "webchat" {
		t.Errorf("Name = %q", got)
	}

	if err := ch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := ch.Start(context.Background()); err == nil {
		t.Error("second Start succeeded")
	}

	select {
	case <-host.seen:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor never routed the seeded message")
	}

	err := ch.Send(context.Background(), pluginsdk.OutgoingMessage{
		GroupID: "general",
		Text:    "outbound",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	sends := cs.sentRequests()
	if len(sends) != 1 || sends[0].ChatID != "general" || sends[0].Content != "outbound" {
		t.Errorf("sends = %+v", sends)
	}

	if err := ch.Send(context.Background(), pluginsdk.OutgoingMessage{}); err == nil {
		t.Error("empty Send succeeded")
	}

	if err := ch.StartTyping(context.Background(), "u1"); err != nil {
		t.Errorf("StartTyping: %v", err)
	}

	if err := ch.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := ch.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
