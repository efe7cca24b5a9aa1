package webchat

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/highclaw/webchat-channel/internal/config"
	"github.com/highclaw/webchat-channel/internal/connection"
	"github.com/highclaw/webchat-channel/internal/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func boolPtr(v bool) *bool { return &v }

func newHTTPService(t *testing.T, apiURL, token string) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Channels.WebChat.Enabled = boolPtr(true)
	cfg.Channels.WebChat.APIURL = apiURL
	cfg.Channels.WebChat.APIToken = token
	cfg.Channels.WebChat.ConnectionMode = config.ModeHTTP
	pool := connection.NewPool(testLogger(), nil)
	t.Cleanup(pool.CloseAll)
	return NewService(cfg, pool, testLogger())
}

// chatServer is a minimal in-memory message API for HTTP-mode tests.
type chatServer struct {
	token string

	mu       sync.Mutex
	messages []wire.MessageEvent
	sends    []wire.SendRequest
	seq      int
}

func (s *chatServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/messages", func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			s.mu.Lock()
			out := append([]wire.MessageEvent(nil), s.messages...)
			s.mu.Unlock()
			after := r.URL.Query().Get("after")
			if after != "" {
				for i, ev := range out {
					if ev.MessageID == after {
						out = out[i+1:]
						break
					}
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"messages": out})
		case http.MethodPost:
			var req wire.SendRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"success":false,"error":"bad body"}`, http.StatusBadRequest)
				return
			}
			s.mu.Lock()
			s.seq++
			s.sends = append(s.sends, req)
			id := "msg_" + strconv.Itoa(s.seq)
			s.mu.Unlock()
			_ = json.NewEncoder(w).Encode(wire.SendResponse{Success: true, MessageID: id})
		default:
			http.Error(w, "method", http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func (s *chatServer) addMessage(ev wire.MessageEvent) {
	s.mu.Lock()
	s.messages = append(s.messages, ev)
	s.mu.Unlock()
}

func (s *chatServer) sentRequests() []wire.SendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wire.SendRequest(nil), s.sends...)
}

func TestSendUnavailableAccount(t *testing.T) {
	cfg := &config.Config{} // nothing enabled or configured
	pool := connection.NewPool(testLogger(), nil)
	t.Cleanup(pool.CloseAll)
	svc := NewService(cfg, pool, testLogger())

	outcome := svc.Send(context.Background(), "", "chat:general", "hi", "")
	if outcome.OK() {
		t.Fatal("send on unconfigured account succeeded")
	}
	if !strings.Contains(outcome.Error, `webchat account "default" not available`) {
		t.Errorf("error = %q", outcome.Error)
	}
}

func TestSendHTTP(t *testing.T) {
	cs := &chatServer{token: "sekrit"}
	srv := httptest.NewServer(cs.handler())
	defer srv.Close()

	svc := newHTTPService(t, srv.URL, "sekrit")
	outcome := svc.Send(context.Background(), "", "general", "hello", "m0")
	if !outcome.OK() {
		t.Fatalf("send failed: %s", outcome.Error)
	}
	if outcome.MessageID != "msg_1" {
		t.Errorf("MessageID = %q", outcome.MessageID)
	}

	sends := cs.sentRequests()
	if len(sends) != 1 {
		t.Fatalf("server saw %d sends", len(sends))
	}
	if sends[0].ChatID != "general" || sends[0].Content != "hello" || sends[0].ReplyTo != "m0" {
		t.Errorf("request = %+v", sends[0])
	}
}

func TestSendHTTPUnauthorized(t *testing.T) {
	cs := &chatServer{token: "sekrit"}
	srv := httptest.NewServer(cs.handler())
	defer srv.Close()

	svc := newHTTPService(t, srv.URL, "wrong")
	outcome := svc.Send(context.Background(), "", "general", "hello", "")
	if outcome.OK() {
		t.Fatal("send with bad token succeeded")
	}
	if !strings.Contains(outcome.Error, "401") {
		t.Errorf("error = %q, want HTTP 401 surfaced", outcome.Error)
	}
}

func TestSendBatchIsolatesFailures(t *testing.T) {
	cs := &chatServer{}
	srv := httptest.NewServer(cs.handler())
	defer srv.Close()

	cfg := &config.Config{}
	cfg.Channels.WebChat.Enabled = boolPtr(true)
	cfg.Channels.WebChat.APIURL = srv.URL
	cfg.Channels.WebChat.ConnectionMode = config.ModeHTTP
	cfg.Channels.WebChat.Accounts = map[string]*config.WebChatConfig{
		"broken": {}, // unconfigured
	}
	pool := connection.NewPool(testLogger(), nil)
	t.Cleanup(pool.CloseAll)
	svc := NewService(cfg, pool, testLogger())

	good := svc.SendBatch(context.Background(), "", []BatchItem{
		{To: "a", Text: "one"},
		{To: "b", Text: "two"},
	})
	if len(good) != 2 {
		t.Fatalf("results = %d", len(good))
	}
	for i, r := range good {
		if !r.Outcome.OK() {
			t.Errorf("item %d failed: %s", i, r.Outcome.Error)
		}
	}

	bad := svc.SendBatch(context.Background(), "broken", []BatchItem{{To: "a", Text: "x"}})
	if bad[0].Outcome.OK() {
		t.Error("send on broken account succeeded")
	}
}

func TestFetchMessagesCursor(t *testing.T) {
	cs := &chatServer{}
	srv := httptest.NewServer(cs.handler())
	defer srv.Close()

	cs.addMessage(wire.MessageEvent{MessageID: "m1", ChatID: "c", SenderID: "u", Content: "one"})
	cs.addMessage(wire.MessageEvent{MessageID: "m2", ChatID: "c", SenderID: "u", Content: "two"})

	svc := newHTTPService(t, srv.URL, "")
	account := config.ResolveAccount(svc.Config(), "")

	all, err := svc.fetchMessages(context.Background(), account, "")
	if err != nil {
		t.Fatalf("fetchMessages: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d messages", len(all))
	}

	tail, err := svc.fetchMessages(context.Background(), account, "m1")
	if err != nil {
		t.Fatalf("fetchMessages after cursor: %v", err)
	}
	if len(tail) != 1 || tail[0].MessageID != "m2" {
		t.Errorf("tail = %+v", tail)
	}
}
