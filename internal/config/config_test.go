package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func boolPtr(v bool) *bool { return &v }

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("WEBCHAT_CHANNEL_CONFIG", path)
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	t.Setenv("WEBCHAT_CHANNEL_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Channels.WebChat.Enabled != nil {
		t.Error("default config should be disabled")
	}
}

func TestLoadAndEnvOverrides(t *testing.T) {
	writeConfig(t, `
channels:
  webchat:
    enabled: true
    wsUrl: ws://chat.example.com/ws
    apiToken: from-file
`)
	t.Setenv("WEBCHAT_API_TOKEN", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Channels.WebChat.Enabled == nil || !*cfg.Channels.WebChat.Enabled {
		t.Error("Enabled not parsed")
	}
	if cfg.Channels.WebChat.WSURL != "ws://chat.example.com/ws" {
		t.Errorf("WSURL = %q", cfg.Channels.WebChat.WSURL)
	}
	if cfg.Channels.WebChat.APIToken != "from-env" {
		t.Errorf("APIToken = %q, env should win", cfg.Channels.WebChat.APIToken)
	}
}

func TestResolveAccountDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Channels.WebChat.Enabled = boolPtr(true)
	cfg.Channels.WebChat.WSURL = "ws://example/ws"

	acct := ResolveAccount(cfg, "")
	if acct.AccountID != DefaultAccountID {
		t.Errorf("AccountID = %q", acct.AccountID)
	}
	if !acct.Enabled || !acct.Configured {
		t.Errorf("Enabled/Configured = %v/%v", acct.Enabled, acct.Configured)
	}
	if acct.ConnectionMode != ModeWebSocket {
		t.Errorf("mode = %q, want websocket default", acct.ConnectionMode)
	}
	if acct.Adapter != AdapterNative {
		t.Errorf("adapter = %q, want native default", acct.Adapter)
	}
	if !acct.AutoReconnect {
		t.Error("AutoReconnect should default true")
	}
	if acct.PollInterval != 3*time.Second {
		t.Errorf("PollInterval = %v, want 3s default", acct.PollInterval)
	}
}

func TestResolveAccountUnknown(t *testing.T) {
	cfg := &Config{}
	acct := ResolveAccount(cfg, "ghost")
	if acct.Enabled || acct.Configured {
		t.Errorf("unknown account resolved as usable: %+v", acct)
	}
}

func TestResolveAccountRuyuanInference(t *testing.T) {
	cfg := &Config{}
	cfg.Channels.WebChat.Enabled = boolPtr(true)
	cfg.Channels.WebChat.Accounts = map[string]*WebChatConfig{
		"im": {
			WSURL:  "ws://im.example/ws",
			Ruyuan: &RuyuanConfig{UserID: 100, Token: "tok"},
		},
	}

	acct := ResolveAccount(cfg, "im")
	if acct.Adapter != AdapterRuyuan {
		t.Errorf("adapter = %q, want ruyuan inferred from userId", acct.Adapter)
	}
	if !acct.Enabled {
		t.Error("named account should inherit Enabled from channel")
	}
}

func TestResolveAccountExplicitDisableWins(t *testing.T) {
	cfg := &Config{}
	cfg.Channels.WebChat.Enabled = boolPtr(true)
	cfg.Channels.WebChat.Accounts = map[string]*WebChatConfig{
		"muted":      {WSURL: "ws://muted.example/ws", Enabled: boolPtr(false)},
		"inheriting": {WSURL: "ws://other.example/ws"},
	}

	if acct := ResolveAccount(cfg, "muted"); acct.Enabled {
		t.Error("account with enabled: false resolved as enabled")
	}
	if acct := ResolveAccount(cfg, "inheriting"); !acct.Enabled {
		t.Error("account with enabled unset should inherit from channel")
	}

	for _, acct := range ListEnabledAccounts(cfg) {
		if acct.AccountID == "muted" {
			t.Error("explicitly disabled account listed as enabled")
		}
	}
}

func TestResolveAccountPollClamp(t *testing.T) {
	cfg := &Config{}
	cfg.Channels.WebChat.Enabled = boolPtr(true)
	cfg.Channels.WebChat.APIURL = "http://example"
	cfg.Channels.WebChat.ConnectionMode = ModeHTTP
	cfg.Channels.WebChat.PollInterval = 200

	acct := ResolveAccount(cfg, "")
	if acct.PollInterval != time.Second {
		t.Errorf("PollInterval = %v, want clamp to 1s", acct.PollInterval)
	}
}

func TestResolveAccountAutoReconnectExplicitFalse(t *testing.T) {
	off := false
	cfg := &Config{}
	cfg.Channels.WebChat.Enabled = boolPtr(true)
	cfg.Channels.WebChat.WSURL = "ws://example/ws"
	cfg.Channels.WebChat.AutoReconnect = &off

	if acct := ResolveAccount(cfg, ""); acct.AutoReconnect {
		t.Error("explicit autoReconnect: false ignored")
	}
}

func TestListAccountIDsOrder(t *testing.T) {
	cfg := &Config{}
	cfg.Channels.WebChat.Accounts = map[string]*WebChatConfig{
		"zeta":  {},
		"alpha": {},
	}
	ids := ListAccountIDs(cfg)
	want := []string{DefaultAccountID, "alpha", "zeta"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v", ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestListEnabledAccounts(t *testing.T) {
	cfg := &Config{}
	cfg.Channels.WebChat.Enabled = boolPtr(true)
	cfg.Channels.WebChat.WSURL = "ws://example/ws"
	cfg.Channels.WebChat.Accounts = map[string]*WebChatConfig{
		"unconfigured": {},
		"second":       {WSURL: "ws://two.example/ws"},
	}

	accts := ListEnabledAccounts(cfg)
	if len(accts) != 2 {
		t.Fatalf("enabled accounts = %d, want default + second", len(accts))
	}
	if accts[0].AccountID != DefaultAccountID || accts[1].AccountID != "second" {
		t.Errorf("accounts = %v, %v", accts[0].AccountID, accts[1].AccountID)
	}
}

func TestDefaultAccountIDFor(t *testing.T) {
	cfg := &Config{}
	if got := DefaultAccountIDFor(cfg); got != "" {
		t.Errorf("empty config should have no default account, got %q", got)
	}
	cfg.Channels.WebChat.Enabled = boolPtr(true)
	if got := DefaultAccountIDFor(cfg); got != DefaultAccountID {
		t.Errorf("got %q", got)
	}
}
