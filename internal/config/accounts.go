package config

import (
	"sort"
	"time"
)

// ResolvedAccount is one logical account's configuration after defaults and
// inheritance are applied. Immutable once resolved; callers re-resolve from
// config on each operation.
type ResolvedAccount struct {
	AccountID      string
	Enabled        bool
	Configured     bool
	WSURL          string
	APIURL         string
	APIToken       string
	ConnectionMode string
	PollInterval   time.Duration
	AutoReconnect  bool
	Adapter        string
	Ruyuan         *RuyuanConfig
}

// ResolveAccount resolves one account by id. The default account is the
// top-level webchat block; named accounts inherit Enabled from it when unset.
func ResolveAccount(cfg *Config, accountID string) ResolvedAccount {
	if accountID == "" {
		accountID = DefaultAccountID
	}

	channel := &cfg.Channels.WebChat

	var account *WebChatConfig
	if accountID == DefaultAccountID {
		account = channel
	} else {
		account = channel.Accounts[accountID]
	}
	if account == nil {
		return ResolvedAccount{AccountID: accountID, ConnectionMode: ModeWebSocket, Adapter: AdapterNative}
	}

	// An explicit enabled value always wins; only an unset one inherits
	// from the channel level.
	enabled := false
	if account.Enabled != nil {
		enabled = *account.Enabled
	} else if accountID != DefaultAccountID && channel.Enabled != nil {
		enabled = *channel.Enabled
	}

	adapter := account.Adapter
	if adapter == "" {
		if account.Ruyuan != nil && account.Ruyuan.UserID != 0 {
			adapter = AdapterRuyuan
		} else {
			adapter = AdapterNative
		}
	}

	mode := account.ConnectionMode
	if mode == "" {
		mode = ModeWebSocket
	}

	poll := account.PollInterval
	if poll == 0 {
		poll = 3000
	}
	if poll < minPollInterval {
		poll = minPollInterval
	}

	autoReconnect := true
	if account.AutoReconnect != nil {
		autoReconnect = *account.AutoReconnect
	}

	wsURL := account.WSURL
	if wsURL == "" {
		wsURL = "ws://localhost:8080/ws"
	}
	apiURL := account.APIURL
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	return ResolvedAccount{
		AccountID:      accountID,
		Enabled:        enabled,
		Configured:     account.WSURL != "" || account.APIURL != "",
		WSURL:          wsURL,
		APIURL:         apiURL,
		APIToken:       account.APIToken,
		ConnectionMode: mode,
		PollInterval:   time.Duration(poll) * time.Millisecond,
		AutoReconnect:  autoReconnect,
		Adapter:        adapter,
		Ruyuan:         account.Ruyuan,
	}
}

// ListAccountIDs lists every account id, default first.
func ListAccountIDs(cfg *Config) []string {
	ids := []string{DefaultAccountID}
	named := make([]string, 0, len(cfg.Channels.WebChat.Accounts))
	for id := range cfg.Channels.WebChat.Accounts {
		named = append(named, id)
	}
	sort.Strings(named)
	return append(ids, named...)
}

// ListEnabledAccounts resolves every account that is enabled and configured.
func ListEnabledAccounts(cfg *Config) []ResolvedAccount {
	var out []ResolvedAccount
	for _, id := range ListAccountIDs(cfg) {
		acct := ResolveAccount(cfg, id)
		if acct.Enabled && acct.Configured {
			out = append(out, acct)
		}
	}
	return out
}

// DefaultAccountIDFor returns the default account id when the channel is
// configured at all, or "" when nothing is set up.
func DefaultAccountIDFor(cfg *Config) string {
	ch := cfg.Channels.WebChat
	if (ch.Enabled == nil || !*ch.Enabled) && len(ch.Accounts) == 0 {
		return ""
	}
	return DefaultAccountID
}
