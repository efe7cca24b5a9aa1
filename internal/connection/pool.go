package connection

import (
	"log/slog"
	"sync"
	"time"

	"github.com/highclaw/webchat-channel/internal/config"
	"github.com/highclaw/webchat-channel/internal/ruyuan"
)

// Pool is the process-wide registry mapping an account id to its live
// connection. It guarantees at most one live connection per account and lets
// multiple subscribers share it. The pool is an explicit object so tests can
// run independent pools side by side.
type Pool struct {
	logger *slog.Logger
	dial   Dialer

	// Tunables, primarily for tests. Set before the first GetOrCreate.
	RequestTimeout time.Duration
	ReconnectDelay time.Duration

	mu    sync.Mutex
	conns map[string]*Conn
}

// NewPool creates a connection pool. A nil dialer uses the production
// WebSocket dialer.
func NewPool(logger *slog.Logger, dial Dialer) *Pool {
	if dial == nil {
		dial = DialWebSocket
	}
	return &Pool{
		logger:         logger.With("component", "webchat.pool"),
		dial:           dial,
		RequestTimeout: defaultRequestTimeout,
		ReconnectDelay: defaultReconnectDelay,
		conns:          make(map[string]*Conn),
	}
}

// GetOrCreate returns the live connection for an account, creating and
// connecting one if needed. A non-nil handler is registered as an additional
// subscriber either way.
func (p *Pool) GetOrCreate(accountID string, account config.ResolvedAccount, handler Handler) *Conn {
	p.mu.Lock()
	if existing, ok := p.conns[accountID]; ok && !existing.isClosed() {
		p.mu.Unlock()
		if handler != nil {
			existing.Subscribe(handler)
		}
		return existing
	}

	c := newConn(accountID, account, p.logger, p.dial, p.adapterFor(account), p.RequestTimeout, p.ReconnectDelay)
	p.conns[accountID] = c
	p.mu.Unlock()

	if handler != nil {
		c.Subscribe(handler)
	}
	go c.connect()
	return c
}

func (p *Pool) adapterFor(account config.ResolvedAccount) adapter {
	if account.Adapter == config.AdapterRuyuan {
		rc := account.Ruyuan
		if rc == nil {
			rc = &config.RuyuanConfig{}
		}
		state := ruyuan.NewState(rc.UserID, rc.ClientType, rc.Token)
		return newRuyuanAdapter(state, time.Duration(rc.HeartbeatInterval)*time.Millisecond)
	}
	return &nativeAdapter{}
}

// Close tears down and removes an account's connection. Closing an unknown or
// already-closed account is a no-op.
func (p *Pool) Close(accountID string) {
	p.mu.Lock()
	c := p.conns[accountID]
	delete(p.conns, accountID)
	p.mu.Unlock()
	if c != nil {
		c.Close()
	}
}

// CloseAll tears down every connection in the pool.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	conns := make([]*Conn, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	p.conns = make(map[string]*Conn)
	p.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// Status returns a diagnostic snapshot for an account. Unknown accounts get a
// disconnected, empty snapshot rather than an error.
func (p *Pool) Status(accountID string) Status {
	p.mu.Lock()
	c := p.conns[accountID]
	p.mu.Unlock()
	if c == nil {
		return Status{}
	}
	return c.status()
}
