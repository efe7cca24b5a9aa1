package connection

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/highclaw/webchat-channel/internal/config"
	"github.com/highclaw/webchat-channel/internal/wire"
)

const (
	defaultRequestTimeout    = 10 * time.Second
	defaultReconnectDelay    = 5 * time.Second
	defaultHeartbeatInterval = 30 * time.Second
)

var errNotConnected = errors.New("transport not connected")

// Handler receives normalized inbound events.
type Handler func(event wire.MessageEvent)

type queuedSend struct {
	req wire.SendRequest
	ch  chan wire.SendResponse
}

type pendingRequest struct {
	ch    chan wire.SendResponse
	timer *time.Timer
}

// Conn owns one transport connection for a logical account. It queues
// outbound sends until the adapter reports readiness, correlates native send
// acknowledgements by request id, fans inbound events out to subscribers, and
// reconnects after unexpected transport loss.
type Conn struct {
	accountID string
	account   config.ResolvedAccount
	logger    *slog.Logger
	dial      Dialer
	adapter   adapter

	requestTimeout time.Duration
	reconnectDelay time.Duration

	mu             sync.Mutex
	transport      Transport
	ready          bool
	closed         bool
	queue          []queuedSend
	pending        map[string]*pendingRequest
	handlers       map[int]Handler
	nextHandlerID  int
	reconnectTimer *time.Timer
}

func newConn(accountID string, account config.ResolvedAccount, logger *slog.Logger, dial Dialer, ad adapter, requestTimeout, reconnectDelay time.Duration) *Conn {
	return &Conn{
		accountID:      accountID,
		account:        account,
		logger:         logger.With("account", accountID, "adapter", ad.name()),
		dial:           dial,
		adapter:        ad,
		requestTimeout: requestTimeout,
		reconnectDelay: reconnectDelay,
		pending:        make(map[string]*pendingRequest),
		handlers:       make(map[int]Handler),
	}
}

// connect dials the transport and hands control to the adapter. Dial failures
// feed the same reconnect policy as transport loss.
func (c *Conn) connect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	t, err := c.dial(context.Background(), c.account.WSURL, c.account.APIToken)
	if err != nil {
		c.logger.Error("connect failed", "error", err)
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = t.Close()
		return
	}
	c.transport = t
	c.mu.Unlock()

	c.logger.Info("websocket connected")
	c.adapter.onOpen(c)
	go c.readLoop(t)
}

func (c *Conn) readLoop(t Transport) {
	for {
		raw, err := t.ReadMessage()
		if err != nil {
			c.logger.Info("websocket disconnected", "error", err)
			break
		}
		c.adapter.onMessage(c, raw)
	}
	c.handleTransportClose(t)
}

// handleTransportClose is the sole recovery path: it marks the connection
// not-ready, lets the adapter clear its timers, and schedules a reconnect
// unless the close was explicit.
func (c *Conn) handleTransportClose(t Transport) {
	c.mu.Lock()
	if c.transport != t {
		// Close of a transport that was already replaced or torn down.
		c.mu.Unlock()
		return
	}
	c.transport = nil
	c.ready = false
	c.mu.Unlock()

	c.adapter.onClose(c)
	c.scheduleReconnect()
}

func (c *Conn) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.account.AutoReconnect || c.reconnectTimer != nil {
		return
	}
	c.logger.Info("reconnecting", "delay", c.reconnectDelay)
	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		c.mu.Unlock()
		c.connect()
	})
}

// Subscribe registers an inbound-event handler and returns its unsubscribe
// function.
func (c *Conn) Subscribe(h Handler) func() {
	c.mu.Lock()
	id := c.nextHandlerID
	c.nextHandlerID++
	c.handlers[id] = h
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

// Submit enqueues or transmits one send and returns a channel that resolves
// exactly once with the outcome.
func (c *Conn) Submit(req wire.SendRequest) <-chan wire.SendResponse {
	ch := make(chan wire.SendResponse, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ch <- wire.SendResponse{Success: false, Error: "connection closed"}
		return ch
	}
	if !c.ready {
		c.queue = append(c.queue, queuedSend{req: req, ch: ch})
		depth := len(c.queue)
		c.mu.Unlock()
		c.logger.Debug("connection not ready, queueing message", "queueDepth", depth)
		return ch
	}
	c.mu.Unlock()
	c.adapter.encodeSend(c, queuedSend{req: req, ch: ch})
	return ch
}

// Send submits a request and waits for its outcome or context cancellation.
// A cancelled context abandons the in-flight send.
func (c *Conn) Send(ctx context.Context, req wire.SendRequest) wire.SendResponse {
	ch := c.Submit(req)
	select {
	case resp := <-ch:
		return resp
	case <-ctx.Done():
		return wire.SendResponse{Success: false, Error: ctx.Err().Error()}
	}
}

// setReady drops readiness; adapters call this when their session ends.
func (c *Conn) setReady(ready bool) {
	c.mu.Lock()
	c.ready = ready
	c.mu.Unlock()
}

// becomeReady flushes queued sends in FIFO submission order and then flips
// readiness. The flag stays false while draining, so a Submit racing the
// drain lands behind the queued items instead of jumping ahead of them.
func (c *Conn) becomeReady() {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		if len(c.queue) == 0 {
			c.ready = true
			c.mu.Unlock()
			return
		}
		item := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()
		c.adapter.encodeSend(c, item)
	}
}

// addPending registers an in-flight native send. The timeout and the matching
// response race; whichever removes the entry first resolves the result.
func (c *Conn) addPending(requestID string, ch chan wire.SendResponse) {
	timer := time.AfterFunc(c.requestTimeout, func() {
		if p := c.takePending(requestID); p != nil {
			p.ch <- wire.SendResponse{Success: false, Error: "Request timeout"}
		}
	})
	c.mu.Lock()
	c.pending[requestID] = &pendingRequest{ch: ch, timer: timer}
	c.mu.Unlock()
}

// takePending removes and returns a pending entry, or nil if it was already
// resolved. Removal under the lock is what guarantees single resolution.
func (c *Conn) takePending(requestID string) *pendingRequest {
	c.mu.Lock()
	p := c.pending[requestID]
	delete(c.pending, requestID)
	c.mu.Unlock()
	return p
}

// resolvePending completes a native send from a peer acknowledgement.
func (c *Conn) resolvePending(ack wire.SendResponse) bool {
	p := c.takePending(ack.RequestID)
	if p == nil {
		return false
	}
	p.timer.Stop()
	p.ch <- ack
	return true
}

// writeJSON marshals v and writes it to the current transport.
func (c *Conn) writeJSON(v any) error {
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return errNotConnected
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.WriteMessage(data)
}

// fanOut delivers one event to a snapshot of the subscriber set. A panicking
// handler is logged and never aborts dispatch to the remaining handlers.
func (c *Conn) fanOut(ev wire.MessageEvent) {
	c.mu.Lock()
	handlers := make([]Handler, 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		c.dispatchOne(h, ev)
	}
}

func (c *Conn) dispatchOne(h Handler, ev wire.MessageEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("inbound handler panic", "panic", r)
		}
	}()
	h(ev)
}

// Close tears the connection down and suppresses any further reconnect.
// Queued sends fail immediately; in-flight pending requests fall to their
// timeout. Idempotent.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.ready = false
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	t := c.transport
	c.transport = nil
	queued := c.queue
	c.queue = nil
	c.mu.Unlock()

	c.adapter.onClose(c)
	if t != nil {
		_ = t.Close()
	}
	for _, item := range queued {
		item.ch <- wire.SendResponse{Success: false, Error: "connection closed"}
	}
	c.logger.Info("connection closed")
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Status is a read-only connection snapshot for diagnostics.
type Status struct {
	Connected    bool   `json:"connected"`
	Ready        bool   `json:"ready"`
	QueueDepth   int    `json:"queueDepth"`
	PendingCount int    `json:"pendingCount"`
	Adapter      string `json:"adapter"`
	Online       bool   `json:"online"`
}

func (c *Conn) status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Connected:    c.transport != nil,
		Ready:        c.ready,
		QueueDepth:   len(c.queue),
		PendingCount: len(c.pending),
		Adapter:      c.adapter.name(),
		Online:       c.adapter.online(),
	}
}
