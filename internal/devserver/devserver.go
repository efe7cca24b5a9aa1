// Package devserver hosts a minimal web-chat room for local development: an
// HTTP message API plus a WebSocket endpoint speaking the native protocol.
// It exists so the channel can be exercised end to end without a real chat
// deployment.
package devserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/highclaw/webchat-channel/internal/wire"
)

const (
	historyLimit = 200
	recentLimit  = 50
)

// Server is the development chat-room server.
type Server struct {
	logger   *slog.Logger
	token    string
	upgrader websocket.Upgrader

	mu       sync.Mutex
	messages []wire.MessageEvent
	clients  map[*client]struct{}
	seq      int64
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a dev server. An empty token disables authentication.
func New(logger *slog.Logger, token string) *Server {
	return &Server{
		logger: logger.With("component", "devserver"),
		token:  token,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api", s.authMiddleware())
	api.GET("/messages", s.listMessages)
	api.POST("/messages", s.postMessage)

	r.GET("/ws", s.serveWS)
	return r
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("dev server listening", "addr", addr)
	return s.Router().Run(addr)
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		if auth != "Bearer "+s.token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// listMessages returns history, resuming after an optional message-id cursor.
func (s *Server) listMessages(c *gin.Context) {
	after := c.Query("after")

	s.mu.Lock()
	history := make([]wire.MessageEvent, len(s.messages))
	copy(history, s.messages)
	s.mu.Unlock()

	if after != "" {
		for i, ev := range history {
			if ev.MessageID == after {
				history = history[i+1:]
				break
			}
		}
	} else if len(history) > recentLimit {
		// Without a cursor only the most recent messages are returned.
		history = history[len(history)-recentLimit:]
	}
	if history == nil {
		history = []wire.MessageEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": history})
}

// postMessage accepts a send request over HTTP, stores the resulting message,
// and broadcasts it to connected WebSocket clients.
func (s *Server) postMessage(c *gin.Context) {
	var req wire.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}
	if req.ChatID == "" || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "chatId and content are required"})
		return
	}

	ev := s.storeMessage(req, "api")
	s.broadcast(ev)
	c.JSON(http.StatusOK, wire.SendResponse{Success: true, MessageID: ev.MessageID})
}

func (s *Server) storeMessage(req wire.SendRequest, senderID string) wire.MessageEvent {
	s.mu.Lock()
	s.seq++
	ev := wire.MessageEvent{
		MessageID:   "msg_" + strconv.FormatInt(s.seq, 10),
		ChatID:      req.ChatID,
		SenderID:    senderID,
		SenderName:  senderID,
		Content:     req.Content,
		MessageType: "text",
		Timestamp:   time.Now().UnixMilli(),
		ReplyTo:     req.ReplyTo,
	}
	s.messages = append(s.messages, ev)
	if len(s.messages) > historyLimit {
		s.messages = s.messages[len(s.messages)-historyLimit:]
	}
	s.mu.Unlock()
	return ev
}

// serveWS upgrades the connection and runs the native protocol. The token is
// accepted from the Authorization header or a token query parameter, since
// browser clients cannot set headers on WebSocket dials.
func (s *Server) serveWS(c *gin.Context) {
	if s.token != "" {
		auth := c.GetHeader("Authorization")
		query := c.Query("token")
		if auth != "Bearer "+s.token && query != s.token {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	cl := &client{conn: conn, send: make(chan []byte, 32)}
	s.mu.Lock()
	s.clients[cl] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("websocket client connected", "clients", count)

	go s.writeLoop(cl)
	s.readLoop(cl)
}

func (s *Server) readLoop(cl *client) {
	defer s.dropClient(cl)
	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleClientMessage(cl, raw)
	}
}

func (s *Server) writeLoop(cl *client) {
	for data := range cl.send {
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (s *Server) dropClient(cl *client) {
	s.mu.Lock()
	if _, ok := s.clients[cl]; ok {
		delete(s.clients, cl)
		close(cl.send)
	}
	count := len(s.clients)
	s.mu.Unlock()
	_ = cl.conn.Close()
	s.logger.Info("websocket client disconnected", "clients", count)
}

func (s *Server) handleClientMessage(cl *client, raw []byte) {
	var env wire.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Type != wire.EnvelopeTypeSendMessage {
		s.logger.Debug("ignoring unrecognized client payload", "size", len(raw))
		return
	}

	if env.Data.ChatID == "" || strings.TrimSpace(env.Data.Content) == "" {
		s.sendJSON(cl, wire.SendResponse{
			RequestID: env.RequestID,
			Success:   false,
			Error:     "chatId and content are required",
		})
		return
	}

	ev := s.storeMessage(env.Data, "ws-client")
	s.sendJSON(cl, wire.SendResponse{
		RequestID: env.RequestID,
		Success:   true,
		MessageID: ev.MessageID,
	})
	s.broadcastExcept(ev, cl)
}

func (s *Server) sendJSON(cl *client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case cl.send <- data:
	default:
		s.logger.Warn("dropping frame for slow client")
	}
}

func (s *Server) broadcast(ev wire.MessageEvent) {
	s.broadcastExcept(ev, nil)
}

func (s *Server) broadcastExcept(ev wire.MessageEvent, skip *client) {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for cl := range s.clients {
		if cl != skip {
			clients = append(clients, cl)
		}
	}
	s.mu.Unlock()
	for _, cl := range clients {
		s.sendJSON(cl, ev)
	}
}

// Inject stores and broadcasts a synthetic inbound message, useful from tests
// and the CLI for poking a monitoring client.
func (s *Server) Inject(chatID, senderID, senderName, content string) wire.MessageEvent {
	ev := s.storeMessage(wire.SendRequest{ChatID: chatID, Content: content}, senderID)
	if senderName != "" {
		s.mu.Lock()
		for i := range s.messages {
			if s.messages[i].MessageID == ev.MessageID {
				s.messages[i].SenderName = senderName
				ev = s.messages[i]
				break
			}
		}
		s.mu.Unlock()
	}
	s.broadcast(ev)
	return ev
}

// MessageCount reports how many messages are held in history.
func (s *Server) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}
