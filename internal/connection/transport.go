// Package connection implements the pooled, reconnecting connection layer:
// one long-lived socket per account, multiplexing inbound dispatch and
// outbound request/response correlation, with protocol behavior delegated to
// a pluggable adapter (native web-chat or Ruyuan-IM).
package connection

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport is a message-framed bidirectional stream. Exactly one reader
// goroutine calls ReadMessage; WriteMessage is safe for concurrent use.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer establishes a Transport for an account. Injected into the Pool so
// tests can substitute an in-memory transport.
type Dialer func(ctx context.Context, url, token string) (Transport, error)

type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// DialWebSocket is the production Dialer, authenticating with a Bearer token
// header when one is configured.
func DialWebSocket(ctx context.Context, url, token string) (Transport, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
