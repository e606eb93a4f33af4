package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocket is a Transport over a gorilla websocket connection. Recv does
// not watch ctx beyond its deadline; Close unblocks a pending Recv.
type WebSocket struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// Dial connects to a server's websocket endpoint.
func Dial(ctx context.Context, url string) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &WebSocket{conn: conn}, nil
}

func (ws *WebSocket) Send(ctx context.Context, msg []byte) error {
	ws.wmu.Lock()
	defer ws.wmu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		ws.conn.SetWriteDeadline(dl)
	}
	return ws.conn.WriteMessage(websocket.BinaryMessage, msg)
}

func (ws *WebSocket) Recv(ctx context.Context) ([]byte, error) {
	if dl, ok := ctx.Deadline(); ok {
		ws.conn.SetReadDeadline(dl)
	}
	for {
		kind, msg, err := ws.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.BinaryMessage {
			return msg, nil
		}
	}
}

func (ws *WebSocket) Close() error {
	ws.wmu.Lock()
	ws.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.wmu.Unlock()
	return ws.conn.Close()
}
