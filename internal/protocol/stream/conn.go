package stream

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn 客户端使用的连接，*websocket.Conn 满足该接口
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	Close() error
}

// Dialer 建立连接
type Dialer func(ctx context.Context, url string) (Conn, error)

// WebsocketDialer 返回基于 gorilla/websocket 的 Dialer
func WebsocketDialer(header http.Header) Dialer {
	d := *websocket.DefaultDialer
	return func(ctx context.Context, url string) (Conn, error) {
		conn, _, err := d.DialContext(ctx, url, header)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}
