package stream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// NewWebsocketTransport returns an alternate transport carrying the same
// JSON frames over a websocket, one text message per frame. The start
// payload is sent as the first message after the dial.
func NewWebsocketTransport(url string, header http.Header) Transport {
	return &websocketTransport{url: url, header: header}
}

type websocketTransport struct {
	url    string
	header http.Header
}

func (t *websocketTransport) Open(ctx context.Context, payload []byte) (frameReader, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection: %w", err)
	}

	reader := &websocketReader{conn: conn}
	if err := reader.send(websocket.TextMessage, payload); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send start payload: %w", err)
	}

	keepAliveCtx, cancelKeepAlive := context.WithCancel(ctx)
	reader.cancelKeepAlive = cancelKeepAlive
	go reader.keepAlive(keepAliveCtx)

	// Unblock ReadMessage when the attempt is cancelled.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	return reader, nil
}

type websocketReader struct {
	conn            *websocket.Conn
	connMu          sync.Mutex
	cancelKeepAlive context.CancelFunc
	closeOnce       sync.Once
}

func (r *websocketReader) Next() ([]byte, error) {
	for {
		msgType, msg, err := r.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		return msg, nil
	}
}

func (r *websocketReader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.cancelKeepAlive()
		err = r.conn.Close()
	})
	return err
}

func (r *websocketReader) send(msgType int, msg []byte) error {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	return r.conn.WriteMessage(msgType, msg)
}

func (r *websocketReader) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.connMu.Lock()
			err := r.conn.WriteJSON(struct {
				Type string `json:"type"`
			}{Type: "KeepAlive"})
			r.connMu.Unlock()
			if err != nil {
				logger.Warn("failed to write keepalive to stream socket", "error", fmt.Sprint(err))
				return
			}
		}
	}
}
