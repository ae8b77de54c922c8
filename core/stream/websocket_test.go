package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebsocketTransportDeliversFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan []byte, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		// The start payload arrives as the first text message.
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("reading start payload failed: %v", err)
			return
		}
		received <- msg

		conn.WriteMessage(websocket.BinaryMessage, []byte{0x01})
		conn.WriteMessage(websocket.TextMessage, []byte(`{"seq":1}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"seq":2}`))
	}))
	defer server.Close()

	transport := NewWebsocketTransport(wsURL(server), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	reader, err := transport.Open(ctx, []byte(`{"cities":["oslo"]}`))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer reader.Close()

	select {
	case payload := <-received:
		if string(payload) != `{"cities":["oslo"]}` {
			t.Fatalf("unexpected start payload: %s", payload)
		}
	case <-ctx.Done():
		t.Fatalf("server never received the start payload")
	}

	// Binary messages are skipped; text frames arrive in order.
	for _, want := range []string{`{"seq":1}`, `{"seq":2}`} {
		frame, err := reader.Next()
		if err != nil {
			t.Fatalf("next failed: %v", err)
		}
		if string(frame) != want {
			t.Fatalf("expected %s, got %s", want, frame)
		}
	}

	if _, err := reader.Next(); err == nil {
		t.Fatalf("expected an error once the server hung up")
	}
}

func TestWebsocketTransportCancelUnblocksNext(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
		// Hold the socket open without sending anything.
		<-r.Context().Done()
	}))
	defer server.Close()

	transport := NewWebsocketTransport(wsURL(server), nil)
	ctx, cancel := context.WithCancel(context.Background())

	reader, err := transport.Open(ctx, []byte(`{}`))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer reader.Close()

	done := make(chan error, 1)
	go func() {
		_, err := reader.Next()
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected a read error after cancel")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("cancel did not unblock the read")
	}
}
