package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func writeFrame(t *testing.T, w http.ResponseWriter, payload string) {
	t.Helper()
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return
	}
	w.(http.Flusher).Flush()
}

func collectFrames(buffer int) (func(json.RawMessage), chan string) {
	frames := make(chan string, buffer)
	return func(frame json.RawMessage) {
		frames <- string(frame)
	}, frames
}

func collectStates(buffer int) (func(ConnState), chan ConnState) {
	states := make(chan ConnState, buffer)
	return func(state ConnState) {
		states <- state
	}, states
}

func awaitState(t *testing.T, states chan ConnState, want ConnState) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case state := <-states:
			if state == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %q", want)
		}
	}
}

func TestFramesDeliveredInOrderAndMalformedSkipped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrame(t, w, `{"type":"connected","sessionId":"s1"}`)
		fmt.Fprint(w, ": keepalive comment\n")
		writeFrame(t, w, `{malformed`)
		writeFrame(t, w, `{"type":"agent_started","cityId":"a","agent":"story"}`)
		writeFrame(t, w, `{"type":"all_complete"}`)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	onFrame, frames := collectFrames(8)
	conn := NewConnection(server.URL,
		WithFrameCallback(onFrame),
		WithBackoff(5*time.Millisecond, 20*time.Millisecond),
	)
	defer conn.Cancel()

	if err := conn.Start(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	want := []string{
		`{"type":"connected","sessionId":"s1"}`,
		`{"type":"agent_started","cityId":"a","agent":"story"}`,
		`{"type":"all_complete"}`,
	}
	for i, expected := range want {
		select {
		case got := <-frames:
			if got != expected {
				t.Fatalf("frame %d: expected %s, got %s", i, expected, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}

	if state := conn.State(); state != StateConnected {
		t.Fatalf("expected connected after data flowed, got %q", state)
	}
}

func TestConnectedOnlyOnceDataFlows(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		writeFrame(t, w, `{"type":"connected","sessionId":"s1"}`)
		<-r.Context().Done()
	}))
	defer server.Close()

	onState, states := collectStates(8)
	onFrame, frames := collectFrames(2)
	conn := NewConnection(server.URL,
		WithFrameCallback(onFrame),
		WithStateChangeCallback(onState),
	)
	defer conn.Cancel()

	if err := conn.Start(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if state := conn.State(); state != StateConnecting {
		t.Fatalf("an open HTTP 200 without data must not count as connected, got %q", state)
	}

	close(release)
	awaitState(t, states, StateConnected)
	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for first frame")
	}
}

func TestHeartbeatSilenceForcesReconnect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrame(t, w, `{"type":"connected","sessionId":"s1"}`)
		// Stall without closing: no transport error occurs.
		<-r.Context().Done()
	}))
	defer server.Close()

	onState, states := collectStates(16)
	onFrame, _ := collectFrames(8)
	conn := NewConnection(server.URL,
		WithFrameCallback(onFrame),
		WithStateChangeCallback(onState),
		WithHeartbeatTimeout(80*time.Millisecond),
		WithBackoff(5*time.Millisecond, 20*time.Millisecond),
		WithMaxAttempts(10),
	)
	defer conn.Cancel()

	if err := conn.Start(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	awaitState(t, states, StateConnected)
	awaitState(t, states, StateReconnecting)
}

func TestReconnectResumesAfterDrop(t *testing.T) {
	requests := atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch requests.Add(1) {
		case 1:
			// Three events, then the connection drops.
			writeFrame(t, w, `{"seq":1}`)
			writeFrame(t, w, `{"seq":2}`)
			writeFrame(t, w, `{"seq":3}`)
		case 2:
			// First reconnect attempt fails outright.
			w.WriteHeader(http.StatusBadGateway)
		case 3:
			// Second attempt succeeds and delivers the rest.
			writeFrame(t, w, `{"seq":4}`)
			writeFrame(t, w, `{"seq":5}`)
			<-r.Context().Done()
		default:
			<-r.Context().Done()
		}
	}))
	defer server.Close()

	onFrame, frames := collectFrames(8)
	conn := NewConnection(server.URL,
		WithFrameCallback(onFrame),
		WithBackoff(5*time.Millisecond, 20*time.Millisecond),
		WithMaxAttempts(5),
	)
	defer conn.Cancel()

	if err := conn.Start(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var got []string
	for len(got) < 5 {
		select {
		case frame := <-frames:
			got = append(got, frame)
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out after %d frames: %v", len(got), got)
		}
	}

	for i, frame := range got {
		expected := fmt.Sprintf(`{"seq":%d}`, i+1)
		if frame != expected {
			t.Fatalf("frame %d: expected %s, got %s (resume must equal uninterrupted delivery)", i, expected, frame)
		}
	}
}

func TestAttemptBudgetResetsOnEvent(t *testing.T) {
	requests := atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch requests.Add(1) {
		case 1, 3:
			writeFrame(t, w, `{"ok":true}`)
		case 2, 4:
			w.WriteHeader(http.StatusBadGateway)
		default:
			writeFrame(t, w, `{"done":true}`)
			<-r.Context().Done()
		}
	}))
	defer server.Close()

	onFrame, frames := collectFrames(8)
	conn := NewConnection(server.URL,
		WithFrameCallback(onFrame),
		WithBackoff(5*time.Millisecond, 20*time.Millisecond),
		// Two consecutive failures would be terminal; events in between
		// must replenish the budget.
		WithMaxAttempts(2),
	)
	defer conn.Cancel()

	if err := conn.Start(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	received := 0
	for received < 3 {
		select {
		case <-frames:
			received++
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out after %d frames, state %q", received, conn.State())
		}
	}
	if state := conn.State(); state != StateConnected {
		t.Fatalf("expected connected, got %q", state)
	}
}

func TestTerminalErrorAfterBudgetExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	onState, states := collectStates(16)
	conn := NewConnection(server.URL,
		WithStateChangeCallback(onState),
		WithBackoff(5*time.Millisecond, 20*time.Millisecond),
		WithMaxAttempts(2),
	)

	if err := conn.Start(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	awaitState(t, states, StateError)
	if conn.Err() == nil {
		t.Fatalf("terminal error state should retain its cause")
	}
}

func TestCancelAbortsAndNotifies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrame(t, w, `{"type":"connected"}`)
		<-r.Context().Done()
	}))
	defer server.Close()

	notified := make(chan struct{}, 1)
	onFrame, frames := collectFrames(2)
	conn := NewConnection(server.URL,
		WithFrameCallback(onFrame),
		WithCancelNotifier(func(ctx context.Context) {
			notified <- struct{}{}
		}),
	)

	if err := conn.Start(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for first frame")
	}

	conn.Cancel()
	if state := conn.State(); state != StateClosed {
		t.Fatalf("expected closed after cancel, got %q", state)
	}

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for cancel notification")
	}

	// Cancel is idempotent.
	conn.Cancel()
	if state := conn.State(); state != StateClosed {
		t.Fatalf("repeated cancel changed state to %q", state)
	}
}

func TestFailForcesTerminalError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrame(t, w, `{"type":"connected"}`)
		<-r.Context().Done()
	}))
	defer server.Close()

	onFrame, frames := collectFrames(2)
	conn := NewConnection(server.URL, WithFrameCallback(onFrame), WithMaxAttempts(100))

	if err := conn.Start(context.Background(), []byte(`{}`)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	select {
	case <-frames:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for first frame")
	}

	cause := errors.New("non-recoverable server error")
	conn.Fail(cause)

	if state := conn.State(); state != StateError {
		t.Fatalf("expected error state regardless of budget, got %q", state)
	}
	if !errors.Is(conn.Err(), cause) {
		t.Fatalf("expected retained cause, got %v", conn.Err())
	}
}

func TestReconnectUsesRetainedPayload(t *testing.T) {
	payloads := make(chan string, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 256)
		n, _ := r.Body.Read(buf)
		payloads <- string(buf[:n])
		writeFrame(t, w, `{"type":"connected"}`)
		<-r.Context().Done()
	}))
	defer server.Close()

	onFrame, frames := collectFrames(4)
	conn := NewConnection(server.URL, WithFrameCallback(onFrame))
	defer conn.Cancel()

	request := `{"cities":["oslo"]}`
	if err := conn.Start(context.Background(), []byte(request)); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	<-frames
	if got := <-payloads; got != request {
		t.Fatalf("expected start payload %s, got %s", request, got)
	}

	if err := conn.Reconnect(); err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}
	select {
	case got := <-payloads:
		if got != request {
			t.Fatalf("reconnect must reuse the retained payload, got %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for reconnect dial")
	}
}

func TestReconnectBeforeStart(t *testing.T) {
	conn := NewConnection("http://127.0.0.1:0")
	if err := conn.Reconnect(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
}
