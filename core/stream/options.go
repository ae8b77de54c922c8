package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type ConnectionOption func(*Connection)

// WithTransport replaces the default chunked-HTTP transport.
func WithTransport(transport Transport) ConnectionOption {
	return func(c *Connection) {
		c.transport = transport
	}
}

// WithHTTPClient sets the HTTP client used by the default transport.
func WithHTTPClient(client *http.Client) ConnectionOption {
	return func(c *Connection) {
		c.httpClient = client
	}
}

// WithHeartbeatTimeout sets the maximum silence on an open stream before
// the connection assumes it has stalled and reconnects.
func WithHeartbeatTimeout(timeout time.Duration) ConnectionOption {
	return func(c *Connection) {
		if timeout > 0 {
			c.heartbeatTimeout = timeout
		}
	}
}

// WithMaxAttempts bounds consecutive reconnect attempts before the
// connection goes terminal. The counter resets every time an event arrives.
func WithMaxAttempts(attempts int) ConnectionOption {
	return func(c *Connection) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

// WithBackoff sets the base and cap of the exponential reconnect delay.
func WithBackoff(base, max time.Duration) ConnectionOption {
	return func(c *Connection) {
		if base > 0 {
			c.baseDelay = base
		}
		if max > 0 {
			c.maxDelay = max
		}
	}
}

// WithFrameCallback registers the consumer of decoded frames. Frames are
// delivered synchronously, one at a time, in arrival order.
func WithFrameCallback(callback func(frame json.RawMessage)) ConnectionOption {
	return func(c *Connection) {
		c.onFrame = callback
	}
}

// WithStateChangeCallback registers a listener for connection state
// transitions.
func WithStateChangeCallback(callback func(state ConnState)) ConnectionOption {
	return func(c *Connection) {
		c.onStateChange = callback
	}
}

// WithCancelNotifier registers the best-effort server notification fired on
// Cancel. It runs in its own goroutine with a bounded context; failures are
// swallowed.
func WithCancelNotifier(notify func(ctx context.Context)) ConnectionOption {
	return func(c *Connection) {
		c.notifyCancel = notify
	}
}
