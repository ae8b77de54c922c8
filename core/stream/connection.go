// Package stream maintains one long-lived streaming connection to the
// orchestration backend, framing its output into discrete JSON events and
// owning the reconnect, backoff, and heartbeat policy around it.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ConnState is the connection lifecycle state.
type ConnState string

const (
	StateIdle         ConnState = "idle"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	StateClosed       ConnState = "closed"
	StateError        ConnState = "error"
)

const (
	defaultHeartbeatTimeout = 45 * time.Second
	defaultMaxAttempts      = 5
	defaultBaseDelay        = time.Second
	defaultMaxDelay         = 30 * time.Second
)

// ErrAlreadyStarted is returned by Start when the connection is already
// running.
var ErrAlreadyStarted = errors.New("connection already started")

// ErrNotStarted is returned by Reconnect before any Start.
var ErrNotStarted = errors.New("connection was never started")

// Connection manages one streaming request: it dials through its transport,
// forwards complete frames in arrival order, and transparently reconnects
// on transport failures or heartbeat silence until its attempt budget runs
// out. Start never blocks the caller; all consumption happens on the
// connection's own goroutine.
type Connection struct {
	transport  Transport
	httpClient *http.Client

	heartbeatTimeout time.Duration
	maxAttempts      int
	baseDelay        time.Duration
	maxDelay         time.Duration

	onFrame       func(frame json.RawMessage)
	onStateChange func(state ConnState)
	notifyCancel  func(ctx context.Context)

	mu            sync.Mutex
	state         ConnState
	attempts      int
	payload       []byte
	baseCtx   context.Context
	cancelRun context.CancelFunc
	lastErr   error
	// gen invalidates superseded run goroutines after Reconnect.
	gen int
}

// NewConnection creates an idle connection against the streaming endpoint.
func NewConnection(endpoint string, opts ...ConnectionOption) *Connection {
	c := &Connection{
		state:            StateIdle,
		heartbeatTimeout: defaultHeartbeatTimeout,
		maxAttempts:      defaultMaxAttempts,
		baseDelay:        defaultBaseDelay,
		maxDelay:         defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = NewChunkedTransport(endpoint, c.httpClient)
	}
	return c
}

// Start opens the stream with the given request payload. It returns
// immediately; frames are delivered through the frame callback.
func (c *Connection) Start(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	if c.cancelRun != nil && c.state != StateClosed && c.state != StateError {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.payload = payload
	c.baseCtx = ctx
	c.attempts = 0
	c.lastErr = nil
	c.gen++
	gen := c.gen
	runCtx, cancel := context.WithCancel(ctx)
	c.cancelRun = cancel
	c.mu.Unlock()

	c.setState(StateConnecting)
	go c.run(runCtx, gen)
	return nil
}

// Reconnect resets the attempt budget and redials using the retained last
// request payload.
func (c *Connection) Reconnect() error {
	c.mu.Lock()
	if c.payload == nil || c.baseCtx == nil {
		c.mu.Unlock()
		return ErrNotStarted
	}
	if c.cancelRun != nil {
		c.cancelRun()
	}
	c.attempts = 0
	c.lastErr = nil
	c.gen++
	gen := c.gen
	runCtx, cancel := context.WithCancel(c.baseCtx)
	c.cancelRun = cancel
	c.mu.Unlock()

	c.setState(StateConnecting)
	go c.run(runCtx, gen)
	return nil
}

// Cancel aborts any in-flight request, clears timers, fires the best-effort
// server notification, and forces the closed state. It never blocks and is
// safe to call repeatedly.
func (c *Connection) Cancel() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	if c.cancelRun != nil {
		c.cancelRun()
	}
	notify := c.notifyCancel
	c.mu.Unlock()

	c.setState(StateClosed)

	if notify != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			notify(ctx)
		}()
	}
}

// Close forces the closed state without notifying the server, used when the
// stream ended on its own terms.
func (c *Connection) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	if c.cancelRun != nil {
		c.cancelRun()
	}
	c.mu.Unlock()

	c.setState(StateClosed)
}

// Fail forces the terminal error state regardless of the remaining retry
// budget, used for explicit non-recoverable server errors.
func (c *Connection) Fail(err error) {
	c.mu.Lock()
	if c.state == StateClosed || c.state == StateError {
		c.mu.Unlock()
		return
	}
	c.lastErr = err
	if c.cancelRun != nil {
		c.cancelRun()
	}
	c.mu.Unlock()

	c.setState(StateError)
}

// State returns the current connection state.
func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that drove the connection into its terminal state,
// if any.
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Connection) run(ctx context.Context, gen int) {
	for {
		if ctx.Err() != nil {
			c.closeIfRunning(gen)
			return
		}

		err := c.consume(ctx, gen)

		c.mu.Lock()
		if gen != c.gen || c.state == StateClosed || c.state == StateError {
			c.mu.Unlock()
			return
		}
		if ctx.Err() != nil {
			c.mu.Unlock()
			c.closeIfRunning(gen)
			return
		}

		c.attempts++
		attempt := c.attempts
		if attempt > c.maxAttempts {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			c.lastErr = fmt.Errorf("reconnect budget exhausted after %d attempts: %w", c.maxAttempts, err)
			c.mu.Unlock()
			c.setState(StateError)
			return
		}
		base, max := c.baseDelay, c.maxDelay
		c.mu.Unlock()

		c.setState(StateReconnecting)
		delay := backoffDelay(attempt, base, max)
		logger.Warn("stream attempt failed, backing off",
			"attempt", attempt, "delay", delay.String(), "error", fmt.Sprint(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.closeIfRunning(gen)
			return
		}
	}
}

// consume runs one stream attempt: open, then read frames until the stream
// fails, stalls, or is cancelled.
func (c *Connection) consume(ctx context.Context, gen int) error {
	ctx, span := tracer.Start(ctx, "stream attempt")
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	payload := c.payload
	heartbeat := c.heartbeatTimeout
	c.mu.Unlock()

	reader, err := c.transport.Open(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer reader.Close()

	// Silence beyond the heartbeat timeout cancels the attempt, which the
	// run loop treats as a retryable failure, not a terminal one.
	watchdog := time.AfterFunc(heartbeat, func() {
		logger.Warn("stream heartbeat timed out", "timeout", heartbeat.String())
		cancel()
	})
	defer watchdog.Stop()

	frames := 0
	defer func() {
		span.SetAttributes(attribute.Int("stream.frames", frames))
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		frame, err := reader.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				span.RecordError(err)
			}
			return err
		}
		if !json.Valid(frame) {
			logger.Warn("skipping malformed stream frame", "frame", string(frame))
			continue
		}

		watchdog.Reset(heartbeat)
		if !c.markEvent(gen) {
			return context.Canceled
		}
		frames++

		if c.onFrame != nil {
			c.onFrame(frame)
		}
	}
}

// markEvent records that data actually flowed: the connection counts as
// connected and the attempt budget is replenished. It reports false when
// the run has been superseded and the frame must not be delivered.
func (c *Connection) markEvent(gen int) bool {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.attempts = 0
	changed := c.state != StateConnected && c.state != StateClosed && c.state != StateError
	if changed {
		c.state = StateConnected
	}
	callback := c.onStateChange
	c.mu.Unlock()

	if changed && callback != nil {
		callback(StateConnected)
	}
	return true
}

func (c *Connection) closeIfRunning(gen int) {
	c.mu.Lock()
	stale := gen != c.gen
	terminal := c.state == StateClosed || c.state == StateError
	c.mu.Unlock()
	if !stale && !terminal {
		c.setState(StateClosed)
	}
}

func (c *Connection) setState(state ConnState) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	callback := c.onStateChange
	c.mu.Unlock()

	if callback != nil {
		callback(state)
	}
}
