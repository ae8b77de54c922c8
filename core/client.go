// Package orchestration is the client-side counterpart of the
// travel-intelligence orchestrator: it consumes the backend's event stream,
// folds it into a consistent, resumable session state, and layers
// speculative edits on top while server round-trips are pending.
//
// One Client serves one orchestration run. Construct a fresh client per
// session; instances are independent, so concurrent sessions are just
// concurrent clients.
package orchestration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/voyantlabs/voyant-core/core/events"
	"github.com/voyantlabs/voyant-core/core/intel"
	"github.com/voyantlabs/voyant-core/core/persistence"
	"github.com/voyantlabs/voyant-core/core/stream"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
)

// ErrSessionActive is returned by Start when the client already runs a
// stream.
var ErrSessionActive = errors.New("session already started")

// Client is one orchestration session's state machine. Reads never block on
// network activity: the stream feeds the reducer on its own goroutine, one
// event at a time, and every accessor works on the locked aggregate state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	store      persistence.Store
	connOpts   []stream.ConnectionOption

	mu          sync.Mutex
	state       *State
	ledger      optimisticLedger
	conn        *stream.Connection
	startOpts   startOptions
	lastRequest *StartRequest
	// sessionID is retained past the Cancel session reset so the
	// asynchronous server notification still knows which session to name.
	sessionID string
}

// NewClient creates a client for one session against the backend at
// baseURL. It validates the agent-field routing table and, when a store is
// configured, restores previously completed cities from the cache.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if err := intel.ValidateAgentFields(); err != nil {
		return nil, fmt.Errorf("invalid agent field table: %w", err)
	}

	c := &Client{
		baseURL: baseURL,
		state:   newState(),
		ledger:  newOptimisticLedger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)}
	}

	if c.store != nil {
		if err := c.restoreCache(context.Background()); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Client) restoreCache(ctx context.Context) error {
	snapshot, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cached intelligence: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, city := range snapshot.Cities {
		if city.Status != intel.StatusComplete {
			continue
		}
		cached := city
		c.state.Cities[cached.CityID] = &cached
		c.state.CityOrder = append(c.state.CityOrder, cached.CityID)
	}
	return nil
}

// Start opens the orchestration stream for the given request. It returns
// once the stream is dialing; events flow through the registered callbacks
// and into State.
func (c *Client) Start(ctx context.Context, request StartRequest, opts ...StartOption) error {
	c.mu.Lock()
	if c.conn != nil && c.conn.State() != stream.StateClosed && c.conn.State() != stream.StateError {
		c.mu.Unlock()
		return ErrSessionActive
	}

	options := startOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	c.startOpts = options
	c.lastRequest = &request
	c.sessionID = request.SessionID
	c.state.IsProcessing = true
	c.mu.Unlock()

	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("error marshalling start request: %w", err)
	}

	connOpts := append([]stream.ConnectionOption{
		stream.WithHTTPClient(c.httpClient),
		stream.WithFrameCallback(c.handleFrame),
		stream.WithStateChangeCallback(c.handleConnState),
		stream.WithCancelNotifier(c.notifyCancel),
	}, c.connOpts...)
	conn := stream.NewConnection(c.baseURL+"/start", connOpts...)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	return conn.Start(ctx, payload)
}

// Cancel aborts the stream, notifies the server best-effort, and resets the
// session. Completed intelligence stays available in State.
func (c *Client) Cancel() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		conn.Cancel()
	}

	c.mu.Lock()
	c.state.SessionID = ""
	c.state.IsConnected = false
	c.state.IsProcessing = false
	c.state.Phase = PhasePlanning
	c.mu.Unlock()
}

// Reconnect resets the reconnect budget and redials with the retained
// start request.
func (c *Client) Reconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return stream.ErrNotStarted
	}
	return conn.Reconnect()
}

// ConnectionState reports the stream's lifecycle state.
func (c *Client) ConnectionState() stream.ConnState {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return stream.StateIdle
	}
	return conn.State()
}

// State returns a deep-copied point-in-time snapshot of the aggregate
// state. It never blocks on network activity.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.snapshot()
}

// ApplyOptimistic speculatively patches a city record ahead of server
// confirmation and returns the snapshot id to later Rollback or Confirm.
func (c *Client) ApplyOptimistic(cityID string, patch intel.CityPatch) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.apply(c.state.Cities, cityID, patch)
}

// Rollback restores the pre-mutation record saved under id. Unknown ids
// are no-ops.
func (c *Client) Rollback(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledger.rollback(c.state.Cities, id)
}

// Confirm discards the snapshot saved under id, keeping the speculative
// edit. Unknown ids are no-ops.
func (c *Client) Confirm(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledger.confirm(id)
}

// handleFrame is the stream's frame callback: decode, reduce, then fire
// side effects. It runs on the connection goroutine, which serializes
// events in arrival order.
func (c *Client) handleFrame(frame json.RawMessage) {
	event, err := events.Decode(frame)
	if err != nil {
		if errors.Is(err, events.ErrUnknownKind) {
			logger.Info("ignoring unknown event type", "frame", string(frame))
		} else {
			logger.Warn("skipping malformed event", "error", fmt.Sprint(err))
		}
		return
	}

	c.mu.Lock()
	prevPhase := c.state.Phase
	prevProgress := c.state.OverallProgress
	prevErrors := len(c.state.Errors)

	reduce(c.state, event)

	options := c.startOpts
	phase := c.state.Phase
	progress := c.state.OverallProgress
	var newErrors []ErrorRecord
	if len(c.state.Errors) > prevErrors {
		newErrors = append(newErrors, c.state.Errors[prevErrors:]...)
	}

	if c.state.SessionID != "" {
		c.sessionID = c.state.SessionID
	}

	var completedCity *intel.CityIntelligence
	if completed, ok := event.(events.CityCompleted); ok {
		if city := c.state.Cities[completed.CityID]; city != nil {
			completedCity = city.Clone()
		}
	}
	c.mu.Unlock()

	switch e := event.(type) {
	case events.CityCompleted:
		c.persistCompleted()
	case events.AllComplete:
		c.persistCompleted()
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
	case events.StreamError:
		if !e.Recoverable {
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn != nil {
				conn.Fail(fmt.Errorf("non-recoverable server error: %s", e.Message))
			}
		}
	}

	if options.onEvent != nil {
		options.onEvent(event)
	}
	if options.onPhaseChange != nil && phase != prevPhase {
		options.onPhaseChange(phase)
	}
	if options.onProgress != nil && progress != prevProgress {
		options.onProgress(progress)
	}
	if options.onError != nil {
		for _, record := range newErrors {
			options.onError(record)
		}
	}
	if options.onCityComplete != nil && completedCity != nil {
		options.onCityComplete(*completedCity)
	}
}

func (c *Client) handleConnState(state stream.ConnState) {
	c.mu.Lock()
	switch state {
	case stream.StateConnected:
		c.state.IsConnected = true
	case stream.StateReconnecting, stream.StateClosed, stream.StateError:
		c.state.IsConnected = false
	}
	callback := c.startOpts.onConnectionState
	c.mu.Unlock()

	if callback != nil {
		callback(state)
	}
}

// persistCompleted saves the current set of completed cities through the
// configured store. Failures are logged, never propagated: the cache is an
// optimization, not a dependency.
func (c *Client) persistCompleted() {
	if c.store == nil {
		return
	}

	c.mu.Lock()
	snapshot := &persistence.Snapshot{Version: persistence.SchemaVersion, SavedAt: time.Now()}
	for _, cityID := range c.state.CityOrder {
		city := c.state.Cities[cityID]
		if city == nil || city.Status != intel.StatusComplete {
			continue
		}
		snapshot.Cities = append(snapshot.Cities, *city.Clone())
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.Save(ctx, snapshot); err != nil {
		logger.Warn("failed to persist completed cities", "error", fmt.Sprint(err))
	}
}

// notifyCancel is the stream's best-effort cancellation notice to the
// server. It runs on its own goroutine after Cancel has already reset the
// session state, so it reads the retained id, not the live one. Failures
// are swallowed.
func (c *Client) notifyCancel(ctx context.Context) {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()
	if sessionID == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/cancel/"+sessionID, nil)
	if err != nil {
		return
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Info("cancel notification failed", "error", fmt.Sprint(err))
		return
	}
	resp.Body.Close()
}

// DeepDive asks a follow-up question about one city outside the streaming
// channel and appends the answer to that city's record.
func (c *Client) DeepDive(ctx context.Context, request DeepDiveRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "deep dive")
	defer span.End()

	c.mu.Lock()
	if request.SessionID == "" {
		request.SessionID = c.state.SessionID
	}
	c.mu.Unlock()

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("error marshalling deep-dive request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/deep-dive", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("error sending deep-dive request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		return "", err
	}

	var parsed deepDiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("error decoding deep-dive response: %w", err)
	}

	c.mu.Lock()
	if city, ok := c.state.Cities[request.CityID]; ok {
		city.DeepDives = append(city.DeepDives, intel.DeepDiveEntry{
			Topic:       request.Topic,
			CustomQuery: request.CustomQuery,
			Response:    parsed.Response,
			Timestamp:   time.Now(),
		})
	}
	c.mu.Unlock()

	return parsed.Response, nil
}

// SendFeedback submits a rating for one city. Delivery is best-effort:
// failures are logged and swallowed, never surfaced to the caller.
func (c *Client) SendFeedback(ctx context.Context, request FeedbackRequest) {
	c.mu.Lock()
	if request.SessionID == "" {
		request.SessionID = c.state.SessionID
	}
	c.mu.Unlock()

	body, err := json.Marshal(request)
	if err != nil {
		logger.Info("feedback dropped", "error", fmt.Sprint(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/feedback", bytes.NewReader(body))
	if err != nil {
		logger.Info("feedback dropped", "error", fmt.Sprint(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Info("feedback delivery failed", "error", fmt.Sprint(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		logger.Info("feedback delivery failed", "status", resp.Status)
	}
}
