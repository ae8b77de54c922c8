package orchestration

import (
	"net/http"

	"github.com/voyantlabs/voyant-core/core/events"
	"github.com/voyantlabs/voyant-core/core/intel"
	"github.com/voyantlabs/voyant-core/core/persistence"
	"github.com/voyantlabs/voyant-core/core/stream"
)

type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for the stream and the side
// calls (cancel, deep-dive, feedback).
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithStore sets the persistence adapter caching completed city records
// across restarts. Without it nothing is persisted.
func WithStore(store persistence.Store) ClientOption {
	return func(c *Client) {
		c.store = store
	}
}

// WithConnectionOptions forwards options to the underlying stream
// connection (heartbeat timeout, backoff, attempt budget, transport).
func WithConnectionOptions(opts ...stream.ConnectionOption) ClientOption {
	return func(c *Client) {
		c.connOpts = append(c.connOpts, opts...)
	}
}

type StartOption func(*startOptions)

type startOptions struct {
	onEvent           func(events.Event)
	onPhaseChange     func(Phase)
	onCityComplete    func(intel.CityIntelligence)
	onProgress        func(overall int)
	onError           func(ErrorRecord)
	onConnectionState func(stream.ConnState)
}

// WithEventCallback fires for every reduced event, after the state update.
func WithEventCallback(callback func(events.Event)) StartOption {
	return func(o *startOptions) {
		o.onEvent = callback
	}
}

// WithPhaseChangeCallback fires when the orchestration phase moves.
func WithPhaseChangeCallback(callback func(Phase)) StartOption {
	return func(o *startOptions) {
		o.onPhaseChange = callback
	}
}

// WithCityCompleteCallback fires with the final snapshot of each completed
// city.
func WithCityCompleteCallback(callback func(intel.CityIntelligence)) StartOption {
	return func(o *startOptions) {
		o.onCityComplete = callback
	}
}

// WithProgressCallback fires when overall progress changes.
func WithProgressCallback(callback func(overall int)) StartOption {
	return func(o *startOptions) {
		o.onProgress = callback
	}
}

// WithErrorCallback fires for every record appended to the error log.
func WithErrorCallback(callback func(ErrorRecord)) StartOption {
	return func(o *startOptions) {
		o.onError = callback
	}
}

// WithConnectionStateCallback fires on stream state transitions.
func WithConnectionStateCallback(callback func(stream.ConnState)) StartOption {
	return func(o *startOptions) {
		o.onConnectionState = callback
	}
}
