package events

const (
	// KindConnected identifies the first event of a stream.
	KindConnected Kind = "connected"
	// KindAllComplete identifies the terminal event of a successful run.
	KindAllComplete Kind = "all_complete"
	// KindStreamError identifies a backend-reported error.
	KindStreamError Kind = "error"
)

// Connected carries the server-assigned session id.
type Connected struct {
	Base
	SessionID string
}

// AllComplete marks the end of a run: every city finished.
type AllComplete struct {
	Base
}

// StreamError is a backend-reported error. Recoverable=false ends the
// session regardless of the remaining reconnect budget.
type StreamError struct {
	Base
	CityID      string
	Agent       string
	Message     string
	Recoverable bool
}
