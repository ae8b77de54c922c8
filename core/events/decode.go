package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/voyantlabs/voyant-core/core/intel"
)

// ErrUnknownKind is returned by Decode for event types this client version
// does not understand. Callers log and skip; unknown kinds never abort the
// stream.
var ErrUnknownKind = errors.New("unknown event kind")

type envelope struct {
	Type      Kind      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Wire payload bodies. Exported through PayloadSchema so producers can
// validate frames against the same structs this decoder reads.

type connectedPayload struct {
	SessionID string `json:"sessionId"`
}

type goalPayload struct {
	Goal intel.Goal `json:"goal"`
}

type planPayload struct {
	Cities []string `json:"cities"`
}

type agentPayload struct {
	CityID   string          `json:"cityId"`
	Agent    intel.AgentName `json:"agent"`
	Progress int             `json:"progress"`
	Success  bool            `json:"success"`
	Result   json.RawMessage `json:"result"`
	Error    string          `json:"error"`
}

type reflectionPayload struct {
	CityID          string `json:"cityId"`
	Quality         int    `json:"quality"`
	NeedsRefinement bool   `json:"needsRefinement"`
}

type refinementPayload struct {
	CityID    string `json:"cityId"`
	Iteration int    `json:"iteration"`
}

type cityCompletePayload struct {
	CityID       string                 `json:"cityId"`
	Intelligence intel.CityIntelligence `json:"intelligence"`
}

type errorPayload struct {
	CityID      string `json:"cityId"`
	Agent       string `json:"agent"`
	Message     string `json:"message"`
	Recoverable *bool  `json:"recoverable"`
}

// Decode parses one wire frame into a typed event. A frame whose type is
// not recognized yields ErrUnknownKind; any other error means the frame is
// malformed.
func Decode(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed event envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("event envelope missing type")
	}

	base := NewBaseAt(env.Type, env.Timestamp)

	switch env.Type {
	case KindConnected:
		var p connectedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return Connected{Base: base, SessionID: p.SessionID}, nil

	case KindGoalSet:
		var p goalPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return GoalSet{Base: base, Goal: p.Goal}, nil

	case KindPlanReady:
		var p planPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return PlanReady{Base: base, Cities: p.Cities}, nil

	case KindAgentStarted:
		var p agentPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return AgentStarted{Base: base, CityID: p.CityID, Agent: p.Agent}, nil

	case KindAgentProgress:
		var p agentPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return AgentProgress{Base: base, CityID: p.CityID, Agent: p.Agent, Progress: p.Progress}, nil

	case KindAgentCompleted:
		var p agentPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return AgentCompleted{Base: base, CityID: p.CityID, Agent: p.Agent, Success: p.Success, Result: p.Result}, nil

	case KindAgentFailed:
		var p agentPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return AgentFailed{Base: base, CityID: p.CityID, Agent: p.Agent, Error: p.Error}, nil

	case KindReflection:
		var p reflectionPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return Reflection{Base: base, CityID: p.CityID, Quality: p.Quality, NeedsRefinement: p.NeedsRefinement}, nil

	case KindRefinementStarted:
		var p refinementPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return RefinementStarted{Base: base, CityID: p.CityID, Iteration: p.Iteration}, nil

	case KindCityCompleted:
		var p cityCompletePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		if p.Intelligence.CityID == "" {
			p.Intelligence.CityID = p.CityID
		}
		return CityCompleted{Base: base, CityID: p.CityID, Intelligence: p.Intelligence}, nil

	case KindAllComplete:
		return AllComplete{Base: base}, nil

	case KindStreamError:
		var p errorPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		// Absent the flag, errors are assumed recoverable.
		recoverable := true
		if p.Recoverable != nil {
			recoverable = *p.Recoverable
		}
		return StreamError{Base: base, CityID: p.CityID, Agent: p.Agent, Message: p.Message, Recoverable: recoverable}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
}
