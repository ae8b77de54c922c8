package events

import (
	"encoding/json"

	"github.com/voyantlabs/voyant-core/core/intel"
)

const (
	// KindAgentStarted identifies agent execution start.
	KindAgentStarted Kind = "agent_started"
	// KindAgentProgress identifies an agent progress update.
	KindAgentProgress Kind = "agent_progress"
	// KindAgentCompleted identifies successful agent completion.
	KindAgentCompleted Kind = "agent_complete"
	// KindAgentFailed identifies agent failure.
	KindAgentFailed Kind = "agent_error"
)

// AgentStarted marks the start of one agent's work on one city.
type AgentStarted struct {
	Base
	CityID string
	Agent  intel.AgentName
}

// AgentProgress reports an agent's progress in [0,100].
type AgentProgress struct {
	Base
	CityID   string
	Agent    intel.AgentName
	Progress int
}

// AgentCompleted marks successful agent completion. Result holds the raw
// payload merged into the city field the agent is mapped to.
type AgentCompleted struct {
	Base
	CityID  string
	Agent   intel.AgentName
	Success bool
	Result  json.RawMessage
}

// AgentFailed marks agent failure. It never fails the city: a city can
// complete with partial fields.
type AgentFailed struct {
	Base
	CityID string
	Agent  intel.AgentName
	Error  string
}
