package intel

import (
	"encoding/json"
	"time"
)

// AgentStatus is the lifecycle state of one agent run. Like city status it
// never regresses.
type AgentStatus string

const (
	AgentPending   AgentStatus = "pending"
	AgentRunning   AgentStatus = "running"
	AgentCompleted AgentStatus = "completed"
	AgentFailed    AgentStatus = "failed"
)

var agentStatusRank = map[AgentStatus]int{
	AgentPending:   0,
	AgentRunning:   1,
	AgentFailed:    2,
	AgentCompleted: 3,
}

// MergeAgentStatus returns the further-along of the two statuses.
func MergeAgentStatus(current, next AgentStatus) AgentStatus {
	if agentStatusRank[next] > agentStatusRank[current] {
		return next
	}
	return current
}

// AgentExecution tracks one (city, agent) run for the lifetime of the
// session. It is never persisted.
type AgentExecution struct {
	CityID      string          `json:"cityId"`
	Agent       AgentName       `json:"agent"`
	Status      AgentStatus     `json:"status"`
	Progress    int             `json:"progress"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Clone returns a deep copy of the execution record.
func (a *AgentExecution) Clone() *AgentExecution {
	copied := *a
	if a.StartedAt != nil {
		startedAt := *a.StartedAt
		copied.StartedAt = &startedAt
	}
	if a.CompletedAt != nil {
		completedAt := *a.CompletedAt
		copied.CompletedAt = &completedAt
	}
	copied.Output = append(json.RawMessage(nil), a.Output...)
	return &copied
}

// SetProgress records progress monotonically, clamped to [0,100].
func (a *AgentExecution) SetProgress(progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if progress > a.Progress {
		a.Progress = progress
	}
}
