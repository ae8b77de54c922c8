package orchestration

import (
	"time"

	"github.com/voyantlabs/voyant-core/core/intel"
)

// Phase is the orchestrator's current stage as observed from the stream.
type Phase string

const (
	PhasePlanning   Phase = "planning"
	PhaseExecuting  Phase = "executing"
	PhaseReflecting Phase = "reflecting"
	PhaseRefining   Phase = "refining"
	PhaseComplete   Phase = "complete"
)

// AgentKey identifies one (city, agent) execution.
type AgentKey struct {
	CityID string
	Agent  intel.AgentName
}

// ErrorRecord is one entry of the append-only, user-visible error log.
type ErrorRecord struct {
	CityID    string    `json:"cityId,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the aggregate session state. It is owned by the client: the
// event-sourced path (reducer) and the speculative path (optimistic
// updates) both serialize through the client's lock, so a State obtained
// from Client.State is always a consistent point-in-time snapshot.
type State struct {
	SessionID    string
	IsConnected  bool
	IsProcessing bool
	Phase        Phase

	Goal      *intel.Goal
	CityOrder []string
	Cities    map[string]*intel.CityIntelligence
	Agents    map[AgentKey]*intel.AgentExecution

	OverallProgress int
	Errors          []ErrorRecord
}

func newState() *State {
	return &State{
		Phase:  PhasePlanning,
		Cities: make(map[string]*intel.CityIntelligence),
		Agents: make(map[AgentKey]*intel.AgentExecution),
	}
}

// ensureCity returns the record for cityID, creating an empty pending one
// if events arrive for a city the goal never announced.
func (s *State) ensureCity(cityID string) *intel.CityIntelligence {
	if city, ok := s.Cities[cityID]; ok {
		return city
	}
	city := intel.NewCityIntelligence(cityID)
	s.Cities[cityID] = city
	s.CityOrder = append(s.CityOrder, cityID)
	return city
}

func (s *State) ensureAgent(cityID string, agent intel.AgentName) *intel.AgentExecution {
	key := AgentKey{CityID: cityID, Agent: agent}
	if execution, ok := s.Agents[key]; ok {
		return execution
	}
	execution := &intel.AgentExecution{CityID: cityID, Agent: agent, Status: intel.AgentPending}
	s.Agents[key] = execution
	return execution
}

// snapshot returns a deep copy sharing no memory with the live state. The
// agents map is keyed by a struct, so the copy is assembled field by field
// rather than through a reflective copier; it cannot fail.
func (s *State) snapshot() State {
	copied := *s
	if s.Goal != nil {
		goal := *s.Goal
		goal.Cities = append([]string(nil), s.Goal.Cities...)
		copied.Goal = &goal
	}
	copied.CityOrder = append([]string(nil), s.CityOrder...)
	copied.Cities = make(map[string]*intel.CityIntelligence, len(s.Cities))
	for cityID, city := range s.Cities {
		copied.Cities[cityID] = city.Clone()
	}
	copied.Agents = make(map[AgentKey]*intel.AgentExecution, len(s.Agents))
	for key, execution := range s.Agents {
		copied.Agents[key] = execution.Clone()
	}
	copied.Errors = append([]ErrorRecord(nil), s.Errors...)
	return copied
}

// CityProgress returns the per-city completion percentage: the mean over
// the city's known agents of 100 for completed agents and the running
// progress otherwise. A city with no known agents is at 0.
func (s *State) CityProgress(cityID string) int {
	return cityProgress(s, cityID)
}

func (s *State) appendError(cityID, agent, message string, timestamp time.Time) {
	s.Errors = append(s.Errors, ErrorRecord{
		CityID:    cityID,
		Agent:     agent,
		Message:   message,
		Timestamp: timestamp,
	})
}
