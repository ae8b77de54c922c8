package orchestration

import (
	"fmt"

	"github.com/voyantlabs/voyant-core/core/events"
	"github.com/voyantlabs/voyant-core/core/intel"
)

// reduce folds one event into the aggregate state. It is the only mutation
// point of the event-sourced path and is applied once per event, in strict
// arrival order, under the client's lock.
//
// Events for a (city, agent) pair are assumed causally ordered by the
// server; reduce does not buffer or reorder. Out-of-order sequences produce
// whatever the sequence implies, guarded only by the monotonicity rules on
// status and progress. Unknown event types never reach this function (the
// decoder rejects them), and no event makes it panic.
func reduce(s *State, event events.Event) {
	switch e := event.(type) {
	case events.Connected:
		if e.SessionID != "" {
			s.SessionID = e.SessionID
		}
		s.IsConnected = true
		s.IsProcessing = true

	case events.GoalSet:
		if s.Goal == nil {
			goal := e.Goal
			s.Goal = &goal
		}
		for _, cityID := range e.Goal.Cities {
			s.ensureCity(cityID)
		}

	case events.PlanReady:
		for _, cityID := range e.Cities {
			city := s.ensureCity(cityID)
			city.Status = intel.MergeStatus(city.Status, intel.StatusProcessing)
		}
		s.Phase = PhaseExecuting

	case events.AgentStarted:
		city := s.ensureCity(e.CityID)
		city.Status = intel.MergeStatus(city.Status, intel.StatusProcessing)
		execution := s.ensureAgent(e.CityID, e.Agent)
		execution.Status = intel.MergeAgentStatus(execution.Status, intel.AgentRunning)
		execution.Progress = 0
		startedAt := e.Timestamp()
		execution.StartedAt = &startedAt

	case events.AgentProgress:
		execution := s.ensureAgent(e.CityID, e.Agent)
		execution.Status = intel.MergeAgentStatus(execution.Status, intel.AgentRunning)
		execution.SetProgress(e.Progress)

	case events.AgentCompleted:
		execution := s.ensureAgent(e.CityID, e.Agent)
		execution.Status = intel.MergeAgentStatus(execution.Status, intel.AgentCompleted)
		execution.SetProgress(100)
		completedAt := e.Timestamp()
		execution.CompletedAt = &completedAt
		execution.Output = e.Result

		if e.Success {
			city := s.ensureCity(e.CityID)
			if err := city.ApplyAgentResult(e.Agent, e.Result); err != nil {
				logger.Warn("skipping unusable agent result",
					"city", e.CityID, "agent", string(e.Agent), "error", fmt.Sprint(err))
			}
		}

	case events.AgentFailed:
		execution := s.ensureAgent(e.CityID, e.Agent)
		execution.Status = intel.MergeAgentStatus(execution.Status, intel.AgentFailed)
		completedAt := e.Timestamp()
		execution.CompletedAt = &completedAt
		execution.Error = e.Error
		s.appendError(e.CityID, string(e.Agent), e.Error, e.Timestamp())

	case events.Reflection:
		s.Phase = PhaseReflecting
		city := s.ensureCity(e.CityID)
		city.Quality = e.Quality

	case events.RefinementStarted:
		s.Phase = PhaseRefining
		city := s.ensureCity(e.CityID)
		if e.Iteration > city.Iterations {
			city.Iterations = e.Iteration
		}

	case events.CityCompleted:
		snapshot := e.Intelligence
		snapshot.Status = intel.StatusComplete
		city := s.ensureCity(e.CityID)
		city.Merge(snapshot)

	case events.AllComplete:
		s.IsProcessing = false
		s.IsConnected = false
		s.Phase = PhaseComplete
		s.OverallProgress = 100

	case events.StreamError:
		s.appendError(e.CityID, e.Agent, e.Message, e.Timestamp())
		if !e.Recoverable {
			s.IsProcessing = false
		}
	}

	// Overall progress is derived after every step and never decreases
	// short of an explicit session reset.
	if overall := overallProgress(s); overall > s.OverallProgress {
		s.OverallProgress = overall
	}
}
