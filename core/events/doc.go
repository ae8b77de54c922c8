// Package events defines the typed contract for the orchestration event
// stream emitted by the travel-intelligence backend.
//
// Every frame on the wire is a JSON envelope {type, timestamp, ...}; Decode
// turns a raw frame into one of the typed events below. Wire type names are
// fixed by the backend protocol and listed next to each event.
//
// Session lifecycle
//
//   - Connected (connected): first event of a stream, carries the
//     server-assigned session id.
//   - AllComplete (all_complete): terminal event, every city finished.
//   - StreamError (error): backend-reported error; Recoverable=false ends
//     the session.
//
// Orchestrator events
//
//   - GoalSet (orchestrator_goal): immutable run scope, emitted once.
//   - PlanReady (orchestrator_plan): cities scheduled for processing.
//   - Reflection (reflection): quality assessment of a city's current
//     intelligence.
//   - RefinementStarted (refinement_started): a refinement iteration began.
//
// Agent events, one agent computes one facet of a city's intelligence
//
//   - AgentStarted (agent_started)
//   - AgentProgress (agent_progress): progress in [0,100], non-decreasing.
//   - AgentCompleted (agent_complete): carries the agent's result payload.
//   - AgentFailed (agent_error): agent-level failure, never fails the city.
//
// City events
//
//   - CityCompleted (city_complete): authoritative full snapshot of the
//     city's intelligence, taking precedence over individually-arrived
//     agent results.
package events
