package events

import "github.com/voyantlabs/voyant-core/core/intel"

const (
	// KindGoalSet identifies the immutable run scope, emitted once.
	KindGoalSet Kind = "orchestrator_goal"
	// KindPlanReady identifies the orchestrator's execution plan.
	KindPlanReady Kind = "orchestrator_plan"
	// KindReflection identifies a quality assessment of a city.
	KindReflection Kind = "reflection"
	// KindRefinementStarted identifies the start of a refinement iteration.
	KindRefinementStarted Kind = "refinement_started"
)

// GoalSet carries the immutable scope of the run.
type GoalSet struct {
	Base
	Goal intel.Goal
}

// PlanReady lists the cities scheduled for processing.
type PlanReady struct {
	Base
	Cities []string
}

// Reflection reports the orchestrator's quality assessment of a city.
type Reflection struct {
	Base
	CityID          string
	Quality         int
	NeedsRefinement bool
}

// RefinementStarted marks the beginning of a refinement iteration for a city.
type RefinementStarted struct {
	Base
	CityID    string
	Iteration int
}
