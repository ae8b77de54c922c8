package intel

import "fmt"

// AgentName identifies one backend unit computing one facet of a city's
// intelligence.
type AgentName string

const (
	AgentStory      AgentName = "story"
	AgentTimeBlocks AgentName = "time_blocks"
	AgentClusters   AgentName = "clusters"
	AgentMatchScore AgentName = "match_score"
	AgentHiddenGems AgentName = "hidden_gems"
	AgentLogistics  AgentName = "logistics"
	AgentWeather    AgentName = "weather"
	AgentPhotoSpots AgentName = "photo_spots"
	AgentQuality    AgentName = "quality"
)

// AllAgents lists every agent the orchestrator may run for a city, in the
// order the backend schedules them.
var AllAgents = []AgentName{
	AgentStory,
	AgentTimeBlocks,
	AgentClusters,
	AgentMatchScore,
	AgentHiddenGems,
	AgentLogistics,
	AgentWeather,
	AgentPhotoSpots,
	AgentQuality,
}

// Field names a result field of CityIntelligence. FieldNone marks agents
// whose completion moves status only and writes no field.
type Field string

const (
	FieldStory      Field = "story"
	FieldTimeBlocks Field = "timeBlocks"
	FieldClusters   Field = "clusters"
	FieldMatchScore Field = "matchScore"
	FieldHiddenGems Field = "hiddenGems"
	FieldLogistics  Field = "logistics"
	FieldWeather    Field = "weather"
	FieldPhotoSpots Field = "photoSpots"
	FieldNone       Field = ""
)

// agentFields is the data table routing each agent's result into a city
// field. Every agent in AllAgents must appear here exactly once, either
// mapped to a field or explicitly marked FieldNone; ValidateAgentFields
// enforces this at client construction.
var agentFields = map[AgentName]Field{
	AgentStory:      FieldStory,
	AgentTimeBlocks: FieldTimeBlocks,
	AgentClusters:   FieldClusters,
	AgentMatchScore: FieldMatchScore,
	AgentHiddenGems: FieldHiddenGems,
	AgentLogistics:  FieldLogistics,
	AgentWeather:    FieldWeather,
	AgentPhotoSpots: FieldPhotoSpots,
	AgentQuality:    FieldNone,
}

// FieldForAgent returns the field an agent's result merges into. The second
// return is false for agents absent from the table (unknown to this client
// version); such completions update agent status only.
func FieldForAgent(agent AgentName) (Field, bool) {
	field, ok := agentFields[agent]
	return field, ok
}

// ValidateAgentFields checks the agent-field table against the agent
// registry: every registered agent mapped, no stray table entries, and no
// two agents writing the same field.
func ValidateAgentFields() error {
	seen := make(map[Field]AgentName, len(agentFields))
	for _, agent := range AllAgents {
		field, ok := agentFields[agent]
		if !ok {
			return fmt.Errorf("agent %q has no field mapping", agent)
		}
		if field == FieldNone {
			continue
		}
		if prev, dup := seen[field]; dup {
			return fmt.Errorf("agents %q and %q both map to field %q", prev, agent, field)
		}
		seen[field] = agent
	}
	if len(agentFields) != len(AllAgents) {
		for agent := range agentFields {
			known := false
			for _, a := range AllAgents {
				if a == agent {
					known = true
					break
				}
			}
			if !known {
				return fmt.Errorf("field table maps unregistered agent %q", agent)
			}
		}
	}
	return nil
}
