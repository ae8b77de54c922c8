package intel

import (
	"encoding/json"
	"fmt"
)

// ApplyAgentResult merges a successful agent result into the city field the
// agent is mapped to. Agents without a mapping (FieldNone or unknown) leave
// the record untouched. Writes are monotonic: an empty or unparseable
// result never clears a field that already holds data.
func (c *CityIntelligence) ApplyAgentResult(agent AgentName, result json.RawMessage) error {
	field, ok := FieldForAgent(agent)
	if !ok || field == FieldNone {
		return nil
	}
	if len(result) == 0 {
		return nil
	}

	switch field {
	case FieldStory:
		var story Story
		if err := json.Unmarshal(result, &story); err != nil {
			return fmt.Errorf("failed to parse %s result: %w", agent, err)
		}
		if story.Headline != "" || story.Narrative != "" || len(story.Highlights) > 0 || c.Story == nil {
			c.Story = &story
		}
	case FieldTimeBlocks:
		var blocks []TimeBlock
		if err := json.Unmarshal(result, &blocks); err != nil {
			return fmt.Errorf("failed to parse %s result: %w", agent, err)
		}
		if len(blocks) > 0 || c.TimeBlocks == nil {
			c.TimeBlocks = blocks
		}
	case FieldClusters:
		var clusters []ActivityCluster
		if err := json.Unmarshal(result, &clusters); err != nil {
			return fmt.Errorf("failed to parse %s result: %w", agent, err)
		}
		if len(clusters) > 0 || c.Clusters == nil {
			c.Clusters = clusters
		}
	case FieldMatchScore:
		var score MatchScore
		if err := json.Unmarshal(result, &score); err != nil {
			return fmt.Errorf("failed to parse %s result: %w", agent, err)
		}
		c.MatchScore = &score
	case FieldHiddenGems:
		var gems []HiddenGem
		if err := json.Unmarshal(result, &gems); err != nil {
			return fmt.Errorf("failed to parse %s result: %w", agent, err)
		}
		if len(gems) > 0 || c.HiddenGems == nil {
			c.HiddenGems = gems
		}
	case FieldLogistics:
		var logistics Logistics
		if err := json.Unmarshal(result, &logistics); err != nil {
			return fmt.Errorf("failed to parse %s result: %w", agent, err)
		}
		c.Logistics = &logistics
	case FieldWeather:
		var weather Weather
		if err := json.Unmarshal(result, &weather); err != nil {
			return fmt.Errorf("failed to parse %s result: %w", agent, err)
		}
		c.Weather = &weather
	case FieldPhotoSpots:
		var spots []PhotoSpot
		if err := json.Unmarshal(result, &spots); err != nil {
			return fmt.Errorf("failed to parse %s result: %w", agent, err)
		}
		if len(spots) > 0 || c.PhotoSpots == nil {
			c.PhotoSpots = spots
		}
	default:
		return fmt.Errorf("agent %q maps to unhandled field %q", agent, field)
	}
	return nil
}

// CityPatch is a partial speculative edit to a city record. Only non-nil
// fields are written; Apply performs the shallow merge used by the
// optimistic-update path.
type CityPatch struct {
	Quality    *int
	Iterations *int
	Story      *Story
	TimeBlocks []TimeBlock
	Clusters   []ActivityCluster
	MatchScore *MatchScore
	HiddenGems []HiddenGem
	Logistics  *Logistics
	Weather    *Weather
	PhotoSpots []PhotoSpot
}

// Apply shallow-merges the patch into the record.
func (p CityPatch) Apply(c *CityIntelligence) {
	if p.Quality != nil {
		c.Quality = *p.Quality
	}
	if p.Iterations != nil {
		c.Iterations = *p.Iterations
	}
	if p.Story != nil {
		c.Story = p.Story
	}
	if p.TimeBlocks != nil {
		c.TimeBlocks = p.TimeBlocks
	}
	if p.Clusters != nil {
		c.Clusters = p.Clusters
	}
	if p.MatchScore != nil {
		c.MatchScore = p.MatchScore
	}
	if p.HiddenGems != nil {
		c.HiddenGems = p.HiddenGems
	}
	if p.Logistics != nil {
		c.Logistics = p.Logistics
	}
	if p.Weather != nil {
		c.Weather = p.Weather
	}
	if p.PhotoSpots != nil {
		c.PhotoSpots = p.PhotoSpots
	}
}
