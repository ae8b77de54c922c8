package orchestration

import (
	"math"

	"github.com/voyantlabs/voyant-core/core/intel"
)

// overallProgress is the share of completed cities, rounded to a whole
// percent. An empty city set is 0, never NaN.
func overallProgress(s *State) int {
	total := len(s.Cities)
	if total == 0 {
		return 0
	}
	complete := 0
	for _, city := range s.Cities {
		if city.Status == intel.StatusComplete {
			complete++
		}
	}
	return int(math.Round(100 * float64(complete) / float64(total)))
}

// cityProgress is the mean progress over the city's known agents: 100 for a
// completed agent, the reported progress for a running one, 0 otherwise.
func cityProgress(s *State, cityID string) int {
	if city, ok := s.Cities[cityID]; ok && city.Status == intel.StatusComplete {
		return 100
	}

	sum, known := 0, 0
	for key, execution := range s.Agents {
		if key.CityID != cityID {
			continue
		}
		known++
		switch execution.Status {
		case intel.AgentCompleted:
			sum += 100
		case intel.AgentRunning:
			sum += execution.Progress
		}
	}
	if known == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(known)))
}
