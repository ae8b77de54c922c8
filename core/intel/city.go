package intel

import "time"

// Status is the lifecycle state of a city's intelligence record. It only
// ever moves forward; see MergeStatus.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusFailed     Status = "failed"
)

var statusRank = map[Status]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusFailed:     2,
	StatusComplete:   3,
}

// MergeStatus returns the further-along of the two statuses, so a record's
// status never regresses regardless of event ordering.
func MergeStatus(current, next Status) Status {
	if statusRank[next] > statusRank[current] {
		return next
	}
	return current
}

// CityIntelligence is the evolving intelligence record for one city. Result
// fields are populated independently, one per agent, and written
// monotonically; a city_complete snapshot replaces the record wholesale.
type CityIntelligence struct {
	CityID     string `json:"cityId"`
	Status     Status `json:"status"`
	Quality    int    `json:"quality"`
	Iterations int    `json:"iterations"`

	Story      *Story            `json:"story,omitempty"`
	TimeBlocks []TimeBlock       `json:"timeBlocks,omitempty"`
	Clusters   []ActivityCluster `json:"clusters,omitempty"`
	MatchScore *MatchScore       `json:"matchScore,omitempty"`
	HiddenGems []HiddenGem       `json:"hiddenGems,omitempty"`
	Logistics  *Logistics        `json:"logistics,omitempty"`
	Weather    *Weather          `json:"weather,omitempty"`
	PhotoSpots []PhotoSpot       `json:"photoSpots,omitempty"`

	DeepDives []DeepDiveEntry `json:"deepDives,omitempty"`
}

// NewCityIntelligence creates an empty pending record for cityID.
func NewCityIntelligence(cityID string) *CityIntelligence {
	return &CityIntelligence{CityID: cityID, Status: StatusPending}
}

// Clone returns a deep copy of the record sharing no memory with the
// original.
func (c *CityIntelligence) Clone() *CityIntelligence {
	copied := *c
	if c.Story != nil {
		story := *c.Story
		story.Highlights = append([]string(nil), c.Story.Highlights...)
		copied.Story = &story
	}
	copied.TimeBlocks = append([]TimeBlock(nil), c.TimeBlocks...)
	if c.Clusters != nil {
		copied.Clusters = make([]ActivityCluster, len(c.Clusters))
		for i, cluster := range c.Clusters {
			cluster.Activities = append([]string(nil), cluster.Activities...)
			copied.Clusters[i] = cluster
		}
	}
	if c.MatchScore != nil {
		score := *c.MatchScore
		if c.MatchScore.Dimensions != nil {
			score.Dimensions = make(map[string]int, len(c.MatchScore.Dimensions))
			for k, v := range c.MatchScore.Dimensions {
				score.Dimensions[k] = v
			}
		}
		if c.MatchScore.Tradeoffs != nil {
			score.Tradeoffs = make(map[string]string, len(c.MatchScore.Tradeoffs))
			for k, v := range c.MatchScore.Tradeoffs {
				score.Tradeoffs[k] = v
			}
		}
		copied.MatchScore = &score
	}
	copied.HiddenGems = append([]HiddenGem(nil), c.HiddenGems...)
	if c.Logistics != nil {
		logistics := *c.Logistics
		logistics.Tips = append([]string(nil), c.Logistics.Tips...)
		copied.Logistics = &logistics
	}
	if c.Weather != nil {
		weather := *c.Weather
		copied.Weather = &weather
	}
	copied.PhotoSpots = append([]PhotoSpot(nil), c.PhotoSpots...)
	copied.DeepDives = append([]DeepDiveEntry(nil), c.DeepDives...)
	return &copied
}

// Merge replaces the record with an authoritative server snapshot, keeping
// the status monotonic and preserving locally-appended deep dives.
func (c *CityIntelligence) Merge(snapshot CityIntelligence) {
	deepDives := c.DeepDives
	status := MergeStatus(c.Status, snapshot.Status)
	*c = snapshot
	c.Status = status
	c.DeepDives = deepDives
}

// Story is the narrative introduction to a city.
type Story struct {
	Headline   string   `json:"headline"`
	Narrative  string   `json:"narrative"`
	Highlights []string `json:"highlights,omitempty"`
}

// TimeBlock is one scheduled segment of a day plan.
type TimeBlock struct {
	Day        int    `json:"day"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Title      string `json:"title"`
	Activity   string `json:"activity"`
	Area       string `json:"area,omitempty"`
	EnergyCost string `json:"energyCost,omitempty"`
}

// ActivityCluster groups nearby activities into a walkable area.
type ActivityCluster struct {
	Name       string   `json:"name"`
	Area       string   `json:"area"`
	Activities []string `json:"activities"`
	BestTime   string   `json:"bestTime,omitempty"`
}

// MatchScore expresses how well a city fits the traveller's preferences.
type MatchScore struct {
	Score      int               `json:"score"`
	Reasoning  string            `json:"reasoning,omitempty"`
	Dimensions map[string]int    `json:"dimensions,omitempty"`
	Tradeoffs  map[string]string `json:"tradeoffs,omitempty"`
}

// HiddenGem is an off-the-beaten-path recommendation.
type HiddenGem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Area        string `json:"area,omitempty"`
	LocalTip    string `json:"localTip,omitempty"`
}

// Logistics covers on-the-ground practicalities for a stay.
type Logistics struct {
	Transport     string   `json:"transport,omitempty"`
	Accommodation string   `json:"accommodation,omitempty"`
	Budget        string   `json:"budget,omitempty"`
	Tips          []string `json:"tips,omitempty"`
}

// Weather is the expected conditions over the visit window.
type Weather struct {
	Summary       string  `json:"summary"`
	HighCelsius   float64 `json:"highCelsius,omitempty"`
	LowCelsius    float64 `json:"lowCelsius,omitempty"`
	RainChance    int     `json:"rainChance,omitempty"`
	PackingAdvice string  `json:"packingAdvice,omitempty"`
}

// PhotoSpot is a recommended photography location.
type PhotoSpot struct {
	Name     string `json:"name"`
	Subject  string `json:"subject,omitempty"`
	BestTime string `json:"bestTime,omitempty"`
	Tip      string `json:"tip,omitempty"`
}

// DeepDiveEntry is one follow-up question answered outside the streaming
// channel, appended to the city it concerns.
type DeepDiveEntry struct {
	Topic       string    `json:"topic"`
	CustomQuery string    `json:"customQuery,omitempty"`
	Response    string    `json:"response"`
	Timestamp   time.Time `json:"timestamp"`
}
