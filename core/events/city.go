package events

import "github.com/voyantlabs/voyant-core/core/intel"

const (
	// KindCityCompleted identifies the authoritative final snapshot for a city.
	KindCityCompleted Kind = "city_complete"
)

// CityCompleted carries the server's final snapshot of a city's
// intelligence, which replaces anything assembled from individual agent
// results.
type CityCompleted struct {
	Base
	CityID       string
	Intelligence intel.CityIntelligence
}
