package orchestration

import (
	"time"

	"github.com/google/uuid"
	"github.com/voyantlabs/voyant-core/core/intel"
)

// optimisticSnapshot is a saved pre-mutation copy of one city record,
// consumed exactly once by rollback or confirm.
type optimisticSnapshot struct {
	id      string
	cityID  string
	takenAt time.Time
	record  *intel.CityIntelligence
}

// optimisticLedger holds speculative mutations layered over the aggregate
// state while a server round-trip is pending. All methods run under the
// client's lock, the same one the reducer serializes through.
//
// Overlapping edits to one city are independent: each snapshot captures the
// live record at apply time, so rolling back an older snapshot after a
// newer one was confirmed restores the older value. Last writer wins; this
// is not an undo stack.
type optimisticLedger struct {
	snapshots map[string]optimisticSnapshot
}

func newOptimisticLedger() optimisticLedger {
	return optimisticLedger{snapshots: make(map[string]optimisticSnapshot)}
}

// apply deep-copies the live record under a fresh id, then shallow-merges
// the patch into it. When the city is absent nothing is mutated and the
// returned id maps to nothing: rollback and confirm on it are no-ops.
func (l *optimisticLedger) apply(cities map[string]*intel.CityIntelligence, cityID string, patch intel.CityPatch) string {
	id := uuid.NewString()

	city, ok := cities[cityID]
	if !ok {
		return id
	}

	l.snapshots[id] = optimisticSnapshot{
		id:      id,
		cityID:  cityID,
		takenAt: time.Now(),
		record:  city.Clone(),
	}
	patch.Apply(city)
	return id
}

// rollback restores the saved copy verbatim and discards the entry.
// Unknown ids are no-ops.
func (l *optimisticLedger) rollback(cities map[string]*intel.CityIntelligence, id string) {
	snapshot, ok := l.snapshots[id]
	if !ok {
		return
	}
	delete(l.snapshots, id)
	cities[snapshot.cityID] = snapshot.record
}

// confirm discards the entry without touching live state. Unknown ids are
// no-ops.
func (l *optimisticLedger) confirm(id string) {
	delete(l.snapshots, id)
}
