// Package persistence defines the swappable cache used to survive restarts.
// Only completed city records are ever persisted, under a schema version; a
// version mismatch wipes the cache rather than migrating it.
package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/voyantlabs/voyant-core/core/intel"
)

// SchemaVersion is bumped whenever the persisted shape of CityIntelligence
// changes. Stores holding any other version discard their contents on load.
const SchemaVersion = 1

// Snapshot is the persisted form of a session's completed cities.
type Snapshot struct {
	Version int                      `json:"version"`
	SavedAt time.Time                `json:"savedAt"`
	Cities  []intel.CityIntelligence `json:"cities"`
}

// Store is the persistence adapter contract. Load returns an empty snapshot
// when nothing (or an incompatible version) is stored; it never migrates.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Memory is an in-process Store, the default for tests and for callers that
// opt out of durable caching.
type Memory struct {
	mu       sync.Mutex
	snapshot *Snapshot
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshot == nil || m.snapshot.Version != SchemaVersion {
		m.snapshot = nil
		return &Snapshot{Version: SchemaVersion}, nil
	}

	var copied Snapshot
	if err := copier.CopyWithOption(&copied, m.snapshot, copier.Option{DeepCopy: true}); err != nil {
		return nil, err
	}
	return &copied, nil
}

func (m *Memory) Save(_ context.Context, snapshot *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var copied Snapshot
	if err := copier.CopyWithOption(&copied, snapshot, copier.Option{DeepCopy: true}); err != nil {
		return err
	}
	copied.Version = SchemaVersion
	m.snapshot = &copied
	return nil
}

func (m *Memory) Close() error {
	return nil
}
