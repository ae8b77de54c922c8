// Package sqlite provides a SQLite-backed persistence store for completed
// city intelligence records.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/voyantlabs/voyant-core/core/intel"
	"github.com/voyantlabs/voyant-core/core/persistence"
	_ "modernc.org/sqlite"
)

// Store implements persistence.Store on a local SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the cache database at dbPath.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL keeps concurrent readers cheap for what is a single-writer cache.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS cache_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		schema_version INTEGER NOT NULL,
		saved_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS completed_cities (
		city_id TEXT PRIMARY KEY,
		intelligence_json TEXT NOT NULL,
		saved_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Load returns the cached snapshot. A schema-version mismatch wipes the
// cache and yields an empty snapshot; there is no migration path.
func (s *Store) Load(ctx context.Context) (*persistence.Snapshot, error) {
	var version int
	var savedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT schema_version, saved_at FROM cache_meta WHERE id = 1`).
		Scan(&version, &savedAt)
	if err == sql.ErrNoRows {
		return &persistence.Snapshot{Version: persistence.SchemaVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache meta: %w", err)
	}

	if version != persistence.SchemaVersion {
		if err := s.wipe(ctx); err != nil {
			return nil, fmt.Errorf("wipe stale cache: %w", err)
		}
		return &persistence.Snapshot{Version: persistence.SchemaVersion}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT intelligence_json FROM completed_cities ORDER BY city_id`)
	if err != nil {
		return nil, fmt.Errorf("read cached cities: %w", err)
	}
	defer rows.Close()

	snapshot := &persistence.Snapshot{
		Version: version,
		SavedAt: time.Unix(savedAt, 0),
	}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan cached city: %w", err)
		}
		var city intel.CityIntelligence
		if err := json.Unmarshal([]byte(raw), &city); err != nil {
			return nil, fmt.Errorf("decode cached city: %w", err)
		}
		snapshot.Cities = append(snapshot.Cities, city)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cached cities: %w", err)
	}
	return snapshot, nil
}

// Save replaces the cache with the snapshot's completed cities. Records
// with any other status are skipped.
func (s *Store) Save(ctx context.Context, snapshot *persistence.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_meta (id, schema_version, saved_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET schema_version = excluded.schema_version, saved_at = excluded.saved_at`,
		persistence.SchemaVersion, now.Unix()); err != nil {
		return fmt.Errorf("write cache meta: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM completed_cities`); err != nil {
		return fmt.Errorf("clear cached cities: %w", err)
	}

	for _, city := range snapshot.Cities {
		if city.Status != intel.StatusComplete {
			continue
		}
		raw, err := json.Marshal(city)
		if err != nil {
			return fmt.Errorf("encode city %s: %w", city.CityID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO completed_cities (city_id, intelligence_json, saved_at) VALUES (?, ?, ?)`,
			city.CityID, string(raw), now.Unix()); err != nil {
			return fmt.Errorf("write city %s: %w", city.CityID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) wipe(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM completed_cities`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_meta`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
