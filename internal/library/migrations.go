package library

import (
	"context"
	"fmt"

	"github.com/Beau253/MusicManager/internal/services"
)

// Migrations are numbered from 1 and tracked in PRAGMA user_version. All
// pending migrations apply inside a single transaction; a half-migrated
// database is never left behind.
var migrations = []string{
	// 1: initial schema
	`CREATE TABLE IF NOT EXISTS tracks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    spotify_uri TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    artist TEXT NOT NULL,
    album TEXT,
    playlist_name TEXT,
    status TEXT NOT NULL DEFAULT 'queued',
    error_message TEXT,
    fail_count INTEGER NOT NULL DEFAULT 0,
    temp_path TEXT,
    final_path TEXT,
    recording_id TEXT,
    monitor_status TEXT NOT NULL DEFAULT 'unknown',
    library_presence TEXT NOT NULL DEFAULT 'unknown',
    last_attempt_at TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tracks_status ON tracks(status);

CREATE TABLE IF NOT EXISTS track_metadata (
    track_id INTEGER PRIMARY KEY REFERENCES tracks(id) ON DELETE CASCADE,
    musicbrainz_recording_id TEXT,
    musicbrainz_release_id TEXT,
    tagged_title TEXT,
    tagged_artist TEXT,
    tagged_album TEXT,
    duration_ms INTEGER,
    quality TEXT,
    organized_path TEXT,
    updated_at TEXT NOT NULL
);`,
	// 2: durable daily download accounting
	`CREATE TABLE IF NOT EXISTS quota_usage (
    day TEXT PRIMARY KEY,
    used INTEGER NOT NULL DEFAULT 0
);`,
	// 3: remaining tag read-back attributes
	`ALTER TABLE track_metadata ADD COLUMN tagged_album_artist TEXT;
ALTER TABLE track_metadata ADD COLUMN tagged_genre TEXT;
ALTER TABLE track_metadata ADD COLUMN tagged_date TEXT;
ALTER TABLE track_metadata ADD COLUMN track_number INTEGER;
ALTER TABLE track_metadata ADD COLUMN disc_number INTEGER;`,
}

func (s *Store) applyMigrations(ctx context.Context) error {
	ctx = ensureContext(ctx)

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return services.Wrap(services.ErrStorage, "library", "migrate", "read schema version", err)
	}
	if version >= len(migrations) {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return services.Wrap(services.ErrStorage, "library", "migrate", "begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for next := version; next < len(migrations); next++ {
		if _, err := tx.ExecContext(ctx, migrations[next]); err != nil {
			return services.Wrap(services.ErrStorage, "library", "migrate",
				fmt.Sprintf("apply migration %d", next+1), err)
		}
	}

	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
		return services.Wrap(services.ErrStorage, "library", "migrate", "record schema version", err)
	}

	if err := tx.Commit(); err != nil {
		return services.Wrap(services.ErrStorage, "library", "migrate", "commit", err)
	}
	return nil
}

// SchemaVersion reports the applied migration level.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ensureContext(ctx), "PRAGMA user_version").Scan(&version); err != nil {
		return 0, services.Wrap(services.ErrStorage, "library", "migrate", "read schema version", err)
	}
	return version, nil
}
