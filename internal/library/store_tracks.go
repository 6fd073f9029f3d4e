package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Beau253/MusicManager/internal/services"
)

// Queue inserts a new track in queued status. A track whose URI is already
// present is reported as a duplicate, not an error.
func (s *Store) Queue(ctx context.Context, uri, title, artist, album, playlistName string) (*QueueResult, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, services.Wrap(services.ErrValidation, "library", "queue", "track URI must not be empty", nil)
	}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(artist) == "" {
		return nil, services.Wrap(services.ErrValidation, "library", "queue", "title and artist must not be empty", nil)
	}

	timestamp := nowStamp()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO tracks (spotify_uri, title, artist, album, playlist_name, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(spotify_uri) DO NOTHING`,
		uri,
		strings.TrimSpace(title),
		strings.TrimSpace(artist),
		nullableString(strings.TrimSpace(album)),
		nullableString(strings.TrimSpace(playlistName)),
		StatusQueued,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "library", "queue", "insert track", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "library", "queue", "rows affected", err)
	}

	track, err := s.GetByURI(ctx, uri)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return &QueueResult{Added: false, Reason: "already queued", Track: track}, nil
	}
	return &QueueResult{Added: true, Track: track}, nil
}

// GetByID fetches a single track.
func (s *Store) GetByID(ctx context.Context, id int64) (*Track, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+trackColumns+" FROM tracks WHERE id = ?", id)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "library", "get", "fetch track", err)
	}
	return track, nil
}

// GetByURI fetches a single track by its streaming-catalog URI.
func (s *Store) GetByURI(ctx context.Context, uri string) (*Track, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+trackColumns+" FROM tracks WHERE spotify_uri = ?", uri)
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "library", "get", "fetch track by uri", err)
	}
	return track, nil
}

// GetDetails fetches a track together with its recorded metadata, if any.
func (s *Store) GetDetails(ctx context.Context, id int64) (*Details, error) {
	track, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, nil
	}

	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+metadataColumns+" FROM track_metadata WHERE track_id = ?", id)
	meta, err := scanMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return &Details{Track: *track}, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "library", "get", "fetch track metadata", err)
	}
	return &Details{Track: *track, Metadata: meta}, nil
}

// Search returns tracks whose title, artist, album, or URI contains the
// term, newest first. Statuses, when given, narrow the match further.
func (s *Store) Search(ctx context.Context, term string, limit int, statuses ...Status) ([]*Track, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, services.Wrap(services.ErrValidation, "library", "search", "search term must not be empty", nil)
	}
	if limit <= 0 {
		limit = 50
	}

	pattern := "%" + escapeLike(term) + "%"
	query := `SELECT ` + trackColumns + ` FROM tracks
         WHERE (title LIKE ? ESCAPE '\' OR artist LIKE ? ESCAPE '\' OR album LIKE ? ESCAPE '\' OR spotify_uri LIKE ? ESCAPE '\')`
	args := []any{pattern, pattern, pattern, pattern}
	if len(statuses) > 0 {
		query += " AND status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "library", "search", "query tracks", err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

// ByStatus returns tracks in the given statuses in FIFO order. With no
// statuses it returns the whole queue.
func (s *Store) ByStatus(ctx context.Context, statuses ...Status) ([]*Track, error) {
	query := "SELECT " + trackColumns + " FROM tracks"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "library", "list", "query tracks", err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

// UpdateStatus moves a track through the lifecycle. Transitions the
// lifecycle does not allow are rejected. Failure and skipped statuses store
// errorMessage; moving back to queued preserves the previous message so the
// last failure stays visible; any other transition clears it. Entering a
// processing status stamps last_attempt_at, and entering a failure status
// bumps fail_count.
func (s *Store) UpdateStatus(ctx context.Context, id int64, next Status, errorMessage string) error {
	if _, ok := statusSet[next]; !ok {
		return services.Wrap(services.ErrValidation, "library", "update status",
			fmt.Sprintf("unknown status %q", next), nil)
	}

	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return services.Wrap(services.ErrStorage, "library", "update status", "begin transaction", err)
		}
		defer func() { _ = tx.Rollback() }()

		var currentStr string
		err = tx.QueryRowContext(ctx, "SELECT status FROM tracks WHERE id = ?", id).Scan(&currentStr)
		if errors.Is(err, sql.ErrNoRows) {
			return services.Wrap(services.ErrNotFound, "library", "update status",
				fmt.Sprintf("track %d", id), nil)
		}
		if err != nil {
			return services.Wrap(services.ErrStorage, "library", "update status", "read current status", err)
		}

		current := Status(currentStr)
		if !CanTransition(current, next) {
			return services.Wrap(services.ErrValidation, "library", "update status",
				fmt.Sprintf("transition %s -> %s is not allowed", current, next), nil)
		}

		stamp := nowStamp()
		query := "UPDATE tracks SET status = ?, updated_at = ?"
		args := []any{next, stamp}
		switch {
		case next.IsFailure() || next == StatusSkipped:
			query += ", error_message = ?"
			args = append(args, nullableString(strings.TrimSpace(errorMessage)))
		case next == StatusQueued:
			// keep the previous error_message
		default:
			query += ", error_message = NULL"
		}
		if next.IsFailure() {
			query += ", fail_count = fail_count + 1"
		}
		if next.IsProcessing() {
			query += ", last_attempt_at = ?"
			args = append(args, stamp)
		}
		query += " WHERE id = ?"
		args = append(args, id)

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return services.Wrap(services.ErrStorage, "library", "update status", "write status", err)
		}

		if err := tx.Commit(); err != nil {
			return services.Wrap(services.ErrStorage, "library", "update status", "commit", err)
		}
		return nil
	})
}

// MarkDownloadComplete records a finished download along with the location
// of the raw file awaiting organization. tempPath may be empty when the
// download tool's output could not be pinned to a single file.
func (s *Store) MarkDownloadComplete(ctx context.Context, id int64, tempPath string) error {
	if err := s.UpdateStatus(ctx, id, StatusDownloadComplete, ""); err != nil {
		return err
	}
	err := s.execWithoutResultRetry(ensureContext(ctx),
		"UPDATE tracks SET temp_path = ?, updated_at = ? WHERE id = ?",
		nullableString(tempPath), nowStamp(), id)
	if err != nil {
		return services.Wrap(services.ErrStorage, "library", "mark download complete", "write temp path", err)
	}
	return nil
}

// MarkOrganized records the final library location of an organized track
// along with the recording ID read back from its tags. finalPath is
// relative to the organized library root. The temp path is cleared because
// the raw download no longer exists.
func (s *Store) MarkOrganized(ctx context.Context, id int64, finalPath, recordingID string) error {
	if strings.TrimSpace(finalPath) == "" {
		return services.Wrap(services.ErrValidation, "library", "mark organized", "final path must not be empty", nil)
	}
	if err := s.UpdateStatus(ctx, id, StatusOrganized, ""); err != nil {
		return err
	}
	err := s.execWithoutResultRetry(ensureContext(ctx),
		"UPDATE tracks SET final_path = ?, recording_id = ?, temp_path = NULL, library_presence = ?, updated_at = ? WHERE id = ?",
		strings.TrimSpace(finalPath), nullableString(recordingID), PresencePresent, nowStamp(), id)
	if err != nil {
		return services.Wrap(services.ErrStorage, "library", "mark organized", "write final path", err)
	}
	return nil
}

// SetMonitorStatus records what Lidarr last reported for the track's album.
func (s *Store) SetMonitorStatus(ctx context.Context, id int64, status MonitorStatus) error {
	switch status {
	case MonitorUnknown, MonitorMonitored, MonitorOnDisk:
	default:
		return services.Wrap(services.ErrValidation, "library", "set monitor status",
			fmt.Sprintf("unknown monitor status %q", status), nil)
	}
	err := s.execWithoutResultRetry(ensureContext(ctx),
		"UPDATE tracks SET monitor_status = ?, updated_at = ? WHERE id = ?",
		status, nowStamp(), id)
	if err != nil {
		return services.Wrap(services.ErrStorage, "library", "set monitor status", "write monitor status", err)
	}
	return nil
}

// MarkLibraryPresence records whether the organized file was found on disk
// during a library verification pass.
func (s *Store) MarkLibraryPresence(ctx context.Context, id int64, presence PresenceStatus) error {
	switch presence {
	case PresenceUnknown, PresencePresent, PresenceMissing:
	default:
		return services.Wrap(services.ErrValidation, "library", "mark presence",
			fmt.Sprintf("unknown presence %q", presence), nil)
	}
	err := s.execWithoutResultRetry(ensureContext(ctx),
		"UPDATE tracks SET library_presence = ?, updated_at = ? WHERE id = ?",
		presence, nowStamp(), id)
	if err != nil {
		return services.Wrap(services.ErrStorage, "library", "mark presence", "write presence", err)
	}
	return nil
}

// Remove deletes a track and any metadata attached to it. Reports whether a
// row actually went away.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ensureContext(ctx), "DELETE FROM tracks WHERE id = ?", id)
	if err != nil {
		return false, services.Wrap(services.ErrStorage, "library", "remove", "delete track", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, services.Wrap(services.ErrStorage, "library", "remove", "rows affected", err)
	}
	return affected > 0, nil
}

// ResetStatus puts one failed track back to queued for another attempt. The
// error message and fail count stay in place so the history of the last
// failure survives the retry. Reports whether the track was actually reset;
// a track in any non-failure status is left alone.
func (s *Store) ResetStatus(ctx context.Context, id int64) (bool, error) {
	track, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if track == nil {
		return false, services.Wrap(services.ErrNotFound, "library", "reset",
			fmt.Sprintf("track %d", id), nil)
	}
	if !track.Status.IsFailure() {
		return false, nil
	}
	if err := s.UpdateStatus(ctx, id, StatusQueued, ""); err != nil {
		return false, err
	}
	return true, nil
}

// ResetAllFailed moves every failed track back to queued for another
// attempt, keeping their recorded error messages.
func (s *Store) ResetAllFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tracks SET status = ?, updated_at = ?
         WHERE status IN (?, ?)`,
		StatusQueued,
		nowStamp(),
		StatusDownloadFailed,
		StatusPicardFailed,
	)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "library", "reset failed", "update tracks", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "library", "reset failed", "rows affected", err)
	}
	return count, nil
}

// ReclaimStuckProcessing returns tracks stranded in a processing status by
// an interrupted run to the start of their stage.
func (s *Store) ReclaimStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tracks
         SET status = CASE status
             WHEN ? THEN ?
             WHEN ? THEN ?
             ELSE status
         END,
             updated_at = ?
         WHERE status IN (?, ?)`,
		StatusProcessingDownload, StatusQueued,
		StatusProcessingPicard, StatusDownloadComplete,
		nowStamp(),
		StatusProcessingDownload,
		StatusProcessingPicard,
	)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "library", "reclaim", "update stuck tracks", err)
	}
	return res.RowsAffected()
}

// UpsertMetadata records tag read-back values for a track, replacing any
// earlier row.
func (s *Store) UpsertMetadata(ctx context.Context, meta Metadata) error {
	if meta.TrackID <= 0 {
		return services.Wrap(services.ErrValidation, "library", "upsert metadata", "track id must be positive", nil)
	}
	err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO track_metadata (
            track_id, musicbrainz_recording_id, musicbrainz_release_id,
            tagged_title, tagged_artist, tagged_album_artist, tagged_album,
            tagged_genre, tagged_date, track_number, disc_number,
            duration_ms, quality, organized_path, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(track_id) DO UPDATE SET
            musicbrainz_recording_id = excluded.musicbrainz_recording_id,
            musicbrainz_release_id = excluded.musicbrainz_release_id,
            tagged_title = excluded.tagged_title,
            tagged_artist = excluded.tagged_artist,
            tagged_album_artist = excluded.tagged_album_artist,
            tagged_album = excluded.tagged_album,
            tagged_genre = excluded.tagged_genre,
            tagged_date = excluded.tagged_date,
            track_number = excluded.track_number,
            disc_number = excluded.disc_number,
            duration_ms = excluded.duration_ms,
            quality = excluded.quality,
            organized_path = excluded.organized_path,
            updated_at = excluded.updated_at`,
		meta.TrackID,
		nullableString(meta.RecordingID),
		nullableString(meta.ReleaseID),
		nullableString(meta.TaggedTitle),
		nullableString(meta.TaggedArtist),
		nullableString(meta.TaggedAlbumArtist),
		nullableString(meta.TaggedAlbum),
		nullableString(meta.TaggedGenre),
		nullableString(meta.TaggedDate),
		nullableInt64(int64(meta.TrackNumber)),
		nullableInt64(int64(meta.DiscNumber)),
		nullableInt64(meta.DurationMS),
		nullableString(meta.Quality),
		nullableString(meta.OrganizedPath),
		nowStamp(),
	)
	if err != nil {
		return services.Wrap(services.ErrStorage, "library", "upsert metadata", "write metadata", err)
	}
	return nil
}

// ResolvePaths maps streaming-catalog URIs to organized file paths relative
// to the organized library root. URIs that are not organized yet, or that
// never recorded a final path, are simply absent from the result.
func (s *Store) ResolvePaths(ctx context.Context, uris []string) (map[string]string, error) {
	if len(uris) == 0 {
		return map[string]string{}, nil
	}

	args := make([]any, 0, len(uris)+1)
	args = append(args, StatusOrganized)
	for _, uri := range uris {
		args = append(args, uri)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT spotify_uri, final_path
         FROM tracks
         WHERE status = ? AND final_path IS NOT NULL
           AND spotify_uri IN (`+makePlaceholders(len(uris))+`)`,
		args...)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "library", "resolve paths", "query paths", err)
	}
	defer rows.Close()

	resolved := make(map[string]string)
	for rows.Next() {
		var uri, path string
		if err := rows.Scan(&uri, &path); err != nil {
			return nil, services.Wrap(services.ErrStorage, "library", "resolve paths", "scan row", err)
		}
		resolved[uri] = path
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStorage, "library", "resolve paths", "iterate rows", err)
	}
	return resolved, nil
}

// Stats reports how many tracks sit in each status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT status, COUNT(*) FROM tracks GROUP BY status")
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "library", "stats", "query counts", err)
	}
	defer rows.Close()

	stats := make(map[Status]int, len(allStatuses))
	for rows.Next() {
		var statusStr string
		var count int
		if err := rows.Scan(&statusStr, &count); err != nil {
			return nil, services.Wrap(services.ErrStorage, "library", "stats", "scan row", err)
		}
		stats[Status(statusStr)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStorage, "library", "stats", "iterate rows", err)
	}
	return stats, nil
}

func collectTracks(rows *sql.Rows) ([]*Track, error) {
	var tracks []*Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrStorage, "library", "list", "scan track", err)
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStorage, "library", "list", "iterate rows", err)
	}
	return tracks, nil
}

func escapeLike(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(term)
}
