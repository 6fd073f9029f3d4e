package library

import (
	"database/sql"
	"errors"
	"time"
)

const trackColumns = "id, spotify_uri, title, artist, album, playlist_name, status, error_message, fail_count, temp_path, final_path, recording_id, monitor_status, library_presence, last_attempt_at, created_at, updated_at"

const metadataColumns = "track_id, musicbrainz_recording_id, musicbrainz_release_id, tagged_title, tagged_artist, tagged_album_artist, tagged_album, tagged_genre, tagged_date, track_number, disc_number, duration_ms, quality, organized_path, updated_at"

func scanTrack(scanner interface{ Scan(dest ...any) error }) (*Track, error) {
	var (
		id           int64
		spotifyURI   string
		title        string
		artist       string
		album        sql.NullString
		playlistName sql.NullString
		statusStr    string
		errorMessage sql.NullString
		failCount    int64
		tempPath     sql.NullString
		finalPath    sql.NullString
		recordingID  sql.NullString
		monitorStr   sql.NullString
		presenceStr  sql.NullString
		attemptRaw   sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&spotifyURI,
		&title,
		&artist,
		&album,
		&playlistName,
		&statusStr,
		&errorMessage,
		&failCount,
		&tempPath,
		&finalPath,
		&recordingID,
		&monitorStr,
		&presenceStr,
		&attemptRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	track := &Track{
		ID:              id,
		SpotifyURI:      spotifyURI,
		Title:           title,
		Artist:          artist,
		Album:           album.String,
		PlaylistName:    playlistName.String,
		Status:          Status(statusStr),
		ErrorMessage:    errorMessage.String,
		FailCount:       int(failCount),
		TempPath:        tempPath.String,
		FinalPath:       finalPath.String,
		RecordingID:     recordingID.String,
		MonitorStatus:   MonitorStatus(monitorStr.String),
		LibraryPresence: PresenceStatus(presenceStr.String),
	}
	if track.MonitorStatus == "" {
		track.MonitorStatus = MonitorUnknown
	}
	if track.LibraryPresence == "" {
		track.LibraryPresence = PresenceUnknown
	}
	if attempt, err := parseTimeString(attemptRaw.String); err == nil {
		track.LastAttemptAt = attempt
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		track.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		track.UpdatedAt = updated
	}
	return track, nil
}

func scanMetadata(scanner interface{ Scan(dest ...any) error }) (*Metadata, error) {
	var (
		trackID           int64
		recordingID       sql.NullString
		releaseID         sql.NullString
		taggedTitle       sql.NullString
		taggedArtist      sql.NullString
		taggedAlbumArtist sql.NullString
		taggedAlbum       sql.NullString
		taggedGenre       sql.NullString
		taggedDate        sql.NullString
		trackNumber       sql.NullInt64
		discNumber        sql.NullInt64
		durationMS        sql.NullInt64
		quality           sql.NullString
		organized         sql.NullString
		updatedRaw        sql.NullString
	)

	if err := scanner.Scan(
		&trackID,
		&recordingID,
		&releaseID,
		&taggedTitle,
		&taggedArtist,
		&taggedAlbumArtist,
		&taggedAlbum,
		&taggedGenre,
		&taggedDate,
		&trackNumber,
		&discNumber,
		&durationMS,
		&quality,
		&organized,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	meta := &Metadata{
		TrackID:           trackID,
		RecordingID:       recordingID.String,
		ReleaseID:         releaseID.String,
		TaggedTitle:       taggedTitle.String,
		TaggedArtist:      taggedArtist.String,
		TaggedAlbumArtist: taggedAlbumArtist.String,
		TaggedAlbum:       taggedAlbum.String,
		TaggedGenre:       taggedGenre.String,
		TaggedDate:        taggedDate.String,
		TrackNumber:       int(trackNumber.Int64),
		DiscNumber:        int(discNumber.Int64),
		DurationMS:        durationMS.Int64,
		Quality:           quality.String,
		OrganizedPath:     organized.String,
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		meta.UpdatedAt = updated
	}
	return meta, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
