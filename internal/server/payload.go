package server

import (
	"time"

	"github.com/Beau253/MusicManager/internal/library"
)

// TrackPayload is the wire shape of one queue row.
type TrackPayload struct {
	ID              int64  `json:"id"`
	SpotifyURI      string `json:"spotify_uri"`
	Title           string `json:"title,omitempty"`
	Artist          string `json:"artist,omitempty"`
	Album           string `json:"album,omitempty"`
	PlaylistName    string `json:"playlist_name,omitempty"`
	Status          string `json:"status"`
	ErrorMessage    string `json:"error_message,omitempty"`
	FailCount       int    `json:"fail_count,omitempty"`
	FinalPath       string `json:"final_path,omitempty"`
	RecordingID     string `json:"recording_id,omitempty"`
	MonitorStatus   string `json:"monitor_status,omitempty"`
	LibraryPresence string `json:"library_presence,omitempty"`
	LastAttemptAt   string `json:"last_attempt_at,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// MetadataPayload is the wire shape of the tag read-back record.
type MetadataPayload struct {
	RecordingID       string `json:"musicbrainz_recording_id,omitempty"`
	ReleaseID         string `json:"musicbrainz_release_id,omitempty"`
	TaggedTitle       string `json:"tagged_title,omitempty"`
	TaggedArtist      string `json:"tagged_artist,omitempty"`
	TaggedAlbumArtist string `json:"tagged_album_artist,omitempty"`
	TaggedAlbum       string `json:"tagged_album,omitempty"`
	TaggedGenre       string `json:"tagged_genre,omitempty"`
	TaggedDate        string `json:"tagged_date,omitempty"`
	TrackNumber       int    `json:"track_number,omitempty"`
	DiscNumber        int    `json:"disc_number,omitempty"`
	DurationMS        int64  `json:"duration_ms,omitempty"`
	Quality           string `json:"quality,omitempty"`
	OrganizedPath     string `json:"organized_path,omitempty"`
	UpdatedAt         string `json:"updated_at"`
}

func trackPayload(track *library.Track) *TrackPayload {
	if track == nil {
		return nil
	}
	payload := &TrackPayload{
		ID:           track.ID,
		SpotifyURI:   track.SpotifyURI,
		Title:        track.Title,
		Artist:       track.Artist,
		Album:        track.Album,
		PlaylistName: track.PlaylistName,
		Status:       string(track.Status),
		ErrorMessage: track.ErrorMessage,
		FailCount:    track.FailCount,
		FinalPath:    track.FinalPath,
		RecordingID:  track.RecordingID,
		CreatedAt:    track.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    track.UpdatedAt.Format(time.RFC3339),
	}
	if track.MonitorStatus != library.MonitorUnknown {
		payload.MonitorStatus = string(track.MonitorStatus)
	}
	if track.LibraryPresence != library.PresenceUnknown {
		payload.LibraryPresence = string(track.LibraryPresence)
	}
	if !track.LastAttemptAt.IsZero() {
		payload.LastAttemptAt = track.LastAttemptAt.Format(time.RFC3339)
	}
	return payload
}

func trackPayloads(tracks []*library.Track) []*TrackPayload {
	out := make([]*TrackPayload, 0, len(tracks))
	for _, track := range tracks {
		out = append(out, trackPayload(track))
	}
	return out
}

func metadataPayload(meta *library.Metadata) *MetadataPayload {
	if meta == nil {
		return nil
	}
	return &MetadataPayload{
		RecordingID:       meta.RecordingID,
		ReleaseID:         meta.ReleaseID,
		TaggedTitle:       meta.TaggedTitle,
		TaggedArtist:      meta.TaggedArtist,
		TaggedAlbumArtist: meta.TaggedAlbumArtist,
		TaggedAlbum:       meta.TaggedAlbum,
		TaggedGenre:       meta.TaggedGenre,
		TaggedDate:        meta.TaggedDate,
		TrackNumber:       meta.TrackNumber,
		DiscNumber:        meta.DiscNumber,
		DurationMS:        meta.DurationMS,
		Quality:           meta.Quality,
		OrganizedPath:     meta.OrganizedPath,
		UpdatedAt:         meta.UpdatedAt.Format(time.RFC3339),
	}
}
