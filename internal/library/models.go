package library

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a track.
type Status string

const (
	StatusQueued             Status = "queued"
	StatusProcessingDownload Status = "processing_download"
	StatusDownloadComplete   Status = "download_complete"
	StatusDownloadFailed     Status = "download_failed"
	StatusProcessingPicard   Status = "processing_picard"
	StatusOrganized          Status = "organized"
	StatusPicardFailed       Status = "picard_failed"
	StatusSkipped            Status = "skipped"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessingDownload,
	StatusDownloadComplete,
	StatusDownloadFailed,
	StatusProcessingPicard,
	StatusOrganized,
	StatusPicardFailed,
	StatusSkipped,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// allowedTransitions is the single source of truth for lifecycle moves.
// processing_download -> queued and processing_picard -> download_complete
// exist only for the startup pass that reclaims tracks stranded by an
// interrupted run; the failure -> queued edges cover operator resets.
var allowedTransitions = map[Status][]Status{
	StatusQueued:             {StatusProcessingDownload},
	StatusProcessingDownload: {StatusDownloadComplete, StatusDownloadFailed, StatusSkipped, StatusQueued},
	StatusDownloadComplete:   {StatusProcessingPicard},
	StatusProcessingPicard:   {StatusOrganized, StatusPicardFailed, StatusDownloadComplete},
	StatusDownloadFailed:     {StatusQueued},
	StatusPicardFailed:       {StatusQueued},
	StatusOrganized:          {},
	StatusSkipped:            {},
}

// MonitorStatus mirrors what Lidarr last reported for a track's album.
type MonitorStatus string

const (
	MonitorUnknown   MonitorStatus = "unknown"
	MonitorMonitored MonitorStatus = "monitored"
	MonitorOnDisk    MonitorStatus = "on_disk"
)

// PresenceStatus records whether an organized file has been confirmed
// present in the library.
type PresenceStatus string

const (
	PresenceUnknown PresenceStatus = "unknown"
	PresencePresent PresenceStatus = "present"
	PresenceMissing PresenceStatus = "missing"
)

// AllStatuses lists every lifecycle status in pipeline order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus validates a raw status string.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// CanTransition reports whether moving a track from one status to another
// is a legal lifecycle move. Self-transitions are allowed so retried
// updates stay idempotent.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsProcessing reports whether a status marks a track as claimed by a stage.
func (s Status) IsProcessing() bool {
	return s == StatusProcessingDownload || s == StatusProcessingPicard
}

// IsFailure reports whether a status marks a stage failure.
func (s Status) IsFailure() bool {
	return s == StatusDownloadFailed || s == StatusPicardFailed
}

// IsTerminal reports whether a track in this status needs no further work.
func (s Status) IsTerminal() bool {
	return s == StatusOrganized || s == StatusSkipped
}

func (s Status) String() string { return string(s) }

// Track is one row in the download queue. TempPath points at the raw
// download while one exists; FinalPath is relative to the organized
// library root and set only once the track is organized.
type Track struct {
	ID              int64
	SpotifyURI      string
	Title           string
	Artist          string
	Album           string
	PlaylistName    string
	Status          Status
	ErrorMessage    string
	FailCount       int
	TempPath        string
	FinalPath       string
	RecordingID     string
	MonitorStatus   MonitorStatus
	LibraryPresence PresenceStatus
	LastAttemptAt   time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Metadata holds the tag values read back from an organized file.
type Metadata struct {
	TrackID           int64
	RecordingID       string
	ReleaseID         string
	TaggedTitle       string
	TaggedArtist      string
	TaggedAlbumArtist string
	TaggedAlbum       string
	TaggedGenre       string
	TaggedDate        string
	TrackNumber       int
	DiscNumber        int
	DurationMS        int64
	Quality           string
	OrganizedPath     string
	UpdatedAt         time.Time
}

// Details pairs a track with its metadata, when any has been recorded.
type Details struct {
	Track    Track
	Metadata *Metadata
}

// QueueResult reports the outcome of an enqueue attempt. Duplicates are an
// expected outcome, not an error.
type QueueResult struct {
	Added  bool
	Reason string
	Track  *Track
}
