// Package tags reads authoritative metadata back from tagged audio files.
// After Picard runs, the values stored in the file are the truth; the
// database copies them rather than trusting what the catalog claimed.
package tags

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.senan.xyz/taglib"

	"github.com/Beau253/MusicManager/internal/services"
)

// TrackTags is the metadata read back from an organized file.
type TrackTags struct {
	Path        string
	Title       string
	Artist      string
	AlbumArtist string
	Album       string
	Genre       string
	Date        string
	TrackNumber int
	DiscNumber  int
	RecordingID string
	ReleaseID   string
	DurationMS  int64
	Quality     string
}

// Reader abstracts tag read-back so the organize stage can be tested
// without real audio files.
type Reader interface {
	Read(path string) (*TrackTags, error)
}

// FileReader reads tags from files on disk via TagLib.
type FileReader struct{}

// NewReader returns the TagLib-backed reader used outside tests.
func NewReader() Reader {
	return FileReader{}
}

func (FileReader) Read(path string) (*TrackTags, error) {
	raw, err := taglib.ReadTags(path)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "organize", "read tags", path, err)
	}
	values := tagValues(raw)

	title := values.get(taglib.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	artist := values.get(taglib.Artist)
	albumArtist := values.get(taglib.AlbumArtist)
	if albumArtist == "" {
		albumArtist = artist
	}

	result := &TrackTags{
		Path:        path,
		Title:       title,
		Artist:      artist,
		AlbumArtist: albumArtist,
		Album:       values.get(taglib.Album),
		Genre:       values.get(taglib.Genre),
		Date:        values.get(taglib.Date),
		TrackNumber: values.getInt(taglib.TrackNumber),
		DiscNumber:  values.getInt(taglib.DiscNumber),
		// The recording ID lives under MUSICBRAINZ_TRACKID.
		RecordingID: values.get(taglib.MusicBrainzTrackID),
		ReleaseID:   values.get(taglib.MusicBrainzAlbumID),
	}

	props, err := taglib.ReadProperties(path)
	if err == nil {
		result.DurationMS = props.Length.Milliseconds()
		result.Quality = formatQuality(path, int(props.Bitrate))
	}
	return result, nil
}

func formatQuality(path string, bitrateKbps int) string {
	codec := strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))
	if codec == "" {
		codec = "UNKNOWN"
	}
	if bitrateKbps <= 0 {
		return codec
	}
	return fmt.Sprintf("%s %dkbps", codec, bitrateKbps)
}

// tagValues wraps a taglib result map with helper methods.
type tagValues map[string][]string

func (t tagValues) get(keys ...string) string {
	for _, key := range keys {
		if values, ok := t[key]; ok && len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
	}
	return ""
}

func (t tagValues) getInt(key string) int {
	value := t.get(key)
	if value == "" {
		return 0
	}
	if idx := strings.Index(value, "/"); idx > 0 {
		value = value[:idx]
	}
	var n int
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
		return 0
	}
	return n
}
