package playlist_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Beau253/MusicManager/internal/library"
	"github.com/Beau253/MusicManager/internal/playlist"
	"github.com/Beau253/MusicManager/internal/services/spotify"
	"github.com/Beau253/MusicManager/internal/testsupport"
)

type fakeFetcher struct {
	playlists map[string]*spotify.Playlist
}

func (f *fakeFetcher) GetPlaylist(ctx context.Context, ref string) (*spotify.Playlist, error) {
	p, ok := f.playlists[ref]
	if !ok {
		return nil, errors.New("playlist not found")
	}
	return p, nil
}

// organizeTrack walks a track through the full lifecycle and records its
// library path, given relative to the organized root.
func organizeTrack(t *testing.T, store *library.Store, uri, title, artist, relPath string) {
	t.Helper()
	track := testsupport.QueueTrack(t, store, uri, title, artist)
	testsupport.AdvanceTrack(t, store, track.ID,
		library.StatusProcessingDownload,
		library.StatusDownloadComplete,
		library.StatusProcessingPicard)
	if err := store.MarkOrganized(context.Background(), track.ID, relPath, "rec-"+uri); err != nil {
		t.Fatalf("mark organized: %v", err)
	}
	meta := library.Metadata{TrackID: track.ID, TaggedTitle: title, OrganizedPath: relPath}
	if err := store.UpsertMetadata(context.Background(), meta); err != nil {
		t.Fatalf("upsert metadata: %v", err)
	}
}

func TestGenerateFromTracksWritesRelativeForwardSlashPaths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first := testsupport.UniqueURI(1)
	second := testsupport.UniqueURI(2)
	missing := testsupport.UniqueURI(3)
	organizeTrack(t, store, first, "Opener", "Band", "Band/Album/01 Opener.m4a")
	organizeTrack(t, store, second, "Closer", "Band", "Band/Album/09 Closer.m4a")
	testsupport.QueueTrack(t, store, missing, "Not Yet", "Band")

	gen, err := playlist.New(cfg, store, nil, nil)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	result, err := gen.GenerateFromTracks(context.Background(), "Road Trip", []string{first, second, missing})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Resolved != 2 || result.Total != 3 {
		t.Fatalf("counts = %d/%d, want 2/3", result.Resolved, result.Total)
	}

	raw, err := os.ReadFile(result.Path)
	if err != nil {
		t.Fatalf("read m3u: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	want := []string{
		"#EXTM3U",
		"../library/Band/Album/01 Opener.m4a",
		"../library/Band/Album/09 Closer.m4a",
	}
	if len(lines) != len(want) {
		t.Fatalf("unexpected m3u contents: %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestGenerateFromTracksWarnsOnUnresolvedURIs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	organized := testsupport.UniqueURI(1)
	pending := testsupport.UniqueURI(2)
	organizeTrack(t, store, organized, "Done", "Band", "Band/Done.m4a")
	testsupport.QueueTrack(t, store, pending, "Waiting", "Band")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	gen, err := playlist.New(cfg, store, nil, logger)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	result, err := gen.GenerateFromTracks(context.Background(), "Partial", []string{organized, pending})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if result.Resolved != 1 || result.Total != 2 {
		t.Fatalf("counts = %d/%d, want 1/2", result.Resolved, result.Total)
	}
	logged := buf.String()
	if !strings.Contains(logged, "skipping unresolved track") || !strings.Contains(logged, pending) {
		t.Fatalf("unresolved track not warned about: %s", logged)
	}
}

func TestGenerateFromTracksSanitizesFileName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	gen, err := playlist.New(cfg, store, nil, nil)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	result, err := gen.GenerateFromTracks(context.Background(), `Mix: "Best" of 2026?`, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	base := filepath.Base(result.Path)
	if strings.ContainsAny(base, `:?"<>|*`) {
		t.Fatalf("unsanitized playlist file name %q", base)
	}
	if !strings.HasSuffix(base, ".m3u") {
		t.Fatalf("playlist file %q missing .m3u suffix", base)
	}
	if _, err := os.Stat(result.Path); err != nil {
		t.Fatalf("playlist file not written: %v", err)
	}
}

func TestGenerateAllSkipsUnfetchablePlaylists(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Spotify.PlaylistURLs = []string{"good", "broken"}
	store := testsupport.MustOpenStore(t, cfg)

	uri := testsupport.UniqueURI(1)
	organizeTrack(t, store, uri, "Only Song", "Band", "Band/Only Song.m4a")

	fetcher := &fakeFetcher{playlists: map[string]*spotify.Playlist{
		"good": {Name: "Good List", Tracks: []spotify.Track{{URI: uri, Title: "Only Song"}}},
	}}
	gen, err := playlist.New(cfg, store, fetcher, nil)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	results, err := gen.GenerateAll(context.Background())
	if err != nil {
		t.Fatalf("generate all: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Name != "Good List" || results[0].Resolved != 1 {
		t.Fatalf("unexpected result %+v", results[0])
	}
}

func TestGenerateAllRespectsFeatureFlag(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Features.PlaylistsEnabled = false
	cfg.Spotify.PlaylistURLs = []string{"anything"}
	store := testsupport.MustOpenStore(t, cfg)

	gen, err := playlist.New(cfg, store, &fakeFetcher{}, nil)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	results, err := gen.GenerateAll(context.Background())
	if err != nil {
		t.Fatalf("generate all: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}
