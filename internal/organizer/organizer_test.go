package organizer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Beau253/MusicManager/internal/downloader"
	"github.com/Beau253/MusicManager/internal/library"
	"github.com/Beau253/MusicManager/internal/organizer"
	"github.com/Beau253/MusicManager/internal/quota"
	"github.com/Beau253/MusicManager/internal/services"
	"github.com/Beau253/MusicManager/internal/tags"
	"github.com/Beau253/MusicManager/internal/testsupport"
)

type fakeTagger struct {
	produce string
	fail    error
	calls   int
}

func (f *fakeTagger) Tag(ctx context.Context, filePath, outputDir string, onOutput func(string)) error {
	f.calls++
	if f.fail != nil {
		return f.fail
	}
	if f.produce != "" {
		out := filepath.Join(outputDir, f.produce)
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(out, []byte("tagged"), 0o644); err != nil {
			return err
		}
	}
	return os.Remove(filePath)
}

type fakeReader struct {
	tags *tags.TrackTags
	err  error
}

func (f *fakeReader) Read(path string) (*tags.TrackTags, error) {
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.tags
	copied.Path = path
	return &copied, nil
}

func TestRunOrganizesDownloadedTrack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	track := testsupport.QueueTrack(t, store, testsupport.UniqueURI(1), "Holiday Song", "Some Band")
	testsupport.AdvanceTrack(t, store, track.ID, library.StatusProcessingDownload, library.StatusDownloadComplete)
	testsupport.WriteAudioStub(t, filepath.Join(cfg.UnorganizedPath(), "Some Band - Holiday Song.m4a"))

	tagger := &fakeTagger{produce: filepath.Join("Some Band", "Album", "01 Holiday Song.m4a")}
	reader := &fakeReader{tags: &tags.TrackTags{
		Title:       "Holiday Song",
		Artist:      "Some Band",
		AlbumArtist: "Some Band",
		Album:       "Album",
		Genre:       "Indie",
		Date:        "2019-11-01",
		TrackNumber: 1,
		DiscNumber:  1,
		RecordingID: "rec-1",
		ReleaseID:   "rel-1",
		DurationMS:  201000,
		Quality:     "M4A 256kbps",
	}}

	stage, err := organizer.New(cfg, store, tagger, nil, organizer.WithTagReader(reader))
	if err != nil {
		t.Fatalf("new stage: %v", err)
	}
	summary, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Organized != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	details, err := store.GetDetails(context.Background(), track.ID)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if details.Track.Status != library.StatusOrganized {
		t.Fatalf("status = %s", details.Track.Status)
	}
	if details.Metadata == nil {
		t.Fatal("metadata should be recorded")
	}
	if details.Metadata.RecordingID != "rec-1" {
		t.Fatalf("recording id = %q", details.Metadata.RecordingID)
	}
	if details.Metadata.TaggedAlbumArtist != "Some Band" ||
		details.Metadata.TaggedGenre != "Indie" ||
		details.Metadata.TaggedDate != "2019-11-01" ||
		details.Metadata.TrackNumber != 1 || details.Metadata.DiscNumber != 1 {
		t.Fatalf("tag read-back not fully recorded: %+v", details.Metadata)
	}
	wantPath := "Some Band/Album/01 Holiday Song.m4a"
	if details.Metadata.OrganizedPath != wantPath {
		t.Fatalf("organized path = %q, want %q", details.Metadata.OrganizedPath, wantPath)
	}
	if details.Track.FinalPath != wantPath {
		t.Fatalf("final path = %q, want %q", details.Track.FinalPath, wantPath)
	}
	if details.Track.LibraryPresence != library.PresencePresent {
		t.Fatalf("presence = %s", details.Track.LibraryPresence)
	}
}

func TestRunUsesRecordedTempPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	// File name deliberately unrelated to the track so only the recorded
	// temp path can find it.
	source := filepath.Join(cfg.UnorganizedPath(), "track_0001_raw.m4a")
	testsupport.WriteAudioStub(t, source)

	track := testsupport.QueueTrack(t, store, testsupport.UniqueURI(1), "Obscure Song", "Band C")
	testsupport.AdvanceTrack(t, store, track.ID, library.StatusProcessingDownload)
	if err := store.MarkDownloadComplete(context.Background(), track.ID, source); err != nil {
		t.Fatalf("mark download complete: %v", err)
	}

	tagger := &fakeTagger{produce: "Band C/Obscure Song.m4a"}
	stage, err := organizer.New(cfg, store, tagger, nil,
		organizer.WithTagReader(&fakeReader{tags: &tags.TrackTags{Title: "Obscure Song"}}))
	if err != nil {
		t.Fatalf("new stage: %v", err)
	}
	summary, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Organized != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatal("source file should be gone after organizing")
	}
}

func TestRunFailsWhenRecordedTempPathVanished(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	track := testsupport.QueueTrack(t, store, testsupport.UniqueURI(1), "Vanished Song", "Band D")
	testsupport.AdvanceTrack(t, store, track.ID, library.StatusProcessingDownload)
	gone := filepath.Join(cfg.UnorganizedPath(), "vanished.m4a")
	if err := store.MarkDownloadComplete(context.Background(), track.ID, gone); err != nil {
		t.Fatalf("mark download complete: %v", err)
	}

	tagger := &fakeTagger{}
	stage, err := organizer.New(cfg, store, tagger, nil,
		organizer.WithTagReader(&fakeReader{tags: &tags.TrackTags{}}))
	if err != nil {
		t.Fatalf("new stage: %v", err)
	}
	summary, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if tagger.calls != 0 {
		t.Fatal("picard must not run when the recorded file is gone")
	}
	got, _ := store.GetByID(context.Background(), track.ID)
	if got.Status != library.StatusPicardFailed {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestRunMarksTrackFailedWhenDownloadMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	track := testsupport.QueueTrack(t, store, testsupport.UniqueURI(1), "Ghost Track", "Nobody")
	testsupport.AdvanceTrack(t, store, track.ID, library.StatusProcessingDownload, library.StatusDownloadComplete)

	tagger := &fakeTagger{}
	stage, err := organizer.New(cfg, store, tagger, nil, organizer.WithTagReader(&fakeReader{tags: &tags.TrackTags{}}))
	if err != nil {
		t.Fatalf("new stage: %v", err)
	}
	summary, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if tagger.calls != 0 {
		t.Fatal("picard must not run when the download is missing")
	}
	got, err := store.GetByID(context.Background(), track.ID)
	if err != nil {
		t.Fatalf("get track: %v", err)
	}
	if got.Status != library.StatusPicardFailed {
		t.Fatalf("status = %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatal("error message should be recorded")
	}
}

func TestRunIsolatesTaggerFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	broken := testsupport.QueueTrack(t, store, testsupport.UniqueURI(1), "Broken Song", "Band A")
	testsupport.AdvanceTrack(t, store, broken.ID, library.StatusProcessingDownload, library.StatusDownloadComplete)
	testsupport.WriteAudioStub(t, filepath.Join(cfg.UnorganizedPath(), "Band A - Broken Song.m4a"))

	toolErr := services.Wrap(services.ErrExternalTool, "organize", "run picard", "exit status 1", nil)
	tagger := &fakeTagger{fail: toolErr}
	stage, err := organizer.New(cfg, store, tagger, nil, organizer.WithTagReader(&fakeReader{tags: &tags.TrackTags{}}))
	if err != nil {
		t.Fatalf("new stage: %v", err)
	}
	summary, err := stage.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Failed != 1 || summary.Organized != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	got, err := store.GetByID(context.Background(), broken.ID)
	if err != nil {
		t.Fatalf("get track: %v", err)
	}
	if got.Status != library.StatusPicardFailed {
		t.Fatalf("status = %s", got.Status)
	}
}

type fakeScanner struct {
	libraries []string
}

func (f *fakeScanner) ScanLibrary(ctx context.Context, libraryName string) error {
	f.libraries = append(f.libraries, libraryName)
	return nil
}

func TestRunTriggersPlexScanAfterOrganizing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Features.PlexSyncEnabled = true
	cfg.Plex.URL = "http://plex.local:32400"
	cfg.Plex.Token = "token"
	store := testsupport.MustOpenStore(t, cfg)

	track := testsupport.QueueTrack(t, store, testsupport.UniqueURI(1), "Scan Song", "Band B")
	testsupport.AdvanceTrack(t, store, track.ID, library.StatusProcessingDownload, library.StatusDownloadComplete)
	testsupport.WriteAudioStub(t, filepath.Join(cfg.UnorganizedPath(), "Band B - Scan Song.m4a"))

	tagger := &fakeTagger{produce: "Band B/Scan Song.m4a"}
	scanner := &fakeScanner{}
	stage, err := organizer.New(cfg, store, tagger, nil,
		organizer.WithTagReader(&fakeReader{tags: &tags.TrackTags{Title: "Scan Song"}}),
		organizer.WithPlex(scanner))
	if err != nil {
		t.Fatalf("new stage: %v", err)
	}
	if _, err := stage.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(scanner.libraries) != 1 || scanner.libraries[0] != cfg.Plex.LibraryName {
		t.Fatalf("unexpected scans %v", scanner.libraries)
	}
}

type stubClient struct {
	name string
}

func (s *stubClient) Download(ctx context.Context, uri, destDir string, onOutput func(string)) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(destDir, s.name), []byte("audio"), 0o644)
}

func TestPipelineQueuedToOrganized(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	result, err := store.Queue(context.Background(), "spotify:track:AAA", "Y", "X", "Z", "")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	trackID := result.Track.ID

	tracker, err := quota.NewTracker(store, 5)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	download, err := downloader.New(cfg, store, tracker, &stubClient{name: "X - Y.m4a"}, nil,
		downloader.WithSleep(func(context.Context, time.Duration) {}))
	if err != nil {
		t.Fatalf("new download stage: %v", err)
	}
	if _, err := download.Run(context.Background(), 0); err != nil {
		t.Fatalf("download run: %v", err)
	}
	mid, _ := store.GetByID(context.Background(), trackID)
	if mid.Status != library.StatusDownloadComplete {
		t.Fatalf("status after download = %s", mid.Status)
	}

	tagger := &fakeTagger{produce: "X/Z/Y.m4a"}
	reader := &fakeReader{tags: &tags.TrackTags{Title: "Y", Artist: "X", Album: "Z", RecordingID: "R1"}}
	organize, err := organizer.New(cfg, store, tagger, nil, organizer.WithTagReader(reader))
	if err != nil {
		t.Fatalf("new organize stage: %v", err)
	}
	if _, err := organize.Run(context.Background()); err != nil {
		t.Fatalf("organize run: %v", err)
	}

	details, err := store.GetDetails(context.Background(), trackID)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if details.Track.Status != library.StatusOrganized {
		t.Fatalf("final status = %s", details.Track.Status)
	}
	if details.Track.FinalPath == "" {
		t.Fatal("final path should be set")
	}
	if details.Metadata == nil || details.Metadata.RecordingID != "R1" {
		t.Fatalf("metadata = %+v", details.Metadata)
	}
}

func TestRunSkipsPlexScanWhenNothingOrganized(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Features.PlexSyncEnabled = true
	store := testsupport.MustOpenStore(t, cfg)

	tagger := &fakeTagger{}
	scanner := &fakeScanner{}
	stage, err := organizer.New(cfg, store, tagger, nil, organizer.WithPlex(scanner))
	if err != nil {
		t.Fatalf("new stage: %v", err)
	}
	if _, err := stage.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(scanner.libraries) != 0 {
		t.Fatal("plex scan should not fire on an empty run")
	}
}
