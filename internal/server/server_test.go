package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/Beau253/MusicManager/internal/config"
	"github.com/Beau253/MusicManager/internal/downloader"
	"github.com/Beau253/MusicManager/internal/library"
	"github.com/Beau253/MusicManager/internal/server"
	"github.com/Beau253/MusicManager/internal/testsupport"
)

type fakeDownloadRunner struct {
	summary downloader.Summary
	limits  []int
}

func (f *fakeDownloadRunner) Run(ctx context.Context, limit int) (downloader.Summary, error) {
	f.limits = append(f.limits, limit)
	return f.summary, nil
}

func newTestServer(t *testing.T, cfg *config.Config, store *library.Store, opts server.Options) *httptest.Server {
	t.Helper()
	srv, err := server.New(cfg, store, nil, opts)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decode(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ts := newTestServer(t, cfg, store, server.Options{})

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["status"] != "ok" {
		t.Fatalf("health status = %q", body["status"])
	}
}

func TestBearerTokenGuardsAPI(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Server.Token = "secret"
	store := testsupport.MustOpenStore(t, cfg)
	ts := newTestServer(t, cfg, store, server.Options{})

	resp, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/stats", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authed request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d", resp.StatusCode)
	}

	// Health stays open for probes even with a token configured.
	resp, err = http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
}

func TestQueueTrackAndDuplicate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ts := newTestServer(t, cfg, store, server.Options{})

	payload := `{"uri":"spotify:track:abc123","title":"Song","artist":"Band"}`
	resp, err := http.Post(ts.URL+"/api/tracks", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("post track: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first queue status = %d", resp.StatusCode)
	}
	var first struct {
		Added bool                 `json:"added"`
		Track *server.TrackPayload `json:"track"`
	}
	decode(t, resp, &first)
	if !first.Added || first.Track == nil || first.Track.Status != "queued" {
		t.Fatalf("unexpected first response %+v", first)
	}

	resp, err = http.Post(ts.URL+"/api/tracks", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("post duplicate: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("duplicate status = %d", resp.StatusCode)
	}
	var second struct {
		Added  bool   `json:"added"`
		Reason string `json:"reason"`
	}
	decode(t, resp, &second)
	if second.Added || second.Reason == "" {
		t.Fatalf("unexpected duplicate response %+v", second)
	}
}

func TestListTracksFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	queued := testsupport.QueueTrack(t, store, testsupport.UniqueURI(1), "Queued", "Band")
	done := testsupport.QueueTrack(t, store, testsupport.UniqueURI(2), "Done", "Band")
	testsupport.AdvanceTrack(t, store, done.ID, library.StatusProcessingDownload, library.StatusDownloadComplete)
	ts := newTestServer(t, cfg, store, server.Options{})

	resp, err := http.Get(ts.URL + "/api/tracks?status=queued")
	if err != nil {
		t.Fatalf("list tracks: %v", err)
	}
	var body struct {
		Tracks []*server.TrackPayload `json:"tracks"`
	}
	decode(t, resp, &body)
	if len(body.Tracks) != 1 || body.Tracks[0].ID != queued.ID {
		t.Fatalf("unexpected track list %+v", body.Tracks)
	}

	resp, err = http.Get(ts.URL + "/api/tracks?status=bogus")
	if err != nil {
		t.Fatalf("list tracks: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bogus status code = %d", resp.StatusCode)
	}
}

func TestDescribeTrackNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ts := newTestServer(t, cfg, store, server.Options{})

	resp, err := http.Get(ts.URL + "/api/tracks/999")
	if err != nil {
		t.Fatalf("get track: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestRemoveTrack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	track := testsupport.QueueTrack(t, store, testsupport.UniqueURI(1), "Doomed", "Band")
	ts := newTestServer(t, cfg, store, server.Options{})

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/tracks/"+itoa(track.ID), nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete track: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	got, err := store.GetByID(context.Background(), track.ID)
	if err != nil {
		t.Fatalf("get track: %v", err)
	}
	if got != nil {
		t.Fatal("track should be gone")
	}
}

func TestRunDownloadPassesLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	runner := &fakeDownloadRunner{summary: downloader.Summary{Downloaded: 3}}
	ts := newTestServer(t, cfg, store, server.Options{Download: runner})

	resp, err := http.Post(ts.URL+"/api/run/download?limit=5", "application/json", nil)
	if err != nil {
		t.Fatalf("run download: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var summary downloader.Summary
	decode(t, resp, &summary)
	if summary.Downloaded != 3 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(runner.limits) != 1 || runner.limits[0] != 5 {
		t.Fatalf("runner limits = %v", runner.limits)
	}
}

func TestRunDownloadUnavailableWithoutRunner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ts := newTestServer(t, cfg, store, server.Options{})

	resp, err := http.Post(ts.URL+"/api/run/download", "application/json", nil)
	if err != nil {
		t.Fatalf("run download: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestResetFailedEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	track := testsupport.QueueTrack(t, store, testsupport.UniqueURI(1), "Retry Me", "Band")
	testsupport.AdvanceTrack(t, store, track.ID, library.StatusProcessingDownload, library.StatusDownloadFailed)
	ts := newTestServer(t, cfg, store, server.Options{})

	resp, err := http.Post(ts.URL+"/api/reset-failed", "application/json", nil)
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	var body struct {
		Reset int64 `json:"reset"`
	}
	decode(t, resp, &body)
	if body.Reset != 1 {
		t.Fatalf("reset count = %d", body.Reset)
	}
	got, err := store.GetByID(context.Background(), track.ID)
	if err != nil {
		t.Fatalf("get track: %v", err)
	}
	if got.Status != library.StatusQueued {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestResetTrackEndpointRejectsNonFailedTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	queued := testsupport.QueueTrack(t, store, testsupport.UniqueURI(1), "Fresh", "Band")
	failed := testsupport.QueueTrack(t, store, testsupport.UniqueURI(2), "Broken", "Band")
	testsupport.AdvanceTrack(t, store, failed.ID, library.StatusProcessingDownload, library.StatusDownloadFailed)
	ts := newTestServer(t, cfg, store, server.Options{})

	resp, err := http.Post(ts.URL+"/api/tracks/"+itoa(queued.ID)+"/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("queued track reset status = %d, want 409", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/tracks/"+itoa(failed.ID)+"/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("failed track reset status = %d, want 200", resp.StatusCode)
	}
	got, _ := store.GetByID(context.Background(), failed.ID)
	if got.Status != library.StatusQueued {
		t.Fatalf("status = %s", got.Status)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
