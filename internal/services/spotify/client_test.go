package spotify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Beau253/MusicManager/internal/services"
	"github.com/Beau253/MusicManager/internal/services/spotify"
)

func newTestClient(t *testing.T, handler http.Handler) (*spotify.Client, *httptest.Server, *atomic.Int64) {
	t.Helper()

	var tokenCalls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "id" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.Handle("/", handler)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := spotify.New("id", "secret",
		spotify.WithBaseURL(server.URL, server.URL+"/token"),
		spotify.WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatal(err)
	}
	return client, server, &tokenCalls
}

func TestSearchTracks(t *testing.T) {
	client, _, tokenCalls := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.URL.Query().Get("q"); got != "so what" {
			t.Errorf("query = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tracks": map[string]any{
				"items": []map[string]any{
					{
						"uri":     "spotify:track:abc",
						"name":    "So What",
						"artists": []map[string]string{{"name": "Miles Davis"}, {"name": "John Coltrane"}},
						"album":   map[string]string{"name": "Kind of Blue"},
					},
				},
			},
		})
	}))

	tracks, err := client.SearchTracks(context.Background(), "so what", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 1 {
		t.Fatalf("tracks = %+v", tracks)
	}
	if tracks[0].Artist != "Miles Davis, John Coltrane" {
		t.Fatalf("artist = %q", tracks[0].Artist)
	}
	if tracks[0].Album != "Kind of Blue" {
		t.Fatalf("album = %q", tracks[0].Album)
	}

	// Second call reuses the cached token.
	if _, err := client.SearchTracks(context.Background(), "so what", 10); err != nil {
		t.Fatal(err)
	}
	if tokenCalls.Load() != 1 {
		t.Fatalf("token endpoint called %d times, want 1", tokenCalls.Load())
	}
}

func TestGetPlaylistFollowsPagination(t *testing.T) {
	var server *httptest.Server
	client, srv, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/playlists/pl123" && r.URL.Query().Get("fields") == "name":
			_ = json.NewEncoder(w).Encode(map[string]string{"name": "Chill Vibes"})
		case r.URL.Path == "/playlists/pl123/tracks" && r.URL.Query().Get("offset") == "":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"track": map[string]any{"uri": "spotify:track:a", "name": "A", "artists": []map[string]string{{"name": "X"}}}},
					{"track": nil},
				},
				"next": server.URL + "/playlists/pl123/tracks?offset=100",
			})
		case r.URL.Path == "/playlists/pl123/tracks":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"track": map[string]any{"uri": "spotify:track:b", "name": "B", "artists": []map[string]string{{"name": "Y"}}}},
				},
				"next": "",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	server = srv

	playlist, err := client.GetPlaylist(context.Background(), "https://open.spotify.com/playlist/pl123?si=xyz")
	if err != nil {
		t.Fatal(err)
	}
	if playlist.Name != "Chill Vibes" {
		t.Fatalf("name = %q", playlist.Name)
	}
	if len(playlist.Tracks) != 2 {
		t.Fatalf("tracks = %+v", playlist.Tracks)
	}
	if playlist.Tracks[0].URI != "spotify:track:a" || playlist.Tracks[1].URI != "spotify:track:b" {
		t.Fatalf("tracks = %+v", playlist.Tracks)
	}
}

func TestParsePlaylistID(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"pl123", "pl123", false},
		{"spotify:playlist:pl123", "pl123", false},
		{"https://open.spotify.com/playlist/pl123", "pl123", false},
		{"https://open.spotify.com/playlist/pl123?si=abc", "pl123", false},
		{"https://open.spotify.com/album/x", "", true},
		{"", "", true},
		{"spotify:track:abc", "", true},
	}
	for _, tc := range cases {
		got, err := spotify.ParsePlaylistID(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParsePlaylistID(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePlaylistID(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParsePlaylistID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBadCredentialsAreConfigurationErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := spotify.New("id", "wrong",
		spotify.WithBaseURL(server.URL, server.URL+"/token"),
		spotify.WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatal(err)
	}

	err = client.ValidateConnection(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := spotify.New("", "secret"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
