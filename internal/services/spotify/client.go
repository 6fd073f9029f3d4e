// Package spotify is a minimal client for the Spotify Web API covering
// what the queue needs: track search and playlist listing. Authentication
// uses the client-credentials flow; no user account is involved.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Beau253/MusicManager/internal/services"
)

const (
	defaultBaseURL  = "https://api.spotify.com/v1"
	defaultTokenURL = "https://accounts.spotify.com/api/token"

	searchLimitMax = 50
	pageSize       = 100
)

// HTTPDoer describes the HTTP client used by the service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Track is one catalog entry as the rest of the pipeline sees it.
type Track struct {
	URI    string
	Title  string
	Artist string
	Album  string
}

// Playlist is a named track listing.
type Playlist struct {
	Name   string
	Tracks []Track
}

// Client talks to the Spotify Web API.
type Client struct {
	clientID     string
	clientSecret string
	baseURL      string
	tokenURL     string
	httpClient   HTTPDoer

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.httpClient = doer
		}
	}
}

// WithBaseURL points the client at a different API root, for tests.
func WithBaseURL(apiURL, tokenURL string) Option {
	return func(c *Client) {
		if apiURL != "" {
			c.baseURL = strings.TrimRight(apiURL, "/")
		}
		if tokenURL != "" {
			c.tokenURL = tokenURL
		}
	}
}

// New constructs a Spotify client.
func New(clientID, clientSecret string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(clientSecret) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "spotify", "new", "client credentials required", nil)
	}
	client := &Client{
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
		baseURL:      defaultBaseURL,
		tokenURL:     defaultTokenURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ValidateConnection checks that the configured credentials can obtain a
// token.
func (c *Client) ValidateConnection(ctx context.Context) error {
	_, err := c.token(ctx)
	return err
}

// SearchTracks queries the catalog for tracks matching the term.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "spotify", "search", "query required", nil)
	}
	if limit <= 0 || limit > searchLimitMax {
		limit = 10
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))

	var payload struct {
		Tracks struct {
			Items []trackObject `json:"items"`
		} `json:"tracks"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/search?"+params.Encode(), &payload); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(payload.Tracks.Items))
	for _, item := range payload.Tracks.Items {
		tracks = append(tracks, item.toTrack())
	}
	return tracks, nil
}

// GetPlaylist fetches a playlist's name and full track listing, following
// pagination until the listing is complete.
func (c *Client) GetPlaylist(ctx context.Context, idOrURL string) (*Playlist, error) {
	id, err := ParsePlaylistID(idOrURL)
	if err != nil {
		return nil, err
	}

	var head struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/playlists/"+id+"?fields=name", &head); err != nil {
		return nil, err
	}

	playlist := &Playlist{Name: head.Name}
	next := c.baseURL + "/playlists/" + id + "/tracks?limit=" + strconv.Itoa(pageSize)
	for next != "" {
		var page struct {
			Items []struct {
				Track *trackObject `json:"track"`
			} `json:"items"`
			Next string `json:"next"`
		}
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			// Removed or local-only entries come back with a null track.
			if item.Track == nil || item.Track.URI == "" {
				continue
			}
			playlist.Tracks = append(playlist.Tracks, item.Track.toTrack())
		}
		next = page.Next
	}
	return playlist, nil
}

// ParsePlaylistID accepts a bare playlist ID, a spotify:playlist: URI, or an
// open.spotify.com URL and returns the ID.
func ParsePlaylistID(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", services.Wrap(services.ErrValidation, "spotify", "playlist", "playlist reference required", nil)
	}
	if rest, ok := strings.CutPrefix(value, "spotify:playlist:"); ok && rest != "" {
		return rest, nil
	}
	if strings.Contains(value, "open.spotify.com") {
		parsed, err := url.Parse(value)
		if err != nil {
			return "", services.Wrap(services.ErrValidation, "spotify", "playlist", "unparseable playlist URL", err)
		}
		parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		for i, part := range parts {
			if part == "playlist" && i+1 < len(parts) {
				return parts[i+1], nil
			}
		}
		return "", services.Wrap(services.ErrValidation, "spotify", "playlist",
			fmt.Sprintf("no playlist ID in URL %q", value), nil)
	}
	if strings.ContainsAny(value, ":/") {
		return "", services.Wrap(services.ErrValidation, "spotify", "playlist",
			fmt.Sprintf("unrecognized playlist reference %q", value), nil)
	}
	return value, nil
}

type trackObject struct {
	URI     string `json:"uri"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name string `json:"name"`
	} `json:"album"`
}

func (t trackObject) toTrack() Track {
	names := make([]string, 0, len(t.Artists))
	for _, artist := range t.Artists {
		names = append(names, artist.Name)
	}
	return Track{
		URI:    t.URI,
		Title:  t.Name,
		Artist: strings.Join(names, ", "),
		Album:  t.Album.Name,
	}
}

func (c *Client) getJSON(ctx context.Context, requestURL string, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return services.Wrap(services.ErrTransient, "spotify", "request", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "spotify", "request", "execute request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return services.Wrap(services.ErrNotFound, "spotify", "request", requestURL, nil)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return services.Wrap(services.ErrTransient, "spotify", "request",
			fmt.Sprintf("API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransient, "spotify", "request", "decode response", err)
	}
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "spotify", "auth", "build token request", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "spotify", "auth", "request token", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return "", services.Wrap(services.ErrConfiguration, "spotify", "auth",
			fmt.Sprintf("credentials rejected with status %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", services.Wrap(services.ErrTransient, "spotify", "auth",
			fmt.Sprintf("token endpoint status %d", resp.StatusCode), nil)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrTransient, "spotify", "auth", "decode token response", err)
	}
	if payload.AccessToken == "" {
		return "", services.Wrap(services.ErrTransient, "spotify", "auth", "empty access token", nil)
	}

	c.accessToken = payload.AccessToken
	// Refresh a minute early so in-flight requests never race expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}
