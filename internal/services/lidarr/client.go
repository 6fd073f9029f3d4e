// Package lidarr is a small client for the Lidarr v1 API. The acquisition
// stage asks it whether an album is already on disk before spending quota
// on a download.
package lidarr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Beau253/MusicManager/internal/services"
	"github.com/Beau253/MusicManager/internal/textutil"
)

// AlbumStatus classifies what Lidarr knows about an album.
type AlbumStatus string

const (
	// AlbumUnknown means Lidarr has never heard of the album.
	AlbumUnknown AlbumStatus = "unknown"
	// AlbumMonitored means Lidarr tracks the album but has no files yet.
	AlbumMonitored AlbumStatus = "monitored"
	// AlbumOnDisk means Lidarr already holds files for the album.
	AlbumOnDisk AlbumStatus = "on_disk"
)

// HTTPDoer describes the HTTP client used by the service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a Lidarr instance.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
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

// New constructs a Lidarr client.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	apiKey = strings.TrimSpace(apiKey)
	if baseURL == "" || apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "lidarr", "new", "url and api key required", nil)
	}
	client := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Ping verifies the instance answers with the configured key.
func (c *Client) Ping(ctx context.Context) error {
	var status struct {
		Version string `json:"version"`
	}
	return c.getJSON(ctx, "/api/v1/system/status", nil, &status)
}

type albumResource struct {
	Title  string `json:"title"`
	Artist struct {
		ArtistName string `json:"artistName"`
	} `json:"artist"`
	Monitored  bool `json:"monitored"`
	Statistics struct {
		TrackFileCount int   `json:"trackFileCount"`
		SizeOnDisk     int64 `json:"sizeOnDisk"`
	} `json:"statistics"`
}

// GetAlbumStatus looks an album up by artist and title. Lookup misses are
// AlbumUnknown, never an error.
func (c *Client) GetAlbumStatus(ctx context.Context, artist, album string) (AlbumStatus, error) {
	artist = strings.TrimSpace(artist)
	album = strings.TrimSpace(album)
	if artist == "" || album == "" {
		return AlbumUnknown, services.Wrap(services.ErrValidation, "lidarr", "album status", "artist and album required", nil)
	}

	params := url.Values{}
	params.Set("term", artist+" "+album)

	var results []albumResource
	if err := c.getJSON(ctx, "/api/v1/album/lookup", params, &results); err != nil {
		return AlbumUnknown, err
	}

	wantArtist := textutil.NewFingerprint(artist)
	wantAlbum := textutil.NewFingerprint(album)
	for _, candidate := range results {
		if textutil.CosineSimilarity(wantAlbum, textutil.NewFingerprint(candidate.Title)) < 0.8 {
			continue
		}
		if textutil.CosineSimilarity(wantArtist, textutil.NewFingerprint(candidate.Artist.ArtistName)) < 0.8 {
			continue
		}
		if candidate.Statistics.TrackFileCount > 0 || candidate.Statistics.SizeOnDisk > 0 {
			return AlbumOnDisk, nil
		}
		if candidate.Monitored {
			return AlbumMonitored, nil
		}
	}
	return AlbumUnknown, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	requestURL := c.baseURL + path
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return services.Wrap(services.ErrTransient, "lidarr", "request", "build request", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "lidarr", "request", "execute request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return services.Wrap(services.ErrConfiguration, "lidarr", "request", "api key rejected", nil)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return services.Wrap(services.ErrTransient, "lidarr", "request",
			fmt.Sprintf("API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransient, "lidarr", "request", "decode response", err)
	}
	return nil
}
