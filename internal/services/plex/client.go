// Package plex triggers media-server library scans after tracks are
// organized so new files show up without waiting for a scheduled refresh.
package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Beau253/MusicManager/internal/services"
)

// HTTPDoer describes the HTTP client used by the service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a Plex media server.
type Client struct {
	baseURL    string
	token      string
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

// New constructs a Plex client.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	token = strings.TrimSpace(token)
	if baseURL == "" || token == "" {
		return nil, services.Wrap(services.ErrConfiguration, "plex", "new", "url and token required", nil)
	}
	client := &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Ping verifies the server answers with the configured token.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/identity", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkStatus(resp, "identity")
}

// ScanLibrary asks Plex to rescan the music section with the given name.
func (c *Client) ScanLibrary(ctx context.Context, libraryName string) error {
	key, err := c.findSectionKey(ctx, libraryName)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, http.MethodGet, "/library/sections/"+key+"/refresh", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkStatus(resp, "refresh section")
}

func (c *Client) findSectionKey(ctx context.Context, libraryName string) (string, error) {
	libraryName = strings.TrimSpace(libraryName)
	if libraryName == "" {
		return "", services.Wrap(services.ErrValidation, "plex", "scan", "library name required", nil)
	}

	resp, err := c.do(ctx, http.MethodGet, "/library/sections", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if err := c.checkStatus(resp, "list sections"); err != nil {
		return "", err
	}

	var payload struct {
		MediaContainer struct {
			Directory []struct {
				Key   string `json:"key"`
				Title string `json:"title"`
				Type  string `json:"type"`
			} `json:"Directory"`
		} `json:"MediaContainer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", services.Wrap(services.ErrTransient, "plex", "scan", "decode sections", err)
	}

	for _, section := range payload.MediaContainer.Directory {
		if strings.EqualFold(section.Title, libraryName) {
			return section.Key, nil
		}
	}
	return "", services.Wrap(services.ErrNotFound, "plex", "scan",
		fmt.Sprintf("library %q not found on server", libraryName), nil)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values) (*http.Response, error) {
	requestURL := c.baseURL + path
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, http.NoBody)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "plex", "request", "build request", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "plex", "request", "execute request", err)
	}
	return resp, nil
}

func (c *Client) checkStatus(resp *http.Response, operation string) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return services.Wrap(services.ErrConfiguration, "plex", operation, "token rejected", nil)
	case resp.StatusCode >= http.StatusMultipleChoices:
		return services.Wrap(services.ErrTransient, "plex", operation,
			fmt.Sprintf("server returned %d", resp.StatusCode), nil)
	}
	return nil
}
