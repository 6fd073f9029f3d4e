// Package onthespot wraps the external OnTheSpot downloader CLI.
package onthespot

import (
	"context"
	"strings"
	"time"

	"github.com/Beau253/MusicManager/internal/services"
)

// Downloader defines the behaviour required by the acquisition stage.
type Downloader interface {
	Download(ctx context.Context, uri, destDir string, onOutput func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithRunner injects a custom command runner (primarily for tests).
func WithRunner(runner services.Runner) Option {
	return func(c *Client) {
		if runner != nil {
			c.runner = runner
		}
	}
}

// Client wraps OnTheSpot CLI interactions.
type Client struct {
	binary  string
	format  string
	timeout time.Duration
	runner  services.Runner
}

// New constructs an OnTheSpot client.
func New(binary, format string, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "download", "onthespot", "downloader binary required", nil)
	}
	client := &Client{
		binary:  binary,
		format:  strings.TrimSpace(format),
		timeout: time.Duration(timeoutSeconds) * time.Second,
		runner:  services.NewCommandRunner(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Download runs the external downloader for one track URI. Output lands in
// destDir named however the tool decides; the organize stage pairs files
// with tracks afterwards.
func (c *Client) Download(ctx context.Context, uri, destDir string, onOutput func(string)) error {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return services.Wrap(services.ErrValidation, "download", "onthespot", "track URI required", nil)
	}
	if strings.TrimSpace(destDir) == "" {
		return services.Wrap(services.ErrValidation, "download", "onthespot", "destination directory required", nil)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{"--output", destDir}
	if c.format != "" {
		args = append(args, "--format", c.format)
	}
	args = append(args, uri)

	if err := c.runner.Run(runCtx, c.binary, args, onOutput); err != nil {
		return services.Wrap(services.ErrExternalTool, "download", "onthespot", "download "+uri, err)
	}
	return nil
}
