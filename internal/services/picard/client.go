// Package picard wraps the external MusicBrainz Picard CLI used to tag,
// rename, and move downloaded files into the organized library.
package picard

import (
	"context"
	"strings"
	"time"

	"github.com/Beau253/MusicManager/internal/services"
)

// Tagger defines the behaviour required by the organization stage.
type Tagger interface {
	Tag(ctx context.Context, filePath, outputDir string, onOutput func(string)) error
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

// Client wraps Picard CLI interactions.
type Client struct {
	binary     string
	configPath string
	timeout    time.Duration
	runner     services.Runner
}

// New constructs a Picard client. configPath may be empty, in which case
// Picard falls back to its own settings.
func New(binary, configPath string, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, services.Wrap(services.ErrConfiguration, "organize", "picard", "picard binary required", nil)
	}
	client := &Client{
		binary:     binary,
		configPath: strings.TrimSpace(configPath),
		timeout:    time.Duration(timeoutSeconds) * time.Second,
		runner:     services.NewCommandRunner(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Tag runs Picard on one downloaded file. Picard applies its configured
// naming rules and moves the result under outputDir; the caller locates the
// produced file afterwards.
func (c *Client) Tag(ctx context.Context, filePath, outputDir string, onOutput func(string)) error {
	if strings.TrimSpace(filePath) == "" {
		return services.Wrap(services.ErrValidation, "organize", "picard", "file path required", nil)
	}
	if strings.TrimSpace(outputDir) == "" {
		return services.Wrap(services.ErrValidation, "organize", "picard", "output directory required", nil)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := make([]string, 0, 5)
	if c.configPath != "" {
		args = append(args, "--config", c.configPath)
	}
	args = append(args, "--output", outputDir, filePath)

	if err := c.runner.Run(runCtx, c.binary, args, onOutput); err != nil {
		return services.Wrap(services.ErrExternalTool, "organize", "picard", "tag "+filePath, err)
	}
	return nil
}
