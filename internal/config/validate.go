package config

import (
	"fmt"
	"strings"
)

// ValidationError reports configuration problems discovered during Validate.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

// Validate performs consistency checks on the configuration. Any failure is
// fatal at startup; partially valid configurations are never used.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Main.MusicRoot) == "" {
		problems = append(problems, "main.music_root must be set")
	}
	if strings.TrimSpace(c.Main.StateDir) == "" {
		problems = append(problems, "main.state_dir must be set")
	}
	if c.Main.UnorganizedDir == "" {
		problems = append(problems, "main.unorganized_subdir must be set")
	}
	if c.Main.OrganizedDir == "" {
		problems = append(problems, "main.organized_subdir must be set")
	}
	if c.Main.UnorganizedDir == c.Main.OrganizedDir {
		problems = append(problems, "main.unorganized_subdir and main.organized_subdir must differ")
	}

	if c.Downloader.DailyTrackLimit <= 0 {
		problems = append(problems, "downloader.daily_track_limit must be positive")
	}
	if c.Downloader.MinDelaySeconds < 0 {
		problems = append(problems, "downloader.min_delay_seconds must not be negative")
	}
	if c.Downloader.MaxDelaySeconds < c.Downloader.MinDelaySeconds {
		problems = append(problems, "downloader.max_delay_seconds must be at least min_delay_seconds")
	}
	if strings.TrimSpace(c.Downloader.Binary) == "" {
		problems = append(problems, "downloader.binary must be set")
	}
	switch c.Downloader.Format {
	case "m4a", "mp3", "flac", "ogg", "opus":
	default:
		problems = append(problems, fmt.Sprintf("downloader.format %q is not a supported audio format", c.Downloader.Format))
	}

	if strings.TrimSpace(c.Picard.Binary) == "" {
		problems = append(problems, "picard.binary must be set")
	}

	if (c.Spotify.ClientID == "") != (c.Spotify.ClientSecret == "") {
		problems = append(problems, "spotify.client_id and spotify.client_secret must be set together")
	}
	if (c.Plex.URL == "") != (c.Plex.Token == "") {
		problems = append(problems, "plex.url and plex.token must be set together")
	}
	if c.Features.PlexSyncEnabled && !c.PlexConfigured() {
		problems = append(problems, "features.plex_sync_enabled requires plex.url and plex.token")
	}
	if (c.Lidarr.URL == "") != (c.Lidarr.APIKey == "") {
		problems = append(problems, "lidarr.url and lidarr.api_key must be set together")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be console or json", c.Logging.Format))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q must be debug, info, warn, or error", c.Logging.Level))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
