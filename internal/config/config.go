package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Main contains the library directory layout.
type Main struct {
	MusicRoot        string `toml:"music_root"`
	UnorganizedDir   string `toml:"unorganized_subdir"`
	OrganizedDir     string `toml:"organized_subdir"`
	PlaylistDir      string `toml:"playlist_subdir"`
	StateDir         string `toml:"state_dir"`
	PicardConfigPath string `toml:"picard_config_path"`
}

// Spotify contains streaming-catalog API credentials and playlist sources.
type Spotify struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	PlaylistURLs []string `toml:"playlist_urls"`
}

// Downloader contains settings for the external acquisition tool.
type Downloader struct {
	Binary          string `toml:"binary"`
	Format          string `toml:"format"`
	DailyTrackLimit int    `toml:"daily_track_limit"`
	MinDelaySeconds int    `toml:"min_delay_seconds"`
	MaxDelaySeconds int    `toml:"max_delay_seconds"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Picard contains settings for the external tagging tool.
type Picard struct {
	Binary         string `toml:"binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Plex contains media-server connection settings.
type Plex struct {
	URL         string `toml:"url"`
	Token       string `toml:"token"`
	LibraryName string `toml:"library_name"`
}

// Lidarr contains monitoring-service connection settings.
type Lidarr struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// Features contains optional behavior toggles.
type Features struct {
	PlaylistsEnabled bool `toml:"m3u_generator_enabled"`
	PlexSyncEnabled  bool `toml:"plex_sync_enabled"`
}

// Server contains HTTP API settings.
type Server struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Logging contains log output settings.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for MusicManager.
type Config struct {
	Main       Main       `toml:"main"`
	Spotify    Spotify    `toml:"spotify"`
	Downloader Downloader `toml:"downloader"`
	Picard     Picard     `toml:"picard"`
	Plex       Plex       `toml:"plex"`
	Lidarr     Lidarr     `toml:"lidarr"`
	Features   Features   `toml:"features"`
	Server     Server     `toml:"server"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/musicman/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded, environment secrets overlaid, and
// defaults applied to anything the file leaves unset.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides(os.Getenv)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// applyEnvOverrides overlays secret values from the environment. This is the
// only place the configuration consults the environment; the lookup function
// is a parameter so tests can supply their own.
func (c *Config) applyEnvOverrides(getenv func(string) string) {
	if v := strings.TrimSpace(getenv("SPOTIFY_CLIENT_ID")); v != "" {
		c.Spotify.ClientID = v
	}
	if v := strings.TrimSpace(getenv("SPOTIFY_CLIENT_SECRET")); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := strings.TrimSpace(getenv("PLEX_TOKEN")); v != "" {
		c.Plex.Token = v
	}
	if v := strings.TrimSpace(getenv("LIDARR_API_KEY")); v != "" {
		c.Lidarr.APIKey = v
	}
	if v := strings.TrimSpace(getenv("MUSICMAN_API_TOKEN")); v != "" {
		c.Server.Token = v
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("musicman.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Main.MusicRoot, err = expandPath(c.Main.MusicRoot); err != nil {
		return err
	}
	if c.Main.StateDir, err = expandPath(c.Main.StateDir); err != nil {
		return err
	}
	if c.Main.PicardConfigPath != "" {
		if c.Main.PicardConfigPath, err = expandPath(c.Main.PicardConfigPath); err != nil {
			return err
		}
	}
	c.Main.UnorganizedDir = strings.Trim(strings.TrimSpace(c.Main.UnorganizedDir), "/")
	c.Main.OrganizedDir = strings.Trim(strings.TrimSpace(c.Main.OrganizedDir), "/")
	c.Main.PlaylistDir = strings.Trim(strings.TrimSpace(c.Main.PlaylistDir), "/")
	c.Downloader.Format = strings.ToLower(strings.TrimSpace(c.Downloader.Format))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

// EnsureDirectories creates the directories required for operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Main.StateDir,
		c.UnorganizedPath(),
		c.OrganizedPath(),
	}
	if c.Features.PlaylistsEnabled {
		dirs = append(dirs, c.PlaylistPath())
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// UnorganizedPath returns the absolute directory freshly downloaded files land in.
func (c *Config) UnorganizedPath() string {
	return filepath.Join(c.Main.MusicRoot, c.Main.UnorganizedDir)
}

// OrganizedPath returns the absolute root of the organized library.
func (c *Config) OrganizedPath() string {
	return filepath.Join(c.Main.MusicRoot, c.Main.OrganizedDir)
}

// OrganizedFileExists reports whether a path recorded relative to the
// organized library root still points at a file on disk.
func (c *Config) OrganizedFileExists(relPath string) bool {
	if relPath == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(c.OrganizedPath(), filepath.FromSlash(relPath)))
	return err == nil
}

// PlaylistPath returns the absolute directory playlist files are written to.
func (c *Config) PlaylistPath() string {
	return filepath.Join(c.Main.MusicRoot, c.Main.PlaylistDir)
}

// DatabasePath returns the SQLite database location inside the state directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Main.StateDir, "musicman.db")
}

// LockPath returns the stage-run lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Main.StateDir, "musicman.lock")
}

// LogPath returns the log file location inside the state directory.
func (c *Config) LogPath() string {
	return filepath.Join(c.Main.StateDir, "musicman.log")
}

// SpotifyConfigured reports whether catalog API credentials are present.
func (c *Config) SpotifyConfigured() bool {
	return strings.TrimSpace(c.Spotify.ClientID) != "" && strings.TrimSpace(c.Spotify.ClientSecret) != ""
}

// PlexConfigured reports whether media-server settings are present.
func (c *Config) PlexConfigured() bool {
	return strings.TrimSpace(c.Plex.URL) != "" && strings.TrimSpace(c.Plex.Token) != ""
}

// LidarrConfigured reports whether monitoring-service settings are present.
func (c *Config) LidarrConfigured() bool {
	return strings.TrimSpace(c.Lidarr.URL) != "" && strings.TrimSpace(c.Lidarr.APIKey) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
