package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Beau253/MusicManager/internal/config"
)

// ConfigOption adjusts the config produced by NewConfig.
type ConfigOption func(t testing.TB, base string, cfg *config.Config)

// NewConfig returns a config rooted in a fresh temp directory. Politeness
// delays are zeroed and the API server binds an ephemeral port so tests
// never wait or collide.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Main.MusicRoot = filepath.Join(base, "music")
	cfg.Main.StateDir = filepath.Join(base, "state")
	cfg.Downloader.MinDelaySeconds = 0
	cfg.Downloader.MaxDelaySeconds = 0
	cfg.Server.Bind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(t, base, &cfg)
	}
	return &cfg
}

// WithDailyLimit sets the download quota ceiling.
func WithDailyLimit(limit int) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Downloader.DailyTrackLimit = limit
	}
}

// WithSpotifyCredentials fills in catalog API credentials.
func WithSpotifyCredentials(id, secret string) ConfigOption {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Spotify.ClientID = id
		cfg.Spotify.ClientSecret = secret
	}
}

// WithStubbedBinaries drops no-op executables onto a PATH prefix so doctor
// checks and tool runners resolve them. Defaults to the standard external
// tools when no names are given.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(t testing.TB, base string, _ *config.Config) {
		if len(names) == 0 {
			names = []string{"onthespot-cli", "picard"}
		}
		binDir := filepath.Join(base, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			stub := filepath.Join(binDir, name)
			if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the temp directory a NewConfig config is rooted in.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Main.MusicRoot)
}
