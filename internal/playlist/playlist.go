// Package playlist materializes Spotify playlists as .m3u files pointing
// at organized library tracks.
package playlist

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Beau253/MusicManager/internal/config"
	"github.com/Beau253/MusicManager/internal/library"
	"github.com/Beau253/MusicManager/internal/logging"
	"github.com/Beau253/MusicManager/internal/services"
	"github.com/Beau253/MusicManager/internal/services/spotify"
	"github.com/Beau253/MusicManager/internal/textutil"
)

// PathResolver maps track URIs to organized file paths. *library.Store
// satisfies it.
type PathResolver interface {
	ResolvePaths(ctx context.Context, uris []string) (map[string]string, error)
}

// PlaylistFetcher retrieves a playlist's name and track list.
type PlaylistFetcher interface {
	GetPlaylist(ctx context.Context, ref string) (*spotify.Playlist, error)
}

// Result describes one materialized playlist. Total counts every track
// the playlist references; Resolved counts the ones already organized.
type Result struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Resolved int    `json:"resolved"`
	Total    int    `json:"total"`
}

// Generator writes m3u files under the configured playlist directory.
type Generator struct {
	cfg     *config.Config
	store   PathResolver
	fetcher PlaylistFetcher
	logger  *slog.Logger
}

// New builds a playlist generator. The fetcher may be nil when only
// GenerateFromTracks is used.
func New(cfg *config.Config, store PathResolver, fetcher PlaylistFetcher, logger *slog.Logger) (*Generator, error) {
	if cfg == nil || store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "playlist", "new generator", "missing dependency", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher,
		logger:  logger.With(logging.String(logging.FieldComponent, "playlist")),
	}, nil
}

// GenerateAll materializes every playlist configured under
// spotify.playlist_urls. A playlist that cannot be fetched is reported
// and skipped; the rest still generate.
func (g *Generator) GenerateAll(ctx context.Context) ([]Result, error) {
	if !g.cfg.Features.PlaylistsEnabled {
		g.logger.Info("playlist generation disabled")
		return nil, nil
	}
	if len(g.cfg.Spotify.PlaylistURLs) == 0 {
		g.logger.Info("no playlists configured")
		return nil, nil
	}
	if g.fetcher == nil {
		return nil, services.Wrap(services.ErrConfiguration, "playlist", "generate", "spotify client is required", nil)
	}
	var results []Result
	for _, ref := range g.cfg.Spotify.PlaylistURLs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		fetched, err := g.fetcher.GetPlaylist(ctx, ref)
		if err != nil {
			if services.IsFatal(err) {
				return results, err
			}
			g.logger.Error("playlist fetch failed",
				logging.String("playlist", ref),
				logging.Error(err))
			continue
		}
		uris := make([]string, 0, len(fetched.Tracks))
		for _, track := range fetched.Tracks {
			uris = append(uris, track.URI)
		}
		result, err := g.GenerateFromTracks(ctx, fetched.Name, uris)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// GenerateFromTracks writes one m3u for the named playlist. Tracks not
// yet organized are left out; the counts report the gap.
func (g *Generator) GenerateFromTracks(ctx context.Context, name string, uris []string) (Result, error) {
	result := Result{Name: name, Total: len(uris)}
	resolved, err := g.store.ResolvePaths(ctx, uris)
	if err != nil {
		return result, err
	}

	playlistDir := g.cfg.PlaylistPath()
	if err := os.MkdirAll(playlistDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrStorage, "playlist", "create directory", playlistDir, err)
	}

	fileName := textutil.SanitizeFileName(name)
	if fileName == "" {
		fileName = "playlist"
	}
	result.Path = filepath.Join(playlistDir, fileName+".m3u")

	var builder strings.Builder
	builder.WriteString("#EXTM3U\n")
	for _, uri := range uris {
		path, ok := resolved[uri]
		if !ok {
			g.logger.Warn("skipping unresolved track",
				logging.String("uri", uri),
				logging.String("playlist", name))
			continue
		}
		// Stored paths are relative to the organized library root.
		absolute := filepath.Join(g.cfg.OrganizedPath(), filepath.FromSlash(path))
		entry, err := relativeEntry(playlistDir, absolute)
		if err != nil {
			g.logger.Warn("skipping unresolvable path",
				logging.String("path", path),
				logging.Error(err))
			continue
		}
		builder.WriteString(entry)
		builder.WriteByte('\n')
		result.Resolved++
	}

	if err := os.WriteFile(result.Path, []byte(builder.String()), 0o644); err != nil {
		return result, services.Wrap(services.ErrStorage, "playlist", "write m3u", result.Path, err)
	}
	g.logger.Info("playlist written",
		logging.String("name", name),
		logging.String("path", result.Path),
		logging.String("tracks", fmt.Sprintf("%d/%d", result.Resolved, result.Total)))
	return result, nil
}

// relativeEntry renders one m3u line relative to the playlist directory,
// with forward slashes so the file works across players and platforms.
func relativeEntry(playlistDir, trackPath string) (string, error) {
	rel, err := filepath.Rel(playlistDir, trackPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

var _ PathResolver = (*library.Store)(nil)
