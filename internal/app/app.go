// Package app wires configuration, storage, external services, and the
// pipeline stages into one composition root shared by the CLI and the
// HTTP server.
package app

import (
	"context"
	"log/slog"

	"github.com/gofrs/flock"

	"github.com/Beau253/MusicManager/internal/config"
	"github.com/Beau253/MusicManager/internal/downloader"
	"github.com/Beau253/MusicManager/internal/library"
	"github.com/Beau253/MusicManager/internal/logging"
	"github.com/Beau253/MusicManager/internal/organizer"
	"github.com/Beau253/MusicManager/internal/playlist"
	"github.com/Beau253/MusicManager/internal/quota"
	"github.com/Beau253/MusicManager/internal/server"
	"github.com/Beau253/MusicManager/internal/services"
	"github.com/Beau253/MusicManager/internal/services/lidarr"
	"github.com/Beau253/MusicManager/internal/services/onthespot"
	"github.com/Beau253/MusicManager/internal/services/picard"
	"github.com/Beau253/MusicManager/internal/services/plex"
	"github.com/Beau253/MusicManager/internal/services/spotify"
)

// App owns every long-lived collaborator. Optional services stay nil
// when the config leaves them out; accessors report that as a
// configuration error instead of a panic.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Store  *library.Store
	Quota  *quota.Tracker

	spotify *spotify.Client
	lidarr  *lidarr.Client
	plex    *plex.Client

	download  *downloader.Stage
	organize  *organizer.Stage
	playlists *playlist.Generator

	lock *flock.Flock
}

// New opens the store, builds whatever the configuration enables, and
// reclaims tracks stranded in processing by a previous crash.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "app", "new", "config is required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := library.Open(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Logger: logger,
		Store:  store,
		lock:   flock.New(cfg.LockPath()),
	}

	reclaimed, err := store.ReclaimStuckProcessing(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	if reclaimed > 0 {
		logger.Info("reclaimed tracks stuck in processing", logging.Int64("count", reclaimed))
	}

	app.Quota, err = quota.NewTracker(store, cfg.Downloader.DailyTrackLimit)
	if err != nil {
		store.Close()
		return nil, err
	}

	if cfg.Spotify.ClientID != "" && cfg.Spotify.ClientSecret != "" {
		app.spotify, err = spotify.New(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret)
		if err != nil {
			store.Close()
			return nil, err
		}
	}
	if cfg.Lidarr.URL != "" && cfg.Lidarr.APIKey != "" {
		app.lidarr, err = lidarr.New(cfg.Lidarr.URL, cfg.Lidarr.APIKey)
		if err != nil {
			store.Close()
			return nil, err
		}
	}
	if cfg.Plex.URL != "" && cfg.Plex.Token != "" {
		app.plex, err = plex.New(cfg.Plex.URL, cfg.Plex.Token)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	otsClient, err := onthespot.New(cfg.Downloader.Binary, cfg.Downloader.Format, cfg.Downloader.TimeoutSeconds)
	if err != nil {
		store.Close()
		return nil, err
	}
	var downloadOpts []downloader.Option
	if app.lidarr != nil {
		downloadOpts = append(downloadOpts, downloader.WithLidarr(app.lidarr))
	}
	app.download, err = downloader.New(cfg, store, app.Quota, otsClient, logger, downloadOpts...)
	if err != nil {
		store.Close()
		return nil, err
	}

	tagger, err := picard.New(cfg.Picard.Binary, cfg.Main.PicardConfigPath, cfg.Picard.TimeoutSeconds)
	if err != nil {
		store.Close()
		return nil, err
	}
	var organizeOpts []organizer.Option
	if app.plex != nil {
		organizeOpts = append(organizeOpts, organizer.WithPlex(app.plex))
	}
	app.organize, err = organizer.New(cfg, store, tagger, logger, organizeOpts...)
	if err != nil {
		store.Close()
		return nil, err
	}

	app.playlists, err = playlist.New(cfg, store, app.spotify, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	return app, nil
}

// Close releases the store and the instance lock.
func (a *App) Close() error {
	a.Unlock()
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// Lock takes the single-instance lock so two pipeline runs never fight
// over the same download directory.
func (a *App) Lock() error {
	ok, err := a.lock.TryLock()
	if err != nil {
		return services.Wrap(services.ErrStorage, "app", "lock", a.Config.LockPath(), err)
	}
	if !ok {
		return services.Wrap(services.ErrValidation, "app", "lock", "another musicman instance is already running", nil)
	}
	return nil
}

// Unlock releases the instance lock if held.
func (a *App) Unlock() {
	if a.lock != nil {
		_ = a.lock.Unlock()
	}
}

// Spotify returns the Spotify client, erroring when credentials are
// missing from the config.
func (a *App) Spotify() (*spotify.Client, error) {
	if a.spotify == nil {
		return nil, services.Wrap(services.ErrConfiguration, "app", "spotify", "spotify credentials are not configured", nil)
	}
	return a.spotify, nil
}

// Lidarr returns the Lidarr client when configured.
func (a *App) Lidarr() (*lidarr.Client, error) {
	if a.lidarr == nil {
		return nil, services.Wrap(services.ErrConfiguration, "app", "lidarr", "lidarr is not configured", nil)
	}
	return a.lidarr, nil
}

// Plex returns the Plex client when configured.
func (a *App) Plex() (*plex.Client, error) {
	if a.plex == nil {
		return nil, services.Wrap(services.ErrConfiguration, "app", "plex", "plex is not configured", nil)
	}
	return a.plex, nil
}

// Downloader returns the acquisition stage.
func (a *App) Downloader() *downloader.Stage { return a.download }

// Organizer returns the organization stage.
func (a *App) Organizer() *organizer.Stage { return a.organize }

// Playlists returns the playlist generator.
func (a *App) Playlists() *playlist.Generator { return a.playlists }

// SyncPlaylist fetches one Spotify playlist and queues every track it
// references. Already-queued tracks count toward Total but not Added.
func (a *App) SyncPlaylist(ctx context.Context, ref string) (*server.SyncReport, error) {
	client, err := a.Spotify()
	if err != nil {
		return nil, err
	}
	fetched, err := client.GetPlaylist(ctx, ref)
	if err != nil {
		return nil, err
	}
	report := &server.SyncReport{Playlist: fetched.Name, Total: len(fetched.Tracks)}
	for _, track := range fetched.Tracks {
		result, err := a.Store.Queue(ctx, track.URI, track.Title, track.Artist, track.Album, fetched.Name)
		if err != nil {
			return report, err
		}
		if result.Added {
			report.Added++
		}
	}
	a.Logger.Info("playlist synced",
		logging.String("playlist", fetched.Name),
		logging.Int("added", report.Added),
		logging.Int("total", report.Total))
	return report, nil
}

// SyncAllPlaylists queues the tracks of every configured playlist.
func (a *App) SyncAllPlaylists(ctx context.Context) ([]*server.SyncReport, error) {
	if len(a.Config.Spotify.PlaylistURLs) == 0 {
		return nil, nil
	}
	var reports []*server.SyncReport
	for _, ref := range a.Config.Spotify.PlaylistURLs {
		report, err := a.SyncPlaylist(ctx, ref)
		if err != nil {
			if services.IsFatal(err) {
				return reports, err
			}
			a.Logger.Error("playlist sync failed",
				logging.String("playlist", ref),
				logging.Error(err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Serve builds and starts the HTTP API, returning the running server.
func (a *App) Serve(ctx context.Context) (*server.Server, error) {
	srv, err := server.New(a.Config, a.Store, a.Logger, server.Options{
		Download:  a.download,
		Organize:  a.organize,
		Playlists: a.playlists,
		Syncer:    a,
	})
	if err != nil {
		return nil, err
	}
	if err := srv.Start(ctx); err != nil {
		return nil, err
	}
	return srv, nil
}
