// Package downloader acquires queued tracks from the configured download
// tool while honoring the daily quota and the Lidarr pre-check.
package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Beau253/MusicManager/internal/config"
	"github.com/Beau253/MusicManager/internal/fileutil"
	"github.com/Beau253/MusicManager/internal/library"
	"github.com/Beau253/MusicManager/internal/logging"
	"github.com/Beau253/MusicManager/internal/quota"
	"github.com/Beau253/MusicManager/internal/services"
	"github.com/Beau253/MusicManager/internal/services/lidarr"
	"github.com/Beau253/MusicManager/internal/services/onthespot"
)

// AlbumChecker reports whether an album is already handled by Lidarr.
type AlbumChecker interface {
	GetAlbumStatus(ctx context.Context, artist, album string) (lidarr.AlbumStatus, error)
}

// Summary reports what a single acquisition run accomplished.
type Summary struct {
	Attempted  int `json:"attempted"`
	Downloaded int `json:"downloaded"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	Remaining  int `json:"quota_remaining"`
}

// Stage walks the queued tracks in FIFO order and downloads each one.
type Stage struct {
	cfg      *config.Config
	store    *library.Store
	tracker  *quota.Tracker
	client   onthespot.Downloader
	lidarr   AlbumChecker
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration)
	interval func() time.Duration
}

// Option adjusts stage construction, primarily for tests.
type Option func(*Stage)

// WithLidarr enables the pre-download Lidarr check.
func WithLidarr(checker AlbumChecker) Option {
	return func(s *Stage) { s.lidarr = checker }
}

// WithSleep replaces the politeness delay between downloads.
func WithSleep(fn func(context.Context, time.Duration)) Option {
	return func(s *Stage) { s.sleep = fn }
}

// New builds an acquisition stage from its collaborators.
func New(cfg *config.Config, store *library.Store, tracker *quota.Tracker, client onthespot.Downloader, logger *slog.Logger, opts ...Option) (*Stage, error) {
	if cfg == nil || store == nil || tracker == nil || client == nil {
		return nil, services.Wrap(services.ErrConfiguration, "download", "new stage", "missing dependency", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	stage := &Stage{
		cfg:     cfg,
		store:   store,
		tracker: tracker,
		client:  client,
		logger:  logger.With(logging.String(logging.FieldComponent, "downloader")),
		sleep:   sleepContext,
	}
	stage.interval = func() time.Duration {
		return politenessDelay(cfg.Downloader.MinDelaySeconds, cfg.Downloader.MaxDelaySeconds)
	}
	for _, opt := range opts {
		opt(stage)
	}
	return stage, nil
}

// Run processes up to limit queued tracks, or every queued track the daily
// quota allows when limit is zero. Failures on individual tracks are
// recorded and do not stop the run; storage problems do.
func (s *Stage) Run(ctx context.Context, limit int) (Summary, error) {
	summary := Summary{}
	remaining, err := s.tracker.Remaining(ctx)
	if err != nil {
		return summary, err
	}
	summary.Remaining = remaining
	if remaining == 0 {
		s.logger.Info("daily download quota exhausted", logging.Int("limit", s.tracker.Limit()))
		return summary, nil
	}
	if limit <= 0 || limit > remaining {
		limit = remaining
	}
	queued, err := s.store.ByStatus(ctx, library.StatusQueued)
	if err != nil {
		return summary, err
	}
	if len(queued) == 0 {
		s.logger.Info("no queued tracks")
		return summary, nil
	}
	if len(queued) > limit {
		queued = queued[:limit]
	}
	s.logger.Info("starting acquisition run",
		logging.Int("tracks", len(queued)),
		logging.Int("quota_remaining", remaining))

	for i, track := range queued {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Attempted++
		outcome, err := s.processTrack(ctx, track)
		if err != nil {
			return summary, err
		}
		switch outcome {
		case outcomeDownloaded:
			summary.Downloaded++
		case outcomeFailed:
			summary.Failed++
		case outcomeSkipped:
			summary.Skipped++
		}
		if i < len(queued)-1 {
			s.sleep(ctx, s.interval())
		}
	}
	summary.Remaining, err = s.tracker.Remaining(ctx)
	if err != nil {
		return summary, err
	}
	s.logger.Info("acquisition run finished",
		logging.Int("downloaded", summary.Downloaded),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped))
	return summary, nil
}

type trackOutcome int

const (
	outcomeDownloaded trackOutcome = iota
	outcomeFailed
	outcomeSkipped
)

func (s *Stage) processTrack(ctx context.Context, track *library.Track) (trackOutcome, error) {
	ctx = services.WithTrackID(services.WithTrackURI(ctx, track.SpotifyURI), track.ID)
	logger := s.logger.With(logging.Args(logging.ContextFields(ctx)...)...)

	if err := s.store.UpdateStatus(ctx, track.ID, library.StatusProcessingDownload, ""); err != nil {
		return outcomeFailed, err
	}

	if s.lidarr != nil && track.Album != "" {
		status, err := s.lidarr.GetAlbumStatus(ctx, track.Artist, track.Album)
		switch {
		case err != nil:
			// A Lidarr hiccup never blocks a download.
			logger.Warn("lidarr check failed, downloading anyway", logging.Error(err))
		case status == lidarr.AlbumOnDisk:
			reason := fmt.Sprintf("fulfilled by Lidarr (on disk): %s - %s", track.Artist, track.Album)
			if err := s.store.SetMonitorStatus(ctx, track.ID, library.MonitorOnDisk); err != nil {
				return outcomeFailed, err
			}
			if err := s.store.UpdateStatus(ctx, track.ID, library.StatusSkipped, reason); err != nil {
				return outcomeFailed, err
			}
			logger.Info("track skipped", logging.String("reason", "lidarr has album on disk"))
			return outcomeSkipped, nil
		case status == lidarr.AlbumMonitored:
			if err := s.store.SetMonitorStatus(ctx, track.ID, library.MonitorMonitored); err != nil {
				return outcomeFailed, err
			}
			logger.Info("album monitored by lidarr, downloading anyway",
				logging.String("album", track.Album))
		}
	}

	before, err := fileutil.Snapshot(s.cfg.UnorganizedPath())
	if err != nil {
		return outcomeFailed, services.Wrap(services.ErrStorage, "download", "scan downloads", s.cfg.UnorganizedPath(), err)
	}

	logger.Info("downloading track",
		logging.String("title", track.Title),
		logging.String("artist", track.Artist))
	err = s.client.Download(ctx, track.SpotifyURI, s.cfg.UnorganizedPath(), func(line string) {
		logger.Debug(line)
	})
	if err != nil {
		if services.IsFatal(err) || ctx.Err() != nil {
			return outcomeFailed, err
		}
		if serr := s.store.UpdateStatus(ctx, track.ID, library.StatusDownloadFailed, err.Error()); serr != nil {
			return outcomeFailed, serr
		}
		logger.Error("download failed", logging.Error(err))
		return outcomeFailed, nil
	}

	// Whatever single new file appeared is the download. Zero or several
	// new files leaves temp_path empty and the organizer falls back to a
	// fingerprint match.
	tempPath := ""
	if created, err := fileutil.NewSince(s.cfg.UnorganizedPath(), before); err == nil && len(created) == 1 {
		tempPath = created[0]
	}

	if err := s.store.MarkDownloadComplete(ctx, track.ID, tempPath); err != nil {
		return outcomeFailed, err
	}
	if err := s.tracker.RecordSuccess(ctx); err != nil {
		return outcomeFailed, err
	}
	logger.Info("download complete")
	return outcomeDownloaded, nil
}

// politenessDelay picks a random pause within the configured window so the
// tool does not hammer the upstream service.
func politenessDelay(minSeconds, maxSeconds int) time.Duration {
	if minSeconds < 0 {
		minSeconds = 0
	}
	if maxSeconds <= minSeconds {
		return time.Duration(minSeconds) * time.Second
	}
	spread := float64(maxSeconds - minSeconds)
	return time.Duration((float64(minSeconds) + rand.Float64()*spread) * float64(time.Second))
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
