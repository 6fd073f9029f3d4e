// Package organizer hands downloaded files to Picard, locates the result,
// and records the tagged metadata as the source of truth.
package organizer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Beau253/MusicManager/internal/config"
	"github.com/Beau253/MusicManager/internal/fileutil"
	"github.com/Beau253/MusicManager/internal/library"
	"github.com/Beau253/MusicManager/internal/logging"
	"github.com/Beau253/MusicManager/internal/services"
	"github.com/Beau253/MusicManager/internal/services/picard"
	"github.com/Beau253/MusicManager/internal/tags"
	"github.com/Beau253/MusicManager/internal/textutil"
)

// matchThreshold is the minimum cosine similarity between a track's
// "artist title" fingerprint and a file name before the file is treated
// as that track's download.
const matchThreshold = 0.35

// LibraryScanner triggers a media-server rescan after files move.
type LibraryScanner interface {
	ScanLibrary(ctx context.Context, libraryName string) error
}

// Summary reports what a single organization run accomplished.
type Summary struct {
	Attempted int `json:"attempted"`
	Organized int `json:"organized"`
	Failed    int `json:"failed"`
}

// Stage moves download-complete tracks through tagging into the library.
type Stage struct {
	cfg    *config.Config
	store  *library.Store
	tagger picard.Tagger
	reader tags.Reader
	plex   LibraryScanner
	logger *slog.Logger
}

// Option adjusts stage construction.
type Option func(*Stage)

// WithPlex enables a library rescan after a run that organized files.
func WithPlex(scanner LibraryScanner) Option {
	return func(s *Stage) { s.plex = scanner }
}

// WithTagReader replaces the TagLib reader, for tests.
func WithTagReader(reader tags.Reader) Option {
	return func(s *Stage) { s.reader = reader }
}

// New builds an organization stage from its collaborators.
func New(cfg *config.Config, store *library.Store, tagger picard.Tagger, logger *slog.Logger, opts ...Option) (*Stage, error) {
	if cfg == nil || store == nil || tagger == nil {
		return nil, services.Wrap(services.ErrConfiguration, "organize", "new stage", "missing dependency", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	stage := &Stage{
		cfg:    cfg,
		store:  store,
		tagger: tagger,
		reader: tags.NewReader(),
		logger: logger.With(logging.String(logging.FieldComponent, "organizer")),
	}
	for _, opt := range opts {
		opt(stage)
	}
	return stage, nil
}

// Run organizes every track currently in download_complete. Per-track
// failures mark the track picard_failed and the run continues; storage
// problems abort it.
func (s *Stage) Run(ctx context.Context) (Summary, error) {
	summary := Summary{}
	pending, err := s.store.ByStatus(ctx, library.StatusDownloadComplete)
	if err != nil {
		return summary, err
	}
	if len(pending) == 0 {
		s.logger.Info("no tracks awaiting organization")
		return summary, nil
	}
	s.logger.Info("starting organization run", logging.Int("tracks", len(pending)))

	for _, track := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Attempted++
		organized, err := s.processTrack(ctx, track)
		if err != nil {
			return summary, err
		}
		if organized {
			summary.Organized++
		} else {
			summary.Failed++
		}
	}

	s.logger.Info("organization run finished",
		logging.Int("organized", summary.Organized),
		logging.Int("failed", summary.Failed))

	if summary.Organized > 0 && s.plex != nil && s.cfg.Features.PlexSyncEnabled {
		if err := s.plex.ScanLibrary(ctx, s.cfg.Plex.LibraryName); err != nil {
			// The files are in place either way; the rescan can be rerun.
			s.logger.Warn("plex library scan failed", logging.Error(err))
		} else {
			s.logger.Info("plex library scan triggered",
				logging.String("library", s.cfg.Plex.LibraryName))
		}
	}
	return summary, nil
}

func (s *Stage) processTrack(ctx context.Context, track *library.Track) (bool, error) {
	ctx = services.WithTrackID(services.WithTrackURI(ctx, track.SpotifyURI), track.ID)
	logger := s.logger.With(logging.Args(logging.ContextFields(ctx)...)...)

	if err := s.store.UpdateStatus(ctx, track.ID, library.StatusProcessingPicard, ""); err != nil {
		return false, err
	}

	sourcePath, err := s.locateDownload(track)
	if err != nil {
		if services.IsFatal(err) {
			return false, err
		}
		if serr := s.store.UpdateStatus(ctx, track.ID, library.StatusPicardFailed, err.Error()); serr != nil {
			return false, serr
		}
		logger.Error("downloaded file missing", logging.Error(err))
		return false, nil
	}

	before, err := fileutil.Snapshot(s.cfg.OrganizedPath())
	if err != nil {
		return false, services.Wrap(services.ErrStorage, "organize", "scan library", s.cfg.OrganizedPath(), err)
	}

	logger.Info("tagging track",
		logging.String("title", track.Title),
		logging.String("source", filepath.Base(sourcePath)))
	err = s.tagger.Tag(ctx, sourcePath, s.cfg.OrganizedPath(), func(line string) {
		logger.Debug(line)
	})
	if err != nil {
		if services.IsFatal(err) || ctx.Err() != nil {
			return false, err
		}
		if serr := s.store.UpdateStatus(ctx, track.ID, library.StatusPicardFailed, err.Error()); serr != nil {
			return false, serr
		}
		logger.Error("tagging failed", logging.Error(err))
		return false, nil
	}

	organizedPath, err := s.findOrganizedFile(track, before)
	if err != nil {
		if services.IsFatal(err) {
			return false, err
		}
		if serr := s.store.UpdateStatus(ctx, track.ID, library.StatusPicardFailed, err.Error()); serr != nil {
			return false, serr
		}
		logger.Error("organized file not found", logging.Error(err))
		return false, nil
	}

	read, err := s.reader.Read(organizedPath)
	if err != nil {
		if services.IsFatal(err) {
			return false, err
		}
		if serr := s.store.UpdateStatus(ctx, track.ID, library.StatusPicardFailed, err.Error()); serr != nil {
			return false, serr
		}
		logger.Error("tag read-back failed", logging.Error(err))
		return false, nil
	}

	relPath, err := filepath.Rel(s.cfg.OrganizedPath(), organizedPath)
	if err != nil {
		return false, services.Wrap(services.ErrStorage, "organize", "relativize path", organizedPath, err)
	}
	relPath = filepath.ToSlash(relPath)

	meta := library.Metadata{
		TrackID:           track.ID,
		RecordingID:       read.RecordingID,
		ReleaseID:         read.ReleaseID,
		TaggedTitle:       read.Title,
		TaggedArtist:      read.Artist,
		TaggedAlbumArtist: read.AlbumArtist,
		TaggedAlbum:       read.Album,
		TaggedGenre:       read.Genre,
		TaggedDate:        read.Date,
		TrackNumber:       read.TrackNumber,
		DiscNumber:        read.DiscNumber,
		DurationMS:        read.DurationMS,
		Quality:           read.Quality,
		OrganizedPath:     relPath,
	}
	if err := s.store.UpsertMetadata(ctx, meta); err != nil {
		return false, err
	}
	if err := s.store.MarkOrganized(ctx, track.ID, relPath, read.RecordingID); err != nil {
		return false, err
	}
	if removeErr := fileutil.RemoveIfPresent(sourcePath); removeErr != nil {
		logger.Warn("could not remove source file", logging.Error(removeErr))
	}
	logger.Info("track organized", logging.String("path", relPath))
	return true, nil
}

// locateDownload finds the track's raw download. The download stage records
// the temp path it observed; when that path is present it is checked
// directly, and a track whose file disappeared fails here. A track without
// a recorded temp path falls back to a fingerprint match over the
// unorganized directory, since download tools pick their own file names.
func (s *Stage) locateDownload(track *library.Track) (string, error) {
	if track.TempPath != "" {
		if _, err := os.Stat(track.TempPath); err == nil {
			return track.TempPath, nil
		} else if !os.IsNotExist(err) {
			return "", services.Wrap(services.ErrStorage, "organize", "check download", track.TempPath, err)
		}
		return "", services.Wrap(services.ErrValidation, "organize", "locate download",
			fmt.Sprintf("downloaded file missing: %s", track.TempPath), nil)
	}

	candidates, err := fileutil.ListAudio(s.cfg.UnorganizedPath())
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "organize", "scan downloads", s.cfg.UnorganizedPath(), err)
	}
	want := textutil.NewFingerprint(track.Artist + " " + track.Title)
	best, score := "", 0.0
	for _, path := range candidates {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		similarity := textutil.CosineSimilarity(want, textutil.NewFingerprint(name))
		if similarity > score {
			best, score = path, similarity
		}
	}
	if best == "" || score < matchThreshold {
		return "", services.Wrap(services.ErrValidation, "organize", "locate download",
			fmt.Sprintf("no file in %s matches %q by %q", s.cfg.UnorganizedPath(), track.Title, track.Artist), nil)
	}
	return best, nil
}

// findOrganizedFile picks the file Picard produced: new files first, a
// fingerprint match to break ties.
func (s *Stage) findOrganizedFile(track *library.Track, before map[string]bool) (string, error) {
	created, err := fileutil.NewSince(s.cfg.OrganizedPath(), before)
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "organize", "scan library", s.cfg.OrganizedPath(), err)
	}
	switch len(created) {
	case 0:
		return "", services.Wrap(services.ErrValidation, "organize", "locate result",
			fmt.Sprintf("picard produced no new file under %s", s.cfg.OrganizedPath()), nil)
	case 1:
		return created[0], nil
	}
	want := textutil.NewFingerprint(track.Artist + " " + track.Title)
	best, score := created[0], -1.0
	for _, path := range created {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		similarity := textutil.CosineSimilarity(want, textutil.NewFingerprint(name))
		if similarity > score {
			best, score = path, similarity
		}
	}
	return best, nil
}
