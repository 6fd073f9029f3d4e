// Package server exposes the track library and pipeline stages over a
// small JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Beau253/MusicManager/internal/config"
	"github.com/Beau253/MusicManager/internal/downloader"
	"github.com/Beau253/MusicManager/internal/library"
	"github.com/Beau253/MusicManager/internal/logging"
	"github.com/Beau253/MusicManager/internal/organizer"
	"github.com/Beau253/MusicManager/internal/playlist"
	"github.com/Beau253/MusicManager/internal/services"
)

// DownloadRunner runs one acquisition pass.
type DownloadRunner interface {
	Run(ctx context.Context, limit int) (downloader.Summary, error)
}

// OrganizeRunner runs one organization pass.
type OrganizeRunner interface {
	Run(ctx context.Context) (organizer.Summary, error)
}

// PlaylistGenerator materializes the configured playlists.
type PlaylistGenerator interface {
	GenerateAll(ctx context.Context) ([]playlist.Result, error)
}

// PlaylistSyncer queues a Spotify playlist's tracks.
type PlaylistSyncer interface {
	SyncPlaylist(ctx context.Context, ref string) (*SyncReport, error)
}

// SyncReport summarizes queueing one playlist.
type SyncReport struct {
	Playlist string `json:"playlist"`
	Added    int    `json:"added"`
	Total    int    `json:"total"`
}

// Server serves the HTTP API over the configured bind address.
type Server struct {
	cfg    *config.Config
	store  *library.Store
	logger *slog.Logger

	download  DownloadRunner
	organize  OrganizeRunner
	playlists PlaylistGenerator
	syncer    PlaylistSyncer

	listener net.Listener
	server   *http.Server
}

// Options carries the optional collaborators; any may be nil, which
// disables the matching endpoints with 503.
type Options struct {
	Download  DownloadRunner
	Organize  OrganizeRunner
	Playlists PlaylistGenerator
	Syncer    PlaylistSyncer
}

// New builds a server around the store and whatever stage runners the
// caller wired.
func New(cfg *config.Config, store *library.Store, logger *slog.Logger, opts Options) (*Server, error) {
	if cfg == nil || store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "server", "new", "missing dependency", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	srv := &Server{
		cfg:       cfg,
		store:     store,
		logger:    logger.With(logging.String(logging.FieldComponent, "server")),
		download:  opts.Download,
		organize:  opts.Organize,
		playlists: opts.Playlists,
		syncer:    opts.Syncer,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Handler exposes the routed handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware(s.cfg.Server.Token, next)
	}
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/stats", auth(s.handleStats))
	mux.HandleFunc("/api/tracks", auth(s.handleTracks))
	mux.HandleFunc("/api/tracks/", auth(s.handleTrack))
	mux.HandleFunc("/api/search", auth(s.handleSearch))
	mux.HandleFunc("/api/reset-failed", auth(s.handleResetFailed))
	mux.HandleFunc("/api/run/download", auth(s.handleRunDownload))
	mux.HandleFunc("/api/run/organize", auth(s.handleRunOrganize))
	mux.HandleFunc("/api/playlists/generate", auth(s.handleGeneratePlaylists))
	mux.HandleFunc("/api/playlists/sync", auth(s.handleSyncPlaylist))
	return s.withRequestID(mux)
}

// withRequestID tags every request with an id that flows through the
// context into log lines.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

// Start begins serving and returns once the listener is bound. The
// server shuts down when ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Server.Bind)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "server", "listen", s.cfg.Server.Bind, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr reports the bound address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, draining in-flight requests briefly.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.store.CheckHealth(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	counts := make(map[string]int, len(stats))
	total := 0
	for status, count := range stats {
		counts[string(status)] = count
		total += count
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total":    total,
		"statuses": counts,
	})
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTracks(w, r)
	case http.MethodPost:
		s.queueTrack(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listTracks(w http.ResponseWriter, r *http.Request) {
	var statuses []library.Status
	for _, value := range r.URL.Query()["status"] {
		status, ok := library.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, status)
	}
	if len(statuses) == 0 {
		statuses = library.AllStatuses()
	}
	tracks, err := s.store.ByStatus(r.Context(), statuses...)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tracks": trackPayloads(tracks)})
}

type queueRequest struct {
	URI      string `json:"uri"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Playlist string `json:"playlist"`
}

func (s *Server) queueTrack(w http.ResponseWriter, r *http.Request) {
	var req queueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.URI) == "" {
		s.writeError(w, http.StatusBadRequest, "uri is required")
		return
	}
	result, err := s.store.Queue(r.Context(), req.URI, req.Title, req.Artist, req.Album, req.Playlist)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	status := http.StatusCreated
	if !result.Added {
		status = http.StatusOK
	}
	s.writeJSON(w, status, map[string]any{
		"added":  result.Added,
		"reason": result.Reason,
		"track":  trackPayload(result.Track),
	})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tracks/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid track id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.describeTrack(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		s.removeTrack(w, r, id)
	case action == "reset" && r.Method == http.MethodPost:
		s.resetTrack(w, r, id)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) describeTrack(w http.ResponseWriter, r *http.Request, id int64) {
	details, err := s.store.GetDetails(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if details == nil {
		s.writeError(w, http.StatusNotFound, "track not found")
		return
	}
	payload := map[string]any{"track": trackPayload(&details.Track)}
	if details.Metadata != nil {
		payload["metadata"] = metadataPayload(details.Metadata)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) removeTrack(w http.ResponseWriter, r *http.Request, id int64) {
	removed, err := s.store.Remove(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "track not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"removed": true})
}

func (s *Server) resetTrack(w http.ResponseWriter, r *http.Request, id int64) {
	reset, err := s.store.ResetStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "track not found")
			return
		}
		s.writeStoreError(w, err)
		return
	}
	if !reset {
		s.writeError(w, http.StatusConflict, "track is not in a failed state")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": string(library.StatusQueued)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		s.writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	var statuses []library.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, ok := library.ParseStatus(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status "+strconv.Quote(raw))
			return
		}
		statuses = append(statuses, status)
	}
	tracks, err := s.store.Search(r.Context(), term, limit, statuses...)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tracks": trackPayloads(tracks)})
}

func (s *Server) handleResetFailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	count, err := s.store.ResetAllFailed(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"reset": count})
}

func (s *Server) handleRunDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.download == nil {
		s.writeError(w, http.StatusServiceUnavailable, "download stage not configured")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	summary, err := s.download.Run(r.Context(), limit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRunOrganize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.organize == nil {
		s.writeError(w, http.StatusServiceUnavailable, "organize stage not configured")
		return
	}
	summary, err := s.organize.Run(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGeneratePlaylists(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.playlists == nil {
		s.writeError(w, http.StatusServiceUnavailable, "playlist generation not configured")
		return
	}
	results, err := s.playlists.GenerateAll(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"playlists": results})
}

type syncRequest struct {
	Playlist string `json:"playlist"`
}

func (s *Server) handleSyncPlaylist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.syncer == nil {
		s.writeError(w, http.StatusServiceUnavailable, "spotify sync not configured")
		return
	}
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Playlist) == "" {
		s.writeError(w, http.StatusBadRequest, "playlist is required")
		return
	}
	report, err := s.syncer.SyncPlaylist(r.Context(), req.Playlist)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrValidation) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}
