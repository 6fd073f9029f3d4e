package services

import "context"

type contextKey string

const (
	trackIDKey   contextKey = "track_id"
	trackURIKey  contextKey = "track_uri"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// WithTrackID annotates context with the track row identifier.
func WithTrackID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, trackIDKey, id)
}

// TrackIDFromContext extracts the track row identifier if present.
func TrackIDFromContext(ctx context.Context) (int64, bool) {
	switch val := ctx.Value(trackIDKey).(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithTrackURI annotates context with the streaming-catalog track URI.
func WithTrackURI(ctx context.Context, uri string) context.Context {
	if uri == "" {
		return ctx
	}
	return context.WithValue(ctx, trackURIKey, uri)
}

// TrackURIFromContext returns the track URI if present.
func TrackURIFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(trackURIKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
