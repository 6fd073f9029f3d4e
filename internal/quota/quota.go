// Package quota enforces the daily download ceiling. Usage counts live in
// the track database so restarts and crashes never reset the day's spend.
package quota

import (
	"context"
	"time"

	"github.com/Beau253/MusicManager/internal/services"
)

// Usage is the persistence surface the tracker needs. *library.Store
// satisfies it.
type Usage interface {
	QuotaUsed(ctx context.Context, day string) (int, error)
	AddQuotaUsage(ctx context.Context, day string, n int) error
}

// Tracker answers "may I download another track today" against a hard
// daily limit.
type Tracker struct {
	usage Usage
	limit int
	now   func() time.Time
}

// Option customizes tracker construction.
type Option func(*Tracker)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker builds a tracker over the given usage store.
func NewTracker(usage Usage, dailyLimit int, opts ...Option) (*Tracker, error) {
	if usage == nil {
		return nil, services.Wrap(services.ErrConfiguration, "quota", "new", "usage store is required", nil)
	}
	if dailyLimit <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "quota", "new", "daily limit must be positive", nil)
	}
	tracker := &Tracker{usage: usage, limit: dailyLimit, now: time.Now}
	for _, opt := range opts {
		opt(tracker)
	}
	return tracker, nil
}

// DayKey formats a timestamp as the calendar-day bucket used for
// accounting. Days roll over at local midnight.
func DayKey(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

// Limit returns the configured daily ceiling.
func (t *Tracker) Limit() int {
	return t.limit
}

// Remaining reports how many downloads are still allowed today. Never
// negative.
func (t *Tracker) Remaining(ctx context.Context) (int, error) {
	used, err := t.usage.QuotaUsed(ctx, DayKey(t.now()))
	if err != nil {
		return 0, err
	}
	remaining := t.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Allow reports whether another download may start today.
func (t *Tracker) Allow(ctx context.Context) (bool, error) {
	remaining, err := t.Remaining(ctx)
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}

// RecordSuccess counts one completed download against today's quota. The
// count is durable before the call returns.
func (t *Tracker) RecordSuccess(ctx context.Context) error {
	return t.usage.AddQuotaUsage(ctx, DayKey(t.now()), 1)
}
