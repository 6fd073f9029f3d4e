package library

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Beau253/MusicManager/internal/services"
)

// QuotaUsed returns the number of downloads recorded for a calendar day.
// Days use the key format produced by quota.DayKey; the store treats them
// as opaque strings.
func (s *Store) QuotaUsed(ctx context.Context, day string) (int, error) {
	var used int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT used FROM quota_usage WHERE day = ?", day).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "library", "quota", "read usage", err)
	}
	return used, nil
}

// AddQuotaUsage increments the recorded download count for a day. The write
// is durable before the call returns; a crash never forgets a counted
// download.
func (s *Store) AddQuotaUsage(ctx context.Context, day string, n int) error {
	if n <= 0 {
		return nil
	}
	err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO quota_usage (day, used) VALUES (?, ?)
         ON CONFLICT(day) DO UPDATE SET used = used + excluded.used`,
		day, n)
	if err != nil {
		return services.Wrap(services.ErrStorage, "library", "quota", "record usage", err)
	}
	return nil
}
