package testsupport

import (
	"context"
	"fmt"
	"testing"

	"github.com/Beau253/MusicManager/internal/config"
	"github.com/Beau253/MusicManager/internal/library"
)

// MustOpenStore opens a library.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *library.Store {
	t.Helper()

	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// QueueTrack inserts a fresh track for tests and fails on duplicates.
func QueueTrack(t testing.TB, store *library.Store, uri, title, artist string) *library.Track {
	t.Helper()

	result, err := store.Queue(context.Background(), uri, title, artist, "", "")
	if err != nil {
		t.Fatalf("store.Queue: %v", err)
	}
	if !result.Added {
		t.Fatalf("track %s unexpectedly already queued", uri)
	}
	return result.Track
}

// AdvanceTrack walks a track through the given statuses in order.
func AdvanceTrack(t testing.TB, store *library.Store, id int64, statuses ...library.Status) {
	t.Helper()

	for _, status := range statuses {
		if err := store.UpdateStatus(context.Background(), id, status, ""); err != nil {
			t.Fatalf("advance to %s: %v", status, err)
		}
	}
}

// UniqueURI builds a distinct track URI for table-driven tests.
func UniqueURI(n int) string {
	return fmt.Sprintf("spotify:track:%022d", n)
}
