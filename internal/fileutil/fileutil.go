// Package fileutil holds the filesystem walking shared by the pipeline
// stages: finding audio files under a directory and spotting what an
// external tool created there.
package fileutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var audioExtensions = map[string]bool{
	".m4a":  true,
	".mp3":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
}

// IsAudio reports whether the path carries a recognized audio extension.
func IsAudio(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// ListAudio walks dir and returns every audio file beneath it. A missing
// directory yields an empty list, not an error.
func ListAudio(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if IsAudio(path) {
			files = append(files, path)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	return files, err
}

// Snapshot records the audio files currently under dir as a set.
func Snapshot(dir string) (map[string]bool, error) {
	files, err := ListAudio(dir)
	if err != nil {
		return nil, err
	}
	snapshot := make(map[string]bool, len(files))
	for _, path := range files {
		snapshot[path] = true
	}
	return snapshot, nil
}

// NewSince returns the audio files under dir that were not in the before
// snapshot. External tools are run between a Snapshot and a NewSince call
// to learn what they produced.
func NewSince(dir string, before map[string]bool) ([]string, error) {
	after, err := ListAudio(dir)
	if err != nil {
		return nil, err
	}
	var created []string
	for _, path := range after {
		if !before[path] {
			created = append(created, path)
		}
	}
	return created, nil
}

// RemoveIfPresent deletes a file, treating an already-gone file as success.
func RemoveIfPresent(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
