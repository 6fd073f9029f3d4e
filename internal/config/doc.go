// Package config loads, validates, and normalizes the MusicManager
// configuration file.
//
// Configuration lives in a single TOML file. Secrets (Spotify credentials,
// the Plex token, the Lidarr API key) may instead be supplied through the
// environment; the overlay happens exactly once inside Load so components
// never consult the environment themselves.
package config
