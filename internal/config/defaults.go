package config

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		Main: Main{
			MusicRoot:      "~/Music",
			UnorganizedDir: "downloads",
			OrganizedDir:   "library",
			PlaylistDir:    "playlists",
			StateDir:       "~/.local/share/musicman",
		},
		Spotify: Spotify{},
		Downloader: Downloader{
			Binary:          "onthespot-cli",
			Format:          "m4a",
			DailyTrackLimit: 75,
			MinDelaySeconds: 3,
			MaxDelaySeconds: 7,
			TimeoutSeconds:  600,
		},
		Picard: Picard{
			Binary:         "picard",
			TimeoutSeconds: 300,
		},
		Plex: Plex{
			LibraryName: "Music",
		},
		Features: Features{
			PlaylistsEnabled: true,
			PlexSyncEnabled:  false,
		},
		Server: Server{
			Bind: "127.0.0.1:7788",
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
