package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Beau253/MusicManager/internal/app"
	"github.com/Beau253/MusicManager/internal/services/lidarr"
)

func newSpotifyCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spotify",
		Short: "Query the Spotify catalog",
	}
	cmd.AddCommand(newSpotifySearchCommand(ctx))
	cmd.AddCommand(newSpotifyPingCommand(ctx))
	return cmd
}

func newSpotifySearchCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var queue bool
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search Spotify for tracks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := strings.Join(args, " ")
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				client, err := application.Spotify()
				if err != nil {
					return err
				}
				tracks, err := client.SearchTracks(cmd.Context(), term, limit)
				if err != nil {
					return err
				}
				if len(tracks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no results")
					return nil
				}
				rows := make([][]string, 0, len(tracks))
				for _, track := range tracks {
					rows = append(rows, []string{track.Title, track.Artist, track.Album, track.URI})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
					{header: "Title"},
					{header: "Artist"},
					{header: "Album"},
					{header: "URI"},
				}, rows))
				if !queue {
					return nil
				}
				for _, track := range tracks {
					result, err := application.Store.Queue(cmd.Context(),
						track.URI, track.Title, track.Artist, track.Album, "")
					if err != nil {
						return err
					}
					if result.Added {
						fmt.Fprintf(cmd.OutOrStdout(), "queued %s\n", track.URI)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum results")
	cmd.Flags().BoolVar(&queue, "queue", false, "Queue every result for download")
	return cmd
}

func newSpotifyPingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Verify the Spotify credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				client, err := application.Spotify()
				if err != nil {
					return err
				}
				if err := client.ValidateConnection(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "spotify ok")
				return nil
			})
		},
	}
}

func newLidarrCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lidarr",
		Short: "Query the configured Lidarr instance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Verify the Lidarr connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				client, err := application.Lidarr()
				if err != nil {
					return err
				}
				if err := client.Ping(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "lidarr ok")
				return nil
			})
		},
	})
	cmd.AddCommand(newLidarrAlbumCommand(ctx))
	return cmd
}

func newLidarrAlbumCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "album <artist> <album>",
		Short: "Check whether Lidarr already has an album",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				client, err := application.Lidarr()
				if err != nil {
					return err
				}
				status, err := client.GetAlbumStatus(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				switch status {
				case lidarr.AlbumOnDisk:
					fmt.Fprintln(cmd.OutOrStdout(), "on disk")
				case lidarr.AlbumMonitored:
					fmt.Fprintln(cmd.OutOrStdout(), "monitored, not on disk")
				default:
					fmt.Fprintln(cmd.OutOrStdout(), "unknown to lidarr")
				}
				return nil
			})
		},
	}
}

func newPlexCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plex",
		Short: "Control the configured Plex server",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Verify the Plex connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				client, err := application.Plex()
				if err != nil {
					return err
				}
				if err := client.Ping(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "plex ok")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "scan",
		Short: "Trigger a scan of the configured music library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				client, err := application.Plex()
				if err != nil {
					return err
				}
				library := application.Config.Plex.LibraryName
				if err := client.ScanLibrary(cmd.Context(), library); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "scan triggered for %q\n", library)
				return nil
			})
		},
	})
	return cmd
}
