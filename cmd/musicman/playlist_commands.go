package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Beau253/MusicManager/internal/app"
)

func newPlaylistCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlist",
		Short: "Sync and materialize Spotify playlists",
	}
	cmd.AddCommand(newPlaylistSyncCommand(ctx))
	cmd.AddCommand(newPlaylistGenerateCommand(ctx))
	return cmd
}

func newPlaylistSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [playlist-url-or-id...]",
		Short: "Queue every track of the given playlists (default: configured ones)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				refs := args
				if len(refs) == 0 {
					refs = application.Config.Spotify.PlaylistURLs
				}
				if len(refs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no playlists configured")
					return nil
				}
				for _, ref := range refs {
					report, err := application.SyncPlaylist(cmd.Context(), ref)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "synced %q: %d new of %d tracks\n",
						report.Playlist, report.Added, report.Total)
				}
				return nil
			})
		},
	}
}

func newPlaylistGenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Write m3u files for the configured playlists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				results, err := application.Playlists().GenerateAll(cmd.Context())
				if err != nil {
					return err
				}
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no playlists generated")
					return nil
				}
				for _, result := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d tracks -> %s\n",
						result.Name, result.Resolved, result.Total, result.Path)
				}
				return nil
			})
		},
	}
}
