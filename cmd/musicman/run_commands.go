package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Beau253/MusicManager/internal/app"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download queued tracks up to the daily quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedApp(cmd.Context(), func(application *app.App) error {
				summary, err := application.Downloader().Run(cmd.Context(), limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"downloaded %d, failed %d, skipped %d (quota remaining %d)\n",
					summary.Downloaded, summary.Failed, summary.Skipped, summary.Remaining)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum tracks this run (0 = quota)")
	return cmd
}

func newOrganizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "organize",
		Short: "Tag downloaded tracks and move them into the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedApp(cmd.Context(), func(application *app.App) error {
				summary, err := application.Organizer().Run(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "organized %d, failed %d\n",
					summary.Organized, summary.Failed)
				return nil
			})
		},
	}
}

// newRunCommand chains the full pipeline: sync playlists into the
// queue, download, organize, then regenerate playlist files.
func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipSync bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedApp(cmd.Context(), func(application *app.App) error {
				out := cmd.OutOrStdout()
				if !skipSync {
					reports, err := application.SyncAllPlaylists(cmd.Context())
					if err != nil {
						return err
					}
					for _, report := range reports {
						fmt.Fprintf(out, "synced %q: %d new of %d tracks\n",
							report.Playlist, report.Added, report.Total)
					}
				}

				download, err := application.Downloader().Run(cmd.Context(), 0)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "downloaded %d, failed %d, skipped %d\n",
					download.Downloaded, download.Failed, download.Skipped)

				organize, err := application.Organizer().Run(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "organized %d, failed %d\n", organize.Organized, organize.Failed)

				results, err := application.Playlists().GenerateAll(cmd.Context())
				if err != nil {
					return err
				}
				for _, result := range results {
					fmt.Fprintf(out, "playlist %q: %d/%d tracks -> %s\n",
						result.Name, result.Resolved, result.Total, result.Path)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&skipSync, "skip-sync", false, "Skip queueing tracks from configured playlists")
	return cmd
}
