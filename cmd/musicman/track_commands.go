package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Beau253/MusicManager/internal/app"
	"github.com/Beau253/MusicManager/internal/library"
)

func newTracksCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracks",
		Short: "Inspect and manage the track queue",
	}
	cmd.AddCommand(newTracksListCommand(ctx))
	cmd.AddCommand(newTracksShowCommand(ctx))
	cmd.AddCommand(newTracksRemoveCommand(ctx))
	cmd.AddCommand(newTracksResetCommand(ctx))
	cmd.AddCommand(newTracksVerifyCommand(ctx))
	return cmd
}

func newTracksListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracks, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				statuses, err := parseStatuses(statusFilter)
				if err != nil {
					return err
				}
				if len(statuses) == 0 {
					statuses = library.AllStatuses()
				}
				tracks, err := application.Store.ByStatus(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(tracks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no tracks")
					return nil
				}
				rows := make([][]string, 0, len(tracks))
				for _, track := range tracks {
					rows = append(rows, []string{
						strconv.FormatInt(track.ID, 10),
						track.Title,
						track.Artist,
						string(track.Status),
						humanize.Time(track.UpdatedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
					{header: "ID", alignRight: true},
					{header: "Title"},
					{header: "Artist"},
					{header: "Status"},
					{header: "Updated"},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statusFilter, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newTracksShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one track with its recorded metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid track id %q", args[0])
			}
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				details, err := application.Store.GetDetails(cmd.Context(), id)
				if err != nil {
					return err
				}
				if details == nil {
					return fmt.Errorf("track %d not found", id)
				}
				track := details.Track
				rows := [][]string{
					{"ID", strconv.FormatInt(track.ID, 10)},
					{"URI", track.SpotifyURI},
					{"Title", track.Title},
					{"Artist", track.Artist},
					{"Album", track.Album},
					{"Playlist", track.PlaylistName},
					{"Status", string(track.Status)},
					{"Added", humanize.Time(track.CreatedAt)},
					{"Updated", humanize.Time(track.UpdatedAt)},
				}
				if track.ErrorMessage != "" {
					rows = append(rows, []string{"Error", track.ErrorMessage})
				}
				if track.FailCount > 0 {
					rows = append(rows, []string{"Failures", strconv.Itoa(track.FailCount)})
				}
				if track.FinalPath != "" {
					rows = append(rows, []string{"Library Path", track.FinalPath})
				}
				if track.MonitorStatus != library.MonitorUnknown {
					rows = append(rows, []string{"Lidarr", string(track.MonitorStatus)})
				}
				if meta := details.Metadata; meta != nil {
					rows = append(rows,
						[]string{"Tagged Title", meta.TaggedTitle},
						[]string{"Tagged Artist", meta.TaggedArtist},
						[]string{"Tagged Album", meta.TaggedAlbum},
						[]string{"Recording ID", meta.RecordingID},
						[]string{"Release ID", meta.ReleaseID},
						[]string{"Quality", meta.Quality},
						[]string{"Path", meta.OrganizedPath},
					)
					if meta.TaggedAlbumArtist != "" {
						rows = append(rows, []string{"Album Artist", meta.TaggedAlbumArtist})
					}
					if meta.TaggedGenre != "" {
						rows = append(rows, []string{"Genre", meta.TaggedGenre})
					}
					if meta.TaggedDate != "" {
						rows = append(rows, []string{"Released", meta.TaggedDate})
					}
					if meta.TrackNumber > 0 {
						position := strconv.Itoa(meta.TrackNumber)
						if meta.DiscNumber > 0 {
							position = fmt.Sprintf("%d-%s", meta.DiscNumber, position)
						}
						rows = append(rows, []string{"Position", position})
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]column{{header: "Field"}, {header: "Value"}}, rows))
				return nil
			})
		},
	}
}

func newTracksRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a track and its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid track id %q", args[0])
			}
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				removed, err := application.Store.Remove(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("track %d not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed track %d\n", id)
				return nil
			})
		},
	}
}

func newTracksResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <id>",
		Short: "Send a track back to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid track id %q", args[0])
			}
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				reset, err := application.Store.ResetStatus(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !reset {
					fmt.Fprintf(cmd.OutOrStdout(), "track %d is not in a failed state; nothing to reset\n", id)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "track %d requeued\n", id)
				return nil
			})
		},
	}
}

func newTracksVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that organized tracks still exist on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				organized, err := application.Store.ByStatus(cmd.Context(), library.StatusOrganized)
				if err != nil {
					return err
				}
				present, missing := 0, 0
				var gone [][]string
				for _, track := range organized {
					presence := library.PresencePresent
					if !application.Config.OrganizedFileExists(track.FinalPath) {
						presence = library.PresenceMissing
					}
					if err := application.Store.MarkLibraryPresence(cmd.Context(), track.ID, presence); err != nil {
						return err
					}
					if presence == library.PresenceMissing {
						missing++
						gone = append(gone, []string{
							strconv.FormatInt(track.ID, 10),
							track.Title,
							track.Artist,
							track.FinalPath,
						})
					} else {
						present++
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "verified %d tracks: %d present, %d missing\n",
					len(organized), present, missing)
				if len(gone) > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
						{header: "ID", alignRight: true},
						{header: "Title"},
						{header: "Artist"},
						{header: "Path"},
					}, gone))
				}
				return nil
			})
		},
	}
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var title, artist, album string
	cmd := &cobra.Command{
		Use:   "add <spotify-uri>",
		Short: "Queue a single track by Spotify URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := strings.TrimSpace(args[0])
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				result, err := application.Store.Queue(cmd.Context(), uri, title, artist, album, "")
				if err != nil {
					return err
				}
				if !result.Added {
					fmt.Fprintf(cmd.OutOrStdout(), "not added: %s\n", result.Reason)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued track %d (%s)\n", result.Track.ID, uri)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Track title")
	cmd.Flags().StringVar(&artist, "artist", "", "Track artist")
	cmd.Flags().StringVar(&album, "album", "", "Track album")
	return cmd
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statusFilter []string
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search queued tracks by title, artist, or album",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := strings.Join(args, " ")
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				statuses, err := parseStatuses(statusFilter)
				if err != nil {
					return err
				}
				tracks, err := application.Store.Search(cmd.Context(), term, limit, statuses...)
				if err != nil {
					return err
				}
				if len(tracks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no matches")
					return nil
				}
				rows := make([][]string, 0, len(tracks))
				for _, track := range tracks {
					rows = append(rows, []string{
						strconv.FormatInt(track.ID, 10),
						track.Title,
						track.Artist,
						track.Album,
						string(track.Status),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{
					{header: "ID", alignRight: true},
					{header: "Title"},
					{header: "Artist"},
					{header: "Album"},
					{header: "Status"},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum results")
	cmd.Flags().StringSliceVar(&statusFilter, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue counts and today's quota",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				stats, err := application.Store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				remaining, err := application.Quota.Remaining(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(stats)+2)
				total := 0
				for _, status := range library.AllStatuses() {
					count, ok := stats[status]
					if !ok {
						continue
					}
					total += count
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}
				rows = append(rows, []string{"total", strconv.Itoa(total)})
				rows = append(rows, []string{"quota remaining today",
					fmt.Sprintf("%d of %d", remaining, application.Quota.Limit())})
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]column{{header: "Status"}, {header: "Tracks", alignRight: true}}, rows))
				return nil
			})
		},
	}
}

func newResetFailedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-failed",
		Short: "Requeue every failed track",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(application *app.App) error {
				count, err := application.Store.ResetAllFailed(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %d failed tracks\n", count)
				return nil
			})
		},
	}
}

func parseStatuses(raw []string) ([]library.Status, error) {
	var statuses []library.Status
	for _, value := range raw {
		status, ok := library.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
