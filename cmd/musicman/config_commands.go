package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Beau253/MusicManager/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigPathCommand(ctx))
	cmd.AddCommand(newConfigShowCommand(ctx))
	cmd.AddCommand(newConfigCheckCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write a commented sample configuration",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "~/.config/musicman/config.toml"
			if len(args) == 1 {
				target = args[0]
			}
			path, err := config.ExpandPath(target)
			if err != nil {
				return err
			}
			if _, statErr := os.Stat(path); statErr == nil && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "config already exists at %s (use --force to overwrite)\n", path)
				return nil
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote sample config to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}

func newConfigPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the resolved configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			if ctx.configPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "(built-in defaults; no config file found)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), ctx.configPath)
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows := [][]string{
				{"music_root", cfg.Main.MusicRoot},
				{"unorganized_dir", cfg.UnorganizedPath()},
				{"organized_dir", cfg.OrganizedPath()},
				{"playlist_dir", cfg.PlaylistPath()},
				{"database", cfg.DatabasePath()},
				{"download_format", cfg.Downloader.Format},
				{"daily_track_limit", fmt.Sprintf("%d", cfg.Downloader.DailyTrackLimit)},
				{"spotify_configured", yesNo(cfg.Spotify.ClientID != "" && cfg.Spotify.ClientSecret != "")},
				{"lidarr_configured", yesNo(cfg.Lidarr.URL != "")},
				{"plex_sync", yesNo(cfg.Features.PlexSyncEnabled)},
				{"playlists", yesNo(cfg.Features.PlaylistsEnabled)},
				{"api_bind", cfg.Server.Bind},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{{header: "Setting"}, {header: "Value"}}, rows))
			return nil
		},
	}
}

func newConfigCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				var verr *config.ValidationError
				if errors.As(err, &verr) {
					for _, problem := range verr.Problems {
						fmt.Fprintf(cmd.OutOrStdout(), "problem: %s\n", problem)
					}
				}
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration ok")
			return nil
		},
	}
}
