package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Beau253/MusicManager/internal/app"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLockedApp(cmd.Context(), func(application *app.App) error {
				srv, err := application.Serve(cmd.Context())
				if err != nil {
					return err
				}
				defer srv.Stop()
				fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", srv.Addr())
				<-cmd.Context().Done()
				return nil
			})
		},
	}
}
