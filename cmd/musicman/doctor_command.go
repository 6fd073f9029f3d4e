package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Beau253/MusicManager/internal/deps"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the external tools are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := deps.Check(deps.Requirements(cfg))
			rows := make([][]string, 0, len(results))
			missing := 0
			for _, status := range results {
				detail := status.Detail
				if status.Available {
					detail = "ok"
				} else {
					missing++
				}
				rows = append(rows, []string{status.Name, status.Command, detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{{header: "Tool"}, {header: "Command"}, {header: "Status"}}, rows))
			if missing > 0 {
				return fmt.Errorf("%d required tool(s) missing", missing)
			}
			return nil
		},
	}
}
