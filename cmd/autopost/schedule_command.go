package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Preview the allocation without persisting or publishing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			st, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			runner := buildRunner(cfg, st, logger)
			scheduled, err := runner.Preview(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(scheduled) == 0 {
				fmt.Fprintln(out, "Nothing to schedule")
				return nil
			}

			rows := make([][]string, 0, len(scheduled))
			for _, sp := range scheduled {
				rows = append(rows, []string{
					sp.PublishAt.Format(time.DateTime),
					sp.Profile,
					string(sp.Platform),
					sp.Brand,
					sp.Video.Name,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Publish At", "Profile", "Platform", "Brand", "Video"},
				rows,
				nil,
			))
			fmt.Fprintf(out, "%d posts would be scheduled\n", len(scheduled))
			return nil
		},
	}
}
