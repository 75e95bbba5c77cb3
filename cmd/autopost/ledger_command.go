package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show videos already published and excluded from future runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			videos, err := st.UsedVideos(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("load ledger: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(videos) == 0 {
				fmt.Fprintln(out, "Ledger is empty")
				return nil
			}

			rows := make([][]string, 0, len(videos))
			for _, video := range videos {
				rows = append(rows, []string{
					video.UsedAt.Local().Format(time.DateTime),
					video.Identity,
					video.Path,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Used At", "Identity", "Path"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum ledger entries to show")
	return cmd
}
