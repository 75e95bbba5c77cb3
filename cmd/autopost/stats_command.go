package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"autopost/internal/config"
	"autopost/internal/media"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show monthly published counts per brand against their quotas",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			months, err := st.BrandMonths(cmd.Context())
			if err != nil {
				return fmt.Errorf("load brand stats: %w", err)
			}
			if month != "" {
				filtered := months[:0]
				for _, bm := range months {
					if bm.Month == month {
						filtered = append(filtered, bm)
					}
				}
				months = filtered
			}

			out := cmd.OutOrStdout()
			if len(months) == 0 {
				fmt.Fprintln(out, "No published posts recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(months))
			for _, bm := range months {
				rows = append(rows, []string{
					bm.Month,
					bm.Brand,
					strconv.Itoa(bm.Published),
					quotaLabel(cfg, bm.Brand),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Month", "Brand", "Published", "Quota"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&month, "month", "m", "", `Restrict to one month ("2006-01")`)
	return cmd
}

func quotaLabel(cfg *config.Config, brand string) string {
	if b, ok := cfg.BrandByKey(media.NormalizeKey(brand)); ok && b.Quota > 0 {
		return strconv.Itoa(b.Quota)
	}
	return "-"
}
