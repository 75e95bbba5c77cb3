package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"autopost/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show posting history counts and upcoming posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			counts, err := st.StatusCounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("load status counts: %w", err)
			}

			out := cmd.OutOrStdout()
			countRows := make([][]string, 0, len(store.AllStatuses()))
			for _, status := range store.AllStatuses() {
				countRows = append(countRows, []string{string(status), strconv.Itoa(counts[status])})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Status", "Posts"},
				countRows,
				[]columnAlignment{alignLeft, alignRight},
			))

			upcoming, err := st.Posts(cmd.Context(), store.StatusQueued, store.StatusProcessing)
			if err != nil {
				return fmt.Errorf("load upcoming posts: %w", err)
			}
			if len(upcoming) == 0 {
				fmt.Fprintln(out, "No upcoming posts")
				return nil
			}
			if limit > 0 && len(upcoming) > limit {
				upcoming = upcoming[:limit]
			}

			rows := make([][]string, 0, len(upcoming))
			for _, post := range upcoming {
				rows = append(rows, []string{
					post.ScheduledAt.Local().Format(time.DateTime),
					post.Profile,
					post.Platform,
					string(post.Status),
					post.Brand,
					post.VideoPath,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Scheduled", "Profile", "Platform", "Status", "Brand", "Video"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum upcoming posts to show")
	return cmd
}

func newClearFailedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Remove failed posts from the history",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			removed, err := st.ClearFailed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d failed posts\n", removed)
			return nil
		},
	}
}
