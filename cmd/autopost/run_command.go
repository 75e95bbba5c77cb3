package main

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"autopost/internal/daemon"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one full cycle: allocate, persist, and publish due posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			// Same lock the daemon holds, so a manual run never overlaps a
			// scheduled one.
			lock := flock.New(daemon.LockFilePath(cfg))
			held, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !held {
				return errors.New("another autopost run is already in progress")
			}
			defer lock.Unlock() //nolint:errcheck

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
			summary, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s finished\n", summary.RunID)
			fmt.Fprintf(out, "  videos listed:   %d\n", summary.Listed)
			fmt.Fprintf(out, "  posts allocated: %d\n", summary.Allocated)
			fmt.Fprintf(out, "  due today:       %d\n", summary.Dispatch.Due)
			fmt.Fprintf(out, "  published:       %d\n", summary.Dispatch.Published)
			fmt.Fprintf(out, "  failed:          %d\n", summary.Dispatch.Failed)
			fmt.Fprintf(out, "  sources deleted: %d\n", summary.Dispatch.Deleted)
			return nil
		},
	}
}
