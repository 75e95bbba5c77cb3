package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"autopost/internal/config"
)

// profiles compares configured profiles with the accounts the publisher
// actually knows about.
func newProfilesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List configured profiles and their publisher registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			remote := map[string]bool{}
			names, err := publisherClient(cfg).Profiles(cmd.Context())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warn: publisher profile list unavailable: %v\n", err)
			}
			for _, name := range names {
				remote[name] = true
			}

			profiles := append([]config.Profile(nil), cfg.Profiles...)
			sort.Slice(profiles, func(i, j int) bool { return profiles[i].Handle < profiles[j].Handle })

			rows := make([][]string, 0, len(profiles))
			for _, p := range profiles {
				registered := "-"
				if err == nil {
					registered = yesNo(remote[p.Handle])
				}
				rows = append(rows, []string{
					p.Handle,
					p.Theme,
					strings.Join(p.Platforms, ", "),
					yesNo(p.Enabled),
					registered,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Handle", "Theme", "Platforms", "Enabled", "Registered"},
				rows,
				nil,
			))
			return nil
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
