package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/orbit/internal/platform"
)

func newAppsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "List installed applications visible to plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			apps := platform.New(platform.Config{
				Dirs:      a.cfg.Apps.Dirs,
				CacheSize: a.cfg.Apps.CacheSize,
				CacheTTL:  a.cfg.Apps.CacheTTL,
			}, a.log)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, info := range apps.Applications() {
				fmt.Fprintf(w, "%s\t%s\n", info.Name, info.ID)
			}
			return w.Flush()
		},
	}
}
