package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/orbit/internal/plugin"
)

func newListCommand(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available commands",
		Long: `List the commands provided by every plugin that loaded successfully.
With --all, every discovered plugin file is listed with its load state and
the error of those that failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.headless(cmd.Context(), func(ctx context.Context, h *plugin.Host) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				if all {
					if err := h.Registry().Wait(ctx); err != nil {
						return err
					}
					writeStates(w, h.Registry().States())
				} else {
					for _, meta := range h.Registry().ListMetadataAsync(ctx) {
						fmt.Fprintf(w, "%s\t%s\t%s\n", meta.ID, meta.Title, meta.Subtitle)
					}
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include plugins that failed to load")
	return cmd
}

func writeStates(w *tabwriter.Writer, states []plugin.EntryStatus) {
	fmt.Fprintln(w, "STATE\tID\tFILE\tERROR")
	for _, st := range states {
		id, errText := "-", ""
		if st.State == plugin.StateReady {
			id = st.Metadata.ID
		}
		if st.Err != nil {
			errText = strings.ReplaceAll(st.Err.Error(), "\n", " ")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", st.State, id, filepath.Base(st.Path), errText)
	}
}
