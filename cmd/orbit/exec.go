package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/dshills/orbit/internal/plugin"
)

func newExecCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <id>",
		Short: "Run a command by id",
		Long: `Run the command with the given id and wait for it to finish.

Exits 2 when no loaded plugin provides the id and 1 when the command fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return a.headless(cmd.Context(), func(ctx context.Context, h *plugin.Host) error {
				err := h.Registry().RunAsync(ctx, id)
				switch {
				case err == nil:
					return nil
				case errors.Is(err, plugin.ErrCommandNotFound):
					return &ExitError{Code: exitNotFound, Err: err}
				default:
					return &ExitError{Code: exitError, Err: err}
				}
			})
		},
	}
}
