package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/dshills/orbit/internal/window"
)

func newUICommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Open the terminal launcher (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUI(cmd.Context(), a)
		},
	}
}

func runUI(ctx context.Context, a *app) error {
	// The screen owns stderr from here on.
	if a.opts.logFile == "" {
		f, err := os.OpenFile(defaultLogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		a.logCloser = f
		a.log.SetOutput(f)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("creating screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initializing screen: %w", err)
	}
	defer screen.Fini()

	h, err := a.newHost(ctx)
	if err != nil {
		return err
	}
	defer a.closeHost(h)

	return window.NewLauncher(screen, h, a.log).Run(ctx)
}
