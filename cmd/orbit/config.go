package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/orbit/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration as TOML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				data, err := a.cfg.Encode()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path := a.opts.configPath
				if path == "" {
					dir, err := config.Dir()
					if err != nil {
						return err
					}
					path = filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
	)
	return cmd
}
