package main

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"scribe/internal/config"
)

func newConfigCommand(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Write a commented sample configuration file",
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := config.WriteSample(cli.configPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				rendered, err := toml.Marshal(cli.cfg)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(rendered)
				return err
			},
		},
	)
	return cmd
}
