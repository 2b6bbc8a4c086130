package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scribe/internal/daemon"
)

func newDaemonCommand(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the transcription daemon",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger, err := cli.ensureLogger()
			if err != nil {
				return err
			}
			d, err := daemon.New(ctx, cli.cfg, logger)
			if err != nil {
				return err
			}
			return d.Run(ctx)
		},
	})
	return cmd
}
