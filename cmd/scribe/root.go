package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/logging"
)

var version = "dev"

type cliContext struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCommand() *cobra.Command {
	cli := &cliContext{}

	root := &cobra.Command{
		Use:           "scribe",
		Short:         "Audio transcription pipeline",
		Long:          "scribe transcribes uploaded audio, segments and embeds the transcript, and serves semantic search over the result.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.load()
		},
	}
	root.PersistentFlags().StringVar(&cli.configPath, "config", config.DefaultConfigPath(), "path to the configuration file")

	root.AddCommand(
		newDaemonCommand(cli),
		newEnqueueCommand(cli),
		newQueueCommand(cli),
		newSearchCommand(cli),
		newConfigCommand(cli),
		newVersionCommand(),
	)
	return root
}

// load resolves configuration once for every command. Full validation
// happens at daemon startup; management commands only need paths.
func (c *cliContext) load() error {
	cfg, _, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// ensureLogger builds the logger on first use; only daemon mode writes
// log files.
func (c *cliContext) ensureLogger() (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	logger, err := logging.NewFromConfig(c.cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}
	c.logger = logger
	return logger, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the scribe version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scribe %s\n", version)
		},
	}
}
