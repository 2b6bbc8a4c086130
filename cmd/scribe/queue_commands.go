package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"scribe/internal/queue"
)

func newQueueCommand(cli *cliContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}
	cmd.AddCommand(
		newQueueListCommand(cli),
		newQueueStatusCommand(cli),
		newQueueRetryCommand(cli),
		newQueueClearCommand(cli),
	)
	return cmd
}

func openQueue(cli *cliContext) (*queue.Store, error) {
	return queue.Open(cli.cfg)
}

func newQueueListCommand(cli *cliContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openQueue(cli)
			if err != nil {
				return err
			}
			defer store.Close()

			var statuses []queue.Status
			if statusFilter != "" {
				status, ok := queue.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown status %q", statusFilter)
				}
				statuses = append(statuses, status)
			}

			jobs, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"ID", "Transcript", "User", "Status", "Attempts", "Updated", "Message"})
			for _, job := range jobs {
				message := job.ProgressMessage
				if job.ErrorMessage != "" {
					message = job.ErrorMessage
				}
				t.AppendRow(table.Row{
					job.ID,
					job.TranscriptID,
					job.UserID,
					job.Status,
					job.Attempts,
					job.UpdatedAt.Local().Format(time.RFC3339),
					message,
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&statusFilter, "status", "", "filter by status (enqueued, processing, completed, failed)")
	return cmd
}

func newQueueStatusCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openQueue(cli)
			if err != nil {
				return err
			}
			defer store.Close()

			health, err := store.Health(cmd.Context())
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Total", "Enqueued", "Processing", "Completed", "Failed"})
			t.AppendRow(table.Row{health.Total, health.Enqueued, health.Processing, health.Completed, health.Failed})
			t.Render()
			return nil
		},
	}
}

func newQueueRetryCommand(cli *cliContext) *cobra.Command {
	var jobIDs []int64

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Requeue failed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openQueue(cli)
			if err != nil {
				return err
			}
			defer store.Close()

			retried, err := store.RetryFailed(cmd.Context(), jobIDs...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d job(s)\n", retried)
			return nil
		},
	}
	cmd.Flags().Int64SliceVar(&jobIDs, "id", nil, "job ids to retry (default: all failed)")
	return cmd
}

func newQueueClearCommand(cli *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove completed jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openQueue(cli)
			if err != nil {
				return err
			}
			defer store.Close()

			cleared, err := store.ClearCompleted(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d completed job(s)\n", cleared)
			return nil
		},
	}
}
