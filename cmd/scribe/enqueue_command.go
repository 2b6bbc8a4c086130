package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/blobstore"
	"scribe/internal/ids"
	"scribe/internal/queue"
)

func newEnqueueCommand(cli *cliContext) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "enqueue <audio-file>",
		Short: "Upload an audio file and queue it for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" {
				return fmt.Errorf("--user is required")
			}

			audioPath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(audioPath)
			if err != nil {
				return fmt.Errorf("read audio file: %w", err)
			}

			blobs, err := blobstore.NewFSStore(cli.cfg.BlobDir())
			if err != nil {
				return err
			}
			store, err := queue.Open(cli.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			transcriptID := ids.NewTranscriptID()
			key := blobstore.AudioKey(userID, transcriptID)
			if err := blobs.Put(cmd.Context(), key, "audio/mpeg", data); err != nil {
				return fmt.Errorf("store audio: %w", err)
			}

			job, err := store.Enqueue(cmd.Context(), transcriptID, key, userID)
			if err != nil {
				return fmt.Errorf("enqueue job: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s as job %d (transcript %s)\n",
				filepath.Base(audioPath), job.ID, job.TranscriptID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owner of the transcription")
	return cmd
}
