package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/retrieval"
	"scribe/internal/services/embed"
	"scribe/internal/transcriptstore"
)

func newSearchCommand(cli *cliContext) *cobra.Command {
	var window retrieval.Window

	cmd := &cobra.Command{
		Use:   "search <transcript-id> <query>",
		Short: "Search a transcription for relevant context",
		Long:  "Embeds the query, finds the most similar chunk of the transcription in Postgres, and prints it with its surrounding chunks.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			transcriptID := args[0]
			query := strings.Join(args[1:], " ")

			store, err := transcriptstore.NewPGStore(cmd.Context(), cli.cfg.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			embedder, err := embed.NewClient(cli.cfg.Embedding)
			if err != nil {
				return err
			}

			service := retrieval.NewService(store, embedder)
			result, err := service.Search(cmd.Context(), transcriptID, query, window)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, chunk := range result.Previous {
				fmt.Fprintf(out, "  [%d] %s\n", chunk.ChunkIndex, chunk.Text)
			}
			fmt.Fprintf(out, "* [%d] (%.3f) %s\n", result.Match.ChunkIndex, result.Match.Similarity, result.Match.Text)
			for _, chunk := range result.Next {
				fmt.Fprintf(out, "  [%d] %s\n", chunk.ChunkIndex, chunk.Text)
			}
			return nil
		},
	}

	defaults := retrieval.DefaultWindow()
	cmd.Flags().IntVar(&window.StartPrevious, "start-previous", defaults.StartPrevious, "previous chunks to skip next to the match")
	cmd.Flags().IntVar(&window.EndPrevious, "end-previous", defaults.EndPrevious, "how far back the previous window reaches")
	cmd.Flags().IntVar(&window.StartNext, "start-next", defaults.StartNext, "next chunks to skip next to the match")
	cmd.Flags().IntVar(&window.EndNext, "end-next", defaults.EndNext, "how far forward the next window reaches")
	return cmd
}
