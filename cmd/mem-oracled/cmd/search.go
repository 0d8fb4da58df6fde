package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JagjeevanAK/mem-oracle/internal/engine"
)

func newSearchCmd() *cobra.Command {
	var topK int
	var docsetIDs []string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a hybrid retrieval query against indexed docsets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], docsetIDs, topK)
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 10, "Maximum number of results to return")
	cmd.Flags().StringSliceVar(&docsetIDs, "docset", nil, "Restrict search to these docset IDs (repeatable)")
	return cmd
}

func runSearch(cmd *cobra.Command, query string, docsetIDs []string, topK int) error {
	e, _, cleanup, err := buildEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := e.Search(cmd.Context(), engine.Query{
		Text:      query,
		DocsetIDs: docsetIDs,
		TopK:      topK,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(resp.Results) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no results for %q\n", query)
		return nil
	}
	for i, r := range resp.Results {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. %s  (%s)  score=%.4f\n", i+1, r.Title, r.URL, r.Score)
		fmt.Fprintf(cmd.OutOrStdout(), "   %s\n", truncateForDisplay(r.Content, 200))
	}
	return nil
}

func truncateForDisplay(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
