package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JagjeevanAK/mem-oracle/internal/engine"
)

func newIndexCmd() *cobra.Command {
	var name string
	var waitForSeed bool

	cmd := &cobra.Command{
		Use:   "index <baseUrl> <seedSlug>",
		Short: "Crawl and index a documentation site",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args[0], args[1], name, waitForSeed)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Human-readable name for the docset")
	cmd.Flags().BoolVar(&waitForSeed, "wait", true, "Block until the seed page is indexed before returning")
	return cmd
}

func runIndex(cmd *cobra.Command, baseURL, seedSlug, name string, waitForSeed bool) error {
	e, _, cleanup, err := buildEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := e.IndexDocset(cmd.Context(), engine.IndexInput{
		BaseURL:     baseURL,
		SeedSlug:    seedSlug,
		Name:        name,
		WaitForSeed: waitForSeed,
	})
	if err != nil {
		return fmt.Errorf("index %s: %w", baseURL, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "docset %s (status: %s, seed indexed: %t)\n", result.DocsetID, result.Status, result.SeedIndexed)
	fmt.Fprintln(cmd.OutOrStdout(), "crawling continues in the background; run 'mem-oracled status' to track progress")
	return nil
}
