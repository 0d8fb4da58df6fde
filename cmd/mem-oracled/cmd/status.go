package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var docsetID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show crawl/index progress for indexed docsets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, docsetID)
		},
	}
	cmd.Flags().StringVar(&docsetID, "docset", "", "Report on a single docset; omit for every docset")
	return cmd
}

func runStatus(cmd *cobra.Command, docsetID string) error {
	e, _, cleanup, err := buildEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	var ids []string
	if docsetID != "" {
		ids = []string{docsetID}
	} else {
		docsets, err := e.ListDocsets(cmd.Context())
		if err != nil {
			return fmt.Errorf("list docsets: %w", err)
		}
		if len(docsets) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no docsets indexed yet")
			return nil
		}
		for _, d := range docsets {
			ids = append(ids, d.ID)
		}
	}

	for _, id := range ids {
		d, err := e.GetDocset(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get docset %s: %w", id, err)
		}
		status, err := e.GetIndexStatus(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("get index status for %s: %w", id, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  (%s)\n", d.ID, d.Name, d.BaseURL)
		fmt.Fprintf(cmd.OutOrStdout(), "  status: %s  chunks: %d\n", d.Status, status.ChunkCount)
		for state, count := range status.PagesByState {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", state, count)
		}
		if len(status.StuckPages) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  stuck pages: %d\n", len(status.StuckPages))
		}
	}
	return nil
}
