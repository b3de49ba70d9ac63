package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"policy-rag/internal/service"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what is indexed and the latest ingestion run",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		status, err := a.statusService().Status(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if statusJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		}
		printStatus(out, status)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func printStatus(w io.Writer, s service.IndexStatus) {
	fmt.Fprintf(w, "Backend:     %s\n", s.Backend)
	fmt.Fprintf(w, "Collection:  %s\n", s.Collection)
	fmt.Fprintf(w, "Chunks:      %d\n", s.Points)
	fmt.Fprintf(w, "Sources:     %d\n", len(s.Sources))

	run := s.LatestRun
	if run == nil {
		fmt.Fprintln(w, "Last run:    never")
		return
	}
	fmt.Fprintf(w, "Last run:    %s (%s, started %s)\n", run.ID, run.Status, run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "             %d documents, %d chunks, %d failed files\n",
		run.Documents, run.Chunks, run.FailedFiles)
	if run.Embedder != "" {
		fmt.Fprintf(w, "             embedder %s\n", run.Embedder)
	} else {
		fmt.Fprintf(w, "             model %s\n", run.EmbeddingModel)
	}
	if run.Error != "" {
		fmt.Fprintf(w, "             error: %s\n", run.Error)
	}
}
