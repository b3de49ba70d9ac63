package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"policy-rag/internal/indexer"
)

var (
	ingestReset bool
	ingestJSON  bool
	ingestDir   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index the policy corpus into the vector store",
	Long: `Load every PDF, text, markdown and HTML file under CONTEXT_DIR, split it into
chunks, embed them and write them to the vector store. Without --reset,
chunks are upserted by chunk id so re-running on an unchanged corpus is a no-op.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		reset := cfg.IngestReset
		if cmd.Flags().Changed("reset") {
			reset = ingestReset
		}
		root := cfg.ContextDir
		if ingestDir != "" {
			root = ingestDir
		}

		if reset && cfg.VectorBackend == "local" {
			slog.Info("Removing local store", "path", cfg.PersistDir)
			if err := indexer.SafeRemoveAll(cfg.PersistDir); err != nil {
				return fmt.Errorf("failed to reset store: %w", err)
			}
		}

		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		if err := a.checkEmbedder(ctx); err != nil {
			return err
		}
		pipeline, err := a.pipeline()
		if err != nil {
			return err
		}

		report, err := pipeline.Ingest(ctx, root, reset)
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if ingestJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report.Stats)
		}
		printIngestReport(out, report)
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "Drop the existing index before ingesting (default from INGEST_RESET)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "Print ingestion statistics as JSON")
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "", "Corpus directory (default from CONTEXT_DIR)")
	rootCmd.AddCommand(ingestCmd)
}

func printIngestReport(w io.Writer, report *indexer.Report) {
	s := report.Stats
	fmt.Fprintf(w, "Run %s finished in %s\n", report.RunID, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Documents:      %d (%d unique sources)\n", s.Documents, s.UniqueSources)
	fmt.Fprintf(w, "Chunks:         %d\n", s.Chunks)
	fmt.Fprintf(w, "Chunk length:   min %d / avg %d / p50 %d / p90 %d / p99 %d / max %d\n",
		s.ChunkLength.Min, s.ChunkLength.Avg, s.ChunkLength.P50, s.ChunkLength.P90, s.ChunkLength.P99, s.ChunkLength.Max)
	fmt.Fprintf(w, "Tiny (<200):    %d\n", s.TinyChunks)
	fmt.Fprintf(w, "Huge (>2000):   %d\n", s.HugeChunks)
	fmt.Fprintf(w, "Index version:  %s\n", s.IndexVersion)

	if len(s.FileTypes) > 0 {
		types := make([]string, 0, len(s.FileTypes))
		for ext, n := range s.FileTypes {
			types = append(types, fmt.Sprintf("%s=%d", ext, n))
		}
		slices.Sort(types)
		fmt.Fprintf(w, "File types:     %s\n", strings.Join(types, ", "))
	}
	if len(s.TopSources) > 0 {
		fmt.Fprintln(w, "Top sources:")
		for _, sc := range s.TopSources {
			fmt.Fprintf(w, "  %5d  %s\n", sc.Chunks, sc.Source)
		}
	}
	if len(report.Failed) > 0 {
		fmt.Fprintf(w, "Skipped %d file(s):\n", len(report.Failed))
		for _, f := range report.Failed {
			fmt.Fprintf(w, "  %s: %v\n", f.Path, f.Err)
		}
	}
}
