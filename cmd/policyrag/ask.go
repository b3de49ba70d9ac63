package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"policy-rag/internal/rag"
)

var (
	askJSON  bool
	askK     int
	askDebug bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question from the indexed corpus",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		if err := a.checkIndex(cmd.Context()); err != nil {
			return err
		}
		resp, err := a.engine().Ask(cmd.Context(), rag.AskRequest{
			Question: strings.Join(args, " "),
			K:        askK,
			Debug:    askDebug,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if askJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		printAnswer(out, resp)
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full response as JSON")
	askCmd.Flags().IntVarP(&askK, "k", "k", 0, "Chunks to retrieve (default from TOP_K)")
	askCmd.Flags().BoolVar(&askDebug, "debug", false, "Include retrieved chunks and the raw model answer")
	rootCmd.AddCommand(askCmd)
}

func printAnswer(w io.Writer, resp rag.AskResponse) {
	fmt.Fprintln(w, resp.Answer)
	if resp.Outcome != rag.OutcomeAccepted {
		return
	}

	if len(resp.Docs) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Retrieved:")
		for i, d := range resp.Docs {
			fmt.Fprintf(w, "  [%d] %s p.%d\n", i+1, d.Source, d.Page)
		}
	}
}
