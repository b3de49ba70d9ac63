package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"policy-rag/internal/eval"
)

var (
	evalFile    string
	evalOut     string
	evalRPS     float64
	evalResults bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score the query pipeline against a JSONL question set",
	Long: `Each line of the file is {"question": "...", "expected_answer": "..."}.
Reports groundedness, citation accuracy, expected-answer containment, the
refusal count and latency percentiles.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cases, err := eval.LoadCasesFile(evalFile)
		if err != nil {
			return err
		}

		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		if err := a.checkIndex(cmd.Context()); err != nil {
			return err
		}
		runner := eval.NewRunner(a.engine(), eval.Options{
			RefusalText:       cfg.RefusalText,
			RequestsPerSecond: evalRPS,
			Burst:             1,
		})
		report, err := runner.Run(cmd.Context(), cases)
		if err != nil {
			return err
		}
		if !evalResults {
			report.Results = nil
		}

		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		if evalOut != "" {
			if err := os.WriteFile(evalOut, data, 0644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	},
}

func init() {
	evalCmd.Flags().StringVarP(&evalFile, "file", "f", "eval/eval_questions.jsonl", "JSONL question file")
	evalCmd.Flags().StringVarP(&evalOut, "out", "o", "", "Also write the report to this file")
	evalCmd.Flags().Float64Var(&evalRPS, "rps", 0.2, "Maximum questions per second (0 disables pacing)")
	evalCmd.Flags().BoolVar(&evalResults, "results", false, "Include per-question results in the report")
	rootCmd.AddCommand(evalCmd)
}
