package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/labelkit/zeroshot/internal/pipeline"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a written report against its hand annotations",
	Long: `Reads a previously written classification report and recomputes accuracy
and the confusion summary from its hand_annotated column. Evaluation is
all-or-nothing: if any row lacks an annotation the report is not scored.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reportPath, _ := cmd.Flags().GetString("report")

		report, err := pipeline.ReadCSV(reportPath)
		if err != nil {
			return eris.Wrapf(err, "evaluate: read %s", reportPath)
		}

		summary, ok := pipeline.Evaluate(report.Rows)
		if !ok {
			return eris.Errorf("evaluate: %s has rows without hand annotations", reportPath)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Rows:     %d\n", len(report.Rows))
		fmt.Fprintf(out, "Accuracy: %s\n", pipeline.FormatAccuracy(summary.Accuracy))
		fmt.Fprintln(out, pipeline.FormatConfusion(summary))
		return nil
	},
}

func init() {
	evaluateCmd.Flags().String("report", "", "path to a report CSV written by classify")
	_ = evaluateCmd.MarkFlagRequired("report")
	rootCmd.AddCommand(evaluateCmd)
}
