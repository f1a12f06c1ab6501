package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/labelkit/zeroshot/internal/fetcher"
	"github.com/labelkit/zeroshot/internal/model"
	"github.com/labelkit/zeroshot/internal/pipeline"
	"github.com/labelkit/zeroshot/internal/store"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify input texts against a label set",
	Long: `Reads texts from CSV inputs (local paths, http(s) or ftp URLs), scores each
text against the declared labels, and writes a report with per-label
percentages and the predicted label. When every input row carries a
hand_annotated column, prints accuracy and a confusion summary.

Examples:
  # Classify local reviews against two labels
  zeroshot classify --input reviews.csv --label positive --label negative

  # Labels from a YAML file, report as XLSX
  zeroshot classify --input reviews.csv --labels-file labels.yaml --format xlsx

  # Remote input, first 100 rows only
  zeroshot classify --input https://example.com/data.csv --label pro --label anti --limit 100`,
	RunE: runClassify,
}

func init() {
	f := classifyCmd.Flags()
	f.StringArray("input", nil, "input CSV (local path, http(s) or ftp URL); repeatable")
	f.StringArray("label", nil, "candidate label; repeatable")
	f.String("labels-file", "", "YAML file with a top-level labels list")
	f.Int("batch-size", 0, "texts per scoring request (default from config)")
	f.Int("limit", 0, "classify at most N rows per input (0 = all)")
	f.Int("preview", -1, "rows to preview on stdout (default from config)")
	f.Bool("multi-label", true, "score labels independently instead of as a softmax")
	f.String("output", "", "report path (single input only; default derived from input name)")
	f.String("format", "csv", "report format: csv or xlsx")
	f.Bool("no-store", false, "skip recording the run in the store")
	_ = classifyCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(classifyCmd)
}

// classifyResult carries the outcome of one input so previews print in
// input order after concurrent runs finish.
type classifyResult struct {
	source     string
	outputPath string
	report     *model.RunReport
	accuracy   *float64
	confusion  string
	runID      string
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate(); err != nil {
		return err
	}

	inputs, _ := cmd.Flags().GetStringArray("input")
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	noStore, _ := cmd.Flags().GetBool("no-store")
	limit, _ := cmd.Flags().GetInt("limit")

	if format != "csv" && format != "xlsx" {
		return eris.Errorf("classify: --format must be csv or xlsx (got %q)", format)
	}
	if output != "" && len(inputs) > 1 {
		return eris.New("classify: --output only applies to a single --input")
	}

	labels, err := resolveLabels(cmd)
	if err != nil {
		return err
	}
	if err := labels.Validate(); err != nil {
		return eris.Wrap(err, "classify")
	}

	batchSize, _ := cmd.Flags().GetInt("batch-size")
	if batchSize == 0 {
		batchSize = cfg.Classify.BatchSize
	}
	preview, _ := cmd.Flags().GetInt("preview")
	if preview < 0 {
		preview = cfg.Classify.Preview
	}
	multiLabel, _ := cmd.Flags().GetBool("multi-label")
	if !cmd.Flags().Changed("multi-label") {
		multiLabel = cfg.Classify.MultiLabel
	}

	sc, err := initScorer(multiLabel)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(sc, batchSize)
	httpFetcher, ftpFetcher := initFetchers()

	var st store.Store
	if !noStore {
		st, err = initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}
	}

	results := make([]classifyResult, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	for i, input := range inputs {
		g.Go(func() error {
			res, err := classifyOne(gctx, classifyEnv{
				runner:      runner,
				httpFetcher: httpFetcher,
				ftpFetcher:  ftpFetcher,
				store:       st,
			}, input, labels, limit, deriveOutputPath(input, output, format), format)
			if err != nil {
				return err
			}
			results[i] = *res
			return nil
		})
	}
	runErr := g.Wait()

	for _, res := range results {
		if res.report == nil {
			continue
		}
		printClassifyResult(cmd.OutOrStdout(), res, labels, preview)
	}
	return runErr
}

type classifyEnv struct {
	runner      *pipeline.Runner
	httpFetcher *fetcher.HTTPFetcher
	ftpFetcher  *fetcher.FTPFetcher
	store       store.Store
}

func classifyOne(ctx context.Context, env classifyEnv, source string, labels model.LabelSet, limit int, outputPath string, format string) (*classifyResult, error) {
	log := zap.L().With(zap.String("source", source))

	records, err := fetcher.LoadRecords(ctx, source, env.httpFetcher, env.ftpFetcher)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: load %s", source)
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	log.Info("input loaded", zap.Int("rows", len(records)))

	var runID string
	if env.store != nil {
		run, err := env.store.CreateRun(ctx, source, labels)
		if err != nil {
			return nil, err
		}
		runID = run.ID
	}

	report, runErr := env.runner.Run(ctx, records, labels)
	if runErr != nil {
		if env.store != nil {
			if err := env.store.FailRun(ctx, runID, runErr.Error()); err != nil {
				log.Warn("recording run failure failed", zap.Error(err))
			}
		}
		return nil, runErr
	}

	res := &classifyResult{source: source, outputPath: outputPath, report: report, runID: runID}

	if summary, ok := pipeline.Evaluate(report.Rows); ok {
		res.accuracy = &summary.Accuracy
		res.confusion = pipeline.FormatConfusion(summary)
	}

	if env.store != nil {
		if err := env.store.CompleteRun(ctx, runID, report, res.accuracy); err != nil {
			return nil, err
		}
	}

	switch format {
	case "xlsx":
		err = pipeline.WriteXLSX(report, outputPath)
	default:
		err = pipeline.WriteCSV(report, outputPath)
	}
	if err != nil {
		return nil, err
	}

	log.Info("report written",
		zap.String("path", outputPath),
		zap.Int("rows", len(report.Rows)),
	)
	return res, nil
}

func printClassifyResult(w io.Writer, res classifyResult, labels model.LabelSet, preview int) {
	fmt.Fprintf(w, "%s -> %s (%d rows)\n", res.source, res.outputPath, len(res.report.Rows))

	n := preview
	if n > len(res.report.Rows) {
		n = len(res.report.Rows)
	}
	for _, row := range res.report.Rows[:n] {
		text := row.Text
		if len(text) > 60 {
			text = text[:57] + "..."
		}
		fmt.Fprintf(w, "  %-60s  %s\n", text, pipeline.FormatRowScores(row, labels))
	}

	if res.accuracy != nil {
		fmt.Fprintf(w, "Accuracy: %s\n", pipeline.FormatAccuracy(*res.accuracy))
		if res.confusion != "" {
			fmt.Fprintln(w, res.confusion)
		}
	} else {
		fmt.Fprintln(w, "Evaluation skipped: not every row carries a hand annotation.")
	}
	if res.runID != "" {
		fmt.Fprintf(w, "Run: %s\n", res.runID)
	}
}

// resolveLabels merges --label flags with a --labels-file list, flags first.
func resolveLabels(cmd *cobra.Command) (model.LabelSet, error) {
	labels, _ := cmd.Flags().GetStringArray("label")

	labelsFile, _ := cmd.Flags().GetString("labels-file")
	if labelsFile != "" {
		data, err := os.ReadFile(labelsFile)
		if err != nil {
			return nil, eris.Wrapf(err, "classify: read labels file %s", labelsFile)
		}
		var doc struct {
			Labels []string `yaml:"labels"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, eris.Wrapf(err, "classify: parse labels file %s", labelsFile)
		}
		labels = append(labels, doc.Labels...)
	}

	if len(labels) == 0 {
		return nil, eris.New("classify: at least one --label or a --labels-file is required")
	}
	return model.LabelSet(labels), nil
}

// deriveOutputPath picks the report path for a source. An explicit --output
// wins; otherwise the input basename gets a _classified suffix.
func deriveOutputPath(source, output, format string) string {
	if output != "" {
		return output
	}

	base := source
	if u, err := url.Parse(source); err == nil && u.Scheme != "" {
		base = u.Path
	}
	base = filepath.Base(base)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == "/" {
		base = "results"
	}
	return base + "_classified." + format
}
