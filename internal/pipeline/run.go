// Package pipeline turns input records into a classified, evaluated,
// persisted run report: batched scoring, row aggregation, accuracy
// evaluation, and tabular report output.
package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/labelkit/zeroshot/internal/model"
	"github.com/labelkit/zeroshot/internal/scorer"
)

const defaultBatchSize = 8

// Runner drives a scorer over input records in fixed-size batches. Batch
// size is a throughput knob only; results are identical for any size.
type Runner struct {
	scorer    scorer.Scorer
	batchSize int
}

// NewRunner creates a Runner. A non-positive batchSize falls back to the
// default.
func NewRunner(s scorer.Scorer, batchSize int) *Runner {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Runner{scorer: s, batchSize: batchSize}
}

// Stream scores records in consecutive batches and sends one Classification
// per record, in input order, as each batch completes. The caller must
// consume the result channel; cancelling ctx stops the stream without
// error. On a scoring failure the error (with the failing record index) is
// sent on the error channel and the stream halts after the completed
// prefix. Both channels are closed when the stream ends.
func (r *Runner) Stream(ctx context.Context, records []model.InputRecord, labels model.LabelSet) (<-chan model.Classification, <-chan error) {
	resultCh := make(chan model.Classification, r.batchSize)
	errCh := make(chan error, 1)

	go func() {
		defer close(resultCh)
		defer close(errCh)

		for start := 0; start < len(records); start += r.batchSize {
			if ctx.Err() != nil {
				return
			}

			end := min(start+r.batchSize, len(records))
			batch := records[start:end]

			texts := make([]string, len(batch))
			for i, rec := range batch {
				texts[i] = rec.Text
			}

			vectors, err := r.scorer.ScoreBatch(ctx, texts, labels)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				errCh <- eris.Wrapf(err, "classify: batch starting at record %d", start)
				return
			}

			for i, vec := range vectors {
				cls := model.Classification{
					Index:       start + i,
					Text:        batch[i].Text,
					GroundTruth: batch[i].GroundTruth,
					Scores:      vec,
				}
				select {
				case resultCh <- cls:
				case <-ctx.Done():
					return
				}
			}

			zap.L().Debug("classify: batch complete",
				zap.Int("from", start),
				zap.Int("to", end-1),
				zap.Int("total", len(records)),
			)
		}
	}()

	return resultCh, errCh
}

// Run streams all records and aggregates them into a RunReport. On a
// scoring failure the returned report still holds the rows completed before
// the failure, alongside the error.
func (r *Runner) Run(ctx context.Context, records []model.InputRecord, labels model.LabelSet) (*model.RunReport, error) {
	if err := labels.Validate(); err != nil {
		return nil, eris.Wrap(err, "classify: invalid label set")
	}

	report := &model.RunReport{Labels: labels}

	resultCh, errCh := r.Stream(ctx, records, labels)
	for cls := range resultCh {
		report.Rows = append(report.Rows, AggregateRow(cls, labels))
	}
	if err := <-errCh; err != nil {
		return report, err
	}
	return report, nil
}
