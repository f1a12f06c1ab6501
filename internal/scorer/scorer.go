// Package scorer defines the label scoring contract and its backends. A
// scorer is an opaque oracle: given a text and a candidate label set it
// returns one confidence per label; the rest of the pipeline depends only
// on that contract.
package scorer

import (
	"context"

	"github.com/labelkit/zeroshot/internal/model"
)

// Scorer scores texts against a candidate label set.
type Scorer interface {
	// ScoreBatch scores each text against every candidate label. The result
	// holds one score vector per input text, in input order; each vector
	// holds exactly one entry per candidate label, in declared label order,
	// with scores in [0,1]. Batching amortizes per-call overhead and never
	// affects the score values.
	ScoreBatch(ctx context.Context, texts []string, labels model.LabelSet) ([][]model.LabelScore, error)
}

// Score scores a single text. Convenience wrapper over ScoreBatch.
func Score(ctx context.Context, s Scorer, text string, labels model.LabelSet) ([]model.LabelScore, error) {
	vectors, err := s.ScoreBatch(ctx, []string{text}, labels)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
