// Package model defines the core domain types shared across the pipeline.
package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// InputRecord is one row of the input dataset: a text to classify and an
// optional hand-annotated ground-truth label.
type InputRecord struct {
	Text        string `csv:"text" json:"text"`
	GroundTruth string `csv:"hand_annotated,omitempty" json:"hand_annotated,omitempty"`
}

// LabelSet is the ordered set of candidate labels for a run. Order matters:
// it fixes report column order and breaks prediction ties.
type LabelSet []string

// Validate checks that the label set is non-empty and holds distinct,
// non-blank labels.
func (ls LabelSet) Validate() error {
	if len(ls) == 0 {
		return eris.New("label set is empty")
	}
	seen := make(map[string]struct{}, len(ls))
	for _, l := range ls {
		if strings.TrimSpace(l) == "" {
			return eris.New("label set contains a blank label")
		}
		if _, ok := seen[l]; ok {
			return eris.Errorf("duplicate label %q", l)
		}
		seen[l] = struct{}{}
	}
	return nil
}

// LabelScore pairs a candidate label with its confidence in [0,1].
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classification is the raw scorer output for one input record. Scores hold
// exactly one entry per candidate label.
type Classification struct {
	Index       int          `json:"index"`
	Text        string       `json:"text"`
	GroundTruth string       `json:"ground_truth,omitempty"`
	Scores      []LabelScore `json:"scores"`
}

// ResultRow is the aggregated, presentation-ready form of a Classification:
// per-label percentages (0-100, 2 decimals) and the derived prediction.
type ResultRow struct {
	Text        string             `json:"text"`
	Percentages map[string]float64 `json:"percentages"`
	Predicted   string             `json:"predicted_label"`
	GroundTruth string             `json:"hand_annotated,omitempty"`
}

// RunReport is the ordered collection of result rows for one run, in input
// order, together with the label set that produced them.
type RunReport struct {
	Labels LabelSet    `json:"labels"`
	Rows   []ResultRow `json:"rows"`
}

// HasGroundTruth reports whether every row carries a ground-truth label.
func (r *RunReport) HasGroundTruth() bool {
	if len(r.Rows) == 0 {
		return false
	}
	for _, row := range r.Rows {
		if row.GroundTruth == "" {
			return false
		}
	}
	return true
}

// AnyGroundTruth reports whether at least one row carries a ground-truth
// label. Controls whether the report writer emits the hand_annotated column.
func (r *RunReport) AnyGroundTruth() bool {
	for _, row := range r.Rows {
		if row.GroundTruth != "" {
			return true
		}
	}
	return false
}

// ConfusionKey indexes one cell of a confusion matrix.
type ConfusionKey struct {
	Truth     string `json:"truth"`
	Predicted string `json:"predicted"`
}

// EvaluationSummary holds accuracy and the sparse confusion matrix for a
// fully ground-truthed run. Cells absent from Confusion are zero.
type EvaluationSummary struct {
	Accuracy  float64
	Confusion map[ConfusionKey]int
}
