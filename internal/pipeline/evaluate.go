package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/labelkit/zeroshot/internal/model"
)

// Evaluate compares predictions against ground truth and returns accuracy
// plus a sparse confusion matrix. Evaluation is all-or-nothing: if any row
// lacks a ground-truth label (or there are no rows), it is skipped entirely
// (ok=false) rather than silently computed over a partial sample.
func Evaluate(rows []model.ResultRow) (*model.EvaluationSummary, bool) {
	if len(rows) == 0 {
		return nil, false
	}
	for _, r := range rows {
		if r.GroundTruth == "" {
			return nil, false
		}
	}

	correct := 0
	confusion := make(map[model.ConfusionKey]int)
	for _, r := range rows {
		if r.Predicted == r.GroundTruth {
			correct++
		}
		confusion[model.ConfusionKey{Truth: r.GroundTruth, Predicted: r.Predicted}]++
	}

	return &model.EvaluationSummary{
		Accuracy:  float64(correct) / float64(len(rows)),
		Confusion: confusion,
	}, true
}

// FormatConfusion renders the confusion matrix as "truth -> predicted: n"
// lines sorted by truth then predicted label.
func FormatConfusion(summary *model.EvaluationSummary) string {
	keys := make([]model.ConfusionKey, 0, len(summary.Confusion))
	for k := range summary.Confusion {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Truth != keys[j].Truth {
			return keys[i].Truth < keys[j].Truth
		}
		return keys[i].Predicted < keys[j].Predicted
	})

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s -> %s: %d\n", k.Truth, k.Predicted, summary.Confusion[k])
	}
	return b.String()
}
