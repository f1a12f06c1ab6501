package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/labelkit/zeroshot/internal/model"
)

// FormatRowScores renders a row's percentages as "label (NN.NN%)" pairs,
// highest first; equal percentages keep declared label order.
func FormatRowScores(row model.ResultRow, labels model.LabelSet) string {
	ordered := make([]string, len(labels))
	copy(ordered, labels)
	sort.SliceStable(ordered, func(i, j int) bool {
		return row.Percentages[ordered[i]] > row.Percentages[ordered[j]]
	})

	parts := make([]string, 0, len(ordered))
	for _, l := range ordered {
		parts = append(parts, fmt.Sprintf("%s (%.2f%%)", l, row.Percentages[l]))
	}
	return strings.Join(parts, ", ")
}

// FormatAccuracy renders an accuracy in [0,1] as a percentage with two
// decimals, e.g. "66.67%".
func FormatAccuracy(accuracy float64) string {
	return fmt.Sprintf("%.2f%%", accuracy*100)
}
