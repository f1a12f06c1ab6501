package pipeline

import (
	"math"

	"github.com/labelkit/zeroshot/internal/model"
)

// AggregateRow converts a raw score vector into a presentation-ready row.
// Each score becomes a percentage rounded half away from zero to 2 decimal
// places; the predicted label is the argmax over the rounded percentages so
// the displayed and the decided label never disagree. Ties resolve to the
// earliest label in declared candidate order. Pure: the same classification
// always yields the same row.
func AggregateRow(cls model.Classification, labels model.LabelSet) model.ResultRow {
	byLabel := make(map[string]float64, len(cls.Scores))
	for _, ls := range cls.Scores {
		byLabel[ls.Label] = ls.Score
	}

	percentages := make(map[string]float64, len(labels))
	predicted := ""
	best := -1.0
	for _, l := range labels {
		pct := roundPercent(byLabel[l])
		percentages[l] = pct
		if pct > best {
			predicted = l
			best = pct
		}
	}

	return model.ResultRow{
		Text:        cls.Text,
		Percentages: percentages,
		Predicted:   predicted,
		GroundTruth: cls.GroundTruth,
	}
}

// roundPercent maps a score in [0,1] to a percentage rounded half away from
// zero to 2 decimals.
func roundPercent(score float64) float64 {
	return math.Round(score*10000) / 100
}
