package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelkit/zeroshot/internal/model"
)

func rowsWith(preds, truths []string) []model.ResultRow {
	rows := make([]model.ResultRow, len(preds))
	for i := range preds {
		rows[i] = model.ResultRow{Predicted: preds[i]}
		if i < len(truths) {
			rows[i].GroundTruth = truths[i]
		}
	}
	return rows
}

func TestEvaluateAccuracyAndConfusion(t *testing.T) {
	rows := rowsWith(
		[]string{"pro", "pro", "pro"},
		[]string{"pro", "anti", "pro"},
	)

	summary, ok := Evaluate(rows)

	require.True(t, ok)
	assert.InDelta(t, 2.0/3.0, summary.Accuracy, 1e-9)
	assert.Equal(t, 2, summary.Confusion[model.ConfusionKey{Truth: "pro", Predicted: "pro"}])
	assert.Equal(t, 1, summary.Confusion[model.ConfusionKey{Truth: "anti", Predicted: "pro"}])
	// Cells that never occur are not materialized.
	_, exists := summary.Confusion[model.ConfusionKey{Truth: "pro", Predicted: "anti"}]
	assert.False(t, exists)
	assert.Len(t, summary.Confusion, 2)
}

func TestEvaluateSkippedOnAnyMissingGroundTruth(t *testing.T) {
	rows := rowsWith(
		[]string{"pro", "pro", "pro"},
		[]string{"pro", "", "pro"},
	)

	summary, ok := Evaluate(rows)

	// All-or-nothing: never a 2-of-2 partial accuracy.
	assert.False(t, ok)
	assert.Nil(t, summary)
}

func TestEvaluateSkippedOnEmptyRows(t *testing.T) {
	summary, ok := Evaluate(nil)
	assert.False(t, ok)
	assert.Nil(t, summary)
}

func TestEvaluatePerfectAccuracy(t *testing.T) {
	rows := rowsWith([]string{"a", "b"}, []string{"a", "b"})

	summary, ok := Evaluate(rows)
	require.True(t, ok)
	assert.Equal(t, 1.0, summary.Accuracy)
}

func TestEvaluateUnknownGroundTruthScoresZero(t *testing.T) {
	// A ground truth outside the candidate set can never match; it simply
	// contributes a miss and its own confusion cell.
	rows := rowsWith([]string{"pro"}, []string{"neutral"})

	summary, ok := Evaluate(rows)
	require.True(t, ok)
	assert.Equal(t, 0.0, summary.Accuracy)
	assert.Equal(t, 1, summary.Confusion[model.ConfusionKey{Truth: "neutral", Predicted: "pro"}])
}

func TestFormatConfusion(t *testing.T) {
	summary := &model.EvaluationSummary{Confusion: map[model.ConfusionKey]int{
		{Truth: "pro", Predicted: "pro"}:  2,
		{Truth: "anti", Predicted: "pro"}: 1,
	}}

	out := FormatConfusion(summary)
	assert.Equal(t, "anti -> pro: 1\npro -> pro: 2\n", out)
}

func TestFormatAccuracy(t *testing.T) {
	assert.Equal(t, "66.67%", FormatAccuracy(2.0/3.0))
	assert.Equal(t, "100.00%", FormatAccuracy(1))
	assert.Equal(t, "0.00%", FormatAccuracy(0))
}
