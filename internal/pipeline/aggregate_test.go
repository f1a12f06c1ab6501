package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/labelkit/zeroshot/internal/model"
)

func TestAggregateRow(t *testing.T) {
	labels := model.LabelSet{"pro", "anti"}
	cls := model.Classification{
		Text: "I love legal cannabis",
		Scores: []model.LabelScore{
			{Label: "pro", Score: 0.91},
			{Label: "anti", Score: 0.09},
		},
	}

	row := AggregateRow(cls, labels)

	assert.Equal(t, "I love legal cannabis", row.Text)
	assert.Equal(t, 91.0, row.Percentages["pro"])
	assert.Equal(t, 9.0, row.Percentages["anti"])
	assert.Equal(t, "pro", row.Predicted)
}

func TestAggregateRowTieFirstLabelWins(t *testing.T) {
	labels := model.LabelSet{"A", "B"}
	cls := model.Classification{
		Text: "ambiguous",
		Scores: []model.LabelScore{
			{Label: "A", Score: 0.50},
			{Label: "B", Score: 0.50},
		},
	}

	row := AggregateRow(cls, labels)
	assert.Equal(t, "A", row.Predicted)
}

func TestAggregateRowTieAfterRounding(t *testing.T) {
	// Raw scores differ but round to the same percentage; the decision uses
	// the rounded values, so the first label in declared order wins.
	labels := model.LabelSet{"A", "B"}
	cls := model.Classification{
		Scores: []model.LabelScore{
			{Label: "A", Score: 0.50001},
			{Label: "B", Score: 0.50004},
		},
	}

	row := AggregateRow(cls, labels)
	assert.Equal(t, 50.0, row.Percentages["A"])
	assert.Equal(t, 50.0, row.Percentages["B"])
	assert.Equal(t, "A", row.Predicted)
}

func TestAggregateRowScoreOrderIrrelevant(t *testing.T) {
	labels := model.LabelSet{"pro", "anti"}
	cls := model.Classification{
		Scores: []model.LabelScore{
			{Label: "anti", Score: 0.8},
			{Label: "pro", Score: 0.2},
		},
	}

	row := AggregateRow(cls, labels)
	assert.Equal(t, "anti", row.Predicted)
	assert.Equal(t, 20.0, row.Percentages["pro"])
}

func TestAggregateRowCarriesGroundTruth(t *testing.T) {
	row := AggregateRow(model.Classification{
		Text:        "x",
		GroundTruth: "pro",
		Scores:      []model.LabelScore{{Label: "pro", Score: 1}},
	}, model.LabelSet{"pro"})
	assert.Equal(t, "pro", row.GroundTruth)
}

func TestRoundPercent(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{0.91, 91.0},
		{0.09, 9.0},
		{0.123456, 12.35},
		{0.123416, 12.34},
		{0.999999, 100.0},
		{0, 0},
		{1, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, roundPercent(tt.score), "score %v", tt.score)
	}
}

func TestAggregateRowIsPure(t *testing.T) {
	labels := model.LabelSet{"a", "b", "c"}
	cls := model.Classification{
		Text: "same input",
		Scores: []model.LabelScore{
			{Label: "a", Score: 0.31},
			{Label: "b", Score: 0.44},
			{Label: "c", Score: 0.25},
		},
	}

	first := AggregateRow(cls, labels)
	second := AggregateRow(cls, labels)
	assert.Equal(t, first, second)
}
