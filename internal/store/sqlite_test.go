package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelkit/zeroshot/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLite(filepath.Join(t.TempDir(), "zeroshot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_CreateAndGetRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "reviews.csv", model.LabelSet{"positive", "negative"})
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "reviews.csv", got.Source)
	assert.Equal(t, model.LabelSet{"positive", "negative"}, got.Labels)
	assert.Nil(t, got.Accuracy)
	assert.Empty(t, got.Error)
}

func TestSQLiteStore_CompleteRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "reviews.csv", model.LabelSet{"positive", "negative"})
	require.NoError(t, err)

	report := &model.RunReport{
		Labels: model.LabelSet{"positive", "negative"},
		Rows: []model.ResultRow{
			{
				Text:        "great product",
				Percentages: map[string]float64{"positive": 91.23, "negative": 8.77},
				Predicted:   "positive",
				GroundTruth: "positive",
			},
			{
				Text:        "broke on day one",
				Percentages: map[string]float64{"positive": 3.14, "negative": 96.86},
				Predicted:   "negative",
				GroundTruth: "negative",
			},
		},
	}
	accuracy := 100.0
	require.NoError(t, s.CompleteRun(ctx, run.ID, report, &accuracy))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	assert.Equal(t, 2, got.RowCount)
	require.NotNil(t, got.Accuracy)
	assert.InDelta(t, 100.0, *got.Accuracy, 0.001)

	stored, err := s.GetReport(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, report.Labels, stored.Labels)
	require.Len(t, stored.Rows, 2)
	assert.Equal(t, "positive", stored.Rows[0].Predicted)
	assert.InDelta(t, 91.23, stored.Rows[0].Percentages["positive"], 0.001)
}

func TestSQLiteStore_FailRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "reviews.csv", model.LabelSet{"a", "b"})
	require.NoError(t, err)

	require.NoError(t, s.FailRun(ctx, run.ID, "classify: batch starting at record 4: backend unavailable"))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Contains(t, got.Error, "backend unavailable")

	_, err = s.GetReport(ctx, run.ID)
	assert.Error(t, err)
}

func TestSQLiteStore_UnknownRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.GetRun(ctx, "does-not-exist")
	assert.Error(t, err)

	err = s.CompleteRun(ctx, "does-not-exist", &model.RunReport{Labels: model.LabelSet{"a"}}, nil)
	assert.Error(t, err)

	err = s.FailRun(ctx, "does-not-exist", "boom")
	assert.Error(t, err)
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for _, source := range []string{"a.csv", "b.csv", "c.csv"} {
		_, err := s.CreateRun(ctx, source, model.LabelSet{"x", "y"})
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	runs, err = s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}
