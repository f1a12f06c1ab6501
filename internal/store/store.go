// Package store persists classification runs and their reports.
package store

import (
	"context"

	"github.com/labelkit/zeroshot/internal/model"
)

// Store defines the persistence interface for classification runs.
type Store interface {
	// CreateRun records a new run in the running state.
	CreateRun(ctx context.Context, source string, labels model.LabelSet) (*model.Run, error)

	// CompleteRun marks the run completed and stores its report. Accuracy
	// is nil when evaluation was skipped.
	CompleteRun(ctx context.Context, runID string, report *model.RunReport, accuracy *float64) error

	// FailRun marks the run failed with the given cause.
	FailRun(ctx context.Context, runID string, cause string) error

	// GetRun returns a run by ID.
	GetRun(ctx context.Context, runID string) (*model.Run, error)

	// GetReport returns the stored report for a completed run.
	GetReport(ctx context.Context, runID string) (*model.RunReport, error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
