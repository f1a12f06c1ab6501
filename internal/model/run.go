package model

import "time"

// RunStatus tracks the lifecycle of a classification run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the persisted record of one classification run.
type Run struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Labels    LabelSet  `json:"labels"`
	Status    RunStatus `json:"status"`
	RowCount  int       `json:"row_count"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
