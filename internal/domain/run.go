package domain

import "time"

// RunStatus is the status of one recorded pipeline invocation.
type RunStatus string

const (
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// RunRecord is the history entry of a pipeline invocation.
type RunRecord struct {
	ID           string          `json:"id"`
	InvocationID uint64          `json:"invocation_id"`
	AppID        string          `json:"app_id"`
	AppName      string          `json:"app_name"`
	Status       RunStatus       `json:"status"`
	Outcome      *InstallOutcome `json:"outcome,omitempty"`
	Error        string          `json:"error,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at,omitempty"`
}
