package domain

import "time"

// Phase is the state of the process-wide installation session.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseActive    Phase = "active"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// SessionState is a snapshot of the installation session. Fields other than
// Phase are only populated for the phases that carry them.
type SessionState struct {
	Phase        Phase           `json:"phase"`
	InvocationID uint64          `json:"invocation_id,omitempty"`
	RunID        string          `json:"run_id,omitempty"`
	AppID        string          `json:"app_id,omitempty"`
	AppName      string          `json:"app_name,omitempty"`
	Stage        Stage           `json:"stage,omitempty"`
	Progress     float64         `json:"progress"`
	Message      string          `json:"message,omitempty"`
	Outcome      *InstallOutcome `json:"outcome,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
