package domain

import "time"

// AuditEntry records one step the engine took for a session.
type AuditEntry struct {
	Step      string         `json:"step"`
	State     StateID        `json:"state"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Standard audit steps recorded by the engine itself.
// Workflows record their own domain-specific step names.
const (
	StepSessionStarted = "session_started"
	StepRetry          = "input_rejected"
	StepAmbiguous      = "input_ambiguous"
	StepCancelled      = "session_cancelled"
)
