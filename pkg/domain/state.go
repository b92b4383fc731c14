package domain

// StateID names a state of a workflow variant (e.g. "CHOOSE_CRUST").
type StateID string

// Variant identifies a workflow definition (e.g. "pizza", "triage").
type Variant string

// Status is the outcome class reported to the caller in every Instruction.
type Status string

const (
	StatusInProgress            Status = "in_progress"
	StatusComplete              Status = "complete"
	StatusCancelled             Status = "cancelled"
	StatusError                 Status = "error"
	StatusEmergency             Status = "emergency"               // Escalation branch finished
	StatusEmergencySaveRequired Status = "emergency_save_required" // Escalation branch awaiting record acknowledgement
)

// Terminal reports whether the status ends the conversation.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusCancelled || s == StatusEmergency
}
