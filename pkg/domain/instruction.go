package domain

// Input is what the caller submits on Continue.
// Text-driven states read Text (through the resolver); report-driven states read Report.
type Input struct {
	Text   string         `json:"text,omitempty"`
	Report map[string]any `json:"report,omitempty"`
}

// Instruction is the contract returned to the caller after every operation.
// It fully determines the next external action.
type Instruction struct {
	Status    Status  `json:"status"`
	SessionID string  `json:"session_id"`
	State     StateID `json:"state,omitempty"`

	// Task is a machine-readable name of the next action (e.g. "ask_user", "get_vital_signs").
	Task string `json:"task,omitempty"`
	// Prompt is what the actor should say to the end user.
	Prompt string `json:"prompt,omitempty"`
	// Guidance tells the actor how to carry out the task.
	Guidance string `json:"instructions,omitempty"`
	// Message is the final message on terminal instructions.
	Message string `json:"message,omitempty"`
	// Protocol names the protocol step being enforced.
	Protocol string `json:"protocol,omitempty"`

	// StayInState marks a retry: the state did not advance.
	StayInState bool `json:"stay_in_state,omitempty"`

	RequiredData []string       `json:"required_data,omitempty"`
	Options      []string       `json:"options,omitempty"`
	Data         map[string]any `json:"data,omitempty"`

	AuditTrail []AuditEntry `json:"audit_trail,omitempty"`
}

// Snapshot is the read-only view returned by Inspect.
type Snapshot struct {
	Session  *Session `json:"session"`
	Terminal bool     `json:"terminal"`
}
