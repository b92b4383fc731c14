package workflow

import (
	"github.com/aretw0/guidance/pkg/domain"
)

// Action is what the engine must do with the session after a transition.
type Action int

const (
	// ActionStay keeps the session in its current state (retry).
	ActionStay Action = iota
	// ActionAdvance moves the session to Outcome.Next.
	ActionAdvance
	// ActionCancel ends the session and deletes it.
	ActionCancel
)

func (a Action) String() string {
	switch a {
	case ActionStay:
		return "stay"
	case ActionAdvance:
		return "advance"
	case ActionCancel:
		return "cancel"
	}
	return "unknown"
}

// Outcome is the result of a transition function.
type Outcome struct {
	Action Action
	Next   domain.StateID

	// Step and Data become the audit entry for the call.
	Step string
	Data map[string]any

	// Reason explains a stay. It wraps domain.ErrValidationFailed.
	Reason error
	// Message replaces the rendered prompt on a stay, or is the final message on a cancel.
	Message string
	// Guidance replaces the actor-facing instructions on a stay.
	Guidance string
	// Options replaces the rendered options on a stay (e.g. ambiguous candidates).
	Options []string
}

// Stay keeps the session where it is.
func Stay(step string, reason error, message string) Outcome {
	return Outcome{Action: ActionStay, Step: step, Reason: reason, Message: message}
}

// Advance moves the session to next.
func Advance(next domain.StateID, step string, data map[string]any) Outcome {
	return Outcome{Action: ActionAdvance, Next: next, Step: step, Data: data}
}

// Cancel ends the session.
func Cancel(step, message string, data map[string]any) Outcome {
	return Outcome{Action: ActionCancel, Step: step, Message: message, Data: data}
}

// WithOptions attaches candidate options to a stay.
func (o Outcome) WithOptions(options ...string) Outcome {
	o.Options = append([]string(nil), options...)
	return o
}

// WithGuidance attaches actor-facing instructions to a stay.
func (o Outcome) WithGuidance(guidance string) Outcome {
	o.Guidance = guidance
	return o
}

// WithData attaches audit data.
func (o Outcome) WithData(data map[string]any) Outcome {
	o.Data = data
	return o
}
