package workflow

import (
	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/escalation"
)

// Checkpoint evaluates the escalation policy against the session's findings.
// When the decision is to escalate, the session is marked escalated; the flag
// never resets. The session's accumulated severity always overrides f.Severity.
func Checkpoint(env Env, s *domain.Session, f escalation.Findings) escalation.Decision {
	f.Severity = s.Severity
	d := env.Policy.Evaluate(f)
	if d.Escalate {
		s.Escalate()
	}
	return d
}
