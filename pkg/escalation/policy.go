// Package escalation decides when a session must leave its normal path.
//
// The policy is a pure predicate over the findings gathered so far. Keeping
// the decision irreversible is the job of domain.Session.Escalate and of the
// engine, which forces the escalation state once a session is escalated.
package escalation

import (
	"fmt"
	"strings"
)

// Findings summarizes what a workflow learned at a checkpoint.
type Findings struct {
	// Critical lists findings that escalate on their own (e.g. "chest pain").
	Critical []string
	// RiskFlags raise attention but do not escalate by themselves.
	RiskFlags []string
	// Severity is the session's accumulated severity after this checkpoint.
	Severity int
	// Emergency is an explicit request from the collaborator to escalate.
	Emergency bool
}

// Decision is the result of evaluating a Policy.
type Decision struct {
	Escalate bool   `json:"escalate"`
	Reason   string `json:"reason,omitempty"`
}

// Policy holds the tunable escalation thresholds.
// A zero SeverityThreshold disables the severity rule.
type Policy struct {
	SeverityThreshold int `yaml:"severity_threshold"`
}

// DefaultPolicy escalates on explicit emergencies and critical findings only.
func DefaultPolicy() Policy {
	return Policy{}
}

// Evaluate applies the policy to the findings.
func (p Policy) Evaluate(f Findings) Decision {
	switch {
	case f.Emergency:
		return Decision{Escalate: true, Reason: "emergency protocol requested"}
	case len(f.Critical) > 0:
		return Decision{Escalate: true, Reason: "critical findings: " + strings.Join(f.Critical, ", ")}
	case p.SeverityThreshold > 0 && f.Severity >= p.SeverityThreshold:
		return Decision{Escalate: true, Reason: fmt.Sprintf("severity %d reached threshold %d", f.Severity, p.SeverityThreshold)}
	}
	return Decision{}
}
