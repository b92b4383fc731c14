package domain

import (
	"reflect"
)

// SessionDiff represents the changes between two session snapshots.
// It is designed to be serialized to JSON for partial updates on a client.
type SessionDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	State     *StateID `json:"state,omitempty"`
	Escalated *bool    `json:"escalated,omitempty"`
	Severity  *int     `json:"severity,omitempty"`

	// Fields contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Fields map[string]any `json:"fields,omitempty"`

	// Audit contains the entries appended since the old snapshot.
	Audit []AuditEntry `json:"audit,omitempty"`
}

// Diff calculates the difference between old and new.
// If old is nil, it returns a diff representing the entire new session.
// Returns nil when nothing changed.
func Diff(old, new *Session) *SessionDiff {
	if new == nil {
		return nil
	}

	diff := &SessionDiff{SessionID: new.ID}

	if old == nil || old.State != new.State {
		diff.State = &new.State
	}
	if old == nil || old.Escalated != new.Escalated {
		diff.Escalated = &new.Escalated
	}
	if old == nil || old.Severity != new.Severity {
		diff.Severity = &new.Severity
	}

	diff.Fields = diffFields(old, new)
	diff.Audit = diffAudit(old, new)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffFields(old, new *Session) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Fields {
			delta[k] = v
		}
	} else {
		for k, newVal := range new.Fields {
			oldVal, exists := old.Fields[k]
			if !exists || !reflect.DeepEqual(oldVal, newVal) {
				delta[k] = newVal
			}
		}
		for k := range old.Fields {
			if _, exists := new.Fields[k]; !exists {
				delta[k] = nil
			}
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffAudit relies on the audit trail being append-only.
func diffAudit(old, new *Session) []AuditEntry {
	if len(new.Audit) == 0 {
		return nil
	}
	if old == nil {
		return new.Audit
	}
	if len(new.Audit) > len(old.Audit) {
		return new.Audit[len(old.Audit):]
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return d.State == nil &&
		d.Escalated == nil &&
		d.Severity == nil &&
		len(d.Fields) == 0 &&
		len(d.Audit) == 0
}
