package domain

import "time"

// Session is the unit of conversation state owned by the engine.
type Session struct {
	// ID is the caller's opaque handle. Immutable after creation.
	ID string `json:"id"`

	// Variant selects the transition table driving this session.
	Variant Variant `json:"variant"`

	// State is the current state; always a member of the variant's declared set.
	State StateID `json:"state"`

	// Fields holds the accumulated domain answers (user space).
	Fields map[string]any `json:"fields"`

	// Audit is the append-only protocol record.
	Audit []AuditEntry `json:"audit"`

	// Escalated flips false->true at most once and never resets.
	Escalated bool `json:"escalated"`

	// Severity is a monotonic non-decreasing urgency accumulator.
	Severity int `json:"severity"`

	// Archived is set once a terminal session was handed to the archive.
	Archived bool   `json:"archived,omitempty"`
	RecordID string `json:"record_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a clean session positioned at the initial state.
func NewSession(id string, variant Variant, initial StateID, now time.Time) *Session {
	return &Session{
		ID:        id,
		Variant:   variant,
		State:     initial,
		Fields:    make(map[string]any),
		Audit:     []AuditEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Escalate marks the session as escalated. It returns true only on the
// false->true flip.
func (s *Session) Escalate() bool {
	if s.Escalated {
		return false
	}
	s.Escalated = true
	return true
}

// RaiseSeverity adds delta to the severity accumulator.
// Non-positive deltas are ignored: urgency cannot be talked down.
func (s *Session) RaiseSeverity(delta int) {
	if delta > 0 {
		s.Severity += delta
	}
}

// Record appends an audit entry stamped with the session's current state.
func (s *Session) Record(step string, at time.Time, data map[string]any) {
	s.Audit = append(s.Audit, AuditEntry{
		Step:      step,
		State:     s.State,
		Timestamp: at,
		Data:      CloneMap(data),
	})
}

// Clone returns a deep copy, so stores and callers never share mutable state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	next := *s
	next.Fields = CloneMap(s.Fields)
	if next.Fields == nil {
		next.Fields = make(map[string]any)
	}
	next.Audit = make([]AuditEntry, len(s.Audit))
	for i, e := range s.Audit {
		e.Data = CloneMap(e.Data)
		next.Audit[i] = e
	}
	return &next
}

// CloneMap deep-copies JSON-like maps (nested maps and slices).
func CloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, item := range val {
			out[i] = CloneMap(item)
		}
		return out
	default:
		return v
	}
}
