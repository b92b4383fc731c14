package triage

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Level is a standard emergency triage level.
type Level string

const (
	LevelImmediate  Level = "Level 1 - Immediate (Life-threatening)"
	LevelEmergency  Level = "Level 2 - Emergency (10 min)"
	LevelUrgent     Level = "Level 3 - Urgent (30 min)"
	LevelSemiUrgent Level = "Level 4 - Semi-urgent (60 min)"
	LevelNonUrgent  Level = "Level 5 - Non-urgent (120 min)"
)

// NextSteps tells the patient what to do for a level.
func (l Level) NextSteps() string {
	switch l {
	case LevelImmediate:
		return "Call 911 or go to Emergency Department IMMEDIATELY"
	case LevelEmergency:
		return "Go to Emergency Department within 10 minutes"
	case LevelUrgent:
		return "Visit Urgent Care or ED within 30 minutes"
	case LevelSemiUrgent:
		return "Visit Urgent Care within 1 hour"
	}
	return "Schedule appointment with primary care or use telehealth within 24 hours"
}

// Assess maps the accumulated severity to a level and recommendation.
func Assess(severity int, vitalsCritical bool) (Level, string) {
	switch {
	case severity >= 5 || vitalsCritical:
		return LevelEmergency, "Emergency Department - within 10 minutes"
	case severity >= 3:
		return LevelUrgent, "Urgent Care or ED - within 30 minutes"
	case severity >= 2:
		return LevelSemiUrgent, "Urgent Care - within 60 minutes"
	}
	return LevelNonUrgent, "Primary care or telehealth - within 24 hours"
}

// Record is the typed view of a triage session's fields.
type Record struct {
	RedFlagsChecked    bool           `mapstructure:"red_flags_checked,omitempty"`
	RedFlags           []string       `mapstructure:"red_flags,omitempty"`
	SymptomsDetected   []string       `mapstructure:"symptoms_detected,omitempty"`
	SeverityLabel      string         `mapstructure:"severity_label,omitempty"`
	PatientStatement   string         `mapstructure:"patient_statement,omitempty"`
	PatientID          string         `mapstructure:"patient_id,omitempty"`
	ChiefComplaint     string         `mapstructure:"chief_complaint,omitempty"`
	MedicalHistory     map[string]any `mapstructure:"medical_history,omitempty"`
	HighRiskConditions []string       `mapstructure:"high_risk_conditions,omitempty"`
	Vitals             map[string]any `mapstructure:"vitals,omitempty"`
	CriticalValues     []string       `mapstructure:"critical_values,omitempty"`
	VitalsCritical     bool           `mapstructure:"vitals_critical,omitempty"`
	TriageLevel        Level          `mapstructure:"triage_level,omitempty"`
	Recommendation     string         `mapstructure:"recommendation,omitempty"`
	EscalationReason   string         `mapstructure:"escalation_reason,omitempty"`
	SavedRecordID      string         `mapstructure:"saved_record_id,omitempty"`
}

// DecodeRecord reads a Record out of session fields.
func DecodeRecord(fields map[string]any) (Record, error) {
	var r Record
	if err := mapstructure.Decode(fields, &r); err != nil {
		return Record{}, fmt.Errorf("failed to decode triage record: %w", err)
	}
	return r, nil
}

// Encode writes the record back into session fields.
func (r Record) Encode(fields map[string]any) error {
	var m map[string]any
	if err := mapstructure.Decode(r, &m); err != nil {
		return fmt.Errorf("failed to encode triage record: %w", err)
	}
	for k, v := range m {
		fields[k] = v
	}
	return nil
}

// HistoryReviewed reports whether a medical history was collected.
func (r Record) HistoryReviewed() bool {
	return len(r.MedicalHistory) > 0
}

// HighRisk reports whether the history carries risk factors.
func (r Record) HighRisk() bool {
	if len(r.HighRiskConditions) > 0 {
		return true
	}
	flag, _ := r.MedicalHistory["high_risk"].(bool)
	return flag
}
