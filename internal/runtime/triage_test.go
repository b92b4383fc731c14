package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/workflows/triage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_TriageRedFlagEscalation(t *testing.T) {
	f := newFixture(t)

	inst := f.start(t, triage.Variant)
	assert.Equal(t, triage.RedFlagScreening, inst.State)
	assert.Contains(t, inst.RequiredData, "requires_emergency_protocol")
	id := inst.SessionID

	inst = f.report(t, id, map[string]any{
		"symptoms_detected": []any{"chest pain", "sweating"},
		"patient_statement": "crushing chest pain for twenty minutes",
		"classification": map[string]any{
			"requires_emergency_protocol": true,
			"critical_symptoms":           []any{"chest pain"},
			"severity":                    "critical",
		},
	})
	assert.Equal(t, domain.StatusEmergencySaveRequired, inst.Status)
	assert.Equal(t, triage.EmergencyEscalation, inst.State)
	assert.Equal(t, []string{"record_id"}, inst.RequiredData)
	require.Len(t, inst.AuditTrail, 2)
	assert.Equal(t, triage.StepEmergencyActivated, inst.AuditTrail[1].Step)

	data := inst.Data["triage_data"].(map[string]any)
	assert.Equal(t, string(triage.LevelImmediate), data["triage_level"])
	assert.Equal(t, "crushing chest pain for twenty minutes", data["complaint"])
	assert.Equal(t, []string{"chest pain"}, data["red_flags"])

	s := f.load(t, id)
	assert.True(t, s.Escalated)

	// The record acknowledgement is mandatory.
	inst = f.report(t, id, map[string]any{"status": "saved"})
	assert.True(t, inst.StayInState)
	assert.Equal(t, domain.StatusEmergencySaveRequired, inst.Status)
	assert.Equal(t, triage.EmergencyEscalation, inst.State)

	inst = f.report(t, id, map[string]any{"record_id": "TR-42", "status": "saved"})
	assert.Equal(t, domain.StatusEmergency, inst.Status)
	assert.Equal(t, triage.EscalationComplete, inst.State)
	assert.Contains(t, inst.Message, "EMERGENCY")
	assert.Equal(t, "TR-42", inst.Data["record_id"])
	require.Len(t, inst.AuditTrail, 4)
	assert.Equal(t, triage.StepTriageRecordSaved, inst.AuditTrail[3].Step)

	_, err := f.engine.Continue(context.Background(), id, domain.Input{Report: map[string]any{"record_id": "again"}})
	assert.ErrorIs(t, err, domain.ErrSessionTerminated)
}

func TestEngine_TriageFlatClassification(t *testing.T) {
	f := newFixture(t)
	id := f.start(t, triage.Variant).SessionID

	inst := f.report(t, id, map[string]any{
		"requires_emergency_protocol": "true",
		"critical_symptoms":           "difficulty breathing",
	})
	assert.Equal(t, triage.EmergencyEscalation, inst.State)
}

func TestEngine_TriageMissingScreeningStays(t *testing.T) {
	f := newFixture(t)
	id := f.start(t, triage.Variant).SessionID

	inst := f.report(t, id, map[string]any{"patient_statement": "I feel fine"})
	assert.True(t, inst.StayInState)
	assert.Equal(t, triage.RedFlagScreening, inst.State)
	assert.Contains(t, inst.Guidance, "requires_emergency_protocol")
	assert.Contains(t, inst.Data["retry_reason"], "requires_emergency_protocol")
}

func TestEngine_TriageStandardPath(t *testing.T) {
	f := newFixture(t)
	id := f.start(t, triage.Variant).SessionID

	inst := f.report(t, id, map[string]any{"requires_emergency_protocol": false, "patient_statement": "sore throat"})
	assert.Equal(t, triage.ChiefComplaint, inst.State)

	inst = f.report(t, id, map[string]any{"chief_complaint": "sore throat for three days"})
	assert.Equal(t, triage.MedicalHistory, inst.State)

	inst = f.report(t, id, map[string]any{
		"medical_history":      map[string]any{"patient_id": "P002", "conditions": []any{"asthma"}},
		"high_risk_conditions": []any{"asthma"},
	})
	assert.Equal(t, triage.VitalSigns, inst.State)
	assert.Equal(t, 2, f.load(t, id).Severity)

	inst = f.report(t, id, map[string]any{
		"vitals": map[string]any{"heart_rate": 88, "temperature": 37.9},
	})
	assert.Equal(t, triage.SeverityAssessment, inst.State)
	assessment := inst.Data["data_for_assessment"].(map[string]any)
	assert.Equal(t, 2, assessment["severity_score"])
	assert.Equal(t, "sore throat for three days", assessment["chief_complaint"])

	inst = f.report(t, id, map[string]any{})
	assert.Equal(t, domain.StatusComplete, inst.Status)
	assert.Equal(t, string(triage.LevelSemiUrgent), inst.Data["triage_level"])
	assert.Contains(t, inst.Message, "Risk factors present")
	compliance := inst.Data["protocol_compliance"].(map[string]any)
	assert.Equal(t, true, compliance["red_flags_screened"])
	assert.Equal(t, true, compliance["vitals_obtained"])
	assert.Equal(t, true, compliance["history_reviewed"])
	assert.Len(t, inst.AuditTrail, 6)
	assert.False(t, f.load(t, id).Escalated)
}

func TestEngine_TriageCriticalVitalsRaiseLevel(t *testing.T) {
	f := newFixture(t)
	id := f.start(t, triage.Variant).SessionID

	f.report(t, id, map[string]any{"requires_emergency_protocol": false})
	f.report(t, id, map[string]any{"chief_complaint": "dizziness"})
	f.report(t, id, map[string]any{"medical_history": map[string]any{}})
	f.report(t, id, map[string]any{
		"vitals":          map[string]any{"oxygen_saturation": 88},
		"critical_values": []any{"oxygen_saturation"},
	})
	inst := f.report(t, id, nil)
	assert.Equal(t, string(triage.LevelEmergency), inst.Data["triage_level"])
	assert.Equal(t, 3, inst.Data["severity_score"])
}

func TestEngine_EscalationCannotBeSkipped(t *testing.T) {
	f := newFixture(t)
	id := f.start(t, triage.Variant).SessionID

	f.report(t, id, map[string]any{"requires_emergency_protocol": false})
	f.report(t, id, map[string]any{"chief_complaint": "headache"})

	// A critical finding mid-protocol forces the emergency branch.
	inst := f.report(t, id, map[string]any{
		"medical_history":   map[string]any{"patient_id": "P001"},
		"critical_symptoms": []any{"signs of stroke"},
	})
	assert.Equal(t, triage.EmergencyEscalation, inst.State)
	assert.Equal(t, domain.StatusEmergencySaveRequired, inst.Status)
	assert.Equal(t, "P001", inst.Data["triage_data"].(map[string]any)["patient_id"])

	// Submitting normal-path reports cannot leave the branch.
	inst = f.report(t, id, map[string]any{"vitals": map[string]any{"heart_rate": 70}})
	assert.True(t, inst.StayInState)
	assert.Equal(t, triage.EmergencyEscalation, inst.State)
	assert.True(t, f.load(t, id).Escalated)
}

func TestEngine_EscalationAtAssessmentIsForced(t *testing.T) {
	f := newFixture(t)
	id := f.start(t, triage.Variant).SessionID

	f.report(t, id, map[string]any{"requires_emergency_protocol": false})
	f.report(t, id, map[string]any{"chief_complaint": "back pain"})
	f.report(t, id, map[string]any{"medical_history": map[string]any{}})
	f.report(t, id, map[string]any{"vitals": map[string]any{}})

	inst := f.report(t, id, map[string]any{"requires_emergency_protocol": true})
	assert.Equal(t, triage.EmergencyEscalation, inst.State)
}
