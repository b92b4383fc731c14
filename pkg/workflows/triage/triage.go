package triage

import (
	"context"
	"strings"

	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/escalation"
	"github.com/aretw0/guidance/pkg/workflow"
)

// Variant is the registry key of the workflow.
const Variant domain.Variant = "triage"

// States.
const (
	RedFlagScreening    domain.StateID = "RED_FLAG_SCREENING"
	ChiefComplaint      domain.StateID = "CHIEF_COMPLAINT"
	MedicalHistory      domain.StateID = "MEDICAL_HISTORY"
	VitalSigns          domain.StateID = "VITAL_SIGNS"
	SeverityAssessment  domain.StateID = "SEVERITY_ASSESSMENT"
	Complete            domain.StateID = "COMPLETE"
	EmergencyEscalation domain.StateID = "EMERGENCY_ESCALATION"
	EscalationComplete  domain.StateID = "ESCALATION_COMPLETE"
)

// Audit steps.
const (
	StepRedFlagsPassed     = "red_flag_screening_passed"
	StepEmergencyActivated = "emergency_escalation_activated"
	StepChiefComplaint     = "chief_complaint_gathered"
	StepHistoryChecked     = "medical_history_checked"
	StepVitalsObtained     = "vital_signs_obtained"
	StepTriageCompleted    = "triage_completed"
	StepTriageRecordSaved  = "triage_record_saved"
)

// Severity points added by risk findings.
const (
	severityHighRisk       = 2
	severityCriticalVitals = 3
)

const (
	defaultEmergencyLabel   = "critical"
	defaultPatientID        = "unknown"
	emergencyRecommendation = "IMMEDIATE EMERGENCY CARE REQUIRED"
)

// Table builds the triage transition table.
func Table() *workflow.Table {
	t := &workflow.Table{
		Variant:    Variant,
		Initial:    RedFlagScreening,
		Escalation: EmergencyEscalation,
		States: map[domain.StateID]workflow.StateSpec{
			RedFlagScreening: {
				Kind:   workflow.Collect,
				Handle: handleRedFlags,
				Prompt: promptRedFlags,
				Edges:  []domain.StateID{ChiefComplaint},
			},
			ChiefComplaint: {
				Kind:   workflow.Collect,
				Handle: handleChiefComplaint,
				Prompt: promptChiefComplaint,
				Edges:  []domain.StateID{MedicalHistory},
			},
			MedicalHistory: {
				Kind:   workflow.Collect,
				Handle: handleHistory,
				Prompt: promptHistory,
				Edges:  []domain.StateID{VitalSigns},
			},
			VitalSigns: {
				Kind:   workflow.Collect,
				Handle: handleVitals,
				Prompt: promptVitals,
				Edges:  []domain.StateID{SeverityAssessment},
			},
			SeverityAssessment: {
				Kind:   workflow.Collect,
				Handle: handleAssessment,
				Prompt: promptAssessment,
				Edges:  []domain.StateID{Complete},
			},
			Complete: {
				Kind:   workflow.Terminal,
				Prompt: promptComplete,
			},
			EmergencyEscalation: {
				Kind:   workflow.Escalation,
				Handle: handleSaveRecord,
				Prompt: promptEmergency,
				Edges:  []domain.StateID{EscalationComplete},
			},
			EscalationComplete: {
				Kind:   workflow.Terminal,
				Prompt: promptEscalationComplete,
			},
		},
	}
	return t.MustValidate()
}

// retry turns a report problem into a stay outcome the agent can act on.
func retry(err error, required ...string) workflow.Outcome {
	msg := "The report could not be used. Correct it and report again."
	if len(required) > 0 {
		msg = "The report is incomplete. Gather the missing information and report again: " + strings.Join(required, ", ")
	}
	return workflow.Stay(domain.StepRetry, err, "").
		WithGuidance(msg).
		WithData(map[string]any{"error": err.Error()})
}

// mutate decodes the record, applies fn and writes it back.
func mutate(s *domain.Session, fn func(*Record)) error {
	rec, err := DecodeRecord(s.Fields)
	if err != nil {
		return err
	}
	fn(&rec)
	return rec.Encode(s.Fields)
}

// checkpoint evaluates the policy and, on escalation, stamps the record with
// the immediate level. It returns the audit data describing the decision.
func checkpoint(env workflow.Env, s *domain.Session, f escalation.Findings) (map[string]any, error) {
	d := workflow.Checkpoint(env, s, f)
	if !d.Escalate {
		return nil, nil
	}
	err := mutate(s, func(r *Record) {
		if r.EscalationReason == "" {
			r.EscalationReason = d.Reason
		}
		r.RedFlags = appendUnique(r.RedFlags, f.Critical...)
		r.TriageLevel = LevelImmediate
		r.Recommendation = emergencyRecommendation
	})
	return map[string]any{
		"decision":     "EMERGENCY_ESCALATION",
		"triage_level": string(LevelImmediate),
		"reason":       d.Reason,
	}, err
}

func signalsFindings(sig Signals) escalation.Findings {
	return escalation.Findings{Emergency: sig.RequiresEmergencyProtocol, Critical: sig.CriticalSymptoms}
}

func handleRedFlags(_ context.Context, env workflow.Env, s *domain.Session, in domain.Input) (workflow.Outcome, error) {
	report, err := decodeReport[RedFlagReport](in.Report)
	if err != nil {
		return retry(err, "requires_emergency_protocol", "critical_symptoms", "symptoms_detected", "patient_statement"), nil
	}

	err = mutate(s, func(r *Record) {
		r.RedFlagsChecked = true
		r.SymptomsDetected = report.SymptomsDetected
		r.SeverityLabel = report.Severity
		r.PatientStatement = report.PatientStatement
		if id, ok := report.MedicalHistory["patient_id"].(string); ok {
			r.PatientID = id
		}
	})
	if err != nil {
		return workflow.Outcome{}, err
	}

	decision, err := checkpoint(env, s, escalation.Findings{
		Emergency: *report.RequiresEmergencyProtocol,
		Critical:  report.CriticalSymptoms,
	})
	if err != nil {
		return workflow.Outcome{}, err
	}

	data := map[string]any{
		"symptoms_detected": report.SymptomsDetected,
		"severity":          report.Severity,
		"red_flags":         report.CriticalSymptoms,
	}
	step := StepRedFlagsPassed
	if decision != nil {
		step = StepEmergencyActivated
		for k, v := range decision {
			data[k] = v
		}
	} else {
		data["result"] = "no_red_flags"
	}
	return workflow.Advance(ChiefComplaint, step, data), nil
}

func handleChiefComplaint(_ context.Context, env workflow.Env, s *domain.Session, in domain.Input) (workflow.Outcome, error) {
	report, err := decodeReport[ChiefComplaintReport](in.Report)
	if err != nil {
		return retry(err, "chief_complaint"), nil
	}

	if err := mutate(s, func(r *Record) { r.ChiefComplaint = report.ChiefComplaint }); err != nil {
		return workflow.Outcome{}, err
	}

	decision, err := checkpoint(env, s, signalsFindings(report.Signals))
	if err != nil {
		return workflow.Outcome{}, err
	}
	return workflow.Advance(MedicalHistory, StepChiefComplaint, withDecision(domain.CloneMap(in.Report), decision)), nil
}

func handleHistory(_ context.Context, env workflow.Env, s *domain.Session, in domain.Input) (workflow.Outcome, error) {
	report, err := decodeReport[HistoryReport](in.Report)
	if err != nil {
		return retry(err, "medical_history"), nil
	}

	err = mutate(s, func(r *Record) {
		r.MedicalHistory = report.MedicalHistory
		r.HighRiskConditions = report.HighRiskConditions
		if id, ok := report.MedicalHistory["patient_id"].(string); ok {
			r.PatientID = id
		}
	})
	if err != nil {
		return workflow.Outcome{}, err
	}
	if len(report.HighRiskConditions) > 0 {
		s.RaiseSeverity(severityHighRisk)
	}

	f := signalsFindings(report.Signals)
	f.RiskFlags = report.HighRiskConditions
	decision, err := checkpoint(env, s, f)
	if err != nil {
		return workflow.Outcome{}, err
	}
	return workflow.Advance(VitalSigns, StepHistoryChecked, withDecision(domain.CloneMap(in.Report), decision)), nil
}

func handleVitals(_ context.Context, env workflow.Env, s *domain.Session, in domain.Input) (workflow.Outcome, error) {
	report, err := decodeReport[VitalsReport](in.Report)
	if err != nil {
		return retry(err, "vitals"), nil
	}

	critical := len(report.CriticalValues) > 0
	err = mutate(s, func(r *Record) {
		r.Vitals = report.Vitals
		r.CriticalValues = report.CriticalValues
		r.VitalsCritical = critical
	})
	if err != nil {
		return workflow.Outcome{}, err
	}
	if critical {
		s.RaiseSeverity(severityCriticalVitals)
	}

	f := signalsFindings(report.Signals)
	f.RiskFlags = report.CriticalValues
	decision, err := checkpoint(env, s, f)
	if err != nil {
		return workflow.Outcome{}, err
	}
	return workflow.Advance(SeverityAssessment, StepVitalsObtained, withDecision(map[string]any{
		"vitals":          report.Vitals,
		"critical_values": report.CriticalValues,
	}, decision)), nil
}

func handleAssessment(_ context.Context, env workflow.Env, s *domain.Session, in domain.Input) (workflow.Outcome, error) {
	report, err := decodeReport[AssessmentReport](in.Report)
	if err != nil {
		return retry(err), nil
	}

	decision, err := checkpoint(env, s, signalsFindings(report.Signals))
	if err != nil {
		return workflow.Outcome{}, err
	}

	var level Level
	var recommendation string
	err = mutate(s, func(r *Record) {
		if !s.Escalated {
			r.TriageLevel, r.Recommendation = Assess(s.Severity, r.VitalsCritical)
		}
		level, recommendation = r.TriageLevel, r.Recommendation
	})
	if err != nil {
		return workflow.Outcome{}, err
	}

	return workflow.Advance(Complete, StepTriageCompleted, withDecision(map[string]any{
		"triage_level":   string(level),
		"recommendation": recommendation,
	}, decision)), nil
}

func handleSaveRecord(_ context.Context, _ workflow.Env, s *domain.Session, in domain.Input) (workflow.Outcome, error) {
	report, err := decodeReport[SaveRecordReport](in.Report)
	if err != nil {
		return retry(err, "record_id"), nil
	}

	if err := mutate(s, func(r *Record) { r.SavedRecordID = report.RecordID }); err != nil {
		return workflow.Outcome{}, err
	}
	return workflow.Advance(EscalationComplete, StepTriageRecordSaved, map[string]any{
		"record_id": report.RecordID,
		"status":    report.Status,
	}), nil
}

func withDecision(data, decision map[string]any) map[string]any {
	if data == nil {
		data = make(map[string]any)
	}
	for k, v := range decision {
		data[k] = v
	}
	return data
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		found := false
		for _, existing := range list {
			if existing == item {
				found = true
				break
			}
		}
		if !found {
			list = append(list, item)
		}
	}
	return list
}
