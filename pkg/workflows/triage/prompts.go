package triage

import (
	"fmt"

	"github.com/aretw0/guidance/pkg/domain"
)

const emergencyMessage = "🚨 EMERGENCY: Based on your symptoms, you need immediate medical attention.\n\n" +
	"Please do ONE of the following RIGHT NOW:\n" +
	"1. Call 911 (or your local emergency number)\n" +
	"2. Go to the nearest Emergency Department\n" +
	"3. If with someone, have them drive you to the ER\n\n" +
	"Do NOT wait. Do NOT drive yourself if symptoms worsen."

func record(s *domain.Session) Record {
	r, _ := DecodeRecord(s.Fields)
	return r
}

func collect(s *domain.Session, task, guidance, prompt, protocol string, required ...string) *domain.Instruction {
	return &domain.Instruction{
		Status:       domain.StatusInProgress,
		SessionID:    s.ID,
		State:        s.State,
		Task:         task,
		Guidance:     guidance,
		Prompt:       prompt,
		Protocol:     protocol,
		RequiredData: required,
	}
}

func promptRedFlags(s *domain.Session) *domain.Instruction {
	return collect(s,
		"screen_red_flags",
		"CRITICAL: Before anything else, screen for emergency symptoms. This is mandatory protocol. "+
			"Classify the patient's statement and report requires_emergency_protocol with any critical_symptoms.",
		"Before we begin, I need to ask about any immediate concerns:\n\n"+
			"Are you experiencing any of the following RIGHT NOW:\n"+
			"- Severe chest pain or pressure\n"+
			"- Difficulty breathing or shortness of breath\n"+
			"- Loss of consciousness or fainting\n"+
			"- Severe bleeding\n"+
			"- Signs of stroke (face drooping, arm weakness, speech difficulty)\n"+
			"- Severe allergic reaction (swelling, difficulty swallowing)\n\n"+
			"Please answer yes or no, and describe any symptoms.",
		"Emergency Department Triage Protocol - Red Flag Screening (Mandatory)",
		"requires_emergency_protocol", "critical_symptoms", "symptoms_detected", "patient_statement",
	)
}

func promptChiefComplaint(s *domain.Session) *domain.Instruction {
	return collect(s,
		"gather_chief_complaint",
		"Red flag screening passed. Now gather the chief complaint. Ask the patient what brought them in today.",
		"Thank you. Now, what brings you in today? What is the main issue you're experiencing?",
		"Standard Triage - Chief Complaint",
		"chief_complaint", "symptom_description",
	)
}

func promptHistory(s *domain.Session) *domain.Instruction {
	return collect(s,
		"check_medical_history",
		"Use available tools to check patient's medical history. "+
			"Look for: chronic conditions, medications, allergies, previous similar episodes. "+
			"This helps assess risk factors.",
		"I'm checking your medical history. Do you have any chronic conditions, take any medications, or have any allergies I should know about?",
		"Standard Triage - Medical History Review",
		"medical_history", "high_risk_conditions", "medications", "allergies",
	)
}

func promptVitals(s *domain.Session) *domain.Instruction {
	return collect(s,
		"get_vital_signs",
		"MANDATORY: Obtain vital signs. Use available monitoring tools. "+
			"Required: Blood pressure, heart rate, temperature, respiratory rate, oxygen saturation. "+
			"Flag any critical values immediately.",
		"Now I need to check your vital signs. This is a required step for proper assessment.",
		"Standard Triage - Vital Signs (Mandatory)",
		"vitals", "critical_values",
	)
}

func promptAssessment(s *domain.Session) *domain.Instruction {
	r := record(s)
	inst := collect(s,
		"assess_severity",
		"All required data collected. Now assess overall severity and determine appropriate triage level and care recommendation.",
		"",
		"Final Triage Assessment",
	)
	inst.Data = map[string]any{
		"data_for_assessment": map[string]any{
			"red_flags":       r.RedFlags,
			"chief_complaint": r.ChiefComplaint,
			"medical_history": r.MedicalHistory,
			"vitals":          r.Vitals,
			"severity_score":  s.Severity,
		},
	}
	return inst
}

func promptComplete(s *domain.Session) *domain.Instruction {
	r := record(s)
	return &domain.Instruction{
		Status:    domain.StatusComplete,
		SessionID: s.ID,
		State:     s.State,
		Task:      "deliver_assessment",
		Guidance:  "Share the assessment with the patient exactly as written.",
		Message:   finalMessage(r),
		Protocol:  "Final Triage Assessment",
		Data: map[string]any{
			"triage_level":   string(r.TriageLevel),
			"recommendation": r.Recommendation,
			"next_steps":     r.TriageLevel.NextSteps(),
			"severity_score": s.Severity,
			"protocol_compliance": map[string]any{
				"all_steps_completed": true,
				"red_flags_screened":  r.RedFlagsChecked,
				"vitals_obtained":     len(r.Vitals) > 0,
				"history_reviewed":    r.HistoryReviewed(),
			},
		},
	}
}

func promptEmergency(s *domain.Session) *domain.Instruction {
	r := record(s)
	severity := r.SeverityLabel
	if severity == "" {
		severity = defaultEmergencyLabel
	}
	patientID := r.PatientID
	if patientID == "" {
		patientID = defaultPatientID
	}
	complaint := r.PatientStatement
	if complaint == "" {
		complaint = r.ChiefComplaint
	}

	return &domain.Instruction{
		Status:       domain.StatusEmergencySaveRequired,
		SessionID:    s.ID,
		State:        s.State,
		Task:         "save_triage_record",
		Guidance:     "Emergency triage completed. Save the triage record to patient file before final response, then report the record_id.",
		Protocol:     "Emergency Escalation Protocol - Record Saving",
		RequiredData: []string{"record_id"},
		Data: map[string]any{
			"decision":           "EMERGENCY_ESCALATION",
			"triage_level":       string(LevelImmediate),
			"red_flags_detected": r.RedFlags,
			"reason":             r.EscalationReason,
			"emergency_message":  emergencyMessage,
			"triage_data": map[string]any{
				"patient_id":   patientID,
				"complaint":    complaint,
				"severity":     severity,
				"triage_level": string(LevelImmediate),
				"red_flags":    r.RedFlags,
			},
		},
	}
}

func promptEscalationComplete(s *domain.Session) *domain.Instruction {
	r := record(s)
	return &domain.Instruction{
		Status:    domain.StatusEmergency,
		SessionID: s.ID,
		State:     s.State,
		Task:      "emergency_response",
		Guidance:  "Triage record saved. Emergency protocol complete.",
		Message:   emergencyMessage,
		Protocol:  "Emergency Escalation Protocol - Complete",
		Data: map[string]any{
			"decision":           "EMERGENCY_ESCALATION",
			"triage_level":       string(LevelImmediate),
			"red_flags_detected": r.RedFlags,
			"record_id":          r.SavedRecordID,
		},
	}
}

func finalMessage(r Record) string {
	vitals := "Within normal limits"
	if r.VitalsCritical {
		vitals = "Critical values detected"
	}
	history := "Reviewed"
	if r.HighRisk() {
		history = "Risk factors present"
	}

	return fmt.Sprintf(`TRIAGE ASSESSMENT COMPLETE

Triage Level: %s
Recommendation: %s

Based on:
- Symptoms: %s
- Vital signs: %s
- Medical history: %s

Next Steps:
%s

⚠️ If symptoms worsen or new severe symptoms develop, seek emergency care immediately.

Protocol Compliance: All required steps completed ✓`,
		r.TriageLevel, r.Recommendation, r.ChiefComplaint, vitals, history, r.TriageLevel.NextSteps())
}
