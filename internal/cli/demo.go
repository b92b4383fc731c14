package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/guidance"
	"github.com/aretw0/guidance/internal/presentation/tui"
	"github.com/aretw0/guidance/pkg/domain"
)

// RunPizzaDemo takes a pizza order over in/out. With render set, prompts
// are rendered as markdown for the terminal.
func RunPizzaDemo(ctx context.Context, engine *guidance.Engine, in io.Reader, out io.Writer, render bool) (*domain.Instruction, error) {
	r := guidance.NewRunner(in, out)
	if render {
		renderer, err := tui.NewRenderer()
		if err != nil {
			return nil, fmt.Errorf("error creating renderer: %w", err)
		}
		r.Renderer = renderer
	}
	return r.Run(ctx, engine, "pizza")
}

// Scenario is a scripted patient for the triage demo.
type Scenario struct {
	Title            string
	PatientID        string
	PatientStatement string
	Complaint        string
	Conditions       []string
	HighRisk         []string
	Vitals           map[string]any
}

// Scenarios are the built-in triage demo patients.
var Scenarios = map[string]Scenario{
	"emergency": {
		Title:            "Cardiac Emergency",
		PatientID:        "P001",
		PatientStatement: "I have severe chest pain that started 30 minutes ago and some difficulty breathing",
		Complaint:        "Crushing chest pain, radiating to left arm",
		Conditions:       []string{"hypertension", "high cholesterol"},
		HighRisk:         []string{"cardiac history"},
		Vitals: map[string]any{
			"blood_pressure":    map[string]any{"value": "180/110", "status": "CRITICAL"},
			"heart_rate":        map[string]any{"value": 115, "status": "CRITICAL"},
			"oxygen_saturation": map[string]any{"value": 91, "status": "LOW"},
		},
	},
	"minor": {
		Title:            "Minor Complaint",
		PatientID:        "P002",
		PatientStatement: "I have a mild headache for the past 2 hours",
		Complaint:        "Just a headache, nothing severe",
		Vitals: map[string]any{
			"blood_pressure":    map[string]any{"value": "120/80", "status": "NORMAL"},
			"heart_rate":        map[string]any{"value": 72, "status": "NORMAL"},
			"oxygen_saturation": map[string]any{"value": 98, "status": "NORMAL"},
		},
	},
}

// ScenarioNames lists the built-in scenarios.
func ScenarioNames() []string {
	return []string{"emergency", "minor"}
}

var (
	criticalSymptoms = []string{
		"chest pain", "difficulty breathing", "shortness of breath", "cannot breathe",
		"severe bleeding", "uncontrolled bleeding", "altered consciousness", "unresponsive",
		"severe head injury", "stroke symptoms", "severe abdominal pain",
	}
	moderateSymptoms = []string{
		"persistent cough", "fever", "vomiting", "moderate pain", "dizziness", "weakness", "rash", "swelling",
	}
)

// Classify is the demo's symptom classifier. It plays the external
// collaborator that interprets free text; the engine never does.
func Classify(statement string) map[string]any {
	lower := strings.ToLower(statement)
	critical := []string{}
	for _, s := range criticalSymptoms {
		if strings.Contains(lower, s) {
			critical = append(critical, s)
		}
	}
	moderate := []string{}
	for _, s := range moderateSymptoms {
		if strings.Contains(lower, s) {
			moderate = append(moderate, s)
		}
	}

	severity := "low"
	switch {
	case len(critical) > 0:
		severity = "critical"
	case len(moderate) > 0:
		severity = "moderate"
	}
	return map[string]any{
		"requires_emergency_protocol": len(critical) > 0,
		"critical_symptoms":           critical,
		"severity":                    severity,
	}
}

// criticalVitals lists the vitals flagged CRITICAL or LOW.
func criticalVitals(vitals map[string]any) []string {
	var out []string
	for _, name := range []string{"blood_pressure", "heart_rate", "oxygen_saturation"} {
		v, ok := vitals[name].(map[string]any)
		if !ok {
			continue
		}
		if status, _ := v["status"].(string); status == "CRITICAL" || status == "LOW" {
			out = append(out, name)
		}
	}
	return out
}

// report answers the instruction for sc the way an agent would.
func (sc Scenario) report(inst *domain.Instruction) map[string]any {
	switch inst.State {
	case "RED_FLAG_SCREENING":
		return map[string]any{
			"patient_statement": sc.PatientStatement,
			"classification":    Classify(sc.PatientStatement),
		}
	case "CHIEF_COMPLAINT":
		return map[string]any{"chief_complaint": sc.Complaint}
	case "MEDICAL_HISTORY":
		return map[string]any{
			"medical_history":      map[string]any{"patient_id": sc.PatientID, "conditions": sc.Conditions},
			"high_risk_conditions": sc.HighRisk,
		}
	case "VITAL_SIGNS":
		return map[string]any{"vitals": sc.Vitals, "critical_values": criticalVitals(sc.Vitals)}
	case "EMERGENCY_ESCALATION":
		return map[string]any{"record_id": "TR-" + strings.ToUpper(inst.SessionID[:8]), "status": "saved"}
	default:
		return map[string]any{}
	}
}

// maxDemoSteps bounds a scripted run in case a scenario stops advancing.
const maxDemoSteps = 16

// RunTriageScenario drives a triage session with scripted reports and
// narrates every exchange on out.
func RunTriageScenario(ctx context.Context, engine *guidance.Engine, name string, out io.Writer) (*domain.Instruction, error) {
	sc, ok := Scenarios[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q (available: %s)", name, strings.Join(ScenarioNames(), ", "))
	}
	fmt.Fprintf(out, "Scenario: %s\n\n", sc.Title)

	inst, err := engine.Start(ctx, "triage")
	if err != nil {
		return nil, err
	}

	for step := 0; step < maxDemoSteps; step++ {
		fmt.Fprintf(out, "[%s] %s\n", inst.State, inst.Status)
		if inst.Guidance != "" {
			fmt.Fprintf(out, "  guide: %s\n", inst.Guidance)
		}
		if inst.Status.Terminal() {
			if inst.Message != "" {
				fmt.Fprintf(out, "\n%s\n", inst.Message)
			}
			return inst, nil
		}

		report := sc.report(inst)
		raw, _ := json.Marshal(report)
		fmt.Fprintf(out, "  agent: %s\n", raw)

		inst, err = engine.Continue(ctx, inst.SessionID, domain.Input{Report: report})
		if err != nil {
			return nil, err
		}
	}
	return inst, fmt.Errorf("scenario %q did not finish within %d steps", name, maxDemoSteps)
}
