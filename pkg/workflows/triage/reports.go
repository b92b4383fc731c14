package triage

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/guidance/pkg/domain"
)

// Signals may accompany any report and feed the escalation policy.
type Signals struct {
	RequiresEmergencyProtocol bool     `mapstructure:"requires_emergency_protocol"`
	CriticalSymptoms          []string `mapstructure:"critical_symptoms"`
}

// Classification is the output of the agent's symptom classifier.
type Classification struct {
	RequiresEmergencyProtocol *bool    `mapstructure:"requires_emergency_protocol"`
	CriticalSymptoms          []string `mapstructure:"critical_symptoms"`
	Severity                  string   `mapstructure:"severity"`
}

// RedFlagReport is submitted at RED_FLAG_SCREENING. The classification may be
// reported flat or nested under "classification".
type RedFlagReport struct {
	RequiresEmergencyProtocol *bool           `mapstructure:"requires_emergency_protocol" validate:"required"`
	CriticalSymptoms          []string        `mapstructure:"critical_symptoms"`
	Severity                  string          `mapstructure:"severity"`
	SymptomsDetected          []string        `mapstructure:"symptoms_detected"`
	PatientStatement          string          `mapstructure:"patient_statement"`
	MedicalHistory            map[string]any  `mapstructure:"medical_history"`
	Classification            *Classification `mapstructure:"classification" validate:"-"`
}

// ChiefComplaintReport is submitted at CHIEF_COMPLAINT.
type ChiefComplaintReport struct {
	Signals            `mapstructure:",squash"`
	ChiefComplaint     string `mapstructure:"chief_complaint" validate:"required"`
	SymptomDescription string `mapstructure:"symptom_description"`
}

// HistoryReport is submitted at MEDICAL_HISTORY.
type HistoryReport struct {
	Signals            `mapstructure:",squash"`
	MedicalHistory     map[string]any `mapstructure:"medical_history" validate:"required"`
	HighRiskConditions []string       `mapstructure:"high_risk_conditions"`
	Medications        []string       `mapstructure:"medications"`
	Allergies          []string       `mapstructure:"allergies"`
}

// VitalsReport is submitted at VITAL_SIGNS.
type VitalsReport struct {
	Signals        `mapstructure:",squash"`
	Vitals         map[string]any `mapstructure:"vitals" validate:"required"`
	CriticalValues []string       `mapstructure:"critical_values"`
}

// AssessmentReport is submitted at SEVERITY_ASSESSMENT. It carries no required data.
type AssessmentReport struct {
	Signals `mapstructure:",squash"`
	Notes   string `mapstructure:"notes"`
}

// SaveRecordReport acknowledges the persisted triage record on the emergency branch.
type SaveRecordReport struct {
	RecordID string `mapstructure:"record_id" validate:"required"`
	Status   string `mapstructure:"status"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// decodeReport decodes a raw agent report into T and validates it.
// Every failure wraps domain.ErrValidationFailed.
func decodeReport[T any](raw map[string]any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(raw); err != nil {
		return out, fmt.Errorf("%w: malformed report: %v", domain.ErrValidationFailed, err)
	}
	if n, ok := any(&out).(interface{ normalize() }); ok {
		n.normalize()
	}

	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			missing := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				missing = append(missing, fe.Field())
			}
			return out, &MissingDataError{Fields: missing}
		}
		return out, fmt.Errorf("%w: %v", domain.ErrValidationFailed, err)
	}
	return out, nil
}

// MissingDataError lists the report fields that failed validation.
type MissingDataError struct {
	Fields []string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("%s: missing or invalid report data: %s", domain.ErrValidationFailed, strings.Join(e.Fields, ", "))
}

// Unwrap allows errors.Is(err, domain.ErrValidationFailed).
func (e *MissingDataError) Unwrap() error {
	return domain.ErrValidationFailed
}

// normalize lifts the nested classification into the flat fields.
// Flat values win when both are present.
func (r *RedFlagReport) normalize() {
	c := r.Classification
	if c == nil {
		return
	}
	if r.RequiresEmergencyProtocol == nil {
		r.RequiresEmergencyProtocol = c.RequiresEmergencyProtocol
	}
	if len(r.CriticalSymptoms) == 0 {
		r.CriticalSymptoms = c.CriticalSymptoms
	}
	if r.Severity == "" {
		r.Severity = c.Severity
	}
}
