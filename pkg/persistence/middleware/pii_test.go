package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureArchiver struct {
	got *domain.Session
}

func (c *captureArchiver) Archive(_ context.Context, s *domain.Session) (string, error) {
	c.got = s
	return "TR-0001", nil
}

func TestPIIMiddleware_Masking(t *testing.T) {
	capture := &captureArchiver{}
	archiver := middleware.NewPIIMiddleware([]string{"^patient_", "ssn"})(capture)

	s := triageSession("pii")
	s.Fields["chief_complaint"] = "Cardiac"
	s.Fields["medical_history"] = map[string]any{
		"conditions": []any{"diabetes"},
		"ssn_number": "999-99-9999",
	}

	id, err := archiver.Archive(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "TR-0001", id)

	require.NotNil(t, capture.got)
	assert.Equal(t, middleware.Mask, capture.got.Fields["patient_id"])
	assert.Equal(t, middleware.Mask, capture.got.Fields["patient_statement"])
	assert.Equal(t, "Cardiac", capture.got.Fields["chief_complaint"])
	history := capture.got.Fields["medical_history"].(map[string]any)
	assert.Equal(t, middleware.Mask, history["ssn_number"])
	assert.Equal(t, []any{"diabetes"}, history["conditions"])
	assert.Equal(t, middleware.Mask, capture.got.Audit[0].Data["patient_id"])

	// The live session is not modified.
	assert.Equal(t, "P001", s.Fields["patient_id"])
	assert.Equal(t, "P001", s.Audit[0].Data["patient_id"])
}

func TestCompilePatterns(t *testing.T) {
	patterns, err := middleware.CompilePatterns([]string{"^patient_", "ssn"})
	require.NoError(t, err)
	assert.Len(t, patterns, 2)

	_, err = middleware.CompilePatterns([]string{"("})
	assert.ErrorContains(t, err, "invalid pii pattern")
}
