package registry_test

import (
	"context"
	"testing"

	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/registry"
	"github.com/aretw0/guidance/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tinyTable(v domain.Variant) *workflow.Table {
	prompt := func(s *domain.Session) *domain.Instruction { return &domain.Instruction{Status: domain.StatusInProgress} }
	return &workflow.Table{
		Variant: v,
		Initial: "ASK",
		States: map[domain.StateID]workflow.StateSpec{
			"ASK": {
				Kind:   workflow.Collect,
				Prompt: prompt,
				Edges:  []domain.StateID{"DONE"},
				Handle: func(context.Context, workflow.Env, *domain.Session, domain.Input) (workflow.Outcome, error) {
					return workflow.Advance("DONE", "asked", nil), nil
				},
			},
			"DONE": {Kind: workflow.Terminal, Prompt: prompt},
		},
	}
}

func TestRegistry(t *testing.T) {
	r, err := registry.NewRegistry(tinyTable("b"), tinyTable("a"))
	require.NoError(t, err)

	assert.Equal(t, []domain.Variant{"a", "b"}, r.Variants())

	tbl, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, domain.Variant("a"), tbl.Variant)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, domain.ErrUnknownVariant)
}

func TestRegistry_RejectsInvalidTable(t *testing.T) {
	bad := tinyTable("bad")
	bad.Initial = "NOPE"

	_, err := registry.NewRegistry(bad)
	assert.ErrorIs(t, err, workflow.ErrInvalidTable)
}
