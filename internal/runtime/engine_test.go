package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/workflows/pizza"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_PizzaOrder(t *testing.T) {
	f := newFixture(t)

	inst := f.start(t, pizza.Variant)
	assert.Equal(t, domain.StatusInProgress, inst.Status)
	assert.Equal(t, pizza.ChooseCrust, inst.State)
	assert.Equal(t, pizza.Crusts, inst.Options)
	require.NotEmpty(t, inst.SessionID)
	id := inst.SessionID

	inst = f.say(t, id, "thin")
	assert.Equal(t, pizza.ChooseCategory, inst.State)
	assert.Contains(t, inst.Prompt, "Thin crust it is")

	inst = f.say(t, id, "vegetarian")
	assert.Equal(t, pizza.ChooseToppings, inst.State)
	assert.Equal(t, pizza.VegetarianToppings, inst.Options)

	inst = f.say(t, id, "mushrooms and olives")
	assert.Equal(t, pizza.ChooseSize, inst.State)
	assert.Contains(t, inst.Prompt, "Mushrooms, Olives")

	inst = f.say(t, id, "large")
	assert.Equal(t, pizza.Confirm, inst.State)
	assert.Contains(t, inst.Data["order_summary"], `Large (14")`)

	inst = f.say(t, id, "yes")
	assert.Equal(t, domain.StatusComplete, inst.Status)
	assert.Equal(t, pizza.Complete, inst.State)
	assert.Contains(t, inst.Message, "Order confirmed")
	require.Len(t, inst.AuditTrail, 6)
	assert.Equal(t, domain.StepSessionStarted, inst.AuditTrail[0].Step)
	assert.Equal(t, pizza.StepOrderConfirmed, inst.AuditTrail[5].Step)

	order := inst.Data["order"].(map[string]any)
	assert.Equal(t, "Thin", order["crust"])
	assert.Equal(t, pizza.CategoryVegetarian, order["category"])
	assert.Equal(t, []string{"Mushrooms", "Olives"}, order["toppings"])
	assert.Equal(t, `Large (14")`, order["size"])

	// Absorption: the completed session refuses further input and records nothing.
	_, err := f.engine.Continue(context.Background(), id, domain.Input{Text: "yes"})
	assert.ErrorIs(t, err, domain.ErrSessionTerminated)
	assert.Len(t, f.load(t, id).Audit, 6)
}

func TestEngine_StayInStateOnNoMatch(t *testing.T) {
	f := newFixture(t)
	id := f.start(t, pizza.Variant).SessionID

	inst := f.say(t, id, "pineapple")
	assert.True(t, inst.StayInState)
	assert.Equal(t, domain.StatusInProgress, inst.Status)
	assert.Equal(t, pizza.ChooseCrust, inst.State)
	assert.Contains(t, inst.Prompt, "I didn't catch that")
	assert.Contains(t, inst.Data["retry_reason"], "validation failed")

	s := f.load(t, id)
	assert.Equal(t, pizza.ChooseCrust, s.State)
	require.Len(t, s.Audit, 2)
	assert.Equal(t, domain.StepRetry, s.Audit[1].Step)
	assert.Equal(t, pizza.ChooseCrust, s.Audit[1].State)
}

func TestEngine_AmbiguousInputReturnsCandidates(t *testing.T) {
	f := newFixture(t)
	id := f.start(t, pizza.Variant).SessionID

	inst := f.say(t, id, "th")
	assert.True(t, inst.StayInState)
	assert.Equal(t, []string{"Thin", "Thick"}, inst.Options)

	s := f.load(t, id)
	assert.Equal(t, pizza.ChooseCrust, s.State)
	assert.Equal(t, domain.StepAmbiguous, s.Audit[len(s.Audit)-1].Step)
}

func TestEngine_PizzaCancelledAtConfirmation(t *testing.T) {
	f := newFixture(t)
	id := f.start(t, pizza.Variant).SessionID
	for _, answer := range []string{"regular", "meat", "pepperoni, bacon", "medium"} {
		f.say(t, id, answer)
	}

	inst := f.say(t, id, "no thanks")
	assert.Equal(t, domain.StatusCancelled, inst.Status)
	assert.Contains(t, inst.Message, "cancelled")
	assert.Equal(t, pizza.StepOrderCancelled, inst.AuditTrail[len(inst.AuditTrail)-1].Step)

	_, err := f.engine.Inspect(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = f.engine.Continue(context.Background(), id, domain.Input{Text: "yes"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_UnclearConfirmationStays(t *testing.T) {
	f := newFixture(t)
	id := f.start(t, pizza.Variant).SessionID
	for _, answer := range []string{"thick", "veg", "spinach", "small"} {
		f.say(t, id, answer)
	}

	inst := f.say(t, id, "hmm")
	assert.True(t, inst.StayInState)
	assert.Equal(t, pizza.Confirm, inst.State)

	inst = f.say(t, id, "yes, looks good")
	assert.Equal(t, domain.StatusComplete, inst.Status)
}

func TestEngine_StartUnknownVariant(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Start(context.Background(), "sushi")
	assert.ErrorIs(t, err, domain.ErrUnknownVariant)

	ids, err := f.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestEngine_ContinueUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Continue(context.Background(), "nope", domain.Input{Text: "thin"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_InspectNeverMutates(t *testing.T) {
	f := newFixture(t)
	id := f.start(t, pizza.Variant).SessionID
	f.say(t, id, "thin")

	snap, err := f.engine.Inspect(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, snap.Terminal)
	assert.Equal(t, pizza.ChooseCategory, snap.Session.State)

	// Mutating the snapshot must not leak into the store.
	snap.Session.State = pizza.Complete
	snap.Session.Fields["crust"] = "Stuffed"
	snap.Session.Audit = nil

	again, err := f.engine.Inspect(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, pizza.ChooseCategory, again.Session.State)
	assert.Equal(t, "Thin", again.Session.Fields["crust"])
	assert.Len(t, again.Session.Audit, 2)
	assert.Equal(t, f.load(t, id).UpdatedAt, again.Session.UpdatedAt)
}

func TestEngine_OneAuditEntryPerCall(t *testing.T) {
	f := newFixture(t)
	id := f.start(t, pizza.Variant).SessionID

	inputs := []string{"xyz", "thin", "chocolate", "meat", "ham", "??", "extra large", "yes"}
	for i, in := range inputs {
		f.say(t, id, in)
		assert.Len(t, f.load(t, id).Audit, i+2, "after input %q", in)
	}
}
