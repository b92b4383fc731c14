package pizza

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/guidance/pkg/domain"
	"github.com/aretw0/guidance/pkg/ports"
	"github.com/aretw0/guidance/pkg/workflow"
)

// Variant is the registry key of the workflow.
const Variant domain.Variant = "pizza"

// States.
const (
	ChooseCrust    domain.StateID = "CHOOSE_CRUST"
	ChooseCategory domain.StateID = "CHOOSE_CATEGORY"
	ChooseToppings domain.StateID = "CHOOSE_TOPPINGS"
	ChooseSize     domain.StateID = "CHOOSE_SIZE"
	Confirm        domain.StateID = "CONFIRM"
	Complete       domain.StateID = "COMPLETE"
)

// Audit steps.
const (
	StepCrustSelected    = "crust_selected"
	StepCategorySelected = "category_selected"
	StepToppingsSelected = "toppings_selected"
	StepSizeSelected     = "size_selected"
	StepOrderConfirmed   = "order_confirmed"
	StepOrderCancelled   = "order_cancelled"
)

const taskAskUser = "ask_user"

// Table builds the pizza transition table.
func Table() *workflow.Table {
	t := &workflow.Table{
		Variant: Variant,
		Initial: ChooseCrust,
		States: map[domain.StateID]workflow.StateSpec{
			ChooseCrust: {
				Kind:   workflow.Collect,
				Handle: handleCrust,
				Prompt: promptCrust,
				Edges:  []domain.StateID{ChooseCategory},
			},
			ChooseCategory: {
				Kind:   workflow.Collect,
				Handle: handleCategory,
				Prompt: promptCategory,
				Edges:  []domain.StateID{ChooseToppings},
			},
			ChooseToppings: {
				Kind:   workflow.Collect,
				Handle: handleToppings,
				Prompt: promptToppings,
				Edges:  []domain.StateID{ChooseSize},
			},
			ChooseSize: {
				Kind:   workflow.Collect,
				Handle: handleSize,
				Prompt: promptSize,
				Edges:  []domain.StateID{Confirm},
			},
			Confirm: {
				Kind:   workflow.Collect,
				Handle: handleConfirm,
				Prompt: promptConfirm,
				Edges:  []domain.StateID{Complete},
			},
			Complete: {
				Kind:   workflow.Terminal,
				Prompt: promptComplete,
			},
		},
	}
	return t.MustValidate()
}

// choose asks the resolver for a value. A nil outcome means the values are usable.
func choose(ctx context.Context, env workflow.Env, q ports.Query, retry string) ([]string, *workflow.Outcome, error) {
	res, err := env.Resolver.Resolve(ctx, q)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve %s: %w", q.Field, err)
	}

	data := map[string]any{"field": q.Field, "input": q.Text}
	switch res.Match {
	case ports.Matched:
		return res.Values, nil, nil
	case ports.Ambiguous:
		out := workflow.Stay(domain.StepAmbiguous,
			fmt.Errorf("%w: %q matches more than one %s", domain.ErrValidationFailed, q.Text, q.Field),
			fmt.Sprintf("Did you mean one of these? %s", strings.Join(res.Candidates, ", ")),
		).WithOptions(res.Candidates...).WithData(data)
		data["candidates"] = res.Candidates
		return nil, &out, nil
	default:
		out := workflow.Stay(domain.StepRetry,
			fmt.Errorf("%w: %q is not a known %s", domain.ErrValidationFailed, q.Text, q.Field),
			retry,
		).WithData(data)
		return nil, &out, nil
	}
}

func handleCrust(ctx context.Context, env workflow.Env, s *domain.Session, in domain.Input) (workflow.Outcome, error) {
	values, stay, err := choose(ctx, env,
		ports.Query{Field: "crust", Text: in.Text, Options: Crusts},
		"I didn't catch that. Please choose from: "+strings.Join(Crusts, ", "),
	)
	if err != nil || stay != nil {
		return deref(stay), err
	}

	return update(s, StepCrustSelected, ChooseCategory, func(o *Order) { o.Crust = values[0] })
}

func handleCategory(ctx context.Context, env workflow.Env, s *domain.Session, in domain.Input) (workflow.Outcome, error) {
	values, stay, err := choose(ctx, env,
		ports.Query{Field: "category", Text: in.Text, Options: Categories},
		"Please say 'vegetarian' or 'meat'.",
	)
	if err != nil || stay != nil {
		return deref(stay), err
	}

	return update(s, StepCategorySelected, ChooseToppings, func(o *Order) {
		if o.Category != values[0] {
			o.Toppings = nil
		}
		o.Category = values[0]
	})
}

func handleToppings(ctx context.Context, env workflow.Env, s *domain.Session, in domain.Input) (workflow.Outcome, error) {
	order, err := DecodeOrder(s.Fields)
	if err != nil {
		return workflow.Outcome{}, err
	}
	available := ToppingsFor(order.Category)

	values, stay, err := choose(ctx, env,
		ports.Query{Field: "toppings", Text: in.Text, Options: available, Multiple: true},
		"I didn't recognize any of those toppings. Please choose from: "+strings.Join(available, ", "),
	)
	if err != nil || stay != nil {
		return deref(stay), err
	}

	return update(s, StepToppingsSelected, ChooseSize, func(o *Order) { o.Toppings = values })
}

func handleSize(ctx context.Context, env workflow.Env, s *domain.Session, in domain.Input) (workflow.Outcome, error) {
	values, stay, err := choose(ctx, env,
		ports.Query{Field: "size", Text: in.Text, Options: Sizes},
		"Please choose from: "+strings.Join(Sizes, ", "),
	)
	if err != nil || stay != nil {
		return deref(stay), err
	}

	return update(s, StepSizeSelected, Confirm, func(o *Order) { o.Size = values[0] })
}

func handleConfirm(ctx context.Context, env workflow.Env, s *domain.Session, in domain.Input) (workflow.Outcome, error) {
	options := append(append([]string(nil), affirmative...), negative...)
	values, stay, err := choose(ctx, env,
		ports.Query{Field: "confirmation", Text: in.Text, Options: options},
		"Please answer yes or no.",
	)
	if err != nil {
		return workflow.Outcome{}, err
	}
	if stay != nil {
		// "yes, looks good" mentions two affirmatives; that is not a real ambiguity.
		if len(stay.Options) == 0 {
			return *stay, nil
		}
		values = stay.Options
	}

	switch polarity(values) {
	case 1:
		order, err := DecodeOrder(s.Fields)
		if err != nil {
			return workflow.Outcome{}, err
		}
		return workflow.Advance(Complete, StepOrderConfirmed, map[string]any{"summary": order.Summary()}), nil
	case -1:
		return workflow.Cancel(StepOrderCancelled,
			"No problem! Your order has been cancelled. Feel free to start a new order anytime.",
			map[string]any{"input": in.Text},
		), nil
	}

	return workflow.Stay(domain.StepAmbiguous,
		fmt.Errorf("%w: %q is both a yes and a no", domain.ErrValidationFailed, in.Text),
		"Please answer yes or no.",
	).WithOptions("yes", "no").WithData(map[string]any{"field": "confirmation", "input": in.Text}), nil
}

// polarity returns 1 when every value is affirmative, -1 when every value is
// negative and 0 otherwise.
func polarity(values []string) int {
	yes, no := 0, 0
	for _, v := range values {
		switch {
		case contains(affirmative, v):
			yes++
		case contains(negative, v):
			no++
		}
	}
	switch {
	case yes > 0 && no == 0:
		return 1
	case no > 0 && yes == 0:
		return -1
	}
	return 0
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func update(s *domain.Session, step string, next domain.StateID, mutate func(*Order)) (workflow.Outcome, error) {
	order, err := DecodeOrder(s.Fields)
	if err != nil {
		return workflow.Outcome{}, err
	}
	mutate(&order)
	if err := order.Encode(s.Fields); err != nil {
		return workflow.Outcome{}, err
	}
	if order.Toppings == nil {
		delete(s.Fields, "toppings")
	}

	data := map[string]any{}
	switch step {
	case StepCrustSelected:
		data["crust"] = order.Crust
	case StepCategorySelected:
		data["category"] = order.Category
	case StepToppingsSelected:
		data["toppings"] = order.Toppings
	case StepSizeSelected:
		data["size"] = order.Size
	}
	return workflow.Advance(next, step, data), nil
}

func deref(o *workflow.Outcome) workflow.Outcome {
	if o == nil {
		return workflow.Outcome{}
	}
	return *o
}
