package pizza

import (
	"fmt"
	"strings"

	"github.com/aretw0/guidance/pkg/domain"
)

func ask(s *domain.Session, prompt, guidance string, options []string) *domain.Instruction {
	return &domain.Instruction{
		Status:    domain.StatusInProgress,
		SessionID: s.ID,
		State:     s.State,
		Task:      taskAskUser,
		Prompt:    prompt,
		Guidance:  guidance,
		Options:   options,
	}
}

// order decodes the session for rendering. Fields were written by this
// package, so a decode failure leaves the prompt with empty values.
func order(s *domain.Session) Order {
	o, _ := DecodeOrder(s.Fields)
	return o
}

func promptCrust(s *domain.Session) *domain.Instruction {
	return ask(s,
		"Great! Let's build your perfect pizza. What kind of crust would you like?\n\nOptions: "+strings.Join(Crusts, ", "),
		"Ask the user this exact question and wait for their response.",
		Crusts,
	)
}

func promptCategory(s *domain.Session) *domain.Instruction {
	return ask(s,
		fmt.Sprintf("Perfect! %s crust it is. Would you like a vegetarian pizza or one with meat?", order(s).Crust),
		"Acknowledge their choice and ask this next question.",
		Categories,
	)
}

func promptToppings(s *domain.Session) *domain.Instruction {
	o := order(s)
	available := ToppingsFor(o.Category)
	inst := ask(s,
		fmt.Sprintf("Great choice! Here are your %s topping options:\n\n%s\n\nPlease list the toppings you'd like (e.g., 'Mushrooms, Olives, Bell Peppers')",
			strings.ToLower(o.Category), strings.Join(available, ", ")),
		"Show the user the topping options and wait for their selection.",
		available,
	)
	inst.Data = map[string]any{"available_toppings": available}
	return inst
}

func promptSize(s *domain.Session) *domain.Instruction {
	return ask(s,
		fmt.Sprintf("Excellent! Your pizza will have: %s\n\nWhat size would you like?\n\nOptions: %s",
			strings.Join(order(s).Toppings, ", "), strings.Join(Sizes, ", ")),
		"Confirm their toppings and ask about size.",
		Sizes,
	)
}

func promptConfirm(s *domain.Session) *domain.Instruction {
	summary := order(s).Summary()
	inst := ask(s,
		fmt.Sprintf("Here's your order:\n\n%s\n\nLooks good? (yes/no)", summary),
		"Show the order summary and ask for confirmation.",
		[]string{"yes", "no"},
	)
	inst.Data = map[string]any{"order_summary": summary}
	return inst
}

func promptComplete(s *domain.Session) *domain.Instruction {
	o := order(s)
	summary := o.Summary()
	return &domain.Instruction{
		Status:    domain.StatusComplete,
		SessionID: s.ID,
		State:     s.State,
		Task:      "respond",
		Message:   fmt.Sprintf("🎉 Order confirmed!\n\n%s\n\nYour pizza will be ready in 20-30 minutes. Thank you!", summary),
		Guidance:  "Tell the user their order is confirmed and provide the summary.",
		Data: map[string]any{
			"order": map[string]any{
				"session_id": s.ID,
				"crust":      o.Crust,
				"category":   o.Category,
				"toppings":   o.Toppings,
				"size":       o.Size,
				"created_at": s.CreatedAt,
			},
			"order_summary": summary,
		},
	}
}
