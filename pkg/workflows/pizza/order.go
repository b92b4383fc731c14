package pizza

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Order is the typed view of a pizza session's fields.
type Order struct {
	Crust    string   `mapstructure:"crust,omitempty" json:"crust,omitempty"`
	Category string   `mapstructure:"category,omitempty" json:"category,omitempty"`
	Toppings []string `mapstructure:"toppings,omitempty" json:"toppings,omitempty"`
	Size     string   `mapstructure:"size,omitempty" json:"size,omitempty"`
}

// DecodeOrder reads an Order out of session fields.
func DecodeOrder(fields map[string]any) (Order, error) {
	var o Order
	if err := mapstructure.Decode(fields, &o); err != nil {
		return Order{}, fmt.Errorf("failed to decode order: %w", err)
	}
	return o, nil
}

// Encode writes the order back into session fields.
func (o Order) Encode(fields map[string]any) error {
	var m map[string]any
	if err := mapstructure.Decode(o, &m); err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}
	for k, v := range m {
		fields[k] = v
	}
	return nil
}

// Summary renders the order as a bullet list.
func (o Order) Summary() string {
	return strings.Join([]string{
		"• Size: " + o.Size,
		"• Crust: " + o.Crust,
		"• Category: " + o.Category,
		"• Toppings: " + strings.Join(o.Toppings, ", "),
	}, "\n")
}
