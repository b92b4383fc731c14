package pizza

// Menu options.
var (
	Crusts = []string{"Thin", "Regular", "Thick", "Gluten-free"}
	Sizes  = []string{`Small (10")`, `Medium (12")`, `Large (14")`, `Extra Large (16")`}

	VegetarianToppings = []string{
		"Mushrooms", "Olives", "Bell Peppers", "Onions",
		"Tomatoes", "Spinach", "Artichokes", "Pineapple",
	}
	MeatToppings = []string{
		"Pepperoni", "Sausage", "Ham", "Bacon",
		"Chicken", "Ground Beef", "Salami",
	}

	Categories = []string{CategoryVegetarian, CategoryMeat}
)

// Topping categories.
const (
	CategoryVegetarian = "Vegetarian"
	CategoryMeat       = "Meat"
)

// ToppingsFor returns the toppings available for a category.
func ToppingsFor(category string) []string {
	if category == CategoryMeat {
		return MeatToppings
	}
	return VegetarianToppings
}

var (
	affirmative = []string{"yes", "yep", "yeah", "sure", "confirm", "looks good", "ok", "okay"}
	negative    = []string{"no", "nope", "cancel"}
)
