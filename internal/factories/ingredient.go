package factories

import "github.com/chrisdamba/messforecast/internal/models"

func ptr(v float64) *float64 { return &v }

// DefaultIngredients is the ingredient catalog with per-diner quantities.
func DefaultIngredients() []models.IngredientRule {
	return []models.IngredientRule{
		{Name: "Rice", Unit: "kg", PerPerson: ptr(0.18), Dishes: []string{"fried rice", "biryani", "curd rice"}},
		{Name: "Wheat Flour", Unit: "kg", PerPerson: ptr(0.12), Dishes: []string{"roti", "paratha"}},
		{Name: "Potato", Unit: "kg", PerPerson: ptr(0.08), Dishes: []string{"aloo curry", "samosa", "potato fry"}},
		{Name: "Onion", Unit: "kg", PerPerson: ptr(0.05), Dishes: []string{"all dishes"}},
		{Name: "Tomato", Unit: "kg", PerPerson: ptr(0.04), Dishes: []string{"all dishes"}},
		{Name: "Milk", Unit: "liters", PerPerson: ptr(0.25), Dishes: []string{"tea", "coffee", "curd rice"}},
		{Name: "Eggs", Unit: "pieces", PerPerson: ptr(1), Dishes: []string{"boiled egg", "omelette"}},
		{Name: "Chicken", Unit: "kg", PerPerson: ptr(0.18), Dishes: []string{"chicken curry", "chicken biryani"}},
		{Name: "Fish", Unit: "kg", PerPerson: ptr(0.18), Dishes: []string{"fish curry", "fish fry"}},
		{Name: "Paneer", Unit: "kg", PerPerson: ptr(0.12), Dishes: []string{"paneer butter masala", "paneer tikka"}},
	}
}
