package models

// MenuEntry is the menu for one weekday. Meal fields hold composite dish strings
// such as "Rice with Dal" and may be empty.
type MenuEntry struct {
	Day       string `json:"day" bson:"day" mapstructure:"day"`
	Breakfast string `json:"breakfast" bson:"breakfast" mapstructure:"breakfast"`
	Lunch     string `json:"lunch" bson:"lunch" mapstructure:"lunch"`
	Dinner    string `json:"dinner" bson:"dinner" mapstructure:"dinner"`
}

func (m MenuEntry) Dish(slot MealSlot) string {
	switch slot {
	case Breakfast:
		return m.Breakfast
	case Lunch:
		return m.Lunch
	case Dinner:
		return m.Dinner
	}
	return ""
}

// IngredientRule describes how one ingredient's usage is derived from dish demand.
// A nil PerPerson means one unit per diner.
type IngredientRule struct {
	Name      string   `json:"name" bson:"name" mapstructure:"name"`
	Unit      string   `json:"unit" bson:"unit" mapstructure:"unit"`
	PerPerson *float64 `json:"perPerson,omitempty" bson:"perPerson,omitempty" mapstructure:"perPerson"`
	Dishes    []string `json:"dishes" bson:"dishes" mapstructure:"dishes"`
}

func (r IngredientRule) PerPersonQuantity() float64 {
	if r.PerPerson == nil {
		return 1
	}
	return *r.PerPerson
}
