package factories

import (
	"github.com/chrisdamba/messforecast/internal/models"
)

// DefaultMenu is the mess's standing weekly menu.
func DefaultMenu() []models.MenuEntry {
	return []models.MenuEntry{
		{Day: "monday", Breakfast: "poha with tea", Lunch: "roti with aloo curry", Dinner: "fried rice with chicken curry"},
		{Day: "tuesday", Breakfast: "idli with sambar", Lunch: "roti with paneer butter masala", Dinner: "biryani with chicken curry"},
		{Day: "wednesday", Breakfast: "upma with tea", Lunch: "roti with potato fry", Dinner: "curd rice with aloo curry"},
		{Day: "thursday", Breakfast: "paratha with tea", Lunch: "roti with fish curry", Dinner: "biryani with fish fry"},
		{Day: "friday", Breakfast: "dosa with chutney", Lunch: "roti with paneer tikka", Dinner: "fried rice with chicken curry"},
		{Day: "saturday", Breakfast: "boiled egg with tea", Lunch: "roti with chicken curry", Dinner: "paneer butter masala with roti"},
		{Day: "sunday", Breakfast: "omelette with tea", Lunch: "roti with aloo curry", Dinner: "biryani with chicken curry"},
	}
}

type MenuFactory struct {
	src *Source
}

func NewMenuFactory(src *Source) *MenuFactory {
	return &MenuFactory{src: src}
}

var (
	breakfastMains = []string{"poha", "idli", "upma", "paratha", "dosa", "boiled egg", "omelette"}
	breakfastSides = []string{"tea", "coffee", "sambar", "chutney"}
	lunchMains     = []string{"aloo curry", "paneer butter masala", "potato fry", "fish curry", "paneer tikka", "chicken curry", "dal"}
	dinnerStaples  = []string{"fried rice", "biryani", "curd rice", "roti"}
	dinnerCurries  = []string{"chicken curry", "aloo curry", "fish fry", "paneer butter masala"}
)

// CreateWeeklyMenu composes a random menu for every weekday from the mess's dish pool.
func (mf *MenuFactory) CreateWeeklyMenu() []models.MenuEntry {
	entries := make([]models.MenuEntry, 0, len(models.Weekdays))
	for _, day := range models.Weekdays {
		entries = append(entries, models.MenuEntry{
			Day:       string(day),
			Breakfast: mf.pick(breakfastMains) + " with " + mf.pick(breakfastSides),
			Lunch:     "roti with " + mf.pick(lunchMains),
			Dinner:    mf.pick(dinnerStaples) + " with " + mf.pick(dinnerCurries),
		})
	}
	return entries
}

func (mf *MenuFactory) pick(options []string) string {
	return options[mf.src.fake.IntBetween(0, len(options)-1)]
}
