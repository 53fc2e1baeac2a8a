package factories

import (
	"time"

	"github.com/lucsky/cuid"

	"github.com/chrisdamba/messforecast/internal/models"
)

type OrderFactory struct {
	src *Source
	// Appetite is the percentage chance a diner selects any given meal.
	Appetite int
}

func NewOrderFactory(src *Source) *OrderFactory {
	return &OrderFactory{src: src, Appetite: 60}
}

// CreateOrder returns one diner's selections for the week starting at weekStart, placed at a
// random time during that week.
func (of *OrderFactory) CreateOrder(userID string, weekStart time.Time) models.Order {
	start := models.StartOfWeek(weekStart)
	order := models.Order{
		ID:         cuid.New(),
		UserID:     userID,
		Status:     "completed",
		CreatedAt:  of.src.fake.Time().TimeBetween(start, start.AddDate(0, 0, 7)).UTC(),
		Selections: make(map[models.Weekday]map[models.MealSlot]bool, len(models.Weekdays)),
	}
	for _, day := range models.Weekdays {
		meals := make(map[models.MealSlot]bool, len(models.MealSlots))
		for _, slot := range models.MealSlots {
			meals[slot] = of.src.fake.IntBetween(1, 100) <= of.Appetite
		}
		order.Selections[day] = meals
	}
	return order
}

// CreateDiners returns n diner IDs backed by fake e-mail addresses.
func (of *OrderFactory) CreateDiners(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = of.src.fake.Internet().Email()
	}
	return ids
}
