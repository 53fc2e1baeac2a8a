package models

import "time"

// ForecastPoint is one predicted headcount for a date and meal slot.
type ForecastPoint struct {
	Date           time.Time `json:"date"`
	Slot           MealSlot  `json:"meal"`
	PredictedCount int       `json:"predicted_count"`
}

// DishDemand maps atomic dish names to summed predicted headcount.
type DishDemand map[string]int

func (d DishDemand) Total() int {
	total := 0
	for _, n := range d {
		total += n
	}
	return total
}

type IngredientForecast struct {
	Name              string `json:"-"`
	Unit              string `json:"unit"`
	EstimatedQuantity int    `json:"estimated_quantity"`
}

// ForecastSnapshot is the persisted record of one pipeline run.
type ForecastSnapshot struct {
	ID        string                        `json:"id"`
	Timestamp time.Time                     `json:"timestamp"`
	Forecast  map[string]IngredientForecast `json:"forecast"`
}
