package models

import (
	"fmt"
	"time"
)

type MealCounts struct {
	Breakfast int `json:"breakfast" bson:"breakfast" mapstructure:"breakfast"`
	Lunch     int `json:"lunch" bson:"lunch" mapstructure:"lunch"`
	Dinner    int `json:"dinner" bson:"dinner" mapstructure:"dinner"`
}

func (c MealCounts) Get(slot MealSlot) int {
	switch slot {
	case Breakfast:
		return c.Breakfast
	case Lunch:
		return c.Lunch
	case Dinner:
		return c.Dinner
	}
	return 0
}

func (c *MealCounts) Add(slot MealSlot, n int) {
	switch slot {
	case Breakfast:
		c.Breakfast += n
	case Lunch:
		c.Lunch += n
	case Dinner:
		c.Dinner += n
	}
}

// WeeklyAttendanceRecord is one week of observed selection counts per weekday and meal slot.
type WeeklyAttendanceRecord struct {
	WeekStart time.Time              `json:"weekStart" bson:"weekStart"`
	Data      map[Weekday]MealCounts `json:"data" bson:"data"`
}

// Count returns the observed count for the series key. An empty Day sums every weekday.
func (r WeeklyAttendanceRecord) Count(key SeriesKey) (int, bool) {
	if key.Day == "" {
		if len(r.Data) == 0 {
			return 0, false
		}
		total := 0
		for _, counts := range r.Data {
			total += counts.Get(key.Slot)
		}
		return total, true
	}
	counts, ok := r.Data[key.Day]
	if !ok {
		return 0, false
	}
	return counts.Get(key.Slot), true
}

// SeriesKey identifies one historical series. Day is empty for the aggregated meal-type series.
type SeriesKey struct {
	Day  Weekday  `json:"day,omitempty"`
	Slot MealSlot `json:"meal"`
}

func (k SeriesKey) String() string {
	if k.Day == "" {
		return fmt.Sprintf("all/%s", k.Slot)
	}
	return fmt.Sprintf("%s/%s", k.Day, k.Slot)
}

// WeekdaySeriesKeys lists every weekday x meal slot series in menu order.
func WeekdaySeriesKeys() []SeriesKey {
	keys := make([]SeriesKey, 0, len(Weekdays)*len(MealSlots))
	for _, day := range Weekdays {
		for _, slot := range MealSlots {
			keys = append(keys, SeriesKey{Day: day, Slot: slot})
		}
	}
	return keys
}

func MealSeriesKeys() []SeriesKey {
	keys := make([]SeriesKey, 0, len(MealSlots))
	for _, slot := range MealSlots {
		keys = append(keys, SeriesKey{Slot: slot})
	}
	return keys
}

// Observation is one (weekStart, count) pair of a series.
type Observation struct {
	WeekStart time.Time `json:"weekStart"`
	Count     int       `json:"count"`
}

// Order is the canonical shape of one diner's weekly meal selection.
type Order struct {
	ID         string                        `json:"id"`
	UserID     string                        `json:"user_id"`
	Status     string                        `json:"status"`
	CreatedAt  time.Time                     `json:"created_at"`
	Selections map[Weekday]map[MealSlot]bool `json:"selections"`
}

func (o Order) Selected(day Weekday, slot MealSlot) bool {
	meals, ok := o.Selections[day]
	if !ok {
		return false
	}
	return meals[slot]
}
