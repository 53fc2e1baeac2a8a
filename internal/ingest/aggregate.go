package ingest

import (
	"time"

	"github.com/chrisdamba/messforecast/internal/logging"
	"github.com/chrisdamba/messforecast/internal/models"
)

// AggregateWeek counts the selections of every order placed in the week containing ref.
// Orders without a creation time are buyer documents holding the current week and always count.
func AggregateWeek(orders []models.Order, ref time.Time) models.WeeklyAttendanceRecord {
	start := models.StartOfWeek(ref)
	end := start.AddDate(0, 0, 7)

	record := models.WeeklyAttendanceRecord{
		WeekStart: start,
		Data:      make(map[models.Weekday]models.MealCounts, len(models.Weekdays)),
	}
	for _, day := range models.Weekdays {
		record.Data[day] = models.MealCounts{}
	}

	for _, o := range orders {
		if !o.CreatedAt.IsZero() && (o.CreatedAt.Before(start) || !o.CreatedAt.Before(end)) {
			continue
		}
		for day, meals := range o.Selections {
			counts := record.Data[day]
			for slot, chosen := range meals {
				if chosen {
					counts.Add(slot, 1)
				}
			}
			record.Data[day] = counts
		}
	}
	return record
}

// NormalizeOrders normalises raw documents, skipping and logging the malformed ones.
func NormalizeOrders(docs []map[string]interface{}) ([]models.Order, int) {
	orders := make([]models.Order, 0, len(docs))
	skipped := 0
	for i, doc := range docs {
		o, err := NormalizeOrder(doc)
		if err != nil {
			skipped++
			logging.Warn().Err(err).Int("index", i).Msg("skipping order document")
			continue
		}
		orders = append(orders, o)
	}
	return orders, skipped
}
