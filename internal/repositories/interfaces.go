package repositories

import (
	"context"

	"github.com/chrisdamba/messforecast/internal/models"
)

type AttendanceRepository interface {
	// Query returns the series for key ordered by week start. A key without a Day yields the
	// per-week sum over every weekday.
	Query(ctx context.Context, key models.SeriesKey) ([]models.Observation, error)
	// SaveWeek inserts or replaces the record for record.WeekStart.
	SaveWeek(ctx context.Context, record models.WeeklyAttendanceRecord) error
	BulkCreate(ctx context.Context, records []models.WeeklyAttendanceRecord) error
	Count(ctx context.Context) (int, error)
	DeleteAll(ctx context.Context) error
}

type MenuRepository interface {
	ListAll(ctx context.Context) ([]models.MenuEntry, error)
	BulkCreate(ctx context.Context, entries []models.MenuEntry) error
	DeleteAll(ctx context.Context) error
}

type IngredientRepository interface {
	ListAll(ctx context.Context) ([]models.IngredientRule, error)
	BulkCreate(ctx context.Context, rules []models.IngredientRule) error
	DeleteAll(ctx context.Context) error
}

// OrderRepository stores diner selections. ListRaw returns documents as stored, in whichever
// selection shape they were written; callers normalise them with ingest.NormalizeOrder.
type OrderRepository interface {
	ListRaw(ctx context.Context) ([]map[string]interface{}, error)
	BulkCreate(ctx context.Context, orders []models.Order) error
	DeleteAll(ctx context.Context) error
}
