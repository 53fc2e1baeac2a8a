package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chrisdamba/messforecast/internal/models"
)

type AttendanceRepository struct {
	pool *pgxpool.Pool
}

func NewAttendanceRepository(pool *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

func slotColumn(slot models.MealSlot) (string, error) {
	switch slot {
	case models.Breakfast, models.Lunch, models.Dinner:
		return string(slot), nil
	}
	return "", fmt.Errorf("unknown meal slot %q", slot)
}

func (r *AttendanceRepository) Query(ctx context.Context, key models.SeriesKey) ([]models.Observation, error) {
	col, err := slotColumn(key.Slot)
	if err != nil {
		return nil, err
	}

	var rows pgx.Rows
	if key.Day == "" {
		query := fmt.Sprintf(`
        SELECT week_start, SUM(%s)::int
        FROM weekly_attendance
        GROUP BY week_start
        ORDER BY week_start`, col)
		rows, err = r.pool.Query(ctx, query)
	} else {
		query := fmt.Sprintf(`
        SELECT week_start, %s
        FROM weekly_attendance
        WHERE weekday = $1
        ORDER BY week_start`, col)
		rows, err = r.pool.Query(ctx, query, string(key.Day))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var obs []models.Observation
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.WeekStart, &o.Count); err != nil {
			return nil, err
		}
		o.WeekStart = o.WeekStart.UTC()
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

func (r *AttendanceRepository) SaveWeek(ctx context.Context, record models.WeeklyAttendanceRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM weekly_attendance WHERE week_start = $1`, record.WeekStart); err != nil {
		return err
	}

	query := `
        INSERT INTO weekly_attendance (week_start, weekday, breakfast, lunch, dinner)
        VALUES ($1, $2, $3, $4, $5)
    `
	for _, day := range sortedDays(record.Data) {
		counts := record.Data[day]
		if _, err := tx.Exec(ctx, query, record.WeekStart, string(day), counts.Breakfast, counts.Lunch, counts.Dinner); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *AttendanceRepository) BulkCreate(ctx context.Context, records []models.WeeklyAttendanceRecord) error {
	type row struct {
		weekStart time.Time
		day       models.Weekday
		counts    models.MealCounts
	}
	var flat []row
	for _, rec := range records {
		for _, day := range sortedDays(rec.Data) {
			flat = append(flat, row{weekStart: rec.WeekStart, day: day, counts: rec.Data[day]})
		}
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"weekly_attendance"},
		[]string{"week_start", "weekday", "breakfast", "lunch", "dinner"},
		pgx.CopyFromSlice(len(flat), func(i int) ([]interface{}, error) {
			return []interface{}{
				flat[i].weekStart,
				string(flat[i].day),
				flat[i].counts.Breakfast,
				flat[i].counts.Lunch,
				flat[i].counts.Dinner,
			}, nil
		}),
	)
	return err
}

func (r *AttendanceRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(DISTINCT week_start) FROM weekly_attendance").Scan(&count)
	return count, err
}

func (r *AttendanceRepository) DeleteAll(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, "TRUNCATE TABLE weekly_attendance")
	return err
}

func sortedDays(data map[models.Weekday]models.MealCounts) []models.Weekday {
	days := make([]models.Weekday, 0, len(data))
	for day := range data {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Index() < days[j].Index() })
	return days
}
