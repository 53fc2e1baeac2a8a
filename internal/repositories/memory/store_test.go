package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisdamba/messforecast/internal/models"
)

var week1 = time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC)

func record(start time.Time, monday, tuesday models.MealCounts) models.WeeklyAttendanceRecord {
	return models.WeeklyAttendanceRecord{
		WeekStart: start,
		Data:      map[models.Weekday]models.MealCounts{models.Monday: monday, models.Tuesday: tuesday},
	}
}

func TestAttendanceQuery(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Attendance()
	require.NoError(t, repo.BulkCreate(ctx, []models.WeeklyAttendanceRecord{
		record(week1.AddDate(0, 0, 7), models.MealCounts{Lunch: 12}, models.MealCounts{Lunch: 3}),
		record(week1, models.MealCounts{Lunch: 10}, models.MealCounts{Lunch: 5}),
	}))

	obs, err := repo.Query(ctx, models.SeriesKey{Day: models.Monday, Slot: models.Lunch})
	require.NoError(t, err)
	assert.Equal(t, []models.Observation{
		{WeekStart: week1, Count: 10},
		{WeekStart: week1.AddDate(0, 0, 7), Count: 12},
	}, obs)

	total, err := repo.Query(ctx, models.SeriesKey{Slot: models.Lunch})
	require.NoError(t, err)
	assert.Equal(t, []int{15, 15}, []int{total[0].Count, total[1].Count})

	none, err := repo.Query(ctx, models.SeriesKey{Day: models.Friday, Slot: models.Lunch})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveWeekReplacesAndPersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	repo := store.Attendance()

	require.NoError(t, repo.SaveWeek(ctx, record(week1.AddDate(0, 0, 3), models.MealCounts{Dinner: 1}, models.MealCounts{})))
	require.NoError(t, repo.SaveWeek(ctx, record(week1, models.MealCounts{Dinner: 9}, models.MealCounts{})))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "week starts are normalised to Monday")

	_, err = os.Stat(filepath.Join(dir, AttendanceFile))
	require.NoError(t, err)

	reopened, err := Open(dir)
	require.NoError(t, err)
	obs, err := reopened.Attendance().Query(ctx, models.SeriesKey{Day: models.Monday, Slot: models.Dinner})
	require.NoError(t, err)
	assert.Equal(t, []models.Observation{{WeekStart: week1, Count: 9}}, obs)
}

func TestOpenLoadsCatalogs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MenuFile),
		[]byte(`[{"day":"monday","lunch":"Rice with Dal"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, IngredientsFile),
		[]byte(`[{"name":"Dal","unit":"kg","perPerson":0.2,"dishes":["Dal"]},{"name":"Salt","unit":"g","dishes":["all dishes"]}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, OrdersFile),
		[]byte(`[{"_id":"a","this":{"monday":{"lunch":true}}}]`), 0o644))

	store, err := Open(dir)
	require.NoError(t, err)
	ctx := context.Background()

	menus, err := store.Menus().ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.MenuEntry{{Day: "monday", Lunch: "Rice with Dal"}}, menus)

	rules, err := store.Ingredients().ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.InDelta(t, 0.2, rules[0].PerPersonQuantity(), 1e-9)
	assert.Nil(t, rules[1].PerPerson)
	assert.Equal(t, 1.0, rules[1].PerPersonQuantity())

	orders, err := store.Orders().ListRaw(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "a", orders[0]["_id"])
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MenuFile), []byte(`{not json`), 0o644))
	_, err := Open(dir)
	assert.Error(t, err)
}

func TestIngredientBulkCreateUpserts(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Ingredients()
	require.NoError(t, repo.BulkCreate(ctx, []models.IngredientRule{{Name: "Dal", Unit: "kg"}}))
	require.NoError(t, repo.BulkCreate(ctx, []models.IngredientRule{{Name: "Dal", Unit: "g"}, {Name: "Rice", Unit: "kg"}}))

	rules, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "g", rules[0].Unit)
}
