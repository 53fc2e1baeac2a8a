package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisdamba/messforecast/internal/forecaster"
	"github.com/chrisdamba/messforecast/internal/ingredients"
	"github.com/chrisdamba/messforecast/internal/metrics"
	"github.com/chrisdamba/messforecast/internal/models"
	"github.com/chrisdamba/messforecast/internal/repositories/memory"
)

// 2025-06-02 is a Monday.
var firstWeek = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

type recordingSink struct {
	snapshots []models.ForecastSnapshot
	err       error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Append(_ context.Context, snap models.ForecastSnapshot) error {
	if s.err != nil {
		return s.err
	}
	s.snapshots = append(s.snapshots, snap)
	return nil
}

type fixture struct {
	store   *memory.Store
	sink    *recordingSink
	metrics *metrics.Pipeline
	p       *Pipeline
}

func perPerson(v float64) *float64 { return &v }

// newFixture seeds Monday lunch with a flat 50 diners a week and Monday breakfast with a
// short trending history.
func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	var records []models.WeeklyAttendanceRecord
	breakfast := []int{10, 12, 11, 13}
	for i := 0; i < 4; i++ {
		records = append(records, models.WeeklyAttendanceRecord{
			WeekStart: firstWeek.AddDate(0, 0, 7*i),
			Data: map[models.Weekday]models.MealCounts{
				models.Monday: {Breakfast: breakfast[i], Lunch: 50},
			},
		})
	}
	require.NoError(t, store.Attendance().BulkCreate(ctx, records))
	require.NoError(t, store.Menus().BulkCreate(ctx, []models.MenuEntry{
		{Day: "monday", Lunch: "Rice with Dal with Salad"},
		{Day: "", Lunch: "Mystery"},
	}))
	require.NoError(t, store.Ingredients().BulkCreate(ctx, []models.IngredientRule{
		{Name: "Dal", Unit: "kg", PerPerson: perPerson(0.2), Dishes: []string{"Dal"}},
		{Name: "Paneer", Unit: "kg", PerPerson: perPerson(0.1), Dishes: []string{"Paneer Tikka"}},
		{Name: "Salt", Unit: "g", PerPerson: perPerson(1), Dishes: []string{"All Dishes"}},
	}))

	m := metrics.New(prometheus.NewRegistry())
	sink := &recordingSink{}
	p, err := New(Deps{
		Attendance:  store.Attendance(),
		Menus:       store.Menus(),
		Ingredients: store.Ingredients(),
		Orders:      store.Orders(),
		Sink:        sink,
		Forecaster:  forecaster.New(forecaster.DefaultConfig(), m),
		Estimator:   ingredients.NewEstimator(ingredients.MatchExact),
		Metrics:     m,
		Now:         func() time.Time { return time.Date(2025, 7, 2, 10, 0, 0, 0, time.UTC) },
		NewID:       func() string { return "snap-1" },
	}, opts)
	require.NoError(t, err)
	return &fixture{store: store, sink: sink, metrics: m, p: p}
}

func TestIngredientForecastEndToEnd(t *testing.T) {
	f := newFixture(t, Options{IngredientWeeks: 4})

	res, err := f.p.IngredientForecast(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Weeks)
	assert.Equal(t, 200, res.Demand["Dal"])
	assert.Equal(t, 200, res.Demand["Rice"])
	assert.Equal(t, models.IngredientForecast{Name: "Dal", Unit: "kg", EstimatedQuantity: 40}, res.Snapshot.Forecast["Dal"])
	assert.Zero(t, res.Snapshot.Forecast["Paneer"].EstimatedQuantity)
	assert.Equal(t, 600, res.Snapshot.Forecast["Salt"].EstimatedQuantity)

	assert.Equal(t, "snap-1", res.Snapshot.ID)
	assert.Equal(t, time.Date(2025, 7, 2, 10, 0, 0, 0, time.UTC), res.Snapshot.Timestamp)
	require.Len(t, f.sink.snapshots, 1)
	assert.Equal(t, res.Snapshot, f.sink.snapshots[0])

	assert.Len(t, res.Diagnostics.MalformedMenuEntries, 1)
	assert.Contains(t, res.Diagnostics.Series, "tuesday/lunch")
	assert.Contains(t, res.Diagnostics.Series, "monday/lunch", "a flat series falls back to its last value")
	assert.Positive(t, res.Diagnostics.PointsWithoutMenu)
	for _, pt := range res.Points {
		assert.GreaterOrEqual(t, pt.PredictedCount, 0)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Runs.WithLabelValues("ok")))
}

func TestIngredientForecastPersistenceFailureKeepsResult(t *testing.T) {
	f := newFixture(t, Options{})
	f.sink.err = errors.New("connection refused")

	res, err := f.p.IngredientForecast(context.Background(), 4)
	require.Error(t, err)

	var persistErr *PersistenceError
	require.True(t, errors.As(err, &persistErr))
	assert.Equal(t, "snap-1", persistErr.SnapshotID)
	require.NotNil(t, res)
	assert.Equal(t, 40, res.Snapshot.Forecast["Dal"].EstimatedQuantity)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Runs.WithLabelValues("persistence_error")))
}

func TestIngredientForecastTimeout(t *testing.T) {
	f := newFixture(t, Options{FitTimeout: time.Nanosecond})

	res, err := f.p.IngredientForecast(context.Background(), 2)
	assert.ErrorIs(t, err, ErrComputationTimeout)
	assert.Nil(t, res)
	assert.Empty(t, f.sink.snapshots)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Runs.WithLabelValues("timeout")))
}

func TestIngredientForecastRejectsHorizon(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.p.IngredientForecast(context.Background(), 53)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestWeeklyForecastModes(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	byDay, err := f.p.WeeklyForecast(ctx, 0, "")
	require.NoError(t, err)
	assert.Equal(t, ModeWeekday, byDay.Mode)
	assert.Len(t, byDay.Counts, 7)
	monday := byDay.Counts["monday"]
	assert.Equal(t, 50, monday.Lunch)
	assert.GreaterOrEqual(t, monday.Breakfast, 9)
	assert.LessOrEqual(t, monday.Breakfast, 15)
	assert.Equal(t, models.MealCounts{}, byDay.Counts["sunday"])

	byDate, err := f.p.WeeklyForecast(ctx, 2, "")
	require.NoError(t, err)
	assert.Equal(t, ModeDate, byDate.Mode)
	assert.Equal(t, 50, byDate.Counts["2025-06-30"].Lunch)
	assert.Equal(t, 50, byDate.Counts["2025-07-07"].Lunch)
	assert.Contains(t, byDate.Counts, "2025-07-13", "sunday of the second week")

	byMeal, err := f.p.WeeklyForecast(ctx, 2, ModeMeal)
	require.NoError(t, err)
	require.Len(t, byMeal.Counts, 2)
	assert.Equal(t, 50, byMeal.Counts["2025-06-30"].Lunch)

	_, err = f.p.WeeklyForecast(ctx, 2, ModeWeekday)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.p.WeeklyForecast(ctx, 1, "hourly")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestWeeklyForecastWithoutHistory(t *testing.T) {
	store := memory.NewStore()
	p, err := New(Deps{
		Attendance:  store.Attendance(),
		Menus:       store.Menus(),
		Ingredients: store.Ingredients(),
		Forecaster:  forecaster.New(forecaster.DefaultConfig(), nil),
		Now:         func() time.Time { return time.Date(2025, 7, 2, 10, 0, 0, 0, time.UTC) },
	}, Options{})
	require.NoError(t, err)

	res, err := p.WeeklyForecast(context.Background(), 1, ModeDate)
	require.NoError(t, err)
	require.Len(t, res.Counts, 7)
	assert.Equal(t, models.MealCounts{}, res.Counts["2025-06-30"], "zeros for the current week")
	assert.Len(t, res.Diagnostics, 21)
}

func TestAggregateWeekSavesRecord(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	f.store.Orders().AddRaw(
		map[string]interface{}{
			"createdAt": "2025-07-01T09:00:00Z",
			"selected":  map[string]interface{}{"monday": map[string]interface{}{"lunch": true}},
		},
		map[string]interface{}{
			"this": map[string]interface{}{"monday": map[string]interface{}{"lunch": true, "dinner": true}},
		},
		map[string]interface{}{"selected": "broken"},
	)

	rec, err := f.p.AggregateWeek(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), rec.WeekStart)
	assert.Equal(t, models.MealCounts{Lunch: 2, Dinner: 1}, rec.Data[models.Monday])

	obs, err := f.store.Attendance().Query(ctx, models.SeriesKey{Day: models.Monday, Slot: models.Lunch})
	require.NoError(t, err)
	require.Len(t, obs, 5)
	assert.Equal(t, 2, obs[4].Count)
}

func TestNewRequiresRepositories(t *testing.T) {
	_, err := New(Deps{}, Options{})
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "attendance repository is required")
}

func TestMenuIsSorted(t *testing.T) {
	f := newFixture(t, Options{})
	entries, err := f.p.Menu(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "monday", entries[0].Day)
}
