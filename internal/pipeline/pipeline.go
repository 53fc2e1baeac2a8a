// Package pipeline runs historical attendance through forecasting, demand aggregation and
// ingredient estimation, and persists the resulting snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lucsky/cuid"

	"github.com/chrisdamba/messforecast/internal/forecaster"
	"github.com/chrisdamba/messforecast/internal/ingest"
	"github.com/chrisdamba/messforecast/internal/ingredients"
	"github.com/chrisdamba/messforecast/internal/logging"
	"github.com/chrisdamba/messforecast/internal/menu"
	"github.com/chrisdamba/messforecast/internal/metrics"
	"github.com/chrisdamba/messforecast/internal/models"
	"github.com/chrisdamba/messforecast/internal/output"
	"github.com/chrisdamba/messforecast/internal/repositories"
)

const MaxWeeks = 52

// Deps are the collaborators of a pipeline. They are built once at startup and shared by
// every invocation.
type Deps struct {
	Attendance  repositories.AttendanceRepository
	Menus       repositories.MenuRepository
	Ingredients repositories.IngredientRepository
	// Orders is only needed for weekly aggregation.
	Orders repositories.OrderRepository
	// Sink may be nil, in which case snapshots are not persisted.
	Sink       output.SnapshotSink
	Forecaster *forecaster.Forecaster
	Estimator  *ingredients.Estimator
	Metrics    *metrics.Pipeline

	Now   func() time.Time
	NewID func() string
}

type Options struct {
	FitTimeout      time.Duration
	IngredientWeeks int
}

type Pipeline struct {
	deps Deps
	opts Options
}

func New(deps Deps, opts Options) (*Pipeline, error) {
	var missing []error
	if deps.Attendance == nil {
		missing = append(missing, errors.New("attendance repository is required"))
	}
	if deps.Menus == nil {
		missing = append(missing, errors.New("menu repository is required"))
	}
	if deps.Ingredients == nil {
		missing = append(missing, errors.New("ingredient repository is required"))
	}
	if deps.Forecaster == nil {
		missing = append(missing, errors.New("forecaster is required"))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	if deps.Estimator == nil {
		deps.Estimator = ingredients.NewEstimator(ingredients.MatchExact)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = cuid.New
	}
	if opts.FitTimeout <= 0 {
		opts.FitTimeout = 30 * time.Second
	}
	if opts.IngredientWeeks < 1 {
		opts.IngredientWeeks = 4
	}
	return &Pipeline{deps: deps, opts: opts}, nil
}

// Mode selects how a weekly forecast is keyed.
type Mode string

const (
	// ModeWeekday keys the single next week by weekday name.
	ModeWeekday Mode = "weekday"
	// ModeDate keys every forecast day by ISO date.
	ModeDate Mode = "date"
	// ModeMeal keys each forecast week by its ISO week start, using the meal-type totals.
	ModeMeal Mode = "meal"
)

// WeeklyForecast holds predicted attendance per key and meal slot.
type WeeklyForecast struct {
	Mode        Mode                         `json:"mode"`
	Weeks       int                          `json:"weeks"`
	Counts      map[string]models.MealCounts `json:"counts"`
	Diagnostics forecaster.Diagnostics       `json:"diagnostics,omitempty"`
}

// WeeklyForecast predicts attendance for the next weeks. weeks of 0 uses the configured
// horizon; an empty mode means weekday for a single week and date otherwise.
func (p *Pipeline) WeeklyForecast(ctx context.Context, weeks int, mode Mode) (result *WeeklyForecast, err error) {
	defer func() { p.finish(err) }()

	if weeks == 0 {
		weeks = p.deps.Forecaster.Config().Horizon
	}
	if err := validateWeeks(weeks); err != nil {
		return nil, err
	}
	if mode == "" {
		mode = ModeDate
		if weeks == 1 {
			mode = ModeWeekday
		}
	}

	keys := models.WeekdaySeriesKeys()
	switch mode {
	case ModeWeekday:
		if weeks != 1 {
			return nil, fmt.Errorf("%w: weekday mode covers a single week, got weeks=%d", ErrInvalidRequest, weeks)
		}
	case ModeDate:
	case ModeMeal:
		keys = models.MealSeriesKeys()
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, mode)
	}

	results, err := p.forecast(ctx, keys, weeks)
	if err != nil {
		return nil, err
	}

	out := &WeeklyForecast{
		Mode:        mode,
		Weeks:       weeks,
		Counts:      make(map[string]models.MealCounts),
		Diagnostics: forecaster.Diagnose(results),
	}
	switch mode {
	case ModeWeekday:
		for _, day := range models.Weekdays {
			out.Counts[string(day)] = models.MealCounts{}
		}
		for _, r := range results {
			counts := out.Counts[string(r.Key.Day)]
			counts.Add(r.Key.Slot, r.Predictions[0])
			out.Counts[string(r.Key.Day)] = counts
		}
	case ModeDate:
		for _, pt := range forecastPoints(results) {
			key := pt.Date.Format(time.DateOnly)
			counts := out.Counts[key]
			counts.Add(pt.Slot, pt.PredictedCount)
			out.Counts[key] = counts
		}
	case ModeMeal:
		for _, r := range results {
			for i, week := range r.Weeks {
				key := week.Format(time.DateOnly)
				counts := out.Counts[key]
				counts.Add(r.Key.Slot, r.Predictions[i])
				out.Counts[key] = counts
			}
		}
	}
	return out, nil
}

// Diagnostics describes everything a run recovered from instead of failing.
type Diagnostics struct {
	Series               forecaster.Diagnostics `json:"series,omitempty"`
	MalformedMenuEntries []string               `json:"malformed_menu_entries,omitempty"`
	PointsWithoutMenu    int                    `json:"points_without_menu"`
	PointsWithoutDish    int                    `json:"points_without_dish"`
}

type IngredientResult struct {
	Snapshot    models.ForecastSnapshot `json:"snapshot"`
	Weeks       int                     `json:"weeks"`
	Points      []models.ForecastPoint  `json:"-"`
	Demand      models.DishDemand       `json:"demand"`
	Diagnostics Diagnostics             `json:"diagnostics"`
}

// IngredientForecast forecasts every weekday and meal series for weeks ahead (0 uses the
// configured ingredient horizon), turns the predictions into dish demand through the menu,
// estimates ingredient quantities and appends the snapshot to the sink.
//
// A sink failure returns the full result together with a *PersistenceError.
func (p *Pipeline) IngredientForecast(ctx context.Context, weeks int) (result *IngredientResult, err error) {
	defer func() { p.finish(err) }()

	if weeks == 0 {
		weeks = p.opts.IngredientWeeks
	}
	if err := validateWeeks(weeks); err != nil {
		return nil, err
	}

	entries, err := p.deps.Menus.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading menu: %w", err)
	}
	rules, err := p.deps.Ingredients.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ingredients: %w", err)
	}

	results, err := p.forecast(ctx, models.WeekdaySeriesKeys(), weeks)
	if err != nil {
		return nil, err
	}
	points := forecastPoints(results)

	stage := time.Now()
	demand, stats := menu.NewAggregator(entries, p.deps.Metrics).Aggregate(points)
	logging.Debug().Str("stage", "aggregate").Dur("duration", time.Since(stage)).
		Int("points", len(points)).Int("dishes", len(demand)).Msg("stage finished")

	stage = time.Now()
	estimates := p.deps.Estimator.Estimate(demand, rules)
	logging.Debug().Str("stage", "estimate").Dur("duration", time.Since(stage)).
		Int("ingredients", len(estimates)).Str("policy", string(p.deps.Estimator.Policy())).Msg("stage finished")

	result = &IngredientResult{
		Snapshot: models.ForecastSnapshot{
			ID:        p.deps.NewID(),
			Timestamp: p.deps.Now().UTC().Truncate(time.Second),
			Forecast:  estimates,
		},
		Weeks:  weeks,
		Points: points,
		Demand: demand,
		Diagnostics: Diagnostics{
			Series:            forecaster.Diagnose(results),
			PointsWithoutMenu: stats.PointsWithoutMenu,
			PointsWithoutDish: stats.PointsWithoutDish,
		},
	}
	for _, skipped := range stats.Malformed {
		result.Diagnostics.MalformedMenuEntries = append(result.Diagnostics.MalformedMenuEntries,
			fmt.Sprintf("entry %d: %v", skipped.Index, skipped.Err))
	}

	if p.deps.Sink != nil {
		stage = time.Now()
		if err := p.deps.Sink.Append(ctx, result.Snapshot); err != nil {
			return result, &PersistenceError{SnapshotID: result.Snapshot.ID, Err: err}
		}
		logging.Debug().Str("stage", "persist").Dur("duration", time.Since(stage)).
			Str("sink", p.deps.Sink.Name()).Msg("stage finished")
	}

	logging.Info().Str("snapshot", result.Snapshot.ID).Int("weeks", weeks).
		Int("ingredients", len(estimates)).Int("fallbacks", len(result.Diagnostics.Series)).
		Msg("ingredient forecast computed")
	return result, nil
}

// AggregateWeek folds the stored orders into the attendance record of the week containing
// ref (now when zero) and saves it, replacing any earlier record for that week.
func (p *Pipeline) AggregateWeek(ctx context.Context, ref time.Time) (models.WeeklyAttendanceRecord, error) {
	if p.deps.Orders == nil {
		return models.WeeklyAttendanceRecord{}, &ConfigurationError{Err: errors.New("no order repository configured")}
	}
	if ref.IsZero() {
		ref = p.deps.Now()
	}

	docs, err := p.deps.Orders.ListRaw(ctx)
	if err != nil {
		return models.WeeklyAttendanceRecord{}, fmt.Errorf("loading orders: %w", err)
	}
	orders, skipped := ingest.NormalizeOrders(docs)
	record := ingest.AggregateWeek(orders, ref)

	if err := p.deps.Attendance.SaveWeek(ctx, record); err != nil {
		return models.WeeklyAttendanceRecord{}, fmt.Errorf("saving week %s: %w", record.WeekStart.Format(time.DateOnly), err)
	}
	logging.Info().Time("week_start", record.WeekStart).Int("orders", len(orders)).Int("skipped", skipped).
		Msg("weekly attendance aggregated")
	return record, nil
}

// Menu returns the menu ordered Monday to Sunday.
func (p *Pipeline) Menu(ctx context.Context) ([]models.MenuEntry, error) {
	entries, err := p.deps.Menus.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return menu.Sorted(entries), nil
}

// forecast loads every series for keys and fits them under the fit timeout.
func (p *Pipeline) forecast(ctx context.Context, keys []models.SeriesKey, weeks int) ([]forecaster.Result, error) {
	stage := time.Now()
	series := make([]forecaster.Series, len(keys))
	var latest time.Time
	for i, key := range keys {
		obs, err := p.deps.Attendance.Query(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("loading series %s: %w", key, err)
		}
		series[i] = forecaster.Series{Key: key, Observations: obs}
		for _, o := range obs {
			if o.WeekStart.After(latest) {
				latest = o.WeekStart
			}
		}
	}
	anchor := latest
	if anchor.IsZero() {
		anchor = models.StartOfWeek(p.deps.Now()).AddDate(0, 0, -7)
	}

	fitCtx, cancel := context.WithTimeout(ctx, p.opts.FitTimeout)
	defer cancel()

	results, err := p.deps.Forecaster.WithHorizon(weeks).Forecast(fitCtx, series, anchor)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrComputationTimeout, p.opts.FitTimeout)
		}
		return nil, err
	}
	logging.Debug().Str("stage", "forecast").Dur("duration", time.Since(stage)).
		Int("series", len(series)).Int("weeks", weeks).Msg("stage finished")
	return results, nil
}

// forecastPoints expands weekday series results into dated points.
func forecastPoints(results []forecaster.Result) []models.ForecastPoint {
	var points []models.ForecastPoint
	for _, r := range results {
		if r.Key.Day == "" {
			continue
		}
		for i, week := range r.Weeks {
			points = append(points, models.ForecastPoint{
				Date:           r.Key.Day.DateInWeek(week),
				Slot:           r.Key.Slot,
				PredictedCount: r.Predictions[i],
			})
		}
	}
	return points
}

func validateWeeks(weeks int) error {
	if weeks < 1 || weeks > MaxWeeks {
		return fmt.Errorf("%w: weeks must be between 1 and %d, got %d", ErrInvalidRequest, MaxWeeks, weeks)
	}
	return nil
}

func (p *Pipeline) finish(err error) {
	status := "ok"
	var persistErr *PersistenceError
	switch {
	case err == nil:
	case errors.As(err, &persistErr):
		status = "persistence_error"
	case errors.Is(err, ErrComputationTimeout):
		status = "timeout"
	case errors.Is(err, ErrInvalidRequest):
		status = "invalid_request"
	default:
		status = "error"
	}
	p.deps.Metrics.RunFinished(status)
	if err != nil {
		logging.Warn().Err(err).Str("status", status).Msg("pipeline run did not complete cleanly")
	}
}
