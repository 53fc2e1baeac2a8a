package menu

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/chrisdamba/messforecast/internal/logging"
	"github.com/chrisdamba/messforecast/internal/metrics"
	"github.com/chrisdamba/messforecast/internal/models"
)

var ErrMalformedMenuEntry = errors.New("malformed menu entry")

// SkippedEntry records a menu entry that was left out of the weekday index.
type SkippedEntry struct {
	Index int
	Day   string
	Err   error
}

// Stats describes what an aggregation run skipped. Skips are tolerated, not errors.
type Stats struct {
	Malformed         []SkippedEntry
	PointsWithoutMenu int
	PointsWithoutDish int
}

// Aggregator maps forecast points onto the dishes served in their weekday and slot.
type Aggregator struct {
	byDay     map[models.Weekday]models.MenuEntry
	malformed []SkippedEntry
	metrics   *metrics.Pipeline
}

// NewAggregator indexes entries by weekday. Entries with a missing or unknown day, and
// repeats of a day already indexed, are skipped and reported through Stats.
func NewAggregator(entries []models.MenuEntry, m *metrics.Pipeline) *Aggregator {
	a := &Aggregator{
		byDay:   make(map[models.Weekday]models.MenuEntry, len(models.Weekdays)),
		metrics: m,
	}
	for i, entry := range entries {
		if strings.TrimSpace(entry.Day) == "" {
			a.skip(i, entry.Day, fmt.Errorf("%w: missing day", ErrMalformedMenuEntry))
			continue
		}
		day, ok := models.ParseWeekday(entry.Day)
		if !ok {
			a.skip(i, entry.Day, fmt.Errorf("%w: unknown day %q", ErrMalformedMenuEntry, entry.Day))
			continue
		}
		if _, dup := a.byDay[day]; dup {
			a.skip(i, entry.Day, fmt.Errorf("%w: duplicate day %q", ErrMalformedMenuEntry, entry.Day))
			continue
		}
		a.byDay[day] = entry
	}
	return a
}

func (a *Aggregator) skip(index int, day string, err error) {
	a.malformed = append(a.malformed, SkippedEntry{Index: index, Day: day, Err: err})
	a.metrics.MenuSkipped("malformed")
	logging.Warn().Err(err).Int("index", index).Msg("skipping menu entry")
}

// Entry returns the indexed menu for a weekday.
func (a *Aggregator) Entry(day models.Weekday) (models.MenuEntry, bool) {
	entry, ok := a.byDay[day]
	return entry, ok
}

// Aggregate sums predicted counts into every atomic dish of the menu slot each point refers to.
func (a *Aggregator) Aggregate(points []models.ForecastPoint) (models.DishDemand, Stats) {
	stats := Stats{Malformed: append([]SkippedEntry(nil), a.malformed...)}
	demand := make(models.DishDemand)

	for _, p := range points {
		entry, ok := a.byDay[models.WeekdayOf(p.Date)]
		if !ok {
			stats.PointsWithoutMenu++
			a.metrics.MenuSkipped("missing_day")
			continue
		}
		dishes := Decompose(entry.Dish(p.Slot))
		if len(dishes) == 0 {
			stats.PointsWithoutDish++
			continue
		}
		for _, dish := range dishes {
			demand[dish] += p.PredictedCount
		}
	}

	if stats.PointsWithoutMenu > 0 {
		logging.Debug().Int("points", stats.PointsWithoutMenu).Msg("forecast points without a menu entry")
	}
	return demand, stats
}

// Sorted returns entries ordered Monday to Sunday; unknown days keep their relative order at the end.
func Sorted(entries []models.MenuEntry) []models.MenuEntry {
	out := make([]models.MenuEntry, len(entries))
	copy(out, entries)
	rank := func(e models.MenuEntry) int {
		if d, ok := models.ParseWeekday(e.Day); ok {
			return d.Index()
		}
		return len(models.Weekdays)
	}
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}
