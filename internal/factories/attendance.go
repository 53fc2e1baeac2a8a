package factories

import (
	"math"
	"time"

	"github.com/chrisdamba/messforecast/internal/models"
)

// weekdayProfile is the typical share of the baseline that turns up per weekday and meal.
var weekdayProfile = map[models.Weekday]models.MealCounts{
	models.Monday:    {Breakfast: 28, Lunch: 35, Dinner: 26},
	models.Tuesday:   {Breakfast: 25, Lunch: 38, Dinner: 22},
	models.Wednesday: {Breakfast: 32, Lunch: 37, Dinner: 28},
	models.Thursday:  {Breakfast: 27, Lunch: 34, Dinner: 29},
	models.Friday:    {Breakfast: 35, Lunch: 40, Dinner: 33},
	models.Saturday:  {Breakfast: 24, Lunch: 30, Dinner: 21},
	models.Sunday:    {Breakfast: 22, Lunch: 28, Dinner: 20},
}

const profileReference = 30.0

type AttendanceFactory struct {
	src *Source
	// Baseline scales the weekday profile; 30 reproduces it as is.
	Baseline int
	// Noise is the maximum relative deviation applied to each count.
	Noise float64
}

func NewAttendanceFactory(src *Source, baseline int) *AttendanceFactory {
	return &AttendanceFactory{src: src, Baseline: baseline, Noise: 0.15}
}

// CreateHistory returns weeks consecutive records, the last one starting the week before
// the week containing end.
func (af *AttendanceFactory) CreateHistory(weeks int, end time.Time) []models.WeeklyAttendanceRecord {
	last := models.StartOfWeek(end).AddDate(0, 0, -7)
	records := make([]models.WeeklyAttendanceRecord, 0, weeks)
	for i := weeks - 1; i >= 0; i-- {
		records = append(records, af.CreateWeek(last.AddDate(0, 0, -7*i)))
	}
	return records
}

func (af *AttendanceFactory) CreateWeek(weekStart time.Time) models.WeeklyAttendanceRecord {
	scale := float64(af.Baseline) / profileReference
	rec := models.WeeklyAttendanceRecord{
		WeekStart: models.StartOfWeek(weekStart),
		Data:      make(map[models.Weekday]models.MealCounts, len(models.Weekdays)),
	}
	for _, day := range models.Weekdays {
		profile := weekdayProfile[day]
		var counts models.MealCounts
		for _, slot := range models.MealSlots {
			counts.Add(slot, af.jitter(float64(profile.Get(slot))*scale))
		}
		rec.Data[day] = counts
	}
	return rec
}

func (af *AttendanceFactory) jitter(v float64) int {
	if af.Noise <= 0 {
		return int(math.Round(v))
	}
	// Float64 takes percentages as integer bounds.
	pct := int(af.Noise * 100)
	d := af.src.fake.Float64(2, -pct, pct) / 100
	n := int(math.Round(v * (1 + d)))
	if n < 0 {
		return 0
	}
	return n
}
