package models

import (
	"strings"
	"time"
)

type Weekday string

type MealSlot string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"

	Breakfast MealSlot = "breakfast"
	Lunch     MealSlot = "lunch"
	Dinner    MealSlot = "dinner"

	WildcardAllDishes  = "all dishes"
	WildcardMostDishes = "most dishes"

	MatchPolicyExact     = "exact"
	MatchPolicySubstring = "substring"

	StorageFile     = "file"
	StoragePostgres = "postgres"

	SinkPostgres = "postgres"
	SinkJSONL    = "jsonl"
	SinkParquet  = "parquet"
	SinkKafka    = "kafka"

	CloudProviderS3 = "s3"
)

// Weekdays is the canonical menu order, Monday first.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var MealSlots = []MealSlot{Breakfast, Lunch, Dinner}

// ParseWeekday matches a weekday name case-insensitively, ignoring surrounding whitespace.
func ParseWeekday(s string) (Weekday, bool) {
	day := Weekday(strings.ToLower(strings.TrimSpace(s)))
	for _, d := range Weekdays {
		if d == day {
			return d, true
		}
	}
	return "", false
}

func ParseMealSlot(s string) (MealSlot, bool) {
	slot := MealSlot(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range MealSlots {
		if m == slot {
			return m, true
		}
	}
	return "", false
}

// WeekdayOf returns the menu weekday for a calendar date.
func WeekdayOf(t time.Time) Weekday {
	switch t.Weekday() {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// Index returns the position of the weekday in Weekdays, or -1.
func (d Weekday) Index() int {
	for i, w := range Weekdays {
		if w == d {
			return i
		}
	}
	return -1
}

// DateInWeek returns the calendar date of weekday d in the week that starts at weekStart.
// Week starts need not be Mondays; the offset is taken relative to weekStart's own weekday.
func (d Weekday) DateInWeek(weekStart time.Time) time.Time {
	startIdx := WeekdayOf(weekStart).Index()
	offset := (d.Index() - startIdx + 7) % 7
	return weekStart.AddDate(0, 0, offset)
}

// StartOfWeek truncates t to the Monday of its week at midnight UTC.
func StartOfWeek(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -WeekdayOf(day).Index())
}
