// Package ingest turns stored diner selections into weekly attendance records.
package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/chrisdamba/messforecast/internal/models"
)

var ErrMalformedOrder = errors.New("malformed order document")

// rawOrder lists every field name under which selections and metadata have been stored.
type rawOrder struct {
	ObjectID  interface{} `mapstructure:"_id"`
	ID        interface{} `mapstructure:"id"`
	User      interface{} `mapstructure:"user"`
	UserID    interface{} `mapstructure:"user_id"`
	Email     string      `mapstructure:"email"`
	Status    string      `mapstructure:"status"`
	CreatedAt interface{} `mapstructure:"createdAt"`
	Created   interface{} `mapstructure:"created_at"`

	Selected      interface{} `mapstructure:"selected"`
	Selections    interface{} `mapstructure:"selections"`
	SelectedMeals interface{} `mapstructure:"selectedMeals"`
	This          interface{} `mapstructure:"this"`
}

// NormalizeOrder maps an order or buyer document onto the canonical Order shape. Selections
// are read from the first non-empty of "selected", "selections", "selectedMeals" and "this".
// Day and meal names are matched case-insensitively; unknown names are ignored.
func NormalizeOrder(doc map[string]interface{}) (models.Order, error) {
	var raw rawOrder
	if err := mapstructure.Decode(doc, &raw); err != nil {
		return models.Order{}, fmt.Errorf("%w: %w", ErrMalformedOrder, err)
	}

	order := models.Order{
		ID:         firstNonEmpty(idString(raw.ObjectID), idString(raw.ID)),
		UserID:     firstNonEmpty(idString(raw.UserID), idString(raw.User), raw.Email),
		Status:     raw.Status,
		Selections: make(map[models.Weekday]map[models.MealSlot]bool),
	}

	created, err := parseTime(firstNonNil(raw.CreatedAt, raw.Created))
	if err != nil {
		return models.Order{}, fmt.Errorf("%w: %w", ErrMalformedOrder, err)
	}
	order.CreatedAt = created

	sel := firstNonNil(raw.Selected, raw.Selections, raw.SelectedMeals, raw.This)
	if sel == nil {
		return order, nil
	}
	days, ok := sel.(map[string]interface{})
	if !ok {
		return models.Order{}, fmt.Errorf("%w: selections are %T, want an object", ErrMalformedOrder, sel)
	}

	for dayKey, meals := range days {
		day, ok := models.ParseWeekday(dayKey)
		if !ok {
			continue
		}
		chosen, err := mealSelections(meals)
		if err != nil {
			return models.Order{}, fmt.Errorf("%w: %s: %w", ErrMalformedOrder, dayKey, err)
		}
		if len(chosen) > 0 {
			order.Selections[day] = chosen
		}
	}
	return order, nil
}

// mealSelections accepts {meal: truthy} objects and lists of meal names.
func mealSelections(v interface{}) (map[models.MealSlot]bool, error) {
	out := make(map[models.MealSlot]bool)
	switch t := v.(type) {
	case nil:
	case map[string]interface{}:
		for mealKey, chosen := range t {
			slot, ok := models.ParseMealSlot(mealKey)
			if ok && truthy(chosen) {
				out[slot] = true
			}
		}
	case []interface{}:
		for _, item := range t {
			name, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("meal list holds %T", item)
			}
			if slot, ok := models.ParseMealSlot(name); ok {
				out[slot] = true
			}
		}
	default:
		return nil, fmt.Errorf("meals are %T", v)
	}
	return out, nil
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	}
	return false
}

func parseTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t.UTC(), nil
	case interface{ Time() time.Time }:
		return t.Time().UTC(), nil
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised timestamp %q", t)
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case float64:
		return time.UnixMilli(int64(t)).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
}

func idString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case interface{ Hex() string }:
		return t.Hex()
	}
	return fmt.Sprint(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// firstNonNil skips nil values and empty objects.
func firstNonNil(values ...interface{}) interface{} {
	for _, v := range values {
		if v == nil {
			continue
		}
		if m, ok := v.(map[string]interface{}); ok && len(m) == 0 {
			continue
		}
		return v
	}
	return nil
}
