// Package ingredients converts dish demand into ingredient quantities.
package ingredients

import (
	"fmt"
	"math"
	"strings"

	"github.com/chrisdamba/messforecast/internal/models"
)

// MatchPolicy decides whether an associated dish of a rule matches a demanded dish.
type MatchPolicy string

const (
	// MatchExact compares names case-insensitively.
	MatchExact MatchPolicy = models.MatchPolicyExact
	// MatchSubstring accepts either name containing the other, case-insensitively.
	MatchSubstring MatchPolicy = models.MatchPolicySubstring
)

func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch MatchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchExact:
		return MatchExact, nil
	case MatchSubstring:
		return MatchSubstring, nil
	}
	return "", fmt.Errorf("unknown ingredient match policy %q", s)
}

func (p MatchPolicy) matches(rule, dish string) bool {
	if p == MatchSubstring {
		return strings.Contains(dish, rule) || strings.Contains(rule, dish)
	}
	return rule == dish
}

type Estimator struct {
	policy MatchPolicy
}

func NewEstimator(policy MatchPolicy) *Estimator {
	if policy == "" {
		policy = MatchExact
	}
	return &Estimator{policy: policy}
}

func (e *Estimator) Policy() MatchPolicy {
	return e.policy
}

// Estimate computes one IngredientForecast per rule, keyed by ingredient name. A rule naming
// "all dishes" or "most dishes" draws on the whole demand; otherwise it sums every demanded
// dish matching one of its associated dishes. A demanded dish counts at most once per rule.
func (e *Estimator) Estimate(demand models.DishDemand, rules []models.IngredientRule) map[string]models.IngredientForecast {
	lowered := make(map[string]int, len(demand))
	for dish, n := range demand {
		lowered[strings.ToLower(strings.TrimSpace(dish))] += n
	}

	out := make(map[string]models.IngredientForecast, len(rules))
	for _, rule := range rules {
		matched := e.matched(lowered, rule.Dishes)
		qty := math.Round(float64(matched) * rule.PerPersonQuantity())
		if qty < 0 || math.IsNaN(qty) {
			qty = 0
		}
		out[rule.Name] = models.IngredientForecast{
			Name:              rule.Name,
			Unit:              rule.Unit,
			EstimatedQuantity: int(qty),
		}
	}
	return out
}

func (e *Estimator) matched(demand map[string]int, dishes []string) int {
	wanted := make([]string, 0, len(dishes))
	for _, d := range dishes {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == models.WildcardAllDishes || d == models.WildcardMostDishes {
			total := 0
			for _, n := range demand {
				total += n
			}
			return total
		}
		if d != "" {
			wanted = append(wanted, d)
		}
	}

	total := 0
	for dish, n := range demand {
		for _, w := range wanted {
			if e.policy.matches(w, dish) {
				total += n
				break
			}
		}
	}
	return total
}
