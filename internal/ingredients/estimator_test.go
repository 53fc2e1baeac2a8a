package ingredients

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisdamba/messforecast/internal/models"
)

func perPerson(v float64) *float64 { return &v }

func TestEstimateExactMatch(t *testing.T) {
	demand := models.DishDemand{"Rice": 200, "Dal": 200, "Salad": 200}
	rules := []models.IngredientRule{
		{Name: "Dal", Unit: "kg", PerPerson: perPerson(0.2), Dishes: []string{"Dal"}},
		{Name: "Basmati", Unit: "kg", PerPerson: perPerson(0.15), Dishes: []string{"rice", "Jeera Rice"}},
	}

	got := NewEstimator(MatchExact).Estimate(demand, rules)
	assert.Equal(t, models.IngredientForecast{Name: "Dal", Unit: "kg", EstimatedQuantity: 40}, got["Dal"])
	assert.Equal(t, 30, got["Basmati"].EstimatedQuantity)
}

func TestEstimateUnmatchedRuleIsZero(t *testing.T) {
	got := NewEstimator(MatchExact).Estimate(models.DishDemand{"Rice": 100}, []models.IngredientRule{
		{Name: "Paneer", Unit: "kg", PerPerson: perPerson(0.1), Dishes: []string{"Paneer Tikka"}},
	})
	require.Contains(t, got, "Paneer")
	assert.Zero(t, got["Paneer"].EstimatedQuantity)
}

func TestEstimateWildcards(t *testing.T) {
	demand := models.DishDemand{"Rice": 100, "Dal": 60, "Poha": 15}
	for _, wildcard := range []string{"all dishes", "Most Dishes"} {
		got := NewEstimator(MatchExact).Estimate(demand, []models.IngredientRule{
			{Name: "Salt", Unit: "g", PerPerson: perPerson(2), Dishes: []string{"Dal", wildcard}},
		})
		assert.Equal(t, 350, got["Salt"].EstimatedQuantity, wildcard)
	}
}

func TestEstimateDefaultsPerPersonToOne(t *testing.T) {
	got := NewEstimator(MatchExact).Estimate(models.DishDemand{"Curd": 37}, []models.IngredientRule{
		{Name: "Curd", Unit: "cup", Dishes: []string{"curd"}},
	})
	assert.Equal(t, 37, got["Curd"].EstimatedQuantity)
}

func TestEstimateSubstringPolicy(t *testing.T) {
	demand := models.DishDemand{"Jeera Rice": 40, "Rice": 10, "Aloo Paratha": 25}
	rules := []models.IngredientRule{
		{Name: "Rice", Unit: "kg", PerPerson: perPerson(0.1), Dishes: []string{"rice"}},
		{Name: "Potato", Unit: "kg", PerPerson: perPerson(0.2), Dishes: []string{"Aloo Paratha with Curd"}},
	}

	exact := NewEstimator(MatchExact).Estimate(demand, rules)
	assert.Equal(t, 1, exact["Rice"].EstimatedQuantity)
	assert.Zero(t, exact["Potato"].EstimatedQuantity)

	sub := NewEstimator(MatchSubstring).Estimate(demand, rules)
	assert.Equal(t, 5, sub["Rice"].EstimatedQuantity)
	assert.Equal(t, 5, sub["Potato"].EstimatedQuantity)
}

func TestEstimateCountsEachDishOncePerRule(t *testing.T) {
	got := NewEstimator(MatchSubstring).Estimate(models.DishDemand{"Dal Makhani": 10}, []models.IngredientRule{
		{Name: "Lentils", Unit: "kg", Dishes: []string{"dal", "makhani"}},
	})
	assert.Equal(t, 10, got["Lentils"].EstimatedQuantity)
}

func TestEstimateNeverNegative(t *testing.T) {
	got := NewEstimator(MatchExact).Estimate(models.DishDemand{"Dal": 10}, []models.IngredientRule{
		{Name: "Odd", Unit: "kg", PerPerson: perPerson(-1), Dishes: []string{"Dal"}},
	})
	assert.Zero(t, got["Odd"].EstimatedQuantity)
}

func TestParseMatchPolicy(t *testing.T) {
	p, err := ParseMatchPolicy("")
	require.NoError(t, err)
	assert.Equal(t, MatchExact, p)

	p, err = ParseMatchPolicy(" Substring ")
	require.NoError(t, err)
	assert.Equal(t, MatchSubstring, p)

	_, err = ParseMatchPolicy("fuzzy")
	assert.Error(t, err)
}
