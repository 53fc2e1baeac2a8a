package forecaster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisdamba/messforecast/internal/metrics"
	"github.com/chrisdamba/messforecast/internal/models"
)

var (
	week0           = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	mondayBreakfast = models.SeriesKey{Day: models.Monday, Slot: models.Breakfast}
)

func weekly(counts ...int) []models.Observation {
	obs := make([]models.Observation, len(counts))
	for i, c := range counts {
		obs[i] = models.Observation{WeekStart: week0.AddDate(0, 0, 7*i), Count: c}
	}
	return obs
}

func TestForecastSeriesTrendingHistory(t *testing.T) {
	f := New(DefaultConfig(), nil)
	res, err := f.ForecastSeries(context.Background(), Series{Key: mondayBreakfast, Observations: weekly(10, 12, 11, 13)}, week0)
	require.NoError(t, err)

	require.Len(t, res.Predictions, 1)
	assert.NoError(t, res.Fallback)
	assert.GreaterOrEqual(t, res.Predictions[0], 9)
	assert.LessOrEqual(t, res.Predictions[0], 15)
	assert.Equal(t, week0.AddDate(0, 0, 28), res.Weeks[0])
}

func TestForecastSeriesWithoutHistory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 4
	f := New(cfg, nil)

	res, err := f.ForecastSeries(context.Background(), Series{Key: mondayBreakfast}, week0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 0}, res.Predictions)
	assert.ErrorIs(t, res.Fallback, ErrDataUnavailable)
	assert.Equal(t, week0.AddDate(0, 0, 7), res.Weeks[0])
}

func TestForecastSeriesShortHistoryRepeatsLastValue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 3
	f := New(cfg, nil)

	res, err := f.ForecastSeries(context.Background(), Series{Key: mondayBreakfast, Observations: weekly(7, 9)}, week0)
	require.NoError(t, err)
	assert.Equal(t, []int{9, 9, 9}, res.Predictions)
	assert.ErrorIs(t, res.Fallback, ErrInsufficientHistory)
}

func TestForecastSeriesFlatHistoryFallsBack(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	cfg := DefaultConfig()
	cfg.Horizon = 2
	f := New(cfg, m)

	res, err := f.ForecastSeries(context.Background(), Series{Key: mondayBreakfast, Observations: weekly(50, 50, 50, 50)}, week0)
	require.NoError(t, err)
	assert.Equal(t, []int{50, 50}, res.Predictions)
	assert.ErrorIs(t, res.Fallback, ErrInsufficientHistory)
	assert.ErrorIs(t, res.Fallback, ErrModelFit)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SeriesFallbacks.WithLabelValues(metrics.ReasonModelFit)))
}

func TestForecastSeriesIsIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 6
	obs := weekly(31, 28, 35, 30, 33, 29, 36)

	first, err := New(cfg, nil).ForecastSeries(context.Background(), Series{Key: mondayBreakfast, Observations: obs}, week0)
	require.NoError(t, err)
	second, err := New(cfg, nil).ForecastSeries(context.Background(), Series{Key: mondayBreakfast, Observations: obs}, week0)
	require.NoError(t, err)
	assert.Equal(t, first.Predictions, second.Predictions)
}

func TestForecastSeriesNeverNegative(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Horizon = 8
	f := New(cfg, nil)

	res, err := f.ForecastSeries(context.Background(), Series{Key: mondayBreakfast, Observations: weekly(40, 30, 20, 10, 2)}, week0)
	require.NoError(t, err)
	for _, p := range res.Predictions {
		assert.GreaterOrEqual(t, p, 0)
	}
}

func TestForecastSeriesSortsAndDeduplicates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinObservations = 5
	f := New(cfg, nil)

	obs := []models.Observation{
		{WeekStart: week0.AddDate(0, 0, 14), Count: 3},
		{WeekStart: week0, Count: 1},
		{WeekStart: week0.AddDate(0, 0, 7), Count: 2},
		{WeekStart: week0.AddDate(0, 0, 14), Count: 4},
	}
	res, err := f.ForecastSeries(context.Background(), Series{Key: mondayBreakfast, Observations: obs}, week0)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, res.Predictions, "last duplicate wins and the latest week is last")
	assert.Equal(t, week0.AddDate(0, 0, 21), res.Weeks[0])
}

func TestForecastSeasonalHistory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SeasonLength = 2
	cfg.Horizon = 2
	f := New(cfg, nil)

	res, err := f.ForecastSeries(context.Background(), Series{Key: mondayBreakfast, Observations: weekly(10, 20, 10, 20, 10, 20, 10, 20)}, week0)
	require.NoError(t, err)
	assert.NoError(t, res.Fallback)
	assert.Equal(t, []int{10, 20}, res.Predictions)
}

func TestForecastRunsEverySeries(t *testing.T) {
	f := New(Config{Horizon: 2, Workers: 2}, nil)
	series := []Series{
		{Key: mondayBreakfast, Observations: weekly(10, 12, 11, 13)},
		{Key: models.SeriesKey{Day: models.Monday, Slot: models.Lunch}},
		{Key: models.SeriesKey{Day: models.Monday, Slot: models.Dinner}, Observations: weekly(5)},
	}

	results, err := f.Forecast(context.Background(), series, week0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, series[i].Key, r.Key)
		assert.Len(t, r.Predictions, 2)
	}

	diag := Diagnose(results)
	assert.NotContains(t, diag, "monday/breakfast")
	assert.Contains(t, diag, "monday/lunch")
	assert.Contains(t, diag, "monday/dinner")
}

func TestForecastReusesCachedFits(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	f := New(DefaultConfig(), m)
	s := Series{Key: mondayBreakfast, Observations: weekly(10, 12, 11, 13)}

	first, err := f.ForecastSeries(context.Background(), s, week0)
	require.NoError(t, err)
	second, err := f.ForecastSeries(context.Background(), s, week0)
	require.NoError(t, err)

	assert.Equal(t, first.Predictions, second.Predictions)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FitCacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FitCacheHits))

	s.Observations = weekly(10, 12, 11, 13, 14)
	_, err = f.ForecastSeries(context.Background(), s, week0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FitCacheMisses), "new data changes the fingerprint")
}

func TestWithHorizonSharesCache(t *testing.T) {
	f := New(DefaultConfig(), nil)
	g := f.WithHorizon(4)
	assert.Equal(t, 4, g.Config().Horizon)
	assert.Same(t, f.cache, g.cache)
	assert.Same(t, f, f.WithHorizon(0))
}

func TestForecastHonoursCancellation(t *testing.T) {
	f := New(DefaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Forecast(ctx, []Series{{Key: mondayBreakfast, Observations: weekly(10, 12, 11, 13)}}, week0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, f.cache.len(), "cancelled fits are not cached")
}

func TestFitCacheEvictsOldest(t *testing.T) {
	c := newFitCache(2)
	for fp := uint64(1); fp <= 3; fp++ {
		_, err := c.do(context.Background(), fp, func() (fitOutcome, error) { return fitOutcome{predictions: []int{int(fp)}}, nil }, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.len())
	_, ok := c.get(1)
	assert.False(t, ok)
	out, ok := c.get(3)
	require.True(t, ok)
	assert.Equal(t, []int{3}, out.predictions)
}

func TestFitCacheWaiterSurvivesCancelledLeader(t *testing.T) {
	c := newFitCache(4)
	started := make(chan struct{})
	release := make(chan struct{})

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.do(leaderCtx, 7, func() (fitOutcome, error) {
			close(started)
			<-release
			return fitOutcome{}, leaderCtx.Err()
		}, nil)
		leaderErr <- err
	}()
	<-started

	type result struct {
		out fitOutcome
		err error
	}
	waiter := make(chan result, 1)
	go func() {
		out, err := c.do(context.Background(), 7, func() (fitOutcome, error) {
			return fitOutcome{predictions: []int{12}}, nil
		}, nil)
		waiter <- result{out, err}
	}()
	// give the waiter time to join the in-flight fit
	time.Sleep(20 * time.Millisecond)
	cancelLeader()
	close(release)

	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	got := <-waiter
	require.NoError(t, got.err)
	assert.Equal(t, []int{12}, got.out.predictions)
	_, cached := c.get(7)
	assert.True(t, cached)
}

func TestFingerprintDependsOnOrderAndConfig(t *testing.T) {
	cfg := DefaultConfig()
	a := weekly(1, 2, 3)
	b := weekly(1, 3, 2)
	assert.Equal(t, fingerprint(a, cfg), fingerprint(weekly(1, 2, 3), cfg))
	assert.NotEqual(t, fingerprint(a, cfg), fingerprint(b, cfg))

	longer := cfg
	longer.Horizon = 4
	assert.NotEqual(t, fingerprint(a, cfg), fingerprint(a, longer))
}

func TestFitRejectsFlatSeries(t *testing.T) {
	_, err := Fit(context.Background(), []float64{3, 3, 3}, 0)
	assert.ErrorIs(t, err, ErrModelFit)

	m, err := Fit(context.Background(), []float64{1, 2, 3, 4, 5, 6}, 0)
	require.NoError(t, err)
	assert.Len(t, m.Predict(3), 3)
	assert.Empty(t, m.season, "too short for a seasonal term")
}

func TestDefaultModelHasNoSeasonalTerm(t *testing.T) {
	cfg := DefaultConfig()
	assert.Zero(t, cfg.SeasonLength)

	values := []float64{10, 20, 10, 20, 10, 20, 10, 20}
	m, err := Fit(context.Background(), values, cfg.SeasonLength)
	require.NoError(t, err)
	assert.Empty(t, m.season)
	assert.Zero(t, m.Params.Gamma)

	seasonal, err := Fit(context.Background(), values, 2)
	require.NoError(t, err)
	assert.Len(t, seasonal.season, 2)
}
