// Package forecaster predicts future weekly attendance for each historical series.
package forecaster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chrisdamba/messforecast/internal/logging"
	"github.com/chrisdamba/messforecast/internal/metrics"
	"github.com/chrisdamba/messforecast/internal/models"
)

var (
	// ErrDataUnavailable marks a series with no observations; it predicts zero.
	ErrDataUnavailable = errors.New("no historical observations")
	// ErrInsufficientHistory marks a series too short to fit; it repeats its last value.
	ErrInsufficientHistory = errors.New("insufficient history for a seasonal fit")
	// ErrModelFit marks a numerical failure while fitting. It is always reported
	// wrapped together with ErrInsufficientHistory.
	ErrModelFit = errors.New("model fit failed")
)

type Config struct {
	Horizon         int
	MinObservations int
	// SeasonLength is the seasonal cycle in weeks. 0, the default, fits level and damped
	// trend only.
	SeasonLength    int
	Workers         int
	CacheSize       int
}

func DefaultConfig() Config {
	return Config{
		Horizon:         1,
		MinObservations: 3,
		Workers:         4,
		CacheSize:       256,
	}
}

// Series is the ordered history of one series key.
type Series struct {
	Key          models.SeriesKey
	Observations []models.Observation
}

// Result holds the horizon predicted for one series.
type Result struct {
	Key models.SeriesKey
	// Weeks are the week starts of each horizon step, 7 days apart.
	Weeks       []time.Time
	Predictions []int
	// Fallback is nil when a model was fitted, otherwise the reason it was not.
	Fallback error
}

// Diagnostics maps a series key to the reason it fell back, for series that did.
type Diagnostics map[string]string

// Diagnose collects the fallback reasons of results.
func Diagnose(results []Result) Diagnostics {
	d := make(Diagnostics)
	for _, r := range results {
		if r.Fallback != nil {
			d[r.Key.String()] = r.Fallback.Error()
		}
	}
	return d
}

// Forecaster fits one Holt-Winters model per series. By default the model has no seasonal
// term: series are keyed per weekday and meal slot, so weekly seasonality is carried by the
// key, and each series is a level with a damped trend. Config.SeasonLength adds a seasonal
// term over a multi-week cycle.
type Forecaster struct {
	cfg     Config
	cache   *fitCache
	metrics *metrics.Pipeline
}

func New(cfg Config, m *metrics.Pipeline) *Forecaster {
	def := DefaultConfig()
	if cfg.Horizon < 1 {
		cfg.Horizon = def.Horizon
	}
	if cfg.MinObservations < 2 {
		cfg.MinObservations = def.MinObservations
	}
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}
	if cfg.CacheSize < 1 {
		cfg.CacheSize = def.CacheSize
	}
	return &Forecaster{cfg: cfg, cache: newFitCache(cfg.CacheSize), metrics: m}
}

func (f *Forecaster) Config() Config {
	return f.cfg
}

// WithHorizon returns a forecaster predicting h weeks that shares this forecaster's fit cache.
func (f *Forecaster) WithHorizon(h int) *Forecaster {
	if h < 1 || h == f.cfg.Horizon {
		return f
	}
	cfg := f.cfg
	cfg.Horizon = h
	return &Forecaster{cfg: cfg, cache: f.cache, metrics: f.metrics}
}

// Forecast predicts every series concurrently. Empty series are anchored at anchor, the week
// start after which their (zero) horizon begins. Only context cancellation is returned as an
// error; per-series problems are recovered and reported in Result.Fallback.
func (f *Forecaster) Forecast(ctx context.Context, series []Series, anchor time.Time) ([]Result, error) {
	results := make([]Result, len(series))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Workers)
	for i, s := range series {
		g.Go(func() error {
			r, err := f.ForecastSeries(gctx, s, anchor)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ForecastSeries predicts one series.
func (f *Forecaster) ForecastSeries(ctx context.Context, s Series, anchor time.Time) (Result, error) {
	obs := normalize(s.Key, s.Observations)
	res := Result{Key: s.Key}

	last := anchor
	if len(obs) > 0 {
		last = obs[len(obs)-1].WeekStart
	}
	res.Weeks = make([]time.Time, f.cfg.Horizon)
	for i := range res.Weeks {
		res.Weeks[i] = last.AddDate(0, 0, 7*(i+1))
	}

	if len(obs) == 0 {
		res.Predictions = make([]int, f.cfg.Horizon)
		res.Fallback = ErrDataUnavailable
		f.metrics.SeriesFellBack(metrics.ReasonDataUnavailable)
		return res, nil
	}

	values := make([]float64, len(obs))
	for i, o := range obs {
		values[i] = float64(o.Count)
	}

	if len(obs) < f.cfg.MinObservations {
		res.Predictions = repeat(clamp(values[len(values)-1]), f.cfg.Horizon)
		res.Fallback = ErrInsufficientHistory
		f.metrics.SeriesFellBack(metrics.ReasonInsufficientHistory)
		return res, nil
	}

	out, err := f.cache.do(ctx, fingerprint(obs, f.cfg), func() (fitOutcome, error) {
		start := time.Now()
		defer func() { f.metrics.ObserveFit(time.Since(start).Seconds()) }()
		return f.fit(ctx, values)
	}, f.metrics)
	if err != nil {
		return Result{}, err
	}

	res.Predictions = append([]int(nil), out.predictions...)
	res.Fallback = out.fallback
	if out.fallback != nil {
		f.metrics.SeriesFellBack(metrics.ReasonModelFit)
		logging.Debug().Err(out.fallback).Str("series", s.Key.String()).Msg("model fit failed, using last value")
	}
	return res, nil
}

// fit returns an error only for context cancellation; numerical failures become a fallback outcome.
func (f *Forecaster) fit(ctx context.Context, values []float64) (fitOutcome, error) {
	model, err := Fit(ctx, values, f.cfg.SeasonLength)
	if err != nil {
		if ctx.Err() != nil {
			return fitOutcome{}, ctx.Err()
		}
		return fitOutcome{
			predictions: repeat(clamp(values[len(values)-1]), f.cfg.Horizon),
			fallback:    fmt.Errorf("%w: %w", ErrInsufficientHistory, err),
		}, nil
	}

	raw := model.Predict(f.cfg.Horizon)
	preds := make([]int, len(raw))
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fitOutcome{
				predictions: repeat(clamp(values[len(values)-1]), f.cfg.Horizon),
				fallback:    fmt.Errorf("%w: %w: non-finite prediction", ErrInsufficientHistory, ErrModelFit),
			}, nil
		}
		preds[i] = clamp(v)
	}
	return fitOutcome{predictions: preds}, nil
}

// normalize orders observations by week start and keeps the last of any duplicates.
func normalize(key models.SeriesKey, obs []models.Observation) []models.Observation {
	if sort.SliceIsSorted(obs, func(i, j int) bool { return obs[i].WeekStart.Before(obs[j].WeekStart) }) && !hasDuplicates(obs) {
		return obs
	}
	sorted := make([]models.Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].WeekStart.Before(sorted[j].WeekStart) })

	out := sorted[:0]
	for _, o := range sorted {
		if n := len(out); n > 0 && out[n-1].WeekStart.Equal(o.WeekStart) {
			out[n-1] = o
			continue
		}
		out = append(out, o)
	}
	logging.Warn().Str("series", key.String()).Int("observations", len(obs)).Int("kept", len(out)).
		Msg("series was unordered or had duplicate week starts")
	return out
}

func hasDuplicates(obs []models.Observation) bool {
	for i := 1; i < len(obs); i++ {
		if obs[i].WeekStart.Equal(obs[i-1].WeekStart) {
			return true
		}
	}
	return false
}

// clamp rounds half away from zero and floors the result at zero.
func clamp(v float64) int {
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	return int(r)
}

func repeat(v, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
