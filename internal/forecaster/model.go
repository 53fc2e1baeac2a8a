package forecaster

import (
	"context"
	"fmt"
	"math"
)

// Params are the smoothing parameters of the additive Holt-Winters model.
type Params struct {
	Alpha float64 // level
	Beta  float64 // trend
	Phi   float64 // trend damping
	Gamma float64 // seasonal, unused when the model has no seasonal term
}

var (
	alphaGrid = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}
	betaGrid  = []float64{0, 0.05, 0.1, 0.2, 0.3}
	phiGrid   = []float64{0.8, 0.9, 0.98}
	gammaGrid = []float64{0.05, 0.1, 0.2, 0.4}
)

// Model is a fitted additive Holt-Winters model with damped trend.
type Model struct {
	Params Params
	SSE    float64

	level  float64
	trend  float64
	season []float64
	n      int
}

// Fit chooses smoothing parameters by exhaustive search over a fixed grid, minimising the
// one-step-ahead squared error, and returns the model in its final state. The search order
// is fixed so ties always resolve to the same parameters.
//
// period is the seasonal cycle length in observations. The seasonal term is used only when
// period > 1 and the series holds at least two full cycles; otherwise, including the
// default period of 0, the model is Holt's damped trend without seasonality.
func Fit(ctx context.Context, values []float64, period int) (*Model, error) {
	if len(values) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 values, got %d", ErrModelFit, len(values))
	}
	if variance(values) == 0 {
		return nil, fmt.Errorf("%w: series has zero variance", ErrModelFit)
	}
	if period < 2 || len(values) < 2*period {
		period = 0
	}

	gammas := []float64{0}
	if period > 0 {
		gammas = gammaGrid
	}

	var best *Model
	for _, alpha := range alphaGrid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, beta := range betaGrid {
			for _, phi := range phiGrid {
				for _, gamma := range gammas {
					m := run(values, period, Params{Alpha: alpha, Beta: beta, Phi: phi, Gamma: gamma})
					if math.IsNaN(m.SSE) || math.IsInf(m.SSE, 0) {
						continue
					}
					if best == nil || m.SSE < best.SSE {
						best = m
					}
				}
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no finite parameter set", ErrModelFit)
	}
	return best, nil
}

func run(values []float64, period int, p Params) *Model {
	m := &Model{Params: p, n: len(values)}
	start := 1
	if period > 0 {
		first := mean(values[:period])
		second := mean(values[period : 2*period])
		m.level = first
		m.trend = (second - first) / float64(period)
		m.season = make([]float64, period)
		for i := 0; i < period; i++ {
			m.season[i] = values[i] - first
		}
		start = period
	} else {
		m.level = values[0]
		m.trend = values[1] - values[0]
	}

	for t := start; t < len(values); t++ {
		y := values[t]
		s := 0.0
		if period > 0 {
			s = m.season[t%period]
		}
		damped := m.level + p.Phi*m.trend
		e := y - (damped + s)
		m.SSE += e * e

		level := p.Alpha*(y-s) + (1-p.Alpha)*damped
		m.trend = p.Beta*(level-m.level) + (1-p.Beta)*p.Phi*m.trend
		m.level = level
		if period > 0 {
			m.season[t%period] = p.Gamma*(y-level) + (1-p.Gamma)*s
		}
	}
	return m
}

// Predict returns h raw predictions following the last fitted observation.
func (m *Model) Predict(h int) []float64 {
	out := make([]float64, h)
	damping := 0.0
	phiPow := 1.0
	for i := 1; i <= h; i++ {
		phiPow *= m.Params.Phi
		damping += phiPow
		v := m.level + damping*m.trend
		if len(m.season) > 0 {
			v += m.season[(m.n+i-1)%len(m.season)]
		}
		out[i-1] = v
	}
	return out
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64) float64 {
	mu := mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - mu
		sum += d * d
	}
	return sum / float64(len(values))
}
