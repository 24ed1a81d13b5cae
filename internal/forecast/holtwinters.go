package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// penalty replaces non-finite objective values so Nelder-Mead can keep shrinking.
const penalty = math.MaxFloat64 / 4

var errNonFinite = errors.New("non-finite model state")

// HoltWinters is an additive trend, additive season exponential smoothing model.
type HoltWinters struct {
	Alpha  float64
	Beta   float64
	Gamma  float64
	Period int
	SSE    float64

	level  float64
	trend  float64
	season []float64
	n      int
}

// smoothingState is the model state after filtering a series.
type smoothingState struct {
	level  float64
	trend  float64
	season []float64
	sse    float64
}

// initialState uses the classic heuristic: level is the mean of the first
// season, trend the per-step change between the first two season means and
// seasonal indices the first-season deviations from that level.
func initialState(y []float64, m int) (float64, float64, []float64) {
	first := y[:m]
	second := y[m : 2*m]

	level := stat.Mean(first, nil)
	trend := (stat.Mean(second, nil) - level) / float64(m)

	season := make([]float64, m)
	copy(season, first)
	floats.AddConst(-level, season)

	return level, trend, season
}

// filter runs the smoothing recursions over y and accumulates the one-step-ahead SSE.
func filter(y []float64, m int, alpha, beta, gamma float64) smoothingState {
	level, trend, init := initialState(y, m)
	season := make([]float64, m)
	copy(season, init)

	var sse float64
	for t, obs := range y {
		idx := t % m
		s := season[idx]

		predicted := level + trend + s
		diff := obs - predicted
		sse += diff * diff

		prevLevel := level
		level = alpha*(obs-s) + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
		season[idx] = gamma*(obs-level) + (1-gamma)*s
	}

	return smoothingState{level: level, trend: trend, season: season, sse: sse}
}

func logistic(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func logit(p float64) float64 { return math.Log(p / (1 - p)) }

// FitHoltWinters chooses alpha, beta and gamma by minimising in-sample SSE
// with Nelder-Mead. Parameters are searched in logit space so every candidate
// stays inside (0, 1). The context deadline bounds the optimiser runtime.
func FitHoltWinters(ctx context.Context, y []float64, period int) (*HoltWinters, error) {
	if period < 2 {
		return nil, fmt.Errorf("seasonal period must be at least 2, got %d", period)
	}
	if len(y) < 2*period {
		return nil, fmt.Errorf("need %d observations, got %d", 2*period, len(y))
	}
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errNonFinite
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if ctx.Err() != nil {
				return penalty
			}
			st := filter(y, period, logistic(x[0]), logistic(x[1]), logistic(x[2]))
			if math.IsNaN(st.sse) || math.IsInf(st.sse, 0) {
				return penalty
			}
			return st.sse
		},
	}

	settings := &optimize.Settings{
		MajorIterations: 400,
		FuncEvaluations: 2000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-9,
			Relative:   1e-9,
			Iterations: 40,
		},
	}
	if deadline, ok := ctx.Deadline(); ok {
		settings.Runtime = time.Until(deadline)
	}

	x0 := []float64{logit(0.3), logit(0.1), logit(0.1)}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, fmt.Errorf("optimize: %w", err)
	}
	if result == nil || result.F >= penalty {
		return nil, errNonFinite
	}

	model := &HoltWinters{
		Alpha:  logistic(result.X[0]),
		Beta:   logistic(result.X[1]),
		Gamma:  logistic(result.X[2]),
		Period: period,
		n:      len(y),
	}
	st := filter(y, period, model.Alpha, model.Beta, model.Gamma)
	model.level, model.trend, model.season, model.SSE = st.level, st.trend, st.season, st.sse

	if !finite(model.level) || !finite(model.trend) || !allFinite(model.season) {
		return nil, errNonFinite
	}

	return model, nil
}

// Forecast returns the next horizon values, clipped to zero.
func (hw *HoltWinters) Forecast(horizon int) []float64 {
	out := make([]float64, horizon)
	for h := 1; h <= horizon; h++ {
		s := hw.season[(hw.n+h-1)%hw.Period]
		out[h-1] = math.Max(0, hw.level+float64(h)*hw.trend+s)
	}
	return out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func allFinite(vs []float64) bool {
	for _, v := range vs {
		if !finite(v) {
			return false
		}
	}
	return true
}
