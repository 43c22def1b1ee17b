package arima

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/inferloop/pricecast/pkg/constants"
	"github.com/inferloop/pricecast/pkg/errors"
)

// DecompositionConfig contains the STL smoothing parameters. Zero values are
// replaced by the defaults derived from the period; InnerIterations defaults to
// 5, or 2 for a robust fit.
type DecompositionConfig struct {
	Period          int  `json:"period" mapstructure:"period" yaml:"period"`
	SeasonalWindow  int  `json:"seasonal_window" mapstructure:"seasonal_window" yaml:"seasonal_window"`
	TrendWindow     int  `json:"trend_window" mapstructure:"trend_window" yaml:"trend_window"`
	LowPassWindow   int  `json:"low_pass_window" mapstructure:"low_pass_window" yaml:"low_pass_window"`
	InnerIterations int  `json:"inner_iterations" mapstructure:"inner_iterations" yaml:"inner_iterations"`
	OuterIterations int  `json:"outer_iterations" mapstructure:"outer_iterations" yaml:"outer_iterations"`
	Robust          bool `json:"robust" mapstructure:"robust" yaml:"robust"`
}

// DecompositionResult contains seasonal decomposition components
type DecompositionResult struct {
	Observed []float64 `json:"observed"`
	Trend    []float64 `json:"trend"`
	Seasonal []float64 `json:"seasonal"`
	Residual []float64 `json:"residual"`
	Weights  []float64 `json:"weights"`
	Period   int       `json:"period"`
}

// SeasonallyAdjusted returns observed minus seasonal.
func (d *DecompositionResult) SeasonallyAdjusted() []float64 {
	adjusted := make([]float64, len(d.Observed))
	floats.SubTo(adjusted, d.Observed, d.Seasonal)
	return adjusted
}

// SeasonalNaive repeats the last observed period of the seasonal component for
// horizon steps past the end of the series.
func (d *DecompositionResult) SeasonalNaive(horizon int) []float64 {
	n := len(d.Seasonal)
	out := make([]float64, horizon)
	for h := 0; h < horizon; h++ {
		out[h] = d.Seasonal[n-d.Period+h%d.Period]
	}
	return out
}

// DefaultDecompositionConfig returns the STL settings used for monthly data.
func DefaultDecompositionConfig() *DecompositionConfig {
	return &DecompositionConfig{
		Period:         constants.DefaultSeasonalPeriod,
		SeasonalWindow: constants.DefaultSeasonalWindow,
	}
}

func (c *DecompositionConfig) normalized() (*DecompositionConfig, error) {
	cfg := *c
	if cfg.Period < 2 {
		return nil, errors.NewValidationError(errors.CodeInvalidInput,
			fmt.Sprintf("seasonal period must be at least 2, got %d", cfg.Period))
	}
	if cfg.SeasonalWindow == 0 {
		cfg.SeasonalWindow = constants.DefaultSeasonalWindow
	}
	if cfg.SeasonalWindow < 3 || cfg.SeasonalWindow%2 == 0 {
		return nil, errors.NewValidationError(errors.CodeInvalidInput,
			fmt.Sprintf("seasonal window must be an odd integer >= 3, got %d", cfg.SeasonalWindow))
	}
	if cfg.TrendWindow == 0 {
		cfg.TrendWindow = nextOdd(int(math.Ceil(1.5 * float64(cfg.Period) / (1 - 1.5/float64(cfg.SeasonalWindow)))))
	}
	if cfg.LowPassWindow == 0 {
		cfg.LowPassWindow = nextOdd(cfg.Period + 1)
	}
	if cfg.TrendWindow < 3 || cfg.TrendWindow%2 == 0 || cfg.LowPassWindow < 3 || cfg.LowPassWindow%2 == 0 {
		return nil, errors.NewValidationError(errors.CodeInvalidInput, "trend and low-pass windows must be odd integers >= 3")
	}
	if cfg.InnerIterations <= 0 {
		cfg.InnerIterations = constants.DefaultInnerIterations
		if cfg.Robust {
			cfg.InnerIterations = constants.DefaultRobustInnerIterations
		}
	}
	if cfg.Robust && cfg.OuterIterations <= 0 {
		cfg.OuterIterations = constants.DefaultRobustIterations
	}
	if !cfg.Robust {
		cfg.OuterIterations = 0
	}
	return &cfg, nil
}

// Decompose splits data into trend, seasonal and residual components with
// Cleveland's STL procedure using degree 1 LOESS smoothers. At least two full
// periods of data are required.
func Decompose(data []float64, config *DecompositionConfig) (*DecompositionResult, error) {
	if config == nil {
		config = DefaultDecompositionConfig()
	}
	cfg, err := config.normalized()
	if err != nil {
		return nil, err
	}

	n := len(data)
	if n < 2*cfg.Period {
		return nil, errors.NewModelFitError(errors.CodeInsufficientData,
			fmt.Sprintf("decomposition needs at least %d observations (two periods of %d), got %d", 2*cfg.Period, cfg.Period, n)).
			WithCause(errors.ErrInsufficientData)
	}
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewModelFitError(errors.CodeDecomposition, fmt.Sprintf("non-finite value at index %d", i)).
				WithCause(errors.ErrNonFiniteValue)
		}
	}

	y := append([]float64(nil), data...)
	trend := make([]float64, n)
	seasonal := make([]float64, n)
	weights := make([]float64, n)
	useWeights := false

	for k := 0; ; k++ {
		cfg.innerLoop(y, weights, useWeights, seasonal, trend)
		if k >= cfg.OuterIterations {
			break
		}
		fit := make([]float64, n)
		floats.AddTo(fit, trend, seasonal)
		robustnessWeights(y, fit, weights)
		useWeights = true
	}
	if cfg.OuterIterations <= 0 {
		for i := range weights {
			weights[i] = 1
		}
	}

	residual := make([]float64, n)
	for i := range y {
		residual[i] = y[i] - trend[i] - seasonal[i]
	}

	return &DecompositionResult{
		Observed: y,
		Trend:    trend,
		Seasonal: seasonal,
		Residual: residual,
		Weights:  weights,
		Period:   cfg.Period,
	}, nil
}

// innerLoop runs the STL inner iterations, updating seasonal and trend in place.
func (c *DecompositionConfig) innerLoop(y, rw []float64, useWeights bool, seasonal, trend []float64) {
	n := len(y)
	np := c.Period
	detrended := make([]float64, n)
	cycle := make([]float64, n+2*np)
	lowPass := make([]float64, n)
	deseasonalized := make([]float64, n)

	for iter := 0; iter < c.InnerIterations; iter++ {
		floats.SubTo(detrended, y, trend)
		c.cycleSubseries(detrended, rw, useWeights, cycle)

		filtered := lowPassFilter(cycle, np)
		loess(filtered, c.LowPassWindow, false, nil, lowPass)
		for i := 0; i < n; i++ {
			seasonal[i] = cycle[np+i] - lowPass[i]
		}

		floats.SubTo(deseasonalized, y, seasonal)
		loess(deseasonalized, c.TrendWindow, useWeights, rw, trend)
	}
}

// cycleSubseries smooths each cycle-subseries and extends it by one point at
// either end, writing a series of length len(y)+2*period.
func (c *DecompositionConfig) cycleSubseries(y, rw []float64, useWeights bool, out []float64) {
	n := len(y)
	np := c.Period
	for j := 0; j < np; j++ {
		k := (n-j-1)/np + 1
		sub := make([]float64, k)
		subWeights := make([]float64, k)
		for i := 0; i < k; i++ {
			sub[i] = y[i*np+j]
			subWeights[i] = rw[i*np+j]
		}

		smoothed := make([]float64, k+2)
		loess(sub, c.SeasonalWindow, useWeights, subWeights, smoothed[1:k+1])

		var ok bool
		smoothed[0], ok = localFit(sub, c.SeasonalWindow, -1, 0, min(c.SeasonalWindow, k)-1, useWeights, subWeights)
		if !ok {
			smoothed[0] = smoothed[1]
		}
		smoothed[k+1], ok = localFit(sub, c.SeasonalWindow, float64(k), max(0, k-c.SeasonalWindow), k-1, useWeights, subWeights)
		if !ok {
			smoothed[k+1] = smoothed[k]
		}

		for m := 0; m < k+2; m++ {
			out[m*np+j] = smoothed[m]
		}
	}
}

// loess smooths y with a sliding window of span points, evaluating at every index.
func loess(y []float64, span int, useWeights bool, rw []float64, out []float64) {
	n := len(y)
	if n < 2 {
		out[0] = y[0]
		return
	}

	left, right := 0, min(span, n)-1
	half := (span + 1) / 2
	for i := 0; i < n; i++ {
		if span < n && i+1 > half && right != n-1 {
			left++
			right++
		}
		v, ok := localFit(y, span, float64(i), left, right, useWeights, rw)
		if !ok {
			v = y[i]
		}
		out[i] = v
	}
}

// localFit evaluates a tricube weighted local linear regression of y over the
// index window [left, right] at position xs.
func localFit(y []float64, span int, xs float64, left, right int, useWeights bool, rw []float64) (float64, bool) {
	n := len(y)
	h := math.Max(xs-float64(left), float64(right)-xs)
	if span > n {
		h += float64((span - n) / 2)
	}
	h9, h1 := 0.999*h, 0.001*h

	w := make([]float64, right-left+1)
	total := 0.0
	for j := left; j <= right; j++ {
		r := math.Abs(float64(j) - xs)
		if r > h9 {
			continue
		}
		wj := 1.0
		if r > h1 {
			wj = math.Pow(1-math.Pow(r/h, 3), 3)
		}
		if useWeights {
			wj *= rw[j]
		}
		w[j-left] = wj
		total += wj
	}
	if total <= 0 {
		return 0, false
	}
	floats.Scale(1/total, w)

	if h > 0 {
		center := 0.0
		for j := left; j <= right; j++ {
			center += w[j-left] * float64(j)
		}
		spread := 0.0
		for j := left; j <= right; j++ {
			d := float64(j) - center
			spread += w[j-left] * d * d
		}
		if math.Sqrt(spread) > 0.001*float64(n-1) {
			slope := (xs - center) / spread
			for j := left; j <= right; j++ {
				w[j-left] *= slope*(float64(j)-center) + 1
			}
		}
	}

	return floats.Dot(w, y[left:right+1]), true
}

// lowPassFilter applies moving averages of length period, period and 3.
func lowPassFilter(x []float64, period int) []float64 {
	return movingAverage(movingAverage(movingAverage(x, period), period), 3)
}

func movingAverage(x []float64, span int) []float64 {
	out := make([]float64, len(x)-span+1)
	sum := floats.Sum(x[:span])
	out[0] = sum / float64(span)
	for i := 1; i < len(out); i++ {
		sum += x[i+span-1] - x[i-1]
		out[i] = sum / float64(span)
	}
	return out
}

// robustnessWeights computes bisquare weights from the residuals y - fit
// scaled by six times their median absolute value.
func robustnessWeights(y, fit, rw []float64) {
	n := len(y)
	abs := make([]float64, n)
	for i := range y {
		abs[i] = math.Abs(y[i] - fit[i])
	}
	sorted := append([]float64(nil), abs...)
	sort.Float64s(sorted)
	mid := n/2 + 1
	cmad := 3 * (sorted[mid-1] + sorted[n-mid])
	c9, c1 := 0.999*cmad, 0.001*cmad

	for i, r := range abs {
		switch {
		case r <= c1:
			rw[i] = 1
		case r <= c9:
			u := r / cmad
			rw[i] = (1 - u*u) * (1 - u*u)
		default:
			rw[i] = 0
		}
	}
}

func nextOdd(v int) int {
	if v%2 == 0 {
		return v + 1
	}
	return v
}
