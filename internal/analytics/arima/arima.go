package arima

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/inferloop/pricecast/pkg/constants"
	"github.com/inferloop/pricecast/pkg/errors"
)

// Order is the (p, d, q) order of an ARIMA model.
type Order struct {
	P int `json:"p" mapstructure:"p" yaml:"p"` // AR order
	D int `json:"d" mapstructure:"d" yaml:"d"` // Differencing degree
	Q int `json:"q" mapstructure:"q" yaml:"q"` // MA order
}

// String renders the order as ARIMA(p,d,q).
func (o Order) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
}

// DefaultOrder returns ARIMA(1,1,1).
func DefaultOrder() Order {
	return Order{P: constants.DefaultAROrder, D: constants.DefaultDiffOrder, Q: constants.DefaultMAOrder}
}

// Validate checks the order bounds.
func (o Order) Validate() error {
	if o.P < 0 || o.P > 5 {
		return errors.NewValidationError(errors.CodeInvalidOrder, "AR order (p) must be between 0 and 5").
			WithCause(errors.ErrInvalidParameters)
	}
	if o.D < 0 || o.D > 2 {
		return errors.NewValidationError(errors.CodeInvalidOrder, "Differencing order (d) must be between 0 and 2").
			WithCause(errors.ErrInvalidParameters)
	}
	if o.Q < 0 || o.Q > 5 {
		return errors.NewValidationError(errors.CodeInvalidOrder, "MA order (q) must be between 0 and 5").
			WithCause(errors.ErrInvalidParameters)
	}
	return nil
}

// Parameters contains fitted ARIMA model parameters
type Parameters struct {
	ARCoefficients []float64 `json:"ar_coefficients"`
	MACoefficients []float64 `json:"ma_coefficients"`
	Intercept      float64   `json:"intercept"`
	Sigma2         float64   `json:"sigma2"`
}

// ModelSummary contains fit statistics and residual diagnostics
type ModelSummary struct {
	Order         Order         `json:"order"`
	Parameters    Parameters    `json:"parameters"`
	LogLikelihood float64       `json:"log_likelihood"`
	AIC           float64       `json:"aic"`
	AICc          float64       `json:"aicc"`
	BIC           float64       `json:"bic"`
	Observations  int           `json:"observations"`
	Iterations    int           `json:"iterations"`
	Converged     bool          `json:"converged"`
	LjungBox      *LjungBoxTest `json:"ljung_box,omitempty"`
}

// LjungBoxTest results for residual autocorrelation
type LjungBoxTest struct {
	Statistic        float64 `json:"statistic"`
	PValue           float64 `json:"p_value"`
	Lags             int     `json:"lags"`
	DegreesOfFreedom int     `json:"degrees_of_freedom"`
	IsSignificant    bool    `json:"is_significant"`
}

// Model is a non-seasonal ARIMA model estimated by conditional sum of squares.
type Model struct {
	order  Order
	logger *logrus.Logger

	fitted    bool
	series    []float64
	diffed    []float64
	params    Parameters
	constant  bool
	residuals []float64
	summary   *ModelSummary
	maxIter   int
	lbLags    int
	sigLevel  float64
}

// NewModel creates an unfitted model of the given order.
func NewModel(order Order, logger *logrus.Logger) (*Model, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &Model{
		order:    order,
		logger:   logger,
		constant: order.D == 0,
		maxIter:  2000,
		lbLags:   constants.DefaultLjungBoxLags,
		sigLevel: 0.05,
	}, nil
}

// Order returns the model order.
func (m *Model) Order() Order {
	return m.order
}

// Fit estimates the model on data. An intercept is estimated only when d == 0.
func (m *Model) Fit(data []float64) error {
	o := m.order
	minObs := o.D + o.P + o.Q + 2
	if len(data) < minObs {
		return errors.NewModelFitError(errors.CodeInsufficientData,
			fmt.Sprintf("%s needs at least %d observations, got %d", o, minObs, len(data))).
			WithCause(errors.ErrInsufficientData)
	}

	m.series = append([]float64(nil), data...)
	m.diffed = difference(data, o.D)

	nParams := o.P + o.Q
	if m.constant {
		nParams++
	}

	x0 := m.startValues()
	iterations, converged := 0, true
	xOpt := x0
	if nParams > 0 {
		problem := optimize.Problem{
			Func: func(x []float64) float64 {
				css, nobs := m.conditionalSumOfSquares(m.unpack(x), nil)
				if nobs <= 0 || css <= 0 || math.IsNaN(css) || math.IsInf(css, 0) {
					return math.Inf(1)
				}
				return 0.5 * math.Log(css/float64(nobs))
			},
		}
		settings := &optimize.Settings{
			MajorIterations: m.maxIter,
			Converger: &optimize.FunctionConverge{
				Absolute:   1e-10,
				Relative:   1e-10,
				Iterations: 50,
			},
		}

		result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
		if result == nil || !floatsFinite(result.X) {
			if err == nil {
				err = errors.ErrFitFailed
			}
			return errors.WrapError(err, errors.ErrorTypeModelFit, errors.CodeFitFailed,
				fmt.Sprintf("Failed to estimate %s", o))
		}
		if err != nil || result.Status.Early() {
			converged = false
			m.logger.WithError(err).WithFields(logrus.Fields{
				"order":  o.String(),
				"status": result.Status.String(),
			}).Warn("Optimizer stopped before convergence")
		}
		xOpt = result.X
		iterations = result.Stats.MajorIterations
	}

	params := m.unpack(xOpt)
	residuals := make([]float64, len(m.diffed))
	css, nobs := m.conditionalSumOfSquares(params, residuals)
	if nobs <= 0 || css <= 0 {
		return errors.NewModelFitError(errors.CodeFitFailed, "degenerate fit: zero residual variance").
			WithCause(errors.ErrFitFailed)
	}
	params.Sigma2 = css / float64(nobs)

	m.params = params
	m.residuals = residuals
	m.fitted = true
	m.summary = m.buildSummary(nobs, iterations, converged)

	m.logger.WithFields(logrus.Fields{
		"order":     o.String(),
		"ar":        params.ARCoefficients,
		"ma":        params.MACoefficients,
		"sigma2":    params.Sigma2,
		"aic":       m.summary.AIC,
		"converged": converged,
	}).Debug("Fitted ARIMA model")

	return nil
}

// Parameters returns the fitted parameters.
func (m *Model) Parameters() (Parameters, error) {
	if !m.fitted {
		return Parameters{}, errors.NewModelFitError(errors.CodeNotFitted, "model is not fitted").
			WithCause(errors.ErrModelNotFitted)
	}
	p := m.params
	p.ARCoefficients = append([]float64(nil), p.ARCoefficients...)
	p.MACoefficients = append([]float64(nil), p.MACoefficients...)
	return p, nil
}

// Summary returns fit statistics; nil before Fit.
func (m *Model) Summary() *ModelSummary {
	return m.summary
}

// Forecast returns the h-step point forecasts of the original (undifferenced)
// series and their standard errors.
func (m *Model) Forecast(h int) ([]float64, []float64, error) {
	if !m.fitted {
		return nil, nil, errors.NewModelFitError(errors.CodeNotFitted, "model must be fitted before forecasting").
			WithCause(errors.ErrModelNotFitted)
	}
	if h <= 0 {
		return nil, nil, errors.NewValidationError(errors.CodeInvalidInput, "forecast horizon must be positive")
	}

	p, q := m.order.P, m.order.Q
	phi, theta, mu := m.params.ARCoefficients, m.params.MACoefficients, m.params.Intercept

	n := len(m.diffed)
	x := make([]float64, n+h)
	e := make([]float64, n+h)
	for i, v := range m.diffed {
		x[i] = v - mu
	}
	copy(e, m.residuals)

	for t := n; t < n+h; t++ {
		v := 0.0
		for i := 1; i <= p; i++ {
			if t-i >= 0 {
				v += phi[i-1] * x[t-i]
			}
		}
		for j := 1; j <= q; j++ {
			if t-j >= 0 {
				v += theta[j-1] * e[t-j]
			}
		}
		x[t] = v
	}

	diffForecast := make([]float64, h)
	for i := range diffForecast {
		diffForecast[i] = x[n+i] + mu
	}
	forecast := integrate(m.series, diffForecast, m.order.D)

	psi := m.psiWeights(h)
	stderr := make([]float64, h)
	cum := 0.0
	for i := 0; i < h; i++ {
		cum += psi[i] * psi[i]
		stderr[i] = math.Sqrt(m.params.Sigma2 * cum)
	}

	return forecast, stderr, nil
}

// PredictionIntervals computes symmetric normal intervals around forecasts.
func PredictionIntervals(forecasts, standardErrors []float64, confidenceLevel float64) *Intervals {
	z := distuv.UnitNormal.Quantile(1 - (1-confidenceLevel)/2)

	lower := make([]float64, len(forecasts))
	upper := make([]float64, len(forecasts))
	for i := range forecasts {
		margin := z * standardErrors[i]
		lower[i] = forecasts[i] - margin
		upper[i] = forecasts[i] + margin
	}

	return &Intervals{
		ConfidenceLevel: confidenceLevel,
		Lower:           lower,
		Upper:           upper,
		StandardErrors:  append([]float64(nil), standardErrors...),
	}
}

// conditionalSumOfSquares returns the CSS of the differenced series and the
// number of terms summed. When residuals is non-nil it receives e_t.
func (m *Model) conditionalSumOfSquares(params Parameters, residuals []float64) (float64, int) {
	p, q := m.order.P, m.order.Q
	w := m.diffed
	n := len(w)
	if residuals == nil {
		residuals = make([]float64, n)
	}

	css := 0.0
	for t := p; t < n; t++ {
		e := w[t] - params.Intercept
		for i := 1; i <= p; i++ {
			e -= params.ARCoefficients[i-1] * (w[t-i] - params.Intercept)
		}
		for j := 1; j <= q; j++ {
			if t-j >= p {
				e -= params.MACoefficients[j-1] * residuals[t-j]
			}
		}
		residuals[t] = e
		css += e * e
	}
	return css, n - p
}

// startValues returns unconstrained starting values: Yule-Walker estimates for
// the AR part, zero for the MA part and the sample mean for the intercept.
func (m *Model) startValues() []float64 {
	p, q := m.order.P, m.order.Q
	x := make([]float64, 0, p+q+1)

	x = append(x, unconstrainStationary(yuleWalker(m.diffed, p))...)
	for j := 0; j < q; j++ {
		x = append(x, 0)
	}
	if m.constant {
		x = append(x, stat.Mean(m.diffed, nil))
	}
	return x
}

// unpack maps unconstrained optimizer values to stationary AR and invertible
// MA coefficients.
func (m *Model) unpack(x []float64) Parameters {
	p, q := m.order.P, m.order.Q
	params := Parameters{
		ARCoefficients: constrainStationary(x[:p]),
		MACoefficients: constrainStationary(x[p : p+q]),
	}
	floats.Scale(-1, params.MACoefficients)
	if m.constant {
		params.Intercept = x[p+q]
	}
	return params
}

// psiWeights returns the first h coefficients of the MA(infinity)
// representation of the integrated model.
func (m *Model) psiWeights(h int) []float64 {
	phiStar := integratedAR(m.params.ARCoefficients, m.order.D)
	theta := m.params.MACoefficients

	psi := make([]float64, h)
	psi[0] = 1
	for j := 1; j < h; j++ {
		v := 0.0
		if j <= len(theta) {
			v = theta[j-1]
		}
		for i := 1; i <= len(phiStar) && i <= j; i++ {
			v += phiStar[i-1] * psi[j-i]
		}
		psi[j] = v
	}
	return psi
}

func (m *Model) buildSummary(nobs, iterations int, converged bool) *ModelSummary {
	k := float64(m.order.P + m.order.Q + 1)
	if m.constant {
		k++
	}
	nf := float64(nobs)
	loglik := -0.5 * nf * (math.Log(2*math.Pi*m.params.Sigma2) + 1)
	aic := -2*loglik + 2*k
	aicc := math.Inf(1)
	if nf-k-1 > 0 {
		aicc = aic + 2*k*(k+1)/(nf-k-1)
	}

	return &ModelSummary{
		Order:         m.order,
		Parameters:    m.params,
		LogLikelihood: loglik,
		AIC:           aic,
		AICc:          aicc,
		BIC:           -2*loglik + k*math.Log(nf),
		Observations:  nobs,
		Iterations:    iterations,
		Converged:     converged,
		LjungBox:      ljungBox(m.residuals[m.order.P:], m.lbLags, m.order.P+m.order.Q, m.sigLevel),
	}
}

// ljungBox tests residuals for autocorrelation up to lags, adjusting the
// degrees of freedom for fitted parameters.
func ljungBox(residuals []float64, lags, fitted int, significance float64) *LjungBoxTest {
	n := len(residuals)
	if lags >= n {
		lags = n - 1
	}
	if lags < 1 {
		return nil
	}

	acf := autocorrelations(residuals, lags)
	nf := float64(n)
	statistic := 0.0
	for k := 1; k <= lags; k++ {
		statistic += acf[k] * acf[k] / (nf - float64(k))
	}
	statistic *= nf * (nf + 2)

	df := lags - fitted
	if df < 1 {
		df = 1
	}
	pValue := 1 - distuv.ChiSquared{K: float64(df)}.CDF(statistic)

	return &LjungBoxTest{
		Statistic:        statistic,
		PValue:           pValue,
		Lags:             lags,
		DegreesOfFreedom: df,
		IsSignificant:    pValue < significance,
	}
}

func autocorrelations(data []float64, maxLag int) []float64 {
	n := len(data)
	mean := stat.Mean(data, nil)
	centered := make([]float64, n)
	copy(centered, data)
	floats.AddConst(-mean, centered)

	denom := floats.Dot(centered, centered)
	acf := make([]float64, maxLag+1)
	acf[0] = 1
	if denom == 0 {
		return acf
	}
	for lag := 1; lag <= maxLag; lag++ {
		acf[lag] = floats.Dot(centered[:n-lag], centered[lag:]) / denom
	}
	return acf
}

// yuleWalker returns AR(p) coefficients solved from the sample
// autocorrelations with the Durbin-Levinson recursion.
func yuleWalker(data []float64, p int) []float64 {
	if p == 0 {
		return nil
	}
	phi := make([]float64, p)
	if p >= len(data) {
		return phi
	}
	acf := autocorrelations(data, p)

	current := make([]float64, 0, p)
	v := 1.0
	for k := 1; k <= p; k++ {
		num := acf[k]
		for i := 1; i < k; i++ {
			num -= current[i-1] * acf[k-i]
		}
		r := 0.0
		if v > 0 {
			r = num / v
		}
		next := make([]float64, k)
		for i := 1; i < k; i++ {
			next[i-1] = current[i-1] - r*current[k-i-1]
		}
		next[k-1] = r
		current = next
		v *= 1 - r*r
	}
	copy(phi, current)
	return phi
}

// constrainStationary maps unconstrained reals to the coefficients of a
// stationary AR polynomial (Monahan 1984; Jones 1980).
func constrainStationary(x []float64) []float64 {
	k := len(x)
	phi := make([]float64, 0, k)
	for j := 0; j < k; j++ {
		r := x[j] / math.Sqrt(1+x[j]*x[j])
		next := make([]float64, j+1)
		for i := 0; i < j; i++ {
			next[i] = phi[i] - r*phi[j-i-1]
		}
		next[j] = r
		phi = next
	}
	return phi
}

// unconstrainStationary inverts constrainStationary.
func unconstrainStationary(phi []float64) []float64 {
	k := len(phi)
	current := append([]float64(nil), phi...)
	x := make([]float64, k)
	for j := k - 1; j >= 0; j-- {
		r := math.Max(-0.99, math.Min(0.99, current[j]))
		x[j] = r / math.Sqrt(1-r*r)
		prev := make([]float64, j)
		for i := 0; i < j; i++ {
			prev[i] = (current[i] + r*current[j-i-1]) / (1 - r*r)
		}
		current = prev
	}
	return x
}

// integratedAR expands (1 - sum phi_i B^i)(1 - B)^d and returns the
// coefficients phi*_i of 1 - sum phi*_i B^i.
func integratedAR(phi []float64, d int) []float64 {
	poly := make([]float64, len(phi)+1)
	poly[0] = 1
	for i, c := range phi {
		poly[i+1] = -c
	}
	for k := 0; k < d; k++ {
		next := make([]float64, len(poly)+1)
		for i, c := range poly {
			next[i] += c
			next[i+1] -= c
		}
		poly = next
	}
	out := make([]float64, len(poly)-1)
	for i := range out {
		out[i] = -poly[i+1]
	}
	return out
}

// difference applies d rounds of first differencing.
func difference(data []float64, d int) []float64 {
	out := append([]float64(nil), data...)
	for k := 0; k < d; k++ {
		next := make([]float64, len(out)-1)
		for i := range next {
			next[i] = out[i+1] - out[i]
		}
		out = next
	}
	return out
}

// integrate undoes d rounds of differencing on forecasts of the differenced
// series, anchored on the end of the original series.
func integrate(original, forecasts []float64, d int) []float64 {
	if d == 0 {
		return append([]float64(nil), forecasts...)
	}

	last := make([]float64, d)
	level := original
	for k := 0; k < d; k++ {
		last[k] = level[len(level)-1]
		level = difference(level, 1)
	}

	out := make([]float64, len(forecasts))
	for i, f := range forecasts {
		v := f
		for k := d - 1; k >= 0; k-- {
			v += last[k]
			last[k] = v
		}
		out[i] = v
	}
	return out
}

func floatsFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
