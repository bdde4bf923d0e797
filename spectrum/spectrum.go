// Package spectrum recovers stellar labels from observed spectra using a
// trained generative model, and synthesises spectra from labels (the forward
// direction). Each spectrum is fit independently, so callers are free to fan
// fits out across spectra.
package spectrum

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/hscells/cannon/vectorizer"
)

// ErrFitDidNotConverge is returned when the label search for a spectrum
// exhausts its function-evaluation budget without converging.
var ErrFitDidNotConverge = errors.New("label fit did not converge")

// DefaultMaxFuncEvaluations caps the objective evaluations of a single
// spectrum fit. It is deliberately very high; it exists to turn a fit that
// will never converge into a reported failure rather than a hang.
const DefaultMaxFuncEvaluations = 1000000

// Fitter solves the nonlinear least-squares problem of recovering the labels
// that make theta · vectorizer(labels) best reproduce an observed spectrum.
type Fitter struct {
	// Theta is the trained coefficient matrix, pixels by basis terms.
	Theta *mat.Dense
	// S2 is the trained intrinsic variance per pixel.
	S2 []float64
	// Vectorizer supplies the basis expansion and the initial label guess.
	Vectorizer vectorizer.Vectorizer
	// MaxFuncEvaluations overrides DefaultMaxFuncEvaluations when positive.
	MaxFuncEvaluations int
}

// Fit recovers the labels and their covariance for one observed spectrum.
// The flux and inverse variance must be on the same pixel grid the model was
// trained on. Pixels whose effective weight or flux is not finite are dropped
// from the residual vector entirely. Reported uncertainties are treated as
// absolute, so the covariance is not rescaled by the residuals of the fit.
func (f Fitter) Fit(flux, ivar []float64) ([]float64, *mat.Dense, error) {
	n, k := f.Theta.Dims()
	if len(flux) != n || len(ivar) != n {
		return nil, nil, errors.Errorf("spectrum has %d flux and %d ivar pixels, model has %d", len(flux), len(ivar), n)
	}
	if len(f.S2) != n {
		return nil, nil, errors.Errorf("model scatter has %d pixels, theta has %d", len(f.S2), n)
	}
	if f.Vectorizer.Terms() != k {
		return nil, nil, errors.Errorf("vectorizer produces %d terms, theta has %d", f.Vectorizer.Terms(), k)
	}

	// Effective weights, then mask anything non-finite rather than letting a
	// bad pixel poison the objective.
	var use []int
	sqrtw := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		w := ivar[i] / (1 + ivar[i]*f.S2[i])
		if math.IsInf(flux[i]*w, 0) || math.IsNaN(flux[i]*w) || math.IsInf(w, 0) || math.IsNaN(w) {
			continue
		}
		use = append(use, i)
		sqrtw = append(sqrtw, math.Sqrt(w))
	}
	if len(use) < len(f.Vectorizer.LabelNames()) {
		return nil, nil, errors.Errorf("only %d usable pixels for a %d-label fit", len(use), len(f.Vectorizer.LabelNames()))
	}

	residuals := func(labels []float64, r []float64) {
		row := f.Vectorizer.Evaluate(labels)
		for ui, i := range use {
			var pred float64
			for j := 0; j < k; j++ {
				pred += f.Theta.At(i, j) * row[j]
			}
			r[ui] = sqrtw[ui] * (pred - flux[i])
		}
	}

	r := make([]float64, len(use))
	problem := optimize.Problem{
		Func: func(labels []float64) float64 {
			residuals(labels, r)
			var chi2 float64
			for _, v := range r {
				chi2 += v * v
			}
			return chi2
		},
	}

	maxfev := f.MaxFuncEvaluations
	if maxfev <= 0 {
		maxfev = DefaultMaxFuncEvaluations
	}
	settings := &optimize.Settings{FuncEvaluations: maxfev}

	result, err := optimize.Minimize(problem, f.Vectorizer.Fiducials(), settings, &optimize.NelderMead{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "label fit")
	}
	if result.Status == optimize.FunctionEvaluationLimit || result.Status == optimize.IterationLimit {
		return result.X, nil, ErrFitDidNotConverge
	}

	labels := result.X
	cov := covariance(residuals, labels, len(use))
	return labels, cov, nil
}

// covariance estimates the label covariance as (Jᵀ J)⁻¹ where J is the
// finite-difference Jacobian of the weighted residual vector at the solution.
// This is the same quantity a weighted nonlinear least-squares solver reports
// when sigmas are absolute. Returns nil when the Jacobian is degenerate.
func covariance(residuals func([]float64, []float64), labels []float64, m int) *mat.Dense {
	l := len(labels)
	jac := mat.NewDense(m, l, nil)
	hi := make([]float64, m)
	lo := make([]float64, m)
	x := make([]float64, l)
	copy(x, labels)
	for j := 0; j < l; j++ {
		h := 1e-6 * (1 + math.Abs(x[j]))
		orig := x[j]
		x[j] = orig + h
		residuals(x, hi)
		x[j] = orig - h
		residuals(x, lo)
		x[j] = orig
		for i := 0; i < m; i++ {
			jac.Set(i, j, (hi[i]-lo[i])/(2*h))
		}
	}
	jtj := mat.NewDense(l, l, nil)
	jtj.Mul(jac.T(), jac)
	var cov mat.Dense
	if err := cov.Inverse(jtj); err != nil {
		return nil
	}
	return &cov
}

// Synthesize forward-evaluates the model, producing the flux the trained
// coefficients predict for one label vector. The only failure modes are
// shape mismatches between the labels, the vectorizer and theta.
func Synthesize(theta *mat.Dense, v vectorizer.Vectorizer, labels []float64) ([]float64, error) {
	n, k := theta.Dims()
	if len(labels) != len(v.LabelNames()) {
		return nil, errors.Errorf("got %d labels, vectorizer expects %d (%v)", len(labels), len(v.LabelNames()), v.LabelNames())
	}
	if v.Terms() != k {
		return nil, errors.Errorf("vectorizer produces %d terms, theta has %d", v.Terms(), k)
	}
	row := v.Evaluate(labels)
	flux := make([]float64, n)
	for i := 0; i < n; i++ {
		var p float64
		for j := 0; j < k; j++ {
			p += theta.At(i, j) * row[j]
		}
		flux[i] = p
	}
	return flux, nil
}
