// Package pixel fits the generative model at a single wavelength pixel.
// Each pixel is fit independently of every other pixel: given the flux and
// inverse variance of that pixel across all training stars, and the shared
// design matrix, the package solves for the basis coefficients (theta) and,
// when it is not held fixed, the intrinsic scatter of the pixel.
package pixel

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Result is the outcome of fitting one pixel.
//
// Cov is the inverse of the weighted Gram matrix (Xᵀ diag(w) X)⁻¹. When the
// Gram matrix is singular there is no covariance; Cov is nil and Theta holds
// the fallback coefficients (a unit leading coefficient and zeros elsewhere),
// which carry no statistical meaning but let the rest of a training run
// proceed.
type Result struct {
	Theta         []float64
	Cov           *mat.Dense
	EffectiveIvar []float64
	Scatter       float64
}

// Singular reports whether the weighted linear system for this pixel could
// not be inverted.
func (r Result) Singular() bool {
	return r.Cov == nil
}

// EffectiveIvar deflates the measurement inverse variance by an intrinsic
// scatter term: w = ivar / (1 + ivar·s²). With s = 0 the measurement ivar is
// returned unchanged; as s grows every star's weight shrinks toward 1/s².
func EffectiveIvar(ivar []float64, scatter float64) []float64 {
	w := make([]float64, len(ivar))
	s2 := scatter * scatter
	for i, v := range ivar {
		w[i] = v / (1 + v*s2)
	}
	return w
}

// SolveTheta solves the weighted least-squares system for one pixel at a
// fixed scatter. The returned result contains the coefficient vector, the
// effective inverse variance actually used as weights, and the coefficient
// covariance, unless the weighted Gram matrix was singular, in which case the
// fallback result is returned instead (see Result).
func SolveTheta(design *mat.Dense, flux, ivar []float64, scatter float64) Result {
	m, k := design.Dims()
	w := EffectiveIvar(ivar, scatter)

	// Xᵀ diag(w) X, built by scaling each row of the design matrix.
	weighted := mat.NewDense(m, k, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < k; j++ {
			weighted.Set(i, j, design.At(i, j)*w[i])
		}
	}
	gram := mat.NewDense(k, k, nil)
	gram.Mul(design.T(), weighted)

	var cov mat.Dense
	if err := cov.Inverse(gram); err != nil {
		theta := make([]float64, k)
		theta[0] = 1
		return Result{Theta: theta, EffectiveIvar: w, Scatter: scatter}
	}

	y := mat.NewVecDense(m, nil)
	for i := 0; i < m; i++ {
		y.SetVec(i, flux[i]*w[i])
	}
	b := mat.NewVecDense(k, nil)
	b.MulVec(design.T(), y)

	theta := mat.NewVecDense(k, nil)
	theta.MulVec(&cov, b)

	out := make([]float64, k)
	for j := 0; j < k; j++ {
		out[j] = theta.AtVec(j)
	}
	return Result{Theta: out, Cov: &cov, EffectiveIvar: w, Scatter: scatter}
}

// ChiSquare is the weighted sum of squared residuals between the model
// spectrum X·theta and the observed flux.
func ChiSquare(design *mat.Dense, theta, flux, w []float64) float64 {
	m, k := design.Dims()
	var chi2 float64
	for i := 0; i < m; i++ {
		var pred float64
		for j := 0; j < k; j++ {
			pred += design.At(i, j) * theta[j]
		}
		r := pred - flux[i]
		chi2 += w[i] * r * r
	}
	return chi2
}

// LogDet is the Gaussian normalisation term of the pixel likelihood, the sum
// of -log(w) over stars.
func LogDet(w []float64) float64 {
	var sum float64
	for _, v := range w {
		sum -= math.Log(v)
	}
	return sum
}

// Objective evaluates the penalised objective Q(s) = chi² + logdet at a trial
// scatter, solving for theta at that scatter along the way. Minimising Q over
// the scatter is a maximum-likelihood estimate of the intrinsic pixel
// variance. At a singular trial the objective is defined as zero, which
// pushes a minimiser away from the degenerate region instead of failing.
func Objective(design *mat.Dense, flux, ivar []float64, scatter float64) (float64, Result) {
	r := SolveTheta(design, flux, ivar, scatter)
	if r.Singular() {
		return 0, r
	}
	q := ChiSquare(design, r.Theta, flux, r.EffectiveIvar) + LogDet(r.EffectiveIvar)
	return q, r
}
