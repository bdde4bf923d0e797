package pixel

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func line() (*mat.Dense, []float64, []float64) {
	design := mat.NewDense(3, 2, []float64{
		1, 0,
		1, 1,
		1, 2,
	})
	flux := []float64{1, 2, 3}
	ivar := []float64{1, 1, 1}
	return design, flux, ivar
}

func TestSolveThetaExactLine(t *testing.T) {
	design, flux, ivar := line()
	r := SolveTheta(design, flux, ivar, 0)
	if r.Singular() {
		t.Fatal("well-conditioned system reported as singular")
	}
	want := []float64{1, 1}
	for j, v := range r.Theta {
		if math.Abs(v-want[j]) > 1e-10 {
			t.Fatalf("theta[%d] = %v, want %v", j, v, want[j])
		}
	}
	for i, w := range r.EffectiveIvar {
		if w != ivar[i] {
			t.Fatalf("at zero scatter effective ivar must equal ivar, got %v", w)
		}
	}
}

func TestSolveThetaSingularFallback(t *testing.T) {
	// Duplicate basis columns make the Gram matrix exactly singular.
	design := mat.NewDense(3, 2, []float64{
		1, 1,
		1, 1,
		1, 1,
	})
	r := SolveTheta(design, []float64{0, 0, 0}, []float64{1, 1, 1}, 0)
	if !r.Singular() {
		t.Fatal("expected a singular system")
	}
	if r.Theta[0] != 1 || r.Theta[1] != 0 {
		t.Fatalf("fallback theta = %v, want [1 0]", r.Theta)
	}
	if r.Cov != nil {
		t.Fatal("singular system must have no covariance")
	}
}

func TestObjectiveSingularIsZero(t *testing.T) {
	design := mat.NewDense(2, 2, []float64{
		1, 1,
		1, 1,
	})
	q, r := Objective(design, []float64{1, 2}, []float64{1, 1}, 0.5)
	if q != 0 {
		t.Fatalf("objective at a singular trial = %v, want 0", q)
	}
	if !r.Singular() {
		t.Fatal("expected the singular fallback result")
	}
}

// Increasing scatter must weakly decrease the chi-square term and weakly
// increase the log-determinant term; the optimum balances the two.
func TestObjectiveTermsMonotonicInScatter(t *testing.T) {
	design := mat.NewDense(4, 2, []float64{
		1, 0,
		1, 1,
		1, 2,
		1, 3,
	})
	flux := []float64{1.1, 1.9, 3.2, 3.8}
	ivar := []float64{4, 4, 4, 4}

	prevChi2 := math.Inf(1)
	prevLogDet := math.Inf(-1)
	for _, s := range []float64{0, 0.1, 0.2, 0.5, 1} {
		r := SolveTheta(design, flux, ivar, s)
		if r.Singular() {
			t.Fatalf("unexpected singular system at scatter %v", s)
		}
		chi2 := ChiSquare(design, r.Theta, flux, r.EffectiveIvar)
		logDet := LogDet(r.EffectiveIvar)
		if chi2 > prevChi2+1e-12 {
			t.Fatalf("chi-square increased from %v to %v at scatter %v", prevChi2, chi2, s)
		}
		if logDet < prevLogDet-1e-12 {
			t.Fatalf("log-det decreased from %v to %v at scatter %v", prevLogDet, logDet, s)
		}
		prevChi2, prevLogDet = chi2, logDet
	}
}

func TestOptimizeScatterNoiselessPixel(t *testing.T) {
	// An exact linear pixel has chi-square zero at every scatter, so the
	// log-det term alone drives the optimum to zero scatter.
	design, flux, ivar := line()
	r := OptimizeScatter(design, flux, ivar, 0.01)
	if r.Singular() {
		t.Fatal("unexpected singular result")
	}
	if r.Scatter > 0.01 {
		t.Fatalf("noiseless pixel fit scatter %v, want below the initial guess", r.Scatter)
	}
	if r.Scatter < 0 {
		t.Fatalf("scatter must be non-negative, got %v", r.Scatter)
	}
	for j, v := range r.Theta {
		want := []float64{1, 1}[j]
		if math.Abs(v-want) > 1e-6 {
			t.Fatalf("theta[%d] = %v, want %v", j, v, want)
		}
	}
}

func TestFitFixedScatterSolvesOnce(t *testing.T) {
	design, flux, ivar := line()
	r := Fit(design, flux, ivar, 0.25, true)
	if r.Scatter != 0.25 {
		t.Fatalf("fixed scatter must be emitted unchanged, got %v", r.Scatter)
	}
	if r.Singular() {
		t.Fatal("unexpected singular result")
	}
}

func TestFitSingularShortCircuits(t *testing.T) {
	design := mat.NewDense(3, 2, []float64{
		1, 1,
		1, 1,
		1, 1,
	})
	r := Fit(design, []float64{0, 0, 0}, []float64{1, 1, 1}, 0.01, false)
	if !r.Singular() {
		t.Fatal("expected the singular fallback result")
	}
	if r.Scatter != 0 {
		t.Fatalf("singular short-circuit must emit zero scatter, got %v", r.Scatter)
	}
}

func TestEffectiveIvarDeflation(t *testing.T) {
	w := EffectiveIvar([]float64{100}, 0.1)
	// ivar/(1+ivar·s²) = 100/(1+100·0.01) = 50.
	if math.Abs(w[0]-50) > 1e-12 {
		t.Fatalf("effective ivar = %v, want 50", w[0])
	}
	w = EffectiveIvar([]float64{0}, 0.1)
	if w[0] != 0 {
		t.Fatalf("zero ivar must stay zero, got %v", w[0])
	}
}
