package pixel

import (
	"log"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// softEvaluationWarning is the number of objective evaluations past which the
// scatter search is considered to be struggling. The search itself is never
// capped; the threshold only controls a logged warning.
const softEvaluationWarning = 10000

// OptimizeScatter finds the scatter minimising the penalised objective Q for
// one pixel, seeded at s0, using a derivative-free simplex search. The search
// tracks only the scalar objective, so theta is re-solved once more at the
// optimum before returning.
//
// Non-convergence is not fatal: the best scatter found so far is used and a
// warning is logged, mirroring how the objective itself absorbs singular
// trials by returning zero.
func OptimizeScatter(design *mat.Dense, flux, ivar []float64, s0 float64) Result {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			q, _ := Objective(design, flux, ivar, x[0])
			return q
		},
	}

	result, err := optimize.Minimize(problem, []float64{s0}, nil, &optimize.NelderMead{})
	if err != nil {
		log.Printf("scatter optimisation did not converge cleanly (%v), keeping best value found", err)
	}
	if result == nil {
		return SolveTheta(design, flux, ivar, s0)
	}
	switch result.Status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit, optimize.RuntimeLimit:
		log.Printf("scatter optimisation stopped at its %v before convergence", result.Status)
	}
	if result.Stats.FuncEvaluations > softEvaluationWarning {
		log.Printf("scatter optimisation used %d objective evaluations for one pixel", result.Stats.FuncEvaluations)
	}

	// The objective depends only on s², so fold any negative excursion of the
	// simplex back onto the non-negative axis.
	scatter := math.Abs(result.X[0])
	r := SolveTheta(design, flux, ivar, scatter)
	r.Scatter = scatter
	return r
}

// Fit applies the per-pixel training policy. With a fixed scatter the linear
// system is solved exactly once at that value. Otherwise scatter is seeded at
// the initial guess and optimised, unless the very first solve is already
// singular, in which case there is nothing to optimise against and the
// fallback theta is emitted with zero scatter.
func Fit(design *mat.Dense, flux, ivar []float64, scatter float64, fixedScatter bool) Result {
	r := SolveTheta(design, flux, ivar, scatter)
	if fixedScatter {
		return r
	}
	if r.Singular() {
		r.Scatter = 0
		return r
	}
	return OptimizeScatter(design, flux, ivar, scatter)
}
