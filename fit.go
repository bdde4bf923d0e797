package cannon

import (
	"log"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/cheggaaa/pb.v1"

	"github.com/hscells/cannon/spectrum"
)

// LabelEstimate is the outcome of fitting one observed spectrum. A fit that
// failed to converge carries its error here so sibling spectra in the same
// batch are unaffected.
type LabelEstimate struct {
	Labels []float64
	Cov    *mat.Dense
	Err    error
}

// Fit solves the labels for a batch of observed spectra, one row of flux and
// ivar per spectrum, on the same pixel grid the model was trained on.
// Spectra are fit independently across the configured worker pool; results
// are returned in input order.
func (m *CannonModel) Fit(flux, ivar *mat.Dense) ([]LabelEstimate, error) {
	if !m.Trained() {
		return nil, errors.New("model must be trained before fitting spectra")
	}
	fm, fn := flux.Dims()
	im, in := ivar.Dims()
	if fm != im || fn != in {
		return nil, errors.Errorf("flux is %dx%d but ivar is %dx%d", fm, fn, im, in)
	}
	pixels, _ := m.theta.Dims()
	if fn != pixels {
		return nil, errors.Errorf("spectra have %d pixels, model was trained on %d", fn, pixels)
	}

	log.Printf("fitting %d spectra\n", fm)

	fitter := spectrum.Fitter{
		Theta:      m.theta,
		S2:         m.s2,
		Vectorizer: m.vec,
	}

	var bar *pb.ProgressBar
	if m.progress {
		bar = pb.New(fm)
		bar.Start()
	}

	concurrency := m.pool
	if concurrency < 1 {
		concurrency = 1
	}

	estimates := make([]LabelEstimate, fm)
	sem := make(chan bool, concurrency)
	for i := 0; i < fm; i++ {
		sem <- true
		go func(i int) {
			defer func() { <-sem }()
			f := make([]float64, fn)
			v := make([]float64, fn)
			for j := 0; j < fn; j++ {
				f[j] = flux.At(i, j)
				v[j] = ivar.At(i, j)
			}
			labels, cov, err := fitter.Fit(f, v)
			estimates[i] = LabelEstimate{Labels: labels, Cov: cov, Err: err}
			if bar != nil {
				bar.Increment()
			}
		}(i)
	}

	// Wait until the last goroutine has read from the semaphore.
	for i := 0; i < cap(sem); i++ {
		sem <- true
	}
	if bar != nil {
		bar.Finish()
	}
	return estimates, nil
}
