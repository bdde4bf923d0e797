// Package dataset holds the labelled training set: the table of known labels
// for each training star together with that star's normalised flux and
// inverse variance on a common pixel grid.
package dataset

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LabelledSet is the training input to the model. Flux and Ivar are stars by
// pixels; Labels is stars by labels, with one column per name in LabelNames.
// Dispersion, when present, carries the wavelength of each pixel and is only
// ever used for messages, never for computation.
type LabelledSet struct {
	LabelNames []string
	Labels     *mat.Dense
	Flux       *mat.Dense
	Ivar       *mat.Dense
	Dispersion []float64
}

// New validates and constructs a labelled set. Every shape relationship is
// checked eagerly so that training can assume consistent inputs.
func New(names []string, labels, flux, ivar *mat.Dense, dispersion []float64) (*LabelledSet, error) {
	if labels == nil || flux == nil || ivar == nil {
		return nil, errors.New("labels, flux and ivar are all required")
	}
	lm, ln := labels.Dims()
	fm, fn := flux.Dims()
	im, in := ivar.Dims()
	if ln != len(names) {
		return nil, errors.Errorf("label table has %d columns but %d label names were given", ln, len(names))
	}
	if fm != im || fn != in {
		return nil, errors.Errorf("flux is %dx%d but ivar is %dx%d", fm, fn, im, in)
	}
	if lm != fm {
		return nil, errors.Errorf("%d labelled stars but %d spectra", lm, fm)
	}
	if dispersion != nil && len(dispersion) != fn {
		return nil, errors.Errorf("dispersion has %d values for %d pixels", len(dispersion), fn)
	}
	return &LabelledSet{
		LabelNames: names,
		Labels:     labels,
		Flux:       flux,
		Ivar:       ivar,
		Dispersion: dispersion,
	}, nil
}

// Stars returns the number of training stars (M).
func (s *LabelledSet) Stars() int {
	m, _ := s.Flux.Dims()
	return m
}

// Pixels returns the number of wavelength pixels (N).
func (s *LabelledSet) Pixels() int {
	_, n := s.Flux.Dims()
	return n
}

// Pixel extracts the flux and inverse variance of one pixel across all
// stars, copied out so per-pixel workers can never alias the training
// tables.
func (s *LabelledSet) Pixel(j int) (flux, ivar []float64) {
	m := s.Stars()
	flux = make([]float64, m)
	ivar = make([]float64, m)
	for i := 0; i < m; i++ {
		flux[i] = s.Flux.At(i, j)
		ivar[i] = s.Ivar.At(i, j)
	}
	return flux, ivar
}

// StarLabels returns the label vector of one training star.
func (s *LabelledSet) StarLabels(i int) []float64 {
	l := make([]float64, len(s.LabelNames))
	for j := range l {
		l[j] = s.Labels.At(i, j)
	}
	return l
}
