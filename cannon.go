// Package cannon implements a data-driven generative model of stellar
// spectra. A model is trained on a labelled set of spectra by fitting, at
// every wavelength pixel independently, basis coefficients and an intrinsic
// scatter term; the trained model then recovers labels for new spectra and
// synthesises spectra from labels.
package cannon

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/hscells/cannon/dataset"
	"github.com/hscells/cannon/vectorizer"
)

// initialScatter is the per-pixel starting guess for the intrinsic scatter
// when it is being solved for: small but nonzero, broadcast identically to
// every pixel at the start of training.
const initialScatter = 0.01

// CannonModel contains everything needed to train the generative model and
// to use it afterwards: the labelled set, the vectorizer defining the model's
// functional form, the design matrix built from the two, and, once training
// has completed, the per-pixel coefficients and intrinsic variance.
type CannonModel struct {
	set *dataset.LabelledSet
	vec vectorizer.Vectorizer

	// design is built once at construction and shared read-only by every
	// pixel worker. Nothing may mutate it after construction.
	design *mat.Dense

	theta *mat.Dense
	s2    []float64

	pool     int
	progress bool
	headway  string
}

type poolSize int
type progressBar bool
type headwayServer string

// Pool sets the number of parallel workers used for training and fitting.
// A pool of one runs sequentially.
func Pool(p int) func() interface{} {
	return func() interface{} {
		return poolSize(p)
	}
}

// Progress toggles the terminal progress bar shown during training and
// fitting.
func Progress(show bool) func() interface{} {
	return func() interface{} {
		return progressBar(show)
	}
}

// HeadwayServer configures an optional headway server address to report
// training progress to.
func HeadwayServer(addr string) func() interface{} {
	return func() interface{} {
		return headwayServer(addr)
	}
}

// NewCannonModel creates an untrained model from a labelled set and a
// vectorizer. The design matrix is evaluated here, once, from the labels of
// every training star. Additional components are provided via the optional
// functional arguments.
func NewCannonModel(set *dataset.LabelledSet, vec vectorizer.Vectorizer, components ...func() interface{}) (*CannonModel, error) {
	if set == nil {
		return nil, errors.New("a labelled set is required")
	}
	if vec == nil {
		return nil, errors.New("a vectorizer is required")
	}
	if len(set.LabelNames) != len(vec.LabelNames()) {
		return nil, errors.Errorf("labelled set has labels %v but vectorizer expects %v", set.LabelNames, vec.LabelNames())
	}
	for i, name := range vec.LabelNames() {
		if set.LabelNames[i] != name {
			return nil, errors.Errorf("labelled set has labels %v but vectorizer expects %v", set.LabelNames, vec.LabelNames())
		}
	}

	m := &CannonModel{
		set:  set,
		vec:  vec,
		pool: 1,
	}
	for _, component := range components {
		switch v := component().(type) {
		case poolSize:
			m.pool = int(v)
		case progressBar:
			m.progress = bool(v)
		case headwayServer:
			m.headway = string(v)
		}
	}

	stars := set.Stars()
	k := vec.Terms()
	m.design = mat.NewDense(stars, k, nil)
	for i := 0; i < stars; i++ {
		row := vec.Evaluate(set.StarLabels(i))
		for j := 0; j < k; j++ {
			m.design.Set(i, j, row[j])
		}
	}
	return m, nil
}

// Trained reports whether the model has a committed theta and scatter.
func (m *CannonModel) Trained() bool {
	return m.theta != nil && m.s2 != nil
}

// Theta returns the trained coefficients, pixels by basis terms, or nil
// before training.
func (m *CannonModel) Theta() *mat.Dense {
	return m.theta
}

// S2 returns the trained intrinsic variance per pixel, or nil before
// training.
func (m *CannonModel) S2() []float64 {
	return m.s2
}

// SetS2 establishes the intrinsic pixel variance ahead of fixed-scatter
// training. Every value must be non-negative and there must be one per
// pixel.
func (m *CannonModel) SetS2(s2 []float64) error {
	if m.set == nil {
		return errors.New("model has no labelled set")
	}
	if len(s2) != m.set.Pixels() {
		return errors.Errorf("got %d scatter values for %d pixels", len(s2), m.set.Pixels())
	}
	for i, v := range s2 {
		if v < 0 {
			return errors.Errorf("scatter must be non-negative, pixel %d has %v", i, v)
		}
	}
	m.s2 = s2
	return nil
}

// Vectorizer returns the vectorizer the model was built with.
func (m *CannonModel) Vectorizer() vectorizer.Vectorizer {
	return m.vec
}

// DesignMatrix returns the shared design matrix. It is read-only; mutating
// it invalidates every fit made with the model.
func (m *CannonModel) DesignMatrix() *mat.Dense {
	return m.design
}
