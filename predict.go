package cannon

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/hscells/cannon/spectrum"
)

// Predict synthesises one spectrum per row of label values, forward
// evaluating the trained model. The label columns must match the vectorizer's
// label order.
func (m *CannonModel) Predict(labels *mat.Dense) (*mat.Dense, error) {
	if !m.Trained() {
		return nil, errors.New("model must be trained before predicting spectra")
	}
	rows, cols := labels.Dims()
	if cols != len(m.vec.LabelNames()) {
		return nil, errors.Errorf("got %d label columns, vectorizer expects %d (%v)", cols, len(m.vec.LabelNames()), m.vec.LabelNames())
	}
	pixels, _ := m.theta.Dims()
	flux := mat.NewDense(rows, pixels, nil)
	l := make([]float64, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			l[j] = labels.At(i, j)
		}
		f, err := spectrum.Synthesize(m.theta, m.vec, l)
		if err != nil {
			return nil, err
		}
		flux.SetRow(i, f)
	}
	return flux, nil
}
