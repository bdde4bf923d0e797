package cannon

import (
	"github.com/pkg/errors"

	"github.com/hscells/cannon/store"
	"github.com/hscells/cannon/vectorizer"
)

// Artifact exports the trained model in its portable form for persistence.
func (m *CannonModel) Artifact() (store.Artifact, error) {
	if !m.Trained() {
		return store.Artifact{}, errors.New("model must be trained before exporting an artifact")
	}
	var dispersion []float64
	if m.set != nil {
		dispersion = m.set.Dispersion
	}
	return store.NewArtifact(m.vec.LabelNames(), m.theta, m.s2, dispersion)
}

// Restore builds a trained model from a persisted artifact and the
// vectorizer it was trained with. The restored model can fit and predict
// spectra but, having no labelled set, cannot be retrained.
func Restore(a store.Artifact, vec vectorizer.Vectorizer) (*CannonModel, error) {
	if vec == nil {
		return nil, errors.New("a vectorizer is required")
	}
	if len(a.LabelNames) != len(vec.LabelNames()) {
		return nil, errors.Errorf("artifact was trained with labels %v but vectorizer expects %v", a.LabelNames, vec.LabelNames())
	}
	for i, name := range vec.LabelNames() {
		if a.LabelNames[i] != name {
			return nil, errors.Errorf("artifact was trained with labels %v but vectorizer expects %v", a.LabelNames, vec.LabelNames())
		}
	}
	if vec.Terms() != a.Terms {
		return nil, errors.Errorf("artifact has %d basis terms but vectorizer produces %d", a.Terms, vec.Terms())
	}
	if len(a.S2) != a.Pixels {
		return nil, errors.Errorf("artifact has %d pixels but %d scatter values", a.Pixels, len(a.S2))
	}
	return &CannonModel{
		vec:   vec,
		theta: a.ThetaMatrix(),
		s2:    a.S2,
		pool:  1,
	}, nil
}
