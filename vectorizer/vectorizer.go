// Package vectorizer provides basis-function expansions of stellar labels.
// A vectorizer defines the functional form of a generative spectral model by
// mapping a vector of physical labels to a row of basis-function values.
package vectorizer

// Vectorizer models a way of expanding a label vector into a row of basis
// terms. The training and fitting code only ever consumes this interface;
// any basis family may implement it.
type Vectorizer interface {
	// Evaluate returns the basis row for the given labels.
	Evaluate(labels []float64) []float64
	// Fiducials returns the label values used to seed nonlinear fits.
	Fiducials() []float64
	// LabelNames returns the ordered names of the labels.
	LabelNames() []string
	// Terms returns the number of basis terms produced by Evaluate.
	Terms() int
}
