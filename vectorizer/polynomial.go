package vectorizer

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Polynomial is a polynomial basis expansion of the labels, including all
// cross terms, up to a total degree. The first term is always the constant
// term. Labels are offset by a fiducial value and divided by a scale before
// being raised to any power, which keeps the design matrix well conditioned
// when labels live on very different numeric ranges (e.g. Teff vs. [Fe/H]).
type Polynomial struct {
	names     []string
	order     int
	fiducials []float64
	scales    []float64
	powers    [][]int
}

// NewPolynomial creates a polynomial vectorizer of the given total order over
// the named labels, with zero fiducials and unit scales.
func NewPolynomial(names []string, order int) (*Polynomial, error) {
	if len(names) == 0 {
		return nil, errors.New("polynomial vectorizer requires at least one label name")
	}
	if order < 1 {
		return nil, errors.Errorf("polynomial order must be positive, got %d", order)
	}
	p := &Polynomial{
		names:     names,
		order:     order,
		fiducials: make([]float64, len(names)),
		scales:    make([]float64, len(names)),
		powers:    terms(len(names), order),
	}
	for i := range p.scales {
		p.scales[i] = 1
	}
	return p, nil
}

// NewPolynomialFromLabels creates a polynomial vectorizer whose fiducials and
// scales are estimated from a table of training labels (stars by labels).
// The fiducial is the median of each label column and the scale its standard
// deviation, so offset labels are roughly zero-centred with unit spread.
func NewPolynomialFromLabels(names []string, order int, labels *mat.Dense) (*Polynomial, error) {
	p, err := NewPolynomial(names, order)
	if err != nil {
		return nil, err
	}
	m, l := labels.Dims()
	if l != len(names) {
		return nil, errors.Errorf("label table has %d columns but %d label names were given", l, len(names))
	}
	if m < 2 {
		return nil, errors.New("at least two labelled stars are required to estimate label scales")
	}
	col := make([]float64, m)
	for j := 0; j < l; j++ {
		mat.Col(col, j, labels)
		sort.Float64s(col)
		p.fiducials[j] = stat.Quantile(0.5, stat.Empirical, col, nil)
		s := stat.StdDev(col, nil)
		if s <= 0 || math.IsNaN(s) {
			s = 1
		}
		p.scales[j] = s
	}
	return p, nil
}

// Evaluate returns the basis row for the given labels.
func (p *Polynomial) Evaluate(labels []float64) []float64 {
	x := make([]float64, len(p.names))
	for i := range x {
		x[i] = (labels[i] - p.fiducials[i]) / p.scales[i]
	}
	row := make([]float64, len(p.powers))
	for i, pow := range p.powers {
		v := 1.0
		for l, e := range pow {
			for k := 0; k < e; k++ {
				v *= x[l]
			}
		}
		row[i] = v
	}
	return row
}

// Fiducials returns the label values used to seed nonlinear fits.
func (p *Polynomial) Fiducials() []float64 {
	f := make([]float64, len(p.fiducials))
	copy(f, p.fiducials)
	return f
}

// LabelNames returns the ordered names of the labels.
func (p *Polynomial) LabelNames() []string {
	return p.names
}

// Terms returns the number of basis terms, including the constant term.
func (p *Polynomial) Terms() int {
	return len(p.powers)
}

// terms enumerates the exponent vector of every monomial in l labels with
// total degree at most order, constant term first, ordered by total degree.
func terms(l, order int) [][]int {
	var all [][]int
	for d := 0; d <= order; d++ {
		all = append(all, degreeTerms(l, d)...)
	}
	return all
}

func degreeTerms(l, d int) [][]int {
	if l == 1 {
		return [][]int{{d}}
	}
	var out [][]int
	for e := d; e >= 0; e-- {
		for _, rest := range degreeTerms(l-1, d-e) {
			t := append([]int{e}, rest...)
			out = append(out, t)
		}
	}
	return out
}
