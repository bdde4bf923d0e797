package vectorizer

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestPolynomialTerms(t *testing.T) {
	p, err := NewPolynomial([]string{"teff", "logg"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	// 1, a, b, a², ab, b².
	if p.Terms() != 6 {
		t.Fatalf("expected 6 terms, got %d", p.Terms())
	}
	row := p.Evaluate([]float64{2, 3})
	want := []float64{1, 2, 3, 4, 6, 9}
	for i, v := range row {
		if math.Abs(v-want[i]) > 1e-12 {
			t.Fatalf("term %d = %v, want %v", i, v, want[i])
		}
	}
}

func TestPolynomialConstantTermFirst(t *testing.T) {
	p, err := NewPolynomial([]string{"x"}, 3)
	if err != nil {
		t.Fatal(err)
	}
	row := p.Evaluate([]float64{7})
	if row[0] != 1 {
		t.Fatalf("first term must be the constant, got %v", row[0])
	}
	if p.Terms() != 4 {
		t.Fatalf("expected 4 terms for one cubic label, got %d", p.Terms())
	}
}

func TestPolynomialFiducialsFromLabels(t *testing.T) {
	labels := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	p, err := NewPolynomialFromLabels([]string{"x"}, 1, labels)
	if err != nil {
		t.Fatal(err)
	}
	f := p.Fiducials()
	if f[0] != 3 {
		t.Fatalf("fiducial = %v, want the median 3", f[0])
	}
	// At the fiducial every non-constant term vanishes.
	row := p.Evaluate(f)
	if row[0] != 1 || row[1] != 0 {
		t.Fatalf("row at fiducials = %v, want [1 0]", row)
	}
}

func TestPolynomialConstantLabelScale(t *testing.T) {
	labels := mat.NewDense(3, 1, []float64{2, 2, 2})
	p, err := NewPolynomialFromLabels([]string{"x"}, 1, labels)
	if err != nil {
		t.Fatal(err)
	}
	// A degenerate label column must not divide by a zero scale.
	row := p.Evaluate([]float64{3})
	if math.IsInf(row[1], 0) || math.IsNaN(row[1]) {
		t.Fatalf("row with degenerate scale = %v", row)
	}
}

func TestPolynomialValidation(t *testing.T) {
	if _, err := NewPolynomial(nil, 2); err == nil {
		t.Fatal("expected an error for no label names")
	}
	if _, err := NewPolynomial([]string{"x"}, 0); err == nil {
		t.Fatal("expected an error for a non-positive order")
	}
	labels := mat.NewDense(3, 2, nil)
	if _, err := NewPolynomialFromLabels([]string{"x"}, 1, labels); err == nil {
		t.Fatal("expected an error for a label name/column mismatch")
	}
}
