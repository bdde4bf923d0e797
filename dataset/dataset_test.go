package dataset

import (
	"io/ioutil"
	"os"
	"path"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestNewValidation(t *testing.T) {
	labels := mat.NewDense(3, 2, nil)
	flux := mat.NewDense(3, 4, nil)
	ivar := mat.NewDense(3, 4, nil)

	if _, err := New([]string{"a", "b"}, labels, flux, ivar, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := New([]string{"a"}, labels, flux, ivar, nil); err == nil {
		t.Fatal("expected an error for a label name/column mismatch")
	}
	if _, err := New([]string{"a", "b"}, labels, flux, mat.NewDense(3, 5, nil), nil); err == nil {
		t.Fatal("expected an error for a flux/ivar shape mismatch")
	}
	if _, err := New([]string{"a", "b"}, mat.NewDense(2, 2, nil), flux, ivar, nil); err == nil {
		t.Fatal("expected an error for a star-count mismatch")
	}
	if _, err := New([]string{"a", "b"}, labels, flux, ivar, []float64{1, 2}); err == nil {
		t.Fatal("expected an error for a dispersion-length mismatch")
	}
}

func TestPixelExtraction(t *testing.T) {
	labels := mat.NewDense(2, 1, []float64{1, 2})
	flux := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})
	ivar := mat.NewDense(2, 3, []float64{
		10, 20, 30,
		40, 50, 60,
	})
	s, err := New([]string{"x"}, labels, flux, ivar, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.Stars() != 2 || s.Pixels() != 3 {
		t.Fatalf("got %d stars and %d pixels", s.Stars(), s.Pixels())
	}
	f, v := s.Pixel(1)
	if f[0] != 2 || f[1] != 5 || v[0] != 20 || v[1] != 50 {
		t.Fatalf("pixel 1 extracted as flux=%v ivar=%v", f, v)
	}

	// The extraction must be a copy, never a view into the training tables.
	f[0] = -1
	if s.Flux.At(0, 1) != 2 {
		t.Fatal("mutating an extracted pixel changed the training flux")
	}

	l := s.StarLabels(1)
	if l[0] != 2 {
		t.Fatalf("star 1 labels = %v", l)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	dir, err := ioutil.TempDir("", "cannon-dataset")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	labelPath := path.Join(dir, "labels.csv")
	fluxPath := path.Join(dir, "flux.csv")
	ivarPath := path.Join(dir, "ivar.csv")

	if err := ioutil.WriteFile(labelPath, []byte("teff,logg\n5777,4.4\n4500,2.5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	flux := mat.NewDense(2, 3, []float64{1, 0.9, 1.1, 0.8, 1, 1.2})
	if err := WriteMatrixCSV(fluxPath, flux); err != nil {
		t.Fatal(err)
	}
	ivar := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	if err := WriteMatrixCSV(ivarPath, ivar); err != nil {
		t.Fatal(err)
	}

	s, err := LoadCSV(labelPath, fluxPath, ivarPath)
	if err != nil {
		t.Fatal(err)
	}
	if s.LabelNames[0] != "teff" || s.LabelNames[1] != "logg" {
		t.Fatalf("label names = %v", s.LabelNames)
	}
	if s.Labels.At(1, 1) != 2.5 {
		t.Fatalf("labels(1,1) = %v", s.Labels.At(1, 1))
	}
	if s.Flux.At(0, 2) != 1.1 {
		t.Fatalf("flux(0,2) = %v", s.Flux.At(0, 2))
	}
	if s.Ivar.At(1, 0) != 4 {
		t.Fatalf("ivar(1,0) = %v", s.Ivar.At(1, 0))
	}
}

func TestReadMatrixCSVErrors(t *testing.T) {
	dir, err := ioutil.TempDir("", "cannon-dataset")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	p := path.Join(dir, "bad.csv")
	if err := ioutil.WriteFile(p, []byte("1,notanumber\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadMatrixCSV(p); err == nil {
		t.Fatal("expected a parse error")
	}
}
