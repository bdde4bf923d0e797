package dataset

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LoadCSV reads a labelled set from three CSV files: a label table with a
// header row naming the labels, and headerless flux and ivar tables with one
// row per star and one column per pixel. The three files must agree on the
// number of stars.
func LoadCSV(labelPath, fluxPath, ivarPath string) (*LabelledSet, error) {
	names, labels, err := ReadLabelTableCSV(labelPath)
	if err != nil {
		return nil, errors.Wrap(err, labelPath)
	}
	flux, err := ReadMatrixCSV(fluxPath)
	if err != nil {
		return nil, errors.Wrap(err, fluxPath)
	}
	ivar, err := ReadMatrixCSV(ivarPath)
	if err != nil {
		return nil, errors.Wrap(err, ivarPath)
	}
	return New(names, labels, flux, ivar, nil)
}

// ReadMatrixCSV reads a headerless CSV file of floats into a dense matrix.
func ReadMatrixCSV(path string) (*mat.Dense, error) {
	rows, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("no rows")
	}
	m, n := len(rows), len(rows[0])
	d := mat.NewDense(m, n, nil)
	for i, row := range rows {
		if len(row) != n {
			return nil, errors.Errorf("row %d has %d values, expected %d", i, len(row), n)
		}
		for j, field := range row {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d column %d", i, j)
			}
			d.Set(i, j, v)
		}
	}
	return d, nil
}

// WriteMatrixCSV writes a dense matrix as a headerless CSV file.
func WriteMatrixCSV(path string, d *mat.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	m, n := d.Dims()
	record := make([]string, n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			record[j] = strconv.FormatFloat(d.At(i, j), 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadLabelTableCSV reads a label table with a header row of label names and
// one row of label values per star.
func ReadLabelTableCSV(path string) ([]string, *mat.Dense, error) {
	rows, err := readRecords(path)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) < 2 {
		return nil, nil, errors.New("label table needs a header row and at least one star")
	}
	names := rows[0]
	m, l := len(rows)-1, len(names)
	d := mat.NewDense(m, l, nil)
	for i, row := range rows[1:] {
		if len(row) != l {
			return nil, nil, errors.Errorf("star %d has %d labels, expected %d", i, len(row), l)
		}
		for j, field := range row {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "star %d label %s", i, names[j])
			}
			d.Set(i, j, v)
		}
	}
	return names, d, nil
}

func readRecords(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csv.NewReader(f).ReadAll()
}
