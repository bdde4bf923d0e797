// Package main provides a command-line tool for training a Cannon model from
// CSV tables and for fitting or predicting spectra with a stored model.
package main

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"

	"github.com/alexflint/go-arg"
	"github.com/magiconair/properties"
	"gonum.org/v1/gonum/mat"

	"github.com/hscells/cannon"
	"github.com/hscells/cannon/dataset"
	"github.com/hscells/cannon/store"
	"github.com/hscells/cannon/vectorizer"
)

type args struct {
	Action       string `arg:"positional,required,help:one of train/fit/predict."`
	Labels       string `arg:"help:CSV of training labels with a header row of label names.,required"`
	Flux         string `arg:"help:CSV of normalised training flux (stars x pixels). Required for train."`
	Ivar         string `arg:"help:CSV of normalised training inverse variance (stars x pixels). Required for train."`
	Spectra      string `arg:"help:CSV of observed flux to fit or label values to predict from."`
	SpectraIvar  string `arg:"help:CSV of observed inverse variance. Required for fit."`
	Model        string `arg:"help:Path to the model store directory."`
	ID           string `arg:"help:Artifact id of a stored model. Required for fit and predict."`
	Output       string `arg:"help:File to write fitted labels or predicted flux to.,required"`
	Order        int    `arg:"help:Polynomial order of the vectorizer (default 2)."`
	Pool         int    `arg:"help:Number of parallel workers (default is the number of CPUs)."`
	FixedScatter string `arg:"help:CSV with one row of per-pixel variance; trains at fixed scatter."`
	Config       string `arg:"help:Optional .properties file with defaults for order/pool/model."`
	Quiet        bool   `arg:"help:Disable the progress bar."`
	Headway      string `arg:"help:Optional headway server to report progress to."`
}

func (args) Version() string {
	return "cannon 24.Aug.2026"
}

func (args) Description() string {
	return `Train a data-driven generative model of stellar spectra, then fit labels for new spectra or predict spectra from labels.`
}

func main() {
	var args args
	args.Order = 2
	args.Pool = runtime.NumCPU()
	args.Model = "cannon_models"
	arg.MustParse(&args)

	if len(args.Config) > 0 {
		p := properties.MustLoadFile(args.Config, properties.UTF8)
		args.Order = p.GetInt("cannon.order", args.Order)
		args.Pool = p.GetInt("cannon.pool", args.Pool)
		args.Model = p.GetString("cannon.model", args.Model)
	}

	s := store.NewDiskvModelStore(args.Model)

	switch args.Action {
	case "train":
		train(args, s)
	case "fit":
		fit(args, s)
	case "predict":
		predict(args, s)
	default:
		log.Fatalf("unknown action %s, expected train, fit, or predict", args.Action)
	}
}

// vectorize rebuilds the polynomial vectorizer from the training labels. The
// fiducials and scales are estimated from the label table, so fit and
// predict must be given the same label table the model was trained with.
func vectorize(args args) (*vectorizer.Polynomial, *dataset.LabelledSet) {
	if args.Action == "train" {
		set, err := dataset.LoadCSV(args.Labels, args.Flux, args.Ivar)
		if err != nil {
			log.Fatal(err)
		}
		v, err := vectorizer.NewPolynomialFromLabels(set.LabelNames, args.Order, set.Labels)
		if err != nil {
			log.Fatal(err)
		}
		return v, set
	}

	names, labels, err := dataset.ReadLabelTableCSV(args.Labels)
	if err != nil {
		log.Fatal(err)
	}
	v, err := vectorizer.NewPolynomialFromLabels(names, args.Order, labels)
	if err != nil {
		log.Fatal(err)
	}
	return v, nil
}

func train(args args, s store.ModelStore) {
	v, set := vectorize(args)
	model, err := cannon.NewCannonModel(set, v,
		cannon.Pool(args.Pool),
		cannon.Progress(!args.Quiet),
		cannon.HeadwayServer(args.Headway))
	if err != nil {
		log.Fatal(err)
	}

	fixed := len(args.FixedScatter) > 0
	if fixed {
		m, err := dataset.ReadMatrixCSV(args.FixedScatter)
		if err != nil {
			log.Fatal(err)
		}
		_, n := m.Dims()
		s2 := make([]float64, n)
		for j := 0; j < n; j++ {
			s2[j] = m.At(0, j)
		}
		if err := model.SetS2(s2); err != nil {
			log.Fatal(err)
		}
	}

	if err := model.Train(fixed); err != nil {
		log.Fatal(err)
	}

	artifact, err := model.Artifact()
	if err != nil {
		log.Fatal(err)
	}
	if err := s.Put(artifact); err != nil {
		log.Fatal(err)
	}
	if err := writeVector(args.Output, artifact.S2); err != nil {
		log.Fatal(err)
	}
	fmt.Println(artifact.ID)
}

func fit(args args, s store.ModelStore) {
	model := restore(args, s)
	flux, err := dataset.ReadMatrixCSV(args.Spectra)
	if err != nil {
		log.Fatal(err)
	}
	ivar, err := dataset.ReadMatrixCSV(args.SpectraIvar)
	if err != nil {
		log.Fatal(err)
	}
	estimates, err := model.Fit(flux, ivar)
	if err != nil {
		log.Fatal(err)
	}

	names := model.Vectorizer().LabelNames()
	rows := make([][]float64, 0, len(estimates))
	for i, e := range estimates {
		if e.Err != nil {
			log.Printf("spectrum %d: %v\n", i, e.Err)
			rows = append(rows, make([]float64, len(names)))
			continue
		}
		rows = append(rows, e.Labels)
	}
	if err := writeLabelTable(args.Output, names, rows); err != nil {
		log.Fatal(err)
	}
}

func predict(args args, s store.ModelStore) {
	model := restore(args, s)
	_, labels, err := dataset.ReadLabelTableCSV(args.Spectra)
	if err != nil {
		log.Fatal(err)
	}
	flux, err := model.Predict(labels)
	if err != nil {
		log.Fatal(err)
	}
	if err := dataset.WriteMatrixCSV(args.Output, flux); err != nil {
		log.Fatal(err)
	}
}

func restore(args args, s store.ModelStore) *cannon.CannonModel {
	if len(args.ID) == 0 {
		log.Fatal("an artifact id is required")
	}
	v, _ := vectorize(args)
	artifact, err := s.Get(args.ID)
	if err != nil {
		log.Fatal(err)
	}
	model, err := cannon.Restore(artifact, v)
	if err != nil {
		log.Fatal(err)
	}
	return model
}

func writeVector(path string, v []float64) error {
	d := mat.NewDense(1, len(v), v)
	return dataset.WriteMatrixCSV(path, d)
}

func writeLabelTable(path string, names []string, rows [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for j, n := range names {
		if j > 0 {
			if _, err := f.WriteString(","); err != nil {
				return err
			}
		}
		if _, err := f.WriteString(n); err != nil {
			return err
		}
	}
	if _, err := f.WriteString("\n"); err != nil {
		return err
	}
	for _, row := range rows {
		for j, v := range row {
			if j > 0 {
				if _, err := f.WriteString(","); err != nil {
					return err
				}
			}
			if _, err := f.WriteString(strconv.FormatFloat(v, 'g', -1, 64)); err != nil {
				return err
			}
		}
		if _, err := f.WriteString("\n"); err != nil {
			return err
		}
	}
	return nil
}
