package cannon

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/hscells/headway"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/cheggaaa/pb.v1"

	"github.com/hscells/cannon/pixel"
)

// Train fits the model to the labelled set, one pixel at a time, across the
// configured worker pool. With fixedScatter the intrinsic variance must have
// been established beforehand (SetS2) and is held fixed at each pixel;
// otherwise it is solved for per pixel, seeded at the same small default
// everywhere.
//
// Training commits theta and s2 only once every pixel has completed. If any
// worker fails, no partial model is committed and the error is returned.
func (m *CannonModel) Train(fixedScatter bool) error {
	if m.set == nil {
		return errors.New("model was restored without a labelled set and cannot be trained")
	}
	if fixedScatter && m.s2 == nil {
		return errors.New("intrinsic pixel variance (s2) must be set before training if fixedScatter is set to true")
	}

	stars := m.set.Stars()
	pixels := m.set.Pixels()

	// The optimiser searches over the scatter s, not the variance s², so the
	// fixed guess is the square root of the established variance.
	p0 := make([]float64, pixels)
	for j := range p0 {
		if fixedScatter {
			p0[j] = math.Sqrt(m.s2[j])
		} else {
			p0[j] = initialScatter
		}
	}

	log.Printf("training CannonModel with %d stars and %d pixels/star\n", stars, pixels)

	var bar *pb.ProgressBar
	if m.progress {
		bar = pb.New(pixels)
		bar.Start()
	}
	var hw *headway.Client
	if len(m.headway) > 0 {
		hw = headway.NewClient(m.headway, fmt.Sprintf("cannon training [#%d]", time.Now().Unix()))
	}

	concurrency := m.pool
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]pixel.Result, pixels)
	errc := make(chan error, pixels)

	// Set the limit to how many goroutines can be run.
	// http://jmoiron.net/blog/limiting-concurrency-in-go/
	sem := make(chan bool, concurrency)
	for j := 0; j < pixels; j++ {
		sem <- true
		go func(j int) {
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					errc <- errors.Errorf("pixel %d: %v", j, r)
				}
			}()
			flux, ivar := m.set.Pixel(j)
			results[j] = pixel.Fit(m.design, flux, ivar, p0[j], fixedScatter)
			if bar != nil {
				bar.Increment()
			}
			if hw != nil && j%1000 == 0 {
				if err := hw.Send(float64(j), float64(pixels), fmt.Sprintf("[train] pixel %d", j), ""); err != nil {
					log.Println(err)
				}
			}
		}(j)
	}

	// Wait until the last goroutine has read from the semaphore.
	for i := 0; i < cap(sem); i++ {
		sem <- true
	}
	if bar != nil {
		bar.Finish()
	}
	if hw != nil {
		_ = hw.Send(float64(pixels), float64(pixels), "[train] done!", "")
	}

	select {
	case err := <-errc:
		return errors.Wrap(err, "training aborted")
	default:
	}

	// Stack the per-pixel results, in pixel order, into the trained model.
	// The fitted scatter is a standard deviation; the model stores variance.
	k := m.vec.Terms()
	theta := mat.NewDense(pixels, k, nil)
	s2 := make([]float64, pixels)
	for j, r := range results {
		for c := 0; c < k; c++ {
			theta.Set(j, c, r.Theta[c])
		}
		s2[j] = r.Scatter * r.Scatter
	}
	m.theta = theta
	m.s2 = s2
	return nil
}
