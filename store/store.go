// Package store persists trained model artifacts. The in-memory artifact
// shape (theta stacked across pixels, scatter per pixel, the label names) is
// the interface; the on-disk encoding is gob under a diskv store, with an
// optional LRU read-through layer for repeated loads.
package store

import (
	"bytes"
	"encoding/gob"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/peterbourgon/diskv"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrArtifactNotFound is returned by Get when no artifact exists under the
// requested id.
var ErrArtifactNotFound = errors.New("artifact not found")

// Artifact is a trained model in its portable form: theta flattened
// row-major over Pixels×Terms, the intrinsic variance per pixel, and the
// ordered label names the model was trained with.
type Artifact struct {
	ID         string
	LabelNames []string
	Pixels     int
	Terms      int
	Theta      []float64
	S2         []float64
	Dispersion []float64
}

// NewArtifact builds an artifact from a trained theta matrix and scatter
// vector, assigning it a fresh id.
func NewArtifact(names []string, theta *mat.Dense, s2, dispersion []float64) (Artifact, error) {
	if theta == nil || s2 == nil {
		return Artifact{}, errors.New("an artifact requires both theta and s2")
	}
	n, k := theta.Dims()
	if len(s2) != n {
		return Artifact{}, errors.Errorf("theta has %d pixels but s2 has %d", n, len(s2))
	}
	flat := make([]float64, n*k)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			flat[i*k+j] = theta.At(i, j)
		}
	}
	return Artifact{
		ID:         uuid.New().String(),
		LabelNames: names,
		Pixels:     n,
		Terms:      k,
		Theta:      flat,
		S2:         s2,
		Dispersion: dispersion,
	}, nil
}

// ThetaMatrix reconstitutes the dense coefficient matrix.
func (a Artifact) ThetaMatrix() *mat.Dense {
	return mat.NewDense(a.Pixels, a.Terms, a.Theta)
}

// ModelStore models a way to persist and recall trained model artifacts.
type ModelStore interface {
	Get(id string) (Artifact, error)
	Put(artifact Artifact) error
}

// blockTransform determines how diskv should partition folders.
func blockTransform(blockSize int) func(string) []string {
	return func(s string) []string {
		var (
			sliceSize = len(s) / blockSize
			pathSlice = make([]string, sliceSize)
		)
		for i := 0; i < sliceSize; i++ {
			from, to := i*blockSize, (i*blockSize)+blockSize
			pathSlice[i] = s[from:to]
		}
		return pathSlice
	}
}

type diskvModelStore struct {
	*diskv.Diskv
}

// NewDiskvModelStore creates an on-disk model store rooted at the given
// path.
func NewDiskvModelStore(basePath string) ModelStore {
	return diskvModelStore{diskv.New(diskv.Options{
		BasePath:     basePath,
		Transform:    blockTransform(8),
		CacheSizeMax: 4096 * 1024,
		Compression:  diskv.NewGzipCompression(),
	})}
}

func (d diskvModelStore) Get(id string) (Artifact, error) {
	b, err := d.Read(id)
	if err != nil {
		return Artifact{}, ErrArtifactNotFound
	}
	var a Artifact
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&a); err != nil {
		return Artifact{}, errors.Wrap(err, "decoding artifact")
	}
	return a, nil
}

func (d diskvModelStore) Put(artifact Artifact) error {
	var buff bytes.Buffer
	if err := gob.NewEncoder(&buff).Encode(artifact); err != nil {
		return errors.Wrap(err, "encoding artifact")
	}
	return d.Write(artifact.ID, buff.Bytes())
}

type cachedModelStore struct {
	backing ModelStore
	cache   *lru.Cache
}

// NewCachedModelStore wraps a model store with an LRU read-through cache of
// the given size, for workloads that reload the same trained model many
// times.
func NewCachedModelStore(backing ModelStore, size int) (ModelStore, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return cachedModelStore{backing: backing, cache: cache}, nil
}

func (c cachedModelStore) Get(id string) (Artifact, error) {
	if v, ok := c.cache.Get(id); ok {
		return v.(Artifact), nil
	}
	a, err := c.backing.Get(id)
	if err != nil {
		return Artifact{}, err
	}
	c.cache.Add(id, a)
	return a, nil
}

func (c cachedModelStore) Put(artifact Artifact) error {
	if err := c.backing.Put(artifact); err != nil {
		return err
	}
	c.cache.Add(artifact.ID, artifact)
	return nil
}
