package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/molpredict/fewshot/internal/tensor"
)

// InitKind is a closed enumeration of weight-initialization strategies.
type InitKind int

const (
	// InitHe draws from N(0, 2/fanIn); matched to rectified-linear layers.
	InitHe InitKind = iota
	// InitLeCun draws from N(0, 1/fanIn); matched to self-normalizing layers.
	InitLeCun
	// InitGlorot draws uniformly from ±sqrt(6/(fanIn+fanOut)); matched to
	// sigmoid layers and plain linear projections.
	InitGlorot
)

// initWeights fills a [fanIn, fanOut] weight matrix according to the strategy.
func initWeights(w *tensor.Matrix, kind InitKind, rng *rand.Rand) error {
	fanIn, fanOut := w.Rows, w.Cols
	switch kind {
	case InitHe:
		std := math.Sqrt(2.0 / float64(fanIn))
		for i := range w.Data {
			w.Data[i] = rng.NormFloat64() * std
		}
	case InitLeCun:
		std := math.Sqrt(1.0 / float64(fanIn))
		for i := range w.Data {
			w.Data[i] = rng.NormFloat64() * std
		}
	case InitGlorot:
		limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
		for i := range w.Data {
			w.Data[i] = (rng.Float64()*2 - 1) * limit
		}
	default:
		return fmt.Errorf("nn: unknown init strategy %d", int(kind))
	}
	return nil
}
