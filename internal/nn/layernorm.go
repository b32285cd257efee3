package nn

import (
	"fmt"
	"math"

	"github.com/molpredict/fewshot/internal/tensor"
)

// LayerNorm normalizes every row to zero mean and unit variance over the
// feature axis, optionally followed by a learned affine scale and shift.
type LayerNorm struct {
	Dim     int
	Epsilon float64
	Affine  bool
	Gamma   []float64
	Beta    []float64
}

// NewLayerNorm creates a layer-normalization component. With affine enabled,
// gamma starts at ones and beta at zeros.
func NewLayerNorm(dim int, affine bool) (*LayerNorm, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("nn: layer norm dimension must be positive, got %d", dim)
	}
	ln := &LayerNorm{Dim: dim, Epsilon: 1e-5, Affine: affine}
	if affine {
		ln.Gamma = make([]float64, dim)
		ln.Beta = make([]float64, dim)
		for i := range ln.Gamma {
			ln.Gamma[i] = 1.0
		}
	}
	return ln, nil
}

// Forward normalizes every row of x.
func (ln *LayerNorm) Forward(x *tensor.Matrix) (*tensor.Matrix, error) {
	if x.Cols != ln.Dim {
		return nil, fmt.Errorf("nn: layer norm input width %d, want %d", x.Cols, ln.Dim)
	}
	out, err := tensor.NewMatrix(x.Rows, x.Cols)
	if err != nil {
		return nil, err
	}
	for i := 0; i < x.Rows; i++ {
		row := x.Row(i)
		mean := 0.0
		for _, v := range row {
			mean += v
		}
		mean /= float64(ln.Dim)

		variance := 0.0
		for _, v := range row {
			diff := v - mean
			variance += diff * diff
		}
		variance /= float64(ln.Dim)

		inv := 1.0 / math.Sqrt(variance+ln.Epsilon)
		dst := out.Row(i)
		for j, v := range row {
			normalized := (v - mean) * inv
			if ln.Affine {
				normalized = normalized*ln.Gamma[j] + ln.Beta[j]
			}
			dst[j] = normalized
		}
	}
	return out, nil
}
