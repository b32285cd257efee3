package nn

import (
	"fmt"
	"math/rand"

	"github.com/molpredict/fewshot/internal/tensor"
)

// Linear is a fully connected layer computing y = xW + b.
type Linear struct {
	In     int
	Out    int
	Weight *tensor.Matrix // [In, Out]
	Bias   []float64      // [Out]
}

// NewLinear creates a linear layer with weights drawn from the given
// initialization strategy and a zero bias.
func NewLinear(in, out int, init InitKind, rng *rand.Rand) (*Linear, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("nn: linear dimensions must be positive, got %dx%d", in, out)
	}
	w, err := tensor.NewMatrix(in, out)
	if err != nil {
		return nil, err
	}
	if err := initWeights(w, init, rng); err != nil {
		return nil, err
	}
	return &Linear{In: in, Out: out, Weight: w, Bias: make([]float64, out)}, nil
}

// Forward applies the layer to every row of x.
func (l *Linear) Forward(x *tensor.Matrix) (*tensor.Matrix, error) {
	if x.Cols != l.In {
		return nil, fmt.Errorf("nn: linear input width %d, want %d", x.Cols, l.In)
	}
	out, err := tensor.MatMul(x, l.Weight)
	if err != nil {
		return nil, err
	}
	for i := 0; i < out.Rows; i++ {
		row := out.Row(i)
		for j, b := range l.Bias {
			row[j] += b
		}
	}
	return out, nil
}
