package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/molpredict/fewshot/internal/tensor"
)

// Regularizer is a randomized-zeroing step applied before a projection. It is
// the identity in evaluation mode; the pipeline is only stochastic through
// its Regularizers in training mode.
type Regularizer interface {
	Forward(x *tensor.Matrix, training bool) *tensor.Matrix
}

// Dropout is standard inverted dropout: each element is zeroed with
// probability Rate and survivors are scaled by 1/(1-Rate).
type Dropout struct {
	Rate float64
	rng  *rand.Rand
}

// NewDropout creates a dropout layer. Rate must lie in [0, 1).
func NewDropout(rate float64, rng *rand.Rand) (*Dropout, error) {
	if rate < 0 || rate >= 1 {
		return nil, fmt.Errorf("nn: dropout rate must be in [0, 1), got %f", rate)
	}
	return &Dropout{Rate: rate, rng: rng}, nil
}

// Forward applies dropout during training and is the identity otherwise.
func (d *Dropout) Forward(x *tensor.Matrix, training bool) *tensor.Matrix {
	if !training || d.Rate <= 0 {
		return x
	}
	scale := 1.0 / (1.0 - d.Rate)
	out := x.Clone()
	for i := range out.Data {
		if d.rng.Float64() < d.Rate {
			out.Data[i] = 0
		} else {
			out.Data[i] *= scale
		}
	}
	return out
}

// AlphaDropout is the variance-preserving dropout variant paired with the
// self-normalizing activation: dropped elements are set to the activation's
// negative saturation value and the output is affinely rescaled so mean and
// variance are preserved.
type AlphaDropout struct {
	Rate float64
	rng  *rand.Rand
}

// NewAlphaDropout creates an alpha-dropout layer. Rate must lie in [0, 1).
func NewAlphaDropout(rate float64, rng *rand.Rand) (*AlphaDropout, error) {
	if rate < 0 || rate >= 1 {
		return nil, fmt.Errorf("nn: alpha dropout rate must be in [0, 1), got %f", rate)
	}
	return &AlphaDropout{Rate: rate, rng: rng}, nil
}

// Forward applies alpha dropout during training and is the identity otherwise.
func (d *AlphaDropout) Forward(x *tensor.Matrix, training bool) *tensor.Matrix {
	if !training || d.Rate <= 0 {
		return x
	}
	alphaPrime := -seluLambda * seluAlpha
	keep := 1.0 - d.Rate
	a := math.Pow(keep+alphaPrime*alphaPrime*keep*d.Rate, -0.5)
	b := -a * alphaPrime * d.Rate
	out := x.Clone()
	for i := range out.Data {
		if d.rng.Float64() < d.Rate {
			out.Data[i] = a*alphaPrime + b
		} else {
			out.Data[i] = a*out.Data[i] + b
		}
	}
	return out
}

// NewRegularizer returns the randomized-zeroing strategy matched to the
// activation: alpha dropout for the self-normalizing activation, ordinary
// dropout otherwise.
func NewRegularizer(act Activation, rate float64, rng *rand.Rand) (Regularizer, error) {
	if act == SELU {
		return NewAlphaDropout(rate, rng)
	}
	return NewDropout(rate, rng)
}
