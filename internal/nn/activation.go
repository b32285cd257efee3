// Package nn provides the neural building blocks of the pipeline: linear
// layers with activation-matched initialization, activation-matched dropout,
// layer normalization, and multi-head attention with key-padding masks.
package nn

import (
	"fmt"
	"math"

	"github.com/molpredict/fewshot/internal/tensor"
)

// Activation is a closed enumeration of the supported nonlinearities. The
// configured name is resolved to an Activation once, at construction; the
// forward path never dispatches on strings.
type Activation int

const (
	// ReLU is the rectified-linear activation.
	ReLU Activation = iota
	// SELU is the self-normalizing exponential-linear activation. Layers
	// using it pair with alpha dropout and LeCun initialization so the
	// self-normalizing property is preserved.
	SELU
	// Sigmoid is the logistic activation.
	Sigmoid
)

// Standard SELU parameterization.
const (
	seluLambda = 1.0507009873554805
	seluAlpha  = 1.6732632423543772
)

// ParseActivation resolves a configuration name to an Activation. Unknown
// names are a configuration bug and fail construction.
func ParseActivation(name string) (Activation, error) {
	switch name {
	case "relu":
		return ReLU, nil
	case "selu":
		return SELU, nil
	case "sigmoid":
		return Sigmoid, nil
	default:
		return 0, fmt.Errorf("nn: unknown activation %q (want relu, selu or sigmoid)", name)
	}
}

func (a Activation) String() string {
	switch a {
	case ReLU:
		return "relu"
	case SELU:
		return "selu"
	case Sigmoid:
		return "sigmoid"
	default:
		return fmt.Sprintf("activation(%d)", int(a))
	}
}

func relu(x float64) float64 {
	if x < 0 {
		return 0
	}
	return x
}

func selu(x float64) float64 {
	if x > 0 {
		return seluLambda * x
	}
	return seluLambda * seluAlpha * (math.Exp(x) - 1)
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Func returns the scalar activation function.
func (a Activation) Func() func(float64) float64 {
	switch a {
	case SELU:
		return selu
	case Sigmoid:
		return sigmoid
	default:
		return relu
	}
}

// Apply applies the activation element-wise.
func (a Activation) Apply(m *tensor.Matrix) *tensor.Matrix {
	return tensor.Apply(m, a.Func())
}

// Init returns the weight-initialization strategy matched to the activation.
func (a Activation) Init() InitKind {
	switch a {
	case ReLU:
		return InitHe
	case SELU:
		return InitLeCun
	default:
		return InitGlorot
	}
}
