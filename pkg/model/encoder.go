// Package model implements the few-shot activity prediction pipeline: a
// shared molecule encoder, associative retrieval against a batch-shared
// context set, an optional per-entity normalization stage, a query/support
// cross-attention stack, and a similarity-based scorer for the active and
// inactive support branches.
package model

import (
	"fmt"
	"math/rand"

	"github.com/molpredict/fewshot/internal/config"
	"github.com/molpredict/fewshot/internal/nn"
	"github.com/molpredict/fewshot/internal/tensor"
)

// Encoder maps raw fixed-length molecule descriptors into the shared
// association space. One instance is applied, with the same weights, to
// every molecule role: query, actives, inactives, and context.
type Encoder struct {
	InputDim  int
	OutputDim int

	act nn.Activation

	inputDropout nn.Regularizer
	inputLayer   *nn.Linear

	hiddenDropouts []nn.Regularizer
	hiddenLayers   []*nn.Linear

	outputDropout nn.Regularizer
	outputLayer   *nn.Linear
}

// NewEncoder builds the encoder from configuration. The activation name is
// resolved once; it selects the nonlinearity, the dropout variant, and the
// weight-initialization strategy for every projection.
func NewEncoder(cfg config.EncoderConfig, assocDim int, rng *rand.Rand) (*Encoder, error) {
	act, err := nn.ParseActivation(cfg.Activation)
	if err != nil {
		return nil, err
	}

	inDrop, err := nn.NewRegularizer(act, cfg.InputDropout, rng)
	if err != nil {
		return nil, err
	}
	inLayer, err := nn.NewLinear(cfg.InputDim, cfg.HiddenDim, act.Init(), rng)
	if err != nil {
		return nil, fmt.Errorf("model: encoder input layer: %w", err)
	}

	hiddenDropouts := make([]nn.Regularizer, cfg.HiddenLayers)
	hiddenLayers := make([]*nn.Linear, cfg.HiddenLayers)
	for i := 0; i < cfg.HiddenLayers; i++ {
		drop, err := nn.NewRegularizer(act, cfg.Dropout, rng)
		if err != nil {
			return nil, err
		}
		layer, err := nn.NewLinear(cfg.HiddenDim, cfg.HiddenDim, act.Init(), rng)
		if err != nil {
			return nil, fmt.Errorf("model: encoder hidden layer %d: %w", i, err)
		}
		hiddenDropouts[i] = drop
		hiddenLayers[i] = layer
	}

	outDrop, err := nn.NewRegularizer(act, cfg.Dropout, rng)
	if err != nil {
		return nil, err
	}
	outLayer, err := nn.NewLinear(cfg.HiddenDim, assocDim, act.Init(), rng)
	if err != nil {
		return nil, fmt.Errorf("model: encoder output layer: %w", err)
	}

	return &Encoder{
		InputDim:       cfg.InputDim,
		OutputDim:      assocDim,
		act:            act,
		inputDropout:   inDrop,
		inputLayer:     inLayer,
		hiddenDropouts: hiddenDropouts,
		hiddenLayers:   hiddenLayers,
		outputDropout:  outDrop,
		outputLayer:    outLayer,
	}, nil
}

// Forward encodes a [n, InputDim] descriptor matrix into [n, OutputDim]
// embeddings. Deterministic in evaluation mode; stochastic only through the
// dropout steps in training mode.
func (e *Encoder) Forward(descriptors *tensor.Matrix, training bool) (*tensor.Matrix, error) {
	if descriptors.Cols != e.InputDim {
		return nil, fmt.Errorf("model: descriptor width %d, want %d", descriptors.Cols, e.InputDim)
	}

	x := e.inputDropout.Forward(descriptors, training)
	x, err := e.inputLayer.Forward(x)
	if err != nil {
		return nil, err
	}
	x = e.act.Apply(x)

	for i, layer := range e.hiddenLayers {
		x = e.hiddenDropouts[i].Forward(x, training)
		x, err = layer.Forward(x)
		if err != nil {
			return nil, err
		}
		x = e.act.Apply(x)
	}

	x = e.outputDropout.Forward(x, training)
	x, err = e.outputLayer.Forward(x)
	if err != nil {
		return nil, err
	}
	return e.act.Apply(x), nil
}

// EncodeSet encodes every slot of a descriptor set, preserving the batch and
// slot layout.
func (e *Encoder) EncodeSet(descriptors *tensor.Set, training bool) (*tensor.Set, error) {
	encoded, err := e.Forward(tensor.Flatten(descriptors), training)
	if err != nil {
		return nil, err
	}
	return tensor.Unflatten(encoded, descriptors.B)
}
