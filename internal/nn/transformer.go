package nn

import (
	"fmt"
	"math/rand"

	"github.com/molpredict/fewshot/internal/tensor"
)

// FeedForward is the position-wise two-layer network inside a transformer
// layer, with a rectified-linear hidden activation.
type FeedForward struct {
	W1 *Linear
	W2 *Linear
}

// NewFeedForward creates a feed-forward block expanding to hiddenDim.
func NewFeedForward(modelDim, hiddenDim int, rng *rand.Rand) (*FeedForward, error) {
	w1, err := NewLinear(modelDim, hiddenDim, InitHe, rng)
	if err != nil {
		return nil, err
	}
	w2, err := NewLinear(hiddenDim, modelDim, InitGlorot, rng)
	if err != nil {
		return nil, err
	}
	return &FeedForward{W1: w1, W2: w2}, nil
}

// Forward applies the block to every row of x.
func (ff *FeedForward) Forward(x *tensor.Matrix) (*tensor.Matrix, error) {
	hidden, err := ff.W1.Forward(x)
	if err != nil {
		return nil, err
	}
	hidden = ReLU.Apply(hidden)
	return ff.W2.Forward(hidden)
}

// TransformerConfig holds the construction parameters for a self-attention
// stack.
type TransformerConfig struct {
	Layers   int
	Heads    int
	ModelDim int
	FFDim    int
	Dropout  float64
}

// TransformerLayer is one post-norm encoder layer: self-attention and a
// feed-forward block, each with a residual connection followed by layer
// normalization. All operations are position-wise except the (masked)
// attention, so padded positions never leak into unmasked ones.
type TransformerLayer struct {
	SelfAttention *MultiHeadAttention
	FeedForward   *FeedForward
	Norm1         *LayerNorm
	Norm2         *LayerNorm
	dropout       *Dropout
}

// NewTransformerLayer creates a single encoder layer.
func NewTransformerLayer(cfg TransformerConfig, rng *rand.Rand) (*TransformerLayer, error) {
	attn, err := NewMultiHeadAttention(AttentionConfig{
		Heads:    cfg.Heads,
		ModelDim: cfg.ModelDim,
		Dropout:  cfg.Dropout,
		Init:     InitGlorot,
	}, rng)
	if err != nil {
		return nil, err
	}
	ff, err := NewFeedForward(cfg.ModelDim, cfg.FFDim, rng)
	if err != nil {
		return nil, err
	}
	norm1, err := NewLayerNorm(cfg.ModelDim, true)
	if err != nil {
		return nil, err
	}
	norm2, err := NewLayerNorm(cfg.ModelDim, true)
	if err != nil {
		return nil, err
	}
	drop, err := NewDropout(cfg.Dropout, rng)
	if err != nil {
		return nil, err
	}
	return &TransformerLayer{
		SelfAttention: attn,
		FeedForward:   ff,
		Norm1:         norm1,
		Norm2:         norm2,
		dropout:       drop,
	}, nil
}

// Forward processes one sequence through the layer. attendable flags the
// positions that may be attended to as keys.
func (tl *TransformerLayer) Forward(x *tensor.Matrix, attendable []bool, training bool) (*tensor.Matrix, error) {
	attnOut, err := tl.SelfAttention.Forward(x, x, x, attendable, training)
	if err != nil {
		return nil, err
	}
	attnOut = tl.dropout.Forward(attnOut, training)
	residual1, err := tensor.Add(x, attnOut)
	if err != nil {
		return nil, err
	}
	normalized1, err := tl.Norm1.Forward(residual1)
	if err != nil {
		return nil, err
	}

	ffnOut, err := tl.FeedForward.Forward(normalized1)
	if err != nil {
		return nil, err
	}
	ffnOut = tl.dropout.Forward(ffnOut, training)
	residual2, err := tensor.Add(normalized1, ffnOut)
	if err != nil {
		return nil, err
	}
	return tl.Norm2.Forward(residual2)
}

// TransformerStack is a sequence of encoder layers sharing one padding mask.
type TransformerStack struct {
	Layers []*TransformerLayer
}

// NewTransformerStack creates a stack of cfg.Layers encoder layers.
func NewTransformerStack(cfg TransformerConfig, rng *rand.Rand) (*TransformerStack, error) {
	if cfg.Layers <= 0 {
		return nil, fmt.Errorf("nn: transformer stack needs at least one layer, got %d", cfg.Layers)
	}
	layers := make([]*TransformerLayer, cfg.Layers)
	for i := range layers {
		layer, err := NewTransformerLayer(cfg, rng)
		if err != nil {
			return nil, fmt.Errorf("nn: transformer layer %d: %w", i, err)
		}
		layers[i] = layer
	}
	return &TransformerStack{Layers: layers}, nil
}

// Forward threads one sequence through every layer with the same mask.
func (ts *TransformerStack) Forward(x *tensor.Matrix, attendable []bool, training bool) (*tensor.Matrix, error) {
	out := x
	var err error
	for _, layer := range ts.Layers {
		out, err = layer.Forward(out, attendable, training)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
