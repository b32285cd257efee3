package model

import (
	"fmt"
	"math/rand"

	"github.com/molpredict/fewshot/internal/config"
	"github.com/molpredict/fewshot/internal/nn"
	"github.com/molpredict/fewshot/internal/tensor"
)

// ContextRetrieval enriches query and support embeddings with information
// retrieved from the batch-shared context set, treated as an external
// associative memory. Because the context set does not vary per task, all
// molecules across all batch entries are flattened into one long sequence
// and retrieved against it in a single attention call.
type ContextRetrieval struct {
	Dim       int
	Attention *nn.MultiHeadAttention
}

// NewContextRetrieval builds the retrieval stage. Its projections use the
// plain-linear initialization strategy, independent of the encoder's
// activation.
func NewContextRetrieval(cfg config.RetrievalConfig, dim int, rng *rand.Rand) (*ContextRetrieval, error) {
	attn, err := nn.NewMultiHeadAttention(nn.AttentionConfig{
		Heads:    cfg.Heads,
		ModelDim: dim,
		HeadDim:  cfg.HeadDim,
		Scaling:  cfg.Scaling,
		Dropout:  cfg.Dropout,
		Init:     nn.InitGlorot,
	}, rng)
	if err != nil {
		return nil, fmt.Errorf("model: context retrieval: %w", err)
	}
	return &ContextRetrieval{Dim: dim, Attention: attn}, nil
}

// Forward retrieves a context-informed correction for every molecule and
// adds it as a residual. The context set must have batch size 1 (it is
// shared, not per-entry). The returned sets have the shapes of the inputs;
// splitting the reconstructed sequence at the concatenation offsets is an
// exact inverse of the stacking.
func (cr *ContextRetrieval) Forward(query, actives, inactives, context *tensor.Set, training bool) (q, a, i *tensor.Set, err error) {
	if context.B != 1 {
		return nil, nil, nil, fmt.Errorf("model: context set must have batch size 1, got %d", context.B)
	}
	if query.Dim != cr.Dim || actives.Dim != cr.Dim || inactives.Dim != cr.Dim || context.Dim != cr.Dim {
		return nil, nil, nil, fmt.Errorf("model: retrieval embedding widths (%d, %d, %d, %d) must equal %d",
			query.Dim, actives.Dim, inactives.Dim, context.Dim, cr.Dim)
	}

	// [B, 1+Pa+Pi, D] stacked per entry, then one flat sequence across the
	// whole batch.
	joint, err := tensor.ConcatSets(query, actives, inactives)
	if err != nil {
		return nil, nil, nil, err
	}
	flat := tensor.Flatten(joint)

	memory := context.Entry(0)
	retrieved, err := cr.Attention.Forward(flat, memory, memory, nil, training)
	if err != nil {
		return nil, nil, nil, err
	}

	updated, err := tensor.Add(flat, retrieved)
	if err != nil {
		return nil, nil, nil, err
	}
	reshaped, err := tensor.Unflatten(updated, joint.B)
	if err != nil {
		return nil, nil, nil, err
	}

	parts, err := tensor.SplitSets(reshaped, query.Slots, actives.Slots, inactives.Slots)
	if err != nil {
		return nil, nil, nil, err
	}
	return parts[0], parts[1], parts[2], nil
}
