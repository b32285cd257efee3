package model

import (
	"fmt"
	"math/rand"

	"github.com/molpredict/fewshot/internal/config"
	"github.com/molpredict/fewshot/internal/nn"
	"github.com/molpredict/fewshot/internal/tensor"
)

// Activity-encoding values appended to the embeddings before self-attention.
const (
	activityUnknown  = 0.0  // query: label unknown
	activityActive   = 1.0  // active support molecules
	activityInactive = -1.0 // inactive support molecules
)

// CrossAttention lets the query and support molecules of one task inform
// each other through a self-attention stack, independent of the shared
// context set. Each embedding is widened by a fixed activity-encoding signal
// before attention and narrowed back afterwards.
type CrossAttention struct {
	Dim         int
	ActivityDim int
	Stack       *nn.TransformerStack
}

// NewCrossAttention builds the stage. The stack operates at width
// dim + activity_dim, which must be divisible by the head count.
func NewCrossAttention(cfg config.CrossAttentionConfig, dim int, rng *rand.Rand) (*CrossAttention, error) {
	if cfg.ActivityDim <= 0 {
		return nil, fmt.Errorf("model: activity encoding width must be positive, got %d", cfg.ActivityDim)
	}
	stack, err := nn.NewTransformerStack(nn.TransformerConfig{
		Layers:   cfg.Layers,
		Heads:    cfg.Heads,
		ModelDim: dim + cfg.ActivityDim,
		FFDim:    cfg.FFDim,
		Dropout:  cfg.Dropout,
	}, rng)
	if err != nil {
		return nil, fmt.Errorf("model: cross attention: %w", err)
	}
	return &CrossAttention{Dim: dim, ActivityDim: cfg.ActivityDim, Stack: stack}, nil
}

// Forward runs the masked self-attention stack over [query; actives;
// inactives] per batch entry, adds the stack output as a residual, and
// splits the result back into roles with the activity columns dropped.
// Padded support slots are excluded from attention, so their content cannot
// affect the query or any real support position.
func (ca *CrossAttention) Forward(
	query, actives, inactives *tensor.Set,
	activesMask, inactivesMask *tensor.BoolMask,
	training bool,
) (q, a, i *tensor.Set, err error) {
	if query.Dim != ca.Dim || actives.Dim != ca.Dim || inactives.Dim != ca.Dim {
		return nil, nil, nil, fmt.Errorf("model: cross attention embedding widths (%d, %d, %d) must equal %d",
			query.Dim, actives.Dim, inactives.Dim, ca.Dim)
	}

	queryWide, err := query.WithConstCols(ca.ActivityDim, activityUnknown)
	if err != nil {
		return nil, nil, nil, err
	}
	activesWide, err := actives.WithConstCols(ca.ActivityDim, activityActive)
	if err != nil {
		return nil, nil, nil, err
	}
	inactivesWide, err := inactives.WithConstCols(ca.ActivityDim, activityInactive)
	if err != nil {
		return nil, nil, nil, err
	}

	joint, err := tensor.ConcatSets(queryWide, activesWide, inactivesWide)
	if err != nil {
		return nil, nil, nil, err
	}

	// Key-padding mask: the query position is always attendable; support
	// positions are attendable exactly where the input masks mark a real
	// molecule.
	queryMask, err := tensor.FullMask(joint.B, query.Slots)
	if err != nil {
		return nil, nil, nil, err
	}
	attendable, err := tensor.ConcatMasks(queryMask, activesMask, inactivesMask)
	if err != nil {
		return nil, nil, nil, err
	}

	updated := joint.Clone()
	for b := 0; b < joint.B; b++ {
		entry := joint.Entry(b)
		out, err := ca.Stack.Forward(entry, attendable.Row(b), training)
		if err != nil {
			return nil, nil, nil, err
		}
		residual, err := tensor.Add(entry, out)
		if err != nil {
			return nil, nil, nil, err
		}
		copy(updated.Entry(b).Data, residual.Data)
	}

	parts, err := tensor.SplitSets(updated, query.Slots, actives.Slots, inactives.Slots)
	if err != nil {
		return nil, nil, nil, err
	}
	q, err = parts[0].TrimCols(ca.Dim)
	if err != nil {
		return nil, nil, nil, err
	}
	a, err = parts[1].TrimCols(ca.Dim)
	if err != nil {
		return nil, nil, nil, err
	}
	i, err = parts[2].TrimCols(ca.Dim)
	if err != nil {
		return nil, nil, nil, err
	}
	return q, a, i, nil
}
