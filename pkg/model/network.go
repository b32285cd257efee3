package model

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/molpredict/fewshot/internal/config"
	"github.com/molpredict/fewshot/internal/tensor"
)

// Inputs is one forward-call batch. Query, Actives and Inactives hold either
// raw descriptors (Forward) or association-space embeddings
// (ForwardEmbeddings); Context is the batch-shared reference pool with batch
// size 1. Masks flag real (true) versus padded (false) support slots and
// the counts hold the real support-set size per batch entry and branch.
type Inputs struct {
	Query     *tensor.Set // [B, 1, ·]
	Actives   *tensor.Set // [B, Pa, ·]
	Inactives *tensor.Set // [B, Pi, ·]
	Context   *tensor.Set // [1, C, ·]

	ActivesMask    *tensor.BoolMask // [B, Pa]
	InactivesMask  *tensor.BoolMask // [B, Pi]
	ActiveCounts   []int            // [B]
	InactiveCounts []int            // [B]
}

// Scores holds the two per-query branch scores. Combining them into a
// calibrated activity probability is left to the caller.
type Scores struct {
	Active   []float64
	Inactive []float64
}

// Network is the full forward pipeline. Weights are fixed after
// construction; forward calls never mutate shared state, so a Network may
// serve concurrent evaluation-mode calls.
type Network struct {
	Encoder        *Encoder
	Retrieval      *ContextRetrieval
	Norm           *NormStage
	CrossAttention *CrossAttention
	Scorer         *SimilarityScorer

	dim int
	log *zap.Logger
}

// NewNetwork constructs the pipeline from a validated configuration. All
// weights are drawn from a random source seeded with cfg.System.Seed, so
// construction is reproducible. A nil logger disables logging.
func NewNetwork(cfg *config.Config, logger *zap.Logger) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := rand.New(rand.NewSource(cfg.System.Seed))
	dim := cfg.Model.AssociationDim

	encoder, err := NewEncoder(cfg.Model.Encoder, dim, rng)
	if err != nil {
		return nil, err
	}
	retrieval, err := NewContextRetrieval(cfg.Model.Retrieval, dim, rng)
	if err != nil {
		return nil, err
	}
	norm, err := NewNormStage(cfg.Model.LayerNorm, dim)
	if err != nil {
		return nil, err
	}
	cross, err := NewCrossAttention(cfg.Model.CrossAttention, dim, rng)
	if err != nil {
		return nil, err
	}
	scorer, err := NewSimilarityScorer(cfg.Model.Similarity)
	if err != nil {
		return nil, err
	}

	logger.Info("network constructed",
		zap.Int("association_dim", dim),
		zap.String("encoder_activation", cfg.Model.Encoder.Activation),
		zap.Int("retrieval_heads", cfg.Model.Retrieval.Heads),
		zap.Int("cross_attention_layers", cfg.Model.CrossAttention.Layers),
		zap.Bool("layer_norm", cfg.Model.LayerNorm.Usage),
		zap.String("similarity_scaling", cfg.Model.Similarity.Scaling),
	)

	return &Network{
		Encoder:        encoder,
		Retrieval:      retrieval,
		Norm:           norm,
		CrossAttention: cross,
		Scorer:         scorer,
		dim:            dim,
		log:            logger,
	}, nil
}

// validateInputs checks the cross-input shape contracts shared by the
// descriptor and embedding entry points; width is the expected feature width
// of query/actives/inactives/context.
func (n *Network) validateInputs(in Inputs, width int) error {
	if in.Query == nil || in.Actives == nil || in.Inactives == nil || in.Context == nil {
		return fmt.Errorf("model: all input sets must be non-nil")
	}
	if in.ActivesMask == nil || in.InactivesMask == nil {
		return fmt.Errorf("model: both padding masks must be non-nil")
	}

	b := in.Query.B
	if in.Query.Slots != 1 {
		return fmt.Errorf("model: query must have exactly one slot per entry, got %d", in.Query.Slots)
	}
	if in.Actives.B != b || in.Inactives.B != b {
		return fmt.Errorf("model: batch sizes differ: query %d, actives %d, inactives %d",
			b, in.Actives.B, in.Inactives.B)
	}
	if in.Context.B != 1 {
		return fmt.Errorf("model: context set must have batch size 1, got %d", in.Context.B)
	}

	for role, s := range map[string]*tensor.Set{
		"query": in.Query, "actives": in.Actives, "inactives": in.Inactives, "context": in.Context,
	} {
		if s.Dim != width {
			return fmt.Errorf("model: %s feature width %d, want %d", role, s.Dim, width)
		}
	}

	if in.ActivesMask.B != b || in.ActivesMask.Slots != in.Actives.Slots {
		return fmt.Errorf("model: actives mask shape [%d, %d], want [%d, %d]",
			in.ActivesMask.B, in.ActivesMask.Slots, b, in.Actives.Slots)
	}
	if in.InactivesMask.B != b || in.InactivesMask.Slots != in.Inactives.Slots {
		return fmt.Errorf("model: inactives mask shape [%d, %d], want [%d, %d]",
			in.InactivesMask.B, in.InactivesMask.Slots, b, in.Inactives.Slots)
	}
	if len(in.ActiveCounts) != b || len(in.InactiveCounts) != b {
		return fmt.Errorf("model: support counts lengths (%d, %d), want %d",
			len(in.ActiveCounts), len(in.InactiveCounts), b)
	}

	for i, c := range in.ActivesMask.TrueCounts() {
		if c != in.ActiveCounts[i] {
			return fmt.Errorf("model: entry %d: actives mask marks %d real slots but count says %d",
				i, c, in.ActiveCounts[i])
		}
	}
	for i, c := range in.InactivesMask.TrueCounts() {
		if c != in.InactiveCounts[i] {
			return fmt.Errorf("model: entry %d: inactives mask marks %d real slots but count says %d",
				i, c, in.InactiveCounts[i])
		}
	}
	return nil
}

// Forward runs the full pipeline on raw descriptor sets: all four roles are
// encoded with the shared encoder, then scored via ForwardEmbeddings.
func (n *Network) Forward(in Inputs, training bool) (*Scores, error) {
	if err := n.validateInputs(in, n.Encoder.InputDim); err != nil {
		return nil, err
	}

	query, err := n.Encoder.EncodeSet(in.Query, training)
	if err != nil {
		return nil, err
	}
	actives, err := n.Encoder.EncodeSet(in.Actives, training)
	if err != nil {
		return nil, err
	}
	inactives, err := n.Encoder.EncodeSet(in.Inactives, training)
	if err != nil {
		return nil, err
	}
	context, err := n.Encoder.EncodeSet(in.Context, training)
	if err != nil {
		return nil, err
	}

	encoded := in
	encoded.Query, encoded.Actives, encoded.Inactives, encoded.Context = query, actives, inactives, context
	return n.ForwardEmbeddings(encoded, training)
}

// ForwardEmbeddings runs the pipeline on association-space embeddings:
// context retrieval, optional normalization, cross-attention, then one
// similarity score per branch. Embeddings are never mutated; every stage
// produces fresh sets.
func (n *Network) ForwardEmbeddings(in Inputs, training bool) (*Scores, error) {
	if err := n.validateInputs(in, n.dim); err != nil {
		return nil, err
	}

	query, actives, inactives, err := n.Retrieval.Forward(in.Query, in.Actives, in.Inactives, in.Context, training)
	if err != nil {
		return nil, err
	}

	query, actives, inactives, err = n.Norm.Forward(query, actives, inactives)
	if err != nil {
		return nil, err
	}

	query, actives, inactives, err = n.CrossAttention.Forward(query, actives, inactives, in.ActivesMask, in.InactivesMask, training)
	if err != nil {
		return nil, err
	}

	active, err := n.Scorer.Score(query, actives, in.ActivesMask, in.ActiveCounts)
	if err != nil {
		return nil, err
	}
	inactive, err := n.Scorer.Score(query, inactives, in.InactivesMask, in.InactiveCounts)
	if err != nil {
		return nil, err
	}

	n.log.Debug("forward pass complete",
		zap.Int("batch_size", in.Query.B),
		zap.Int("active_slots", in.Actives.Slots),
		zap.Int("inactive_slots", in.Inactives.Slots),
		zap.Bool("training", training),
	)

	return &Scores{Active: active, Inactive: inactive}, nil
}
