package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/molpredict/fewshot/internal/tensor"
)

// maskValue is added to attention scores at masked key positions before the
// softmax. Anything this negative underflows exp() to exactly zero, so masked
// keys receive exactly zero attention weight.
const maskValue = -1e9

// AttentionConfig holds the construction parameters for multi-head attention.
type AttentionConfig struct {
	Heads    int
	ModelDim int
	// HeadDim is the per-head query/key width. Zero selects ModelDim/Heads.
	HeadDim int
	// Scaling multiplies the raw scores before the softmax. Zero selects
	// the usual 1/sqrt(HeadDim).
	Scaling float64
	Dropout float64
	// Init selects the weight-initialization strategy for all projections.
	Init InitKind
}

// MultiHeadAttention computes softmax attention with learned query, key,
// value and output projections. Queries and keys/values may come from
// different sequences, so the same component serves both associative
// retrieval against an external memory and self-attention.
type MultiHeadAttention struct {
	Heads    int
	ModelDim int
	HeadDim  int
	ValueDim int // per-head value width, ModelDim/Heads
	Scaling  float64

	QueryWeight  *Linear // ModelDim -> Heads*HeadDim
	KeyWeight    *Linear // ModelDim -> Heads*HeadDim
	ValueWeight  *Linear // ModelDim -> ModelDim
	OutputWeight *Linear // ModelDim -> ModelDim

	dropout *Dropout
}

// NewMultiHeadAttention creates a multi-head attention layer.
func NewMultiHeadAttention(cfg AttentionConfig, rng *rand.Rand) (*MultiHeadAttention, error) {
	if cfg.Heads <= 0 {
		return nil, fmt.Errorf("nn: number of heads must be positive, got %d", cfg.Heads)
	}
	if cfg.ModelDim <= 0 {
		return nil, fmt.Errorf("nn: model dimension must be positive, got %d", cfg.ModelDim)
	}
	if cfg.ModelDim%cfg.Heads != 0 {
		return nil, fmt.Errorf("nn: model dimension (%d) must be divisible by number of heads (%d)", cfg.ModelDim, cfg.Heads)
	}
	headDim := cfg.HeadDim
	if headDim == 0 {
		headDim = cfg.ModelDim / cfg.Heads
	}
	if headDim < 0 {
		return nil, fmt.Errorf("nn: head dimension must be positive, got %d", headDim)
	}
	scaling := cfg.Scaling
	if scaling == 0 {
		scaling = 1.0 / math.Sqrt(float64(headDim))
	}

	wq, err := NewLinear(cfg.ModelDim, cfg.Heads*headDim, cfg.Init, rng)
	if err != nil {
		return nil, fmt.Errorf("nn: query projection: %w", err)
	}
	wk, err := NewLinear(cfg.ModelDim, cfg.Heads*headDim, cfg.Init, rng)
	if err != nil {
		return nil, fmt.Errorf("nn: key projection: %w", err)
	}
	wv, err := NewLinear(cfg.ModelDim, cfg.ModelDim, cfg.Init, rng)
	if err != nil {
		return nil, fmt.Errorf("nn: value projection: %w", err)
	}
	wo, err := NewLinear(cfg.ModelDim, cfg.ModelDim, cfg.Init, rng)
	if err != nil {
		return nil, fmt.Errorf("nn: output projection: %w", err)
	}
	drop, err := NewDropout(cfg.Dropout, rng)
	if err != nil {
		return nil, err
	}

	return &MultiHeadAttention{
		Heads:        cfg.Heads,
		ModelDim:     cfg.ModelDim,
		HeadDim:      headDim,
		ValueDim:     cfg.ModelDim / cfg.Heads,
		Scaling:      scaling,
		QueryWeight:  wq,
		KeyWeight:    wk,
		ValueWeight:  wv,
		OutputWeight: wo,
		dropout:      drop,
	}, nil
}

// Forward computes attention of query rows over key/value rows. attendable,
// when non-nil, must have one flag per key row; keys flagged false receive
// exactly zero attention weight from every query row.
func (mha *MultiHeadAttention) Forward(query, key, value *tensor.Matrix, attendable []bool, training bool) (*tensor.Matrix, error) {
	if query.Cols != mha.ModelDim || key.Cols != mha.ModelDim || value.Cols != mha.ModelDim {
		return nil, fmt.Errorf("nn: attention input widths (%d, %d, %d) must equal model dimension %d",
			query.Cols, key.Cols, value.Cols, mha.ModelDim)
	}
	if key.Rows != value.Rows {
		return nil, fmt.Errorf("nn: key rows (%d) must equal value rows (%d)", key.Rows, value.Rows)
	}
	if attendable != nil && len(attendable) != key.Rows {
		return nil, fmt.Errorf("nn: attendable mask has %d entries for %d keys", len(attendable), key.Rows)
	}

	q, err := mha.QueryWeight.Forward(query)
	if err != nil {
		return nil, err
	}
	k, err := mha.KeyWeight.Forward(key)
	if err != nil {
		return nil, err
	}
	v, err := mha.ValueWeight.Forward(value)
	if err != nil {
		return nil, err
	}

	ctx, err := tensor.NewMatrix(query.Rows, mha.ModelDim)
	if err != nil {
		return nil, err
	}
	for h := 0; h < mha.Heads; h++ {
		qh, err := q.SliceCols(h*mha.HeadDim, (h+1)*mha.HeadDim)
		if err != nil {
			return nil, err
		}
		kh, err := k.SliceCols(h*mha.HeadDim, (h+1)*mha.HeadDim)
		if err != nil {
			return nil, err
		}
		vh, err := v.SliceCols(h*mha.ValueDim, (h+1)*mha.ValueDim)
		if err != nil {
			return nil, err
		}

		scores, err := tensor.MatMul(qh, tensor.Transpose(kh))
		if err != nil {
			return nil, err
		}
		scores = tensor.Scale(scores, mha.Scaling)
		if attendable != nil {
			for i := 0; i < scores.Rows; i++ {
				row := scores.Row(i)
				for j, ok := range attendable {
					if !ok {
						row[j] += maskValue
					}
				}
			}
		}

		weights := tensor.RowSoftmax(scores)
		weights = mha.dropout.Forward(weights, training)

		headed, err := tensor.MatMul(weights, vh)
		if err != nil {
			return nil, err
		}
		for i := 0; i < headed.Rows; i++ {
			copy(ctx.Row(i)[h*mha.ValueDim:(h+1)*mha.ValueDim], headed.Row(i))
		}
	}

	return mha.OutputWeight.Forward(ctx)
}
