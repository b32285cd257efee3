package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/molpredict/fewshot/internal/config"
	"github.com/molpredict/fewshot/internal/tensor"
)

// ScalingPolicy is a closed enumeration of the similarity-sum scalings.
type ScalingPolicy int

const (
	// ScaleLinear divides the summed similarities by 2N + ε ("1/N").
	ScaleLinear ScalingPolicy = iota
	// ScaleSqrt divides the summed similarities by 2·sqrt(N) + ε ("1/sqrt(N)").
	ScaleSqrt
)

// stabilizer keeps the scaling denominator finite when the real support-set
// size is zero; a degenerate support set yields a near-zero score, not NaN.
const stabilizer = 1e-8

// ParseScalingPolicy resolves a configuration name to a ScalingPolicy.
func ParseScalingPolicy(name string) (ScalingPolicy, error) {
	switch name {
	case "1/N":
		return ScaleLinear, nil
	case "1/sqrt(N)":
		return ScaleSqrt, nil
	default:
		return 0, fmt.Errorf("model: unknown scaling policy %q (want \"1/N\" or \"1/sqrt(N)\")", name)
	}
}

// SimilarityScorer computes one prediction weight per query from its
// similarity to a support branch. The same scorer is applied once to the
// active and once to the inactive branch.
type SimilarityScorer struct {
	L2Norm bool
	Policy ScalingPolicy
}

// NewSimilarityScorer builds the scorer from configuration. The scaling name
// is resolved once, at construction.
func NewSimilarityScorer(cfg config.SimilarityConfig) (*SimilarityScorer, error) {
	policy, err := ParseScalingPolicy(cfg.Scaling)
	if err != nil {
		return nil, err
	}
	return &SimilarityScorer{L2Norm: cfg.L2Norm, Policy: policy}, nil
}

// normalized returns v scaled to unit Euclidean norm. A zero vector stays
// zero (divisor substituted by 1).
func normalized(v []float64) []float64 {
	norm := math.Sqrt(floats.Dot(v, v))
	if norm == 0 {
		norm = 1
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// Score computes, per batch entry, the masked similarity sum between the
// query embedding and the branch's support embeddings, scaled by the policy.
// counts holds the real (non-padded) support-set size per entry.
func (ss *SimilarityScorer) Score(query, support *tensor.Set, mask *tensor.BoolMask, counts []int) ([]float64, error) {
	if query.B != support.B {
		return nil, fmt.Errorf("model: scorer batch sizes differ: query %d, support %d", query.B, support.B)
	}
	if query.Slots != 1 {
		return nil, fmt.Errorf("model: scorer expects exactly one query slot, got %d", query.Slots)
	}
	if query.Dim != support.Dim {
		return nil, fmt.Errorf("model: scorer embedding widths differ: query %d, support %d", query.Dim, support.Dim)
	}
	if mask.B != support.B || mask.Slots != support.Slots {
		return nil, fmt.Errorf("model: scorer mask shape [%d, %d], want [%d, %d]", mask.B, mask.Slots, support.B, support.Slots)
	}
	if len(counts) != support.B {
		return nil, fmt.Errorf("model: scorer got %d support counts for batch size %d", len(counts), support.B)
	}

	scores := make([]float64, support.B)
	for b := 0; b < support.B; b++ {
		q := query.Row(b, 0)
		if ss.L2Norm {
			q = normalized(q)
		}

		sum := 0.0
		for p := 0; p < support.Slots; p++ {
			if !mask.At(b, p) {
				continue
			}
			s := support.Row(b, p)
			if ss.L2Norm {
				s = normalized(s)
			}
			sum += floats.Dot(q, s)
		}

		n := float64(counts[b])
		var denom float64
		switch ss.Policy {
		case ScaleSqrt:
			denom = 2.0*math.Sqrt(n) + stabilizer
		default:
			denom = 2.0*n + stabilizer
		}
		scores[b] = sum / denom
	}
	return scores, nil
}
