package model

import (
	"github.com/molpredict/fewshot/internal/config"
	"github.com/molpredict/fewshot/internal/nn"
	"github.com/molpredict/fewshot/internal/tensor"
)

// NormStage optionally layer-normalizes the query, active, and inactive
// embeddings with three independent normalization instances; no parameters
// are shared across roles. With usage disabled the stage is an exact
// pass-through. The policy is fixed at construction.
type NormStage struct {
	query     *nn.LayerNorm
	actives   *nn.LayerNorm
	inactives *nn.LayerNorm
}

// NewNormStage builds the stage from configuration.
func NewNormStage(cfg config.LayerNormConfig, dim int) (*NormStage, error) {
	if !cfg.Usage {
		return &NormStage{}, nil
	}
	q, err := nn.NewLayerNorm(dim, cfg.Affine)
	if err != nil {
		return nil, err
	}
	a, err := nn.NewLayerNorm(dim, cfg.Affine)
	if err != nil {
		return nil, err
	}
	i, err := nn.NewLayerNorm(dim, cfg.Affine)
	if err != nil {
		return nil, err
	}
	return &NormStage{query: q, actives: a, inactives: i}, nil
}

// Enabled reports whether the stage normalizes (false = identity policy).
func (ns *NormStage) Enabled() bool { return ns.query != nil }

func normalizeSet(ln *nn.LayerNorm, s *tensor.Set) (*tensor.Set, error) {
	out, err := ln.Forward(tensor.Flatten(s))
	if err != nil {
		return nil, err
	}
	return tensor.Unflatten(out, s.B)
}

// Forward applies the policy. With the identity policy the inputs are
// returned unchanged. An absent inactive branch (zero slots) skips its
// normalization.
func (ns *NormStage) Forward(query, actives, inactives *tensor.Set) (q, a, i *tensor.Set, err error) {
	if !ns.Enabled() {
		return query, actives, inactives, nil
	}
	q, err = normalizeSet(ns.query, query)
	if err != nil {
		return nil, nil, nil, err
	}
	a, err = normalizeSet(ns.actives, actives)
	if err != nil {
		return nil, nil, nil, err
	}
	i = inactives
	if inactives.Slots > 0 {
		i, err = normalizeSet(ns.inactives, inactives)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return q, a, i, nil
}
