// Package config defines the fixed-shape configuration for the few-shot
// activity predictor and its loading and validation. No pipeline code lives
// here; every field is enumerated and validated before the pipeline is
// constructed.
package config

import "fmt"

// EncoderConfig configures the shared molecule encoder.
type EncoderConfig struct {
	InputDim     int     `mapstructure:"input_dim"`
	HiddenDim    int     `mapstructure:"hidden_dim"`
	HiddenLayers int     `mapstructure:"hidden_layers"`
	Activation   string  `mapstructure:"activation"` // "relu" | "selu" | "sigmoid"
	InputDropout float64 `mapstructure:"input_dropout"`
	Dropout      float64 `mapstructure:"dropout"`
}

// RetrievalConfig configures the associative retrieval against the context set.
type RetrievalConfig struct {
	Heads   int     `mapstructure:"heads"`
	HeadDim int     `mapstructure:"head_dim"`
	Scaling float64 `mapstructure:"scaling"` // 0 selects 1/sqrt(head_dim)
	Dropout float64 `mapstructure:"dropout"`
}

// LayerNormConfig configures the optional per-entity normalization stage.
type LayerNormConfig struct {
	Usage  bool `mapstructure:"usage"`
	Affine bool `mapstructure:"affine"`
}

// CrossAttentionConfig configures the query/support self-attention stack.
type CrossAttentionConfig struct {
	ActivityDim int     `mapstructure:"activity_dim"`
	Heads       int     `mapstructure:"heads"`
	FFDim       int     `mapstructure:"ff_dim"`
	Layers      int     `mapstructure:"layers"`
	Dropout     float64 `mapstructure:"dropout"`
}

// SimilarityConfig configures the similarity scorer.
type SimilarityConfig struct {
	L2Norm  bool   `mapstructure:"l2_norm"`
	Scaling string `mapstructure:"scaling"` // "1/N" | "1/sqrt(N)"
}

// ModelConfig groups all pipeline parameters.
type ModelConfig struct {
	AssociationDim int                  `mapstructure:"association_dim"`
	Encoder        EncoderConfig        `mapstructure:"encoder"`
	Retrieval      RetrievalConfig      `mapstructure:"retrieval"`
	LayerNorm      LayerNormConfig      `mapstructure:"layer_norm"`
	CrossAttention CrossAttentionConfig `mapstructure:"cross_attention"`
	Similarity     SimilarityConfig     `mapstructure:"similarity"`
}

// SystemConfig groups execution-environment settings.
type SystemConfig struct {
	// Device is the execution target for the numeric pipeline. Only "cpu"
	// is backed by this implementation; the field exists so configurations
	// written for accelerator-backed deployments still parse.
	Device string `mapstructure:"device"`
	// Seed initializes the weight and dropout random source.
	Seed int64 `mapstructure:"seed"`
}

// Config is the root configuration.
type Config struct {
	Model  ModelConfig  `mapstructure:"model"`
	System SystemConfig `mapstructure:"system"`
}

func validDropout(rate float64) bool { return rate >= 0 && rate < 1 }

// Validate checks every field and returns a descriptive error on the first
// violation. A Config that validates constructs a pipeline without errors.
func (c *Config) Validate() error {
	m := &c.Model
	if m.AssociationDim <= 0 {
		return fmt.Errorf("model.association_dim must be positive, got %d", m.AssociationDim)
	}

	e := &m.Encoder
	if e.InputDim <= 0 {
		return fmt.Errorf("model.encoder.input_dim must be positive, got %d", e.InputDim)
	}
	if e.HiddenDim <= 0 {
		return fmt.Errorf("model.encoder.hidden_dim must be positive, got %d", e.HiddenDim)
	}
	if e.HiddenLayers < 0 {
		return fmt.Errorf("model.encoder.hidden_layers must be non-negative, got %d", e.HiddenLayers)
	}
	switch e.Activation {
	case "relu", "selu", "sigmoid":
	default:
		return fmt.Errorf("model.encoder.activation must be one of relu, selu, sigmoid; got %q", e.Activation)
	}
	if !validDropout(e.InputDropout) {
		return fmt.Errorf("model.encoder.input_dropout must be in [0, 1), got %f", e.InputDropout)
	}
	if !validDropout(e.Dropout) {
		return fmt.Errorf("model.encoder.dropout must be in [0, 1), got %f", e.Dropout)
	}

	r := &m.Retrieval
	if r.Heads <= 0 {
		return fmt.Errorf("model.retrieval.heads must be positive, got %d", r.Heads)
	}
	if r.HeadDim < 0 {
		return fmt.Errorf("model.retrieval.head_dim must be non-negative, got %d", r.HeadDim)
	}
	if m.AssociationDim%r.Heads != 0 {
		return fmt.Errorf("model.association_dim (%d) must be divisible by model.retrieval.heads (%d)",
			m.AssociationDim, r.Heads)
	}
	if !validDropout(r.Dropout) {
		return fmt.Errorf("model.retrieval.dropout must be in [0, 1), got %f", r.Dropout)
	}

	t := &m.CrossAttention
	if t.ActivityDim <= 0 {
		return fmt.Errorf("model.cross_attention.activity_dim must be positive, got %d", t.ActivityDim)
	}
	if t.Heads <= 0 {
		return fmt.Errorf("model.cross_attention.heads must be positive, got %d", t.Heads)
	}
	if t.FFDim <= 0 {
		return fmt.Errorf("model.cross_attention.ff_dim must be positive, got %d", t.FFDim)
	}
	if t.Layers <= 0 {
		return fmt.Errorf("model.cross_attention.layers must be positive, got %d", t.Layers)
	}
	if (m.AssociationDim+t.ActivityDim)%t.Heads != 0 {
		return fmt.Errorf("model.association_dim + model.cross_attention.activity_dim (%d) must be divisible by model.cross_attention.heads (%d)",
			m.AssociationDim+t.ActivityDim, t.Heads)
	}
	if !validDropout(t.Dropout) {
		return fmt.Errorf("model.cross_attention.dropout must be in [0, 1), got %f", t.Dropout)
	}

	switch m.Similarity.Scaling {
	case "1/N", "1/sqrt(N)":
	default:
		return fmt.Errorf("model.similarity.scaling must be \"1/N\" or \"1/sqrt(N)\", got %q", m.Similarity.Scaling)
	}

	if c.System.Device != "cpu" {
		return fmt.Errorf("system.device %q is not supported, only \"cpu\"", c.System.Device)
	}

	return nil
}
