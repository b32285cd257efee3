package config

// ApplyDefaults fills unset fields with working defaults. Zero values that
// are meaningful settings (dropout 0, retrieval scaling 0 = auto) are left
// alone; only fields whose zero value is invalid are defaulted.
func ApplyDefaults(cfg *Config) {
	m := &cfg.Model
	if m.AssociationDim == 0 {
		m.AssociationDim = 512
	}

	if m.Encoder.InputDim == 0 {
		m.Encoder.InputDim = 2248
	}
	if m.Encoder.HiddenDim == 0 {
		m.Encoder.HiddenDim = 1024
	}
	if m.Encoder.Activation == "" {
		m.Encoder.Activation = "selu"
	}

	if m.Retrieval.Heads == 0 {
		m.Retrieval.Heads = 8
	}
	if m.Retrieval.HeadDim == 0 {
		m.Retrieval.HeadDim = 64
	}

	if m.CrossAttention.ActivityDim == 0 {
		m.CrossAttention.ActivityDim = 64
	}
	if m.CrossAttention.Heads == 0 {
		m.CrossAttention.Heads = 8
	}
	if m.CrossAttention.FFDim == 0 {
		m.CrossAttention.FFDim = 1024
	}
	if m.CrossAttention.Layers == 0 {
		m.CrossAttention.Layers = 1
	}

	if m.Similarity.Scaling == "" {
		m.Similarity.Scaling = "1/N"
	}

	if cfg.System.Device == "" {
		cfg.System.Device = "cpu"
	}
	if cfg.System.Seed == 0 {
		cfg.System.Seed = 42
	}
}
