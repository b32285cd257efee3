package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix for all settings.
const envPrefix = "MOLPREDICT"

// newViper builds a pre-configured viper instance: YAML files, MOLPREDICT_
// env prefix, automatic env binding, and "." → "_" key mapping so that
// nested keys like "model.encoder.activation" resolve to
// "MOLPREDICT_MODEL_ENCODER_ACTIVATION".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerKeys(v)
	return v
}

// registerKeys declares every configuration key with its default so that
// environment overrides resolve even for keys absent from the config file.
func registerKeys(v *viper.Viper) {
	def := Default()
	v.SetDefault("model.association_dim", def.Model.AssociationDim)
	v.SetDefault("model.encoder.input_dim", def.Model.Encoder.InputDim)
	v.SetDefault("model.encoder.hidden_dim", def.Model.Encoder.HiddenDim)
	v.SetDefault("model.encoder.hidden_layers", def.Model.Encoder.HiddenLayers)
	v.SetDefault("model.encoder.activation", def.Model.Encoder.Activation)
	v.SetDefault("model.encoder.input_dropout", def.Model.Encoder.InputDropout)
	v.SetDefault("model.encoder.dropout", def.Model.Encoder.Dropout)
	v.SetDefault("model.retrieval.heads", def.Model.Retrieval.Heads)
	v.SetDefault("model.retrieval.head_dim", def.Model.Retrieval.HeadDim)
	v.SetDefault("model.retrieval.scaling", def.Model.Retrieval.Scaling)
	v.SetDefault("model.retrieval.dropout", def.Model.Retrieval.Dropout)
	v.SetDefault("model.layer_norm.usage", def.Model.LayerNorm.Usage)
	v.SetDefault("model.layer_norm.affine", def.Model.LayerNorm.Affine)
	v.SetDefault("model.cross_attention.activity_dim", def.Model.CrossAttention.ActivityDim)
	v.SetDefault("model.cross_attention.heads", def.Model.CrossAttention.Heads)
	v.SetDefault("model.cross_attention.ff_dim", def.Model.CrossAttention.FFDim)
	v.SetDefault("model.cross_attention.layers", def.Model.CrossAttention.Layers)
	v.SetDefault("model.cross_attention.dropout", def.Model.CrossAttention.Dropout)
	v.SetDefault("model.similarity.l2_norm", def.Model.Similarity.L2Norm)
	v.SetDefault("model.similarity.scaling", def.Model.Similarity.Scaling)
	v.SetDefault("system.device", def.System.Device)
	v.SetDefault("system.seed", def.System.Seed)
}

// Load reads the YAML file at configPath, merges MOLPREDICT_* environment
// overrides, applies defaults for unset fields, and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from MOLPREDICT_* environment
// variables and defaults, with no config file required.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// MustLoad is Load that panics on error. For use in main() where a
// config-load failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

// Default returns a validated configuration built purely from defaults.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
