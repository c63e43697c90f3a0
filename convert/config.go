package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
)

// ConfigFilename is the configuration document of an HF checkpoint.
const ConfigFilename = "config.json"

var (
	ErrConfigNotFound  = errors.New("config not found")
	ErrConfigMalformed = errors.New("config malformed")
)

// TextConfig is the derived text-only model configuration. The key set
// is a fixed schema: every field is either sourced from the checkpoint
// or defaulted, and nothing outside it is carried through. Field order
// matches the emitted document.
type TextConfig struct {
	Architectures         []string `json:"architectures"`
	AttentionBias         bool     `json:"attention_bias"`
	AttentionDropout      float64  `json:"attention_dropout"`
	BOSTokenID            int      `json:"bos_token_id"`
	EOSTokenID            int      `json:"eos_token_id"`
	HeadDim               int      `json:"head_dim"`
	HiddenAct             string   `json:"hidden_act"`
	HiddenSize            int      `json:"hidden_size"`
	InitializerRange      float64  `json:"initializer_range"`
	IntermediateSize      int      `json:"intermediate_size"`
	MaxPositionEmbeddings int      `json:"max_position_embeddings"`
	ModelType             string   `json:"model_type"`
	NumAttentionHeads     int      `json:"num_attention_heads"`
	NumHiddenLayers       int      `json:"num_hidden_layers"`
	NumKeyValueHeads      int      `json:"num_key_value_heads"`
	RMSNormEPS            float64  `json:"rms_norm_eps"`
	RopeScaling           any      `json:"rope_scaling"`
	RopeTheta             float64  `json:"rope_theta"`
	TieWordEmbeddings     bool     `json:"tie_word_embeddings"`
	TorchDtype            string   `json:"torch_dtype"`
	TransformersVersion   string   `json:"transformers_version"`
	UseCache              bool     `json:"use_cache"`
	VocabSize             int      `json:"vocab_size"`
	UseSlidingWindow      bool     `json:"use_sliding_window"`
}

// textSettings mirrors the nested text_config sub-document. Pointer
// fields distinguish absent keys from zero values so defaulting never
// clobbers an explicit source value.
type textSettings struct {
	AttentionBias         *bool    `mapstructure:"attention_bias"`
	AttentionDropout      *float64 `mapstructure:"attention_dropout"`
	BOSTokenID            *int     `mapstructure:"bos_token_id"`
	EOSTokenID            *int     `mapstructure:"eos_token_id"`
	HeadDim               *int     `mapstructure:"head_dim"`
	HiddenAct             *string  `mapstructure:"hidden_act"`
	HiddenSize            *int     `mapstructure:"hidden_size"`
	InitializerRange      *float64 `mapstructure:"initializer_range"`
	IntermediateSize      *int     `mapstructure:"intermediate_size"`
	MaxPositionEmbeddings *int     `mapstructure:"max_position_embeddings"`
	NumAttentionHeads     *int     `mapstructure:"num_attention_heads"`
	NumHiddenLayers       *int     `mapstructure:"num_hidden_layers"`
	NumKeyValueHeads      *int     `mapstructure:"num_key_value_heads"`
	RMSNormEPS            *float64 `mapstructure:"rms_norm_eps"`
	RopeScaling           any      `mapstructure:"rope_scaling"`
	RopeTheta             *float64 `mapstructure:"rope_theta"`
	VocabSize             *int     `mapstructure:"vocab_size"`
}

// DeriveTextConfig reads the source checkpoint configuration from dir
// and projects its text_config sub-document onto the target schema,
// filling gaps with Qwen3-8B defaults.
func DeriveTextConfig(dir string) (*TextConfig, error) {
	bts, err := os.ReadFile(filepath.Join(dir, ConfigFilename))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, filepath.Join(dir, ConfigFilename))
	} else if err != nil {
		return nil, err
	}

	var source map[string]any
	if err := json.Unmarshal(sanitizeNonFiniteJSON(bts), &source); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigMalformed, err)
	}

	return deriveTextConfig(source)
}

func deriveTextConfig(source map[string]any) (*TextConfig, error) {
	sub := make(map[string]any)
	if v, ok := source["text_config"]; ok && v != nil {
		sub, ok = v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: text_config is not an object", ErrConfigMalformed)
		}
	}

	var s textSettings
	if err := mapstructure.Decode(sub, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigMalformed, err)
	}

	return &TextConfig{
		// architecture-level decisions, never taken from the source
		Architectures:       []string{"Qwen3ForCausalLM"},
		ModelType:           "qwen3",
		TieWordEmbeddings:   false,
		TorchDtype:          "bfloat16",
		TransformersVersion: "4.51.0",
		UseCache:            true,
		UseSlidingWindow:    false,

		AttentionBias:         orDefault(s.AttentionBias, false),
		AttentionDropout:      orDefault(s.AttentionDropout, 0.0),
		BOSTokenID:            orDefault(s.BOSTokenID, 151643),
		EOSTokenID:            orDefault(s.EOSTokenID, 151645),
		HeadDim:               orDefault(s.HeadDim, 128),
		HiddenAct:             orDefault(s.HiddenAct, "silu"),
		HiddenSize:            orDefault(s.HiddenSize, 4096),
		InitializerRange:      orDefault(s.InitializerRange, 0.02),
		IntermediateSize:      orDefault(s.IntermediateSize, 12288),
		MaxPositionEmbeddings: orDefault(s.MaxPositionEmbeddings, 40960),
		NumAttentionHeads:     orDefault(s.NumAttentionHeads, 32),
		NumHiddenLayers:       orDefault(s.NumHiddenLayers, 36),
		NumKeyValueHeads:      orDefault(s.NumKeyValueHeads, 8),
		RMSNormEPS:            orDefault(s.RMSNormEPS, 1e-06),
		RopeTheta:             orDefault(s.RopeTheta, 1000000),
		VocabSize:             orDefault(s.VocabSize, 151936),

		// legitimately null when the source omits it
		RopeScaling: s.RopeScaling,
	}, nil
}

func orDefault[T any](v *T, def T) T {
	if v != nil {
		return *v
	}
	return def
}
