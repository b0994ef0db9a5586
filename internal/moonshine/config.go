package moonshine

import (
	"encoding/json"
	"fmt"
	"os"
)

// ModelConfig holds the decoder parameters the generation loop depends on.
// It is read once per session and never mutated.
type ModelConfig struct {
	EOSTokenID            int64
	DecoderStartTokenID   int64
	NumKeyValueHeads      int
	HeadDim               int
	DecoderLayers         int
	MaxPositionEmbeddings int
}

// rawModelConfig mirrors the fields of config.json that matter here.
type rawModelConfig struct {
	EOSTokenID               any `json:"eos_token_id"` // int or []int
	DecoderStartTokenID      int `json:"decoder_start_token_id"`
	DecoderNumKeyValueHeads  int `json:"decoder_num_key_value_heads"`
	DecoderNumAttentionHeads int `json:"decoder_num_attention_heads"`
	DecoderNumHiddenLayers   int `json:"decoder_num_hidden_layers"`
	HiddenSize               int `json:"hidden_size"`
	MaxPositionEmbeddings    int `json:"max_position_embeddings"`
}

// LoadModelConfig reads and validates a config.json file.
func LoadModelConfig(path string) (ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("%w: read config: %w", ErrArtifactUnavailable, err)
	}
	return ParseModelConfig(data)
}

// ParseModelConfig decodes config.json content and derives HeadDim.
func ParseModelConfig(data []byte) (ModelConfig, error) {
	var raw rawModelConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return ModelConfig{}, fmt.Errorf("%w: parse config: %w", ErrArtifactUnavailable, err)
	}

	var eos int64
	switch v := raw.EOSTokenID.(type) {
	case float64:
		eos = int64(v)
	case []any:
		if len(v) > 0 {
			if f, ok := v[0].(float64); ok {
				eos = int64(f)
			}
		}
	}

	if raw.DecoderNumAttentionHeads <= 0 {
		return ModelConfig{}, fmt.Errorf("%w: decoder_num_attention_heads must be positive, got %d", ErrArtifactUnavailable, raw.DecoderNumAttentionHeads)
	}
	if raw.HiddenSize%raw.DecoderNumAttentionHeads != 0 {
		return ModelConfig{}, fmt.Errorf("%w: hidden_size %d is not divisible by %d heads", ErrArtifactUnavailable, raw.HiddenSize, raw.DecoderNumAttentionHeads)
	}
	kvHeads := raw.DecoderNumKeyValueHeads
	if kvHeads == 0 {
		kvHeads = raw.DecoderNumAttentionHeads
	}

	cfg := ModelConfig{
		EOSTokenID:            eos,
		DecoderStartTokenID:   int64(raw.DecoderStartTokenID),
		NumKeyValueHeads:      kvHeads,
		HeadDim:               raw.HiddenSize / raw.DecoderNumAttentionHeads,
		DecoderLayers:         raw.DecoderNumHiddenLayers,
		MaxPositionEmbeddings: raw.MaxPositionEmbeddings,
	}
	if err := cfg.Validate(); err != nil {
		return ModelConfig{}, err
	}
	return cfg, nil
}

// Validate checks that every field is a positive integer.
func (c ModelConfig) Validate() error {
	fields := []struct {
		name  string
		value int64
	}{
		{"eos_token_id", c.EOSTokenID},
		{"decoder_start_token_id", c.DecoderStartTokenID},
		{"decoder_num_key_value_heads", int64(c.NumKeyValueHeads)},
		{"head_dim", int64(c.HeadDim)},
		{"decoder_num_hidden_layers", int64(c.DecoderLayers)},
		{"max_position_embeddings", int64(c.MaxPositionEmbeddings)},
	}
	for _, f := range fields {
		if f.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrArtifactUnavailable, f.name, f.value)
		}
	}
	return nil
}
