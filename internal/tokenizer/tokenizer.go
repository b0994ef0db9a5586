//go:build onnxruntime

// Package tokenizer decodes model token ids to text using a HuggingFace tokenizer.json.
package tokenizer

import (
	"fmt"

	"github.com/daulet/tokenizers"
)

type Tokenizer struct {
	tk *tokenizers.Tokenizer
}

// Load reads a tokenizer.json file.
func Load(path string) (*Tokenizer, error) {
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return &Tokenizer{tk: tk}, nil
}

// DecodeBatch turns every token sequence into text.
func (t *Tokenizer) DecodeBatch(seqs [][]int64, skipSpecialTokens bool) []string {
	out := make([]string, len(seqs))
	for i, seq := range seqs {
		out[i] = t.tk.Decode(toUint32(seq), skipSpecialTokens)
	}
	return out
}

func (t *Tokenizer) Close() error {
	return t.tk.Close()
}

func toUint32(ids []int64) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}
