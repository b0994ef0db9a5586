//go:build !onnxruntime

// Package tokenizer decodes model token ids to text using a HuggingFace tokenizer.json.
package tokenizer

import "errors"

// ErrUnavailable is returned when the binary was built without the native tokenizer.
var ErrUnavailable = errors.New("tokenizer not available: built without the onnxruntime tag")

type Tokenizer struct{}

func Load(path string) (*Tokenizer, error) { return nil, ErrUnavailable }

func (t *Tokenizer) DecodeBatch(seqs [][]int64, skipSpecialTokens bool) []string {
	return make([]string, len(seqs))
}

func (t *Tokenizer) Close() error { return nil }
