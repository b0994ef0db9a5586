package moonshine

import (
	"fmt"

	"github.com/obiente/translate/gomoonshine/internal/onnx"
)

const (
	inputIDsName      = "input_ids"
	hiddenStatesName  = "encoder_hidden_states"
	useCacheInputName = "use_cache_branch"
)

// StepOutput is the result of one decoder step.
// Present is indexed like KVCache.Slots.
type StepOutput struct {
	Logits  [][]float32
	Present []CacheTensor
}

// DecoderStep runs one step of the merged decoder graph.
type DecoderStep struct {
	graph onnx.Graph
	cfg   ModelConfig
	slots []Slot
}

// NewDecoderStep checks that the graph exposes one cache input per slot the
// config implies. Graphs that do not report their inputs are accepted as-is.
func NewDecoderStep(g onnx.Graph, cfg ModelConfig) (*DecoderStep, error) {
	slots := Slots(cfg.DecoderLayers)
	if names := g.InputNames(); len(names) > 0 {
		have := make(map[string]bool, len(names))
		for _, n := range names {
			have[n] = true
		}
		for _, want := range []string{inputIDsName, hiddenStatesName, useCacheInputName} {
			if !have[want] {
				return nil, fmt.Errorf("%w: decoder graph has no %q input", ErrArtifactUnavailable, want)
			}
		}
		for _, s := range slots {
			if !have[s.InputName()] {
				return nil, fmt.Errorf("%w: decoder graph has no %q input for %d layers", ErrArtifactUnavailable, s.InputName(), cfg.DecoderLayers)
			}
		}
	}
	if outs := g.OutputNames(); len(outs) > 0 && len(outs) != 1+len(slots) {
		return nil, fmt.Errorf("%w: decoder graph has %d outputs, expected %d", ErrArtifactUnavailable, len(outs), 1+len(slots))
	}
	return &DecoderStep{graph: g, cfg: cfg, slots: slots}, nil
}

// Run feeds the newest token of every row and the current cache into the decoder.
// With useCache false the graph recomputes cross-attention from the hidden states.
// With useCache true only logits and the self-attention presents are read.
func (d *DecoderStep) Run(tokens []int64, hidden HiddenStates, useCache bool, cache *KVCache) (StepOutput, error) {
	batch := int64(len(tokens))
	inputs := make([]onnx.Tensor, 0, 3+len(d.slots))
	inputs = append(inputs,
		onnx.Tensor{Name: inputIDsName, Shape: []int64{batch, 1}, Data: tokens},
		onnx.Tensor{Name: hiddenStatesName, Shape: hidden.Shape[:], Data: hidden.Data},
		onnx.Tensor{Name: useCacheInputName, Shape: []int64{1}, Data: []bool{useCache}},
	)
	for _, s := range d.slots {
		t := cache.Get(s)
		inputs = append(inputs, onnx.Tensor{Name: s.InputName(), Shape: t.Shape[:], Data: t.Data})
	}

	outputs, err := d.graph.Run(inputs)
	if err != nil {
		return StepOutput{}, fmt.Errorf("%w: decoder: %w", ErrInference, err)
	}
	if len(outputs) != 1+len(d.slots) {
		return StepOutput{}, fmt.Errorf("%w: decoder returned %d outputs, expected %d", ErrInference, len(outputs), 1+len(d.slots))
	}

	logits, err := lastPositionLogits(outputs[0], int(batch))
	if err != nil {
		return StepOutput{}, err
	}

	// On the cached branch the cross-attention outputs are placeholders and stay zero.
	present := make([]CacheTensor, len(d.slots))
	for j, s := range d.slots {
		if useCache && s.Module == CrossAttention {
			continue
		}
		t, err := d.cacheTensor(outputs[1+j], batch)
		if err != nil {
			return StepOutput{}, fmt.Errorf("%w: %s: %w", ErrInference, s.OutputName(), err)
		}
		present[j] = t
	}
	return StepOutput{Logits: logits, Present: present}, nil
}

func (d *DecoderStep) cacheTensor(out onnx.Tensor, batch int64) (CacheTensor, error) {
	if len(out.Shape) != 4 {
		return CacheTensor{}, fmt.Errorf("expected rank 4, got shape %v", out.Shape)
	}
	if out.Shape[0] != batch || out.Shape[1] != int64(d.cfg.NumKeyValueHeads) || out.Shape[3] != int64(d.cfg.HeadDim) {
		return CacheTensor{}, fmt.Errorf("shape %v does not match [%d %d * %d]", out.Shape, batch, d.cfg.NumKeyValueHeads, d.cfg.HeadDim)
	}
	data, err := out.Float32s()
	if err != nil {
		return CacheTensor{}, err
	}
	return CacheTensor{
		Shape: [4]int64{out.Shape[0], out.Shape[1], out.Shape[2], out.Shape[3]},
		Data:  data,
	}, nil
}

// lastPositionLogits reshapes [batch, seq, vocab] (or [batch, vocab]) logits to
// one vocabulary row per batch entry, taken from the final position.
func lastPositionLogits(out onnx.Tensor, batch int) ([][]float32, error) {
	data, err := out.Float32s()
	if err != nil {
		return nil, fmt.Errorf("%w: logits: %w", ErrInference, err)
	}
	var seqLen, vocab int
	switch len(out.Shape) {
	case 3:
		seqLen, vocab = int(out.Shape[1]), int(out.Shape[2])
	case 2:
		seqLen, vocab = 1, int(out.Shape[1])
	default:
		return nil, fmt.Errorf("%w: unexpected logits shape %v", ErrInference, out.Shape)
	}
	if int(out.Shape[0]) != batch || seqLen == 0 || vocab == 0 {
		return nil, fmt.Errorf("%w: logits shape %v does not fit batch %d", ErrInference, out.Shape, batch)
	}

	logits := make([][]float32, batch)
	for i := range logits {
		start := (i*seqLen + seqLen - 1) * vocab
		logits[i] = data[start : start+vocab]
	}
	return logits, nil
}
