package moonshine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/obiente/translate/gomoonshine/internal/onnx"
)

const (
	testStart = 1
	testEOS   = 2
	testVocab = 16
	testRate  = 16000
)

func testConfig() ModelConfig {
	return ModelConfig{
		EOSTokenID:            testEOS,
		DecoderStartTokenID:   testStart,
		NumKeyValueHeads:      2,
		HeadDim:               4,
		DecoderLayers:         2,
		MaxPositionEmbeddings: 194,
	}
}

// fakeEncoder emits [1, frames, 8] hidden states whose values depend on the input energy.
type fakeEncoder struct {
	err     error
	lengths []int64
}

func (f *fakeEncoder) InputNames() []string  { return []string{"input_values"} }
func (f *fakeEncoder) OutputNames() []string { return []string{"last_hidden_state"} }
func (f *fakeEncoder) Close() error          { return nil }

func (f *fakeEncoder) Run(in []onnx.Tensor) ([]onnx.Tensor, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(in) != 1 || in[0].Name != "input_values" {
		return nil, fmt.Errorf("unexpected encoder inputs %v", in)
	}
	samples := in[0].Data.([]float32)
	f.lengths = append(f.lengths, in[0].Shape[1])

	var energy float32
	for _, v := range samples {
		energy += v * v
	}
	frames := in[0].Shape[1]/320 + 1
	data := make([]float32, frames*8)
	for i := range data {
		data[i] = energy
	}
	return []onnx.Tensor{{Name: "last_hidden_state", Shape: []int64{1, frames, 8}, Data: data}}, nil
}

type decoderCall struct {
	step     int
	useCache bool
	inputs   map[string]onnx.Tensor
	outputs  []onnx.Tensor
}

// fakeDecoder behaves like a merged decoder: self-attention outputs grow by one
// position per call, and cross-attention outputs are filled with a per-step
// marker so tests can tell which step's tensors were fed back.
type fakeDecoder struct {
	cfg ModelConfig
	// next picks the token each row emits at step.
	next func(step int, hidden []float32, last []int64) []int64
	// failAt makes the call with this index fail when >= 0.
	failAt int
	// selfGrowth overrides how many positions self-attention grows per step.
	selfGrowth int64
	// emptyCross makes cached steps return empty cross-attention presents, as
	// merged graphs that skip recomputing them do.
	emptyCross bool

	mu    sync.Mutex
	calls []decoderCall
}

func newFakeDecoder(cfg ModelConfig, next func(step int, hidden []float32, last []int64) []int64) *fakeDecoder {
	return &fakeDecoder{cfg: cfg, next: next, failAt: -1, selfGrowth: 1}
}

func (f *fakeDecoder) InputNames() []string {
	names := []string{inputIDsName, hiddenStatesName, useCacheInputName}
	for _, s := range Slots(f.cfg.DecoderLayers) {
		names = append(names, s.InputName())
	}
	return names
}

func (f *fakeDecoder) OutputNames() []string {
	names := []string{"logits"}
	for _, s := range Slots(f.cfg.DecoderLayers) {
		names = append(names, s.OutputName())
	}
	return names
}

func (f *fakeDecoder) Close() error { return nil }

func (f *fakeDecoder) Run(in []onnx.Tensor) ([]onnx.Tensor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	step := len(f.calls)
	if step == f.failAt {
		f.calls = append(f.calls, decoderCall{step: step})
		return nil, fmt.Errorf("injected failure at step %d", step)
	}

	byName := make(map[string]onnx.Tensor, len(in))
	for _, t := range in {
		byName[t.Name] = t
	}
	ids := byName[inputIDsName].Data.([]int64)
	useCache := byName[useCacheInputName].Data.([]bool)[0]
	hidden := byName[hiddenStatesName]
	encSeq := hidden.Shape[1]
	batch := int64(len(ids))

	next := f.next(step, hidden.Data.([]float32), ids)
	logits := make([]float32, batch*testVocab)
	for row := int64(0); row < batch; row++ {
		logits[row*testVocab+next[row]] = 10
	}
	outs := []onnx.Tensor{{Name: "logits", Shape: []int64{batch, 1, testVocab}, Data: logits}}

	kv := int64(f.cfg.NumKeyValueHeads)
	hd := int64(f.cfg.HeadDim)
	for _, s := range Slots(f.cfg.DecoderLayers) {
		if s.Module == CrossAttention && useCache && f.emptyCross {
			outs = append(outs, onnx.Tensor{Name: s.OutputName(), Shape: []int64{0, 0, 0, 0}, Data: []float32{}})
			continue
		}
		var seq int64
		var fill float32
		if s.Module == CrossAttention {
			seq, fill = encSeq, float32(100+step)
		} else {
			seq, fill = byName[s.InputName()].Shape[2]+f.selfGrowth, float32(step)
		}
		data := make([]float32, batch*kv*seq*hd)
		for i := range data {
			data[i] = fill
		}
		outs = append(outs, onnx.Tensor{Name: s.OutputName(), Shape: []int64{batch, kv, seq, hd}, Data: data})
	}

	f.calls = append(f.calls, decoderCall{step: step, useCache: useCache, inputs: byName, outputs: outs})
	return outs, nil
}

func (f *fakeDecoder) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func always(tok int64) func(int, []float32, []int64) []int64 {
	return func(_ int, _ []float32, last []int64) []int64 {
		out := make([]int64, len(last))
		for i := range out {
			out[i] = tok
		}
		return out
	}
}

// fakeTokenizer renders content ids as "w<id>" and drops special ids when asked.
type fakeTokenizer struct{}

func (fakeTokenizer) DecodeBatch(seqs [][]int64, skipSpecialTokens bool) []string {
	out := make([]string, len(seqs))
	for i, seq := range seqs {
		var b strings.Builder
		for _, id := range seq {
			if skipSpecialTokens && id <= testEOS {
				continue
			}
			fmt.Fprintf(&b, " w%d", id)
		}
		out[i] = b.String() + " "
	}
	return out
}

type fakeRecorder struct {
	mu          sync.Mutex
	generations int
	steps       []int
	debugFails  int
}

func (r *fakeRecorder) ObserveGeneration(steps int, _ bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations++
	r.steps = append(r.steps, steps)
}

func (r *fakeRecorder) DebugSaveFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debugFails++
}
