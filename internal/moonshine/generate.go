package moonshine

import "fmt"

const (
	// DefaultMinGenTokens is the number of decode steps that must run before an
	// end-of-sequence prediction is honored.
	DefaultMinGenTokens = 6
	// DefaultTokensPerSecond sizes the generation budget to the audio length.
	DefaultTokensPerSecond = 6.0
)

// MaxSteps returns the decode budget for a clip of the given length:
// round(seconds*tokensPerSecond) limited to maxPositions, but never below minGen.
func MaxSteps(seconds, tokensPerSecond float64, minGen, maxPositions int) int {
	estimated := int(seconds*tokensPerSecond + 0.5)
	return max(minGen, min(estimated, maxPositions))
}

// GenerationState is owned by a single Generate call.
type GenerationState struct {
	Tokens   [][]int64
	Step     int
	Finished []bool
}

func newGenerationState(batch int, start int64) *GenerationState {
	s := &GenerationState{
		Tokens:   make([][]int64, batch),
		Finished: make([]bool, batch),
	}
	for i := range s.Tokens {
		s.Tokens[i] = []int64{start}
	}
	return s
}

// last returns the newest token of every row.
func (s *GenerationState) last() []int64 {
	out := make([]int64, len(s.Tokens))
	for i, row := range s.Tokens {
		out[i] = row[len(row)-1]
	}
	return out
}

// advance appends one token per row. Rows that already produced eos keep
// receiving eos so every row stays the same length.
func (s *GenerationState) advance(next []int64, eos int64) {
	for i := range s.Tokens {
		tok := next[i]
		if s.Finished[i] {
			tok = eos
		}
		s.Tokens[i] = append(s.Tokens[i], tok)
		if tok == eos {
			s.Finished[i] = true
		}
	}
	s.Step++
}

func (s *GenerationState) allFinished() bool {
	for _, f := range s.Finished {
		if !f {
			return false
		}
	}
	return true
}

// Generation is the outcome of one decode loop.
type Generation struct {
	// Tokens holds one sequence per batch row, starting with the decoder start token.
	Tokens       [][]int64
	Steps        int
	MaxSteps     int
	StoppedOnEOS bool
}

// Generator runs the encoder once and then drives the decoder greedily.
// It holds only read-only collaborators; all per-call state lives in Generate.
type Generator struct {
	cfg             ModelConfig
	encoder         *Encoder
	decoder         *DecoderStep
	sampleRate      int
	minGenTokens    int
	tokensPerSecond float64
}

func NewGenerator(cfg ModelConfig, enc *Encoder, dec *DecoderStep, sampleRate, minGenTokens int, tokensPerSecond float64) *Generator {
	if minGenTokens <= 0 {
		minGenTokens = DefaultMinGenTokens
	}
	if tokensPerSecond <= 0 {
		tokensPerSecond = DefaultTokensPerSecond
	}
	return &Generator{
		cfg:             cfg,
		encoder:         enc,
		decoder:         dec,
		sampleRate:      sampleRate,
		minGenTokens:    minGenTokens,
		tokensPerSecond: tokensPerSecond,
	}
}

// MaxSteps returns the decode budget for numSamples of audio.
func (g *Generator) MaxSteps(numSamples int) int {
	seconds := float64(numSamples) / float64(g.sampleRate)
	return MaxSteps(seconds, g.tokensPerSecond, g.minGenTokens, g.cfg.MaxPositionEmbeddings)
}

// Generate transcribes normalized samples into token ids.
func (g *Generator) Generate(samples []float32) (*Generation, error) {
	hidden, err := g.encoder.Encode(samples)
	if err != nil {
		return nil, err
	}

	batch := int(hidden.Shape[0])
	state := newGenerationState(batch, g.cfg.DecoderStartTokenID)
	cache := NewKVCache(g.cfg, batch)
	maxSteps := g.MaxSteps(len(samples))
	stoppedOnEOS := false

	for i := 0; i < maxSteps; i++ {
		useCache := i > 0
		out, err := g.decoder.Run(state.last(), hidden, useCache, cache)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if err := updateCache(cache, out.Present, i); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		next := make([]int64, batch)
		for row, logits := range out.Logits {
			next[row] = argmax(logits)
		}
		state.advance(next, g.cfg.EOSTokenID)

		if state.allFinished() && i >= g.minGenTokens {
			stoppedOnEOS = true
			break
		}
	}

	return &Generation{
		Tokens:       state.Tokens,
		Steps:        state.Step,
		MaxSteps:     maxSteps,
		StoppedOnEOS: stoppedOnEOS,
	}, nil
}

// updateCache stores the step's present tensors. Cross-attention slots are
// written at step 0 only; self-attention slots must grow by one position per step.
func updateCache(cache *KVCache, present []CacheTensor, step int) error {
	for j, s := range cache.Slots() {
		t := present[j]
		if s.Module == CrossAttention {
			if step == 0 {
				cache.Set(s, t)
			}
			continue
		}
		if prev := cache.Get(s).SeqLen(); t.SeqLen() != prev+1 {
			return fmt.Errorf("%w: %s grew from %d to %d positions", ErrInference, s.OutputName(), prev, t.SeqLen())
		}
		cache.Set(s, t)
	}
	return nil
}

// argmax returns the index of the first maximum.
func argmax(v []float32) int64 {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return int64(best)
}
