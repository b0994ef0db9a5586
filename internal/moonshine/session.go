package moonshine

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/gomoonshine/internal/audio"
	"github.com/obiente/translate/gomoonshine/internal/onnx"
)

// Tokenizer maps token id sequences back to text.
type Tokenizer interface {
	DecodeBatch(seqs [][]int64, skipSpecialTokens bool) []string
}

// Recorder receives per-call generation statistics. Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveGeneration(steps int, stoppedOnEOS bool, elapsed time.Duration)
	DebugSaveFailed()
}

// Options tune a Session. Zero values select the defaults.
type Options struct {
	SampleRate      int
	MinGenTokens    int
	TokensPerSecond float64
	// DebugDir enables archiving of every request's raw audio when non-empty.
	DebugDir string
	Logger   *zerolog.Logger
	Recorder Recorder
}

// Models are the loaded, read-only collaborators a Session runs on.
type Models struct {
	Config    ModelConfig
	Encoder   onnx.Graph
	Decoder   onnx.Graph
	Tokenizer Tokenizer
}

// Session turns audio buffers into text. Calls are serialized; the graphs and
// config are shared read-only while each call gets its own cache and state.
type Session struct {
	models Models
	gen    *Generator
	rate   int
	debug  *DebugRecorder
	log    zerolog.Logger
	rec    Recorder

	mu sync.Mutex
}

// NewSession validates the models and builds a session without warming it up.
func NewSession(m Models, opts Options) (*Session, error) {
	if err := m.Config.Validate(); err != nil {
		return nil, err
	}
	if m.Encoder == nil || m.Decoder == nil || m.Tokenizer == nil {
		return nil, fmt.Errorf("%w: encoder, decoder and tokenizer are required", ErrArtifactUnavailable)
	}
	dec, err := NewDecoderStep(m.Decoder, m.Config)
	if err != nil {
		return nil, err
	}

	rate := opts.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	s := &Session{
		models: m,
		gen:    NewGenerator(m.Config, NewEncoder(m.Encoder), dec, rate, opts.MinGenTokens, opts.TokensPerSecond),
		rate:   rate,
		log:    logger,
		rec:    opts.Recorder,
	}
	if opts.DebugDir != "" {
		s.debug = NewDebugRecorder(opts.DebugDir)
	}
	return s, nil
}

// SampleRate is the rate Transcribe expects its input at.
func (s *Session) SampleRate() int { return s.rate }

// Warmup transcribes one second of silence and discards the result so lazy
// runtime initialization happens before the first real request. It never
// archives audio.
func (s *Session) Warmup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	if _, err := s.transcribe(make([]float32, s.rate)); err != nil {
		return err
	}
	s.log.Info().Dur("elapsed", time.Since(start)).Msg("moonshine: warmup complete")
	return nil
}

// Transcribe converts mono samples at SampleRate into trimmed text.
func (s *Session) Transcribe(samples []float32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.debug != nil {
		if path, err := s.debug.Save(samples, s.rate); err != nil {
			s.log.Warn().Err(err).Msg("moonshine: debug audio save failed")
			if s.rec != nil {
				s.rec.DebugSaveFailed()
			}
		} else {
			s.log.Debug().Str("path", path).Msg("moonshine: debug audio saved")
		}
	}
	return s.transcribe(samples)
}

func (s *Session) transcribe(samples []float32) (string, error) {
	start := time.Now()
	padded := audio.PadToMinimum(samples, s.rate/2)

	g, err := s.gen.Generate(padded)
	if err != nil {
		return "", err
	}
	texts := s.models.Tokenizer.DecodeBatch(g.Tokens, true)
	if len(texts) == 0 {
		return "", fmt.Errorf("%w: tokenizer returned no text", ErrInference)
	}
	text := strings.TrimSpace(texts[0])

	elapsed := time.Since(start)
	if s.rec != nil {
		s.rec.ObserveGeneration(g.Steps, g.StoppedOnEOS, elapsed)
	}
	s.log.Debug().
		Int("samples", len(samples)).
		Int("steps", g.Steps).
		Int("max_steps", g.MaxSteps).
		Bool("eos", g.StoppedOnEOS).
		Dur("elapsed", elapsed).
		Msg("moonshine: generation complete")
	return text, nil
}

// Close releases both graphs and, when it supports it, the tokenizer.
func (s *Session) Close() error {
	var errs []error
	if err := s.models.Encoder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close encoder: %w", err))
	}
	if err := s.models.Decoder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close decoder: %w", err))
	}
	if c, ok := s.models.Tokenizer.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close tokenizer: %w", err))
		}
	}
	return errors.Join(errs...)
}
