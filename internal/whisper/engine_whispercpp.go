//go:build whisper_cpp

package whisper

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	whisperpkg "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog/log"
)

// EngineCPP is the whisper.cpp-backed implementation of Engine.
type EngineCPP struct {
	model    whisperpkg.Model
	threads  uint
	language string
	mu       sync.Mutex // whisper.cpp contexts are not safe to run concurrently
}

func NewEngine(opts Options) (Engine, error) {
	threads := uint(runtime.NumCPU())
	if opts.Threads > 0 {
		threads = uint(opts.Threads)
	}
	lang := opts.Language
	if lang == "" {
		lang = "auto"
	}

	m, err := whisperpkg.New(opts.ModelPath)
	if err != nil {
		return nil, loadError(opts.ModelPath, err)
	}

	log.Info().
		Str("model", opts.ModelPath).
		Uint("threads", threads).
		Str("language", lang).
		Msg("whisper: model loaded successfully")
	return &EngineCPP{model: m, threads: threads, language: lang}, nil
}

func (e *EngineCPP) SampleRate() int { return SampleRate }

func (e *EngineCPP) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// Transcribe runs a full-context greedy pass and joins every segment.
func (e *EngineCPP) Transcribe(samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("%w: create context: %w", ErrInference, err)
	}
	ctx.SetThreads(e.threads)
	if err := ctx.SetLanguage(e.language); err != nil {
		log.Warn().Err(err).Str("language", e.language).Msg("whisper: language rejected, using model default")
	}
	ctx.SetSplitOnWord(true)
	ctx.SetMaxSegmentLength(0)
	ctx.SetMaxTokensPerSegment(0)
	ctx.SetAudioCtx(0)

	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("%w: process audio: %w", ErrInference, err)
	}

	var segments []string
	for {
		seg, err := ctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Warn().Err(err).Msg("whisper: error reading segment")
			break
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			segments = append(segments, text)
		}
	}
	full := strings.Join(segments, " ")

	log.Debug().
		Int("segments", len(segments)).
		Int("samples", len(samples)).
		Str("lang", ctx.DetectedLanguage()).
		Msg("whisper: transcription complete")
	return full, nil
}
