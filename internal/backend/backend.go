// Package backend builds the configured speech recognition backend.
package backend

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/gomoonshine/internal/config"
	"github.com/obiente/translate/gomoonshine/internal/hub"
	"github.com/obiente/translate/gomoonshine/internal/metrics"
	"github.com/obiente/translate/gomoonshine/internal/moonshine"
	"github.com/obiente/translate/gomoonshine/internal/onnx"
	"github.com/obiente/translate/gomoonshine/internal/stt"
	"github.com/obiente/translate/gomoonshine/internal/tokenizer"
	"github.com/obiente/translate/gomoonshine/internal/whisper"
)

// Open loads the backend named by cfg.Backend. The result is warmed up and ready to serve.
func Open(cfg config.Config, m *metrics.Metrics) (stt.Transcriber, error) {
	switch cfg.Model.Backend {
	case "whisper":
		return whisper.NewEngine(whisper.Options{
			ModelPath: cfg.Model.WhisperPath,
			Threads:   cfg.Model.Threads,
		})
	case "moonshine", "":
		return openMoonshine(cfg, m)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Model.Backend)
	}
}

func openMoonshine(cfg config.Config, m *metrics.Metrics) (stt.Transcriber, error) {
	rt, err := onnx.NewRuntime(cfg.Model.ONNXRuntimeLib, cfg.Model.Threads)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", moonshine.ErrArtifactUnavailable, err)
	}

	opts := moonshine.Options{
		SampleRate:      cfg.Model.SampleRate,
		MinGenTokens:    cfg.Model.MinGenTokens,
		TokensPerSecond: cfg.Model.TokensPerSecond,
	}
	if cfg.Debug.SaveAudio {
		opts.DebugDir = cfg.Debug.Dir
	}
	if m != nil {
		opts.Recorder = m
	}

	loader := moonshine.Loader{
		Store:   hub.NewStore(cfg.Model.CacheDir, cfg.Model.HFToken),
		Runtime: rt,
		LoadTokenizer: func(path string) (moonshine.Tokenizer, error) {
			tk, err := tokenizer.Load(path)
			if err != nil {
				return nil, err
			}
			return tk, nil
		},
	}
	src := moonshine.Source{
		Model:      cfg.Model.Name,
		ONNXRepo:   cfg.Model.ONNXRepo,
		Precision:  cfg.Model.Precision,
		ConfigRepo: cfg.Model.ConfigRepo,
	}
	log.Info().Str("model", src.Model).Str("precision", src.Precision).Msg("moonshine: loading")
	s, err := moonshine.Load(loader, src, opts)
	if err != nil {
		return nil, errors.Join(err, rt.Close())
	}
	return &runtimeSession{Session: s, rt: rt}, nil
}

// runtimeSession releases the shared runtime after the session's graphs.
type runtimeSession struct {
	*moonshine.Session
	rt onnx.Runtime
}

func (s *runtimeSession) Close() error {
	return errors.Join(s.Session.Close(), s.rt.Close())
}
