// Package stt is the request boundary shared by every transport: it turns a file path
// or a sample buffer into a Result and never lets an error or panic escape.
package stt

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/gomoonshine/internal/audio"
	"github.com/obiente/translate/gomoonshine/internal/metrics"
)

// Transcriber is a loaded speech recognition backend.
type Transcriber interface {
	Transcribe(samples []float32) (string, error)
	SampleRate() int
	Close() error
}

// Service wraps a Transcriber with file loading, resampling, panic recovery and metrics.
type Service struct {
	t       Transcriber
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewService builds a Service. m may be nil.
func NewService(t Transcriber, m *metrics.Metrics) *Service {
	return &Service{t: t, metrics: m, log: log.Logger}
}

// WithLogger replaces the service logger.
func (s *Service) WithLogger(l zerolog.Logger) *Service {
	s.log = l
	return s
}

// SampleRate is the rate the backend transcribes at.
func (s *Service) SampleRate() int { return s.t.SampleRate() }

// Close releases the backend.
func (s *Service) Close() error { return s.t.Close() }

// TranscribeFile loads a WAV file, converts it to the backend rate and transcribes it.
func (s *Service) TranscribeFile(path string) Result {
	start := time.Now()
	logger := s.log.With().Str("request_id", uuid.NewString()).Str("path", path).Logger()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			res := Result{Error: "File not found: " + path, Kind: KindAudioFormat}
			s.finish(logger, "file", res, start, 0)
			return res
		}
		res := failure(fmt.Errorf("%w: %w", audio.ErrFormat, err))
		s.finish(logger, "file", res, start, 0)
		return res
	}

	samples, err := audio.LoadFile(path, s.t.SampleRate())
	if err != nil {
		res := failure(err)
		s.finish(logger, "file", res, start, 0)
		return res
	}
	res := s.run(logger, samples)
	s.finish(logger, "file", res, start, audio.Duration(samples, s.t.SampleRate()))
	return res
}

// TranscribeWAV decodes an in-memory WAV file and transcribes it.
func (s *Service) TranscribeWAV(data []byte) Result {
	start := time.Now()
	logger := s.log.With().Str("request_id", uuid.NewString()).Int("bytes", len(data)).Logger()

	samples, rate, err := audio.DecodeWAVToFloat32(data)
	if err != nil {
		res := failure(err)
		s.finish(logger, "wav", res, start, 0)
		return res
	}
	samples = audio.ResampleLinear(samples, rate, s.t.SampleRate())
	res := s.run(logger, samples)
	s.finish(logger, "wav", res, start, audio.Duration(samples, s.t.SampleRate()))
	return res
}

// TranscribeSamples transcribes mono samples recorded at rate.
func (s *Service) TranscribeSamples(samples []float32, rate int) Result {
	start := time.Now()
	logger := s.log.With().Str("request_id", uuid.NewString()).Logger()

	samples = audio.ResampleLinear(samples, rate, s.t.SampleRate())
	res := s.run(logger, samples)
	s.finish(logger, "buffer", res, start, audio.Duration(samples, s.t.SampleRate()))
	return res
}

func (s *Service) run(logger zerolog.Logger, samples []float32) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("stt: transcription panicked")
			res = Result{Error: fmt.Sprint(r), Kind: KindInternal}
		}
	}()
	text, err := s.t.Transcribe(samples)
	if err != nil {
		return failure(err)
	}
	return Result{Text: text}
}

func (s *Service) finish(logger zerolog.Logger, channel string, res Result, start time.Time, audioSeconds float64) {
	elapsed := time.Since(start)
	outcome := "ok"
	if res.Failed() {
		outcome = res.Kind
		logger.Warn().Str("kind", res.Kind).Str("error", res.Error).Dur("elapsed", elapsed).Msg("stt: transcription failed")
	} else {
		logger.Info().
			Float64("audio_seconds", audioSeconds).
			Dur("elapsed", elapsed).
			Int("chars", len(res.Text)).
			Msg("stt: transcription complete")
	}
	s.metrics.RecordRequest(channel, outcome, elapsed, audioSeconds)
}
