package whisper

import (
	"errors"
	"fmt"
)

// SampleRate is the only input rate whisper.cpp models accept.
const SampleRate = 16000

var (
	// ErrUnavailable is returned by NewEngine when the binary was built without
	// whisper_cpp or the model file cannot be loaded.
	ErrUnavailable = errors.New("whisper backend unavailable")
	// ErrInference wraps whisper.cpp processing failures.
	ErrInference = errors.New("whisper inference failure")
)

// Engine transcribes 16 kHz mono audio into text.
// Implementations are backed by whisper.cpp (build tag: whisper_cpp).
type Engine interface {
	Transcribe(samples []float32) (string, error)
	SampleRate() int
	Close() error
}

// Options configure a whisper.cpp engine.
type Options struct {
	ModelPath string
	// Threads defaults to the number of CPU cores when zero.
	Threads int
	// Language is a whisper language code; empty or "auto" enables detection.
	Language string
}

func loadError(path string, err error) error {
	return fmt.Errorf("%w: load model %s: %w", ErrUnavailable, path, err)
}
