//go:build !whisper_cpp

package whisper

import (
	"errors"
	"testing"
)

func TestNewEngineWithoutBackend(t *testing.T) {
	e, err := NewEngine(Options{ModelPath: "ggml-base.en.bin"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if e != nil {
		t.Error("expected no engine")
	}
}
