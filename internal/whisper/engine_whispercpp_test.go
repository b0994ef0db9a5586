//go:build whisper_cpp

package whisper

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestNewEngineMissingModel(t *testing.T) {
	e, err := NewEngine(Options{ModelPath: filepath.Join(t.TempDir(), "absent.bin")})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if e != nil {
		t.Error("expected no engine")
	}
}
