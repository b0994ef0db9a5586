package whisper

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
)

func TestLoadErrorIsUnavailable(t *testing.T) {
	err := loadError("/models/ggml-base.en.bin", fs.ErrNotExist)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected the cause to be kept, got %v", err)
	}
	if !strings.Contains(err.Error(), "/models/ggml-base.en.bin") {
		t.Errorf("expected the model path in %q", err)
	}
}
