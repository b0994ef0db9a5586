package moonshine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/obiente/translate/gomoonshine/internal/audio"
)

// DebugRecorder archives raw request audio for offline inspection.
type DebugRecorder struct {
	dir string
	now func() time.Time
}

func NewDebugRecorder(dir string) *DebugRecorder {
	return &DebugRecorder{dir: dir, now: time.Now}
}

// Save writes samples to utterance_<unixMillis>_<n>samples.wav and returns its path.
// Any failure is reported as ErrDebugPersistence; callers log it and carry on.
func (d *DebugRecorder) Save(samples []float32, rate int) (string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDebugPersistence, err)
	}
	name := fmt.Sprintf("utterance_%d_%dsamples.wav", d.now().UnixMilli(), len(samples))
	path := filepath.Join(d.dir, name)
	if err := audio.WriteWAVFile(path, samples, rate); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrDebugPersistence, path, err)
	}
	return path, nil
}
